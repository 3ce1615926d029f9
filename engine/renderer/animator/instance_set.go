package animator

import (
	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/go-gl/mathgl/mgl32"
)

// dirtyRange tracks the half-open index span [start, end) touched since the last flush.
type dirtyRange struct {
	start, end uint32
	dirty      bool
}

func (d *dirtyRange) mark(i uint32) {
	d.markRange(i, i+1)
}

func (d *dirtyRange) markRange(start, end uint32) {
	if start >= end {
		return
	}
	if !d.dirty {
		d.start, d.end, d.dirty = start, end, true
		return
	}
	d.start = min(d.start, start)
	d.end = max(d.end, end)
}

// take returns the dirty span and resets it.
func (d *dirtyRange) take() (start, end uint32, ok bool) {
	start, end, ok = d.start, d.end, d.dirty
	*d = dirtyRange{}
	return start, end, ok
}

// clamp drops indexes at or beyond n, e.g. after a swap-remove shrank the set.
func (d *dirtyRange) clamp(n uint32) {
	if !d.dirty {
		return
	}
	d.end = min(d.end, n)
	if d.start >= d.end {
		*d = dirtyRange{}
	}
}

// instanceSet is the per-instance world transform storage shared by every backend.
// Callers hold the owning backend's mutex.
type instanceSet struct {
	maxInstances, instanceCount uint32

	models []mgl32.Mat4

	// Decomposed transform kept so spinning instances can rebuild their model matrix.
	pos, scale, rotSpeed, rot [][3]float32

	visible []bool

	modelDirty dirtyRange
}

func newInstanceSet(maxInstances uint32) instanceSet {
	s := instanceSet{}
	s.reset(maxInstances)
	return s
}

// reset reallocates storage for maxInstances and drops every instance.
func (s *instanceSet) reset(maxInstances uint32) {
	s.maxInstances = maxInstances
	s.instanceCount = 0
	s.models = make([]mgl32.Mat4, maxInstances)
	s.pos = make([][3]float32, maxInstances)
	s.scale = make([][3]float32, maxInstances)
	s.rotSpeed = make([][3]float32, maxInstances)
	s.rot = make([][3]float32, maxInstances)
	s.visible = make([]bool, maxInstances)
	s.modelDirty = dirtyRange{}
}

// grow enlarges the storage to newMax, preserving live instances.
func (s *instanceSet) grow(newMax uint32) bool {
	if newMax <= s.maxInstances {
		return false
	}
	n := s.instanceCount
	s.models = append(make([]mgl32.Mat4, 0, newMax), s.models[:n]...)[:newMax]
	s.pos = append(make([][3]float32, 0, newMax), s.pos[:n]...)[:newMax]
	s.scale = append(make([][3]float32, 0, newMax), s.scale[:n]...)[:newMax]
	s.rotSpeed = append(make([][3]float32, 0, newMax), s.rotSpeed[:n]...)[:newMax]
	s.rot = append(make([][3]float32, 0, newMax), s.rot[:n]...)[:newMax]
	s.visible = append(make([]bool, 0, newMax), s.visible[:n]...)[:newMax]
	s.maxInstances = newMax
	s.modelDirty.markRange(0, n)
	return true
}

// nextCapacity returns the capacity used when an add overflows: double, minimum 8.
func (s *instanceSet) nextCapacity() uint32 {
	return max(s.maxInstances*2, 8)
}

// add appends an instance at the origin with unit scale, visible.
func (s *instanceSet) add() uint32 {
	if s.instanceCount >= s.maxInstances {
		s.grow(s.nextCapacity())
	}
	idx := s.instanceCount
	s.instanceCount++
	s.pos[idx] = [3]float32{}
	s.scale[idx] = [3]float32{1, 1, 1}
	s.rotSpeed[idx] = [3]float32{}
	s.rot[idx] = [3]float32{}
	s.visible[idx] = true
	s.models[idx] = mgl32.Ident4()
	s.modelDirty.mark(idx)
	return idx
}

// swapRemove moves the last instance into index and shrinks the set.
func (s *instanceSet) swapRemove(index uint32) (last uint32, swapped bool) {
	last = s.instanceCount - 1
	swapped = index != last
	if swapped {
		s.models[index] = s.models[last]
		s.pos[index] = s.pos[last]
		s.scale[index] = s.scale[last]
		s.rotSpeed[index] = s.rotSpeed[last]
		s.rot[index] = s.rot[last]
		s.visible[index] = s.visible[last]
		s.modelDirty.mark(index)
	}
	s.models[last] = mgl32.Ident4()
	s.visible[last] = false
	s.instanceCount--
	s.modelDirty.clamp(s.instanceCount)
	return last, swapped
}

func (s *instanceSet) valid(index uint32) bool {
	return index < s.instanceCount
}

func (s *instanceSet) rebuild(index uint32) {
	s.models[index] = common.BuildModelMatrix(s.pos[index], s.rot[index], s.scale[index])
	s.modelDirty.mark(index)
}

func (s *instanceSet) setTransform(index uint32, posXYZ, scaleXYZ [3]float32) {
	s.pos[index] = posXYZ
	s.scale[index] = scaleXYZ
	s.rebuild(index)
}

func (s *instanceSet) setRotation(index uint32, rotSpeedXYZ, rotXYZ [3]float32) {
	s.rotSpeed[index] = rotSpeedXYZ
	s.rot[index] = rotXYZ
	s.rebuild(index)
}

func (s *instanceSet) setData(index uint32, posXYZ, scaleXYZ, rotSpeedXYZ, rotXYZ [3]float32) {
	s.pos[index] = posXYZ
	s.scale[index] = scaleXYZ
	s.rotSpeed[index] = rotSpeedXYZ
	s.rot[index] = rotXYZ
	s.rebuild(index)
}

// spin advances the Euler rotation of every instance with a non-zero rotation speed (radians per second).
func (s *instanceSet) spin(deltaTime float32) {
	for i := uint32(0); i < s.instanceCount; i++ {
		speed := s.rotSpeed[i]
		if speed == ([3]float32{}) {
			continue
		}
		for axis := range 3 {
			s.rot[i][axis] += speed[axis] * deltaTime
		}
		s.rebuild(i)
	}
}

func (s *instanceSet) visibleCount() uint32 {
	var n uint32
	for i := uint32(0); i < s.instanceCount; i++ {
		if s.visible[i] {
			n++
		}
	}
	return n
}
