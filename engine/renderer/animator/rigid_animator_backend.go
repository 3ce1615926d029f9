package animator

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/animation"
	"github.com/Carmen-Shannon/oxy-anim/engine/renderer/bind_group_provider"
	"github.com/go-gl/mathgl/mgl32"
)

// rigidAnimatorBackendImpl is the backend for models without bones. It also carries the instance
// bookkeeping, dirty tracking and staging shared with the skeletal backend, which embeds it.
type rigidAnimatorBackendImpl struct {
	mu *sync.Mutex

	computeProvider bind_group_provider.BindGroupProvider

	instances instanceSet

	stagedWriteData []bind_group_provider.BufferWrite

	perFrameSlice []GPUAnimationGlobals

	// Values of the last PrepareFrame, reported through the globals uniform.
	lastVisible, lastOffset uint32
	// Visible instances the last PrepareFrame could not fit in its output.
	lastDropped uint32

	// Reusable staging buffers. wgpu's queue.WriteBuffer copies data internally before returning,
	// so a single buffer reused every frame is safe as long as staged writes are drained each frame.
	stagingModel, stagingUniform []byte
}

// rigidAnimatorBackend defines the instance lifecycle, world transform and staging methods
// shared by every backend.
type rigidAnimatorBackend interface {
	// ComputeBindGroupProvider returns the provider whose buffers receive the staged writes.
	ComputeBindGroupProvider() bind_group_provider.BindGroupProvider

	// SetComputeBindGroupProvider replaces the provider used for staged writes.
	SetComputeBindGroupProvider(provider bind_group_provider.BindGroupProvider)

	AddInstance() (uint32, error)

	RemoveInstance(index uint32) (uint32, bool)

	// Grow increases the instance capacity to newMax, preserving all existing data.
	// No-op if newMax is less than or equal to the current capacity.
	Grow(newMax uint32)

	// SetMaxInstances reallocates storage for maxInstances and drops every instance.
	SetMaxInstances(maxInstances uint32)

	InstanceCount() uint32

	MaxInstances() uint32

	VisibleCount() uint32

	DroppedCount() uint32

	SetInstanceTransform(index uint32, posXYZ, scaleXYZ [3]float32)

	SetInstanceRotation(index uint32, rotSpeedXYZ, rotXYZ [3]float32)

	SetInstanceData(index uint32, posXYZ, scaleXYZ, rotSpeedXYZ, rotXYZ [3]float32)

	InstanceTransform(index uint32) (pos, scale [3]float32)

	InstanceRotation(index uint32) (rotSpeed, rot [3]float32)

	InstanceMatrix(index uint32) mgl32.Mat4

	SetInstanceVisible(index uint32, visible bool)

	InstanceVisible(index uint32) bool

	StagedWriteData() []bind_group_provider.BufferWrite

	Flush(globalsBinding, stateBinding, modelBinding int) uint32

	PrepareFrame(deltaTime float32, out FrameOutput) uint32

	Release()
}

var _ AnimatorBackend = &rigidAnimatorBackendImpl{}

// newRigidAnimatorBackend creates a rigid backend with the default capacity.
//
// Returns:
//   - *rigidAnimatorBackendImpl: the backend
func newRigidAnimatorBackend() *rigidAnimatorBackendImpl {
	s := &rigidAnimatorBackendImpl{
		mu:              &sync.Mutex{},
		instances:       newInstanceSet(defaultMaxInstances),
		perFrameSlice:   make([]GPUAnimationGlobals, 1),
		computeProvider: bind_group_provider.NewBindGroupProvider("rigid_animator_compute"),
		stagedWriteData: make([]bind_group_provider.BufferWrite, 0, 4),
	}
	s.stagingUniform = make([]byte, (&GPUAnimationGlobals{}).Size())
	return s
}

// defaultMaxInstances is the initial capacity before WithMaxInstances or auto-grow.
const defaultMaxInstances = 200

func (s *rigidAnimatorBackendImpl) ComputeBindGroupProvider() bind_group_provider.BindGroupProvider {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.computeProvider
}

func (s *rigidAnimatorBackendImpl) SetComputeBindGroupProvider(provider bind_group_provider.BindGroupProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.computeProvider = provider
}

func (s *rigidAnimatorBackendImpl) AddInstance() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instances.add(), nil
}

func (s *rigidAnimatorBackendImpl) RemoveInstance(index uint32) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.instances.valid(index) {
		return 0, false
	}
	return s.instances.swapRemove(index)
}

func (s *rigidAnimatorBackendImpl) Grow(newMax uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances.grow(newMax)
}

func (s *rigidAnimatorBackendImpl) SetMaxInstances(maxInstances uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances.reset(maxInstances)
}

func (s *rigidAnimatorBackendImpl) InstanceCount() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instances.instanceCount
}

func (s *rigidAnimatorBackendImpl) MaxInstances() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instances.maxInstances
}

func (s *rigidAnimatorBackendImpl) VisibleCount() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instances.visibleCount()
}

func (s *rigidAnimatorBackendImpl) DroppedCount() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDropped
}

func (s *rigidAnimatorBackendImpl) SetInstanceTransform(index uint32, posXYZ, scaleXYZ [3]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.instances.valid(index) {
		return
	}
	s.instances.setTransform(index, posXYZ, scaleXYZ)
}

func (s *rigidAnimatorBackendImpl) SetInstanceRotation(index uint32, rotSpeedXYZ, rotXYZ [3]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.instances.valid(index) {
		return
	}
	s.instances.setRotation(index, rotSpeedXYZ, rotXYZ)
}

func (s *rigidAnimatorBackendImpl) SetInstanceData(index uint32, posXYZ, scaleXYZ, rotSpeedXYZ, rotXYZ [3]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.instances.valid(index) {
		return
	}
	s.instances.setData(index, posXYZ, scaleXYZ, rotSpeedXYZ, rotXYZ)
}

func (s *rigidAnimatorBackendImpl) InstanceTransform(index uint32) (pos, scale [3]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.instances.valid(index) {
		return
	}
	return s.instances.pos[index], s.instances.scale[index]
}

func (s *rigidAnimatorBackendImpl) InstanceRotation(index uint32) (rotSpeed, rot [3]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.instances.valid(index) {
		return
	}
	return s.instances.rotSpeed[index], s.instances.rot[index]
}

func (s *rigidAnimatorBackendImpl) InstanceMatrix(index uint32) mgl32.Mat4 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.instances.valid(index) {
		return mgl32.Ident4()
	}
	return s.instances.models[index]
}

func (s *rigidAnimatorBackendImpl) SetInstanceVisible(index uint32, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.instances.valid(index) {
		return
	}
	s.instances.visible[index] = visible
}

func (s *rigidAnimatorBackendImpl) InstanceVisible(index uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instances.valid(index) && s.instances.visible[index]
}

func (s *rigidAnimatorBackendImpl) StagedWriteData() []bind_group_provider.BufferWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.stagedWriteData
	s.stagedWriteData = make([]bind_group_provider.BufferWrite, 0, cap(w))
	return w
}

func (s *rigidAnimatorBackendImpl) Flush(globalsBinding, _, modelBinding int) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(globalsBinding, modelBinding, 0)
}

// flushLocked stages the per-frame globals and the dirty world matrix range, first growing the
// provider's declared buffer sizes to hold every instance the set can address.
// It returns the number of instances whose world matrix was staged.
func (s *rigidAnimatorBackendImpl) flushLocked(globalsBinding, modelBinding int, boneCount uint32) uint32 {
	bind_group_provider.EnsureBufferSize(s.computeProvider, globalsBinding, uint64((&GPUAnimationGlobals{}).Size()))
	bind_group_provider.EnsureBufferSize(s.computeProvider, modelBinding,
		uint64(s.instances.maxInstances)*uint64((&GPUInstanceData{}).Size()))

	s.perFrameSlice[0] = GPUAnimationGlobals{
		InstanceCount: s.instances.instanceCount,
		VisibleCount:  s.lastVisible,
		BoneCount:     boneCount,
		MatrixOffset:  s.lastOffset,
	}
	raw := common.SliceToBytes(s.perFrameSlice)
	buf := s.stagingUniform[:len(raw)]
	copy(buf, raw)
	s.stagedWriteData = append(s.stagedWriteData, bind_group_provider.BufferWrite{
		Provider: s.computeProvider,
		Binding:  globalsBinding,
		Offset:   0,
		Data:     buf,
	})

	start, end, ok := s.instances.modelDirty.take()
	if !ok {
		return 0
	}
	raw = common.SliceToBytes(s.instances.models[start:end])
	s.stagingModel = stage(s.stagingModel, raw)
	s.stagedWriteData = append(s.stagedWriteData, bind_group_provider.BufferWrite{
		Provider: s.computeProvider,
		Binding:  modelBinding,
		Offset:   uint64(start) * uint64((&GPUInstanceData{}).Size()),
		Data:     s.stagingModel[:len(raw)],
	})
	return end - start
}

// stage copies raw into the reusable buffer dst, growing it when needed.
func stage(dst, raw []byte) []byte {
	if cap(dst) < len(raw) {
		dst = make([]byte, len(raw))
	}
	dst = dst[:len(raw)]
	copy(dst, raw)
	return dst
}

func (s *rigidAnimatorBackendImpl) PrepareFrame(deltaTime float32, out FrameOutput) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.instances.spin(deltaTime)

	limit := out.capacity(0)
	var n uint32
	for i := uint32(0); i < s.instances.instanceCount && n < limit; i++ {
		if !s.instances.visible[i] {
			continue
		}
		out.Ranges[n] = GPUInstanceRange{Offset: out.BaseOffset}
		out.Models[n] = s.instances.models[i]
		n++
	}
	s.lastDropped = s.instances.visibleCount() - n
	s.lastVisible = n
	s.lastOffset = out.BaseOffset
	return n
}

func (s *rigidAnimatorBackendImpl) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

func (s *rigidAnimatorBackendImpl) releaseLocked() {
	if s.computeProvider != nil {
		s.computeProvider.Release()
	}
	s.instances.reset(0)
	s.perFrameSlice = make([]GPUAnimationGlobals, 1)
	s.stagedWriteData = nil
	s.stagingModel = nil
}

// Rigid instances have no playback state.

func (s *rigidAnimatorBackendImpl) BoneCount() uint32 { return 0 }

func (s *rigidAnimatorBackendImpl) PlayAnimation(_, _ uint32) {}

func (s *rigidAnimatorBackendImpl) BlendToAnimation(_, _ uint32, _ float32) {}

func (s *rigidAnimatorBackendImpl) SetBlend(_, _ uint32, _ float32) {}

func (s *rigidAnimatorBackendImpl) CancelBlend(_ uint32) {}

func (s *rigidAnimatorBackendImpl) SetAnimationTime(_ uint32, _ float32) {}

func (s *rigidAnimatorBackendImpl) SetAnimationSpeed(_ uint32, _ float32) {}

func (s *rigidAnimatorBackendImpl) IsBlending(_ uint32) bool { return false }

func (s *rigidAnimatorBackendImpl) BlendProgress(_ uint32) float32 { return 0 }

func (s *rigidAnimatorBackendImpl) InstanceState(_ uint32) (animation.StateSnapshot, bool) {
	return animation.StateSnapshot{}, false
}

func (s *rigidAnimatorBackendImpl) RestoreInstanceState(_ uint32, _ animation.StateSnapshot) bool {
	return false
}
