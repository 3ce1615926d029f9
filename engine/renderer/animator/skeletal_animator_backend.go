package animator

import (
	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/animation"
	"github.com/Carmen-Shannon/oxy-anim/engine/asset"
	"github.com/Carmen-Shannon/oxy-anim/engine/renderer/bind_group_provider"
)

// skeletalAnimatorBackendImpl is the concrete implementation of the skeletal animator backend.
// It shares instance storage and world transforms with the rigid backend and adds per-instance
// playback state, CPU pose evaluation and staging of the playback state for the GPU.
type skeletalAnimatorBackendImpl struct {
	*rigidAnimatorBackendImpl

	model     *asset.Model
	evaluator *animation.PoseEvaluator
	boneCount uint32

	// states and stateData are sized to the instance capacity, like the instance set.
	states    []animation.InstanceAnimationState
	stateData []GPUSkeletalAnimationData

	stateDirty dirtyRange

	stagingState []byte
}

// skeletalAnimatorBackend defines the playback methods of the skeletal backend.
// Methods shared with the rigid backend (transforms, visibility, lifecycle, capacity management)
// are inherited through AnimatorBackend and not repeated here.
type skeletalAnimatorBackend interface {
	// BoneCount returns the number of bones in the model's skeleton, which is also the number of
	// skinning matrices each visible instance writes per frame.
	//
	// Returns:
	//   - uint32: the number of bones
	BoneCount() uint32

	// PlayAnimation switches an instance to a clip, restarting it from time 0 and cancelling any blend.
	// Playback loops.
	//
	// Parameters:
	//   - instanceIndex: the instance to update
	//   - clipIndex: the clip to play
	PlayAnimation(instanceIndex, clipIndex uint32)

	// BlendToAnimation starts a timed transition to targetClipIndex. The blend factor ramps from 0 to 1
	// over blendDuration seconds, after which the target becomes the instance's clip.
	//
	// Parameters:
	//   - instanceIndex: the instance to update
	//   - targetClipIndex: the clip to transition to
	//   - blendDuration: the transition length in seconds (non-positive switches immediately)
	BlendToAnimation(instanceIndex, targetClipIndex uint32, blendDuration float32)

	// SetBlend mixes a second clip into the instance at a fixed factor until CancelBlend or
	// PlayAnimation is called.
	//
	// Parameters:
	//   - instanceIndex: the instance to update
	//   - clipIndex: the secondary clip
	//   - factor: the blend weight, clamped into [0, 1]
	SetBlend(instanceIndex, clipIndex uint32, factor float32)

	// CancelBlend stops any blend on the instance and keeps its current clip.
	//
	// Parameters:
	//   - instanceIndex: the instance to update
	CancelBlend(instanceIndex uint32)

	// SetAnimationTime scrubs the instance's current clip to the given time in seconds.
	// The time is converted to ticks with the clip's tick rate and wrapped into the clip.
	//
	// Parameters:
	//   - instanceIndex: the instance to update
	//   - time: the playback position in seconds
	SetAnimationTime(instanceIndex uint32, time float32)

	// SetAnimationSpeed sets the playback speed multiplier of the instance. Negative values play backwards.
	//
	// Parameters:
	//   - instanceIndex: the instance to update
	//   - speed: the speed multiplier (1 is normal speed)
	SetAnimationSpeed(instanceIndex uint32, speed float32)

	// IsBlending reports whether the instance is currently mixing two clips.
	//
	// Parameters:
	//   - instanceIndex: the instance to query
	//
	// Returns:
	//   - bool: true if a blend is active
	IsBlending(instanceIndex uint32) bool

	// BlendProgress returns the current blend factor of the instance, or 0 when not blending.
	//
	// Parameters:
	//   - instanceIndex: the instance to query
	//
	// Returns:
	//   - float32: the blend factor in [0, 1]
	BlendProgress(instanceIndex uint32) float32

	// InstanceState copies the playback state of an instance.
	//
	// Parameters:
	//   - instanceIndex: the instance to query
	//
	// Returns:
	//   - animation.StateSnapshot: the persisted playback fields
	//   - bool: false if the index is out of range or the backend has no playback state
	InstanceState(instanceIndex uint32) (animation.StateSnapshot, bool)

	// RestoreInstanceState overwrites the playback state of an instance with a snapshot.
	//
	// Parameters:
	//   - instanceIndex: the instance to update
	//   - snap: a snapshot taken by InstanceState
	//
	// Returns:
	//   - bool: false if the index is out of range or the backend has no playback state
	RestoreInstanceState(instanceIndex uint32, snap animation.StateSnapshot) bool
}

var _ AnimatorBackend = &skeletalAnimatorBackendImpl{}

// newSkeletalAnimatorBackend creates a skeletal backend for a model with a skeleton.
//
// Parameters:
//   - m: the model whose skeleton and clips drive every instance
//
// Returns:
//   - *skeletalAnimatorBackendImpl: the backend
func newSkeletalAnimatorBackend(m *asset.Model) *skeletalAnimatorBackendImpl {
	s := &skeletalAnimatorBackendImpl{
		rigidAnimatorBackendImpl: newRigidAnimatorBackend(),
		model:                    m,
		evaluator:                animation.NewPoseEvaluator(m.Skeleton),
		boneCount:                uint32(m.BoneCount()),
	}
	s.computeProvider = bind_group_provider.NewBindGroupProvider("skeletal_animator_compute")
	s.resetStates(s.instances.maxInstances)
	return s
}

func (s *skeletalAnimatorBackendImpl) resetStates(n uint32) {
	s.states = make([]animation.InstanceAnimationState, n)
	s.stateData = make([]GPUSkeletalAnimationData, n)
	s.stateDirty = dirtyRange{}
}

// syncCapacity grows the state slices to match the instance set after an auto-grow.
func (s *skeletalAnimatorBackendImpl) syncCapacity() {
	n := s.instances.maxInstances
	if uint32(len(s.states)) >= n {
		return
	}
	live := s.instances.instanceCount
	s.states = append(make([]animation.InstanceAnimationState, 0, n), s.states[:live]...)[:n]
	s.stateData = append(make([]GPUSkeletalAnimationData, 0, n), s.stateData[:live]...)[:n]
	s.stateDirty.markRange(0, live)
}

func (s *skeletalAnimatorBackendImpl) BoneCount() uint32 {
	return s.boneCount
}

func (s *skeletalAnimatorBackendImpl) AddInstance() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.instances.add()
	s.syncCapacity()
	s.states[idx] = animation.NewInstanceAnimationState()
	s.mirror(idx)
	return idx, nil
}

func (s *skeletalAnimatorBackendImpl) RemoveInstance(index uint32) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.instances.valid(index) {
		return 0, false
	}
	last, swapped := s.instances.swapRemove(index)
	if swapped {
		s.states[index] = s.states[last]
		s.mirror(index)
	}
	s.states[last] = animation.InstanceAnimationState{}
	s.stateData[last] = GPUSkeletalAnimationData{}
	s.stateDirty.clamp(s.instances.instanceCount)
	return last, swapped
}

func (s *skeletalAnimatorBackendImpl) Grow(newMax uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.instances.grow(newMax) {
		s.syncCapacity()
	}
}

func (s *skeletalAnimatorBackendImpl) SetMaxInstances(maxInstances uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances.reset(maxInstances)
	s.resetStates(maxInstances)
}

// withState runs fn on the playback state of a live instance and mirrors the result.
func (s *skeletalAnimatorBackendImpl) withState(index uint32, fn func(st *animation.InstanceAnimationState)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.instances.valid(index) {
		return false
	}
	fn(&s.states[index])
	s.mirror(index)
	return true
}

func (s *skeletalAnimatorBackendImpl) PlayAnimation(instanceIndex, clipIndex uint32) {
	s.withState(instanceIndex, func(st *animation.InstanceAnimationState) {
		st.Play(s.resolve(clipIndex))
	})
}

func (s *skeletalAnimatorBackendImpl) BlendToAnimation(instanceIndex, targetClipIndex uint32, blendDuration float32) {
	s.withState(instanceIndex, func(st *animation.InstanceAnimationState) {
		st.BlendTo(s.resolve(targetClipIndex), blendDuration)
	})
}

func (s *skeletalAnimatorBackendImpl) SetBlend(instanceIndex, clipIndex uint32, factor float32) {
	s.withState(instanceIndex, func(st *animation.InstanceAnimationState) {
		st.SetBlend(s.resolve(clipIndex), factor)
	})
}

func (s *skeletalAnimatorBackendImpl) CancelBlend(instanceIndex uint32) {
	s.withState(instanceIndex, func(st *animation.InstanceAnimationState) {
		st.ClearBlend()
	})
}

func (s *skeletalAnimatorBackendImpl) SetAnimationTime(instanceIndex uint32, time float32) {
	s.withState(instanceIndex, func(st *animation.InstanceAnimationState) {
		if len(s.model.Clips) == 0 {
			return
		}
		clip := s.model.Clips[s.resolve(st.ClipIndex())]
		st.SetPlayTimePos(common.WrapTime(time*clip.TicksPerSecond(), clip.Duration()))
	})
}

func (s *skeletalAnimatorBackendImpl) SetAnimationSpeed(instanceIndex uint32, speed float32) {
	s.withState(instanceIndex, func(st *animation.InstanceAnimationState) {
		st.SetSpeedFactor(speed)
	})
}

func (s *skeletalAnimatorBackendImpl) IsBlending(instanceIndex uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instances.valid(instanceIndex) && s.states[instanceIndex].Blending()
}

func (s *skeletalAnimatorBackendImpl) BlendProgress(instanceIndex uint32) float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.instances.valid(instanceIndex) || !s.states[instanceIndex].Blending() {
		return 0
	}
	return s.states[instanceIndex].BlendFactor()
}

func (s *skeletalAnimatorBackendImpl) InstanceState(instanceIndex uint32) (animation.StateSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.instances.valid(instanceIndex) {
		return animation.StateSnapshot{}, false
	}
	return s.states[instanceIndex].Snapshot(), true
}

func (s *skeletalAnimatorBackendImpl) RestoreInstanceState(instanceIndex uint32, snap animation.StateSnapshot) bool {
	return s.withState(instanceIndex, func(st *animation.InstanceAnimationState) {
		st.Restore(snap)
	})
}

func (s *skeletalAnimatorBackendImpl) resolve(clipIndex uint32) uint32 {
	return animation.ResolveClip(clipIndex, len(s.model.Clips))
}

// mirror copies the playback state of one instance into its GPU layout and marks it dirty.
func (s *skeletalAnimatorBackendImpl) mirror(index uint32) {
	s.stateData[index] = gpuState(&s.states[index])
	s.stateDirty.mark(index)
}

func gpuState(st *animation.InstanceAnimationState) GPUSkeletalAnimationData {
	return GPUSkeletalAnimationData{
		ClipIndex:      st.ClipIndex(),
		PlayTime:       st.PlayTimePos(),
		BlendFactor:    st.BlendFactor(),
		BlendClipIndex: st.BlendClipIndex(),
		BlendTime:      st.BlendTimePos(),
		Speed:          st.SpeedFactor(),
	}
}

// PrepareFrame advances every instance by deltaTime, then evaluates the pose of each visible instance
// straight into its slice of out.Matrices. Instances that do not fit in out are skipped.
//
// Parameters:
//   - deltaTime: elapsed time since the last frame in seconds
//   - out: the region of the pose batch owned by this animator
//
// Returns:
//   - uint32: the number of instances written
func (s *skeletalAnimatorBackendImpl) PrepareFrame(deltaTime float32, out FrameOutput) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.instances.spin(deltaTime)

	clips := s.model.Clips
	count := s.instances.instanceCount
	for i := uint32(0); i < count; i++ {
		s.states[i].Advance(deltaTime, clips)
		s.stateData[i] = gpuState(&s.states[i])
	}
	s.stateDirty.markRange(0, count)

	bones := s.boneCount
	limit := out.capacity(bones)
	var n uint32
	for i := uint32(0); i < count && n < limit; i++ {
		if !s.instances.visible[i] {
			continue
		}
		start := n * bones
		s.evaluator.EvaluateInto(&s.states[i], clips, out.Matrices[start:start+bones])
		out.Ranges[n] = GPUInstanceRange{Offset: out.BaseOffset + start, Count: bones}
		out.Models[n] = s.instances.models[i]
		n++
	}
	s.lastDropped = s.instances.visibleCount() - n
	s.lastVisible = n
	s.lastOffset = out.BaseOffset
	return n
}

// Flush stages the per-frame globals, the dirty playback state range and the dirty world matrix range.
//
// Parameters:
//   - globalsBinding: the binding of the GPUAnimationGlobals uniform
//   - stateBinding: the binding of the GPUSkeletalAnimationData storage buffer
//   - modelBinding: the binding of the GPUInstanceData storage buffer
//
// Returns:
//   - uint32: the number of instances whose playback state or world matrix was staged
func (s *skeletalAnimatorBackendImpl) Flush(globalsBinding, stateBinding, modelBinding int) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	flushed := s.flushLocked(globalsBinding, modelBinding, s.boneCount)
	bind_group_provider.EnsureBufferSize(s.computeProvider, stateBinding,
		uint64(s.instances.maxInstances)*uint64((&GPUSkeletalAnimationData{}).Size()))

	start, end, ok := s.stateDirty.take()
	if !ok {
		return flushed
	}
	raw := common.SliceToBytes(s.stateData[start:end])
	s.stagingState = stage(s.stagingState, raw)
	s.stagedWriteData = append(s.stagedWriteData, bind_group_provider.BufferWrite{
		Provider: s.computeProvider,
		Binding:  stateBinding,
		Offset:   uint64(start) * uint64((&GPUSkeletalAnimationData{}).Size()),
		Data:     s.stagingState,
	})
	return max(flushed, end-start)
}

func (s *skeletalAnimatorBackendImpl) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
	s.resetStates(0)
	s.stagingState = nil
}
