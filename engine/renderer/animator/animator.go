package animator

import (
	"fmt"
	"log"

	"github.com/Carmen-Shannon/oxy-anim/engine/animation"
	"github.com/Carmen-Shannon/oxy-anim/engine/asset"
	"github.com/Carmen-Shannon/oxy-anim/engine/renderer/bind_group_provider"
	"github.com/go-gl/mathgl/mgl32"
)

// animator is the implementation of the Animator interface.
type animator struct {
	backendType AnimatorBackendType
	backend     AnimatorBackend
	handle      asset.Handle
	model       *asset.Model
}

// Animator defines the public interface for the animation system.
//
// An Animator drives every instance of one model from the asset library. It owns per-instance
// world transforms and playback state, evaluates the skinning matrices of visible instances each
// frame into the region of the pose batch the scene hands it, and stages GPU buffer writes for the
// playback state and world matrices.
//
// Methods specific to the skeletal backend no-op when called on an Animator using the rigid
// backend: PlayAnimation, BlendToAnimation, SetBlend, CancelBlend, SetAnimationTime,
// SetAnimationSpeed, IsBlending, BlendProgress, InstanceState and RestoreInstanceState.
//
// Out-of-range instance indexes are ignored by setters and return zero values from getters.
type Animator interface {
	// Handle returns the asset handle of the model this animator drives.
	//
	// Returns:
	//   - asset.Handle: the model handle
	Handle() asset.Handle

	// Model returns the model this animator drives.
	//
	// Returns:
	//   - *asset.Model: the immutable model
	Model() *asset.Model

	// BackendType returns the type of backend this animator is using.
	//
	// Returns:
	//   - AnimatorBackendType: BackendTypeRigid or BackendTypeSkeletal
	BackendType() AnimatorBackendType

	// BoneCount returns the number of skinning matrices each visible instance produces per frame.
	//
	// Returns:
	//   - uint32: the bone count, 0 for rigid models
	BoneCount() uint32

	// MaxInstances returns the current instance capacity.
	//
	// Returns:
	//   - uint32: the capacity
	MaxInstances() uint32

	// InstanceCount returns the current number of registered instances.
	//
	// Returns:
	//   - uint32: the number of active instances
	InstanceCount() uint32

	// VisibleCount returns the number of instances that will be evaluated by the next PrepareFrame.
	//
	// Returns:
	//   - uint32: the number of visible instances
	VisibleCount() uint32

	// DroppedCount returns how many visible instances the last PrepareFrame skipped because its
	// output was full, for example when visibility grew after the output was sized.
	//
	// Returns:
	//   - uint32: the number of skipped visible instances
	DroppedCount() uint32

	// ComputeBindGroupProvider returns the BindGroupProvider whose buffers receive this animator's staged writes.
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the compute BindGroupProvider
	ComputeBindGroupProvider() bind_group_provider.BindGroupProvider

	// AddInstance registers a new instance at the origin with unit scale, visible, playing clip 0 from time 0.
	// If the current capacity is exceeded, the backend grows automatically.
	//
	// Returns:
	//   - uint32: the index of the newly registered instance
	//   - error: an error if the instance could not be added
	AddInstance() (uint32, error)

	// Grow increases the maximum instance capacity to newMax, preserving all existing data.
	// No-op if newMax is less than or equal to the current capacity.
	//
	// Parameters:
	//   - newMax: the new maximum number of instances to support
	Grow(newMax uint32)

	// RemoveInstance removes the instance at the given index using a swap-remove strategy.
	// Returns the old last index that was swapped and whether a swap occurred.
	//
	// Parameters:
	//   - index: the instance index to remove
	//
	// Returns:
	//   - uint32: the old last index that was swapped into the removed slot (only meaningful when bool is true)
	//   - bool: true if the last instance was swapped into the removed slot
	RemoveInstance(index uint32) (uint32, bool)

	// SetInstanceTransform sets the position and scale for a specific instance.
	//
	// Parameters:
	//   - index: the instance index to update
	//   - posXYZ: the position as [3]float32 (x, y, z)
	//   - scaleXYZ: the scale as [3]float32 (x, y, z)
	SetInstanceTransform(index uint32, posXYZ, scaleXYZ [3]float32)

	// SetInstanceRotation sets the rotation speed and current rotation for a specific instance.
	//
	// Parameters:
	//   - index: the instance index to update
	//   - rotSpeedXYZ: rotation speed in radians per second around each axis
	//   - rotXYZ: current rotation angles in radians around each axis
	SetInstanceRotation(index uint32, rotSpeedXYZ, rotXYZ [3]float32)

	// SetInstanceData sets all transform data for a specific instance in a single call.
	//
	// Parameters:
	//   - index: the instance index to update
	//   - posXYZ: the position
	//   - scaleXYZ: the scale
	//   - rotSpeedXYZ: rotation speed in radians per second
	//   - rotXYZ: current rotation angles in radians
	SetInstanceData(index uint32, posXYZ, scaleXYZ, rotSpeedXYZ, rotXYZ [3]float32)

	// InstanceTransform returns the position and scale of an instance.
	InstanceTransform(index uint32) (pos, scale [3]float32)

	// InstanceRotation returns the rotation speed and current rotation of an instance.
	InstanceRotation(index uint32) (rotSpeed, rot [3]float32)

	// InstanceMatrix returns the world matrix of an instance, or identity when out of range.
	InstanceMatrix(index uint32) mgl32.Mat4

	// SetInstanceVisible includes or excludes an instance from pose evaluation. Hidden instances
	// keep advancing their playback state.
	//
	// Parameters:
	//   - index: the instance index to update
	//   - visible: whether the instance is evaluated
	SetInstanceVisible(index uint32, visible bool)

	InstanceVisible(index uint32) bool

	// PlayAnimation switches an instance to a clip from time 0 and cancels any blend.
	//
	// Parameters:
	//   - instanceIndex: the instance to update
	//   - clipIndex: the clip to play
	PlayAnimation(instanceIndex, clipIndex uint32)

	// BlendToAnimation starts a timed transition to another clip.
	//
	// Parameters:
	//   - instanceIndex: the instance to update
	//   - targetClipIndex: the clip to transition to
	//   - blendDuration: the transition length in seconds
	BlendToAnimation(instanceIndex, targetClipIndex uint32, blendDuration float32)

	// SetBlend mixes a second clip into the instance at a fixed factor.
	//
	// Parameters:
	//   - instanceIndex: the instance to update
	//   - clipIndex: the secondary clip
	//   - factor: the blend weight in [0, 1]
	SetBlend(instanceIndex, clipIndex uint32, factor float32)

	CancelBlend(instanceIndex uint32)

	// SetAnimationTime scrubs the instance's current clip to a time in seconds.
	SetAnimationTime(instanceIndex uint32, time float32)

	// SetAnimationSpeed sets the playback speed multiplier of the instance.
	SetAnimationSpeed(instanceIndex uint32, speed float32)

	IsBlending(instanceIndex uint32) bool

	BlendProgress(instanceIndex uint32) float32

	// InstanceState copies the playback state of an instance for persistence.
	InstanceState(instanceIndex uint32) (animation.StateSnapshot, bool)

	// RestoreInstanceState overwrites the playback state of an instance.
	RestoreInstanceState(instanceIndex uint32, snap animation.StateSnapshot) bool

	// PrepareFrame advances every instance by deltaTime and writes the skinning matrices, instance
	// ranges and world matrices of the visible instances into out.
	//
	// Parameters:
	//   - deltaTime: elapsed time since the last frame in seconds
	//   - out: the region of the pose batch owned by this animator for the frame
	//
	// Returns:
	//   - uint32: the number of instances written
	PrepareFrame(deltaTime float32, out FrameOutput) uint32

	// Flush stages the per-frame globals and the dirty playback state and world matrix ranges as GPU
	// buffer writes against the compute provider.
	//
	// Parameters:
	//   - globalsBinding: the binding of the GPUAnimationGlobals uniform
	//   - stateBinding: the binding of the GPUSkeletalAnimationData storage buffer (unused by rigid animators)
	//   - modelBinding: the binding of the GPUInstanceData storage buffer
	//
	// Returns:
	//   - uint32: the number of instances that were flushed
	Flush(globalsBinding, stateBinding, modelBinding int) uint32

	// StagedWriteData returns and clears the pending GPU buffer writes.
	//
	// Returns:
	//   - []bind_group_provider.BufferWrite: the slice of pending buffer writes
	StagedWriteData() []bind_group_provider.BufferWrite

	// Release frees all GPU resources held by this animator and its providers.
	Release()
}

var _ Animator = &animator{}

// NewAnimator creates an Animator for a model of the asset library. Models with a skeleton get the
// skeletal backend, models without bones the rigid backend.
//
// Parameters:
//   - lib: the asset library that owns the model
//   - handle: the model handle
//   - options: a variadic list of AnimatorBuilderOption functions to configure the animator
//
// Returns:
//   - Animator: the new animator
//   - error: asset.ErrInvalidHandle if the handle does not resolve
func NewAnimator(lib *asset.Library, handle asset.Handle, options ...AnimatorBuilderOption) (Animator, error) {
	m, err := lib.Model(handle)
	if err != nil {
		return nil, fmt.Errorf("failed to create animator: %w", err)
	}

	a := &animator{handle: handle, model: m}
	if m.BoneCount() > 0 {
		a.backendType = BackendTypeSkeletal
		a.backend = newSkeletalAnimatorBackend(m)
	} else {
		a.backendType = BackendTypeRigid
		a.backend = newRigidAnimatorBackend()
	}

	for _, opt := range options {
		opt(a)
	}
	log.Printf("[Animator] created %s animator for %q (%d bones, %d clips)", a.backendType, m.Name, m.BoneCount(), len(m.Clips))
	return a, nil
}

func (a *animator) Handle() asset.Handle {
	return a.handle
}

func (a *animator) Model() *asset.Model {
	return a.model
}

func (a *animator) BackendType() AnimatorBackendType {
	return a.backendType
}

func (a *animator) BoneCount() uint32 {
	return a.backend.BoneCount()
}

func (a *animator) MaxInstances() uint32 {
	return a.backend.MaxInstances()
}

func (a *animator) InstanceCount() uint32 {
	return a.backend.InstanceCount()
}

func (a *animator) VisibleCount() uint32 {
	return a.backend.VisibleCount()
}

func (a *animator) DroppedCount() uint32 {
	return a.backend.DroppedCount()
}

func (a *animator) ComputeBindGroupProvider() bind_group_provider.BindGroupProvider {
	return a.backend.ComputeBindGroupProvider()
}

func (a *animator) AddInstance() (uint32, error) {
	return a.backend.AddInstance()
}

func (a *animator) Grow(newMax uint32) {
	a.backend.Grow(newMax)
}

func (a *animator) RemoveInstance(index uint32) (uint32, bool) {
	return a.backend.RemoveInstance(index)
}

func (a *animator) SetInstanceTransform(index uint32, posXYZ, scaleXYZ [3]float32) {
	a.backend.SetInstanceTransform(index, posXYZ, scaleXYZ)
}

func (a *animator) SetInstanceRotation(index uint32, rotSpeedXYZ, rotXYZ [3]float32) {
	a.backend.SetInstanceRotation(index, rotSpeedXYZ, rotXYZ)
}

func (a *animator) SetInstanceData(index uint32, posXYZ, scaleXYZ, rotSpeedXYZ, rotXYZ [3]float32) {
	a.backend.SetInstanceData(index, posXYZ, scaleXYZ, rotSpeedXYZ, rotXYZ)
}

func (a *animator) InstanceTransform(index uint32) (pos, scale [3]float32) {
	return a.backend.InstanceTransform(index)
}

func (a *animator) InstanceRotation(index uint32) (rotSpeed, rot [3]float32) {
	return a.backend.InstanceRotation(index)
}

func (a *animator) InstanceMatrix(index uint32) mgl32.Mat4 {
	return a.backend.InstanceMatrix(index)
}

func (a *animator) SetInstanceVisible(index uint32, visible bool) {
	a.backend.SetInstanceVisible(index, visible)
}

func (a *animator) InstanceVisible(index uint32) bool {
	return a.backend.InstanceVisible(index)
}

func (a *animator) PlayAnimation(instanceIndex, clipIndex uint32) {
	a.backend.PlayAnimation(instanceIndex, clipIndex)
}

func (a *animator) BlendToAnimation(instanceIndex, targetClipIndex uint32, blendDuration float32) {
	a.backend.BlendToAnimation(instanceIndex, targetClipIndex, blendDuration)
}

func (a *animator) SetBlend(instanceIndex, clipIndex uint32, factor float32) {
	a.backend.SetBlend(instanceIndex, clipIndex, factor)
}

func (a *animator) CancelBlend(instanceIndex uint32) {
	a.backend.CancelBlend(instanceIndex)
}

func (a *animator) SetAnimationTime(instanceIndex uint32, time float32) {
	a.backend.SetAnimationTime(instanceIndex, time)
}

func (a *animator) SetAnimationSpeed(instanceIndex uint32, speed float32) {
	a.backend.SetAnimationSpeed(instanceIndex, speed)
}

func (a *animator) IsBlending(instanceIndex uint32) bool {
	return a.backend.IsBlending(instanceIndex)
}

func (a *animator) BlendProgress(instanceIndex uint32) float32 {
	return a.backend.BlendProgress(instanceIndex)
}

func (a *animator) InstanceState(instanceIndex uint32) (animation.StateSnapshot, bool) {
	return a.backend.InstanceState(instanceIndex)
}

func (a *animator) RestoreInstanceState(instanceIndex uint32, snap animation.StateSnapshot) bool {
	return a.backend.RestoreInstanceState(instanceIndex, snap)
}

func (a *animator) PrepareFrame(deltaTime float32, out FrameOutput) uint32 {
	return a.backend.PrepareFrame(deltaTime, out)
}

func (a *animator) Flush(globalsBinding, stateBinding, modelBinding int) uint32 {
	return a.backend.Flush(globalsBinding, stateBinding, modelBinding)
}

func (a *animator) StagedWriteData() []bind_group_provider.BufferWrite {
	return a.backend.StagedWriteData()
}

func (a *animator) Release() {
	a.backend.Release()
}
