package animation

import (
	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Pose is the evaluated transform set of one instance, indexed by bone id.
type Pose struct {
	// Local holds each bone's transform relative to its parent.
	Local []common.Transform

	// Global holds each bone's model-space matrix.
	Global []mgl32.Mat4

	// Skinning holds the matrices consumed by the skinning shader:
	// GlobalInverse * Global * InverseBind.
	Skinning []mgl32.Mat4
}

// NewPose allocates a pose for boneCount bones.
func NewPose(boneCount int) *Pose {
	p := &Pose{}
	p.resize(boneCount)
	return p
}

func (p *Pose) resize(n int) {
	if cap(p.Local) < n {
		p.Local = make([]common.Transform, n)
		p.Global = make([]mgl32.Mat4, n)
		p.Skinning = make([]mgl32.Mat4, n)
		return
	}
	p.Local = p.Local[:n]
	p.Global = p.Global[:n]
	p.Skinning = p.Skinning[:n]
}

// PoseEvaluator samples clips for a skeleton and composes the bone hierarchy.
// An evaluator keeps a scratch pose, so a single evaluator must not be shared between goroutines;
// the skeleton and clips it reads are immutable and may be shared freely.
type PoseEvaluator struct {
	skeleton *Skeleton
	scratch  *Pose
}

// NewPoseEvaluator creates an evaluator for the given skeleton.
func NewPoseEvaluator(skeleton *Skeleton) *PoseEvaluator {
	return &PoseEvaluator{
		skeleton: skeleton,
		scratch:  NewPose(skeleton.Len()),
	}
}

// Skeleton returns the skeleton the evaluator composes against.
func (e *PoseEvaluator) Skeleton() *Skeleton {
	return e.skeleton
}

// Evaluate computes the pose of one instance.
//
// Every bone starts from its rest transform. Each bound channel of the primary clip overrides
// its bone with the sample at the primary play position. While blending, the secondary clip is
// sampled at its own play position and mixed per bone (linear for translation and scale,
// spherical for rotation). Finally the hierarchy is composed parent-first.
//
// Parameters:
//   - state: the instance playback state
//   - clips: the clips of the instance's model
//   - pose: the destination, resized to the skeleton's bone count
func (e *PoseEvaluator) Evaluate(state *InstanceAnimationState, clips []*AnimationClip, pose *Pose) {
	bones := e.skeleton.Bones()
	pose.resize(len(bones))
	e.resetLocal(pose)

	if len(clips) > 0 {
		primary := clips[ResolveClip(state.ClipIndex(), len(clips))]
		factor := state.BlendFactor()

		switch {
		case !state.Blending() || factor <= 0:
			applyClip(primary, state.PlayTimePos(), pose.Local)
		case factor >= 1:
			secondary := clips[ResolveClip(state.BlendClipIndex(), len(clips))]
			applyClip(secondary, state.BlendTimePos(), pose.Local)
		default:
			secondary := clips[ResolveClip(state.BlendClipIndex(), len(clips))]
			applyClip(primary, state.PlayTimePos(), pose.Local)
			e.blendClip(secondary, state.BlendTimePos(), factor, primary, pose.Local)
		}
	}

	e.compose(pose)
}

// EvaluateInto evaluates the pose with the internal scratch buffer and copies the skinning
// matrices into dst, which must hold at least one matrix per bone.
//
// Parameters:
//   - state: the instance playback state
//   - clips: the clips of the instance's model
//   - dst: the destination region of the upload buffer
func (e *PoseEvaluator) EvaluateInto(state *InstanceAnimationState, clips []*AnimationClip, dst []mgl32.Mat4) {
	e.Evaluate(state, clips, e.scratch)
	copy(dst, e.scratch.Skinning)
}

func (e *PoseEvaluator) resetLocal(pose *Pose) {
	for i, b := range e.skeleton.Bones() {
		pose.Local[i] = b.Rest
	}
}

func applyClip(clip *AnimationClip, t float32, local []common.Transform) {
	for _, ch := range clip.Channels() {
		id := ch.BoneID()
		if id < 0 || int(id) >= len(local) {
			continue
		}
		local[id] = ch.Sample(t)
	}
}

// blendClip mixes the secondary clip into local, which already holds the primary pose.
// Bones animated by only one of the two clips blend against the rest transform.
func (e *PoseEvaluator) blendClip(secondary *AnimationClip, t, factor float32, primary *AnimationClip, local []common.Transform) {
	bones := e.skeleton.Bones()
	for i := range local {
		id := int32(i)
		chB := secondary.ChannelForBone(id)
		if chB == nil && primary.ChannelForBone(id) == nil {
			continue
		}
		target := bones[i].Rest
		if chB != nil {
			target = chB.Sample(t)
		}
		local[i] = BlendTransforms(local[i], target, factor)
	}
}

// BlendTransforms mixes two local transforms: linear for translation and scale, shortest-arc
// spherical for rotation.
func BlendTransforms(a, b common.Transform, factor float32) common.Transform {
	return common.Transform{
		Translation: common.MixVec3(a.Translation, b.Translation, factor),
		Rotation:    common.SlerpQuat(a.Rotation, b.Rotation, factor),
		Scale:       common.MixVec3(a.Scale, b.Scale, factor),
	}
}

func (e *PoseEvaluator) compose(pose *Pose) {
	bones := e.skeleton.Bones()
	globalInverse := e.skeleton.GlobalInverse()
	for _, id := range e.skeleton.Order() {
		local := pose.Local[id].Mat4()
		if parent := bones[id].ParentID; parent >= 0 {
			pose.Global[id] = pose.Global[parent].Mul4(local)
		} else {
			pose.Global[id] = local
		}
		pose.Skinning[id] = globalInverse.Mul4(pose.Global[id]).Mul4(bones[id].InverseBind)
	}
}
