package animation

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// slideAnimation moves the root along +Z at one unit per tick for 4 ticks.
func slideAnimation() model.ImportedAnimation {
	return model.ImportedAnimation{
		Name:           "slide",
		DurationTicks:  4,
		TicksPerSecond: 1,
		Channels: []model.ImportedChannel{{
			NodeName: "root",
			PositionKeys: vecKeys(
				0.0, [3]float32{0, 0, 0},
				4.0, [3]float32{0, 0, 4},
			),
			RotationKeys: constRot(0, identityRot),
			ScaleKeys:    unitScale(),
		}},
	}
}

func scenarioClips(t *testing.T) (*Skeleton, []*AnimationClip) {
	t.Helper()
	skel := singleBoneSkeleton(t)
	a, err := NewAnimationClip(scenarioAnimation(), skel)
	require.NoError(t, err)
	b, err := NewAnimationClip(slideAnimation(), skel)
	require.NoError(t, err)
	return skel, []*AnimationClip{a, b}
}

func TestStateConcreteScenario(t *testing.T) {
	skel, clips := scenarioClips(t)
	eval := NewPoseEvaluator(skel)
	pose := NewPose(skel.Len())

	s := NewInstanceAnimationState()
	s.Advance(0.5, clips)
	assert.InDelta(t, 0.5, s.PlayTimePos(), 1e-6)
	eval.Evaluate(&s, clips, pose)
	assertVec3InDelta(t, mgl32.Vec3{5, 0, 0}, pose.Local[0].Translation, 1e-4)

	s = NewInstanceAnimationState()
	s.Advance(2.0, clips)
	assert.Equal(t, float32(0), s.PlayTimePos())
	eval.Evaluate(&s, clips, pose)
	assertVec3InDelta(t, mgl32.Vec3{0, 0, 0}, pose.Local[0].Translation, 1e-4)
}

func TestStateAdvanceWraps(t *testing.T) {
	_, clips := scenarioClips(t)

	s := NewInstanceAnimationState()
	for range 7 {
		s.Advance(0.5, clips)
	}
	assert.InDelta(t, 1.5, s.PlayTimePos(), 1e-5)

	s = NewInstanceAnimationState()
	s.SetSpeedFactor(-1)
	s.Advance(0.5, clips)
	assert.InDelta(t, 1.5, s.PlayTimePos(), 1e-5, "negative speed wraps into range")

	s = NewInstanceAnimationState()
	s.SetSpeedFactor(2)
	s.Advance(0.75, clips)
	assert.InDelta(t, 1.5, s.PlayTimePos(), 1e-5)

	s = NewInstanceAnimationState()
	s.SetPlayTimePos(9)
	s.Advance(0, clips)
	assert.InDelta(t, 1, s.PlayTimePos(), 1e-5, "scrubbed time wraps on the next advance")
}

func TestStateAdvanceNoClips(t *testing.T) {
	s := NewInstanceAnimationState()
	s.SetPlayTimePos(3)
	s.Advance(1, nil)
	assert.Equal(t, float32(3), s.PlayTimePos())
}

func TestStateBlendAdvancesIndependently(t *testing.T) {
	_, clips := scenarioClips(t)

	s := NewInstanceAnimationState()
	s.SetBlend(1, 0.5)
	s.Advance(3, clips)
	assert.InDelta(t, 1, s.PlayTimePos(), 1e-5, "primary wraps over 2 ticks")
	assert.InDelta(t, 3, s.BlendTimePos(), 1e-5, "secondary wraps over 4 ticks")
	assert.True(t, s.Blending())
	assert.False(t, s.BlendRamping())
	assert.Equal(t, float32(0.5), s.BlendFactor())

	s.SetBlend(1, 0.25)
	assert.InDelta(t, 3, s.BlendTimePos(), 1e-5, "same secondary keeps its position")

	s.SetBlend(0, 2)
	assert.Equal(t, float32(1), s.BlendFactor())
	assert.Zero(t, s.BlendTimePos())

	s.ClearBlend()
	assert.False(t, s.Blending())
	assert.Zero(t, s.BlendFactor())
}

func TestStateBlendToPromotes(t *testing.T) {
	_, clips := scenarioClips(t)

	s := NewInstanceAnimationState()
	s.Advance(0.5, clips)
	s.BlendTo(1, 1)
	assert.True(t, s.BlendRamping())

	s.Advance(0.5, clips)
	assert.True(t, s.Blending())
	assert.InDelta(t, 0.5, s.BlendFactor(), 1e-6)
	assert.InDelta(t, 0.5, s.BlendTimePos(), 1e-6)

	s.Advance(0.6, clips)
	assert.False(t, s.Blending())
	assert.Equal(t, uint32(1), s.ClipIndex())
	assert.InDelta(t, 1.1, s.PlayTimePos(), 1e-5, "promoted clip keeps its play position")

	s.BlendTo(0, 0)
	assert.False(t, s.Blending())
	assert.Equal(t, uint32(0), s.ClipIndex())
	assert.Zero(t, s.PlayTimePos())
}

func TestStatePlayResets(t *testing.T) {
	_, clips := scenarioClips(t)
	s := NewInstanceAnimationState()
	s.SetBlend(1, 0.3)
	s.Advance(1.2, clips)

	s.Play(1)
	assert.Equal(t, uint32(1), s.ClipIndex())
	assert.Zero(t, s.PlayTimePos())
	assert.False(t, s.Blending())
}

func TestStateSnapshotRoundTrip(t *testing.T) {
	_, clips := scenarioClips(t)
	s := NewInstanceAnimationState()
	s.SetSpeedFactor(1.5)
	s.BlendTo(1, 4)
	s.Advance(1, clips)

	snap := s.Snapshot()
	data, err := yaml.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), "blend_clip_index: 1")

	var decoded StateSnapshot
	require.NoError(t, yaml.Unmarshal(data, &decoded))

	restored := NewInstanceAnimationState()
	restored.Restore(decoded)
	assert.Equal(t, s, restored)
}
