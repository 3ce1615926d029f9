package animation

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var identityRot = [4]float32{0, 0, 0, 1}

func identityMat() [16]float32 {
	return [16]float32(mgl32.Ident4())
}

func vecKeys(pairs ...any) []model.VectorKeyframe {
	keys := make([]model.VectorKeyframe, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		keys = append(keys, model.VectorKeyframe{Time: float32(pairs[i].(float64)), Value: pairs[i+1].([3]float32)})
	}
	return keys
}

func constRot(t float32, q [4]float32) []model.QuaternionKeyframe {
	return []model.QuaternionKeyframe{{Time: t, Value: q}}
}

func unitScale() []model.VectorKeyframe {
	return []model.VectorKeyframe{{Time: 0, Value: [3]float32{1, 1, 1}}}
}

// scenarioChannel is the single-bone ping-pong translation track: (0,0,0) -> (10,0,0) -> (0,0,0) over 2 ticks.
func scenarioChannel(name string) model.ImportedChannel {
	return model.ImportedChannel{
		NodeName: name,
		PositionKeys: vecKeys(
			0.0, [3]float32{0, 0, 0},
			1.0, [3]float32{10, 0, 0},
			2.0, [3]float32{0, 0, 0},
		),
		RotationKeys: constRot(0, identityRot),
		ScaleKeys:    unitScale(),
	}
}

func scenarioAnimation() model.ImportedAnimation {
	return model.ImportedAnimation{
		Name:           "pingpong",
		DurationTicks:  2,
		TicksPerSecond: 1,
		Channels:       []model.ImportedChannel{scenarioChannel("root")},
	}
}

func singleBoneSkeleton(t *testing.T) *Skeleton {
	t.Helper()
	s, err := NewSkeleton([]model.ImportedBone{
		{ID: 0, Name: "root", ParentID: -1, InverseBindMatrix: identityMat()},
	}, [16]float32{})
	require.NoError(t, err)
	return s
}

func assertVec3InDelta(t *testing.T, expected, actual mgl32.Vec3, delta float64, msgAndArgs ...any) {
	t.Helper()
	for i := range 3 {
		assert.InDelta(t, expected[i], actual[i], delta, msgAndArgs...)
	}
}

func assertQuatInDelta(t *testing.T, expected, actual mgl32.Quat, delta float64, msgAndArgs ...any) {
	t.Helper()
	// q and -q are the same rotation.
	if expected.Dot(actual) < 0 {
		actual = actual.Scale(-1)
	}
	assert.InDelta(t, expected.W, actual.W, delta, msgAndArgs...)
	assertVec3InDelta(t, expected.V, actual.V, delta, msgAndArgs...)
}

func assertMat4InDelta(t *testing.T, expected, actual mgl32.Mat4, delta float64, msgAndArgs ...any) {
	t.Helper()
	for i := range 16 {
		assert.InDelta(t, expected[i], actual[i], delta, msgAndArgs...)
	}
}
