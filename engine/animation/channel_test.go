package animation

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quatArr(q mgl32.Quat) [4]float32 {
	return [4]float32{q.V[0], q.V[1], q.V[2], q.W}
}

// irregularChannel has tracks with different key counts and unaligned key times.
func irregularChannel() model.ImportedChannel {
	up := mgl32.Vec3{0, 1, 0}
	return model.ImportedChannel{
		NodeName: "hip",
		PositionKeys: vecKeys(
			0.0, [3]float32{0, 0, 0},
			0.3, [3]float32{1, 2, 0},
			1.7, [3]float32{-3, 2, 1},
			2.5, [3]float32{0, 0, 4},
		),
		RotationKeys: []model.QuaternionKeyframe{
			{Time: 0, Value: quatArr(mgl32.QuatRotate(0, up))},
			{Time: 0.9, Value: quatArr(mgl32.QuatRotate(1.2, up))},
			{Time: 2.5, Value: quatArr(mgl32.QuatRotate(2.8, up))},
		},
		ScaleKeys: vecKeys(
			0.0, [3]float32{1, 1, 1},
			1.25, [3]float32{2, 1, 0.5},
		),
	}
}

func TestChannelScenarioSample(t *testing.T) {
	for _, resample := range []bool{false, true} {
		ch, err := LoadChannelData(scenarioChannel("root"), 2, WithResampling(resample))
		require.NoError(t, err)
		assert.Equal(t, resample, ch.Resampled())
		assert.Equal(t, int32(-1), ch.BoneID())

		assertVec3InDelta(t, mgl32.Vec3{5, 0, 0}, ch.Translation(0.5), 1e-4, "resample=%v", resample)
		assertVec3InDelta(t, mgl32.Vec3{10, 0, 0}, ch.Translation(1), 1e-4, "resample=%v", resample)
		assertVec3InDelta(t, mgl32.Vec3{0, 0, 0}, ch.Translation(0), 1e-4, "resample=%v", resample)
	}
}

func TestChannelResampleFidelity(t *testing.T) {
	const duration = 2.5
	ch, err := LoadChannelData(irregularChannel(), duration)
	require.NoError(t, err)
	require.Equal(t, LookupTableWidth, ch.TableWidth())

	step := float32(duration) / float32(LookupTableWidth-1)
	for i := 0; i < LookupTableWidth; i++ {
		entry, ok := ch.TableEntry(i)
		require.True(t, ok)
		want := ch.SparseSample(float32(i) * step)
		assertVec3InDelta(t, want.Translation, entry.Translation, 1e-4, "index %d", i)
		assertQuatInDelta(t, want.Rotation, entry.Rotation, 1e-4, "index %d", i)
		assertVec3InDelta(t, want.Scale, entry.Scale, 1e-4, "index %d", i)
	}
}

func TestChannelRepresentationsAgree(t *testing.T) {
	const duration = 2.5
	sparse, err := LoadChannelData(irregularChannel(), duration, WithResampling(false))
	require.NoError(t, err)
	table, err := LoadChannelData(irregularChannel(), duration)
	require.NoError(t, err)

	// Between table slots the lookup mixes neighbouring samples, so the error is bounded by
	// track slope times slot spacing.
	for i := 0; i <= 400; i++ {
		tm := float32(i) * duration / 400
		a, b := sparse.Sample(tm), table.Sample(tm)
		assertVec3InDelta(t, a.Translation, b.Translation, 0.02, "t=%v", tm)
		assertQuatInDelta(t, a.Rotation, b.Rotation, 1e-3, "t=%v", tm)
		assertVec3InDelta(t, a.Scale, b.Scale, 0.01, "t=%v", tm)
	}
}

func TestChannelHoldsEndValues(t *testing.T) {
	raw := model.ImportedChannel{
		NodeName: "arm",
		PositionKeys: vecKeys(
			0.5, [3]float32{1, 0, 0},
			1.5, [3]float32{3, 0, 0},
		),
		RotationKeys: constRot(0, identityRot),
		ScaleKeys:    unitScale(),
	}
	for _, resample := range []bool{false, true} {
		ch, err := LoadChannelData(raw, 2, WithResampling(resample))
		require.NoError(t, err)
		assertVec3InDelta(t, mgl32.Vec3{1, 0, 0}, ch.Translation(0), 1e-4, "before first key")
		assertVec3InDelta(t, mgl32.Vec3{1, 0, 0}, ch.Translation(-1), 1e-4, "negative time")
		assertVec3InDelta(t, mgl32.Vec3{3, 0, 0}, ch.Translation(1.75), 1e-4, "after last key")
		assertVec3InDelta(t, mgl32.Vec3{3, 0, 0}, ch.Translation(2), 1e-4, "at duration")
		assertVec3InDelta(t, mgl32.Vec3{3, 0, 0}, ch.Translation(50), 1e-4, "far past duration")
	}
}

func TestChannelSingleKeyTrack(t *testing.T) {
	raw := model.ImportedChannel{
		NodeName:     "head",
		PositionKeys: vecKeys(0.7, [3]float32{4, 5, 6}),
		RotationKeys: constRot(0.2, quatArr(mgl32.QuatRotate(0.5, mgl32.Vec3{1, 0, 0}))),
		ScaleKeys:    vecKeys(1.0, [3]float32{2, 2, 2}),
	}
	ch, err := LoadChannelData(raw, 3)
	require.NoError(t, err)
	for i := 0; i < ch.TableWidth(); i += 97 {
		entry, _ := ch.TableEntry(i)
		assertVec3InDelta(t, mgl32.Vec3{4, 5, 6}, entry.Translation, 1e-6)
		assertVec3InDelta(t, mgl32.Vec3{2, 2, 2}, entry.Scale, 1e-6)
	}
	assertQuatInDelta(t, mgl32.QuatRotate(0.5, mgl32.Vec3{1, 0, 0}), ch.Rotation(2.9), 1e-5)
}

func TestChannelEmptyTrack(t *testing.T) {
	raw := scenarioChannel("root")
	raw.ScaleKeys = nil
	_, err := LoadChannelData(raw, 2)
	require.ErrorIs(t, err, ErrEmptyTrack)
}

func TestChannelSortsKeys(t *testing.T) {
	raw := model.ImportedChannel{
		NodeName: "tail",
		PositionKeys: vecKeys(
			2.0, [3]float32{0, 0, 0},
			0.0, [3]float32{0, 0, 0},
			1.0, [3]float32{0, 8, 0},
		),
		RotationKeys: constRot(0, identityRot),
		ScaleKeys:    unitScale(),
	}
	ch, err := LoadChannelData(raw, 2, WithResampling(false))
	require.NoError(t, err)
	assertVec3InDelta(t, mgl32.Vec3{0, 4, 0}, ch.Translation(0.5), 1e-5)
}

func TestChannelRotationUnitNorm(t *testing.T) {
	raw := irregularChannel()
	// Deliberately non-normalized input keys.
	for i := range raw.RotationKeys {
		for j := range 4 {
			raw.RotationKeys[i].Value[j] *= 3
		}
	}
	for _, resample := range []bool{false, true} {
		ch, err := LoadChannelData(raw, 2.5, WithResampling(resample))
		require.NoError(t, err)
		for i := 0; i <= 500; i++ {
			q := ch.Rotation(float32(i) * 2.6 / 500)
			assert.InDelta(t, 1, q.Len(), 1e-5)
		}
	}
}

func TestChannelZeroDuration(t *testing.T) {
	ch, err := LoadChannelData(scenarioChannel("root"), 0)
	require.NoError(t, err)
	assertVec3InDelta(t, mgl32.Vec3{0, 0, 0}, ch.Translation(0), 1e-6)
	assertVec3InDelta(t, mgl32.Vec3{0, 0, 0}, ch.Translation(1), 1e-6)
}

func TestChannelTableWidthOption(t *testing.T) {
	ch, err := LoadChannelData(scenarioChannel("root"), 2, WithLookupTableWidth(5))
	require.NoError(t, err)
	assert.Equal(t, 5, ch.TableWidth())
	entry, ok := ch.TableEntry(2)
	require.True(t, ok)
	assertVec3InDelta(t, mgl32.Vec3{10, 0, 0}, entry.Translation, 1e-6)

	ch, err = LoadChannelData(scenarioChannel("root"), 2, WithLookupTableWidth(0))
	require.NoError(t, err)
	assert.Equal(t, 2, ch.TableWidth())

	ch, err = LoadChannelData(scenarioChannel("root"), 2, WithResampling(false))
	require.NoError(t, err)
	_, ok = ch.TableEntry(0)
	assert.False(t, ok)
}
