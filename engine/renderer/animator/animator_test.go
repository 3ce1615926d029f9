package animator

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-anim/engine/animation"
	"github.com/Carmen-Shannon/oxy-anim/engine/asset"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/Carmen-Shannon/oxy-anim/engine/renderer/bind_group_provider"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func translationTrack(name string, keys ...model.VectorKeyframe) model.ImportedChannel {
	return model.ImportedChannel{
		NodeName:     name,
		PositionKeys: keys,
		RotationKeys: []model.QuaternionKeyframe{{Time: 0, Value: [4]float32{0, 0, 0, 1}}},
		ScaleKeys:    []model.VectorKeyframe{{Time: 0, Value: [3]float32{1, 1, 1}}},
	}
}

// testLibrary holds a one-bone model with two clips and a model without bones.
func testLibrary(t *testing.T) (lib *asset.Library, skinned, rigid asset.Handle) {
	t.Helper()
	lib = asset.NewLibrary()
	pingpong := translationTrack("root",
		model.VectorKeyframe{Time: 0, Value: [3]float32{0, 0, 0}},
		model.VectorKeyframe{Time: 1, Value: [3]float32{10, 0, 0}},
		model.VectorKeyframe{Time: 2, Value: [3]float32{0, 0, 0}},
	)
	rise := translationTrack("root", model.VectorKeyframe{Time: 0, Value: [3]float32{0, 0, 3}})

	var err error
	skinned, err = lib.Load(&model.ImportedModel{
		Name:  "bob",
		Bones: []model.ImportedBone{{ID: 0, Name: "root", ParentID: -1}},
		Animations: []model.ImportedAnimation{
			{Name: "pingpong", DurationTicks: 2, TicksPerSecond: 1, Channels: []model.ImportedChannel{pingpong}},
			{Name: "rise", DurationTicks: 2, TicksPerSecond: 1, Channels: []model.ImportedChannel{rise}},
		},
	})
	require.NoError(t, err)
	rigid, err = lib.Load(&model.ImportedModel{Name: "crate"})
	require.NoError(t, err)
	return lib, skinned, rigid
}

func newTestAnimator(t *testing.T, options ...AnimatorBuilderOption) Animator {
	t.Helper()
	lib, skinned, _ := testLibrary(t)
	a, err := NewAnimator(lib, skinned, options...)
	require.NoError(t, err)
	return a
}

func frameOutput(base uint32, instances, bones int) FrameOutput {
	return FrameOutput{
		BaseOffset: base,
		Matrices:   make([]mgl32.Mat4, instances*bones),
		Ranges:     make([]GPUInstanceRange, instances),
		Models:     make([]mgl32.Mat4, instances),
	}
}

func translationOf(m mgl32.Mat4) mgl32.Vec3 {
	return m.Col(3).Vec3()
}

func assertVec3InDelta(t *testing.T, expected, actual mgl32.Vec3, delta float64, msgAndArgs ...any) {
	t.Helper()
	for i := range 3 {
		assert.InDelta(t, expected[i], actual[i], delta, msgAndArgs...)
	}
}

func TestNewAnimatorInvalidHandle(t *testing.T) {
	lib, _, _ := testLibrary(t)
	_, err := NewAnimator(lib, asset.Handle(0))
	require.ErrorIs(t, err, asset.ErrInvalidHandle)
	_, err = NewAnimator(lib, asset.Handle(42))
	require.ErrorIs(t, err, asset.ErrInvalidHandle)
}

func TestNewAnimatorBackendSelection(t *testing.T) {
	lib, skinned, rigid := testLibrary(t)

	a, err := NewAnimator(lib, skinned)
	require.NoError(t, err)
	assert.Equal(t, BackendTypeSkeletal, a.BackendType())
	assert.Equal(t, uint32(1), a.BoneCount())
	assert.Equal(t, skinned, a.Handle())
	assert.Equal(t, "bob", a.Model().Name)
	assert.Equal(t, uint32(defaultMaxInstances), a.MaxInstances())

	r, err := NewAnimator(lib, rigid)
	require.NoError(t, err)
	assert.Equal(t, BackendTypeRigid, r.BackendType())
	assert.Equal(t, uint32(0), r.BoneCount())
	assert.Equal(t, "rigid", r.BackendType().String())
}

func TestAnimatorAutoGrow(t *testing.T) {
	a := newTestAnimator(t, WithMaxInstances(2))
	require.Equal(t, uint32(2), a.MaxInstances())

	for i := range 3 {
		idx, err := a.AddInstance()
		require.NoError(t, err)
		assert.Equal(t, uint32(i), idx)
	}
	a.SetInstanceTransform(0, [3]float32{1, 2, 3}, [3]float32{1, 1, 1})
	assert.Equal(t, uint32(8), a.MaxInstances())
	assert.Equal(t, uint32(3), a.InstanceCount())

	pos, _ := a.InstanceTransform(0)
	assert.Equal(t, [3]float32{1, 2, 3}, pos)

	// Playback state follows the grown capacity.
	a.PlayAnimation(2, 1)
	snap, ok := a.InstanceState(2)
	require.True(t, ok)
	assert.Equal(t, uint32(1), snap.ClipIndex)

	a.Grow(4)
	assert.Equal(t, uint32(8), a.MaxInstances())
	a.Grow(16)
	assert.Equal(t, uint32(16), a.MaxInstances())
	assert.Equal(t, uint32(3), a.InstanceCount())
}

func TestAnimatorSwapRemove(t *testing.T) {
	a := newTestAnimator(t)
	for range 3 {
		_, err := a.AddInstance()
		require.NoError(t, err)
	}
	a.SetInstanceTransform(2, [3]float32{7, 0, 0}, [3]float32{2, 2, 2})
	a.PlayAnimation(2, 1)

	last, swapped := a.RemoveInstance(0)
	assert.True(t, swapped)
	assert.Equal(t, uint32(2), last)
	assert.Equal(t, uint32(2), a.InstanceCount())

	pos, scale := a.InstanceTransform(0)
	assert.Equal(t, [3]float32{7, 0, 0}, pos)
	assert.Equal(t, [3]float32{2, 2, 2}, scale)
	snap, _ := a.InstanceState(0)
	assert.Equal(t, uint32(1), snap.ClipIndex)

	_, swapped = a.RemoveInstance(1)
	assert.False(t, swapped)
	_, swapped = a.RemoveInstance(9)
	assert.False(t, swapped)
	assert.Equal(t, uint32(1), a.InstanceCount())
}

func TestAnimatorPrepareFrame(t *testing.T) {
	a := newTestAnimator(t)
	for range 2 {
		_, err := a.AddInstance()
		require.NoError(t, err)
	}
	a.SetInstanceTransform(1, [3]float32{0, 5, 0}, [3]float32{1, 1, 1})

	out := frameOutput(10, 2, 1)
	n := a.PrepareFrame(0.5, out)
	require.Equal(t, uint32(2), n)

	assertVec3InDelta(t, mgl32.Vec3{5, 0, 0}, translationOf(out.Matrices[0]), 1e-4)
	assertVec3InDelta(t, mgl32.Vec3{5, 0, 0}, translationOf(out.Matrices[1]), 1e-4)
	assert.Equal(t, GPUInstanceRange{Offset: 10, Count: 1}, out.Ranges[0])
	assert.Equal(t, GPUInstanceRange{Offset: 11, Count: 1}, out.Ranges[1])
	assertVec3InDelta(t, mgl32.Vec3{0, 5, 0}, translationOf(out.Models[1]), 1e-6)

	n = a.PrepareFrame(1.5, out)
	require.Equal(t, uint32(2), n)
	assertVec3InDelta(t, mgl32.Vec3{0, 0, 0}, translationOf(out.Matrices[0]), 1e-4)
}

func TestAnimatorVisibility(t *testing.T) {
	a := newTestAnimator(t)
	for range 2 {
		_, err := a.AddInstance()
		require.NoError(t, err)
	}
	a.SetInstanceTransform(1, [3]float32{0, 5, 0}, [3]float32{1, 1, 1})
	a.SetInstanceVisible(0, false)
	assert.False(t, a.InstanceVisible(0))
	assert.Equal(t, uint32(1), a.VisibleCount())

	out := frameOutput(0, 2, 1)
	n := a.PrepareFrame(0.5, out)
	require.Equal(t, uint32(1), n)
	assertVec3InDelta(t, mgl32.Vec3{0, 5, 0}, translationOf(out.Models[0]), 1e-6)

	// Hidden instances keep advancing.
	snap, ok := a.InstanceState(0)
	require.True(t, ok)
	assert.InDelta(t, 0.5, snap.PlayTimePos, 1e-6)
}

func TestAnimatorPrepareFrameRespectsOutputCapacity(t *testing.T) {
	a := newTestAnimator(t)
	for range 3 {
		_, err := a.AddInstance()
		require.NoError(t, err)
	}
	out := FrameOutput{
		Matrices: make([]mgl32.Mat4, 1),
		Ranges:   make([]GPUInstanceRange, 3),
		Models:   make([]mgl32.Mat4, 3),
	}
	assert.Equal(t, uint32(1), a.PrepareFrame(0.1, out))
	assert.Equal(t, uint32(2), a.DroppedCount())
	assert.Equal(t, uint32(0), a.PrepareFrame(0.1, FrameOutput{}))
	assert.Equal(t, uint32(3), a.DroppedCount())
	a.SetInstanceVisible(2, false)
	assert.Equal(t, uint32(1), a.PrepareFrame(0.1, out))
	assert.Equal(t, uint32(1), a.DroppedCount())
	assert.Equal(t, uint32(2), a.PrepareFrame(0.1, frameOutput(0, 3, 1)))
	assert.Zero(t, a.DroppedCount())
}

func TestAnimatorFlushStagesWrites(t *testing.T) {
	provider := bind_group_provider.NewBindGroupProvider("test_compute")
	a := newTestAnimator(t, WithComputeBindGroupProvider(provider))
	for range 2 {
		_, err := a.AddInstance()
		require.NoError(t, err)
	}

	flushed := a.Flush(0, 1, 2)
	assert.Equal(t, uint32(2), flushed)
	writes := a.StagedWriteData()
	require.Len(t, writes, 3)
	byBinding := map[int]bind_group_provider.BufferWrite{}
	for _, w := range writes {
		assert.Same(t, provider, w.Provider)
		byBinding[w.Binding] = w
	}
	assert.Len(t, byBinding[0].Data, 16)
	assert.Equal(t, uint64(0), byBinding[2].Offset)
	assert.Len(t, byBinding[2].Data, 2*64)
	assert.Len(t, byBinding[1].Data, 2*32)
	assert.Empty(t, a.StagedWriteData())

	a.SetInstanceTransform(1, [3]float32{3, 0, 0}, [3]float32{1, 1, 1})
	assert.Equal(t, uint32(1), a.Flush(0, 1, 2))
	writes = a.StagedWriteData()
	require.Len(t, writes, 2)
	assert.Equal(t, 2, writes[1].Binding)
	assert.Equal(t, uint64(64), writes[1].Offset)
	assert.Len(t, writes[1].Data, 64)
}

func TestAnimatorBlendProgress(t *testing.T) {
	a := newTestAnimator(t)
	_, err := a.AddInstance()
	require.NoError(t, err)

	a.BlendToAnimation(0, 1, 2)
	assert.True(t, a.IsBlending(0))
	assert.Zero(t, a.BlendProgress(0))

	out := frameOutput(0, 1, 1)
	a.PrepareFrame(0.5, out)
	assert.InDelta(t, 0.25, a.BlendProgress(0), 1e-6)
	// 0.25 of the way from (5,0,0) to (0,0,3).
	assertVec3InDelta(t, mgl32.Vec3{3.75, 0, 0.75}, translationOf(out.Matrices[0]), 1e-3)

	a.PrepareFrame(1.5, out)
	assert.False(t, a.IsBlending(0))
	assert.Zero(t, a.BlendProgress(0))
	snap, _ := a.InstanceState(0)
	assert.Equal(t, uint32(1), snap.ClipIndex)
	assertVec3InDelta(t, mgl32.Vec3{0, 0, 3}, translationOf(out.Matrices[0]), 1e-4)

	a.SetBlend(0, 0, 0.5)
	assert.InDelta(t, 0.5, a.BlendProgress(0), 1e-6)
	a.CancelBlend(0)
	assert.False(t, a.IsBlending(0))
}

func TestAnimatorSetAnimationTime(t *testing.T) {
	a := newTestAnimator(t)
	_, err := a.AddInstance()
	require.NoError(t, err)

	a.SetAnimationTime(0, 3)
	snap, _ := a.InstanceState(0)
	assert.InDelta(t, 1, snap.PlayTimePos, 1e-6)

	out := frameOutput(0, 1, 1)
	a.PrepareFrame(0, out)
	assertVec3InDelta(t, mgl32.Vec3{10, 0, 0}, translationOf(out.Matrices[0]), 1e-4)

	a.SetAnimationSpeed(0, 2)
	a.PrepareFrame(0.25, out)
	assertVec3InDelta(t, mgl32.Vec3{5, 0, 0}, translationOf(out.Matrices[0]), 1e-3)
}

func TestAnimatorStateRestore(t *testing.T) {
	a := newTestAnimator(t)
	for range 2 {
		_, err := a.AddInstance()
		require.NoError(t, err)
	}
	a.SetBlend(0, 1, 0.3)
	a.PrepareFrame(0.7, frameOutput(0, 2, 1))

	snap, ok := a.InstanceState(0)
	require.True(t, ok)
	require.True(t, a.RestoreInstanceState(1, snap))
	restored, _ := a.InstanceState(1)
	assert.Equal(t, snap, restored)

	out := frameOutput(0, 2, 1)
	a.PrepareFrame(0.2, out)
	assert.Equal(t, out.Matrices[0], out.Matrices[1])
}

func TestAnimatorOutOfRangeIndexes(t *testing.T) {
	a := newTestAnimator(t)
	a.SetInstanceTransform(5, [3]float32{1, 1, 1}, [3]float32{1, 1, 1})
	a.SetInstanceVisible(5, true)
	a.PlayAnimation(5, 1)
	a.SetAnimationTime(5, 1)

	assert.Equal(t, mgl32.Ident4(), a.InstanceMatrix(5))
	assert.False(t, a.InstanceVisible(5))
	assert.False(t, a.IsBlending(5))
	_, ok := a.InstanceState(5)
	assert.False(t, ok)
	assert.False(t, a.RestoreInstanceState(5, animation.StateSnapshot{}))
	assert.Equal(t, uint32(0), a.InstanceCount())
}

// assertWritesFit checks that every staged write lies inside the buffer size its provider declares.
func assertWritesFit(t *testing.T, writes []bind_group_provider.BufferWrite) {
	t.Helper()
	for _, w := range writes {
		end := w.Offset + uint64(len(w.Data))
		assert.LessOrEqual(t, end, w.Provider.BufferSize(w.Binding), "%s binding %d", w.Provider.Label(), w.Binding)
	}
}

func TestAnimatorFlushDeclaresBufferSizes(t *testing.T) {
	a := newTestAnimator(t, WithMaxInstances(2))
	for range 2 {
		_, err := a.AddInstance()
		require.NoError(t, err)
	}
	a.Flush(0, 1, 2)
	assertWritesFit(t, a.StagedWriteData())
	assert.Equal(t, map[int]uint64{0: 16, 1: 2 * 32, 2: 2 * 64}, a.ComputeBindGroupProvider().BufferSizes())

	// Auto-grow to 8 instances widens the state and model bindings on the next flush.
	_, err := a.AddInstance()
	require.NoError(t, err)
	a.SetInstanceTransform(2, [3]float32{1, 2, 3}, [3]float32{1, 1, 1})
	a.Flush(0, 1, 2)
	writes := a.StagedWriteData()
	assertWritesFit(t, writes)
	assert.Equal(t, map[int]uint64{0: 16, 1: 8 * 32, 2: 8 * 64}, a.ComputeBindGroupProvider().BufferSizes())

	rigidLib, _, crate := testLibrary(t)
	r, err := NewAnimator(rigidLib, crate)
	require.NoError(t, err)
	_, err = r.AddInstance()
	require.NoError(t, err)
	r.Flush(3, 4, 5)
	assertWritesFit(t, r.StagedWriteData())
	assert.Equal(t, map[int]uint64{3: 16, 5: uint64(r.MaxInstances()) * 64}, r.ComputeBindGroupProvider().BufferSizes())
}

func TestRigidAnimator(t *testing.T) {
	lib, _, rigid := testLibrary(t)
	a, err := NewAnimator(lib, rigid)
	require.NoError(t, err)
	_, err = a.AddInstance()
	require.NoError(t, err)

	a.SetInstanceData(0, [3]float32{1, 0, 0}, [3]float32{1, 1, 1}, [3]float32{0, math.Pi, 0}, [3]float32{})
	a.PlayAnimation(0, 1)
	assert.False(t, a.IsBlending(0))
	_, ok := a.InstanceState(0)
	assert.False(t, ok)

	out := FrameOutput{BaseOffset: 4, Ranges: make([]GPUInstanceRange, 1), Models: make([]mgl32.Mat4, 1)}
	require.Equal(t, uint32(1), a.PrepareFrame(0.5, out))
	assert.Equal(t, GPUInstanceRange{Offset: 4}, out.Ranges[0])

	speed, rot := a.InstanceRotation(0)
	assert.Equal(t, [3]float32{0, math.Pi, 0}, speed)
	assert.InDelta(t, math.Pi/2, rot[1], 1e-5)
	assertVec3InDelta(t, mgl32.Vec3{1, 0, 0}, translationOf(out.Models[0]), 1e-6)

	a.Flush(0, 1, 2)
	for _, w := range a.StagedWriteData() {
		assert.NotEqual(t, 1, w.Binding)
	}
}
