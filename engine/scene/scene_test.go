package scene

import (
	"bytes"
	"log"
	"testing"

	"github.com/Carmen-Shannon/oxy-anim/engine/asset"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/Carmen-Shannon/oxy-anim/engine/renderer/animator"
	"github.com/Carmen-Shannon/oxy-anim/engine/renderer/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// armModel is a two-bone rig whose root ping-pongs along X over 2 seconds.
func armModel() *model.ImportedModel {
	root := model.ImportedChannel{
		NodeName: "root",
		PositionKeys: []model.VectorKeyframe{
			{Time: 0, Value: [3]float32{0, 0, 0}},
			{Time: 1, Value: [3]float32{10, 0, 0}},
			{Time: 2, Value: [3]float32{0, 0, 0}},
		},
		RotationKeys: []model.QuaternionKeyframe{{Time: 0, Value: [4]float32{0, 0, 0, 1}}},
		ScaleKeys:    []model.VectorKeyframe{{Time: 0, Value: [3]float32{1, 1, 1}}},
	}
	return &model.ImportedModel{
		Name: "arm",
		Bones: []model.ImportedBone{
			{ID: 0, Name: "root", ParentID: -1},
			{ID: 1, Name: "hand", ParentID: 0, RestTranslation: [3]float32{0, 1, 0}},
		},
		Animations: []model.ImportedAnimation{
			{Name: "pingpong", DurationTicks: 2, TicksPerSecond: 1, Channels: []model.ImportedChannel{root}},
		},
	}
}

type testRig struct {
	scene       Scene
	arm, crate  asset.Handle
	a, rigid, c animator.Animator
}

type noopQueue struct{}

func (noopQueue) WriteBuffer(*wgpu.Buffer, uint64, []byte) error { return nil }

// newTestRig builds a scene with two skeletal animators around one rigid animator:
// a has 2 visible instances, rigid 1, c 1 hidden and 1 visible.
func newTestRig(t *testing.T, options ...SceneBuilderOption) testRig {
	t.Helper()
	s := NewScene("test", options...)
	arm, err := s.Library().Load(armModel())
	require.NoError(t, err)
	crate, err := s.Library().Load(&model.ImportedModel{Name: "crate"})
	require.NoError(t, err)

	r := testRig{scene: s, arm: arm, crate: crate}
	r.a, err = s.AddAnimator(arm)
	require.NoError(t, err)
	r.rigid, err = s.AddAnimator(crate)
	require.NoError(t, err)
	r.c, err = s.AddAnimator(arm, animator.WithMaxInstances(4))
	require.NoError(t, err)

	for range 2 {
		_, err = r.a.AddInstance()
		require.NoError(t, err)
		_, err = r.c.AddInstance()
		require.NoError(t, err)
	}
	_, err = r.rigid.AddInstance()
	require.NoError(t, err)
	r.rigid.SetInstanceTransform(0, [3]float32{0, 0, 9}, [3]float32{1, 1, 1})
	r.c.SetInstanceVisible(0, false)
	r.c.SetInstanceTransform(1, [3]float32{4, 0, 0}, [3]float32{1, 1, 1})
	return r
}

func translationOf(m mgl32.Mat4) mgl32.Vec3 {
	return m.Col(3).Vec3()
}

func TestSceneBasics(t *testing.T) {
	s := NewScene("level", WithActive(true), WithComputeWorkers(0))
	assert.Equal(t, "level", s.Name())
	assert.True(t, s.Active())
	s.SetName("other")
	s.SetActive(false)
	assert.Equal(t, "other", s.Name())
	assert.False(t, s.Active())
	assert.NotNil(t, s.Library())

	batch := s.Update(0.016)
	assert.Empty(t, batch.Matrices)
	assert.Empty(t, batch.Ranges)

	_, err := s.AddAnimator(asset.Handle(3))
	require.ErrorIs(t, err, asset.ErrInvalidHandle)
}

func TestSceneSharedLibrary(t *testing.T) {
	lib := asset.NewLibrary()
	h, err := lib.Load(armModel())
	require.NoError(t, err)
	s := NewScene("shared", WithLibrary(lib))
	assert.Same(t, lib, s.Library())
	_, err = s.AddAnimator(h)
	require.NoError(t, err)
}

func TestSceneUpdateLaysOutDisjointRanges(t *testing.T) {
	r := newTestRig(t, WithComputeWorkers(3))
	assert.Equal(t, 5, r.scene.InstanceCount())
	require.Len(t, r.scene.Animators(), 3)

	batch := r.scene.Update(0.5)
	require.Len(t, batch.Matrices, 6)
	require.Len(t, batch.Ranges, 4)
	require.Len(t, batch.Models, 4)

	assert.Equal(t, animator.GPUInstanceRange{Offset: 0, Count: 2}, batch.Ranges[0])
	assert.Equal(t, animator.GPUInstanceRange{Offset: 2, Count: 2}, batch.Ranges[1])
	assert.Equal(t, animator.GPUInstanceRange{Offset: 4, Count: 0}, batch.Ranges[2])
	assert.Equal(t, animator.GPUInstanceRange{Offset: 4, Count: 2}, batch.Ranges[3])

	for i := range batch.Ranges {
		for _, m := range batch.InstanceMatrices(i) {
			assert.InDelta(t, 5, translationOf(m)[0], 1e-4)
		}
	}
	// The hand inherits the root translation and adds its rest offset.
	assert.InDelta(t, 1, translationOf(batch.Matrices[1])[1], 1e-5)

	assert.Equal(t, mgl32.Vec3{0, 0, 9}, translationOf(batch.Models[2]))
	assert.Equal(t, mgl32.Vec3{4, 0, 0}, translationOf(batch.Models[3]))
	assert.Positive(t, r.scene.LastUpdateDuration())

	assert.Equal(t, batch, r.scene.Batch())
}

func TestSceneUpdateIsDeterministicAcrossWorkerCounts(t *testing.T) {
	serial := newTestRig(t, WithComputeWorkers(1))
	parallel := newTestRig(t, WithComputeWorkers(4))
	serial.a.BlendToAnimation(1, 0, 1)
	parallel.a.BlendToAnimation(1, 0, 1)

	for range 10 {
		want := serial.scene.Update(0.13)
		got := parallel.scene.Update(0.13)
		require.Equal(t, want.Matrices, got.Matrices)
		require.Equal(t, want.Ranges, got.Ranges)
		require.Equal(t, want.Models, got.Models)
	}
}

func TestSceneUpdateTracksVisibilityChanges(t *testing.T) {
	r := newTestRig(t)
	r.scene.Update(0.1)

	r.a.SetInstanceVisible(0, false)
	r.c.SetInstanceVisible(0, true)
	batch := r.scene.Update(0.1)
	require.Len(t, batch.Ranges, 4)
	assert.Equal(t, animator.GPUInstanceRange{Offset: 0, Count: 2}, batch.Ranges[0])
	assert.Equal(t, animator.GPUInstanceRange{Offset: 2, Count: 0}, batch.Ranges[1])
	assert.Equal(t, animator.GPUInstanceRange{Offset: 2, Count: 2}, batch.Ranges[2])
	assert.Equal(t, animator.GPUInstanceRange{Offset: 4, Count: 2}, batch.Ranges[3])
	assert.Len(t, batch.Matrices, 6)
}

// revealOnReserve makes a hidden instance visible right after the scene sized its region, the way a
// SetInstanceVisible from another goroutine can land between reservation and evaluation.
type revealOnReserve struct {
	animator.Animator
	hidden uint32
}

func (r *revealOnReserve) VisibleCount() uint32 {
	n := r.Animator.VisibleCount()
	r.Animator.SetInstanceVisible(r.hidden, true)
	return n
}

func TestSceneUpdateLogsDroppedInstances(t *testing.T) {
	var logs bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&logs)
	t.Cleanup(func() { log.SetOutput(prev) })

	r := newTestRig(t)
	sc := r.scene.(*scene)
	require.Same(t, r.c, sc.animators[2])
	sc.animators[2] = &revealOnReserve{Animator: r.c, hidden: 0}

	batch := r.scene.Update(0.1)
	assert.Len(t, batch.Ranges, 4, "the revealed instance does not fit this frame")
	assert.Equal(t, uint32(1), r.c.DroppedCount())
	assert.Contains(t, logs.String(), `animator "arm" dropped 1 visible instances (1 reserved)`)

	logs.Reset()
	batch = r.scene.Update(0.1)
	assert.Len(t, batch.Ranges, 5)
	assert.Zero(t, r.c.DroppedCount())
	assert.NotContains(t, logs.String(), "dropped")
}

func TestSceneStageUpload(t *testing.T) {
	r := newTestRig(t)
	batch := r.scene.Update(0.5)

	provider := bind_group_provider.NewBindGroupProvider("pose_batch")
	bindings := BatchBindings{Matrices: 0, Ranges: 1, Models: 2}
	writes := r.scene.StageUpload(provider, bindings)

	var batchWrites []bind_group_provider.BufferWrite
	animatorWrites := 0
	for _, w := range writes {
		if w.Provider == provider {
			batchWrites = append(batchWrites, w)
		} else {
			animatorWrites++
		}
	}
	require.Len(t, batchWrites, 3)
	assert.Len(t, batchWrites[0].Data, len(batch.Matrices)*64)
	assert.Len(t, batchWrites[1].Data, len(batch.Ranges)*16)
	assert.Len(t, batchWrites[2].Data, len(batch.Models)*64)
	assert.Equal(t, uint64(6*64), provider.BufferSize(0))
	assert.Equal(t, uint64(4*16), provider.BufferSize(1))
	assert.Positive(t, animatorWrites)
	for _, w := range writes {
		if w.Provider != provider {
			assert.LessOrEqual(t, w.Offset+uint64(len(w.Data)), w.Provider.BufferSize(w.Binding),
				"%s binding %d", w.Provider.Label(), w.Binding)
		}
	}

	// Animator writes are drained by the first upload.
	writes = r.scene.StageUpload(provider, bindings)
	assert.Len(t, writes, 3)

	n, err := bind_group_provider.WriteBuffers(noopQueue{}, writes)
	require.NoError(t, err)
	assert.Zero(t, n, "buffers were never created on a device")
}

func TestSceneRemoveAnimator(t *testing.T) {
	r := newTestRig(t)
	assert.True(t, r.scene.RemoveAnimator(r.rigid))
	assert.False(t, r.scene.RemoveAnimator(r.rigid))
	require.Len(t, r.scene.Animators(), 2)

	batch := r.scene.Update(0.5)
	assert.Len(t, batch.Ranges, 3)

	r.scene.Release()
	assert.Empty(t, r.scene.Animators())
	assert.Empty(t, r.scene.Batch().Ranges)
}
