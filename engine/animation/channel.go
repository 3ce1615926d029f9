package animation

import (
	"cmp"
	"fmt"
	"slices"
	"sort"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// track is one keyframe track of a channel in both its sparse and resampled forms.
type track[T any] struct {
	times  []float32
	values []T

	// invDeltas[i] is 1 / (times[i+1] - times[i]), or 0 for coincident keys.
	invDeltas []float32

	// table holds uniformly spaced samples over [0, clipDuration]; nil when resampling is off.
	table []T
}

func newTrack[T any](times []float32, values []T) track[T] {
	tr := track[T]{times: times, values: values}
	if len(times) > 1 {
		tr.invDeltas = make([]float32, len(times)-1)
		for i := range tr.invDeltas {
			if d := times[i+1] - times[i]; d > 0 {
				tr.invDeltas[i] = 1 / d
			}
		}
	}
	return tr
}

// at interpolates between key k and key k+1 at time t, holding the first and last values
// outside the keyed range.
func (tr *track[T]) at(k int, t float32, mix func(a, b T, f float32) T) T {
	last := len(tr.times) - 1
	if k < 0 || t <= tr.times[0] {
		return tr.values[0]
	}
	if k >= last {
		return tr.values[last]
	}
	f := (t - tr.times[k]) * tr.invDeltas[k]
	f = min(max(f, 0), 1)
	return mix(tr.values[k], tr.values[k+1], f)
}

func (tr *track[T]) sampleSparse(t float32, mix func(a, b T, f float32) T) T {
	k := sort.Search(len(tr.times), func(i int) bool { return tr.times[i] > t }) - 1
	return tr.at(k, t, mix)
}

// resample fills the lookup table by walking the keys once in time order.
func (tr *track[T]) resample(width int, duration float32, mix func(a, b T, f float32) T) {
	tr.table = make([]T, width)
	step := float32(0)
	if duration > 0 {
		step = duration / float32(width-1)
	}
	k := 0
	for s := range tr.table {
		ts := float32(s) * step
		for k+1 < len(tr.times) && tr.times[k+1] <= ts {
			k++
		}
		tr.table[s] = tr.at(k, ts, mix)
	}
}

func (tr *track[T]) sampleTable(t, invTimeScale float32, mix func(a, b T, f float32) T) T {
	f := t * invTimeScale
	if !(f > 0) {
		return tr.table[0]
	}
	i := int(math32.Floor(f))
	if i >= len(tr.table)-1 {
		return tr.table[len(tr.table)-1]
	}
	return mix(tr.table[i], tr.table[i+1], f-float32(i))
}

// AnimationChannel owns the translation, rotation and scale tracks of one animated bone.
// It is immutable once loaded, apart from the bone binding set by its clip.
type AnimationChannel struct {
	name   string
	boneID int32

	translation track[mgl32.Vec3]
	rotation    track[mgl32.Quat]
	scaling     track[mgl32.Vec3]

	resampled bool

	// invTimeScaleFactor maps a time in ticks to a fractional table index.
	invTimeScaleFactor float32
}

// LoadChannelData builds a channel from raw per-track keyframes. Keys are sorted by time,
// rotations are normalized, and when resampling is enabled every track is resampled onto a
// uniform table spanning [0, clipDuration].
//
// Parameters:
//   - raw: the imported keyframe tracks; every track must carry at least one key
//   - clipDuration: the clip length in ticks, which sizes the resampling window
//   - opts: load options (resampling, table width)
//
// Returns:
//   - *AnimationChannel: the channel, unbound (bone id -1)
//   - error: an error wrapping ErrEmptyTrack if any track has no keys
func LoadChannelData(raw model.ImportedChannel, clipDuration float32, opts ...LoadOption) (*AnimationChannel, error) {
	return loadChannel(raw, clipDuration, newLoadConfig(opts))
}

func loadChannel(raw model.ImportedChannel, clipDuration float32, cfg loadConfig) (*AnimationChannel, error) {
	switch {
	case len(raw.PositionKeys) == 0:
		return nil, fmt.Errorf("channel %q translation: %w", raw.NodeName, ErrEmptyTrack)
	case len(raw.RotationKeys) == 0:
		return nil, fmt.Errorf("channel %q rotation: %w", raw.NodeName, ErrEmptyTrack)
	case len(raw.ScaleKeys) == 0:
		return nil, fmt.Errorf("channel %q scale: %w", raw.NodeName, ErrEmptyTrack)
	}

	c := &AnimationChannel{
		name:        raw.NodeName,
		boneID:      -1,
		translation: vectorTrack(raw.PositionKeys),
		rotation:    quatTrack(raw.RotationKeys),
		scaling:     vectorTrack(raw.ScaleKeys),
	}

	if cfg.resample {
		width := max(cfg.tableWidth, 2)
		c.translation.resample(width, clipDuration, common.MixVec3)
		c.rotation.resample(width, clipDuration, common.SlerpQuat)
		c.scaling.resample(width, clipDuration, common.MixVec3)
		if clipDuration > 0 {
			c.invTimeScaleFactor = float32(width-1) / clipDuration
		}
		c.resampled = true
	}
	return c, nil
}

func vectorTrack(keys []model.VectorKeyframe) track[mgl32.Vec3] {
	sorted := slices.Clone(keys)
	slices.SortStableFunc(sorted, func(a, b model.VectorKeyframe) int { return cmp.Compare(a.Time, b.Time) })
	times := make([]float32, len(sorted))
	values := make([]mgl32.Vec3, len(sorted))
	for i, k := range sorted {
		times[i] = k.Time
		values[i] = mgl32.Vec3(k.Value)
	}
	return newTrack(times, values)
}

func quatTrack(keys []model.QuaternionKeyframe) track[mgl32.Quat] {
	sorted := slices.Clone(keys)
	slices.SortStableFunc(sorted, func(a, b model.QuaternionKeyframe) int { return cmp.Compare(a.Time, b.Time) })
	times := make([]float32, len(sorted))
	values := make([]mgl32.Quat, len(sorted))
	for i, k := range sorted {
		times[i] = k.Time
		values[i] = common.NormalizeQuat(common.QuatFromArray(k.Value))
	}
	return newTrack(times, values)
}

// Name returns the animated node's name.
func (c *AnimationChannel) Name() string {
	return c.name
}

// BoneID returns the bound bone id, or -1 if the channel is unbound.
func (c *AnimationChannel) BoneID() int32 {
	return c.boneID
}

// SetBoneID binds the channel to a bone. Pass -1 to unbind.
func (c *AnimationChannel) SetBoneID(id int32) {
	c.boneID = id
}

// Resampled reports whether queries go through the lookup table.
func (c *AnimationChannel) Resampled() bool {
	return c.resampled
}

// KeyCounts returns the number of sparse keys of the translation, rotation and scale tracks.
func (c *AnimationChannel) KeyCounts() (translation, rotation, scale int) {
	return len(c.translation.times), len(c.rotation.times), len(c.scaling.times)
}

// Translation returns the interpolated translation at time t (ticks).
func (c *AnimationChannel) Translation(t float32) mgl32.Vec3 {
	if c.resampled {
		return c.translation.sampleTable(t, c.invTimeScaleFactor, common.MixVec3)
	}
	return c.translation.sampleSparse(t, common.MixVec3)
}

// Scaling returns the interpolated scale at time t (ticks).
func (c *AnimationChannel) Scaling(t float32) mgl32.Vec3 {
	if c.resampled {
		return c.scaling.sampleTable(t, c.invTimeScaleFactor, common.MixVec3)
	}
	return c.scaling.sampleSparse(t, common.MixVec3)
}

// Rotation returns the interpolated unit rotation at time t (ticks).
func (c *AnimationChannel) Rotation(t float32) mgl32.Quat {
	if c.resampled {
		return c.rotation.sampleTable(t, c.invTimeScaleFactor, common.SlerpQuat)
	}
	return c.rotation.sampleSparse(t, common.SlerpQuat)
}

// Sample returns the full local transform at time t (ticks).
func (c *AnimationChannel) Sample(t float32) common.Transform {
	return common.Transform{
		Translation: c.Translation(t),
		Rotation:    c.Rotation(t),
		Scale:       c.Scaling(t),
	}
}

// SparseSample evaluates the raw keyframes directly, bypassing the lookup table.
func (c *AnimationChannel) SparseSample(t float32) common.Transform {
	return common.Transform{
		Translation: c.translation.sampleSparse(t, common.MixVec3),
		Rotation:    c.rotation.sampleSparse(t, common.SlerpQuat),
		Scale:       c.scaling.sampleSparse(t, common.MixVec3),
	}
}

// TableEntry returns the resampled transform stored at table index i.
//
// Parameters:
//   - i: the table index, clamped into range
//
// Returns:
//   - common.Transform: the stored sample
//   - bool: false if the channel is not resampled
func (c *AnimationChannel) TableEntry(i int) (common.Transform, bool) {
	if !c.resampled {
		return common.Transform{}, false
	}
	i = min(max(i, 0), len(c.translation.table)-1)
	return common.Transform{
		Translation: c.translation.table[i],
		Rotation:    c.rotation.table[i],
		Scale:       c.scaling.table[i],
	}, true
}

// TableWidth returns the number of lookup table entries, or 0 if not resampled.
func (c *AnimationChannel) TableWidth() int {
	return len(c.translation.table)
}
