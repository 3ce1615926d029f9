package animation

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-anim/common"
)

// InstanceAnimationState is the mutable playback state of one animated instance.
//
// A primary clip always plays. While blending, a secondary clip plays alongside it with its
// own independent play position, and the pose is mixed by BlendFactor (0 = primary only,
// 1 = secondary only). A blend ramp slides BlendFactor toward 1 over time and then promotes
// the secondary clip to primary.
type InstanceAnimationState struct {
	clipIndex   uint32
	playTimePos float32
	speedFactor float32

	blending       bool
	blendClipIndex uint32
	blendTimePos   float32
	blendFactor    float32

	// blendRate is the BlendFactor increase per second; 0 leaves the factor to the caller.
	blendRate float32
}

// StateSnapshot is a verbatim copy of the persisted playback fields of an instance.
type StateSnapshot struct {
	ClipIndex      uint32  `yaml:"clip_index"`
	PlayTimePos    float32 `yaml:"play_time_pos"`
	SpeedFactor    float32 `yaml:"speed_factor"`
	Blending       bool    `yaml:"blending"`
	BlendClipIndex uint32  `yaml:"blend_clip_index"`
	BlendTimePos   float32 `yaml:"blend_time_pos"`
	BlendFactor    float32 `yaml:"blend_factor"`
	BlendRate      float32 `yaml:"blend_rate"`
}

// NewInstanceAnimationState returns the state of a freshly spawned instance: clip 0, time 0,
// normal speed, no blend.
func NewInstanceAnimationState() InstanceAnimationState {
	return InstanceAnimationState{speedFactor: 1}
}

// ResolveClip validates a clip index against the number of clips. Out-of-range indexes are a
// programming error: they panic in animdebug builds and clamp to the last clip otherwise.
//
// Parameters:
//   - index: the requested clip index
//   - count: the number of clips available
//
// Returns:
//   - uint32: a valid clip index (0 when count is 0)
func ResolveClip(index uint32, count int) uint32 {
	if count <= 0 {
		return 0
	}
	if int(index) < count {
		return index
	}
	if debugAssertions {
		panic(fmt.Sprintf("animation: clip index %d out of range [0, %d)", index, count))
	}
	return uint32(count - 1)
}

// Advance moves playback forward by deltaTime seconds. Each active clip advances by
// deltaTime * ticksPerSecond * speedFactor ticks and wraps around its own duration.
//
// Parameters:
//   - deltaTime: wall-clock time since the last frame in seconds
//   - clips: the clips of the instance's model
func (s *InstanceAnimationState) Advance(deltaTime float32, clips []*AnimationClip) {
	if len(clips) == 0 {
		return
	}
	s.clipIndex = ResolveClip(s.clipIndex, len(clips))
	s.playTimePos = advanceTime(s.playTimePos, deltaTime, s.speedFactor, clips[s.clipIndex])

	if !s.blending {
		return
	}
	s.blendClipIndex = ResolveClip(s.blendClipIndex, len(clips))
	s.blendTimePos = advanceTime(s.blendTimePos, deltaTime, s.speedFactor, clips[s.blendClipIndex])

	if s.blendRate > 0 {
		s.blendFactor += deltaTime * s.blendRate
		if s.blendFactor >= 1 {
			s.clipIndex = s.blendClipIndex
			s.playTimePos = s.blendTimePos
			s.ClearBlend()
		}
	}
}

func advanceTime(pos, deltaTime, speed float32, clip *AnimationClip) float32 {
	return common.WrapTime(pos+deltaTime*clip.TicksPerSecond()*speed, clip.Duration())
}

// Play switches the primary clip, restarts it from time 0 and drops any blend.
func (s *InstanceAnimationState) Play(clipIndex uint32) {
	s.clipIndex = clipIndex
	s.playTimePos = 0
	s.ClearBlend()
}

// BlendTo starts the secondary clip from time 0 and ramps BlendFactor from 0 to 1 over
// duration seconds, after which the secondary clip becomes the primary one.
// A non-positive duration switches immediately.
func (s *InstanceAnimationState) BlendTo(clipIndex uint32, duration float32) {
	if duration <= 0 {
		s.Play(clipIndex)
		return
	}
	s.blending = true
	s.blendClipIndex = clipIndex
	s.blendTimePos = 0
	s.blendFactor = 0
	s.blendRate = 1 / duration
}

// SetBlend activates manual two-clip blending with a fixed factor, clamped into [0, 1].
// The secondary clip keeps its play position if it was already blending.
func (s *InstanceAnimationState) SetBlend(clipIndex uint32, factor float32) {
	if !s.blending || s.blendClipIndex != clipIndex {
		s.blendTimePos = 0
	}
	s.blending = true
	s.blendClipIndex = clipIndex
	s.blendFactor = clampUnit(factor)
	s.blendRate = 0
}

// ClearBlend stops blending and keeps the primary clip.
func (s *InstanceAnimationState) ClearBlend() {
	s.blending = false
	s.blendClipIndex = 0
	s.blendTimePos = 0
	s.blendFactor = 0
	s.blendRate = 0
}

func (s *InstanceAnimationState) ClipIndex() uint32 { return s.clipIndex }

// SetClipIndex changes the primary clip without resetting its play position.
func (s *InstanceAnimationState) SetClipIndex(i uint32) { s.clipIndex = i }

func (s *InstanceAnimationState) PlayTimePos() float32 { return s.playTimePos }

// SetPlayTimePos scrubs the primary clip. The value is wrapped on the next Advance.
func (s *InstanceAnimationState) SetPlayTimePos(t float32) { s.playTimePos = t }

func (s *InstanceAnimationState) SpeedFactor() float32 { return s.speedFactor }

func (s *InstanceAnimationState) SetSpeedFactor(f float32) { s.speedFactor = f }

func (s *InstanceAnimationState) Blending() bool { return s.blending }

func (s *InstanceAnimationState) BlendClipIndex() uint32 { return s.blendClipIndex }

func (s *InstanceAnimationState) BlendTimePos() float32 { return s.blendTimePos }

func (s *InstanceAnimationState) SetBlendTimePos(t float32) { s.blendTimePos = t }

func (s *InstanceAnimationState) BlendFactor() float32 { return s.blendFactor }

// SetBlendFactor sets the blend weight, clamped into [0, 1]. It has no visible effect unless blending.
func (s *InstanceAnimationState) SetBlendFactor(f float32) { s.blendFactor = clampUnit(f) }

// BlendRamping reports whether BlendFactor is being slid automatically.
func (s *InstanceAnimationState) BlendRamping() bool { return s.blending && s.blendRate > 0 }

// Snapshot copies the persisted fields.
func (s *InstanceAnimationState) Snapshot() StateSnapshot {
	return StateSnapshot{
		ClipIndex:      s.clipIndex,
		PlayTimePos:    s.playTimePos,
		SpeedFactor:    s.speedFactor,
		Blending:       s.blending,
		BlendClipIndex: s.blendClipIndex,
		BlendTimePos:   s.blendTimePos,
		BlendFactor:    s.blendFactor,
		BlendRate:      s.blendRate,
	}
}

// Restore overwrites the state with a snapshot taken by Snapshot.
func (s *InstanceAnimationState) Restore(snap StateSnapshot) {
	s.clipIndex = snap.ClipIndex
	s.playTimePos = snap.PlayTimePos
	s.speedFactor = snap.SpeedFactor
	s.blending = snap.Blending
	s.blendClipIndex = snap.BlendClipIndex
	s.blendTimePos = snap.BlendTimePos
	s.blendFactor = clampUnit(snap.BlendFactor)
	s.blendRate = max(snap.BlendRate, 0)
}

func clampUnit(f float32) float32 {
	return min(max(f, 0), 1)
}
