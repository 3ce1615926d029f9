package animation

import (
	"fmt"
	"log"

	"github.com/Carmen-Shannon/oxy-anim/engine/model"
)

// AnimationClip is one named animation bound to a skeleton. It is built once at load time and
// shared read-only by every instance of the model.
type AnimationClip struct {
	name           string
	duration       float32
	ticksPerSecond float32
	channels       []*AnimationChannel

	// byBone maps a bone id to its channel index in channels, or -1.
	byBone []int32
}

// NewAnimationClip builds every channel of raw and binds it to skeleton by exact bone name.
// Channels whose node matches no bone, that repeat an already bound bone, or that carry an
// empty track are skipped with a warning; scenes commonly animate helper nodes that are not
// skinning bones. Duration is copied verbatim and a zero tick rate falls back to the default.
//
// Parameters:
//   - raw: the imported animation
//   - skeleton: the skeleton to bind channels against
//   - opts: load options for the channels
//
// Returns:
//   - *AnimationClip: the clip
//   - error: ErrNilSkeleton if skeleton is nil
func NewAnimationClip(raw model.ImportedAnimation, skeleton *Skeleton, opts ...LoadOption) (*AnimationClip, error) {
	if skeleton == nil {
		return nil, fmt.Errorf("clip %q: %w", raw.Name, ErrNilSkeleton)
	}
	cfg := newLoadConfig(opts)

	c := &AnimationClip{
		name:           raw.Name,
		duration:       raw.DurationTicks,
		ticksPerSecond: raw.TicksPerSecond,
		byBone:         make([]int32, skeleton.Len()),
	}
	if c.ticksPerSecond <= 0 {
		c.ticksPerSecond = cfg.defaultTicksPerSecond
	}
	for i := range c.byBone {
		c.byBone[i] = -1
	}
	c.addChannels(raw, skeleton, cfg)
	return c, nil
}

func (c *AnimationClip) addChannels(raw model.ImportedAnimation, skeleton *Skeleton, cfg loadConfig) {
	for _, rc := range raw.Channels {
		boneID := skeleton.BoneIDByName(rc.NodeName)
		if boneID < 0 {
			log.Printf("[AnimationClip] %s: channel %q matches no bone, skipping", c.name, rc.NodeName)
			continue
		}
		if c.byBone[boneID] >= 0 {
			log.Printf("[AnimationClip] %s: bone %q already has a channel, skipping duplicate", c.name, rc.NodeName)
			continue
		}

		ch, err := loadChannel(rc, c.duration, cfg)
		if err != nil {
			log.Printf("[AnimationClip] %s: %v, skipping", c.name, err)
			continue
		}
		ch.SetBoneID(boneID)
		c.byBone[boneID] = int32(len(c.channels))
		c.channels = append(c.channels, ch)
	}
}

// Name returns the clip name.
func (c *AnimationClip) Name() string {
	return c.name
}

// Channels returns the bound channels. The slice must not be modified.
func (c *AnimationClip) Channels() []*AnimationChannel {
	return c.channels
}

// Duration returns the clip length in ticks.
func (c *AnimationClip) Duration() float32 {
	return c.duration
}

// TicksPerSecond returns the clip tick rate; never zero.
func (c *AnimationClip) TicksPerSecond() float32 {
	return c.ticksPerSecond
}

// DurationSeconds returns the clip length in seconds at normal speed.
func (c *AnimationClip) DurationSeconds() float32 {
	return c.duration / c.ticksPerSecond
}

// ChannelForBone returns the channel animating the given bone, or nil.
func (c *AnimationClip) ChannelForBone(id int32) *AnimationChannel {
	if id < 0 || int(id) >= len(c.byBone) {
		return nil
	}
	if idx := c.byBone[id]; idx >= 0 {
		return c.channels[idx]
	}
	return nil
}
