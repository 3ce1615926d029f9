package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProfilerWindow(t *testing.T) {
	now := time.Unix(100, 0)
	p := NewProfiler(
		WithInterval(time.Second),
		WithQuiet(true),
		WithClock(func() time.Time { return now }),
	)

	for i := range 3 {
		now = now.Add(250 * time.Millisecond)
		assert.False(t, p.Tick(10, time.Duration(i+1)*time.Millisecond))
	}

	now = now.Add(250 * time.Millisecond)
	assert.True(t, p.Tick(12, 4*time.Millisecond))

	s := p.Last()
	assert.InDelta(t, 4.0, s.FPS, 1e-9)
	assert.Equal(t, 12, s.Instances)
	assert.Equal(t, 2500*time.Microsecond, s.AvgUpdate)
	assert.Equal(t, 4*time.Millisecond, s.MaxUpdate)

	now = now.Add(10 * time.Millisecond)
	assert.False(t, p.Tick(12, time.Millisecond), "window restarts after reporting")
}

func TestProfilerIgnoresBadInterval(t *testing.T) {
	p := NewProfiler(WithInterval(-time.Second), WithQuiet(true))
	assert.Equal(t, time.Second, p.updateInterval)
}
