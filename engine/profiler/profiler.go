package profiler

import (
	"log"
	"runtime"
	"time"
)

// Stats is one reporting window of the profiler.
type Stats struct {
	FPS float64

	// Instances is the animated instance count reported on the last tick of the window.
	Instances int

	// AvgUpdate is the mean animation update cost per frame.
	AvgUpdate time.Duration

	// MaxUpdate is the slowest animation update in the window.
	MaxUpdate time.Duration

	HeapMB      float64
	AllocRateMB float64
	GCCount     uint32
}

// Profiler tracks frame rate, animation update cost and memory statistics.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastTotalAlloc uint64

	updateTotal, updateMax time.Duration
	last                   Stats
	quiet                  bool

	now func() time.Time
}

// ProfilerOption is a functional option for configuring a Profiler.
type ProfilerOption func(*Profiler)

// WithInterval sets how often statistics are reported. Non-positive values keep the default of one second.
//
// Parameters:
//   - d: the reporting interval
//
// Returns:
//   - ProfilerOption: option function to apply
func WithInterval(d time.Duration) ProfilerOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithQuiet collects statistics without logging them.
func WithQuiet(quiet bool) ProfilerOption {
	return func(p *Profiler) {
		p.quiet = quiet
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) ProfilerOption {
	return func(p *Profiler) {
		p.now = now
	}
}

// NewProfiler creates a new Profiler. The update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		now:            time.Now,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick should be called once per frame with the number of animated instances and the time the
// animation update took. Statistics are computed and logged when the update interval has elapsed.
//
// Parameters:
//   - instances: the number of animated instances this frame
//   - updateDuration: the wall time of this frame's animation update
//
// Returns:
//   - bool: true if a reporting window closed on this tick
func (p *Profiler) Tick(instances int, updateDuration time.Duration) bool {
	p.frameCount++
	p.updateTotal += updateDuration
	p.updateMax = max(p.updateMax, updateDuration)

	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc

	p.last = Stats{
		FPS:         float64(p.frameCount) / elapsed.Seconds(),
		Instances:   instances,
		AvgUpdate:   p.updateTotal / time.Duration(p.frameCount),
		MaxUpdate:   p.updateMax,
		HeapMB:      float64(p.memStats.Alloc) / 1024 / 1024,
		AllocRateMB: float64(allocDelta) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:     p.memStats.NumGC,
	}

	if !p.quiet {
		log.Printf("[Profiler] FPS: %.2f | Instances: %d | Update: avg %v max %v | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d",
			p.last.FPS, p.last.Instances, p.last.AvgUpdate, p.last.MaxUpdate, p.last.HeapMB, p.last.AllocRateMB, p.last.GCCount)
	}

	p.frameCount = 0
	p.updateTotal = 0
	p.updateMax = 0
	p.lastTime = currentTime
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Last returns the statistics of the most recently closed window.
func (p *Profiler) Last() Stats {
	return p.last
}
