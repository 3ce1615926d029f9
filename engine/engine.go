package engine

import (
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-anim/engine/profiler"
	"github.com/Carmen-Shannon/oxy-anim/engine/scene"
)

// engine implements the Engine interface.
// Drives the scenes from a fixed-rate tick goroutine.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	// Setters may run while the tick goroutine reads these.
	engineTickRate atomic.Int64
	tickCallback   atomic.Pointer[stepCallback]
	frameCallback  atomic.Pointer[stepCallback]

	mu     sync.Mutex
	scenes map[int]scene.Scene
	keys   []int
}

// stepCallback is a tick or frame hook.
type stepCallback func(deltaTime float32)

// storeCallback publishes callback, or clears the slot when it is nil.
func storeCallback(slot *atomic.Pointer[stepCallback], callback func(deltaTime float32)) {
	if callback == nil {
		slot.Store(nil)
		return
	}
	cb := stepCallback(callback)
	slot.Store(&cb)
}

// runCallback invokes the callback in slot, if any.
func runCallback(slot *atomic.Pointer[stepCallback], dt float32) {
	if cb := slot.Load(); cb != nil {
		(*cb)(dt)
	}
}

// Engine is the main entry point for the animation runtime.
// It owns the scenes and advances every active one once per tick, in ascending z-index order.
type Engine interface {
	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// Profiler returns the profiler fed by each tick.
	//
	// Returns:
	//   - *profiler.Profiler: the engine profiler
	Profiler() *profiler.Profiler

	// SetTickRate sets the engine tick rate in frames per second.
	// If the engine is running, the change takes effect immediately.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// TickRate returns the interval between ticks.
	//
	// Returns:
	//   - time.Duration: the tick interval
	TickRate() time.Duration

	// SetTickCallback registers the function called at the start of each tick, before any scene
	// is updated. Use this for input processing and to drive playback commands.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetFrameCallback registers the function called after every active scene was updated.
	// Use this to stage each scene's pose batch for upload.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetFrameCallback(callback func(deltaTime float32))

	// AddScene registers a scene at the given z-index key, replacing any scene already there.
	// A nil scene is rejected.
	//
	// Parameters:
	//   - key: the z-index determining update order (lower updates first)
	//   - s: the Scene to register
	AddScene(key int, s scene.Scene)

	// RemoveScene removes the scene at the given z-index key.
	//
	// Parameters:
	//   - key: the z-index of the scene to remove
	RemoveScene(key int)

	// Scene retrieves the scene registered at the given z-index key.
	//
	// Parameters:
	//   - key: the z-index of the scene to retrieve
	//
	// Returns:
	//   - scene.Scene: the scene at the key, or nil if not found
	Scene(key int) scene.Scene

	// Scenes returns a copy of all registered scenes keyed by z-index.
	//
	// Returns:
	//   - map[int]scene.Scene: a copy of the scenes map
	Scenes() map[int]scene.Scene

	// Step runs a single tick with the given delta time on the calling goroutine.
	//
	// Parameters:
	//   - dt: the elapsed time in seconds
	//
	// Returns:
	//   - int: the number of instances across the updated scenes
	Step(dt float32) int

	// Run starts the fixed-rate tick loop and blocks until Quit is called.
	Run()

	// Quit signals the tick loop to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
//
// Parameters:
//   - options: functional options for engine configuration (profiling, tick rate, scenes)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		scenes:          make(map[int]scene.Scene),
	}
	e.engineTickRate.Store(int64(time.Second / 60))

	for _, opt := range options {
		opt(e)
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler()
	}
	e.sortKeys()

	return e
}

func (e *engine) Run() {
	if !e.running.CompareAndSwap(false, true) {
		log.Printf("[Engine] Run called while already running")
		return
	}
	e.wg.Add(1)
	go e.handleEngine()
	e.wg.Wait()
}

// Quit signals the tick goroutine to exit.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// handleEngine runs the fixed-rate tick loop in its own goroutine.
// Listens for dynamic rate changes via tickRateChannel and exits when the quit channel is closed.
// Recovers from panics so a failing scene stops the loop instead of the process.
func (e *engine) handleEngine() {
	defer e.wg.Done()
	defer e.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Engine] tick goroutine recovered from panic: %v", r)
			e.Quit()
		}
	}()

	ticker := time.NewTicker(e.TickRate())
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now
			e.Step(dt)
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
		}
	}
}

func (e *engine) Step(dt float32) int {
	runCallback(&e.tickCallback, dt)

	instances := 0
	var update time.Duration
	for _, s := range e.activeScenes() {
		s.Update(dt)
		instances += s.InstanceCount()
		update += s.LastUpdateDuration()
	}

	runCallback(&e.frameCallback, dt)

	if e.profilingEnabled.Load() {
		e.profiler.Tick(instances, update)
	}
	return instances
}

// activeScenes snapshots the active scenes in ascending key order.
func (e *engine) activeScenes() []scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()

	active := make([]scene.Scene, 0, len(e.keys))
	for _, k := range e.keys {
		if s := e.scenes[k]; s != nil && s.Active() {
			active = append(active, s)
		}
	}
	return active
}

// sortKeys rebuilds the ordered key list. Caller must hold the lock or own the engine exclusively.
func (e *engine) sortKeys() {
	e.keys = e.keys[:0]
	for k := range e.scenes {
		e.keys = append(e.keys, k)
	}
	sort.Ints(e.keys)
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)
	e.engineTickRate.Store(int64(newRate))

	if e.running.Load() {
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	}
}

func (e *engine) TickRate() time.Duration {
	return time.Duration(e.engineTickRate.Load())
}

// SetTickCallback registers the function called at the start of each tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	storeCallback(&e.tickCallback, callback)
}

// SetFrameCallback registers the function called after the scenes were updated.
func (e *engine) SetFrameCallback(callback func(deltaTime float32)) {
	storeCallback(&e.frameCallback, callback)
}

func (e *engine) AddScene(key int, s scene.Scene) {
	if s == nil {
		log.Printf("[Engine] ignoring nil scene at key %d", key)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scenes[key] = s
	e.sortKeys()
}

func (e *engine) RemoveScene(key int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.scenes, key)
	e.sortKeys()
}

func (e *engine) Scene(key int) scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scenes[key]
}

func (e *engine) Scenes() map[int]scene.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make(map[int]scene.Scene, len(e.scenes))
	for k, v := range e.scenes {
		cp[k] = v
	}
	return cp
}
