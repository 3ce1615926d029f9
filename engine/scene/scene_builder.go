package scene

import (
	"github.com/Carmen-Shannon/oxy-anim/engine/asset"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithActive sets whether the scene is active.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithLibrary shares an existing asset library with the scene instead of creating an empty one.
//
// Parameters:
//   - lib: the library
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLibrary(lib *asset.Library) SceneBuilderOption {
	return func(s *scene) {
		s.lib = lib
	}
}

// WithComputeWorkers sets the number of worker goroutines used during the parallel
// prep phase of Update. Defaults to runtime.NumCPU()-1.
// Higher values may improve throughput with many animators; lower values reduce
// scheduling overhead for simple scenes.
//
// Parameters:
//   - n: the number of compute workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithComputeWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		if n < 1 {
			n = 1
		}
		s.computeWorkers = n
	}
}

// WithAnimatorBindings sets the bindings every animator flushes its globals, playback state
// and world matrices to. Defaults to 0, 1 and 2.
//
// Parameters:
//   - globals: the GPUAnimationGlobals uniform binding
//   - state: the GPUSkeletalAnimationData storage binding
//   - model: the GPUInstanceData storage binding
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithAnimatorBindings(globals, state, model int) SceneBuilderOption {
	return func(s *scene) {
		s.globalsBinding, s.stateBinding, s.modelBinding = globals, state, model
	}
}
