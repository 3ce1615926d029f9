package animator

import (
	"github.com/Carmen-Shannon/oxy-anim/engine/renderer/bind_group_provider"
)

// AnimatorBuilderOption is a functional option for configuring an Animator during construction.
type AnimatorBuilderOption func(*animator)

// WithMaxInstances is an option builder that sets the initial instance capacity of the Animator.
// The capacity still grows automatically when AddInstance overflows it.
//
// Parameters:
//   - maxInstances: the number of instances to preallocate (minimum 1)
//
// Returns:
//   - AnimatorBuilderOption: a function that applies the max instances option to an animator
func WithMaxInstances(maxInstances int) AnimatorBuilderOption {
	return func(a *animator) {
		a.backend.SetMaxInstances(uint32(max(maxInstances, 1)))
	}
}

// WithComputeBindGroupProvider replaces the provider whose buffers receive the animator's
// staged writes (globals, playback state and world matrices).
//
// Parameters:
//   - provider: the BindGroupProvider to stage writes against
//
// Returns:
//   - AnimatorBuilderOption: a function that applies the provider option to an animator
func WithComputeBindGroupProvider(provider bind_group_provider.BindGroupProvider) AnimatorBuilderOption {
	return func(a *animator) {
		a.backend.SetComputeBindGroupProvider(provider)
	}
}
