package animator

// AnimatorBackendType identifies the type of animation backend used by an Animator.
type AnimatorBackendType int

const (
	// BackendTypeRigid drives instances of models without a skeleton: world transforms only,
	// with an optional constant spin.
	BackendTypeRigid AnimatorBackendType = iota

	// BackendTypeSkeletal samples clips, blends and composes the skeleton of every instance on the CPU
	// and writes the skinning matrices into the frame's pose batch.
	BackendTypeSkeletal
)

// String returns the backend name.
func (t AnimatorBackendType) String() string {
	switch t {
	case BackendTypeSkeletal:
		return "skeletal"
	case BackendTypeRigid:
		return "rigid"
	}
	return "unknown"
}

// AnimatorBackend is the union interface that all animation backends must implement.
// It embeds both rigidAnimatorBackend and skeletalAnimatorBackend, requiring concrete
// implementations to provide the full method set. Playback methods are no-ops on the rigid backend.
type AnimatorBackend interface {
	rigidAnimatorBackend
	skeletalAnimatorBackend
}
