package animation

import "errors"

var (
	// ErrEmptyTrack is returned when a channel track carries no keyframes.
	ErrEmptyTrack = errors.New("animation: track has no keyframes")

	// ErrInvalidSkeleton is returned when bone ids or parent links are inconsistent.
	ErrInvalidSkeleton = errors.New("animation: invalid skeleton")

	// ErrNilSkeleton is returned when a clip is built without a skeleton to bind against.
	ErrNilSkeleton = errors.New("animation: nil skeleton")
)
