package animator

import "github.com/go-gl/mathgl/mgl32"

// FrameOutput is the region of the shared pose batch owned by one animator for one frame.
// Regions of different animators never overlap, so animators may fill them concurrently.
type FrameOutput struct {
	// BaseOffset is the index of Matrices[0] inside the whole batch.
	BaseOffset uint32

	// Matrices receives VisibleCount * BoneCount skinning matrices, instance-major.
	Matrices []mgl32.Mat4

	// Ranges receives one entry per visible instance.
	Ranges []GPUInstanceRange

	// Models receives the world matrix of each visible instance.
	Models []mgl32.Mat4
}

// capacity returns how many instances of boneCount bones fit in the output.
func (o FrameOutput) capacity(boneCount uint32) uint32 {
	n := uint32(min(len(o.Ranges), len(o.Models)))
	if boneCount > 0 {
		n = min(n, uint32(len(o.Matrices))/boneCount)
	}
	return n
}
