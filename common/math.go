package common

import (
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Transform is a decomposed bone or node transform.
type Transform struct {
	// Translation is the position offset.
	Translation mgl32.Vec3

	// Rotation is the orientation as a unit quaternion.
	Rotation mgl32.Quat

	// Scale is the scale factor along each axis.
	Scale mgl32.Vec3
}

// IdentityTransform returns a transform with zero translation, identity rotation and unit scale.
//
// Returns:
//   - Transform: the identity transform
func IdentityTransform() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// Mat4 composes the transform into a column-major matrix as T * R * S.
//
// Returns:
//   - mgl32.Mat4: the composed matrix
func (t Transform) Mat4() mgl32.Mat4 {
	return ComposeTRS(t.Translation, t.Rotation, t.Scale)
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// ComposeTRS builds a column-major matrix from translation, rotation and scale (T * R * S).
// The rotation is normalized before conversion.
//
// Parameters:
//   - t: translation
//   - r: rotation quaternion
//   - s: scale
//
// Returns:
//   - mgl32.Mat4: the composed matrix
func ComposeTRS(t mgl32.Vec3, r mgl32.Quat, s mgl32.Vec3) mgl32.Mat4 {
	m := NormalizeQuat(r).Mat4()
	for col := 0; col < 3; col++ {
		m[col*4+0] *= s[col]
		m[col*4+1] *= s[col]
		m[col*4+2] *= s[col]
	}
	m[12], m[13], m[14] = t[0], t[1], t[2]
	return m
}

// BuildModelMatrix constructs a 4x4 model matrix from position, Euler rotation, and scale.
// The rotation order is Y * X * Z (yaw-pitch-roll). All matrices are column-major.
//
// Parameters:
//   - pos: translation in world space
//   - rot: rotation angles in radians around each axis
//   - scale: scale factors along each axis
//
// Returns:
//   - mgl32.Mat4: the model matrix
func BuildModelMatrix(pos, rot, scale mgl32.Vec3) mgl32.Mat4 {
	r := mgl32.HomogRotate3DY(rot[1]).Mul4(mgl32.HomogRotate3DX(rot[0])).Mul4(mgl32.HomogRotate3DZ(rot[2]))
	return mgl32.Translate3D(pos[0], pos[1], pos[2]).Mul4(r).Mul4(mgl32.Scale3D(scale[0], scale[1], scale[2]))
}

// ExtractPositionScale reads the translation column and the per-axis scale (column lengths)
// of a model matrix built without shear.
//
// Parameters:
//   - m: the model matrix
//
// Returns:
//   - pos: the translation
//   - scale: the column magnitudes
func ExtractPositionScale(m mgl32.Mat4) (pos, scale mgl32.Vec3) {
	pos = mgl32.Vec3{m[12], m[13], m[14]}
	scale = mgl32.Vec3{
		m.Col(0).Vec3().Len(),
		m.Col(1).Vec3().Len(),
		m.Col(2).Vec3().Len(),
	}
	return pos, scale
}

// MixVec3 linearly interpolates between a and b.
//
// Parameters:
//   - a: value at factor 0
//   - b: value at factor 1
//   - factor: interpolation factor
//
// Returns:
//   - mgl32.Vec3: the interpolated vector
func MixVec3(a, b mgl32.Vec3, factor float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(factor))
}

// NormalizeQuat returns q scaled to unit length. A degenerate (zero) quaternion becomes identity.
//
// Parameters:
//   - q: the quaternion to normalize
//
// Returns:
//   - mgl32.Quat: the unit quaternion
func NormalizeQuat(q mgl32.Quat) mgl32.Quat {
	l := q.Len()
	if l < 1e-8 {
		return mgl32.QuatIdent()
	}
	if math32.Abs(l-1) < 1e-7 {
		return q
	}
	return q.Scale(1 / l)
}

// SlerpQuat spherically interpolates between two rotations along the shortest arc and
// normalizes the result to counteract drift.
//
// Parameters:
//   - a: rotation at factor 0
//   - b: rotation at factor 1
//   - factor: interpolation factor in [0, 1]
//
// Returns:
//   - mgl32.Quat: the interpolated unit quaternion
func SlerpQuat(a, b mgl32.Quat, factor float32) mgl32.Quat {
	a, b = NormalizeQuat(a), NormalizeQuat(b)
	if factor <= 0 {
		return a
	}
	if factor >= 1 {
		return b
	}
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return NormalizeQuat(mgl32.QuatSlerp(a, b, factor))
}

// QuatFromArray converts an (x, y, z, w) array into a quaternion.
//
// Parameters:
//   - v: the quaternion components in x, y, z, w order
//
// Returns:
//   - mgl32.Quat: the quaternion
func QuatFromArray(v [4]float32) mgl32.Quat {
	return mgl32.Quat{W: v[3], V: mgl32.Vec3{v[0], v[1], v[2]}}
}

// WrapTime wraps t into [0, duration). A non-positive duration pins the result to 0.
//
// Parameters:
//   - t: the time to wrap
//   - duration: the loop length
//
// Returns:
//   - float32: the wrapped time
func WrapTime(t, duration float32) float32 {
	if duration <= 0 {
		return 0
	}
	t = math32.Mod(t, duration)
	if t < 0 {
		t += duration
	}
	if t >= duration {
		t = 0
	}
	return t
}
