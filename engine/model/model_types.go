// Package model holds the plain data types an upstream scene importer produces for a skinned model.
// Nothing in this package parses files; importers (glTF, FBX, ...) fill these structs and hand
// them to the animation pipeline, which treats them as read-only.
package model

// --- Skeleton Types ---

// ImportedBone is a single bone as reported by the importer.
type ImportedBone struct {
	// ID is the bone's dense zero-based index. It must equal the bone's position in ImportedModel.Bones.
	ID int32

	// Name is the bone's identifier, used to bind animation channels.
	Name string

	// ParentID is the ID of the parent bone (-1 for root bones).
	ParentID int32

	// InverseBindMatrix transforms from model space to bone space at bind pose (column-major).
	InverseBindMatrix [16]float32

	// RestTranslation, RestRotation and RestScale are the bone's local transform when no
	// channel animates it. A zero RestRotation and RestScale are treated as identity.
	RestTranslation [3]float32
	RestRotation    [4]float32
	RestScale       [3]float32
}

// --- Animation Types ---

// VectorKeyframe stores a 3D vector value at a specific time.
type VectorKeyframe struct {
	// Time is the keyframe timestamp in ticks.
	Time float32

	// Value is the 3D vector value at this keyframe.
	Value [3]float32
}

// QuaternionKeyframe stores a quaternion rotation at a specific time.
type QuaternionKeyframe struct {
	// Time is the keyframe timestamp in ticks.
	Time float32

	// Value is the quaternion value at this keyframe (x, y, z, w).
	Value [4]float32
}

// ImportedChannel contains the raw keyframe tracks of one animated node.
// Tracks are independent: they may have different key counts and key times.
type ImportedChannel struct {
	// NodeName is the name of the animated node; it is matched against bone names.
	NodeName string

	// PositionKeys are keyframes for translation.
	PositionKeys []VectorKeyframe

	// RotationKeys are keyframes for rotation (quaternion).
	RotationKeys []QuaternionKeyframe

	// ScaleKeys are keyframes for scale.
	ScaleKeys []VectorKeyframe
}

// ImportedAnimation is one named animation (walk, run, attack, etc.).
type ImportedAnimation struct {
	// Name is the animation identifier.
	Name string

	// DurationTicks is the total length of the animation in ticks.
	DurationTicks float32

	// TicksPerSecond is the tick rate. Zero means the source did not report one.
	TicksPerSecond float32

	// Channels holds one entry per animated node.
	Channels []ImportedChannel
}

// --- Import Types ---

// ImportedModel is everything the animation pipeline needs from one imported skinned model.
type ImportedModel struct {
	// Name is the model identifier.
	Name string

	// Bones is the skeleton, ordered by ID.
	Bones []ImportedBone

	// GlobalInverseTransform is applied on top of every skinning matrix (column-major).
	// A zero matrix is treated as identity.
	GlobalInverseTransform [16]float32

	// Animations are all animation clips bundled with the model.
	Animations []ImportedAnimation
}
