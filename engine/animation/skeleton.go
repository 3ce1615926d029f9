package animation

import (
	"fmt"
	"log"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// Bone is a single immutable bone of a Skeleton.
type Bone struct {
	// ID is the dense zero-based index of the bone.
	ID int32

	// Name is used to bind animation channels to this bone.
	Name string

	// ParentID is the parent bone's ID, or -1 for a root.
	ParentID int32

	// InverseBind transforms from model space to bone space at bind pose.
	InverseBind mgl32.Mat4

	// Rest is the local transform used when no channel animates the bone.
	Rest common.Transform
}

// Skeleton is the ordered, read-only bone list of a model. It is shared by every instance of the model.
type Skeleton struct {
	bones    []Bone
	nameToID map[string]int32

	// order lists bone ids such that every parent precedes its descendants,
	// independent of the declaration order.
	order []int32

	globalInverse mgl32.Mat4
}

// NewSkeleton validates the imported bones and builds the skeleton.
// Bone ids must equal their position in the slice and parent ids must reference an existing
// bone without forming a cycle. An empty bone list is accepted with a warning.
//
// Parameters:
//   - bones: the imported bones, ordered by id
//   - globalInverse: applied on top of every skinning matrix; a zero matrix means identity
//
// Returns:
//   - *Skeleton: the skeleton
//   - error: an error wrapping ErrInvalidSkeleton if the bone data is inconsistent
func NewSkeleton(bones []model.ImportedBone, globalInverse [16]float32) (*Skeleton, error) {
	s := &Skeleton{
		bones:         make([]Bone, len(bones)),
		nameToID:      make(map[string]int32, len(bones)),
		globalInverse: matOrIdentity(globalInverse),
	}
	if len(bones) == 0 {
		log.Printf("[Skeleton] skeleton has no bones; every clip bound to it will be empty")
	}

	n := int32(len(bones))
	for i, b := range bones {
		switch {
		case b.ID != int32(i):
			return nil, fmt.Errorf("bone %q: id %d does not match index %d: %w", b.Name, b.ID, i, ErrInvalidSkeleton)
		case b.ParentID >= n:
			return nil, fmt.Errorf("bone %q: parent %d out of range: %w", b.Name, b.ParentID, ErrInvalidSkeleton)
		case b.ParentID == b.ID:
			return nil, fmt.Errorf("bone %q: parent refers to itself: %w", b.Name, ErrInvalidSkeleton)
		}

		parent := b.ParentID
		if parent < 0 {
			parent = -1
		}
		s.bones[i] = Bone{
			ID:          b.ID,
			Name:        b.Name,
			ParentID:    parent,
			InverseBind: matOrIdentity(b.InverseBindMatrix),
			Rest:        restTransform(b),
		}

		if _, dup := s.nameToID[b.Name]; dup {
			log.Printf("[Skeleton] duplicate bone name %q; channels bind to the first occurrence", b.Name)
			continue
		}
		s.nameToID[b.Name] = b.ID
	}

	order, err := hierarchyOrder(s.bones)
	if err != nil {
		return nil, err
	}
	s.order = order
	return s, nil
}

// hierarchyOrder walks each bone's parent chain once and returns ids with parents first.
func hierarchyOrder(bones []Bone) ([]int32, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	marks := make([]uint8, len(bones))
	order := make([]int32, 0, len(bones))
	var chain []int32

	for i := range bones {
		id := int32(i)
		for id >= 0 && marks[id] == unvisited {
			marks[id] = visiting
			chain = append(chain, id)
			id = bones[id].ParentID
		}
		if id >= 0 && marks[id] == visiting {
			return nil, fmt.Errorf("bone %q: parent chain forms a cycle: %w", bones[id].Name, ErrInvalidSkeleton)
		}
		for j := len(chain) - 1; j >= 0; j-- {
			marks[chain[j]] = done
			order = append(order, chain[j])
		}
		chain = chain[:0]
	}
	return order, nil
}

func matOrIdentity(m [16]float32) mgl32.Mat4 {
	if m == ([16]float32{}) {
		return mgl32.Ident4()
	}
	return mgl32.Mat4(m)
}

func restTransform(b model.ImportedBone) common.Transform {
	t := common.IdentityTransform()
	t.Translation = mgl32.Vec3(b.RestTranslation)
	if b.RestRotation != ([4]float32{}) {
		t.Rotation = common.NormalizeQuat(common.QuatFromArray(b.RestRotation))
	}
	if b.RestScale != ([3]float32{}) {
		t.Scale = mgl32.Vec3(b.RestScale)
	}
	return t
}

// Len returns the number of bones.
func (s *Skeleton) Len() int {
	return len(s.bones)
}

// Bones returns the bone list indexed by id. The slice must not be modified.
func (s *Skeleton) Bones() []Bone {
	return s.bones
}

// Bone returns the bone with the given id.
//
// Parameters:
//   - id: the bone id
//
// Returns:
//   - Bone: the bone
//   - bool: false if id is out of range
func (s *Skeleton) Bone(id int32) (Bone, bool) {
	if id < 0 || int(id) >= len(s.bones) {
		return Bone{}, false
	}
	return s.bones[id], true
}

// BoneIDByName looks up a bone by exact name.
//
// Parameters:
//   - name: the bone name
//
// Returns:
//   - int32: the bone id, or -1 if no bone has that name
func (s *Skeleton) BoneIDByName(name string) int32 {
	if id, ok := s.nameToID[name]; ok {
		return id
	}
	return -1
}

// Order returns bone ids in an order where every parent precedes its children.
func (s *Skeleton) Order() []int32 {
	return s.order
}

// GlobalInverse returns the matrix applied on top of every skinning matrix.
func (s *Skeleton) GlobalInverse() mgl32.Mat4 {
	return s.globalInverse
}
