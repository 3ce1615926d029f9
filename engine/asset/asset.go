// Package asset holds the immutable, shareable model data that animated instances reference by handle.
package asset

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-anim/engine/animation"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
)

// ErrInvalidHandle is returned when a Handle does not reference a model in the Library.
var ErrInvalidHandle = errors.New("invalid model handle")

// Handle addresses a Model stored in a Library. The zero Handle is never valid.
type Handle uint32

// Valid reports whether h could reference a model. It does not check any particular Library.
func (h Handle) Valid() bool {
	return h != 0
}

func (h Handle) index() int {
	return int(h) - 1
}

// Model is a skeleton together with every clip bound to it. A Model is never modified after it
// is added to a Library and may be read from any goroutine.
type Model struct {
	Name     string
	Skeleton *animation.Skeleton
	Clips    []*animation.AnimationClip
}

// ClipIndex returns the index of the first clip with the given name.
//
// Parameters:
//   - name: the clip name
//
// Returns:
//   - uint32: the clip index
//   - bool: false if no clip has that name
func (m *Model) ClipIndex(name string) (uint32, bool) {
	for i, c := range m.Clips {
		if c.Name() == name {
			return uint32(i), true
		}
	}
	return 0, false
}

// ClipNames returns the clip names in index order.
func (m *Model) ClipNames() []string {
	names := make([]string, len(m.Clips))
	for i, c := range m.Clips {
		names[i] = c.Name()
	}
	return names
}

// BoneCount returns the number of skinning matrices one instance of the model produces.
func (m *Model) BoneCount() int {
	if m.Skeleton == nil {
		return 0
	}
	return m.Skeleton.Len()
}

// Library is an append-only arena of models. Handles stay valid for the life of the Library.
type Library struct {
	mu     sync.RWMutex
	models []*Model
	byName map[string]Handle
}

// NewLibrary creates an empty Library.
func NewLibrary() *Library {
	return &Library{byName: make(map[string]Handle)}
}

// Load builds a Model from an imported model and adds it to the library.
// The skeleton is validated and every animation is bound to it; channels that fail to bind are
// skipped by the clip builder.
//
// Parameters:
//   - imported: the importer output
//   - opts: load options forwarded to every clip
//
// Returns:
//   - Handle: the handle of the new model
//   - error: an error if the skeleton or a clip could not be built
func (l *Library) Load(imported *model.ImportedModel, opts ...animation.LoadOption) (Handle, error) {
	if imported == nil {
		return 0, errors.New("load model: nil imported model")
	}

	skel, err := animation.NewSkeleton(imported.Bones, imported.GlobalInverseTransform)
	if err != nil {
		return 0, fmt.Errorf("load model %q: %w", imported.Name, err)
	}

	m := &Model{
		Name:     imported.Name,
		Skeleton: skel,
		Clips:    make([]*animation.AnimationClip, 0, len(imported.Animations)),
	}
	for _, raw := range imported.Animations {
		clip, err := animation.NewAnimationClip(raw, skel, opts...)
		if err != nil {
			return 0, fmt.Errorf("load model %q: %w", imported.Name, err)
		}
		m.Clips = append(m.Clips, clip)
	}

	return l.Add(m), nil
}

// Add stores an already built model and returns its handle. A later model with the same name
// takes over the name lookup; the earlier one stays reachable through its handle.
func (l *Library) Add(m *Model) Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.models = append(l.models, m)
	h := Handle(len(l.models))
	if m.Name != "" {
		l.byName[m.Name] = h
	}
	return h
}

// Model resolves a handle.
//
// Parameters:
//   - h: the handle returned by Load or Add
//
// Returns:
//   - *Model: the model
//   - error: an error wrapping ErrInvalidHandle if h is not in this library
func (l *Library) Model(h Handle) (*Model, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !h.Valid() || h.index() >= len(l.models) {
		return nil, fmt.Errorf("handle %d: %w", h, ErrInvalidHandle)
	}
	return l.models[h.index()], nil
}

// Lookup returns the handle of the most recently added model with the given name.
func (l *Library) Lookup(name string) (Handle, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h, ok := l.byName[name]
	return h, ok
}

// Len returns the number of models in the library.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.models)
}
