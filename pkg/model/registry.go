package model

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Registry errors.
var (
	ErrNotFound      = errors.New("model: resource not found")
	ErrDuplicatePath = errors.New("model: duplicate resource path")
	ErrReadOnly      = errors.New("model: resource is not writable")
)

// Registry maps paths to resources and keeps registration order for
// discovery.
type Registry struct {
	mu      sync.RWMutex
	byPath  map[string]*Resource
	ordered []*Resource
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byPath: make(map[string]*Resource)}
}

// Register adds a resource at startup. Registering the same path twice
// is a wiring bug and fails.
func (reg *Registry) Register(path string, desc Descriptor) (*Resource, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.byPath[path]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicatePath, path)
	}
	r := &Resource{
		path:           path,
		desc:           desc,
		representation: desc.Initial,
		updatedAt:      time.Now(),
	}
	reg.byPath[path] = r
	reg.ordered = append(reg.ordered, r)
	return r, nil
}

// Lookup returns the resource at path.
func (reg *Registry) Lookup(path string) (*Resource, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	r, ok := reg.byPath[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return r, nil
}

// List returns all resources in registration order.
func (reg *Registry) List() []*Resource {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return append([]*Resource(nil), reg.ordered...)
}

// Write validates data against the resource's validator and replaces the
// representation. The changed flag reports whether the decoded value
// actually differs from the previous one, so callers can skip redundant
// observer notifications.
func (reg *Registry) Write(r *Resource, data []byte) (changed bool, err error) {
	if r.desc.Validate == nil {
		return false, fmt.Errorf("%w: %s", ErrReadOnly, r.path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := r.desc.Validate(r.representation, data)
	if err != nil {
		return false, err
	}
	changed = !bytes.Equal(r.representation, next)
	r.representation = next
	r.updatedAt = time.Now()
	return changed, nil
}

// SetRepresentation replaces the representation without validation. This
// is the owner-side update path used by the sampling scheduler; the new
// value must already be a complete canonical encoding.
func (reg *Registry) SetRepresentation(r *Resource, data []byte) (changed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed = !bytes.Equal(r.representation, data)
	r.representation = data
	r.updatedAt = time.Now()
	return changed
}
