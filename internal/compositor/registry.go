package compositor

import (
	"fmt"
	"sync"
)

// MaxBackends is the fixed capacity of the registry table. Registration past
// this limit fails closed with ErrRegistryFull, leaving no partial state.
const MaxBackends = 8

// Registry holds registered backend descriptors in registration order. It is
// an explicit object owned by the application root, so tests can build
// independent instances.
type Registry struct {
	mu          sync.RWMutex
	descriptors []Descriptor
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		descriptors: make([]Descriptor, 0, MaxBackends),
	}
}

// Register adds a descriptor to the registry. Names must be unique and the
// descriptor must carry a constructor.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("compositor: descriptor without name")
	}
	if d.New == nil {
		return fmt.Errorf("compositor: descriptor %q without constructor", d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.descriptors) >= MaxBackends {
		return fmt.Errorf("%w (max %d)", ErrRegistryFull, MaxBackends)
	}
	for _, existing := range r.descriptors {
		if existing.Name == d.Name {
			return fmt.Errorf("%w: %q", ErrAlreadyRegistered, d.Name)
		}
	}

	r.descriptors = append(r.descriptors, d)
	return nil
}

// Descriptors returns a copy of the registered descriptors in registration
// order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Len returns the number of registered descriptors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.descriptors)
}
