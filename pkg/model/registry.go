package model

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a concrete object with a fresh identity and default
// field values. Reconstruction overwrites those defaults afterwards.
type Factory func() Object

// Registry maps type names to factories, enabling polymorphic
// reconstruction of persisted records. It is safe for concurrent use and
// is normally populated during init.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// Types is the process-wide default registry. Concrete types register
// themselves here at startup; engines take a *Registry so tests can wire
// their own.
var Types = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the given type name. Re-registering a
// name replaces the previous factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns the registered type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs an object of the named type and applies attrs on top of
// its defaults. An unregistered name yields ErrUnknownType; bad attribute
// values surface as ErrInvalidArgument from FromMap.
func (r *Registry) New(name string, attrs map[string]any) (Object, error) {
	f, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	obj := f()
	if len(attrs) > 0 {
		if err := obj.FromMap(attrs); err != nil {
			return nil, err
		}
	}
	return obj, nil
}
