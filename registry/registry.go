// Package registry maps names to factories or functions.
//
// Lookups are case-insensitive so that names taken from viper-decoded
// configuration (which lower-cases keys) resolve to the registered entry.
package registry

import (
	"sort"
	"strings"
	"sync"
)

// Registry manages named entries of type T.
type Registry[T any] struct {
	mu      sync.RWMutex
	entries map[string]T
	names   map[string]string
}

// New creates a new empty Registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{
		entries: make(map[string]T),
		names:   make(map[string]string),
	}
}

// Register adds or replaces the entry for name.
func (r *Registry[T]) Register(name string, entry T) {
	key := strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = entry
	r.names[key] = name
}

// Lookup returns the entry registered under name, ignoring case.
func (r *Registry[T]) Lookup(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[strings.ToLower(name)]
	return entry, ok
}

// Has reports whether name is registered.
func (r *Registry[T]) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// List returns the sorted names of all entries as they were registered.
func (r *Registry[T]) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.names))
	for _, name := range r.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy, so callers can extend a default set
// without mutating it.
func (r *Registry[T]) Clone() *Registry[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := New[T]()
	for k, v := range r.entries {
		out.entries[k] = v
		out.names[k] = r.names[k]
	}
	return out
}
