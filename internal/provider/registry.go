package provider

import (
	"slices"
	"sync"
)

// Registry holds the configured tag sources keyed by name.
type Registry struct {
	mu      sync.RWMutex
	sources map[Name]TagSource
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[Name]TagSource),
	}
}

// Register adds a source, replacing any earlier source with the same name.
func (r *Registry) Register(s TagSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.Name()] = s
}

// Get returns a source by name, or nil if not registered.
func (r *Registry) Get(name Name) TagSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[name]
}

// ByCategory returns the first registered source of the given category in
// AllNames order, or nil.
func (r *Registry) ByCategory(c Category) TagSource {
	for _, s := range r.All() {
		if s.Category() == c {
			return s
		}
	}
	return nil
}

// All returns all registered sources in a stable order. Sources with names
// outside AllNames follow in registration-independent name order.
func (r *Registry) All() []TagSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []TagSource
	known := make(map[Name]bool, len(r.sources))
	for _, name := range AllNames() {
		known[name] = true
		if s, ok := r.sources[name]; ok {
			result = append(result, s)
		}
	}
	var extra []Name
	for name := range r.sources {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	slices.Sort(extra)
	for _, name := range extra {
		result = append(result, r.sources[name])
	}
	return result
}
