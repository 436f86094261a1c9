package stt

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a provider instance.
type Factory func() (Transcriber, error)

// Registry maps provider driver names to their factories and caches the
// instance built for each name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]Transcriber
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Transcriber),
	}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	delete(r.instances, name)
}

// Get returns the provider registered under name, building it on first use.
func (r *Registry) Get(name string) (Transcriber, error) {
	r.mu.RLock()
	t, ok := r.instances[name]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.instances[name]; ok {
		return t, nil
	}
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	t, err := f()
	if err != nil {
		return nil, fmt.Errorf("build provider %s: %w", name, err)
	}
	r.instances[name] = t
	return t, nil
}

// Names lists registered providers in sorted order.
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
