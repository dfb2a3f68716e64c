package connector

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps connector aliases to their registrations.
type Registry struct {
	mu            sync.RWMutex
	registrations map[string]Registration
}

func NewRegistry() *Registry {
	return &Registry{registrations: make(map[string]Registration)}
}

// DefaultRegistry returns a registry with every built-in connector registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	if err := r.Register(FlyerlessRegistration()); err != nil {
		panic(err)
	}
	return r
}

// Register adds reg. Aliases must be unique.
func (r *Registry) Register(reg Registration) error {
	if reg.Alias == "" {
		return fmt.Errorf("connector registration needs an alias")
	}
	if reg.Factory == nil {
		return fmt.Errorf("connector %q has no factory", reg.Alias)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.registrations[reg.Alias]; ok {
		return fmt.Errorf("connector %q is already registered", reg.Alias)
	}
	r.registrations[reg.Alias] = reg
	return nil
}

// Get returns the registration for alias.
func (r *Registry) Get(alias string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.registrations[alias]
	return reg, ok
}

// List returns all registrations sorted by alias.
func (r *Registry) List() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Registration, 0, len(r.registrations))
	for _, reg := range r.registrations {
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out
}

// New validates settings against the connector's schema and builds it.
func (r *Registry) New(alias string, settings Settings, deps Deps) (Connector, error) {
	reg, ok := r.Get(alias)
	if !ok {
		return nil, fmt.Errorf("unknown connector %q", alias)
	}
	if err := settings.Validate(reg.Schema); err != nil {
		return nil, fmt.Errorf("invalid settings for connector %q: %w", alias, err)
	}
	return reg.Factory(settings, deps)
}
