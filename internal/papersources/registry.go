package papersources

import (
	"strings"
	"sync"
)

// Registry maps lowercase provider names to Provider instances.
// Registration order is preserved and is the default fallback order for
// single-record lookups. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string
}

// NewRegistry creates a new registry with no providers.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider under its lowercase name.
// Registering a name twice replaces the instance but keeps its original
// position in the order.
func (r *Registry) Register(p Provider) {
	name := normalizeName(p.Name())

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = p
}

// Resolve returns the provider registered under name (case-insensitive).
// It never fails; ok is false when no such provider exists.
func (r *Registry) Resolve(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[normalizeName(name)]
	return p, ok
}

// ListAll returns the registered names in registration order.
// The returned slice is a snapshot.
func (r *Registry) ListAll() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Providers returns the registered providers in registration order.
func (r *Registry) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
