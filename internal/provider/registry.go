package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/treeflow/treeflow/internal/config"
)

// Factory builds a provider instance from its configured settings.
type Factory func(config.ProviderSettings) (IssueProvider, error)

// Registry maps provider names to factories. Provider packages register
// themselves from init(), so importing a provider package is what makes it
// available.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

var globalRegistry = &Registry{
	factories: make(map[string]Factory),
}

// Register adds a provider factory to the global registry. The name should
// be lowercase (e.g. "linear", "github").
func Register(name string, factory Factory) {
	globalRegistry.Register(name, factory)
}

// New creates an instance of the named provider from the global registry.
func New(name string, ps config.ProviderSettings) (IssueProvider, error) {
	return globalRegistry.New(name, ps)
}

// List returns the names of all registered providers.
func List() []string {
	return globalRegistry.List()
}

// Register adds a provider factory to this registry.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// New creates an instance of the named provider.
func (r *Registry) New(name string, ps config.ProviderSettings) (IssueProvider, error) {
	r.mu.RLock()
	factory := r.factories[name]
	r.mu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unknown issue provider %q (available: %v)", name, r.List())
	}
	return factory(ps)
}

// List returns registered provider names, sorted alphabetically.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
