package strategy

import (
	"sync"

	"github.com/pulse-lab/pulse-trading/pkg/errors"
)

// Registry manages the available strategies. It is populated from a
// static list at process start; there is no dynamic loading.
type Registry interface {
	Register(strategy Strategy) error
	Get(name string) (Strategy, error)
	List() []string
}

// RegistryV1 is the default in-memory registry.
type RegistryV1 struct {
	strategies map[string]Strategy
	mu         sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() Registry {
	return &RegistryV1{
		strategies: make(map[string]Strategy),
		mu:         sync.RWMutex{},
	}
}

// NewDefaultRegistry creates a registry populated with the built-in
// strategies.
func NewDefaultRegistry() Registry {
	r := NewRegistry()
	// registering a fresh strategy twice cannot fail
	_ = r.Register(NewMeanRevert())
	_ = r.Register(NewScalping())

	return r
}

// Register adds a strategy to the registry.
func (r *RegistryV1) Register(strategy Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := strategy.Name()
	if _, exists := r.strategies[name]; exists {
		return errors.Newf(errors.ErrCodeInvalidParameter, "strategy %s already registered", name)
	}

	r.strategies[name] = strategy

	return nil
}

// Get retrieves a strategy by name.
func (r *RegistryV1) Get(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	strategy, exists := r.strategies[name]
	if !exists {
		return nil, errors.Newf(errors.ErrCodeStrategyNotFound, "strategy %s not found", name)
	}

	return strategy, nil
}

// List returns the names of all registered strategies.
func (r *RegistryV1) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}

	return names
}
