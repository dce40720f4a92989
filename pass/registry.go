package pass

import (
	"maps"
	"slices"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Factory creates a new instance of a pass, configured with config.
type Factory func(config *Config) Pass

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterFactory makes a pass available by name to NewManagerFromConfig. Typically called from an init()
// function. It panics if the name is already taken.
func RegisterFactory(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, found := factories[name]; found {
		exceptions.Panicf("pass.RegisterFactory(%q): name already registered", name)
	}
	factories[name] = factory
}

// RegisteredPasses returns the sorted names of the registered pass factories.
func RegisteredPasses() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	return slices.Sorted(maps.Keys(factories))
}

// NewManagerFromConfig creates a Manager and registers the passes listed in config.Pipeline, created by their
// registered factories.
func NewManagerFromConfig(config Config, options ...Option) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	m := NewManager(config, options...)
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	for idx, name := range config.Pipeline {
		factory, found := factories[name]
		if !found {
			return nil, errors.Errorf("pipeline entry #%d: unknown pass %q, registered passes: %v",
				idx, name, slices.Sorted(maps.Keys(factories)))
		}
		m.Register(factory(m.State().Config()))
	}
	if err := m.Check(); err != nil {
		return nil, err
	}
	return m, nil
}
