package engine

import (
	"sync"

	cerrors "github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"
)

var (
	registryMutex sync.RWMutex
	registry      = make(map[string]Factory)
)

// Register makes an engine factory available under the given name. It is
// intended to be called from package init functions and panics on a nil
// factory or a duplicate name.
func Register(name string, factory Factory) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if factory == nil {
		panic("engine: Register called with a nil factory")
	}
	if _, dup := registry[name]; dup {
		panic("engine: Register called twice for engine " + name)
	}
	registry[name] = factory
}

// Lookup resolves a registered engine factory by name.
func Lookup(name string) (Factory, error) {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	factory, ok := registry[name]
	if !ok {
		return nil, cerrors.Wrapf(ErrNotFound, "engine %q", name)
	}
	return factory, nil
}

// Engines returns the sorted names of all registered engine factories.
func Engines() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
