// Package runtime wraps a process-wide dig container: an explicit dependency
// bundle built once at process startup and handed to each component via
// runtime.GetContainer().Invoke(...), giving DI-managed singletons (embedder
// poolers, local model services) to components that need them without
// module-level globals.
package runtime

import (
	"sync"

	"go.uber.org/dig"
)

var (
	once      sync.Once
	container *dig.Container
)

// GetContainer returns the process-wide container, creating it on first use.
func GetContainer() *dig.Container {
	once.Do(func() {
		container = dig.New()
	})
	return container
}

// Provide registers a constructor with the container. Call during process
// startup (cmd/*) before any Invoke.
func Provide(constructor interface{}, opts ...dig.ProvideOption) error {
	return GetContainer().Provide(constructor, opts...)
}

// Reset discards the current container. wiring.Build calls it so each build
// registers into a fresh dependency graph.
func Reset() {
	container = dig.New()
}
