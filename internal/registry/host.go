package registry

import (
	"context"

	"github.com/zgpcy/azure-resource-explorer/internal/resource"
)

// Host enumerates the extensions available to the registry
type Host interface {
	Extensions(ctx context.Context) ([]Extension, error)
}

// Extension is a host module that may contribute resource providers
type Extension interface {
	// ID returns the extension name used in logs and discovery errors
	ID() string

	// Activate prepares the extension. It is called before its
	// contributions and exports are read.
	Activate(ctx context.Context) error

	// Contributes returns the capability flags declared in the manifest
	Contributes() Contributions

	// Exports returns what the activated extension exposes
	Exports() Exports
}

// Contributions are the capability flags an extension declares
type Contributions struct {
	HasResourceProviders bool
}

// Exports holds the factories an activated extension exposes.
// ProvideResources is nil when the extension exports none.
type Exports struct {
	ProvideResources func() ([]resource.ResourceProvider, error)
}

// StaticHost serves a fixed list of extensions
type StaticHost []Extension

// Extensions returns the fixed list
func (h StaticHost) Extensions(ctx context.Context) ([]Extension, error) {
	return h, nil
}
