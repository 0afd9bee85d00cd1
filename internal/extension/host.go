package extension

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zgpcy/azure-resource-explorer/internal/logger"
	"github.com/zgpcy/azure-resource-explorer/internal/registry"
	"github.com/zgpcy/azure-resource-explorer/internal/resource"
)

// Host serves the extensions declared in config and in the extensions
// directory. With none declared it serves the built-in extension.
type Host struct {
	manifests []Manifest
	dir       string
	catalog   Catalog
	deps      Dependencies
	logger    *logger.Logger
}

// Verify that Host implements registry.Host
var _ registry.Host = (*Host)(nil)

// NewHost creates a host. dir may be empty.
func NewHost(manifests []Manifest, dir string, catalog Catalog, deps Dependencies, log *logger.Logger) *Host {
	return &Host{
		manifests: manifests,
		dir:       dir,
		catalog:   catalog,
		deps:      deps,
		logger:    log.Component("extensions"),
	}
}

// Extensions returns one extension per manifest. Manifests that failed to
// load are returned as extensions whose activation fails.
func (h *Host) Extensions(ctx context.Context) ([]registry.Extension, error) {
	var exts []registry.Extension
	for _, m := range h.manifests {
		exts = append(exts, h.newExtension(m))
	}

	if h.dir != "" {
		files, err := loadDir(h.dir)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if f.err != nil {
				exts = append(exts, &broken{id: f.name, err: f.err})
				continue
			}
			exts = append(exts, h.newExtension(f.manifest))
		}
	}

	if len(exts) == 0 {
		h.logger.Info("No extension manifests configured, using built-in extension",
			"extension", BuiltinName)
		exts = append(exts, h.newExtension(Builtin(h.catalog)))
	}
	return exts, nil
}

func (h *Host) newExtension(m Manifest) *Extension {
	return &Extension{manifest: m, catalog: h.catalog, deps: h.deps}
}

// Extension resolves a manifest's provider names against the catalog
type Extension struct {
	manifest Manifest
	catalog  Catalog
	deps     Dependencies

	mu        sync.Mutex
	activated bool
	providers []resource.ResourceProvider
}

// ID returns the manifest name
func (e *Extension) ID() string {
	return e.manifest.Name
}

// Manifest returns the extension's manifest
func (e *Extension) Manifest() Manifest {
	return e.manifest
}

// Activate builds every provider the manifest names. Any unknown name or
// failing factory fails the whole activation.
func (e *Extension) Activate(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.activated {
		return nil
	}

	var (
		built []resource.ResourceProvider
		errs  []error
	)
	for _, name := range e.manifest.Contributes.ResourceProviders {
		factory, ok := e.catalog[name]
		if !ok {
			errs = append(errs, fmt.Errorf("unknown resource provider %q", name))
			continue
		}
		p, err := factory(e.deps)
		if err != nil {
			errs = append(errs, fmt.Errorf("resource provider %q: %w", name, err))
			continue
		}
		built = append(built, p)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	e.providers = built
	e.activated = true
	return nil
}

// Contributes returns the manifest's capability flags
func (e *Extension) Contributes() registry.Contributions {
	return registry.Contributions{HasResourceProviders: e.manifest.Contributes.HasResourceProviders}
}

// Exports exposes the providers built by Activate
func (e *Extension) Exports() registry.Exports {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.activated {
		return registry.Exports{}
	}
	providers := append([]resource.ResourceProvider(nil), e.providers...)
	return registry.Exports{
		ProvideResources: func() ([]resource.ResourceProvider, error) {
			return providers, nil
		},
	}
}

// broken stands in for a manifest that could not be loaded
type broken struct {
	id  string
	err error
}

func (b *broken) ID() string                          { return b.id }
func (b *broken) Activate(ctx context.Context) error  { return b.err }
func (b *broken) Contributes() registry.Contributions { return registry.Contributions{} }
func (b *broken) Exports() registry.Exports           { return registry.Exports{} }
