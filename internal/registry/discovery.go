package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/zgpcy/azure-resource-explorer/internal/resource"
)

// ensureDiscovered runs the extension scan on the first call. Callers that
// arrive while the scan is in progress wait for it instead of scanning again.
func (r *Registry) ensureDiscovered(ctx context.Context) error {
	r.discoveryMu.Lock()
	switch r.state {
	case DiscoveryDone:
		r.discoveryMu.Unlock()
		return nil

	case DiscoveryInProgress:
		done := r.done
		r.discoveryMu.Unlock()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("waiting for provider discovery: %w", ctx.Err())
		}

	default:
		r.state = DiscoveryInProgress
		r.done = make(chan struct{})
		r.discoveryMu.Unlock()

		// The scan outlives a cancelled first caller; the others are waiting on it.
		r.runDiscovery(context.WithoutCancel(ctx))
		return nil
	}
}

// runDiscovery scans the host and publishes the outcome. The state ends
// Done and waiters are released even when the scan panics.
func (r *Registry) runDiscovery(ctx context.Context) {
	start := r.clock.Now()
	var errs []error
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Provider discovery panicked", "panic", p)
			errs = append(errs, &resource.DiscoveryError{
				Extension: "host",
				Err:       fmt.Errorf("panic during discovery: %v", p),
			})
		}

		r.discoveryMu.Lock()
		r.discoveryErrs = errs
		r.discoveryDuration = r.clock.Now().Sub(start)
		r.state = DiscoveryDone
		close(r.done)
		r.discoveryMu.Unlock()
	}()

	errs = r.discover(ctx)
}

// discover scans every host extension and registers the providers it
// exports. A failing extension is recorded and skipped.
func (r *Registry) discover(ctx context.Context) []error {
	if r.host == nil {
		return nil
	}

	r.logger.Info("Discovering resource providers")

	extensions, err := r.host.Extensions(ctx)
	if err != nil {
		r.logger.Warn("Failed to enumerate extensions", "error", err)
		return []error{&resource.DiscoveryError{Extension: "host", Err: err}}
	}

	var errs []error
	registered := 0
	for _, ext := range extensions {
		n, err := r.registerExtension(ctx, ext)
		registered += n
		if err != nil {
			derr := &resource.DiscoveryError{Extension: ext.ID(), Err: err}
			r.logger.Warn("Extension failed during provider discovery, continuing with others",
				"extension", ext.ID(),
				"error", err)
			errs = append(errs, derr)
		}
	}

	r.logger.Info("Resource provider discovery complete",
		"extensions", len(extensions),
		"providers_registered", registered,
		"failed_extensions", len(errs))
	return errs
}

// registerExtension activates one extension and registers its providers.
// It returns how many providers were registered.
func (r *Registry) registerExtension(ctx context.Context, ext Extension) (n int, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic during activation: %v", p)
		}
	}()

	if err := ext.Activate(ctx); err != nil {
		return 0, fmt.Errorf("activation failed: %w", err)
	}

	if !ext.Contributes().HasResourceProviders {
		return 0, nil
	}
	factory := ext.Exports().ProvideResources
	if factory == nil {
		return 0, nil
	}

	providers, err := factory()
	if err != nil {
		return 0, fmt.Errorf("provideResources failed: %w", err)
	}

	var errs []error
	for _, p := range providers {
		if err := r.Register(p); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}
