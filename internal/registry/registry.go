package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zgpcy/azure-resource-explorer/internal/clock"
	"github.com/zgpcy/azure-resource-explorer/internal/logger"
	"github.com/zgpcy/azure-resource-explorer/internal/resource"
)

// DiscoveryState tracks the one-time extension scan
type DiscoveryState int

const (
	DiscoveryNotStarted DiscoveryState = iota
	DiscoveryInProgress
	DiscoveryDone
)

func (s DiscoveryState) String() string {
	switch s {
	case DiscoveryNotStarted:
		return "not_started"
	case DiscoveryInProgress:
		return "in_progress"
	case DiscoveryDone:
		return "done"
	default:
		return "unknown"
	}
}

// Stats is a snapshot of the registry for metrics and readiness
type Stats struct {
	Providers         int
	State             DiscoveryState
	DiscoveryFailures int
	DiscoveryDuration time.Duration
}

// Registry holds the registered resource providers and their tree data
// producers. It discovers providers from the host lazily, exactly once.
//
// Registered providers are never replaced: the first registration of an id
// is authoritative and later ones are rejected with ErrDuplicateProvider.
type Registry struct {
	host   Host
	logger *logger.Logger
	clock  clock.Clock // Time provider for testing

	mu        sync.RWMutex
	providers map[string]resource.ResourceProvider
	producers map[string]resource.TreeDataProducer
	order     []string

	// discovery is guarded by discoveryMu; done is closed when the scan ends
	discoveryMu       sync.Mutex
	state             DiscoveryState
	done              chan struct{}
	discoveryErrs     []error
	discoveryDuration time.Duration
}

// Option configures a Registry
type Option func(*Registry)

// WithClock sets the clock used to time discovery
func WithClock(clk clock.Clock) Option {
	return func(r *Registry) {
		if clk != nil {
			r.clock = clk
		}
	}
}

// New creates a registry that discovers providers from host.
// A nil host disables discovery.
func New(host Host, log *logger.Logger, opts ...Option) *Registry {
	r := &Registry{
		host:      host,
		logger:    log.Component("registry"),
		clock:     clock.RealClock{},
		providers: make(map[string]resource.ResourceProvider),
		producers: make(map[string]resource.TreeDataProducer),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a provider keyed by its id and stores its tree data producer
func (r *Registry) Register(p resource.ResourceProvider) error {
	if p == nil {
		return fmt.Errorf("resource provider is nil")
	}
	id := p.ProviderID()
	if id == "" {
		return fmt.Errorf("resource provider id is required")
	}
	producer := p.TreeDataProducer()
	if producer == nil {
		return fmt.Errorf("resource provider %s has no tree data producer", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[id]; exists {
		return fmt.Errorf("%w: %s", resource.ErrDuplicateProvider, id)
	}
	r.providers[id] = p
	r.producers[id] = producer
	r.order = append(r.order, id)

	r.logger.Debug("Resource provider registered", "provider_id", id)
	return nil
}

// ListProviderIDs discovers providers if needed and returns their ids in
// registration order
func (r *Registry) ListProviderIDs(ctx context.Context) ([]string, error) {
	if err := r.ensureDiscovered(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids, nil
}

// GetRootChildren returns the top-level nodes of a provider, stamped with
// the account, subscription and tenant of the expanding subscription
func (r *Registry) GetRootChildren(ctx context.Context, providerID string, scope resource.Scope) ([]resource.ProviderNode, error) {
	producer, err := r.producer(ctx, providerID)
	if err != nil {
		return nil, err
	}

	children, err := producer.Children(ctx, nil)
	if err != nil {
		return nil, err
	}

	out := make([]resource.ProviderNode, 0, len(children))
	for _, child := range children {
		if !child.IsPlaceholder() {
			s := scope
			child.Scope = &s
		}
		out = append(out, resource.ProviderNode{ProviderID: providerID, Node: child})
	}
	return out, nil
}

// GetChildren returns the children of parent. The producer is responsible
// for propagating the parent's scope.
func (r *Registry) GetChildren(ctx context.Context, providerID string, parent *resource.Node) ([]resource.ProviderNode, error) {
	producer, err := r.producer(ctx, providerID)
	if err != nil {
		return nil, err
	}

	children, err := producer.Children(ctx, parent)
	if err != nil {
		return nil, err
	}

	out := make([]resource.ProviderNode, 0, len(children))
	for _, child := range children {
		out = append(out, resource.ProviderNode{ProviderID: providerID, Node: child})
	}
	return out, nil
}

// GetTreeItem projects node through the provider's producer
func (r *Registry) GetTreeItem(ctx context.Context, providerID string, node *resource.Node) (resource.DisplayItem, error) {
	producer, err := r.producer(ctx, providerID)
	if err != nil {
		return resource.DisplayItem{}, err
	}
	return producer.TreeItem(ctx, node)
}

// DiscoveryErrors returns the extensions that failed during discovery
func (r *Registry) DiscoveryErrors() []error {
	r.discoveryMu.Lock()
	defer r.discoveryMu.Unlock()
	errs := make([]error, len(r.discoveryErrs))
	copy(errs, r.discoveryErrs)
	return errs
}

// Stats returns a snapshot of the registry
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	providers := len(r.providers)
	r.mu.RUnlock()

	r.discoveryMu.Lock()
	defer r.discoveryMu.Unlock()
	return Stats{
		Providers:         providers,
		State:             r.state,
		DiscoveryFailures: len(r.discoveryErrs),
		DiscoveryDuration: r.discoveryDuration,
	}
}

// producer discovers providers if needed and looks up the producer of id
func (r *Registry) producer(ctx context.Context, providerID string) (resource.TreeDataProducer, error) {
	if err := r.ensureDiscovered(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	producer, ok := r.producers[providerID]
	if !ok {
		return nil, &resource.UnknownProviderError{ProviderID: providerID}
	}
	return producer, nil
}
