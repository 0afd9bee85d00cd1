package tree

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zgpcy/azure-resource-explorer/internal/clock"
	"github.com/zgpcy/azure-resource-explorer/internal/logger"
	"github.com/zgpcy/azure-resource-explorer/internal/resource"
)

// DefaultConcurrency bounds the per-subscription provider fan-out
const DefaultConcurrency = 4

// NoResourcesMessage is shown when no provider returned any node
const NoResourcesMessage = "No Resources found."

// ProviderSource is the part of the registry the expander reads
type ProviderSource interface {
	ListProviderIDs(ctx context.Context) ([]string, error)
	GetRootChildren(ctx context.Context, providerID string, scope resource.Scope) ([]resource.ProviderNode, error)
	GetChildren(ctx context.Context, providerID string, parent *resource.Node) ([]resource.ProviderNode, error)
}

// Observer receives expansion outcomes, e.g. for metrics
type Observer interface {
	ObserveExpansion(state State, duration time.Duration)
	ObserveProviderError(providerID string)
}

// Expansion is the render-ready result of expanding one node
type Expansion struct {
	State State                   `json:"state"`
	Nodes []resource.ProviderNode `json:"nodes"`
}

// Expander merges the root children of every provider under a subscription
type Expander struct {
	source      ProviderSource
	logger      *logger.Logger
	observer    Observer
	clock       clock.Clock
	concurrency int
}

// Option configures an Expander
type Option func(*Expander)

// WithConcurrency sets how many providers are queried in parallel
func WithConcurrency(n int) Option {
	return func(e *Expander) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithObserver attaches an Observer
func WithObserver(o Observer) Option {
	return func(e *Expander) {
		e.observer = o
	}
}

// WithClock sets the clock used to time expansions
func WithClock(clk clock.Clock) Option {
	return func(e *Expander) {
		if clk != nil {
			e.clock = clk
		}
	}
}

// NewExpander creates an Expander reading from source
func NewExpander(source ProviderSource, log *logger.Logger, opts ...Option) *Expander {
	e := &Expander{
		source:      source,
		logger:      log.Component("tree"),
		clock:       clock.RealClock{},
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExpandSubscription returns the first-level resource nodes of every
// provider for one subscription. It never fails: an empty result or any
// error is reported as a single placeholder node.
func (e *Expander) ExpandSubscription(ctx context.Context, scope resource.Scope) Expansion {
	start := e.clock.Now()
	prefix := scope.NodeID()

	nodes, err := e.fanOut(ctx, scope)
	exp := e.finish(prefix, nodes, err)

	if err != nil {
		e.logger.Warn("Subscription expansion failed",
			"account_id", scope.Account.ID,
			"subscription_id", scope.Subscription.ID,
			"error", err)
	} else {
		e.logger.Debug("Subscription expanded",
			"account_id", scope.Account.ID,
			"subscription_id", scope.Subscription.ID,
			"state", exp.State,
			"node_count", len(exp.Nodes))
	}
	e.observe(exp.State, e.clock.Now().Sub(start))
	return exp
}

// ExpandNode returns the children of a node below the subscription level.
// Child ids are prefixed with the parent id, and failures become a
// placeholder just like ExpandSubscription.
func (e *Expander) ExpandNode(ctx context.Context, providerID string, parent *resource.Node) Expansion {
	start := e.clock.Now()
	if parent == nil || !parent.Expandable() {
		exp := Expansion{State: StateEmpty, Nodes: []resource.ProviderNode{}}
		e.observe(exp.State, e.clock.Now().Sub(start))
		return exp
	}

	nodes, err := e.source.GetChildren(ctx, providerID, parent)
	if err != nil {
		e.providerError(providerID, err)
		err = fmt.Errorf("provider %s: %w", providerID, err)
	}
	exp := e.finish(parent.Item.ID, nodes, err)
	e.observe(exp.State, e.clock.Now().Sub(start))
	return exp
}

// fanOut queries every provider concurrently and reassembles the results
// in provider order
func (e *Expander) fanOut(ctx context.Context, scope resource.Scope) ([]resource.ProviderNode, error) {
	ids, err := e.source.ListProviderIDs(ctx)
	if err != nil {
		return nil, err
	}

	results := make([][]resource.ProviderNode, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			nodes, err := e.source.GetRootChildren(gctx, id, scope)
			if err != nil {
				e.providerError(id, err)
				return fmt.Errorf("provider %s: %w", id, err)
			}
			results[i] = nodes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []resource.ProviderNode
	for _, nodes := range results {
		merged = append(merged, nodes...)
	}
	return merged, nil
}

// finish turns fan-out results into an Expansion, prefixing node ids so
// they are unique within the tree
func (e *Expander) finish(prefix string, nodes []resource.ProviderNode, err error) Expansion {
	if err != nil {
		return Expansion{
			State: StateErrored,
			Nodes: []resource.ProviderNode{placeholder(prefix, resource.ErrorMessage(err))},
		}
	}
	if len(nodes) == 0 {
		return Expansion{
			State: StateEmpty,
			Nodes: []resource.ProviderNode{placeholder(prefix, NoResourcesMessage)},
		}
	}

	out := make([]resource.ProviderNode, len(nodes))
	for i, n := range nodes {
		n.Node.Item.ID = prefix + "." + n.Node.Item.ID
		out[i] = n
	}
	return Expansion{State: StatePopulated, Nodes: out}
}

func (e *Expander) providerError(providerID string, err error) {
	e.logger.Debug("Provider listing failed", "provider_id", providerID, "error", err)
	if e.observer != nil {
		e.observer.ObserveProviderError(providerID)
	}
}

func (e *Expander) observe(state State, d time.Duration) {
	if e.observer != nil {
		e.observer.ObserveExpansion(state, d)
	}
}

func placeholder(prefix, message string) resource.ProviderNode {
	return resource.ProviderNode{Node: resource.NewPlaceholder(prefix+".message", message)}
}
