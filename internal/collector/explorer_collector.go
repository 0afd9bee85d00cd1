package collector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zgpcy/azure-resource-explorer/internal/clock"
	"github.com/zgpcy/azure-resource-explorer/internal/logger"
	"github.com/zgpcy/azure-resource-explorer/internal/registry"
	"github.com/zgpcy/azure-resource-explorer/internal/resource"
	"github.com/zgpcy/azure-resource-explorer/internal/tree"
	"github.com/zgpcy/azure-resource-explorer/internal/version"
)

// StatsSource reports the provider registry's state
type StatsSource interface {
	Stats() registry.Stats
}

// Expander expands a subscription into its first-level resource nodes and
// those nodes into their children
type Expander interface {
	ExpandSubscription(ctx context.Context, scope resource.Scope) tree.Expansion
	ExpandNode(ctx context.Context, providerID string, parent *resource.Node) tree.Expansion
}

// subscriptionResult is the outcome of the last background expansion of one subscription
type subscriptionResult struct {
	AccountID      string
	SubscriptionID string
	State          tree.State
	Nodes          int // first-level nodes
	Resources      int // nodes listed below the first level
	FailedNodes    int // first-level nodes whose expansion errored
}

// ExplorerCollector implements prometheus.Collector for the resource explorer.
// It also implements tree.Observer so the expander can report every expansion.
type ExplorerCollector struct {
	stats  StatsSource
	logger *logger.Logger
	clock  clock.Clock // Time provider for testing

	// Metrics
	providersMetric         *prometheus.Desc
	discoveryStateMetric    *prometheus.Desc
	discoveryFailuresMetric *prometheus.Desc
	discoveryDurationMetric *prometheus.Desc
	subscriptionNodesMetric *prometheus.Desc
	resourcesMetric         *prometheus.Desc
	lastRefreshTimeMetric   *prometheus.Desc
	refreshDurationMetric   *prometheus.Desc
	expansionsTotal         *prometheus.CounterVec
	providerErrorsTotal     *prometheus.CounterVec
	expansionDuration       *prometheus.HistogramVec
	buildInfo               *prometheus.GaugeVec

	// Background refresh state
	mu                  sync.RWMutex
	lastResults         []subscriptionResult
	lastRefresh         time.Time
	lastRefreshDuration time.Duration
	refreshStarted      atomic.Bool // Prevent multiple refresh goroutines
}

// NewExplorerCollector creates a collector reading registry state from stats
func NewExplorerCollector(stats StatsSource, log *logger.Logger) *ExplorerCollector {
	expansionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "azure_resource_explorer_expansions_total",
			Help: "Total number of tree node expansions by outcome state",
		},
		[]string{"state"},
	)

	providerErrorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "azure_resource_explorer_provider_errors_total",
			Help: "Total number of failed provider listings",
		},
		[]string{"provider"},
	)

	expansionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "azure_resource_explorer_expansion_duration_seconds",
			Help:    "Duration of tree node expansions in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"state"},
	)

	buildInfo := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "azure_resource_explorer_build_info",
			Help: "Build version information",
		},
		[]string{"version", "git_commit", "build_date", "go_version"},
	)

	versionInfo := version.Info()
	buildInfo.With(prometheus.Labels{
		"version":    versionInfo["version"],
		"git_commit": versionInfo["git_commit"],
		"build_date": versionInfo["build_date"],
		"go_version": versionInfo["go_version"],
	}).Set(1)

	return &ExplorerCollector{
		stats:  stats,
		logger: log.Component("collector"),
		clock:  clock.RealClock{},
		providersMetric: prometheus.NewDesc(
			"azure_resource_explorer_providers",
			"Number of registered resource providers",
			nil, nil,
		),
		discoveryStateMetric: prometheus.NewDesc(
			"azure_resource_explorer_discovery_state",
			"Provider discovery state (1 for the current state)",
			[]string{"state"}, nil,
		),
		discoveryFailuresMetric: prometheus.NewDesc(
			"azure_resource_explorer_discovery_failures",
			"Number of extensions that failed during provider discovery",
			nil, nil,
		),
		discoveryDurationMetric: prometheus.NewDesc(
			"azure_resource_explorer_discovery_duration_seconds",
			"Duration of the provider discovery scan in seconds",
			nil, nil,
		),
		subscriptionNodesMetric: prometheus.NewDesc(
			"azure_resource_explorer_subscription_nodes",
			"Number of first-level nodes of a subscription at the last background refresh",
			[]string{"account_id", "subscription_id", "state"}, nil,
		),
		resourcesMetric: prometheus.NewDesc(
			"azure_resource_explorer_subscription_resources",
			"Number of nodes listed below the first level of a subscription at the last background refresh",
			[]string{"account_id", "subscription_id"}, nil,
		),
		lastRefreshTimeMetric: prometheus.NewDesc(
			"azure_resource_explorer_last_refresh_timestamp_seconds",
			"Unix timestamp of the last background refresh",
			nil, nil,
		),
		refreshDurationMetric: prometheus.NewDesc(
			"azure_resource_explorer_refresh_duration_seconds",
			"Duration of the last background refresh in seconds",
			nil, nil,
		),
		expansionsTotal:     expansionsTotal,
		providerErrorsTotal: providerErrorsTotal,
		expansionDuration:   expansionDuration,
		buildInfo:           buildInfo,
	}
}

// ObserveExpansion implements tree.Observer
func (c *ExplorerCollector) ObserveExpansion(state tree.State, d time.Duration) {
	c.expansionsTotal.WithLabelValues(string(state)).Inc()
	c.expansionDuration.WithLabelValues(string(state)).Observe(d.Seconds())
}

// ObserveProviderError implements tree.Observer
func (c *ExplorerCollector) ObserveProviderError(providerID string) {
	c.providerErrorsTotal.WithLabelValues(providerID).Inc()
}

// Describe implements prometheus.Collector
func (c *ExplorerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.providersMetric
	ch <- c.discoveryStateMetric
	ch <- c.discoveryFailuresMetric
	ch <- c.discoveryDurationMetric
	ch <- c.subscriptionNodesMetric
	ch <- c.resourcesMetric
	ch <- c.lastRefreshTimeMetric
	ch <- c.refreshDurationMetric
	c.expansionsTotal.Describe(ch)
	c.providerErrorsTotal.Describe(ch)
	c.expansionDuration.Describe(ch)
	c.buildInfo.Describe(ch)
}

// Collect implements prometheus.Collector
func (c *ExplorerCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.stats.Stats()

	ch <- prometheus.MustNewConstMetric(c.providersMetric, prometheus.GaugeValue, float64(stats.Providers))
	for _, s := range []registry.DiscoveryState{registry.DiscoveryNotStarted, registry.DiscoveryInProgress, registry.DiscoveryDone} {
		value := 0.0
		if s == stats.State {
			value = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.discoveryStateMetric, prometheus.GaugeValue, value, s.String())
	}
	ch <- prometheus.MustNewConstMetric(c.discoveryFailuresMetric, prometheus.GaugeValue, float64(stats.DiscoveryFailures))
	ch <- prometheus.MustNewConstMetric(c.discoveryDurationMetric, prometheus.GaugeValue, stats.DiscoveryDuration.Seconds())

	c.mu.RLock()
	for _, r := range c.lastResults {
		ch <- prometheus.MustNewConstMetric(
			c.subscriptionNodesMetric,
			prometheus.GaugeValue,
			float64(r.Nodes),
			r.AccountID,
			r.SubscriptionID,
			string(r.State),
		)
		ch <- prometheus.MustNewConstMetric(
			c.resourcesMetric,
			prometheus.GaugeValue,
			float64(r.Resources),
			r.AccountID,
			r.SubscriptionID,
		)
	}
	if !c.lastRefresh.IsZero() {
		ch <- prometheus.MustNewConstMetric(c.lastRefreshTimeMetric, prometheus.GaugeValue, float64(c.lastRefresh.Unix()))
		ch <- prometheus.MustNewConstMetric(c.refreshDurationMetric, prometheus.GaugeValue, c.lastRefreshDuration.Seconds())
	}
	c.mu.RUnlock()

	c.expansionsTotal.Collect(ch)
	c.providerErrorsTotal.Collect(ch)
	c.expansionDuration.Collect(ch)
	c.buildInfo.Collect(ch)
}

// StartBackgroundRefresh expands every scope and its first-level nodes once
// and then again on every tick of interval, which keeps the listing cache warm.
// Uses atomic flag to prevent multiple refresh goroutines
func (c *ExplorerCollector) StartBackgroundRefresh(ctx context.Context, expander Expander, scopes []resource.Scope, interval time.Duration) {
	if !c.refreshStarted.CompareAndSwap(false, true) {
		c.logger.Warn("Background refresh already started, skipping")
		return
	}

	c.refresh(ctx, expander, scopes)

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		defer c.refreshStarted.Store(false)
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Stopping background refresh")
				return
			case <-ticker.C:
				c.refresh(ctx, expander, scopes)
			}
		}
	}()
}

// refresh expands every scope in turn, then every expandable first-level
// node, and records the outcome. Expanding the containers is what lists the
// resources and fills the cache.
func (c *ExplorerCollector) refresh(ctx context.Context, expander Expander, scopes []resource.Scope) {
	c.logger.Info("Refreshing subscription expansions", "subscriptions", len(scopes))
	start := c.clock.Now()

	results := make([]subscriptionResult, 0, len(scopes))
	errored := 0
	for _, scope := range scopes {
		if ctx.Err() != nil {
			return
		}
		exp := expander.ExpandSubscription(ctx, scope)
		result := subscriptionResult{
			AccountID:      scope.Account.ID,
			SubscriptionID: scope.Subscription.ID,
			State:          exp.State,
			Nodes:          len(exp.Nodes),
		}
		for _, n := range exp.Nodes {
			if !n.Node.Expandable() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			children := expander.ExpandNode(ctx, n.ProviderID, &n.Node)
			switch children.State {
			case tree.StatePopulated:
				result.Resources += len(children.Nodes)
			case tree.StateErrored:
				result.FailedNodes++
			}
		}
		if result.State == tree.StateErrored || result.FailedNodes > 0 {
			errored++
		}
		if result.FailedNodes > 0 {
			c.logger.Debug("Some nodes failed to expand",
				"account_id", result.AccountID,
				"subscription_id", result.SubscriptionID,
				"failed_nodes", result.FailedNodes)
		}
		results = append(results, result)
	}
	duration := c.clock.Now().Sub(start)

	c.mu.Lock()
	c.lastResults = results
	c.lastRefresh = c.clock.Now()
	c.lastRefreshDuration = duration
	c.mu.Unlock()

	if errored > 0 {
		c.logger.Warn("Some subscriptions failed to expand",
			"errored", errored,
			"subscriptions", len(scopes))
	}
	c.logger.Info("Refreshed subscription expansions",
		"subscriptions", len(results),
		"duration_seconds", duration.Seconds())
}

// LastRefreshTime returns the time of the last completed background refresh
func (c *ExplorerCollector) LastRefreshTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}

// SubscriptionStates returns the state of every subscription at the last
// background refresh, keyed by subscription node id
func (c *ExplorerCollector) SubscriptionStates() map[string]tree.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	states := make(map[string]tree.State, len(c.lastResults))
	for _, r := range c.lastResults {
		scope := resource.Scope{
			Account:      resource.Account{ID: r.AccountID},
			Subscription: resource.Subscription{ID: r.SubscriptionID},
		}
		states[scope.NodeID()] = r.State
	}
	return states
}
