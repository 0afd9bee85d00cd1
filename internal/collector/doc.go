// Package collector implements a Prometheus collector for the resource explorer.
//
// ExplorerCollector reads the provider registry's state on every scrape and
// receives expansion outcomes from the tree expander through tree.Observer.
// It can also re-expand every configured subscription and its first-level
// nodes in the background, which keeps the listing cache warm and exposes the
// per-subscription outcome.
//
// The collector exposes the following metrics:
//   - azure_resource_explorer_providers: Number of registered resource providers
//   - azure_resource_explorer_discovery_state: 1 for the current discovery state
//   - azure_resource_explorer_discovery_failures: Extensions that failed during discovery
//   - azure_resource_explorer_discovery_duration_seconds: Duration of the discovery scan
//   - azure_resource_explorer_expansions_total: Expansions by outcome state
//   - azure_resource_explorer_expansion_duration_seconds: Expansion duration histogram
//   - azure_resource_explorer_provider_errors_total: Failed provider listings by provider id
//   - azure_resource_explorer_subscription_nodes: First-level nodes per subscription at the last refresh
//   - azure_resource_explorer_subscription_resources: Nodes listed below the first level at the last refresh
//   - azure_resource_explorer_last_refresh_timestamp_seconds: Unix timestamp of the last refresh
//   - azure_resource_explorer_refresh_duration_seconds: Duration of the last refresh
//   - azure_resource_explorer_build_info: Build version information
//
// Example usage:
//
//	metrics := collector.NewExplorerCollector(reg, log)
//	expander := tree.NewExpander(reg, log, tree.WithObserver(metrics))
//	prometheus.MustRegister(metrics)
//
//	metrics.StartBackgroundRefresh(ctx, expander, cfg.Scopes(), 10*time.Minute)
package collector
