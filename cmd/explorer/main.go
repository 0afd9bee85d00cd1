package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zgpcy/azure-resource-explorer/internal/azure"
	"github.com/zgpcy/azure-resource-explorer/internal/cache"
	"github.com/zgpcy/azure-resource-explorer/internal/clock"
	"github.com/zgpcy/azure-resource-explorer/internal/collector"
	"github.com/zgpcy/azure-resource-explorer/internal/config"
	"github.com/zgpcy/azure-resource-explorer/internal/extension"
	"github.com/zgpcy/azure-resource-explorer/internal/logger"
	"github.com/zgpcy/azure-resource-explorer/internal/providers"
	"github.com/zgpcy/azure-resource-explorer/internal/registry"
	"github.com/zgpcy/azure-resource-explorer/internal/resource"
	"github.com/zgpcy/azure-resource-explorer/internal/server"
	"github.com/zgpcy/azure-resource-explorer/internal/tree"
	"github.com/zgpcy/azure-resource-explorer/internal/version"
)

const (
	// DefaultShutdownTimeout is the maximum time to wait for graceful shutdown
	DefaultShutdownTimeout = 30 * time.Second
)

var (
	configPath = flag.String("config", "config.yaml", "Path to configuration file")
	expandOnly = flag.Bool("expand", false, "Expand every configured subscription, print the result as JSON and exit")
	showVer    = flag.Bool("version", false, "Print version information and exit")
)

// expandedSubscription is one entry of the -expand output
type expandedSubscription struct {
	ID    string         `json:"id"`
	Scope resource.Scope `json:"scope"`
	Tree  tree.Expansion `json:"tree"`
}

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println(version.String())
		return
	}

	// Load configuration first (need log level from config)
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Logs go to stderr so -expand output stays clean JSON
	logger := logger.NewWithFormat(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	logger.Info("Azure Resource Explorer starting",
		"build", version.String(),
		"config_path", *configPath)

	logger.Info("Configuration loaded successfully",
		"accounts", len(cfg.Accounts),
		"subscriptions", len(cfg.Scopes()),
		"http_port", cfg.HTTPPort,
		"cache_backend", cfg.Cache.Backend,
		"cache_ttl_seconds", cfg.Cache.TTL,
		"fanout_concurrency", cfg.FanoutConcurrency,
		"refresh_interval_seconds", cfg.RefreshInterval,
		"api_timeout_seconds", cfg.APITimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listingCache, closeCache, err := newCache(ctx, cfg)
	if err != nil {
		logger.Error("Failed to create listing cache", "error", err)
		os.Exit(1)
	}
	defer closeCache()

	reg := registry.New(newHost(cfg, listingCache, logger), logger)
	metrics := collector.NewExplorerCollector(reg, logger)
	expander := tree.NewExpander(reg, logger,
		tree.WithConcurrency(cfg.FanoutConcurrency),
		tree.WithObserver(metrics))

	if *expandOnly {
		if err := expandAll(ctx, os.Stdout, expander, cfg.Scopes()); err != nil {
			logger.Error("Failed to write expansion", "error", err)
			os.Exit(1)
		}
		return
	}

	// Register collector with Prometheus
	if err := prometheus.Register(metrics); err != nil {
		logger.Error("Failed to register collector", "error", err)
		os.Exit(1)
	}

	// Register Go runtime metrics (memory, goroutines, GC stats)
	if err := prometheus.Register(prometheus.NewGoCollector()); err != nil {
		logger.Warn("Failed to register Go collector", "error", err)
	}

	// Register process metrics (CPU, memory, file descriptors)
	if err := prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{})); err != nil {
		logger.Warn("Failed to register process collector", "error", err)
	}

	// Discover providers up front so /ready flips without waiting for a request
	go func() {
		ids, err := reg.ListProviderIDs(ctx)
		if err != nil {
			logger.Warn("Provider discovery interrupted", "error", err)
			return
		}
		logger.Info("Resource providers discovered",
			"providers", len(ids),
			"failed_extensions", len(reg.DiscoveryErrors()))
	}()

	var refresh server.RefreshStatus
	if cfg.RefreshInterval > 0 {
		logger.Info("Starting background subscription refresh")
		go metrics.StartBackgroundRefresh(ctx, expander, cfg.Scopes(), time.Duration(cfg.RefreshInterval)*time.Second)
		refresh = metrics
	}

	srv := server.NewServer(cfg, reg, expander, refresh, logger)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("Server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		logger.Info("Received shutdown signal, starting graceful shutdown", "signal", sig.String())

		// Cancel background refresh
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during server shutdown", "error", err)
			os.Exit(1)
		}

		logger.Info("Server stopped gracefully")
	}
}

// newCache builds the configured listing cache and its close function
func newCache(ctx context.Context, cfg *config.Config) (cache.Cache, func(), error) {
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		r, err := cache.NewRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	case config.CacheNone:
		return cache.Nop{}, func() {}, nil
	default:
		return cache.NewMemory(clock.RealClock{}), func() {}, nil
	}
}

// newHost wires the Azure listing services into the extension host
func newHost(cfg *config.Config, listingCache cache.Cache, log *logger.Logger) *extension.Host {
	retry := azure.DefaultRetryPolicy(time.Duration(cfg.APITimeout) * time.Second)
	offset := config.DefaultEndDateOffset
	if cfg.Cost.DateRange.EndDateOffset != nil {
		offset = *cfg.Cost.DateRange.EndDateOffset
	}
	window := azure.CostWindow{
		DaysToQuery:   cfg.Cost.DateRange.DaysToQuery,
		EndDateOffset: offset,
		Currency:      cfg.Cost.Currency,
	}

	storage := azure.NewStorageLister(nil, nil, retry, log)
	deps := extension.Dependencies{
		Tokens:  azure.NewIdentityTokenService(nil, clock.RealClock{}, log),
		SQL:     azure.NewSQLServerLister(nil, retry, log),
		Storage: storage,
		Cost:    azure.NewCostClient(azure.LiveUsage, window, retry, clock.RealClock{}, log),
		Listing: providers.Listing{
			Cache:  listingCache,
			TTL:    time.Duration(cfg.Cache.TTL) * time.Second,
			Logger: log,
		},
	}
	return extension.NewHost(cfg.Extensions, cfg.ExtensionsDir, extension.DefaultCatalog(), deps, log)
}

// expandAll expands every scope in config order and writes the result as JSON
func expandAll(ctx context.Context, w io.Writer, expander *tree.Expander, scopes []resource.Scope) error {
	out := make([]expandedSubscription, 0, len(scopes))
	for _, scope := range scopes {
		out = append(out, expandedSubscription{
			ID:    scope.NodeID(),
			Scope: scope,
			Tree:  expander.ExpandSubscription(ctx, scope),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding expansion: %w", err)
	}
	return nil
}
