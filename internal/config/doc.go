// Package config provides configuration management for the Azure Resource Explorer.
//
// This package handles loading configuration from YAML files, applying
// environment variable overrides, setting defaults, and validating the
// configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (highest priority)
//  2. YAML configuration file
//  3. Default values (lowest priority)
//
// Supported environment variables:
//   - EXPLORER_HTTP_PORT: HTTP server port (1-65535)
//   - EXPLORER_LOG_LEVEL: Log level (debug, info, warn, error)
//   - EXPLORER_LOG_FORMAT: Log format (json, text)
//   - EXPLORER_API_TIMEOUT: Per-call Azure API timeout in seconds (maximum: 300)
//   - EXPLORER_FANOUT_CONCURRENCY: Providers queried in parallel per subscription
//   - EXPLORER_REFRESH_INTERVAL: Seconds between background expansions (0 disables, minimum: 60)
//   - EXPLORER_CORS_ORIGINS: Comma-separated allowed CORS origins
//   - EXPLORER_EXTENSIONS_DIR: Directory of extension manifests
//   - EXPLORER_CACHE_BACKEND: memory, redis or none
//   - EXPLORER_CACHE_TTL: Listing cache TTL in seconds
//   - EXPLORER_REDIS_ADDR, EXPLORER_REDIS_PASSWORD, EXPLORER_REDIS_DB: Redis connection
//   - EXPLORER_COST_CURRENCY: Fallback currency of cost values
//   - EXPLORER_COST_DAYS_TO_QUERY: Days in the cost window (minimum: 1)
//   - EXPLORER_COST_END_DATE_OFFSET: Days to offset the end of the cost window
//   - EXPLORER_SUBSCRIPTIONS: Comma-separated subscription IDs or id:name pairs.
//     Replaces the configured accounts with a single account whose tenant is
//     EXPLORER_TENANT_ID.
//
// Example configuration file (config.yaml):
//
//	accounts:
//	  - id: "contoso"
//	    name: "Contoso"
//	    tenants: ["tenant-1"]
//	    subscriptions:
//	      - id: "sub-123"
//	        name: "Production"
//
//	http_port: 8080
//	log_level: "info"
//	fanout_concurrency: 4
//	refresh_interval: 600   # Re-expand every subscription every 10 minutes
//
//	extensions_dir: "/etc/explorer/extensions"
//
//	cache:
//	  backend: "redis"
//	  ttl: 300
//	  redis_addr: "localhost:6379"
//
//	cost:
//	  currency: "€"
//	  date_range:
//	    end_date_offset: 1    # Yesterday
//	    days_to_query: 7      # Last 7 days
//
// Example usage:
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//		log.Fatalf("Failed to load config: %v", err)
//	}
//
//	for _, scope := range cfg.Scopes() {
//		fmt.Println(scope.NodeID())
//	}
package config
