package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/zgpcy/azure-resource-explorer/internal/extension"
	"github.com/zgpcy/azure-resource-explorer/internal/resource"
	"gopkg.in/yaml.v3"
)

// Configuration validation constants
const (
	MinPort        = 1     // Minimum valid port number
	MaxPort        = 65535 // Maximum valid port number
	MinDaysToQuery = 1     // Minimum days to query
	MaxAPITimeout  = 300   // Maximum API timeout in seconds
	MaxFanout      = 64    // Maximum concurrent provider calls per subscription
	MaxCacheTTL    = 86400 // Maximum listing cache TTL in seconds
	MinRefresh     = 60    // Minimum background refresh interval in seconds

	// Default values
	DefaultCurrency          = "€"
	DefaultEndDateOffset     = 1
	DefaultDaysToQuery       = 7
	DefaultHTTPPort          = 8080
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "json"
	DefaultAPITimeout        = 30 // API timeout in seconds
	DefaultFanoutConcurrency = 4
	DefaultCacheBackend      = CacheMemory
	DefaultCacheTTL          = 300 // 5 minutes in seconds

	// DefaultAccountID names the account built from EXPLORER_SUBSCRIPTIONS
	DefaultAccountID = "default"
)

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Account is an Azure account and the subscriptions to explore under it
type Account struct {
	ID            string                  `yaml:"id"`
	Name          string                  `yaml:"name"`
	Tenants       []string                `yaml:"tenants"`
	Subscriptions []resource.Subscription `yaml:"subscriptions"`
}

// DateRange represents the date range of cost queries
type DateRange struct {
	EndDateOffset *int `yaml:"end_date_offset"` // Pointer to distinguish between 0 and unset
	DaysToQuery   int  `yaml:"days_to_query"`
}

// CostConfig configures the cost provider
type CostConfig struct {
	Currency  string    `yaml:"currency"`
	DateRange DateRange `yaml:"date_range"`
}

// CacheConfig configures the listing cache
type CacheConfig struct {
	Backend       string `yaml:"backend"` // memory, redis or none
	TTL           int    `yaml:"ttl"`     // seconds
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// Config represents the application configuration
type Config struct {
	Accounts          []Account            `yaml:"accounts"`
	HTTPPort          int                  `yaml:"http_port"`
	LogLevel          string               `yaml:"log_level"`
	LogFormat         string               `yaml:"log_format"`
	APITimeout        int                  `yaml:"api_timeout"` // Azure API timeout in seconds
	FanoutConcurrency int                  `yaml:"fanout_concurrency"`
	RefreshInterval   int                  `yaml:"refresh_interval"` // seconds, 0 disables background refresh
	CORSOrigins       []string             `yaml:"cors_origins"`
	ExtensionsDir     string               `yaml:"extensions_dir"`
	Extensions        []extension.Manifest `yaml:"extensions"`
	Cache             CacheConfig          `yaml:"cache"`
	Cost              CostConfig           `yaml:"cost"`
}

// Load loads configuration from a YAML file and applies environment variable overrides
func Load(path string) (*Config, error) {
	// #nosec G304 -- Config file path is provided by administrator via CLI flag, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment variable error: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Scopes returns one scope per configured subscription, in config order
func (c *Config) Scopes() []resource.Scope {
	var scopes []resource.Scope
	for _, a := range c.Accounts {
		account := resource.Account{ID: a.ID, Name: a.Name, Tenants: a.Tenants}
		for _, sub := range a.Subscriptions {
			scopes = append(scopes, resource.Scope{
				Account:      account,
				Subscription: sub,
				TenantID:     sub.TenantID,
			})
		}
	}
	return scopes
}

// applyDefaults sets default values for configuration
func applyDefaults(cfg *Config) {
	for i := range cfg.Accounts {
		a := &cfg.Accounts[i]
		if a.Name == "" {
			a.Name = a.ID
		}
		for j := range a.Subscriptions {
			sub := &a.Subscriptions[j]
			if sub.Name == "" {
				sub.Name = sub.ID
			}
			// A single-tenant account owns all of its subscriptions
			if sub.TenantID == "" && len(a.Tenants) == 1 {
				sub.TenantID = a.Tenants[0]
			}
		}
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = DefaultHTTPPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = DefaultLogFormat
	}
	if cfg.APITimeout == 0 {
		cfg.APITimeout = DefaultAPITimeout
	}
	if cfg.FanoutConcurrency == 0 {
		cfg.FanoutConcurrency = DefaultFanoutConcurrency
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = DefaultCacheBackend
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Cost.Currency == "" {
		cfg.Cost.Currency = DefaultCurrency
	}
	// Only apply default if EndDateOffset is nil (not set), not if it's explicitly 0
	if cfg.Cost.DateRange.EndDateOffset == nil {
		offset := DefaultEndDateOffset
		cfg.Cost.DateRange.EndDateOffset = &offset
	}
	if cfg.Cost.DateRange.DaysToQuery == 0 {
		cfg.Cost.DateRange.DaysToQuery = DefaultDaysToQuery
	}
}

// envInt parses an integer environment variable into dst when it is set
func envInt(name string, dst *int) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("invalid %s: must be an integer, got %q", name, val)
	}
	*dst = i
	return nil
}

// envString copies a non-empty environment variable into dst
func envString(name string, dst *string) {
	if val := os.Getenv(name); val != "" {
		*dst = val
	}
}

// applyEnvOverrides applies environment variable overrides to configuration
func applyEnvOverrides(cfg *Config) error {
	envString("EXPLORER_LOG_LEVEL", &cfg.LogLevel)
	envString("EXPLORER_LOG_FORMAT", &cfg.LogFormat)
	envString("EXPLORER_EXTENSIONS_DIR", &cfg.ExtensionsDir)
	envString("EXPLORER_CACHE_BACKEND", &cfg.Cache.Backend)
	envString("EXPLORER_REDIS_ADDR", &cfg.Cache.RedisAddr)
	envString("EXPLORER_REDIS_PASSWORD", &cfg.Cache.RedisPassword)
	envString("EXPLORER_COST_CURRENCY", &cfg.Cost.Currency)

	ints := []struct {
		name string
		dst  *int
	}{
		{"EXPLORER_HTTP_PORT", &cfg.HTTPPort},
		{"EXPLORER_API_TIMEOUT", &cfg.APITimeout},
		{"EXPLORER_FANOUT_CONCURRENCY", &cfg.FanoutConcurrency},
		{"EXPLORER_REFRESH_INTERVAL", &cfg.RefreshInterval},
		{"EXPLORER_CACHE_TTL", &cfg.Cache.TTL},
		{"EXPLORER_REDIS_DB", &cfg.Cache.RedisDB},
		{"EXPLORER_COST_DAYS_TO_QUERY", &cfg.Cost.DateRange.DaysToQuery},
	}
	for _, e := range ints {
		if err := envInt(e.name, e.dst); err != nil {
			return err
		}
	}

	if val := os.Getenv("EXPLORER_COST_END_DATE_OFFSET"); val != "" {
		var i int
		if err := envInt("EXPLORER_COST_END_DATE_OFFSET", &i); err != nil {
			return err
		}
		cfg.Cost.DateRange.EndDateOffset = &i
	}

	if val := os.Getenv("EXPLORER_CORS_ORIGINS"); val != "" {
		cfg.CORSOrigins = splitList(val)
	}

	// Replace the configured accounts with a single account built from the
	// environment. Example:
	//   EXPLORER_TENANT_ID="tenant-1" EXPLORER_SUBSCRIPTIONS="sub1:prod,sub2:dev"
	if val := os.Getenv("EXPLORER_SUBSCRIPTIONS"); val != "" {
		var subs []resource.Subscription
		for _, pair := range splitList(val) {
			parts := strings.SplitN(pair, ":", 2)
			id := strings.TrimSpace(parts[0])
			name := id
			if len(parts) == 2 {
				name = strings.TrimSpace(parts[1])
			}
			subs = append(subs, resource.Subscription{ID: id, Name: name})
		}
		if len(subs) > 0 {
			account := Account{ID: DefaultAccountID, Name: DefaultAccountID, Subscriptions: subs}
			if tenant := os.Getenv("EXPLORER_TENANT_ID"); tenant != "" {
				account.Tenants = []string{tenant}
			}
			cfg.Accounts = []Account{account}
		}
	}

	return nil
}

func splitList(val string) []string {
	var out []string
	for _, s := range strings.Split(val, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// validate validates the configuration
func validate(cfg *Config) error {
	if len(cfg.Accounts) == 0 {
		return fmt.Errorf("no accounts configured")
	}

	accountIDs := make(map[string]bool)
	for i, a := range cfg.Accounts {
		if a.ID == "" {
			return fmt.Errorf("account at index %d has empty ID", i)
		}
		if accountIDs[a.ID] {
			return fmt.Errorf("duplicate account ID %q", a.ID)
		}
		accountIDs[a.ID] = true

		if len(a.Tenants) == 0 {
			return fmt.Errorf("account %q has no tenants", a.ID)
		}
		if len(a.Subscriptions) == 0 {
			return fmt.Errorf("account %q has no subscriptions", a.ID)
		}

		tenants := make(map[string]bool, len(a.Tenants))
		for _, t := range a.Tenants {
			tenants[t] = true
		}
		subIDs := make(map[string]bool)
		for j, sub := range a.Subscriptions {
			if sub.ID == "" {
				return fmt.Errorf("account %q: subscription at index %d has empty ID", a.ID, j)
			}
			if subIDs[sub.ID] {
				return fmt.Errorf("account %q: duplicate subscription ID %q", a.ID, sub.ID)
			}
			subIDs[sub.ID] = true
			if sub.TenantID == "" {
				return fmt.Errorf("account %q: subscription %q needs a tenant_id when the account has several tenants", a.ID, sub.ID)
			}
			if !tenants[sub.TenantID] {
				return fmt.Errorf("account %q: subscription %q tenant %q is not one of the account's tenants", a.ID, sub.ID, sub.TenantID)
			}
		}
	}

	if cfg.HTTPPort < MinPort || cfg.HTTPPort > MaxPort {
		return fmt.Errorf("http_port must be between %d and %d", MinPort, MaxPort)
	}

	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return fmt.Errorf("log_format must be json or text, got %q", cfg.LogFormat)
	}

	if cfg.APITimeout <= 0 {
		return fmt.Errorf("api_timeout must be positive, got %d", cfg.APITimeout)
	}
	if cfg.APITimeout > MaxAPITimeout {
		return fmt.Errorf("api_timeout should not exceed %d seconds (5 minutes), got %d", MaxAPITimeout, cfg.APITimeout)
	}

	if cfg.FanoutConcurrency < 1 || cfg.FanoutConcurrency > MaxFanout {
		return fmt.Errorf("fanout_concurrency must be between 1 and %d, got %d", MaxFanout, cfg.FanoutConcurrency)
	}

	if cfg.RefreshInterval != 0 && cfg.RefreshInterval < MinRefresh {
		return fmt.Errorf("refresh_interval must be 0 (disabled) or at least %d seconds, got %d", MinRefresh, cfg.RefreshInterval)
	}

	switch cfg.Cache.Backend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if cfg.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be one of memory, redis, none; got %q", cfg.Cache.Backend)
	}
	if cfg.Cache.TTL < 0 || cfg.Cache.TTL > MaxCacheTTL {
		return fmt.Errorf("cache.ttl must be between 0 and %d seconds, got %d", MaxCacheTTL, cfg.Cache.TTL)
	}

	if cfg.Cost.DateRange.DaysToQuery < MinDaysToQuery {
		return fmt.Errorf("cost.date_range.days_to_query must be at least %d", MinDaysToQuery)
	}
	if cfg.Cost.DateRange.EndDateOffset != nil && *cfg.Cost.DateRange.EndDateOffset < 0 {
		return fmt.Errorf("cost.date_range.end_date_offset cannot be negative, got %d", *cfg.Cost.DateRange.EndDateOffset)
	}

	names := make(map[string]bool)
	for i, m := range cfg.Extensions {
		if m.Name == "" {
			return fmt.Errorf("extension at index %d has empty name", i)
		}
		if names[m.Name] {
			return fmt.Errorf("duplicate extension name %q", m.Name)
		}
		names[m.Name] = true
	}

	return nil
}
