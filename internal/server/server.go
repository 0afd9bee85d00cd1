package server

import (
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/zgpcy/azure-resource-explorer/internal/config"
	"github.com/zgpcy/azure-resource-explorer/internal/logger"
	"github.com/zgpcy/azure-resource-explorer/internal/registry"
	"github.com/zgpcy/azure-resource-explorer/internal/resource"
	"github.com/zgpcy/azure-resource-explorer/internal/tree"
)

//go:embed templates/index.html
var indexTemplate string

// HTTP server timeout constants
const (
	DefaultReadTimeout  = 15 * time.Second // Maximum duration for reading the entire request
	DefaultWriteTimeout = 60 * time.Second // Subscription expansions can take several Azure round trips
	DefaultIdleTimeout  = 60 * time.Second // Maximum amount of time to wait for the next request
)

// Registry is the part of the provider registry the server reads
type Registry interface {
	ListProviderIDs(ctx context.Context) ([]string, error)
	GetTreeItem(ctx context.Context, providerID string, node *resource.Node) (resource.DisplayItem, error)
	DiscoveryErrors() []error
	Stats() registry.Stats
}

// RefreshStatus reports the background refresh, if one runs
type RefreshStatus interface {
	LastRefreshTime() time.Time
}

// indexPageData holds template data for the index page
type indexPageData struct {
	StatusClass       string
	StatusText        string
	Providers         int
	DiscoveryFailures int
	LastRefresh       string
	RefreshInterval   int
	AccountCount      int
	SubscriptionCount int
}

// Server represents the HTTP server
type Server struct {
	server   *http.Server
	registry Registry
	expander *tree.Expander
	refresh  RefreshStatus
	cfg      *config.Config
	logger   *logger.Logger
	index    *template.Template

	// subscriptions by node id, in config order
	subscriptions map[string]*tree.SubscriptionNode
	order         []string
}

// NewServer creates a new HTTP server. refresh may be nil when background
// refresh is disabled.
func NewServer(cfg *config.Config, reg Registry, expander *tree.Expander, refresh RefreshStatus, log *logger.Logger) *Server {
	s := &Server{
		registry:      reg,
		expander:      expander,
		refresh:       refresh,
		cfg:           cfg,
		logger:        log.Component("server"),
		index:         template.Must(template.New("index").Parse(indexTemplate)),
		subscriptions: make(map[string]*tree.SubscriptionNode),
	}
	for _, scope := range cfg.Scopes() {
		node := tree.NewSubscriptionNode(scope, expander)
		s.subscriptions[node.ID()] = node
		s.order = append(s.order, node.ID())
	}

	r := mux.NewRouter()
	r.Use(s.requestID, s.accessLog)

	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/ready", s.handleReady).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/providers", s.handleListProviders).Methods("GET")
	api.HandleFunc("/providers/{provider}/children", s.handleChildren).Methods("POST")
	api.HandleFunc("/providers/{provider}/item", s.handleTreeItem).Methods("POST")
	api.HandleFunc("/accounts", s.handleListAccounts).Methods("GET")
	api.HandleFunc("/accounts/{account}/subscriptions/{subscription}/resources", s.handleSubscriptionResources).Methods("GET")

	handler := http.Handler(r)
	if len(cfg.CORSOrigins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", RequestIDHeader},
			ExposedHeaders: []string{RequestIDHeader},
		})
		handler = c.Handler(r)
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
		IdleTimeout:  DefaultIdleTimeout,
	}
	return s
}

// Handler returns the server's root handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "address", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// handleIndex serves a simple landing page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	stats := s.registry.Stats()

	statusClass := "not-ready"
	statusText := "Discovering providers"
	if stats.State == registry.DiscoveryDone {
		statusClass = "ready"
		statusText = "Ready"
	}

	lastRefreshText := "Disabled"
	if s.refresh != nil {
		lastRefreshText = "Never"
		if last := s.refresh.LastRefreshTime(); !last.IsZero() {
			lastRefreshText = last.Format("2006-01-02 15:04:05 MST")
		}
	}

	data := indexPageData{
		StatusClass:       statusClass,
		StatusText:        statusText,
		Providers:         stats.Providers,
		DiscoveryFailures: stats.DiscoveryFailures,
		LastRefresh:       lastRefreshText,
		RefreshInterval:   s.cfg.RefreshInterval,
		AccountCount:      len(s.cfg.Accounts),
		SubscriptionCount: len(s.order),
	}

	w.Header().Set("Content-Type", "text/html")
	if err := s.index.Execute(w, data); err != nil {
		s.logger.Error("Failed to execute index template", "error", err)
	}
}

// handleHealth handles health check requests (always returns 200 for liveness)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"healthy"}`)); err != nil {
		s.logger.Error("Failed to write health response", "error", err)
	}
}

// handleReady handles readiness check requests (returns 200 once provider discovery is done)
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	stats := s.registry.Stats()
	if stats.State != registry.DiscoveryDone {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "not ready",
			"message": "waiting for provider discovery",
			"state":   stats.State.String(),
		})
		return
	}

	body := map[string]any{
		"status":    "ready",
		"providers": stats.Providers,
	}
	if errs := s.registry.DiscoveryErrors(); len(errs) > 0 {
		failures := make([]string, len(errs))
		for i, err := range errs {
			failures[i] = err.Error()
		}
		body["discovery_failures"] = failures
	}
	s.writeJSON(w, http.StatusOK, body)
}
