// Package server provides the HTTP API of the resource explorer.
//
// Routes are served by a gorilla/mux router. Every request gets an
// X-Request-ID (the caller's, or a new UUID) and one debug access log line.
// When cors_origins is configured the router is wrapped in rs/cors.
//
// Available endpoints:
//   - GET  /                  : Status page
//   - GET  /health            : Liveness probe (always returns 200)
//   - GET  /ready             : Readiness probe (200 once provider discovery is done)
//   - GET  /metrics           : Prometheus metrics endpoint
//   - GET  /api/v1/providers  : Registered provider ids (triggers discovery)
//   - GET  /api/v1/accounts   : Configured accounts and their subscription nodes
//   - GET  /api/v1/accounts/{account}/subscriptions/{subscription}/resources
//     : Expands a subscription. ?cached=true returns the last finished expansion.
//   - POST /api/v1/providers/{provider}/children : Expands the posted node
//   - POST /api/v1/providers/{provider}/item     : Display item of the posted node
//
// Unknown accounts, subscriptions and providers give 404. Expansion
// failures are not HTTP errors: they come back as a placeholder node in an
// "errored" expansion.
//
// Example usage:
//
//	srv := server.NewServer(cfg, reg, expander, metrics, log)
//
//	serverErrors := make(chan error, 1)
//	go func() {
//		serverErrors <- srv.Start()
//	}()
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//	if err := srv.Shutdown(ctx); err != nil {
//		log.Error("Error during shutdown", "error", err)
//	}
package server
