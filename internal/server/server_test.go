package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/zgpcy/azure-resource-explorer/internal/azure"
	"github.com/zgpcy/azure-resource-explorer/internal/config"
	"github.com/zgpcy/azure-resource-explorer/internal/logger"
	"github.com/zgpcy/azure-resource-explorer/internal/providers"
	"github.com/zgpcy/azure-resource-explorer/internal/providers/databaseserver"
	"github.com/zgpcy/azure-resource-explorer/internal/providers/providertest"
	"github.com/zgpcy/azure-resource-explorer/internal/registry"
	"github.com/zgpcy/azure-resource-explorer/internal/resource"
	"github.com/zgpcy/azure-resource-explorer/internal/resource/resourcetest"
	"github.com/zgpcy/azure-resource-explorer/internal/tree"
)

// testLogger creates a logger for testing (error level to suppress test output)
func testLogger() *logger.Logger {
	return logger.New("error")
}

func testConfig() *config.Config {
	return &config.Config{
		HTTPPort: 8080,
		Accounts: []config.Account{{
			ID:      "A1",
			Name:    "Contoso",
			Tenants: []string{"T1"},
			Subscriptions: []resource.Subscription{
				{ID: "S1", Name: "prod", TenantID: "T1"},
				{ID: "S2", Name: "dev", TenantID: "T1"},
			},
		}},
	}
}

// testServer builds a server over a registry holding a storage provider with
// one container and one account under it, and an empty db provider
func testServer(t *testing.T, cfg *config.Config) (*Server, *resourcetest.Producer) {
	t.Helper()
	reg := registry.New(nil, testLogger())

	storage, prod := resourcetest.NewProvider("storage", "storageContainer")
	prod.ChildNodes = map[string][]resource.Node{
		"storageContainer": {resource.NewResource(nil, resource.DisplayItem{ID: "storage_acct1", Label: "acct1"}, nil)},
	}
	db, _ := resourcetest.NewProvider("db")
	for _, p := range []resource.ResourceProvider{storage, db} {
		if err := reg.Register(p); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}

	expander := tree.NewExpander(reg, testLogger())
	return NewServer(cfg, reg, expander, nil, testLogger()), prod
}

// do sends a request through the full handler chain
func do(t *testing.T, s *Server, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w.Result()
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
}

func TestNewServer(t *testing.T) {
	server, _ := testServer(t, testConfig())

	if server.server.Addr != ":8080" {
		t.Errorf("server address: got %v, want :8080", server.server.Addr)
	}
	if len(server.subscriptions) != 2 {
		t.Errorf("Expected 2 subscription nodes, got %d", len(server.subscriptions))
	}
	if server.order[0] != "A1.S1" || server.order[1] != "A1.S2" {
		t.Errorf("subscription order = %v, want [A1.S1 A1.S2]", server.order)
	}
}

func TestHandleHealth(t *testing.T) {
	server, _ := testServer(t, testConfig())

	resp := do(t, server, http.MethodGet, "/health", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status code: got %v, want %v", resp.StatusCode, http.StatusOK)
	}
	if contentType := resp.Header.Get("Content-Type"); contentType != "application/json" {
		t.Errorf("Content-Type: got %v, want application/json", contentType)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	if string(body) != `{"status":"healthy"}` {
		t.Errorf("Response body: got %v, want %v", string(body), `{"status":"healthy"}`)
	}
}

func TestHandleReady(t *testing.T) {
	server, _ := testServer(t, testConfig())

	// Discovery has not run yet
	resp := do(t, server, http.MethodGet, "/ready", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Status code before discovery: got %v, want %v", resp.StatusCode, http.StatusServiceUnavailable)
	}
	var notReady map[string]any
	decode(t, resp, &notReady)
	if notReady["status"] != "not ready" || notReady["state"] != "not_started" {
		t.Errorf("Unexpected body before discovery: %v", notReady)
	}

	// Listing providers triggers discovery
	do(t, server, http.MethodGet, "/api/v1/providers", "").Body.Close()

	resp = do(t, server, http.MethodGet, "/ready", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status code after discovery: got %v, want %v", resp.StatusCode, http.StatusOK)
	}
	var ready map[string]any
	decode(t, resp, &ready)
	if ready["status"] != "ready" || ready["providers"] != float64(2) {
		t.Errorf("Unexpected body after discovery: %v", ready)
	}
	if _, ok := ready["discovery_failures"]; ok {
		t.Error("discovery_failures should be omitted when discovery succeeded")
	}
}

func TestHandleIndex(t *testing.T) {
	server, _ := testServer(t, testConfig())

	resp := do(t, server, http.MethodGet, "/", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status code: got %v, want %v", resp.StatusCode, http.StatusOK)
	}
	if contentType := resp.Header.Get("Content-Type"); contentType != "text/html" {
		t.Errorf("Content-Type: got %v, want text/html", contentType)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"Azure Resource Explorer", "Discovering providers", "Disabled", "/api/v1/accounts"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("Index page should contain %q", want)
		}
	}
}

func TestListProviders(t *testing.T) {
	server, _ := testServer(t, testConfig())

	resp := do(t, server, http.MethodGet, "/api/v1/providers", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status code: got %v, want %v", resp.StatusCode, http.StatusOK)
	}
	var body struct {
		Providers []string `json:"providers"`
	}
	decode(t, resp, &body)
	if len(body.Providers) != 2 || body.Providers[0] != "storage" || body.Providers[1] != "db" {
		t.Errorf("providers = %v, want [storage db]", body.Providers)
	}
}

func TestListAccounts(t *testing.T) {
	server, _ := testServer(t, testConfig())

	resp := do(t, server, http.MethodGet, "/api/v1/accounts", "")
	var body struct {
		Accounts []accountResponse `json:"accounts"`
	}
	decode(t, resp, &body)

	if len(body.Accounts) != 1 {
		t.Fatalf("Expected 1 account, got %d", len(body.Accounts))
	}
	a := body.Accounts[0]
	if a.ID != "A1" || len(a.Subscriptions) != 2 {
		t.Fatalf("Unexpected account: %+v", a)
	}
	if a.Subscriptions[0].NodeID != "A1.S1" || a.Subscriptions[0].State != tree.StateCollapsed {
		t.Errorf("Unexpected subscription: %+v", a.Subscriptions[0])
	}
}

func TestSubscriptionResources(t *testing.T) {
	server, prod := testServer(t, testConfig())

	resp := do(t, server, http.MethodGet, "/api/v1/accounts/A1/subscriptions/S1/resources", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status code: got %v, want %v", resp.StatusCode, http.StatusOK)
	}
	var body resourcesResponse
	decode(t, resp, &body)

	if body.Item.ID != "A1.S1" || body.Item.Label != "prod" {
		t.Errorf("Unexpected subscription item: %+v", body.Item)
	}
	if body.State != tree.StatePopulated {
		t.Errorf("state = %v, want populated", body.State)
	}
	if len(body.Nodes) != 1 || body.Nodes[0].ProviderID != "storage" {
		t.Fatalf("Unexpected nodes: %+v", body.Nodes)
	}
	if body.Nodes[0].Node.Scope == nil || body.Nodes[0].Node.Scope.Subscription.ID != "S1" {
		t.Errorf("Root node should carry the subscription scope, got %+v", body.Nodes[0].Node.Scope)
	}

	// A cached read does not expand again
	calls := prod.Calls()
	resp = do(t, server, http.MethodGet, "/api/v1/accounts/A1/subscriptions/S1/resources?cached=true", "")
	resp.Body.Close()
	if prod.Calls() != calls {
		t.Errorf("cached read should not call the provider, calls %d -> %d", calls, prod.Calls())
	}

	// Without cached=true the subscription is expanded again
	do(t, server, http.MethodGet, "/api/v1/accounts/A1/subscriptions/S1/resources", "").Body.Close()
	if prod.Calls() != calls+1 {
		t.Errorf("Expected a re-expansion, calls %d -> %d", calls, prod.Calls())
	}
}

func TestSubscriptionResources_NotFound(t *testing.T) {
	server, _ := testServer(t, testConfig())

	for _, path := range []string{
		"/api/v1/accounts/A9/subscriptions/S1/resources",
		"/api/v1/accounts/A1/subscriptions/S9/resources",
	} {
		resp := do(t, server, http.MethodGet, path, "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: status code got %v, want %v", path, resp.StatusCode, http.StatusNotFound)
		}
		var body errorResponse
		decode(t, resp, &body)
		if body.Error == "" || body.RequestID == "" {
			t.Errorf("%s: error body should carry a message and request id, got %+v", path, body)
		}
	}
}

func TestChildren(t *testing.T) {
	server, _ := testServer(t, testConfig())

	container := `{"kind":"container","item":{"id":"storageContainer","label":"Storage","collapsible":1}}`
	resp := do(t, server, http.MethodPost, "/api/v1/providers/storage/children", container)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status code: got %v, want %v", resp.StatusCode, http.StatusOK)
	}
	var exp tree.Expansion
	decode(t, resp, &exp)
	if exp.State != tree.StatePopulated || len(exp.Nodes) != 1 || exp.Nodes[0].Node.Item.Label != "acct1" {
		t.Errorf("Unexpected expansion: %+v", exp)
	}

	// Placeholders are never expanded
	placeholder := `{"kind":"placeholder","item":{"id":"x","label":"No Resources found."}}`
	resp = do(t, server, http.MethodPost, "/api/v1/providers/storage/children", placeholder)
	decode(t, resp, &exp)
	if exp.State != tree.StateEmpty || len(exp.Nodes) != 0 {
		t.Errorf("Placeholder expansion should be empty, got %+v", exp)
	}
}

func TestChildren_RoundTripsSubscriptionNodes(t *testing.T) {
	reg := registry.New(nil, testLogger())
	listers := &providertest.Listers{Servers: []azure.DatabaseServer{{Name: "server_a", Location: "westeurope"}}}
	listing := providers.Listing{Logger: testLogger()}
	if err := reg.Register(databaseserver.New(&providertest.Tokens{}, listers, listing)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	server := NewServer(testConfig(), reg, tree.NewExpander(reg, testLogger()), nil, testLogger())

	resp := do(t, server, http.MethodGet, "/api/v1/accounts/A1/subscriptions/S1/resources", "")
	var sub resourcesResponse
	decode(t, resp, &sub)
	if len(sub.Nodes) != 1 || sub.Nodes[0].ProviderID != databaseserver.ProviderID {
		t.Fatalf("Unexpected subscription nodes: %+v", sub.Nodes)
	}

	// The client posts back the node exactly as it was served
	body, err := json.Marshal(sub.Nodes[0].Node)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	resp = do(t, server, http.MethodPost, "/api/v1/providers/"+databaseserver.ProviderID+"/children", string(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status code: got %v, want %v", resp.StatusCode, http.StatusOK)
	}
	var exp tree.Expansion
	decode(t, resp, &exp)

	if exp.State != tree.StatePopulated || len(exp.Nodes) != 1 {
		t.Fatalf("Expected one server, got %+v", exp)
	}
	if exp.Nodes[0].Node.Item.Label != "server_a" {
		t.Errorf("label = %q, want server_a", exp.Nodes[0].Node.Item.Label)
	}
	if want := sub.Nodes[0].Node.Item.ID + ".databaseServer_server_a"; exp.Nodes[0].Node.Item.ID != want {
		t.Errorf("id = %q, want %q", exp.Nodes[0].Node.Item.ID, want)
	}
	if got := listers.Calls("servers"); got != 1 {
		t.Errorf("Expected 1 server listing, got %d", got)
	}
}

func TestChildren_Errors(t *testing.T) {
	server, _ := testServer(t, testConfig())

	resp := do(t, server, http.MethodPost, "/api/v1/providers/vm/children", `{"kind":"container"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Unknown provider: status code got %v, want %v", resp.StatusCode, http.StatusNotFound)
	}
	var body errorResponse
	decode(t, resp, &body)
	if !strings.Contains(body.Error, "Id: vm") {
		t.Errorf("Unknown provider error should name the id, got %q", body.Error)
	}

	resp = do(t, server, http.MethodPost, "/api/v1/providers/storage/children", `{not json`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Malformed body: status code got %v, want %v", resp.StatusCode, http.StatusBadRequest)
	}

	resp = do(t, server, http.MethodGet, "/api/v1/providers/storage/children", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET children: status code got %v, want %v", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestTreeItem(t *testing.T) {
	server, _ := testServer(t, testConfig())

	resp := do(t, server, http.MethodPost, "/api/v1/providers/storage/item", `{"kind":"resource","item":{"id":"storage_acct1","label":"acct1"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status code: got %v, want %v", resp.StatusCode, http.StatusOK)
	}
	var item resource.DisplayItem
	decode(t, resp, &item)
	if item.ID != "storage_acct1" || item.Label != "acct1" {
		t.Errorf("Unexpected item: %+v", item)
	}

	resp = do(t, server, http.MethodPost, "/api/v1/providers/vm/item", `{}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Unknown provider: status code got %v, want %v", resp.StatusCode, http.StatusNotFound)
	}
}

func TestRequestID(t *testing.T) {
	server, _ := testServer(t, testConfig())

	resp := do(t, server, http.MethodGet, "/health", "")
	resp.Body.Close()
	if _, err := uuid.Parse(resp.Header.Get(RequestIDHeader)); err != nil {
		t.Errorf("Generated request id should be a UUID, got %q", resp.Header.Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "caller-id")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "caller-id" {
		t.Errorf("Request id should be propagated, got %q", got)
	}
}

func TestCORS(t *testing.T) {
	cfg := testConfig()
	cfg.CORSOrigins = []string{"http://portal.example"}
	server, _ := testServer(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/providers", nil)
	req.Header.Set("Origin", "http://portal.example")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://portal.example" {
		t.Errorf("Access-Control-Allow-Origin = %q, want http://portal.example", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/providers", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Disallowed origin should get no CORS header, got %q", got)
	}
}
