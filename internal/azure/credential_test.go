package azure

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/zgpcy/azure-resource-explorer/internal/clock"
	"github.com/zgpcy/azure-resource-explorer/internal/resource"
)

// mockCredential hands out numbered tokens valid for ttl
type mockCredential struct {
	mu     sync.Mutex
	tenant string
	calls  int
	clock  clock.Clock
	ttl    time.Duration
	err    error
	scopes []string
}

func (m *mockCredential) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.scopes = append(m.scopes, opts.Scopes...)
	if m.err != nil {
		return azcore.AccessToken{}, m.err
	}
	return azcore.AccessToken{
		Token:     m.tenant + "-token-" + string(rune('0'+m.calls)),
		ExpiresOn: m.clock.Now().Add(m.ttl),
	}, nil
}

type mockCredentialFactory struct {
	mu       sync.Mutex
	creds    map[string]*mockCredential
	failures map[string]error
	created  int
}

func (f *mockCredentialFactory) create(tenantID string) (azcore.TokenCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failures[tenantID]; ok {
		return nil, err
	}
	f.created++
	return f.creds[tenantID], nil
}

func setupTokenService(t *testing.T, tenants ...string) (*IdentityTokenService, *mockCredentialFactory, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC))
	factory := &mockCredentialFactory{creds: make(map[string]*mockCredential), failures: make(map[string]error)}
	for _, tenant := range tenants {
		factory.creds[tenant] = &mockCredential{tenant: tenant, clock: clk, ttl: time.Hour}
	}
	return NewIdentityTokenService(factory.create, clk, testLogger()), factory, clk
}

func TestGetToken_AllTenants(t *testing.T) {
	svc, factory, _ := setupTokenService(t, "t1", "t2")
	account := resource.Account{ID: "A1", Tenants: []string{"t1", "t2"}}

	tokens, err := svc.GetToken(context.Background(), account, AudienceResourceManagement)
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("Expected 2 tokens, got %d", len(tokens))
	}
	if tokens["t1"].Token != "t1-token-1" || tokens["t2"].Token != "t2-token-1" {
		t.Errorf("tokens: got %+v", tokens)
	}
	if tokens["t1"].TokenType != "Bearer" {
		t.Errorf("token type: got %q, want Bearer", tokens["t1"].TokenType)
	}
	if got := factory.creds["t1"].scopes[0]; got != string(AudienceResourceManagement) {
		t.Errorf("scope: got %q, want %q", got, AudienceResourceManagement)
	}
}

func TestGetToken_CachedUntilRefreshMargin(t *testing.T) {
	svc, factory, clk := setupTokenService(t, "t1")
	account := resource.Account{ID: "A1", Tenants: []string{"t1"}}
	ctx := context.Background()

	if _, err := svc.GetToken(ctx, account, AudienceResourceManagement); err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	clk.Advance(50 * time.Minute)
	tokens, err := svc.GetToken(ctx, account, AudienceResourceManagement)
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if tokens["t1"].Token != "t1-token-1" {
		t.Errorf("Expected cached token, got %q", tokens["t1"].Token)
	}

	// Inside the 5 minute refresh margin
	clk.Advance(6 * time.Minute)
	tokens, err = svc.GetToken(ctx, account, AudienceResourceManagement)
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if tokens["t1"].Token != "t1-token-2" {
		t.Errorf("Expected refreshed token, got %q", tokens["t1"].Token)
	}
	if factory.created != 1 {
		t.Errorf("credentials created: got %d, want 1", factory.created)
	}
}

func TestGetToken_AudiencesCachedSeparately(t *testing.T) {
	svc, factory, _ := setupTokenService(t, "t1")
	account := resource.Account{ID: "A1", Tenants: []string{"t1"}}
	ctx := context.Background()

	if _, err := svc.GetToken(ctx, account, AudienceResourceManagement); err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if _, err := svc.GetToken(ctx, account, AudienceStorage); err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if calls := factory.creds["t1"].calls; calls != 2 {
		t.Errorf("token requests: got %d, want 2", calls)
	}
}

func TestGetToken_PartialTenantFailure(t *testing.T) {
	svc, factory, _ := setupTokenService(t, "t1", "t2")
	factory.creds["t2"].err = errors.New("AADSTS50076: MFA required")
	account := resource.Account{ID: "A1", Tenants: []string{"t1", "t2"}}

	tokens, err := svc.GetToken(context.Background(), account, AudienceResourceManagement)
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if _, ok := tokens["t2"]; ok {
		t.Error("Expected no token for failing tenant")
	}
	if _, ok := tokens["t1"]; !ok {
		t.Error("Expected token for healthy tenant")
	}
}

func TestGetToken_AllTenantsFail(t *testing.T) {
	svc, factory, _ := setupTokenService(t)
	factory.failures["t1"] = errors.New("no credential available")
	account := resource.Account{ID: "A1", Tenants: []string{"t1"}}

	if _, err := svc.GetToken(context.Background(), account, AudienceResourceManagement); err == nil {
		t.Error("Expected error when every tenant fails")
	}
}

func TestGetToken_NoTenants(t *testing.T) {
	svc, _, _ := setupTokenService(t)

	if _, err := svc.GetToken(context.Background(), resource.Account{ID: "A1"}, AudienceResourceManagement); err == nil {
		t.Error("Expected error for account without tenants")
	}
}

func TestCredentialFor(t *testing.T) {
	svc, _, _ := setupTokenService(t, "t1", "t2")
	scope := resource.Scope{
		Account:      resource.Account{ID: "A1", Tenants: []string{"t1", "t2"}},
		Subscription: resource.Subscription{ID: "S1", TenantID: "t2"},
		TenantID:     "t2",
	}

	cred, err := CredentialFor(context.Background(), svc, scope, AudienceResourceManagement)
	if err != nil {
		t.Fatalf("CredentialFor() error = %v", err)
	}
	at, err := cred.GetToken(context.Background(), policy.TokenRequestOptions{})
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if at.Token != "t2-token-1" {
		t.Errorf("token: got %q, want t2-token-1", at.Token)
	}
}

func TestCredentialFor_MissingTenant(t *testing.T) {
	svc, _, _ := setupTokenService(t, "t1")
	scope := resource.Scope{
		Account:  resource.Account{ID: "A1", Tenants: []string{"t1"}},
		TenantID: "other",
	}

	if _, err := CredentialFor(context.Background(), svc, scope, AudienceResourceManagement); err == nil {
		t.Error("Expected error when the scope tenant has no token")
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"generic error", errors.New("connection reset"), true},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"throttled", &azcore.ResponseError{StatusCode: http.StatusTooManyRequests}, true},
		{"request timeout", &azcore.ResponseError{StatusCode: http.StatusRequestTimeout}, true},
		{"forbidden", &azcore.ResponseError{StatusCode: http.StatusForbidden}, false},
		{"not found", &azcore.ResponseError{StatusCode: http.StatusNotFound}, false},
		{"server error", &azcore.ResponseError{StatusCode: http.StatusInternalServerError}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v): got %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestRetryPolicy_CallTimeout(t *testing.T) {
	p := testRetryPolicy()
	p.CallTimeout = 10 * time.Millisecond

	var deadlines int
	err := p.Do(context.Background(), func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			deadlines++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if deadlines != 1 {
		t.Errorf("Expected the attempt to carry a deadline")
	}
}

func TestRetryPolicy_GivesUp(t *testing.T) {
	attempts := 0
	err := testRetryPolicy().Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("still down")
	})
	if err == nil {
		t.Fatal("Expected error after retries are exhausted")
	}
	if attempts < 2 {
		t.Errorf("Expected several attempts, got %d", attempts)
	}
}
