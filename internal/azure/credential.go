package azure

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/zgpcy/azure-resource-explorer/internal/clock"
	"github.com/zgpcy/azure-resource-explorer/internal/logger"
	"github.com/zgpcy/azure-resource-explorer/internal/resource"
)

// Audience is the resource a token is requested for
type Audience string

// Token audiences used by the providers
const (
	AudienceResourceManagement Audience = "https://management.azure.com/.default"
	AudienceStorage            Audience = "https://storage.azure.com/.default"
)

// TokenRefreshMargin is how long before expiry a cached token is refreshed
const TokenRefreshMargin = 5 * time.Minute

// Token is an access token for one tenant
type Token struct {
	Token     string
	TokenType string
	ExpiresOn time.Time
}

// TokenService returns access tokens for an account, keyed by tenant id
type TokenService interface {
	GetToken(ctx context.Context, account resource.Account, audience Audience) (map[string]Token, error)
}

// CredentialFactory builds the credential used to sign in to one tenant
type CredentialFactory func(tenantID string) (azcore.TokenCredential, error)

// DefaultCredentialFactory uses the Azure default credential chain scoped to the tenant
func DefaultCredentialFactory(tenantID string) (azcore.TokenCredential, error) {
	cred, err := azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{
		TenantID: tenantID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential for tenant %s: %w", tenantID, err)
	}
	return cred, nil
}

type tokenKey struct {
	tenantID string
	audience Audience
}

// IdentityTokenService implements TokenService on top of azidentity.
// Tokens are cached per tenant and audience until shortly before expiry.
type IdentityTokenService struct {
	newCredential CredentialFactory
	clock         clock.Clock
	logger        *logger.Logger

	mu          sync.Mutex
	credentials map[string]azcore.TokenCredential
	tokens      map[tokenKey]Token
}

// Verify that IdentityTokenService implements TokenService
var _ TokenService = (*IdentityTokenService)(nil)

// NewIdentityTokenService creates a token service. A nil factory uses
// DefaultCredentialFactory and a nil clock the system time.
func NewIdentityTokenService(factory CredentialFactory, clk clock.Clock, log *logger.Logger) *IdentityTokenService {
	if factory == nil {
		factory = DefaultCredentialFactory
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &IdentityTokenService{
		newCredential: factory,
		clock:         clk,
		logger:        log.Component("credentials"),
		credentials:   make(map[string]azcore.TokenCredential),
		tokens:        make(map[tokenKey]Token),
	}
}

// GetToken returns a token for every tenant of the account.
// Tenants that fail are skipped; an error is returned only if all fail.
func (s *IdentityTokenService) GetToken(ctx context.Context, account resource.Account, audience Audience) (map[string]Token, error) {
	if len(account.Tenants) == 0 {
		return nil, fmt.Errorf("account %s has no tenants", account.ID)
	}

	var errs []error
	tokens := make(map[string]Token, len(account.Tenants))
	for _, tenantID := range account.Tenants {
		tok, err := s.tenantToken(ctx, tenantID, audience)
		if err != nil {
			s.logger.Warn("Failed to get token for tenant, continuing with others",
				"account_id", account.ID,
				"tenant_id", tenantID,
				"error", err)
			errs = append(errs, fmt.Errorf("tenant %s: %w", tenantID, err))
			continue
		}
		tokens[tenantID] = tok
	}

	if len(tokens) == 0 {
		return nil, fmt.Errorf("all %d tenants of account %s failed: %w", len(account.Tenants), account.ID, errors.Join(errs...))
	}
	return tokens, nil
}

func (s *IdentityTokenService) tenantToken(ctx context.Context, tenantID string, audience Audience) (Token, error) {
	key := tokenKey{tenantID: tenantID, audience: audience}

	s.mu.Lock()
	if tok, ok := s.tokens[key]; ok && s.clock.Now().Add(TokenRefreshMargin).Before(tok.ExpiresOn) {
		s.mu.Unlock()
		return tok, nil
	}
	cred, ok := s.credentials[tenantID]
	s.mu.Unlock()

	if !ok {
		var err error
		cred, err = s.newCredential(tenantID)
		if err != nil {
			return Token{}, err
		}
		s.mu.Lock()
		s.credentials[tenantID] = cred
		s.mu.Unlock()
	}

	at, err := cred.GetToken(ctx, policy.TokenRequestOptions{
		Scopes:   []string{string(audience)},
		TenantID: tenantID,
	})
	if err != nil {
		return Token{}, fmt.Errorf("token request failed: %w", err)
	}

	tok := Token{Token: at.Token, TokenType: "Bearer", ExpiresOn: at.ExpiresOn}
	s.mu.Lock()
	s.tokens[key] = tok
	s.mu.Unlock()
	return tok, nil
}

// StaticCredential is an azcore.TokenCredential that always returns the
// token it was built from
type StaticCredential struct {
	token Token
}

// NewStaticCredential wraps a token obtained from a TokenService
func NewStaticCredential(tok Token) *StaticCredential {
	return &StaticCredential{token: tok}
}

// GetToken implements azcore.TokenCredential
func (c *StaticCredential) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: c.token.Token, ExpiresOn: c.token.ExpiresOn}, nil
}

// CredentialFor gets the scope account's tokens and returns a credential
// for the scope's tenant
func CredentialFor(ctx context.Context, tokens TokenService, scope resource.Scope, audience Audience) (azcore.TokenCredential, error) {
	all, err := tokens.GetToken(ctx, scope.Account, audience)
	if err != nil {
		return nil, err
	}
	tok, ok := all[scope.TenantID]
	if !ok {
		return nil, fmt.Errorf("no token for tenant %s of account %s", scope.TenantID, scope.Account.ID)
	}
	return NewStaticCredential(tok), nil
}
