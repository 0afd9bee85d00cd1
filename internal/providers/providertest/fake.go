// Package providertest holds fakes shared by the provider tests.
package providertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"github.com/zgpcy/azure-resource-explorer/internal/azure"
	"github.com/zgpcy/azure-resource-explorer/internal/resource"
)

// Tokens is an azure.TokenService that issues a fixed token per tenant
type Tokens struct {
	mu        sync.Mutex
	Err       error
	audiences []azure.Audience
}

var _ azure.TokenService = (*Tokens)(nil)

// GetToken returns "<tenant>-token" for every tenant of the account
func (t *Tokens) GetToken(ctx context.Context, account resource.Account, audience azure.Audience) (map[string]azure.Token, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.audiences = append(t.audiences, audience)
	if t.Err != nil {
		return nil, t.Err
	}
	tokens := make(map[string]azure.Token, len(account.Tenants))
	for _, tenant := range account.Tenants {
		tokens[tenant] = azure.Token{
			Token:     fmt.Sprintf("%s-token", tenant),
			TokenType: "Bearer",
			ExpiresOn: time.Now().Add(time.Hour),
		}
	}
	return tokens, nil
}

// Audiences returns the audiences requested so far
func (t *Tokens) Audiences() []azure.Audience {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]azure.Audience(nil), t.audiences...)
}

// Scope returns the scope of subscription S1 of account A1 in tenant T1
func Scope() *resource.Scope {
	return &resource.Scope{
		Account:      resource.Account{ID: "A1", Name: "account", Tenants: []string{"T1"}},
		Subscription: resource.Subscription{ID: "S1", Name: "prod", TenantID: "T1"},
		TenantID:     "T1",
	}
}

// Scoped returns a copy of node stamped with scope, as the registry does
// for root children
func Scoped(node resource.Node, scope *resource.Scope) *resource.Node {
	s := *scope
	node.Scope = &s
	return &node
}

// Listers serves fixed listings for every built-in resource type and counts
// the calls per type
type Listers struct {
	mu         sync.Mutex
	Servers    []azure.DatabaseServer
	Accounts   []azure.StorageAccount
	Containers map[string][]azure.BlobContainer
	Costs      []azure.ServiceCost
	calls      map[string]int
}

func (l *Listers) record(kind string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.calls == nil {
		l.calls = map[string]int{}
	}
	l.calls[kind]++
}

// Calls returns how often kind was listed: "servers", "accounts",
// "containers" or "costs"
func (l *Listers) Calls(kind string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[kind]
}

// ListDatabaseServers returns Servers
func (l *Listers) ListDatabaseServers(ctx context.Context, sub resource.Subscription, cred azcore.TokenCredential) ([]azure.DatabaseServer, error) {
	l.record("servers")
	return l.Servers, nil
}

// ListStorageAccounts returns Accounts
func (l *Listers) ListStorageAccounts(ctx context.Context, sub resource.Subscription, cred azcore.TokenCredential) ([]azure.StorageAccount, error) {
	l.record("accounts")
	return l.Accounts, nil
}

// ListBlobContainers returns the containers registered for blobEndpoint
func (l *Listers) ListBlobContainers(ctx context.Context, blobEndpoint string, cred azcore.TokenCredential) ([]azure.BlobContainer, error) {
	l.record("containers")
	return l.Containers[blobEndpoint], nil
}

// ListServiceCosts returns Costs
func (l *Listers) ListServiceCosts(ctx context.Context, sub resource.Subscription, cred azcore.TokenCredential) ([]azure.ServiceCost, error) {
	l.record("costs")
	return l.Costs, nil
}
