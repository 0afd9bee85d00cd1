package databaseserver

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/zgpcy/azure-resource-explorer/internal/azure"
	"github.com/zgpcy/azure-resource-explorer/internal/cache"
	"github.com/zgpcy/azure-resource-explorer/internal/providers"
	"github.com/zgpcy/azure-resource-explorer/internal/resource"
)

// ResourceType names SQL servers in ids and context values
const ResourceType = "databaseServer"

// ContainerLabel is the label of the root container
const ContainerLabel = "SQL Servers"

// ProviderID is the id the provider is registered under
var ProviderID = providers.ProviderID(ResourceType)

// Lister lists the SQL servers of a subscription
type Lister interface {
	ListDatabaseServers(ctx context.Context, sub resource.Subscription, cred azcore.TokenCredential) ([]azure.DatabaseServer, error)
}

// Provider contributes the SQL server subtree
type Provider struct {
	producer *Producer
}

// Verify that Provider implements resource.ResourceProvider
var _ resource.ResourceProvider = (*Provider)(nil)

// New creates the SQL server provider
func New(tokens azure.TokenService, lister Lister, listing providers.Listing) *Provider {
	listing.Logger = listing.Logger.Component(ResourceType)
	return &Provider{producer: &Producer{tokens: tokens, lister: lister, listing: listing}}
}

// ProviderID returns the registry id
func (p *Provider) ProviderID() string {
	return ProviderID
}

// TreeDataProducer returns the SQL server producer
func (p *Provider) TreeDataProducer() resource.TreeDataProducer {
	return p.producer
}

// Producer materializes a "SQL Servers" container holding one leaf per server
type Producer struct {
	tokens  azure.TokenService
	lister  Lister
	listing providers.Listing
}

// Children returns the container for the root and the servers for the container.
// Servers have no children.
func (p *Producer) Children(ctx context.Context, parent *resource.Node) ([]resource.Node, error) {
	if parent == nil {
		return []resource.Node{providers.Container(ResourceType, ContainerLabel, "sql_server")}, nil
	}
	if !providers.IsContainer(ResourceType, parent) {
		return []resource.Node{}, nil
	}

	scope, err := providers.ParentScope(ResourceType, parent)
	if err != nil {
		return nil, err
	}
	cred, err := azure.CredentialFor(ctx, p.tokens, *scope, azure.AudienceResourceManagement)
	if err != nil {
		return nil, &resource.ListingError{ResourceType: ResourceType, Subscription: scope.Subscription.ID, Err: err}
	}

	key := cache.Key(ResourceType, scope.Subscription.ID)
	servers, err := providers.Cached(ctx, p.listing, key, func(ctx context.Context) ([]azure.DatabaseServer, error) {
		return p.lister.ListDatabaseServers(ctx, scope.Subscription, cred)
	})
	if err != nil {
		return nil, &resource.ListingError{ResourceType: ResourceType, Subscription: scope.Subscription.ID, Err: err}
	}

	nodes := make([]resource.Node, 0, len(servers))
	for _, s := range servers {
		nodes = append(nodes, resource.NewResource(scope, resource.DisplayItem{
			ID:           providers.ResourceID(ResourceType, s.Name),
			Label:        s.Name,
			Description:  s.Location,
			Icon:         "sql_server",
			Collapsible:  resource.CollapsibleNone,
			ContextValue: providers.ItemType(ResourceType),
		}, map[string]string{
			"id":       s.ID,
			"name":     s.Name,
			"location": s.Location,
			"fqdn":     s.FullyQualifiedDomainName,
			"version":  s.Version,
		}))
	}
	return nodes, nil
}

// TreeItem returns the node's display item. A nil node renders the container.
func (p *Producer) TreeItem(ctx context.Context, node *resource.Node) (resource.DisplayItem, error) {
	if node == nil {
		return providers.Container(ResourceType, ContainerLabel, "sql_server").Item, nil
	}
	return node.Item, nil
}
