package cost

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/zgpcy/azure-resource-explorer/internal/azure"
	"github.com/zgpcy/azure-resource-explorer/internal/cache"
	"github.com/zgpcy/azure-resource-explorer/internal/providers"
	"github.com/zgpcy/azure-resource-explorer/internal/resource"
)

const (
	// ResourceType names service costs in ids and context values
	ResourceType = "serviceCost"

	// ContainerLabel is the label of the root container
	ContainerLabel = "Cost by Service"
)

// ProviderID is the id the provider is registered under
var ProviderID = providers.ProviderID("cost")

// Lister lists per-service costs of a subscription
type Lister interface {
	ListServiceCosts(ctx context.Context, sub resource.Subscription, cred azcore.TokenCredential) ([]azure.ServiceCost, error)
}

// Provider contributes the cost-by-service subtree
type Provider struct {
	producer *Producer
}

// Verify that Provider implements resource.ResourceProvider
var _ resource.ResourceProvider = (*Provider)(nil)

// New creates the cost provider
func New(tokens azure.TokenService, lister Lister, listing providers.Listing) *Provider {
	listing.Logger = listing.Logger.Component("cost")
	return &Provider{producer: &Producer{tokens: tokens, lister: lister, listing: listing}}
}

// ProviderID returns the registry id
func (p *Provider) ProviderID() string {
	return ProviderID
}

// TreeDataProducer returns the cost producer
func (p *Provider) TreeDataProducer() resource.TreeDataProducer {
	return p.producer
}

// Producer materializes a container holding one leaf per billed service
type Producer struct {
	tokens  azure.TokenService
	lister  Lister
	listing providers.Listing
}

func container() resource.Node {
	return providers.Container(ResourceType, ContainerLabel, "cost")
}

// Children returns the container for the root and the services for the container
func (p *Producer) Children(ctx context.Context, parent *resource.Node) ([]resource.Node, error) {
	if parent == nil {
		return []resource.Node{container()}, nil
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
	costs, err := providers.Cached(ctx, p.listing, key, func(ctx context.Context) ([]azure.ServiceCost, error) {
		return p.lister.ListServiceCosts(ctx, scope.Subscription, cred)
	})
	if err != nil {
		return nil, &resource.ListingError{ResourceType: ResourceType, Subscription: scope.Subscription.ID, Err: err}
	}

	nodes := make([]resource.Node, 0, len(costs))
	for _, c := range costs {
		nodes = append(nodes, resource.NewResource(scope, resource.DisplayItem{
			ID:           providers.ResourceID(ResourceType, c.Service),
			Label:        fmt.Sprintf("%s: %.2f %s", c.Service, c.Cost, c.Currency),
			Description:  fmt.Sprintf("%d days", c.Days),
			Icon:         "cost",
			Collapsible:  resource.CollapsibleNone,
			ContextValue: providers.ItemType(ResourceType),
		}, map[string]string{
			"service":  c.Service,
			"cost":     strconv.FormatFloat(c.Cost, 'f', 2, 64),
			"currency": c.Currency,
			"days":     strconv.Itoa(c.Days),
		}))
	}
	return nodes, nil
}

// TreeItem returns the node's display item. A nil node renders the container.
func (p *Producer) TreeItem(ctx context.Context, node *resource.Node) (resource.DisplayItem, error) {
	if node == nil {
		return container().Item, nil
	}
	return node.Item, nil
}
