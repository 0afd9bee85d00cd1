package storageaccount

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/zgpcy/azure-resource-explorer/internal/azure"
	"github.com/zgpcy/azure-resource-explorer/internal/cache"
	"github.com/zgpcy/azure-resource-explorer/internal/providers"
	"github.com/zgpcy/azure-resource-explorer/internal/resource"
)

const (
	// ResourceType names storage accounts in ids and context values
	ResourceType = "storageAccount"

	// ContainerResourceType names blob containers in ids and context values
	ContainerResourceType = "blobContainer"

	// ContainerLabel is the label of the root container
	ContainerLabel = "Storage Accounts"
)

// ProviderID is the id the provider is registered under
var ProviderID = providers.ProviderID(ResourceType)

// Lister lists storage accounts and their blob containers
type Lister interface {
	ListStorageAccounts(ctx context.Context, sub resource.Subscription, cred azcore.TokenCredential) ([]azure.StorageAccount, error)
	ListBlobContainers(ctx context.Context, blobEndpoint string, cred azcore.TokenCredential) ([]azure.BlobContainer, error)
}

// Provider contributes the storage account subtree
type Provider struct {
	producer *Producer
}

// Verify that Provider implements resource.ResourceProvider
var _ resource.ResourceProvider = (*Provider)(nil)

// New creates the storage account provider
func New(tokens azure.TokenService, lister Lister, listing providers.Listing) *Provider {
	listing.Logger = listing.Logger.Component(ResourceType)
	return &Provider{producer: &Producer{tokens: tokens, lister: lister, listing: listing}}
}

// ProviderID returns the registry id
func (p *Provider) ProviderID() string {
	return ProviderID
}

// TreeDataProducer returns the storage producer
func (p *Provider) TreeDataProducer() resource.TreeDataProducer {
	return p.producer
}

// Producer materializes three levels: the container, one expandable node per
// storage account, and one leaf per blob container
type Producer struct {
	tokens  azure.TokenService
	lister  Lister
	listing providers.Listing
}

// Children dispatches on the parent's context value
func (p *Producer) Children(ctx context.Context, parent *resource.Node) ([]resource.Node, error) {
	switch {
	case parent == nil:
		return []resource.Node{providers.Container(ResourceType, ContainerLabel, "storage_account")}, nil
	case providers.IsContainer(ResourceType, parent):
		return p.accounts(ctx, parent)
	case parent.Kind == resource.KindResource && parent.Item.ContextValue == providers.ItemType(ResourceType):
		return p.blobContainers(ctx, parent)
	default:
		return []resource.Node{}, nil
	}
}

func (p *Producer) accounts(ctx context.Context, parent *resource.Node) ([]resource.Node, error) {
	scope, err := providers.ParentScope(ResourceType, parent)
	if err != nil {
		return nil, err
	}
	cred, err := azure.CredentialFor(ctx, p.tokens, *scope, azure.AudienceResourceManagement)
	if err != nil {
		return nil, &resource.ListingError{ResourceType: ResourceType, Subscription: scope.Subscription.ID, Err: err}
	}

	key := cache.Key(ResourceType, scope.Subscription.ID)
	accounts, err := providers.Cached(ctx, p.listing, key, func(ctx context.Context) ([]azure.StorageAccount, error) {
		return p.lister.ListStorageAccounts(ctx, scope.Subscription, cred)
	})
	if err != nil {
		return nil, &resource.ListingError{ResourceType: ResourceType, Subscription: scope.Subscription.ID, Err: err}
	}

	nodes := make([]resource.Node, 0, len(accounts))
	for _, a := range accounts {
		collapsible := resource.CollapsibleCollapsed
		if a.BlobEndpoint == "" {
			collapsible = resource.CollapsibleNone
		}
		nodes = append(nodes, resource.NewResource(scope, resource.DisplayItem{
			ID:           providers.ResourceID(ResourceType, a.Name),
			Label:        a.Name,
			Description:  a.Kind,
			Icon:         "storage_account",
			Collapsible:  collapsible,
			ContextValue: providers.ItemType(ResourceType),
		}, map[string]string{
			"id":           a.ID,
			"name":         a.Name,
			"location":     a.Location,
			"kind":         a.Kind,
			"blobEndpoint": a.BlobEndpoint,
		}))
	}
	return nodes, nil
}

func (p *Producer) blobContainers(ctx context.Context, parent *resource.Node) ([]resource.Node, error) {
	scope, err := providers.ParentScope(ContainerResourceType, parent)
	if err != nil {
		return nil, err
	}
	account := parent.Property("name")
	endpoint := parent.Property("blobEndpoint")
	if endpoint == "" {
		return []resource.Node{}, nil
	}

	cred, err := azure.CredentialFor(ctx, p.tokens, *scope, azure.AudienceStorage)
	if err != nil {
		return nil, &resource.ListingError{ResourceType: ContainerResourceType, Subscription: scope.Subscription.ID, Err: err}
	}

	key := cache.Key(ContainerResourceType, scope.Subscription.ID, account)
	containers, err := providers.Cached(ctx, p.listing, key, func(ctx context.Context) ([]azure.BlobContainer, error) {
		return p.lister.ListBlobContainers(ctx, endpoint, cred)
	})
	if err != nil {
		return nil, &resource.ListingError{ResourceType: ContainerResourceType, Subscription: scope.Subscription.ID, Err: err}
	}

	nodes := make([]resource.Node, 0, len(containers))
	for _, c := range containers {
		nodes = append(nodes, resource.NewResource(scope, resource.DisplayItem{
			ID:           providers.ResourceID(ContainerResourceType, account, c.Name),
			Label:        c.Name,
			Description:  c.LastModified,
			Icon:         "blob_container",
			Collapsible:  resource.CollapsibleNone,
			ContextValue: providers.ItemType(ContainerResourceType),
		}, map[string]string{
			"name":         c.Name,
			"account":      account,
			"lastModified": c.LastModified,
		}))
	}
	return nodes, nil
}

// TreeItem returns the node's display item. A nil node renders the container.
func (p *Producer) TreeItem(ctx context.Context, node *resource.Node) (resource.DisplayItem, error) {
	if node == nil {
		return providers.Container(ResourceType, ContainerLabel, "storage_account").Item, nil
	}
	return node.Item, nil
}
