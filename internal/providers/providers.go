package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/zgpcy/azure-resource-explorer/internal/cache"
	"github.com/zgpcy/azure-resource-explorer/internal/logger"
	"github.com/zgpcy/azure-resource-explorer/internal/resource"
)

// IDPrefix prefixes the provider id of every built-in resource type
const IDPrefix = "azure.resource.providers."

// ProviderID returns the registry id of a built-in resource type
func ProviderID(resourceType string) string {
	return IDPrefix + resourceType
}

// ContainerID returns the fixed id of a resource type's root container
func ContainerID(resourceType string) string {
	return IDPrefix + resourceType + ".treeDataProvider." + resourceType + "Container"
}

// ItemType returns the context value of a resource type's nodes
func ItemType(resourceType string) string {
	return "azure.resource.itemType." + resourceType
}

// ResourceID returns the id of one resource node: <type>_<name>
func ResourceID(resourceType string, names ...string) string {
	id := resourceType
	for _, n := range names {
		id += "_" + n
	}
	return id
}

// Container builds the root container node of a resource type
func Container(resourceType, label, icon string) resource.Node {
	return resource.NewContainer(resource.DisplayItem{
		ID:           ContainerID(resourceType),
		Label:        label,
		Icon:         icon,
		Collapsible:  resource.CollapsibleCollapsed,
		ContextValue: ContainerContext(resourceType),
	})
}

// ContainerContext returns the context value of a resource type's container
func ContainerContext(resourceType string) string {
	return ItemType(resourceType) + "Container"
}

// IsContainer reports whether node is the container of resourceType.
// Ids are not compared: expansion prefixes them with the subscription id.
func IsContainer(resourceType string, node *resource.Node) bool {
	return node != nil && node.Kind == resource.KindContainer && node.Item.ContextValue == ContainerContext(resourceType)
}

// ParentScope returns the scope carried by parent, or a ListingError when
// the node was never scoped to a subscription
func ParentScope(resourceType string, parent *resource.Node) (*resource.Scope, error) {
	if parent == nil || parent.Scope == nil {
		return nil, &resource.ListingError{
			ResourceType: resourceType,
			Err:          fmt.Errorf("node has no subscription scope"),
		}
	}
	return parent.Scope, nil
}

// Listing reads remote listings through a cache
type Listing struct {
	Cache  cache.Cache
	TTL    time.Duration
	Logger *logger.Logger
}

// Cached returns the value stored under key, calling list and storing its
// result on a miss. Cache failures are logged and never fail the listing.
func Cached[T any](ctx context.Context, l Listing, key string, list func(ctx context.Context) (T, error)) (T, error) {
	var v T
	if l.Cache != nil {
		hit, err := cache.GetJSON(ctx, l.Cache, key, &v)
		if err != nil {
			l.Logger.Warn("Cache read failed, listing from Azure",
				"key", key,
				"error", err)
		}
		if hit {
			return v, nil
		}
	}

	v, err := list(ctx)
	if err != nil {
		return v, err
	}

	if l.Cache != nil && l.TTL > 0 {
		if err := cache.SetJSON(ctx, l.Cache, key, v, l.TTL); err != nil {
			l.Logger.Warn("Cache write failed",
				"key", key,
				"error", err)
		}
	}
	return v, nil
}
