package resource

import (
	"context"
)

// TreeDataProducer materializes the subtree of one resource provider
type TreeDataProducer interface {
	// Children returns the children of parent. A nil parent asks for the
	// provider's top-level container nodes.
	Children(ctx context.Context, parent *Node) ([]Node, error)

	// TreeItem projects a node to its display item without mutating it
	TreeItem(ctx context.Context, node *Node) (DisplayItem, error)
}

// ResourceProvider is a pluggable source of one category of resources
type ResourceProvider interface {
	// ProviderID returns the unique id the provider is registered under
	ProviderID() string

	// TreeDataProducer returns the producer that materializes the provider's nodes
	TreeDataProducer() TreeDataProducer
}
