// Package resource defines the data model shared by the resource registry,
// the providers and the tree expansion.
//
// A ResourceProvider contributes one category of Azure resources (SQL
// servers, storage accounts, ...) to the explorer tree. Its TreeDataProducer
// returns Nodes on demand:
//
//	type TreeDataProducer interface {
//		Children(ctx context.Context, parent *Node) ([]Node, error)
//		TreeItem(ctx context.Context, node *Node) (DisplayItem, error)
//	}
//
// Nodes are a tagged variant:
//   - KindContainer: the grouping node a provider returns at root
//   - KindResource: a domain object, tagged with the Scope it was listed in
//   - KindPlaceholder: a terminal message node for empty and error states
//
// Nodes leave the registry wrapped in a ProviderNode so that later
// operations can be routed back to the producer that created them.
package resource
