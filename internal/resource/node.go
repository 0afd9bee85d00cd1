package resource

// Account is an Azure account that can reach one or more tenants
type Account struct {
	ID      string   `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	Tenants []string `json:"tenants,omitempty" yaml:"tenants"`
}

// Subscription is an Azure subscription owned by a tenant
type Subscription struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	TenantID string `json:"tenantId" yaml:"tenant_id"`
}

// Scope identifies the account, subscription and tenant a node belongs to
type Scope struct {
	Account      Account      `json:"account"`
	Subscription Subscription `json:"subscription"`
	TenantID     string       `json:"tenantId"`
}

// NodeID returns the id of the subscription node for this scope.
// Resource ids under the subscription are prefixed with it.
func (s Scope) NodeID() string {
	return s.Account.ID + "." + s.Subscription.ID
}

// CollapsibleState describes whether a tree item can be expanded
type CollapsibleState int

const (
	CollapsibleNone CollapsibleState = iota
	CollapsibleCollapsed
	CollapsibleExpanded
)

// DisplayItem is the render-facing projection of a node
type DisplayItem struct {
	ID           string           `json:"id"`
	Label        string           `json:"label"`
	Description  string           `json:"description,omitempty"`
	Icon         string           `json:"icon,omitempty"`
	Collapsible  CollapsibleState `json:"collapsible"`
	ContextValue string           `json:"contextValue,omitempty"`
}

// NodeKind tags the variant a Node holds
type NodeKind string

const (
	// KindContainer groups the resources of one provider
	KindContainer NodeKind = "container"
	// KindResource is a domain object such as a SQL server
	KindResource NodeKind = "resource"
	// KindPlaceholder carries an empty-state or error message. It is never expandable.
	KindPlaceholder NodeKind = "placeholder"
)

// Node is one entry of the resource tree.
//
// Scope and Properties are only set for containers and resources; Message is
// only set for placeholders. Use the constructors to build nodes.
type Node struct {
	Kind       NodeKind          `json:"kind"`
	Scope      *Scope            `json:"scope,omitempty"`
	Item       DisplayItem       `json:"item"`
	Properties map[string]string `json:"properties,omitempty"`
	Message    string            `json:"message,omitempty"`
}

// NewContainer creates a container node. Root containers have no scope
// until the registry stamps them.
func NewContainer(item DisplayItem) Node {
	return Node{Kind: KindContainer, Item: item}
}

// NewResource creates a resource node scoped to the given subscription context
func NewResource(scope *Scope, item DisplayItem, props map[string]string) Node {
	var s *Scope
	if scope != nil {
		c := *scope
		s = &c
	}
	return Node{Kind: KindResource, Scope: s, Item: item, Properties: props}
}

// NewPlaceholder creates a terminal message node
func NewPlaceholder(id, message string) Node {
	return Node{
		Kind:    KindPlaceholder,
		Message: message,
		Item: DisplayItem{
			ID:           id,
			Label:        message,
			Collapsible:  CollapsibleNone,
			ContextValue: ContextMessage,
		},
	}
}

// IsPlaceholder reports whether the node is a message node
func (n Node) IsPlaceholder() bool {
	return n.Kind == KindPlaceholder
}

// Expandable reports whether the presentation layer may request children
func (n Node) Expandable() bool {
	return !n.IsPlaceholder() && n.Item.Collapsible != CollapsibleNone
}

// Property returns a resource property or "" when unset
func (n Node) Property(key string) string {
	if n.Properties == nil {
		return ""
	}
	return n.Properties[key]
}

// ProviderNode is a node tagged with the id of the provider that produced it.
// Placeholders have an empty ProviderID.
type ProviderNode struct {
	ProviderID string `json:"providerId,omitempty"`
	Node       Node   `json:"node"`
}

// Context values used by the presentation layer to pick menus and icons
const (
	ContextMessage      = "azure.resource.itemType.message"
	ContextSubscription = "azure.resource.itemType.subscription"
)
