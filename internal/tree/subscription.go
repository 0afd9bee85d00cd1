package tree

import (
	"context"
	"sync"

	"github.com/zgpcy/azure-resource-explorer/internal/resource"
)

// State is the expansion state of a subscription node.
// Populated, Empty and Errored are terminal until Expand is called again.
type State string

const (
	StateCollapsed State = "collapsed"
	StateExpanding State = "expanding"
	StatePopulated State = "populated"
	StateEmpty     State = "empty"
	StateErrored   State = "errored"
)

// Terminal reports whether s is a render-terminal state
func (s State) Terminal() bool {
	return s == StatePopulated || s == StateEmpty || s == StateErrored
}

// SubscriptionNode tracks one subscription in the tree and caches the
// result of its last expansion
type SubscriptionNode struct {
	scope    resource.Scope
	expander *Expander

	mu    sync.RWMutex
	state State
	last  Expansion
}

// NewSubscriptionNode creates a collapsed subscription node
func NewSubscriptionNode(scope resource.Scope, expander *Expander) *SubscriptionNode {
	return &SubscriptionNode{
		scope:    scope,
		expander: expander,
		state:    StateCollapsed,
	}
}

// ID returns the subscription's unique node id
func (n *SubscriptionNode) ID() string {
	return n.scope.NodeID()
}

// Scope returns the subscription context
func (n *SubscriptionNode) Scope() resource.Scope {
	return n.scope
}

// TreeItem returns the display item of the subscription itself
func (n *SubscriptionNode) TreeItem() resource.DisplayItem {
	return resource.DisplayItem{
		ID:           n.ID(),
		Label:        n.scope.Subscription.Name,
		Icon:         "subscription",
		Collapsible:  resource.CollapsibleCollapsed,
		ContextValue: resource.ContextSubscription,
	}
}

// State returns the current expansion state
func (n *SubscriptionNode) State() State {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// Children returns the result of the last expansion and whether there was one
func (n *SubscriptionNode) Children() (Expansion, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.last, n.state.Terminal()
}

// Expand (re-)expands the subscription. The node is Expanding while the
// fan-out runs and ends in one of the terminal states.
func (n *SubscriptionNode) Expand(ctx context.Context) Expansion {
	n.mu.Lock()
	n.state = StateExpanding
	n.mu.Unlock()

	exp := n.expander.ExpandSubscription(ctx, n.scope)

	n.mu.Lock()
	n.state = exp.State
	n.last = exp
	n.mu.Unlock()
	return exp
}
