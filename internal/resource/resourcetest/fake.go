// Package resourcetest provides in-memory resource providers for tests.
package resourcetest

import (
	"context"
	"sync"

	"github.com/zgpcy/azure-resource-explorer/internal/resource"
)

// Producer is a TreeDataProducer backed by fixed node lists.
// Root holds the children of the nil parent; ChildNodes is keyed by parent item id.
type Producer struct {
	mu         sync.Mutex
	Root       []resource.Node
	ChildNodes map[string][]resource.Node
	Err        error
	calls      int
	parents    []*resource.Node
}

// Children returns the configured nodes or Err
func (p *Producer) Children(ctx context.Context, parent *resource.Node) ([]resource.Node, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	p.parents = append(p.parents, parent)
	if p.Err != nil {
		return nil, p.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var src []resource.Node
	if parent == nil {
		src = p.Root
	} else {
		src = p.ChildNodes[parent.Item.ID]
	}
	out := make([]resource.Node, len(src))
	copy(out, src)
	return out, nil
}

// TreeItem returns the node's own display item
func (p *Producer) TreeItem(ctx context.Context, node *resource.Node) (resource.DisplayItem, error) {
	if node == nil {
		return resource.DisplayItem{}, nil
	}
	return node.Item, nil
}

// Calls returns how many times Children was called
func (p *Producer) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// LastParent returns the parent passed to the latest Children call
func (p *Producer) LastParent() *resource.Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.parents) == 0 {
		return nil
	}
	return p.parents[len(p.parents)-1]
}

// Provider is a ResourceProvider wrapping a Producer
type Provider struct {
	ID       string
	Producer resource.TreeDataProducer
}

// ProviderID returns ID
func (p *Provider) ProviderID() string { return p.ID }

// TreeDataProducer returns Producer
func (p *Provider) TreeDataProducer() resource.TreeDataProducer { return p.Producer }

// NewProvider creates a provider whose root children are nodes with the given ids
func NewProvider(id string, rootIDs ...string) (*Provider, *Producer) {
	prod := &Producer{}
	for _, rid := range rootIDs {
		prod.Root = append(prod.Root, resource.NewContainer(resource.DisplayItem{
			ID:          rid,
			Label:       rid,
			Collapsible: resource.CollapsibleCollapsed,
		}))
	}
	return &Provider{ID: id, Producer: prod}, prod
}
