package tree

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zgpcy/azure-resource-explorer/internal/logger"
	"github.com/zgpcy/azure-resource-explorer/internal/resource"
	"github.com/zgpcy/azure-resource-explorer/internal/resource/resourcetest"
)

// blockingProducer holds Children until released
type blockingProducer struct {
	*resourcetest.Producer
	entered chan struct{}
	release chan struct{}
}

func (b *blockingProducer) Children(ctx context.Context, parent *resource.Node) ([]resource.Node, error) {
	close(b.entered)
	<-b.release
	return b.Producer.Children(ctx, parent)
}

func TestSubscriptionNode_StateMachine(t *testing.T) {
	db, prod := resourcetest.NewProvider("db", "server_a")
	blocking := &blockingProducer{Producer: prod, entered: make(chan struct{}), release: make(chan struct{})}
	db.Producer = blocking
	e := NewExpander(newRegistry(t, db), logger.Discard())

	node := NewSubscriptionNode(testScope, e)
	assert.Equal(t, StateCollapsed, node.State())
	_, ok := node.Children()
	assert.False(t, ok)

	done := make(chan Expansion)
	go func() { done <- node.Expand(context.Background()) }()

	<-blocking.entered
	assert.Equal(t, StateExpanding, node.State())
	close(blocking.release)

	select {
	case exp := <-done:
		assert.Equal(t, StatePopulated, exp.State)
	case <-time.After(time.Second):
		t.Fatal("Expand did not return")
	}

	assert.Equal(t, StatePopulated, node.State())
	children, ok := node.Children()
	require.True(t, ok)
	assert.Equal(t, []string{"A1.S1.server_a"}, ids(children))
}

func TestSubscriptionNode_ReExpandAfterError(t *testing.T) {
	db, prod := resourcetest.NewProvider("db", "server_a")
	e := NewExpander(newRegistry(t, db), logger.Discard())
	node := NewSubscriptionNode(testScope, e)

	prod.Err = errors.New("network down")
	node.Expand(context.Background())
	assert.Equal(t, StateErrored, node.State())

	prod.Err = nil
	node.Expand(context.Background())
	assert.Equal(t, StatePopulated, node.State())
}

func TestSubscriptionNode_TreeItem(t *testing.T) {
	node := NewSubscriptionNode(testScope, nil)

	item := node.TreeItem()
	assert.Equal(t, "A1.S1", item.ID)
	assert.Equal(t, "Production", item.Label)
	assert.Equal(t, resource.CollapsibleCollapsed, item.Collapsible)
	assert.Equal(t, resource.ContextSubscription, item.ContextValue)
}

func TestState_Terminal(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateCollapsed, false},
		{StateExpanding, false},
		{StatePopulated, true},
		{StateEmpty, true},
		{StateErrored, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Terminal())
		})
	}
}
