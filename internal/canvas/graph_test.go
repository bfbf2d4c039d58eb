package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/journey/pkg/types"
)

func node(id string) *types.Node {
	return &types.Node{
		ID:    id,
		Type:  types.NodeTypeSMS,
		Size:  types.Size{Width: 100, Height: 40},
		Ports: []types.Port{{ID: "in", Group: types.PortGroupIn}, {ID: "out1", Group: types.PortGroupOut}},
	}
}

func edge(id, from, to string) *types.Edge {
	return &types.Edge{
		ID:     id,
		Source: types.BoundEndpoint(from, "out1"),
		Target: types.BoundEndpoint(to, "in"),
		Data:   types.EdgeData{Type: types.EdgeTypeConnection, SourceNodeID: from, TargetNodeID: to},
	}
}

func TestNodeCRUD(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(node("a")))
	require.NoError(t, g.AddNode(node("b")))
	assert.ErrorIs(t, g.AddNode(node("a")), types.ErrDuplicateID)

	nodes := g.GetNodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, "a", nodes[0].ID)

	n, ok := g.GetNode("b")
	require.True(t, ok)
	assert.Equal(t, "b", n.ID)

	assert.ErrorIs(t, g.RemoveNode("zzz"), types.ErrNodeNotFound)
}

func TestEdgeQueries(t *testing.T) {
	g := New()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, g.AddNode(node(id)))
	}
	require.NoError(t, g.AddEdge(edge("e1", "a", "b")))
	require.NoError(t, g.AddEdge(edge("e2", "a", "c")))
	require.NoError(t, g.AddEdge(edge("e3", "b", "c")))
	assert.ErrorIs(t, g.AddEdge(edge("e1", "a", "b")), types.ErrDuplicateID)
	assert.ErrorIs(t, g.AddEdge(edge("e4", "a", "missing")), types.ErrNodeNotFound)

	assert.Len(t, g.GetOutgoingEdges("a"), 2)
	assert.Len(t, g.GetIncomingEdges("c"), 2)
	assert.Len(t, g.GetEdges(), 3)

	require.NoError(t, g.RemoveEdge("e2"))
	assert.ErrorIs(t, g.RemoveEdge("e2"), types.ErrEdgeNotFound)
	assert.Len(t, g.GetOutgoingEdges("a"), 1)
}

func TestRemoveNodeCascadesAndReportsIncoming(t *testing.T) {
	g := New()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, g.AddNode(node(id)))
	}
	require.NoError(t, g.AddEdge(edge("ab", "a", "b")))
	require.NoError(t, g.AddEdge(edge("bc", "b", "c")))

	var removedEdges []string
	var ev types.NodeEvent
	g.On(types.EventEdgeRemoved, func(p any) { removedEdges = append(removedEdges, p.(types.EdgeEvent).Edge.ID) })
	g.On(types.EventNodeRemoved, func(p any) { ev = p.(types.NodeEvent) })

	require.NoError(t, g.RemoveNode("b"))
	assert.ElementsMatch(t, []string{"ab", "bc"}, removedEdges)
	require.Len(t, ev.Incoming, 1)
	assert.Equal(t, "ab", ev.Incoming[0].ID)
	assert.Empty(t, g.GetEdges())
}

func TestPorts(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(node("a")))
	require.NoError(t, g.AddPort("a", types.Port{ID: "out2", Group: types.PortGroupOut}))
	assert.ErrorIs(t, g.AddPort("a", types.Port{ID: "out2", Group: types.PortGroupOut}), types.ErrDuplicateID)
	assert.Len(t, g.GetPorts("a"), 3)

	require.NoError(t, g.RemovePort("a", "out1"))
	assert.ErrorIs(t, g.RemovePort("a", "out1"), types.ErrPortNotFound)
	assert.ErrorIs(t, g.AddPort("zzz", types.Port{ID: "x"}), types.ErrNodeNotFound)
	assert.Len(t, g.GetPorts("a"), 2)
}

func TestSetNodePositionFiresMoved(t *testing.T) {
	g := New()
	require.NoError(t, g.AddNode(node("a")))
	var got types.NodeMovedEvent
	g.On(types.EventNodeMoved, func(p any) { got = p.(types.NodeMovedEvent) })

	require.NoError(t, g.SetNodePosition("a", types.Point{X: 10, Y: 20}))
	assert.Equal(t, types.Point{X: 10, Y: 20}, got.To)
	assert.Equal(t, types.Point{}, got.From)
}

func TestBusUnsubscribe(t *testing.T) {
	b := NewBus()
	calls := 0
	off := b.On("x", func(any) { calls++ })
	b.Trigger("x", nil)
	off()
	b.Trigger("x", nil)
	assert.Equal(t, 1, calls)
}
