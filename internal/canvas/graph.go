// Package canvas is an in-memory journey graph implementing types.Canvas.
// It backs the CLI and the tests; a browser host would supply its own
// Canvas over the diagramming library.
package canvas

import (
	"slices"
	"sync"

	"github.com/mesh-intelligence/journey/pkg/types"
)

// Graph stores nodes and edges in insertion order and publishes structural
// changes on its event bus.
type Graph struct {
	*Bus

	mu        sync.RWMutex
	nodes     map[string]*types.Node
	nodeOrder []string
	edges     map[string]*types.Edge
	edgeOrder []string
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		Bus:   NewBus(),
		nodes: make(map[string]*types.Node),
		edges: make(map[string]*types.Edge),
	}
}

// AddNode inserts node.
func (g *Graph) AddNode(node *types.Node) error {
	g.mu.Lock()
	if _, ok := g.nodes[node.ID]; ok {
		g.mu.Unlock()
		return types.ErrDuplicateID
	}
	g.nodes[node.ID] = node
	g.nodeOrder = append(g.nodeOrder, node.ID)
	g.mu.Unlock()

	g.Trigger(types.EventNodeAdded, types.NodeEvent{Node: node})
	return nil
}

// RemoveNode deletes the node and its attached edges. An edge:removed
// event fires for each attached edge before node:removed.
func (g *Graph) RemoveNode(id string) error {
	g.mu.Lock()
	node, ok := g.nodes[id]
	if !ok {
		g.mu.Unlock()
		return types.ErrNodeNotFound
	}
	var removed, incoming []*types.Edge
	for _, eid := range g.edgeOrder {
		e := g.edges[eid]
		if e.Source.CellID == id || e.Target.CellID == id {
			removed = append(removed, e)
			if e.Target.CellID == id && e.Source.CellID != id {
				incoming = append(incoming, e)
			}
		}
	}
	for _, e := range removed {
		g.deleteEdgeLocked(e.ID)
	}
	delete(g.nodes, id)
	g.nodeOrder = slices.DeleteFunc(g.nodeOrder, func(s string) bool { return s == id })
	g.mu.Unlock()

	for _, e := range removed {
		g.Trigger(types.EventEdgeRemoved, types.EdgeEvent{Edge: e})
	}
	g.Trigger(types.EventNodeRemoved, types.NodeEvent{Node: node, Incoming: incoming})
	return nil
}

// GetNode returns the node with id.
func (g *Graph) GetNode(id string) (*types.Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// GetNodes returns every node in insertion order.
func (g *Graph) GetNodes() []*types.Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*types.Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.nodes[id])
	}
	return out
}

// AddEdge inserts edge.
func (g *Graph) AddEdge(edge *types.Edge) error {
	g.mu.Lock()
	if _, ok := g.edges[edge.ID]; ok {
		g.mu.Unlock()
		return types.ErrDuplicateID
	}
	if _, ok := g.nodes[edge.Source.CellID]; !ok {
		g.mu.Unlock()
		return types.ErrNodeNotFound
	}
	if t := edge.Target.CellID; t != "" {
		if _, ok := g.nodes[t]; !ok {
			g.mu.Unlock()
			return types.ErrNodeNotFound
		}
	}
	g.edges[edge.ID] = edge
	g.edgeOrder = append(g.edgeOrder, edge.ID)
	g.mu.Unlock()

	g.Trigger(types.EventEdgeAdded, types.EdgeEvent{Edge: edge})
	return nil
}

// RemoveEdge deletes the edge with id.
func (g *Graph) RemoveEdge(id string) error {
	g.mu.Lock()
	e, ok := g.edges[id]
	if !ok {
		g.mu.Unlock()
		return types.ErrEdgeNotFound
	}
	g.deleteEdgeLocked(id)
	g.mu.Unlock()

	g.Trigger(types.EventEdgeRemoved, types.EdgeEvent{Edge: e})
	return nil
}

func (g *Graph) deleteEdgeLocked(id string) {
	delete(g.edges, id)
	g.edgeOrder = slices.DeleteFunc(g.edgeOrder, func(s string) bool { return s == id })
}

// GetEdge returns the edge with id.
func (g *Graph) GetEdge(id string) (*types.Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.edges[id]
	return e, ok
}

// GetEdges returns every edge in insertion order.
func (g *Graph) GetEdges() []*types.Edge {
	return g.filterEdges(func(*types.Edge) bool { return true })
}

// GetOutgoingEdges returns the edges whose source is nodeID.
func (g *Graph) GetOutgoingEdges(nodeID string) []*types.Edge {
	return g.filterEdges(func(e *types.Edge) bool { return e.Source.CellID == nodeID })
}

// GetIncomingEdges returns the edges whose target is nodeID.
func (g *Graph) GetIncomingEdges(nodeID string) []*types.Edge {
	return g.filterEdges(func(e *types.Edge) bool { return e.Target.CellID == nodeID })
}

func (g *Graph) filterEdges(keep func(*types.Edge) bool) []*types.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*types.Edge
	for _, id := range g.edgeOrder {
		if e := g.edges[id]; keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// AddPort appends port to the node.
func (g *Graph) AddPort(nodeID string, port types.Port) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[nodeID]
	if !ok {
		return types.ErrNodeNotFound
	}
	if _, exists := n.Port(port.ID); exists {
		return types.ErrDuplicateID
	}
	n.Ports = append(n.Ports, port)
	return nil
}

// RemovePort deletes a port from the node.
func (g *Graph) RemovePort(nodeID, portID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.nodes[nodeID]
	if !ok {
		return types.ErrNodeNotFound
	}
	i := slices.IndexFunc(n.Ports, func(p types.Port) bool { return p.ID == portID })
	if i < 0 {
		return types.ErrPortNotFound
	}
	n.Ports = slices.Delete(n.Ports, i, i+1)
	return nil
}

// GetPorts returns a copy of the node's ports.
func (g *Graph) GetPorts(nodeID string) []types.Port {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if n, ok := g.nodes[nodeID]; ok {
		return slices.Clone(n.Ports)
	}
	return nil
}

// SetNodePosition moves a node and fires node:moved.
func (g *Graph) SetNodePosition(id string, p types.Point) error {
	g.mu.Lock()
	n, ok := g.nodes[id]
	if !ok {
		g.mu.Unlock()
		return types.ErrNodeNotFound
	}
	from := n.Position
	n.Position = p
	g.mu.Unlock()

	g.Trigger(types.EventNodeMoved, types.NodeMovedEvent{Node: n, From: from, To: p})
	return nil
}

// SetEdgeTarget rebinds an edge's target.
func (g *Graph) SetEdgeTarget(id string, target types.Endpoint) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.edges[id]
	if !ok {
		return types.ErrEdgeNotFound
	}
	e.Target = target
	return nil
}

// SetEdgeStyle replaces an edge's style.
func (g *Graph) SetEdgeStyle(id string, style types.EdgeStyle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.edges[id]
	if !ok {
		return types.ErrEdgeNotFound
	}
	e.Style = style
	return nil
}
