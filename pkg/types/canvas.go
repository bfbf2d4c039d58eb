package types

import (
	"context"
	"errors"
)

// Canvas event names.
const (
	EventNodeAdded         = "node:added"
	EventNodeRemoved       = "node:removed"
	EventNodeMoved         = "node:moved"
	EventEdgeAdded         = "edge:added"
	EventEdgeRemoved       = "edge:removed"
	EventNodeConfigUpdated = "node:config-updated"
)

// NodeEvent is the payload of node:added and node:removed.
type NodeEvent struct {
	Node *Node
	// Incoming holds the edges that pointed at a removed node, captured
	// before removal.
	Incoming []*Edge
}

// NodeMovedEvent is the payload of node:moved.
type NodeMovedEvent struct {
	Node *Node
	From Point
	To   Point
}

// EdgeEvent is the payload of edge:added and edge:removed.
type EdgeEvent struct {
	Edge *Edge
}

// ConfigUpdatedEvent is the payload of node:config-updated.
type ConfigUpdatedEvent struct {
	Node     *Node
	NodeType string
	Config   map[string]any
}

// EventHandler receives an event payload.
type EventHandler func(payload any)

// EventBus dispatches named events synchronously to subscribers.
type EventBus interface {
	// Trigger invokes every handler registered for name, in registration order.
	Trigger(name string, payload any)

	// On registers fn for name and returns a function that unregisters it.
	On(name string, fn EventHandler) (off func())
}

// Canvas is the host graph the preview core reads and edits. Implementations
// hand out the stored *Node and *Edge values; callers mutate node data and
// visuals through them, and go through the canvas for structural changes so
// that events fire.
type Canvas interface {
	EventBus

	// AddNode inserts a node. Returns ErrDuplicateID if the id is taken.
	AddNode(node *Node) error

	// RemoveNode deletes a node and every edge attached to it.
	// Returns ErrNodeNotFound if absent.
	RemoveNode(id string) error

	GetNode(id string) (*Node, bool)
	GetNodes() []*Node

	// AddEdge inserts an edge. Returns ErrDuplicateID if the id is taken.
	AddEdge(edge *Edge) error

	// RemoveEdge deletes an edge. Returns ErrEdgeNotFound if absent.
	RemoveEdge(id string) error

	GetEdge(id string) (*Edge, bool)
	GetEdges() []*Edge
	GetOutgoingEdges(nodeID string) []*Edge
	GetIncomingEdges(nodeID string) []*Edge

	AddPort(nodeID string, port Port) error
	RemovePort(nodeID, portID string) error
	GetPorts(nodeID string) []Port

	SetNodePosition(id string, p Point) error
	SetEdgeTarget(id string, target Endpoint) error
	SetEdgeStyle(id string, style EdgeStyle) error
}

// LayoutManager is the layout engine a branch strategy asks to refresh
// split-node branch metadata.
type LayoutManager interface {
	IsReady() bool

	// Init starts engine initialization. Readiness may arrive later.
	Init(ctx context.Context) error

	UpdateSplitNodeBranches(node *Node, branches []Branch) error
}

// ProcessContext carries the collaborators a configuration pass may touch.
// Layout and Events are optional.
type ProcessContext struct {
	Canvas Canvas
	Layout LayoutManager
	Events EventBus
}

// Canvas and graph errors.
var (
	ErrNodeNotFound   = errors.New("node not found")
	ErrEdgeNotFound   = errors.New("edge not found")
	ErrPortNotFound   = errors.New("port not found")
	ErrDuplicateID    = errors.New("duplicate id")
	ErrLayoutNotReady = errors.New("layout engine not ready")
)

// Configuration and preview errors.
var (
	ErrInvalidConfig     = errors.New("invalid node configuration")
	ErrInvalidStrategy   = errors.New("invalid strategy")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrNoActiveDrag      = errors.New("no active drag")
	ErrLineNotFound      = errors.New("preview line not found")
)

// Store errors.
var (
	ErrAlreadyAttached = errors.New("store already attached")
	ErrStoreDetached   = errors.New("store is detached")
)
