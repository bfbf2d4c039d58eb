package types

import (
	"maps"
	"slices"
	"time"
)

// Node types known to the journey canvas.
const (
	NodeTypeStart         = "start"
	NodeTypeAudienceSplit = "audience-split"
	NodeTypeEventSplit    = "event-split"
	NodeTypeABTest        = "ab-test"
	NodeTypeAICall        = "ai-call"
	NodeTypeSMS           = "sms"
	NodeTypeManualCall    = "manual-call"
	NodeTypeWait          = "wait"
	NodeTypeEnd           = "end"

	// NodeTypeDragHint tags the small handle node drawn at the free end of
	// a preview line.
	NodeTypeDragHint = "drag-hint"
)

// Port groups.
const (
	PortGroupIn  = "in"
	PortGroupOut = "out"
)

// Port is a connection point on a node.
type Port struct {
	ID    string `json:"id"`
	Group string `json:"group"` // PortGroupIn or PortGroupOut.
}

// Visual holds the rendered attributes a strategy may change.
type Visual struct {
	Label       string `json:"label,omitempty"`
	FillColor   string `json:"fill,omitempty"`
	StrokeColor string `json:"stroke,omitempty"`
}

// VisualPatch is a partial Visual update. Nil fields are left unchanged.
type VisualPatch struct {
	Label       *string
	FillColor   *string
	StrokeColor *string
}

// Empty reports whether the patch changes nothing.
func (p VisualPatch) Empty() bool {
	return p.Label == nil && p.FillColor == nil && p.StrokeColor == nil
}

// HintData marks a node as the drag handle of a preview line.
type HintData struct {
	Type          string `json:"type"` // Always NodeTypeDragHint.
	BranchIndex   int    `json:"branchIndex"`
	PreviewLineID string `json:"previewLineId"`
	SourceNodeID  string `json:"sourceNodeId"`
}

// NodeData is the business payload carried by a node.
type NodeData struct {
	NodeType     string         `json:"nodeType"`
	IsConfigured bool           `json:"isConfigured"`
	Config       map[string]any `json:"config,omitempty"`
	Branches     []Branch       `json:"branches,omitempty"`
	BranchCount  int            `json:"branchCount,omitempty"`
	LastUpdated  time.Time      `json:"lastUpdated"`
	Hint         *HintData      `json:"hint,omitempty"`
}

// Node is a vertex on the journey canvas.
type Node struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Position Point     `json:"position"`
	Size     Size      `json:"size"`
	Ports    []Port    `json:"ports,omitempty"`
	Visual   Visual    `json:"visual"`
	Data     *NodeData `json:"data,omitempty"`
}

// NodeType returns the node's business type, preferring the data payload.
func (n *Node) NodeType() string {
	if n.Data != nil && n.Data.NodeType != "" {
		return n.Data.NodeType
	}
	return n.Type
}

// Bounds returns the node's bounding box.
func (n *Node) Bounds() Rect {
	return Rect{X: n.Position.X, Y: n.Position.Y, Width: n.Size.Width, Height: n.Size.Height}
}

// IsHint reports whether n is a drag-hint node.
func (n *Node) IsHint() bool {
	if n.Type == NodeTypeDragHint {
		return true
	}
	return n.Data != nil && n.Data.Hint != nil && n.Data.Hint.Type == NodeTypeDragHint
}

// IsConfigured reports whether the node has been explicitly configured.
func (n *Node) IsConfigured() bool {
	return n.Data != nil && n.Data.IsConfigured
}

// SetData replaces the node's data. The configured flag is monotonic: a
// replacement carrying IsConfigured=false never clears an existing true.
// Use Unconfigure to clear it deliberately.
func (n *Node) SetData(data NodeData) {
	configured := n.IsConfigured()
	d := data
	d.IsConfigured = data.IsConfigured || configured
	n.Data = &d
}

// MergeData applies config, branches, and the update time to the node's
// data and marks it configured. It is the write used after a successful
// configuration pass.
func (n *Node) MergeData(config map[string]any, branches []Branch, branchCount int, at time.Time) {
	if n.Data == nil {
		n.Data = &NodeData{NodeType: n.Type}
	}
	n.Data.Config = maps.Clone(config)
	n.Data.Branches = slices.Clone(branches)
	n.Data.BranchCount = branchCount
	n.Data.LastUpdated = at
	n.Data.IsConfigured = true
}

// Unconfigure clears the configured flag.
func (n *Node) Unconfigure() {
	if n.Data != nil {
		n.Data.IsConfigured = false
	}
}

// ApplyVisual applies a partial visual update.
func (n *Node) ApplyVisual(p VisualPatch) {
	if p.Label != nil {
		n.Visual.Label = *p.Label
	}
	if p.FillColor != nil {
		n.Visual.FillColor = *p.FillColor
	}
	if p.StrokeColor != nil {
		n.Visual.StrokeColor = *p.StrokeColor
	}
}

// OutputPorts returns the node's ports in the out group, in declaration order.
func (n *Node) OutputPorts() []Port {
	var out []Port
	for _, p := range n.Ports {
		if p.Group == PortGroupOut {
			out = append(out, p)
		}
	}
	return out
}

// Port returns the port with the given id.
func (n *Node) Port(id string) (Port, bool) {
	for _, p := range n.Ports {
		if p.ID == id {
			return p, true
		}
	}
	return Port{}, false
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	c := *n
	c.Ports = slices.Clone(n.Ports)
	if n.Data != nil {
		d := *n.Data
		d.Config = maps.Clone(n.Data.Config)
		d.Branches = slices.Clone(n.Data.Branches)
		if n.Data.Hint != nil {
			h := *n.Data.Hint
			d.Hint = &h
		}
		c.Data = &d
	}
	return &c
}
