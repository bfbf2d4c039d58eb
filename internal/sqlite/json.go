package sqlite

import (
	"time"

	"github.com/mesh-intelligence/journey/pkg/types"
)

// JSON record structures that mirror the JSONL file format.

// nodeJSON represents a node in nodes.jsonl.
type nodeJSON struct {
	NodeID    string          `json:"node_id"`
	NodeType  string          `json:"node_type"`
	PositionX float64         `json:"position_x"`
	PositionY float64         `json:"position_y"`
	Width     float64         `json:"width"`
	Height    float64         `json:"height"`
	Ports     []types.Port    `json:"ports"`
	Visual    types.Visual    `json:"visual"`
	Data      *types.NodeData `json:"data"`
	Ordinal   int             `json:"ordinal"`
}

// edgeJSON represents an edge in edges.jsonl. A free target carries
// target_x and target_y instead of a target cell.
type edgeJSON struct {
	EdgeID     string          `json:"edge_id"`
	EdgeType   string          `json:"edge_type"`
	SourceCell string          `json:"source_cell"`
	SourcePort string          `json:"source_port"`
	TargetCell string          `json:"target_cell"`
	TargetPort string          `json:"target_port"`
	TargetX    *float64        `json:"target_x"`
	TargetY    *float64        `json:"target_y"`
	Data       types.EdgeData  `json:"data"`
	Label      string          `json:"label"`
	Style      types.EdgeStyle `json:"style"`
	Ordinal    int             `json:"ordinal"`
}

// snapshotJSON represents one save in snapshots.jsonl.
type snapshotJSON struct {
	SnapshotID string `json:"snapshot_id"`
	NodeCount  int    `json:"node_count"`
	EdgeCount  int    `json:"edge_count"`
	SavedAt    string `json:"saved_at"`
}

func nodeRecord(n *types.Node, ordinal int) nodeJSON {
	return nodeJSON{
		NodeID:    n.ID,
		NodeType:  n.Type,
		PositionX: n.Position.X,
		PositionY: n.Position.Y,
		Width:     n.Size.Width,
		Height:    n.Size.Height,
		Ports:     n.Ports,
		Visual:    n.Visual,
		Data:      n.Data,
		Ordinal:   ordinal,
	}
}

func (r nodeJSON) node() *types.Node {
	return &types.Node{
		ID:       r.NodeID,
		Type:     r.NodeType,
		Position: types.Point{X: r.PositionX, Y: r.PositionY},
		Size:     types.Size{Width: r.Width, Height: r.Height},
		Ports:    r.Ports,
		Visual:   r.Visual,
		Data:     r.Data,
	}
}

func edgeRecord(e *types.Edge, ordinal int) edgeJSON {
	r := edgeJSON{
		EdgeID:     e.ID,
		EdgeType:   e.Data.Type,
		SourceCell: e.Source.CellID,
		SourcePort: e.Source.PortID,
		TargetCell: e.Target.CellID,
		TargetPort: e.Target.PortID,
		Data:       e.Data,
		Label:      e.Label,
		Style:      e.Style,
		Ordinal:    ordinal,
	}
	if p := e.Target.Point; p != nil {
		x, y := p.X, p.Y
		r.TargetX, r.TargetY = &x, &y
	}
	return r
}

func (r edgeJSON) edge() *types.Edge {
	e := &types.Edge{
		ID:     r.EdgeID,
		Source: types.BoundEndpoint(r.SourceCell, r.SourcePort),
		Target: types.BoundEndpoint(r.TargetCell, r.TargetPort),
		Data:   r.Data,
		Label:  r.Label,
		Style:  r.Style,
	}
	if r.TargetCell == "" && r.TargetX != nil && r.TargetY != nil {
		e.Target = types.FreeEndpoint(types.Point{X: *r.TargetX, Y: *r.TargetY})
	}
	return e
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
