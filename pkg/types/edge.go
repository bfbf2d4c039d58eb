package types

// Edge data types.
const (
	EdgeTypePreview    = "draggable-preview"
	EdgeTypeConnection = "connection"
)

// Endpoint is one end of an edge: either a free canvas point or a bound
// cell (and optional port).
type Endpoint struct {
	Point  *Point `json:"point,omitempty"`
	CellID string `json:"cell,omitempty"`
	PortID string `json:"port,omitempty"`
}

// FreeEndpoint returns an endpoint floating at p.
func FreeEndpoint(p Point) Endpoint {
	return Endpoint{Point: &p}
}

// BoundEndpoint returns an endpoint attached to a cell port.
func BoundEndpoint(cellID, portID string) Endpoint {
	return Endpoint{CellID: cellID, PortID: portID}
}

// IsFree reports whether the endpoint floats at a coordinate.
func (e Endpoint) IsFree() bool {
	return e.CellID == "" && e.Point != nil
}

// EdgeData is the business payload of an edge.
type EdgeData struct {
	Type         string `json:"type"`
	SourceNodeID string `json:"sourceNodeId,omitempty"`
	TargetNodeID string `json:"targetNodeId,omitempty"`
	BranchID     string `json:"branchId,omitempty"`
	BranchIndex  int    `json:"branchIndex,omitempty"`
}

// EdgeStyle holds the rendered line attributes.
type EdgeStyle struct {
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	Dashed      bool    `json:"dashed,omitempty"`
	Highlighted bool    `json:"highlighted,omitempty"`
}

// Edge connects a source node port to a target endpoint.
type Edge struct {
	ID     string    `json:"id"`
	Source Endpoint  `json:"source"`
	Target Endpoint  `json:"target"`
	Data   EdgeData  `json:"data"`
	Label  string    `json:"label,omitempty"`
	Style  EdgeStyle `json:"style"`
}

// IsPreview reports whether e is a provisional preview line.
func (e *Edge) IsPreview() bool {
	return e.Data.Type == EdgeTypePreview
}

// Clone returns a copy of e that shares no pointers with it.
func (e *Edge) Clone() *Edge {
	c := *e
	if e.Source.Point != nil {
		p := *e.Source.Point
		c.Source.Point = &p
	}
	if e.Target.Point != nil {
		p := *e.Target.Point
		c.Target.Point = &p
	}
	return &c
}
