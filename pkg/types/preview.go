package types

import "time"

// DragState is the interaction state of a preview line.
type DragState string

// Preview line drag states.
const (
	DragStateFree      DragState = "free"
	DragStateDragging  DragState = "dragging"
	DragStateConnected DragState = "connected"
)

// HintNodeID returns the id of the hint node paired with a preview line.
func HintNodeID(lineID string) string {
	return "hint_" + lineID
}

// PreviewLine is a provisional connector from a configured node's output to
// a free point or a target cell. A split node owns one line per branch; any
// other configured node owns a single line with no branch.
type PreviewLine struct {
	ID               string    `json:"id"`
	SourceNodeID     string    `json:"sourceNodeId"`
	SourcePortID     string    `json:"sourcePortId"`
	BranchID         string    `json:"branchId,omitempty"`
	BranchName       string    `json:"branchName,omitempty"`
	BranchIndex      int       `json:"branchIndex"`
	Color            string    `json:"color"`
	Endpoint         Endpoint  `json:"endpoint"`
	State            DragState `json:"state"`
	ManuallyAdjusted bool      `json:"manuallyAdjusted,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// HasBranch reports whether the line belongs to a split-node branch.
func (l *PreviewLine) HasBranch() bool {
	return l.BranchID != ""
}

// HintNodeID returns the id of the line's hint node.
func (l *PreviewLine) HintNodeID() string {
	return HintNodeID(l.ID)
}

// BeginDrag moves a free line into the dragging state.
// Returns ErrInvalidTransition from any other state.
func (l *PreviewLine) BeginDrag() error {
	if l.State != DragStateFree {
		return ErrInvalidTransition
	}
	l.State = DragStateDragging
	return nil
}

// MoveTo updates the free endpoint while dragging.
// Returns ErrInvalidTransition if the line is not being dragged.
func (l *PreviewLine) MoveTo(p Point) error {
	if l.State != DragStateDragging {
		return ErrInvalidTransition
	}
	l.Endpoint = FreeEndpoint(p)
	return nil
}

// Release drops a dragged line at p without a target. The line becomes free
// and remembers that the user placed it.
func (l *PreviewLine) Release(p Point) error {
	if l.State != DragStateDragging {
		return ErrInvalidTransition
	}
	l.Endpoint = FreeEndpoint(p)
	l.State = DragStateFree
	l.ManuallyAdjusted = true
	return nil
}

// Connect binds a dragged line to a target cell port.
func (l *PreviewLine) Connect(cellID, portID string) error {
	if l.State != DragStateDragging {
		return ErrInvalidTransition
	}
	l.Endpoint = BoundEndpoint(cellID, portID)
	l.State = DragStateConnected
	return nil
}

// Detach frees a connected line at p. A connected line never goes back to
// dragging directly.
func (l *PreviewLine) Detach(p Point) error {
	if l.State != DragStateConnected {
		return ErrInvalidTransition
	}
	l.Endpoint = FreeEndpoint(p)
	l.State = DragStateFree
	return nil
}

// FreePoint returns the line's free endpoint, if any.
func (l *PreviewLine) FreePoint() (Point, bool) {
	if !l.Endpoint.IsFree() {
		return Point{}, false
	}
	return *l.Endpoint.Point, true
}
