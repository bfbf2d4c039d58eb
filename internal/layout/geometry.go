package layout

import (
	"github.com/mesh-intelligence/journey/pkg/types"
)

// spacingFactor scales node width into branch endpoint spacing.
const spacingFactor = 0.8

// BranchSpacing returns the horizontal gap between branch endpoints for a
// node of the given width.
func (e *Engine) BranchSpacing(width float64) float64 {
	return min(max(width*spacingFactor, e.cfg.BranchSpacingMin), e.cfg.BranchSpacingMax)
}

// PreviewEndpoints returns the free endpoints for count preview lines
// leaving bounds: one point straight below the node, or a row of points
// centered below it.
func (e *Engine) PreviewEndpoints(bounds types.Rect, count int) []types.Point {
	anchor := bounds.BottomCenter()
	y := anchor.Y + e.cfg.VerticalOffset
	if count <= 1 {
		return []types.Point{{X: anchor.X, Y: y}}
	}
	spacing := e.BranchSpacing(bounds.Width)
	left := anchor.X - float64(count-1)*spacing/2
	out := make([]types.Point, count)
	for i := range out {
		out[i] = types.Point{X: left + float64(i)*spacing, Y: y}
	}
	return out
}
