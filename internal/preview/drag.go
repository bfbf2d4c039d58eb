package preview

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/journey/internal/cache"
	"github.com/mesh-intelligence/journey/pkg/types"
)

// dragSession tracks the single line being dragged.
type dragSession struct {
	lineID string
	last   types.Point
	target string
}

// ActiveDrag returns a copy of the line being dragged, if any.
func (m *Manager) ActiveDrag() (types.PreviewLine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.drag == nil {
		return types.PreviewLine{}, false
	}
	return *m.lines[m.drag.lineID], true
}

// HighlightedTarget returns the node currently highlighted as the drop
// target of the active drag.
func (m *Manager) HighlightedTarget() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.drag == nil || m.drag.target == "" {
		return "", false
	}
	return m.drag.target, true
}

// StartDrag begins dragging the line named by id, which may be a line id
// or its hint node id. A drag already in progress is cancelled first.
func (m *Manager) StartDrag(id string) (types.PreviewLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.pushStatsLocked()

	line, ok := m.resolveLineLocked(id)
	if !ok {
		return types.PreviewLine{}, fmt.Errorf("%s: %w", id, types.ErrLineNotFound)
	}
	if m.drag != nil && m.drag.lineID != line.ID {
		m.cancelDragLocked()
	}
	start, _ := line.FreePoint()
	if err := line.BeginDrag(); err != nil {
		return types.PreviewLine{}, fmt.Errorf("start drag %s: %w", line.ID, err)
	}
	m.drag = &dragSession{lineID: line.ID, last: start}
	m.log.Debug().Str("line_id", line.ID).Msg("drag started")
	return *line, nil
}

func (m *Manager) resolveLineLocked(id string) (*types.PreviewLine, bool) {
	if l, ok := m.lines[id]; ok {
		return l, true
	}
	if node, ok := m.canvas.GetNode(id); ok && node.Data != nil && node.Data.Hint != nil {
		l, ok := m.lines[node.Data.Hint.PreviewLineID]
		return l, ok
	}
	l, ok := m.lines[strings.TrimPrefix(id, "hint_")]
	return l, ok
}

// DragMove moves the dragged endpoint and its hint node to p. The drop
// target highlight is refreshed at most once per hover interval, and once
// more for the last position of each interval.
func (m *Manager) DragMove(p types.Point) error {
	if err := m.moveDragged(p); err != nil {
		return err
	}
	m.hover.Call(m.updateHighlight)
	return nil
}

func (m *Manager) moveDragged(p types.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.drag == nil {
		return types.ErrNoActiveDrag
	}
	line := m.lines[m.drag.lineID]
	if err := line.MoveTo(p); err != nil {
		return err
	}
	m.drag.last = p
	m.syncEndpointLocked(line, p)
	return nil
}

// updateHighlight marks the node under the dragged endpoint as the drop
// target.
func (m *Manager) updateHighlight() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.drag == nil {
		return
	}
	line, ok := m.lines[m.drag.lineID]
	if !ok {
		return
	}
	target := ""
	if node, ok := m.findTargetLocked(m.drag.last, line.SourceNodeID); ok {
		target = node.ID
	}
	if target == m.drag.target {
		return
	}
	m.drag.target = target
	style := types.EdgeStyle{Stroke: line.Color, StrokeWidth: lineStrokeWidth, Dashed: true, Highlighted: target != ""}
	if err := m.canvas.SetEdgeStyle(line.ID, style); err != nil {
		m.log.Warn().Err(err).Str("line_id", line.ID).Msg("highlight failed")
	}
}

// EndDrag drops the dragged line at p. When a node other than the source
// (and not a hint) lies within the hit tolerance of p, a real connection
// edge from the line's out port to the target's in port replaces the line
// and is returned. Otherwise the line stays free at p and is marked as
// placed by the user, and the returned edge is nil.
func (m *Manager) EndDrag(p types.Point) (*types.Edge, error) {
	var edge *types.Edge
	err := m.timed("preview:drag-end", nil, func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		defer m.pushStatsLocked()
		if m.drag == nil {
			return types.ErrNoActiveDrag
		}
		line := m.lines[m.drag.lineID]

		target, ok := m.findTargetLocked(p, line.SourceNodeID)
		if !ok {
			if err := line.Release(p); err != nil {
				return err
			}
			m.drag = nil
			m.syncEndpointLocked(line, p)
			m.resetStyleLocked(line)
			return nil
		}

		inPort := inPortOf(target)
		if err := line.Connect(target.ID, inPort); err != nil {
			return err
		}
		e := &types.Edge{
			ID:     m.newID(),
			Source: types.BoundEndpoint(line.SourceNodeID, line.SourcePortID),
			Target: types.BoundEndpoint(target.ID, inPort),
			Data: types.EdgeData{
				Type:         types.EdgeTypeConnection,
				SourceNodeID: line.SourceNodeID,
				TargetNodeID: target.ID,
				BranchID:     line.BranchID,
				BranchIndex:  line.BranchIndex,
			},
			Label: line.BranchName,
		}
		release := m.claim(e.ID)
		err := m.canvas.AddEdge(e)
		release()
		if err != nil {
			// The target is unusable; leave the line free where it was dropped.
			_ = line.Detach(p)
			line.ManuallyAdjusted = true
			m.drag = nil
			m.syncEndpointLocked(line, p)
			return fmt.Errorf("connect %s to %s: %w", line.SourceNodeID, target.ID, err)
		}
		m.drag = nil
		m.removeLineLocked(line.ID)
		m.log.Info().Str("source", e.Data.SourceNodeID).Str("target", target.ID).Str("branch_id", line.BranchID).Msg("preview line connected")
		edge = e
		return nil
	})
	return edge, err
}

// CancelDrag abandons the active drag, leaving the line free at its last
// position.
func (m *Manager) CancelDrag() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.pushStatsLocked()
	if m.drag == nil {
		return types.ErrNoActiveDrag
	}
	m.cancelDragLocked()
	return nil
}

func (m *Manager) cancelDragLocked() {
	line := m.lines[m.drag.lineID]
	last := m.drag.last
	m.drag = nil
	if line == nil {
		return
	}
	if err := line.Release(last); err != nil {
		m.log.Warn().Err(err).Str("line_id", line.ID).Msg("cancel drag failed")
		return
	}
	m.syncEndpointLocked(line, last)
	m.resetStyleLocked(line)
}

// syncEndpointLocked moves the preview edge target and the hint node to p.
func (m *Manager) syncEndpointLocked(line *types.PreviewLine, p types.Point) {
	if err := m.canvas.SetEdgeTarget(line.ID, types.FreeEndpoint(p)); err != nil {
		m.log.Warn().Err(err).Str("line_id", line.ID).Msg("move preview edge failed")
	}
	if err := m.canvas.SetNodePosition(line.HintNodeID(), hintPosition(p)); err != nil {
		m.log.Warn().Err(err).Str("line_id", line.ID).Msg("move hint node failed")
	}
}

func (m *Manager) resetStyleLocked(line *types.PreviewLine) {
	style := types.EdgeStyle{Stroke: line.Color, StrokeWidth: lineStrokeWidth, Dashed: true}
	if err := m.canvas.SetEdgeStyle(line.ID, style); err != nil {
		m.log.Warn().Err(err).Str("line_id", line.ID).Msg("reset style failed")
	}
}

// findTargetLocked returns the node nearest to p whose bounds, grown by the
// hit tolerance, contain p. The source node and hint nodes never qualify.
func (m *Manager) findTargetLocked(p types.Point, sourceID string) (*types.Node, bool) {
	var best *types.Node
	bestDist := 0.0
	for _, node := range m.canvas.GetNodes() {
		if node.ID == sourceID || node.IsHint() {
			continue
		}
		b := m.boundsLocked(node)
		if !b.Contains(p, m.cfg.HitTolerance) {
			continue
		}
		d := b.Center().Distance(p)
		if best == nil || d < bestDist {
			best, bestDist = node, d
		}
	}
	return best, best != nil
}

// boundsLocked returns the node's bounds through the cache. Entries are
// dropped when the node moves.
func (m *Manager) boundsLocked(node *types.Node) types.Rect {
	key := boundsKey(node.ID)
	if v, ok := m.cache.Get(key); ok {
		if r, ok := v.(types.Rect); ok {
			m.monitor.RecordCacheHit(key, nil)
			return r
		}
	}
	m.monitor.RecordCacheMiss(key, nil)
	r := node.Bounds()
	m.cache.Set(key, r, cache.WithPriority(cache.PriorityHigh))
	return r
}

func inPortOf(node *types.Node) string {
	for _, p := range node.Ports {
		if p.Group == types.PortGroupIn {
			return p.ID
		}
	}
	return "in"
}
