package preview

import (
	"maps"
	"slices"

	"github.com/mesh-intelligence/journey/pkg/types"
)

// handleNodeRemoved drops the lines of a deleted node and restores lines on
// the nodes that pointed at it.
func (m *Manager) handleNodeRemoved(payload any) {
	ev, ok := payload.(types.NodeEvent)
	if !ok || ev.Node == nil || m.owns(ev.Node.ID) {
		return
	}
	if ev.Node.IsHint() {
		// A hint deleted from outside takes its line with it.
		if d := ev.Node.Data; d != nil && d.Hint != nil {
			m.mu.Lock()
			m.removeLineLocked(d.Hint.PreviewLineID)
			m.pushStatsLocked()
			m.mu.Unlock()
		}
		return
	}
	restored := m.RestorePreviewLinesAfterNodeDeletion(ev.Node.ID, ev.Incoming)
	m.log.Debug().Str("node_id", ev.Node.ID).Int("restored", len(restored)).Msg("node removed")
}

// handleNodeMoved schedules a debounced refresh of the moved node's lines.
func (m *Manager) handleNodeMoved(payload any) {
	ev, ok := payload.(types.NodeMovedEvent)
	if !ok || ev.Node == nil || ev.Node.IsHint() {
		return
	}
	// Hit tests cache bounds under mu, so the entry is dropped under mu too.
	m.mu.Lock()
	m.cache.Delete(boundsKey(ev.Node.ID))
	m.moved[ev.Node.ID] = struct{}{}
	m.mu.Unlock()
	m.refresh.Call(m.flushMoved)
}

// flushMoved repositions the free lines of every node moved since the last
// flush. Lines the user placed by hand keep their position.
func (m *Manager) flushMoved() {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := slices.Sorted(maps.Keys(m.moved))
	clear(m.moved)
	for _, id := range ids {
		m.refreshNodeLocked(id)
	}
}

// RefreshPositions recomputes the free endpoints of nodeID's lines.
func (m *Manager) RefreshPositions(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshNodeLocked(nodeID)
}

func (m *Manager) refreshNodeLocked(nodeID string) {
	node, ok := m.canvas.GetNode(nodeID)
	if !ok {
		return
	}
	ids := m.byNode[nodeID]
	if len(ids) == 0 {
		return
	}
	var cfg map[string]any
	if node.Data != nil {
		cfg = node.Data.Config
	}
	count := 1
	if n := len(m.branchesLocked(node, cfg)); n > 0 {
		count = n
	}
	points := m.geom.PreviewEndpoints(node.Bounds(), count)
	for _, id := range ids {
		line := m.lines[id]
		if line.State != types.DragStateFree || line.ManuallyAdjusted || line.BranchIndex >= len(points) {
			continue
		}
		p := points[line.BranchIndex]
		line.Endpoint = types.FreeEndpoint(p)
		m.syncEndpointLocked(line, p)
	}
}

// handleEdgeAdded drops the preview line a new real edge supersedes.
func (m *Manager) handleEdgeAdded(payload any) {
	ev, ok := payload.(types.EdgeEvent)
	if !ok || ev.Edge == nil || ev.Edge.IsPreview() || m.owns(ev.Edge.ID) {
		return
	}
	src := ev.Edge.Source.CellID
	if src == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.pushStatsLocked()
	branchID := ev.Edge.Data.BranchID
	port := ev.Edge.Source.PortID
	m.removeMatchingLocked(src, func(l *types.PreviewLine) bool {
		switch {
		case !l.HasBranch():
			return true
		case branchID != "":
			return l.BranchID == branchID
		default:
			return l.SourcePortID == port
		}
	})
}

// handleEdgeRemoved restores the lines of the source node of a deleted real
// edge.
func (m *Manager) handleEdgeRemoved(payload any) {
	ev, ok := payload.(types.EdgeEvent)
	if !ok || ev.Edge == nil || ev.Edge.IsPreview() || m.owns(ev.Edge.ID) {
		return
	}
	node, ok := m.canvas.GetNode(ev.Edge.Source.CellID)
	if !ok || !m.ShouldCreatePreviewLine(node) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.pushStatsLocked()
	if _, err := m.ensureLinesLocked(node, nil); err != nil {
		m.log.Warn().Err(err).Str("node_id", node.ID).Msg("restore after edge removal failed")
	}
}
