package preview

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/mesh-intelligence/journey/internal/cache"
	"github.com/mesh-intelligence/journey/pkg/types"
)

// palette colors preview lines by branch color index.
var palette = []string{
	"#1890ff", "#52c41a", "#fa8c16", "#eb2f96",
	"#722ed1", "#13c2c2", "#faad14", "#f5222d",
}

// ColorFor returns the line color for a branch color index.
func ColorFor(index int) string {
	if index < 0 {
		index = -index
	}
	return palette[index%len(palette)]
}

const (
	hintSize        = 12
	lineStrokeWidth = 2
)

// CreateDraggablePreviewLine rebuilds the preview lines of node from its
// stored configuration. See CreatePreviewLineAfterConfig.
func (m *Manager) CreateDraggablePreviewLine(node *types.Node) ([]types.PreviewLine, error) {
	return m.CreatePreviewLineAfterConfig(node, nil)
}

// CreatePreviewLineAfterConfig rebuilds the preview lines of node. Existing
// lines of the node are removed first. Branches come from the node's
// normalized data, or are derived from cfg (the node's stored config when
// cfg is nil). Branches that already have a real outgoing edge get no line.
// The node's configured flag is read, never written. Nodes that fail
// ShouldCreatePreviewLine lose their lines and get none.
func (m *Manager) CreatePreviewLineAfterConfig(node *types.Node, cfg map[string]any) ([]types.PreviewLine, error) {
	if node == nil {
		return nil, types.ErrNodeNotFound
	}
	var out []types.PreviewLine
	err := m.timed("preview:create:"+node.ID, map[string]any{"nodeId": node.ID}, func() error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.removeNodeLinesLocked(node.ID)
		lines, err := m.ensureLinesLocked(node, cfg)
		out = lines
		m.pushStatsLocked()
		return err
	})
	return out, err
}

// OnNodeConfigured is the entry point after a configuration pass: it looks
// up nodeID and rebuilds its lines from cfg.
func (m *Manager) OnNodeConfigured(nodeID string, cfg map[string]any) ([]types.PreviewLine, error) {
	node, ok := m.canvas.GetNode(nodeID)
	if !ok {
		return nil, fmt.Errorf("node %s: %w", nodeID, types.ErrNodeNotFound)
	}
	return m.CreatePreviewLineAfterConfig(node, cfg)
}

// RestorePreviewLinesAfterCancel brings back the lines of node after the
// user abandoned an edit. A node that is still validly configured gets its
// missing lines recreated; one that is not loses its lines. Other
// configured nodes that lost lines get theirs back too. The node's
// resulting lines are returned.
func (m *Manager) RestorePreviewLinesAfterCancel(node *types.Node) ([]types.PreviewLine, error) {
	if node == nil {
		return nil, types.ErrNodeNotFound
	}
	var out []types.PreviewLine
	err := m.timed("preview:restore:"+node.ID, map[string]any{"nodeId": node.ID}, func() error {
		check := m.ValidateNodeConfiguration(node, "", nil)

		m.mu.Lock()
		defer m.mu.Unlock()
		defer m.pushStatsLocked()
		if !check.IsConfigured {
			m.log.Debug().Str("node_id", node.ID).Strs("reasons", check.Reasons).Msg("cancelled node not configured, dropping lines")
			m.removeNodeLinesLocked(node.ID)
			return nil
		}
		var errs []error
		if _, err := m.ensureLinesLocked(node, nil); err != nil {
			errs = append(errs, err)
		}
		for _, other := range m.canvas.GetNodes() {
			if other.ID == node.ID || !m.ShouldCreatePreviewLine(other) {
				continue
			}
			if _, err := m.ensureLinesLocked(other, nil); err != nil {
				errs = append(errs, err)
			}
		}
		out = m.linesForLocked(node.ID)
		return errors.Join(errs...)
	})
	return out, err
}

// RestorePreviewLinesAfterNodeDeletion drops the lines of the deleted node
// and restores lines on the sources of its incoming edges, whose branches
// are free again. It returns the lines those sources now have.
func (m *Manager) RestorePreviewLinesAfterNodeDeletion(nodeID string, incoming []*types.Edge) []types.PreviewLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.pushStatsLocked()

	m.removeNodeLinesLocked(nodeID)
	m.cache.DeletePrefix(branchKeyPrefix(nodeID))
	m.cache.Delete(boundsKey(nodeID))

	var out []types.PreviewLine
	seen := map[string]bool{}
	for _, e := range incoming {
		if e == nil || e.IsPreview() {
			continue
		}
		src := e.Source.CellID
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		node, ok := m.canvas.GetNode(src)
		if !ok || !m.ShouldCreatePreviewLine(node) {
			continue
		}
		if _, err := m.ensureLinesLocked(node, nil); err != nil {
			m.log.Warn().Err(err).Str("node_id", src).Msg("restore after deletion failed")
			continue
		}
		out = append(out, m.linesForLocked(src)...)
	}
	return out
}

// InitializeExistingNodes creates lines for every configured node on the
// canvas that is missing them and returns how many were created.
func (m *Manager) InitializeExistingNodes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := m.created
	for _, node := range m.canvas.GetNodes() {
		if !m.ShouldCreatePreviewLine(node) {
			continue
		}
		if _, err := m.ensureLinesLocked(node, nil); err != nil {
			m.log.Warn().Err(err).Str("node_id", node.ID).Msg("initialize lines failed")
		}
	}
	m.pushStatsLocked()
	return int(m.created - before)
}

// OnNodeConnected drops the line of branchID on nodeID, or the node's
// single line when branchID is empty. It returns how many lines were
// removed.
func (m *Manager) OnNodeConnected(nodeID, branchID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.pushStatsLocked()
	return m.removeMatchingLocked(nodeID, func(l *types.PreviewLine) bool {
		return branchID == "" || l.BranchID == branchID
	})
}

// RemovePreviewLines removes every line of nodeID and returns the count.
func (m *Manager) RemovePreviewLines(nodeID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.pushStatsLocked()
	return m.removeNodeLinesLocked(nodeID)
}

// RemoveBranchPreviewLine removes the line of one branch and reports
// whether it existed.
func (m *Manager) RemoveBranchPreviewLine(nodeID, branchID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.pushStatsLocked()
	return m.removeMatchingLocked(nodeID, func(l *types.PreviewLine) bool {
		return l.BranchID == branchID
	}) > 0
}

// ClearAllPreviewLines removes every preview line and hint node, including
// strays left on the canvas, and returns how many lines were removed.
func (m *Manager) ClearAllPreviewLines() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.pushStatsLocked()

	m.drag = nil
	n := 0
	for id := range m.lines {
		m.removeLineLocked(id)
		n++
	}
	for _, e := range m.canvas.GetEdges() {
		if e.IsPreview() {
			if err := m.canvas.RemoveEdge(e.ID); err == nil {
				n++
			}
		}
	}
	for _, node := range m.canvas.GetNodes() {
		if node.IsHint() {
			_ = m.removeHintLocked(node.ID)
		}
	}
	return n
}

// ensureLinesLocked creates the lines node is missing: one per branch
// without a line or a real edge, or a single line for a node without
// branches and without real outgoing edges. Lines whose branch no longer
// exists are removed. It returns every line of the node afterwards.
func (m *Manager) ensureLinesLocked(node *types.Node, cfg map[string]any) ([]types.PreviewLine, error) {
	if node.IsHint() || node.NodeType() == types.NodeTypeEnd {
		return nil, nil
	}
	if !m.ShouldCreatePreviewLine(node) {
		m.removeNodeLinesLocked(node.ID)
		return nil, nil
	}
	if cfg == nil {
		cfg = node.Data.Config
	}
	branches := m.branchesLocked(node, cfg)

	have := map[string]bool{}
	for _, id := range m.byNode[node.ID] {
		have[m.lines[id].BranchID] = true
	}
	wanted := map[string]bool{}
	for _, b := range branches {
		wanted[b.ID] = true
	}
	m.removeMatchingLocked(node.ID, func(l *types.PreviewLine) bool {
		if len(branches) == 0 {
			return l.BranchID != ""
		}
		return !wanted[l.BranchID]
	})

	outs := node.OutputPorts()
	conns := realEdges(m.canvas.GetOutgoingEdges(node.ID))
	var errs []error

	if len(branches) == 0 {
		if !have[""] && len(conns) == 0 {
			p := m.geom.PreviewEndpoints(node.Bounds(), 1)[0]
			if err := m.addLineLocked(node, types.Branch{}, 0, portFor(outs, 0), p, false); err != nil {
				errs = append(errs, err)
			}
		}
		return m.linesForLocked(node.ID), errors.Join(errs...)
	}

	points := m.geom.PreviewEndpoints(node.Bounds(), len(branches))
	for i, b := range branches {
		port := portFor(outs, i)
		if have[b.ID] || branchConnected(conns, b.ID, port) {
			continue
		}
		if err := m.addLineLocked(node, b, i, port, points[i], len(branches) > 1); err != nil {
			errs = append(errs, err)
		}
	}
	return m.linesForLocked(node.ID), errors.Join(errs...)
}

// branchesLocked returns the node's normalized branches, or derives them
// from cfg. Derived branches are cached until the node's data changes.
func (m *Manager) branchesLocked(node *types.Node, cfg map[string]any) []types.Branch {
	if node.Data != nil && len(node.Data.Branches) > 0 {
		return slices.Clone(node.Data.Branches)
	}
	if m.deriver == nil {
		return nil
	}
	key := branchKey(node)
	if v, ok := m.cache.Get(key); ok {
		if bs, ok := v.([]types.Branch); ok {
			m.monitor.RecordCacheHit(key, nil)
			return slices.Clone(bs)
		}
	}
	m.monitor.RecordCacheMiss(key, nil)

	bs := m.deriver.DeriveBranches(node.NodeType(), cfg)
	m.cache.Set(key, slices.Clone(bs), cache.WithTTL(m.cfg.BranchCacheTTL))
	return bs
}

func branchKeyPrefix(nodeID string) string { return "branches:" + nodeID + ":" }

func branchKey(node *types.Node) string {
	var stamp int64
	if node.Data != nil {
		stamp = node.Data.LastUpdated.UnixNano()
	}
	return branchKeyPrefix(node.ID) + strconv.FormatInt(stamp, 10)
}

func boundsKey(nodeID string) string { return "bounds:" + nodeID }

// addLineLocked creates a free line, its preview edge, and its hint node.
func (m *Manager) addLineLocked(node *types.Node, b types.Branch, index int, port string, p types.Point, labeled bool) error {
	colorIndex := index
	if b.ID != "" {
		colorIndex = b.ColorIndex
	}
	line := &types.PreviewLine{
		ID:           m.newID(),
		SourceNodeID: node.ID,
		SourcePortID: port,
		BranchID:     b.ID,
		BranchName:   b.Name,
		BranchIndex:  index,
		Color:        ColorFor(colorIndex),
		Endpoint:     types.FreeEndpoint(p),
		State:        types.DragStateFree,
		CreatedAt:    m.now(),
	}
	edge := &types.Edge{
		ID:     line.ID,
		Source: types.BoundEndpoint(node.ID, port),
		Target: types.FreeEndpoint(p),
		Data: types.EdgeData{
			Type:         types.EdgeTypePreview,
			SourceNodeID: node.ID,
			BranchID:     b.ID,
			BranchIndex:  index,
		},
		Style: types.EdgeStyle{Stroke: line.Color, StrokeWidth: lineStrokeWidth, Dashed: true},
	}
	if labeled {
		edge.Label = b.Name
	}
	if err := m.canvas.AddEdge(edge); err != nil {
		return fmt.Errorf("add preview edge for %s: %w", node.ID, err)
	}
	if err := m.canvas.AddNode(hintNode(line, p)); err != nil {
		_ = m.canvas.RemoveEdge(edge.ID)
		return fmt.Errorf("add hint node for %s: %w", node.ID, err)
	}

	m.lines[line.ID] = line
	m.byNode[node.ID] = append(m.byNode[node.ID], line.ID)
	m.created++
	m.log.Debug().Str("node_id", node.ID).Str("line_id", line.ID).Str("branch_id", b.ID).Msg("preview line created")
	return nil
}

func hintNode(line *types.PreviewLine, p types.Point) *types.Node {
	return &types.Node{
		ID:       line.HintNodeID(),
		Type:     types.NodeTypeDragHint,
		Position: hintPosition(p),
		Size:     types.Size{Width: hintSize, Height: hintSize},
		Visual:   types.Visual{FillColor: line.Color, StrokeColor: "#fff"},
		Data: &types.NodeData{
			NodeType: types.NodeTypeDragHint,
			Hint: &types.HintData{
				Type:          types.NodeTypeDragHint,
				BranchIndex:   line.BranchIndex,
				PreviewLineID: line.ID,
				SourceNodeID:  line.SourceNodeID,
			},
		},
	}
}

// hintPosition centers the hint node on p.
func hintPosition(p types.Point) types.Point {
	return p.Add(-hintSize/2, -hintSize/2)
}

// removeLineLocked removes a line with its edge and hint node.
func (m *Manager) removeLineLocked(id string) {
	line, ok := m.lines[id]
	if !ok {
		return
	}
	if err := m.removeHintLocked(line.HintNodeID()); err != nil && !errors.Is(err, types.ErrNodeNotFound) {
		m.log.Warn().Err(err).Str("line_id", id).Msg("remove hint node failed")
	}
	if err := m.canvas.RemoveEdge(id); err != nil && !errors.Is(err, types.ErrEdgeNotFound) {
		m.log.Warn().Err(err).Str("line_id", id).Msg("remove preview edge failed")
	}
	delete(m.lines, id)
	ids := slices.DeleteFunc(m.byNode[line.SourceNodeID], func(s string) bool { return s == id })
	if len(ids) == 0 {
		delete(m.byNode, line.SourceNodeID)
	} else {
		m.byNode[line.SourceNodeID] = ids
	}
	if m.drag != nil && m.drag.lineID == id {
		m.drag = nil
	}
	m.deleted++
}

// removeHintLocked deletes a hint node without handling the node:removed
// event it raises.
func (m *Manager) removeHintLocked(id string) error {
	defer m.claim(id)()
	return m.canvas.RemoveNode(id)
}

func (m *Manager) removeNodeLinesLocked(nodeID string) int {
	return m.removeMatchingLocked(nodeID, func(*types.PreviewLine) bool { return true })
}

func (m *Manager) removeMatchingLocked(nodeID string, match func(*types.PreviewLine) bool) int {
	var doomed []string
	for _, id := range m.byNode[nodeID] {
		if match(m.lines[id]) {
			doomed = append(doomed, id)
		}
	}
	for _, id := range doomed {
		m.removeLineLocked(id)
	}
	return len(doomed)
}

// portFor returns the out port serving branch index i.
func portFor(outs []types.Port, i int) string {
	switch {
	case i < len(outs):
		return outs[i].ID
	case len(outs) > 0:
		return outs[0].ID
	}
	return "out"
}

func realEdges(edges []*types.Edge) []*types.Edge {
	return slices.DeleteFunc(slices.Clone(edges), func(e *types.Edge) bool { return e.IsPreview() })
}

// branchConnected reports whether a real edge already leaves the branch,
// matched by branch id or by the branch's port.
func branchConnected(conns []*types.Edge, branchID, port string) bool {
	for _, e := range conns {
		if e.Data.BranchID != "" {
			if e.Data.BranchID == branchID {
				return true
			}
			continue
		}
		if e.Source.PortID == port {
			return true
		}
	}
	return false
}
