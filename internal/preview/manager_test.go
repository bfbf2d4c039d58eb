package preview

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/journey/internal/canvas"
	"github.com/mesh-intelligence/journey/internal/layout"
	"github.com/mesh-intelligence/journey/internal/nodeconfig"
	"github.com/mesh-intelligence/journey/internal/schedule"
	"github.com/mesh-intelligence/journey/pkg/types"
)

type harness struct {
	graph  *canvas.Graph
	config *nodeconfig.Manager
	engine *layout.Engine
	clock  *schedule.ManualClock
	mgr    *Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithGeometry(t, nil)
}

// newHarnessWithGeometry builds a harness whose manager places endpoints
// through wrap(engine) when wrap is set.
func newHarnessWithGeometry(t *testing.T, wrap func(Geometry) Geometry) *harness {
	t.Helper()
	clock := schedule.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	lcfg := types.DefaultLayoutConfig()
	lcfg.InitDelay = 0
	h := &harness{
		graph:  canvas.New(),
		config: nodeconfig.NewManager(nodeconfig.WithClock(clock), nodeconfig.WithLayoutConfig(lcfg)),
		engine: layout.New(lcfg, layout.WithClock(clock)),
		clock:  clock,
	}
	var geom Geometry = h.engine
	if wrap != nil {
		geom = wrap(h.engine)
	}
	seq := 0
	h.mgr = New(h.graph, h.config, geom, types.DefaultPreviewConfig(),
		WithClock(clock),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	)
	h.mgr.Init()
	t.Cleanup(func() {
		h.mgr.Destroy()
		h.engine.Close()
	})
	return h
}

func (h *harness) addNode(t *testing.T, id, nodeType string, at types.Point) *types.Node {
	t.Helper()
	n := &types.Node{
		ID:       id,
		Type:     nodeType,
		Position: at,
		Size:     types.Size{Width: 100, Height: 40},
		Ports:    []types.Port{{ID: "in", Group: types.PortGroupIn}, {ID: "out1", Group: types.PortGroupOut}},
	}
	require.NoError(t, h.graph.AddNode(n))
	return n
}

// configure runs the drawer contract: process the config, then create lines
// once through OnNodeConfigured.
func (h *harness) configure(t *testing.T, node *types.Node, cfg map[string]any) []types.PreviewLine {
	t.Helper()
	pctx := types.ProcessContext{Canvas: h.graph, Layout: h.engine}
	require.NoError(t, h.config.ProcessNodeConfig(context.Background(), node.Type, node, cfg, pctx))
	lines, err := h.mgr.OnNodeConfigured(node.ID, cfg)
	require.NoError(t, err)
	return lines
}

func (h *harness) previewEdges() []*types.Edge {
	var out []*types.Edge
	for _, e := range h.graph.GetEdges() {
		if e.IsPreview() {
			out = append(out, e)
		}
	}
	return out
}

func (h *harness) hintNodes() []*types.Node {
	var out []*types.Node
	for _, n := range h.graph.GetNodes() {
		if n.IsHint() {
			out = append(out, n)
		}
	}
	return out
}

func crowdConfig() map[string]any {
	return map[string]any{"crowdLayers": []any{
		map[string]any{"id": "a", "crowdName": "VIP"},
		map[string]any{"id": "b", "crowdName": "New"},
	}}
}

func TestShouldCreatePreviewLine(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name string
		node *types.Node
		want bool
	}{
		{"nil node", nil, false},
		{"nil data", &types.Node{ID: "n"}, false},
		{"absent config", &types.Node{ID: "n", Data: &types.NodeData{IsConfigured: true}}, false},
		{"empty config", &types.Node{ID: "n", Data: &types.NodeData{IsConfigured: true, Config: map[string]any{}}}, false},
		{"only blank values", &types.Node{ID: "n", Data: &types.NodeData{IsConfigured: true, Config: map[string]any{"a": "", "b": nil}}}, false},
		{"not configured", &types.Node{ID: "n", Data: &types.NodeData{Config: map[string]any{"nodeName": "x"}}}, false},
		{"configured with config", &types.Node{ID: "n", Data: &types.NodeData{IsConfigured: true, Config: map[string]any{"nodeName": "x"}}}, true},
		{"zero is meaningful", &types.Node{ID: "n", Data: &types.NodeData{IsConfigured: true, Config: map[string]any{"duration": 0}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.mgr.ShouldCreatePreviewLine(tt.node))
		})
	}
}

func TestSplitNodeGetsOneLinePerBranch(t *testing.T) {
	h := newHarness(t)
	node := h.addNode(t, "split", types.NodeTypeAudienceSplit, types.Point{})
	lines := h.configure(t, node, crowdConfig())

	want := h.config.DeriveBranches(types.NodeTypeAudienceSplit, crowdConfig())
	require.Len(t, lines, len(want))
	require.Len(t, lines, 3)
	assert.Len(t, h.previewEdges(), 3)
	assert.Len(t, h.hintNodes(), 3)

	wantX := []float64{-30, 50, 130}
	colors := map[string]bool{}
	for i, l := range lines {
		assert.Equal(t, want[i].ID, l.BranchID)
		assert.Equal(t, i, l.BranchIndex)
		assert.Equal(t, fmt.Sprintf("out%d", i+1), l.SourcePortID)
		assert.Equal(t, types.DragStateFree, l.State)
		p, ok := l.FreePoint()
		require.True(t, ok)
		assert.Equal(t, types.Point{X: wantX[i], Y: 140}, p)
		colors[l.Color] = true

		hint, ok := h.graph.GetNode(l.HintNodeID())
		require.True(t, ok)
		assert.Equal(t, p.Add(-6, -6), hint.Position)
		assert.Equal(t, l.ID, hint.Data.Hint.PreviewLineID)
		assert.Equal(t, i, hint.Data.Hint.BranchIndex)

		edge, ok := h.graph.GetEdge(l.ID)
		require.True(t, ok)
		assert.Equal(t, want[i].Name, edge.Label)
		assert.Equal(t, want[i].ID, edge.Data.BranchID)
	}
	assert.Len(t, colors, 3, "each branch gets its own color")
}

func TestEmptyCrowdLayersKeepDefaultBranch(t *testing.T) {
	h := newHarness(t)
	node := h.addNode(t, "split", types.NodeTypeAudienceSplit, types.Point{})
	lines := h.configure(t, node, map[string]any{"crowdLayers": []any{}})
	require.Len(t, lines, 1)
	assert.Equal(t, types.DefaultBranchID, lines[0].BranchID)
}

func TestReconfigureReplacesLines(t *testing.T) {
	h := newHarness(t)
	node := h.addNode(t, "ab", types.NodeTypeABTest, types.Point{})
	first := h.configure(t, node, map[string]any{"groupARatio": 50, "groupBRatio": 50})
	require.Len(t, first, 2)

	h.clock.Advance(time.Second)
	second := h.configure(t, node, map[string]any{"versions": []any{
		map[string]any{"id": "v1"}, map[string]any{"id": "v2"}, map[string]any{"id": "v3"},
	}})
	require.Len(t, second, 3)
	assert.Len(t, h.previewEdges(), 3)
	assert.Len(t, h.hintNodes(), 3)
	_, ok := h.mgr.Line(first[0].ID)
	assert.False(t, ok, "old lines are recreated, not mutated")
}

func TestCreateNeverResetsConfigured(t *testing.T) {
	h := newHarness(t)
	node := h.addNode(t, "sms", types.NodeTypeSMS, types.Point{})
	h.configure(t, node, map[string]any{"nodeName": "hello"})
	require.True(t, node.IsConfigured())

	for i := 0; i < 3; i++ {
		lines, err := h.mgr.CreatePreviewLineAfterConfig(node, map[string]any{})
		require.NoError(t, err)
		assert.Len(t, lines, 1)
		assert.True(t, node.IsConfigured())
	}
	_, err := h.mgr.CreateDraggablePreviewLine(node)
	require.NoError(t, err)
	assert.True(t, node.IsConfigured())
	assert.Len(t, h.mgr.PreviewLinesFor("sms"), 1)
}

func TestNodesWithoutLines(t *testing.T) {
	h := newHarness(t)

	unconfigured := h.addNode(t, "raw", types.NodeTypeSMS, types.Point{})
	lines, err := h.mgr.CreateDraggablePreviewLine(unconfigured)
	require.NoError(t, err)
	assert.Empty(t, lines)

	end := h.addNode(t, "end", types.NodeTypeEnd, types.Point{X: 300})
	assert.Empty(t, h.configure(t, end, map[string]any{"nodeName": "bye"}))

	_, err = h.mgr.OnNodeConfigured("ghost", nil)
	assert.ErrorIs(t, err, types.ErrNodeNotFound)
	_, err = h.mgr.CreatePreviewLineAfterConfig(nil, nil)
	assert.ErrorIs(t, err, types.ErrNodeNotFound)

	assert.Empty(t, h.mgr.PreviewLines())
}

func TestUnconfiguredNodeLosesLines(t *testing.T) {
	h := newHarness(t)
	node := h.addNode(t, "sms", types.NodeTypeSMS, types.Point{})
	h.configure(t, node, map[string]any{"nodeName": "x"})

	node.Unconfigure()
	lines, err := h.mgr.CreateDraggablePreviewLine(node)
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Empty(t, h.hintNodes())
	assert.Empty(t, h.previewEdges())
}

func TestDragOntoTargetConnects(t *testing.T) {
	h := newHarness(t)
	src := h.addNode(t, "src", types.NodeTypeSMS, types.Point{})
	dst := h.addNode(t, "dst", types.NodeTypeWait, types.Point{X: 300, Y: 300})
	lines := h.configure(t, src, map[string]any{"nodeName": "hello"})
	require.Len(t, lines, 1)
	line := lines[0]

	got, err := h.mgr.StartDrag(line.HintNodeID())
	require.NoError(t, err)
	assert.Equal(t, types.DragStateDragging, got.State)

	drop := types.Point{X: 350, Y: 320}
	require.NoError(t, h.mgr.DragMove(drop))
	hint, ok := h.graph.GetNode(line.HintNodeID())
	require.True(t, ok)
	assert.Equal(t, types.Point{X: 344, Y: 314}, hint.Position)
	pe, ok := h.graph.GetEdge(line.ID)
	require.True(t, ok)
	assert.Equal(t, drop, *pe.Target.Point)
	target, ok := h.mgr.HighlightedTarget()
	require.True(t, ok)
	assert.Equal(t, dst.ID, target)

	edge, err := h.mgr.EndDrag(drop)
	require.NoError(t, err)
	require.NotNil(t, edge)
	assert.Equal(t, types.EdgeTypeConnection, edge.Data.Type)
	assert.Equal(t, "src", edge.Data.SourceNodeID)
	assert.Equal(t, "dst", edge.Data.TargetNodeID)
	assert.Equal(t, types.BoundEndpoint("src", "out1"), edge.Source)
	assert.Equal(t, types.BoundEndpoint("dst", "in"), edge.Target)

	assert.Empty(t, h.mgr.PreviewLinesFor("src"))
	assert.Empty(t, h.hintNodes())
	assert.Empty(t, h.previewEdges())
	_, active := h.mgr.ActiveDrag()
	assert.False(t, active)

	// Deleting the connection brings the line back.
	require.NoError(t, h.graph.RemoveEdge(edge.ID))
	assert.Len(t, h.mgr.PreviewLinesFor("src"), 1)
	assert.Len(t, h.hintNodes(), 1)
}

func TestDropOnEmptyCanvasFreesLine(t *testing.T) {
	h := newHarness(t)
	src := h.addNode(t, "src", types.NodeTypeSMS, types.Point{})
	line := h.configure(t, src, map[string]any{"nodeName": "hello"})[0]

	_, err := h.mgr.StartDrag(line.ID)
	require.NoError(t, err)
	drop := types.Point{X: 1000, Y: 1000}
	edge, err := h.mgr.EndDrag(drop)
	require.NoError(t, err)
	assert.Nil(t, edge)

	got, ok := h.mgr.Line(line.ID)
	require.True(t, ok)
	assert.Equal(t, types.DragStateFree, got.State)
	assert.True(t, got.ManuallyAdjusted)
	p, _ := got.FreePoint()
	assert.Equal(t, drop, p)
	hint, _ := h.graph.GetNode(line.HintNodeID())
	assert.Equal(t, types.Point{X: 994, Y: 994}, hint.Position)
}

func TestDropOnSourceDoesNotConnect(t *testing.T) {
	h := newHarness(t)
	src := h.addNode(t, "src", types.NodeTypeSMS, types.Point{})
	line := h.configure(t, src, map[string]any{"nodeName": "hello"})[0]

	_, err := h.mgr.StartDrag(line.ID)
	require.NoError(t, err)
	edge, err := h.mgr.EndDrag(types.Point{X: 50, Y: 20})
	require.NoError(t, err)
	assert.Nil(t, edge)
	assert.Len(t, h.mgr.PreviewLinesFor("src"), 1)
}

func TestDragErrors(t *testing.T) {
	h := newHarness(t)
	src := h.addNode(t, "src", types.NodeTypeSMS, types.Point{})
	line := h.configure(t, src, map[string]any{"nodeName": "hello"})[0]

	assert.ErrorIs(t, h.mgr.DragMove(types.Point{}), types.ErrNoActiveDrag)
	_, err := h.mgr.EndDrag(types.Point{})
	assert.ErrorIs(t, err, types.ErrNoActiveDrag)
	assert.ErrorIs(t, h.mgr.CancelDrag(), types.ErrNoActiveDrag)
	_, err = h.mgr.StartDrag("nope")
	assert.ErrorIs(t, err, types.ErrLineNotFound)

	_, err = h.mgr.StartDrag(line.ID)
	require.NoError(t, err)
	require.NoError(t, h.mgr.DragMove(types.Point{X: 500, Y: 500}))
	require.NoError(t, h.mgr.CancelDrag())

	got, _ := h.mgr.Line(line.ID)
	assert.Equal(t, types.DragStateFree, got.State)
	p, _ := got.FreePoint()
	assert.Equal(t, types.Point{X: 500, Y: 500}, p)
}

func TestHoverHighlightIsThrottled(t *testing.T) {
	h := newHarness(t)
	src := h.addNode(t, "src", types.NodeTypeSMS, types.Point{})
	h.addNode(t, "dst", types.NodeTypeWait, types.Point{X: 300, Y: 300})
	line := h.configure(t, src, map[string]any{"nodeName": "hello"})[0]

	_, err := h.mgr.StartDrag(line.ID)
	require.NoError(t, err)
	require.NoError(t, h.mgr.DragMove(types.Point{X: 350, Y: 320}))
	target, ok := h.mgr.HighlightedTarget()
	require.True(t, ok)
	assert.Equal(t, "dst", target)

	require.NoError(t, h.mgr.DragMove(types.Point{X: 900, Y: 900}))
	_, ok = h.mgr.HighlightedTarget()
	assert.True(t, ok, "inside the throttle window the highlight is stale")

	h.clock.Advance(20 * time.Millisecond)
	_, ok = h.mgr.HighlightedTarget()
	assert.False(t, ok, "the last move of the window is applied when it closes")

	require.NoError(t, h.mgr.DragMove(types.Point{X: 350, Y: 320}))
	require.NoError(t, h.mgr.DragMove(types.Point{X: 900, Y: 900}))
	require.NoError(t, h.mgr.DragMove(types.Point{X: 340, Y: 310}))
	h.clock.Advance(20 * time.Millisecond)
	target, ok = h.mgr.HighlightedTarget()
	require.True(t, ok)
	assert.Equal(t, "dst", target)
	edge, _ := h.graph.GetEdge(line.ID)
	assert.True(t, edge.Style.Highlighted)

	require.NoError(t, h.mgr.DragMove(types.Point{X: 360, Y: 330}))
	_, err = h.mgr.EndDrag(types.Point{X: 900, Y: 900})
	require.NoError(t, err)
	h.clock.Advance(20 * time.Millisecond)
	edge, _ = h.graph.GetEdge(line.ID)
	assert.False(t, edge.Style.Highlighted, "a trailing refresh after the drop does nothing")
}

func TestExternalEdgeSupersedesBranchLine(t *testing.T) {
	h := newHarness(t)
	node := h.addNode(t, "split", types.NodeTypeAudienceSplit, types.Point{})
	h.addNode(t, "dst", types.NodeTypeWait, types.Point{X: 300, Y: 300})
	h.configure(t, node, crowdConfig())

	require.NoError(t, h.graph.AddEdge(&types.Edge{
		ID:     "real",
		Source: types.BoundEndpoint("split", "out2"),
		Target: types.BoundEndpoint("dst", "in"),
		Data:   types.EdgeData{Type: types.EdgeTypeConnection, SourceNodeID: "split", TargetNodeID: "dst", BranchID: "b"},
	}))
	lines := h.mgr.PreviewLinesFor("split")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"a", types.DefaultBranchID}, []string{lines[0].BranchID, lines[1].BranchID})

	lines, err := h.mgr.CreateDraggablePreviewLine(node)
	require.NoError(t, err)
	assert.Len(t, lines, 2, "connected branches stay without a line")

	assert.Equal(t, 1, h.mgr.OnNodeConnected("split", "a"))
	assert.True(t, h.mgr.RemoveBranchPreviewLine("split", types.DefaultBranchID))
	assert.False(t, h.mgr.RemoveBranchPreviewLine("split", types.DefaultBranchID))
	assert.Empty(t, h.mgr.PreviewLinesFor("split"))
}

func TestNodeDeletionRestoresUpstreamLines(t *testing.T) {
	h := newHarness(t)
	src := h.addNode(t, "src", types.NodeTypeSMS, types.Point{})
	h.addNode(t, "dst", types.NodeTypeWait, types.Point{X: 300, Y: 300})
	line := h.configure(t, src, map[string]any{"nodeName": "hello"})[0]

	_, err := h.mgr.StartDrag(line.ID)
	require.NoError(t, err)
	edge, err := h.mgr.EndDrag(types.Point{X: 350, Y: 320})
	require.NoError(t, err)
	require.NotNil(t, edge)
	require.Empty(t, h.mgr.PreviewLinesFor("src"))

	require.NoError(t, h.graph.RemoveNode("dst"))
	assert.Len(t, h.mgr.PreviewLinesFor("src"), 1)
	assert.Len(t, h.hintNodes(), 1)

	require.NoError(t, h.graph.RemoveNode("src"))
	assert.Empty(t, h.mgr.PreviewLines())
	assert.Empty(t, h.hintNodes())
}

func TestRestoreAfterNodeDeletionDirect(t *testing.T) {
	h := newHarness(t)
	src := h.addNode(t, "src", types.NodeTypeSMS, types.Point{})
	h.configure(t, src, map[string]any{"nodeName": "hello"})
	h.mgr.RemovePreviewLines("src")

	restored := h.mgr.RestorePreviewLinesAfterNodeDeletion("gone", []*types.Edge{
		{ID: "e", Source: types.BoundEndpoint("src", "out1"), Target: types.BoundEndpoint("gone", "in")},
		{ID: "p", Source: types.BoundEndpoint("src", "out1"), Data: types.EdgeData{Type: types.EdgeTypePreview}},
	})
	require.Len(t, restored, 1)
	assert.Equal(t, "src", restored[0].SourceNodeID)
}

func TestRestoreAfterCancel(t *testing.T) {
	h := newHarness(t)
	a := h.addNode(t, "a", types.NodeTypeEventSplit, types.Point{})
	b := h.addNode(t, "b", types.NodeTypeSMS, types.Point{X: 400})
	h.configure(t, a, map[string]any{"eventType": "open"})
	h.configure(t, b, map[string]any{"nodeName": "b"})
	assert.Equal(t, 2, h.mgr.RemovePreviewLines("a"))
	assert.Equal(t, 1, h.mgr.RemovePreviewLines("b"))

	lines, err := h.mgr.RestorePreviewLinesAfterCancel(a)
	require.NoError(t, err)
	assert.Len(t, lines, 2)
	assert.Len(t, h.mgr.PreviewLinesFor("b"), 1, "other configured nodes are restored too")

	raw := h.addNode(t, "raw", types.NodeTypeSMS, types.Point{X: 800})
	lines, err = h.mgr.RestorePreviewLinesAfterCancel(raw)
	require.NoError(t, err)
	assert.Empty(t, lines)

	_, err = h.mgr.RestorePreviewLinesAfterCancel(nil)
	assert.ErrorIs(t, err, types.ErrNodeNotFound)
}

func TestValidateNodeConfiguration(t *testing.T) {
	h := newHarness(t)
	node := h.addNode(t, "split", types.NodeTypeAudienceSplit, types.Point{})

	check := h.mgr.ValidateNodeConfiguration(node, "", nil)
	assert.False(t, check.IsConfigured)
	assert.Equal(t, []string{ReasonNoData}, check.Reasons)

	check = h.mgr.ValidateNodeConfiguration(node, "", &types.NodeData{Config: map[string]any{}})
	assert.ElementsMatch(t, []string{ReasonNotConfigured, ReasonEmptyConfig}, check.Reasons)

	h.configure(t, node, crowdConfig())
	check = h.mgr.ValidateNodeConfiguration(node, types.NodeTypeAudienceSplit, nil)
	assert.True(t, check.IsConfigured)
	assert.Empty(t, check.Reasons)

	assert.Equal(t, []string{ReasonNoNode}, h.mgr.ValidateNodeConfiguration(nil, "", nil).Reasons)
}

func TestClearAllPreviewLines(t *testing.T) {
	h := newHarness(t)
	a := h.addNode(t, "a", types.NodeTypeABTest, types.Point{})
	b := h.addNode(t, "b", types.NodeTypeSMS, types.Point{X: 400})
	h.configure(t, a, map[string]any{})
	h.configure(t, b, map[string]any{"nodeName": "b"})

	assert.Equal(t, 3, h.mgr.ClearAllPreviewLines())
	assert.Empty(t, h.mgr.PreviewLines())
	assert.Empty(t, h.previewEdges())
	assert.Empty(t, h.hintNodes())
	assert.True(t, a.IsConfigured())
	assert.Equal(t, 0, h.mgr.ClearAllPreviewLines())
}

func TestNodeMoveRefreshIsDebounced(t *testing.T) {
	h := newHarness(t)
	a := h.addNode(t, "a", types.NodeTypeSMS, types.Point{})
	b := h.addNode(t, "b", types.NodeTypeSMS, types.Point{X: 400})
	lineA := h.configure(t, a, map[string]any{"nodeName": "a"})[0]
	lineB := h.configure(t, b, map[string]any{"nodeName": "b"})[0]

	_, err := h.mgr.StartDrag(lineB.ID)
	require.NoError(t, err)
	_, err = h.mgr.EndDrag(types.Point{X: 1000, Y: 1000})
	require.NoError(t, err)

	require.NoError(t, h.graph.SetNodePosition("a", types.Point{X: 50}))
	require.NoError(t, h.graph.SetNodePosition("a", types.Point{X: 100}))
	require.NoError(t, h.graph.SetNodePosition("b", types.Point{X: 500}))
	got, _ := h.mgr.Line(lineA.ID)
	p, _ := got.FreePoint()
	assert.Equal(t, types.Point{X: 50, Y: 140}, p, "nothing moves before the debounce fires")

	h.clock.Advance(100 * time.Millisecond)
	got, _ = h.mgr.Line(lineA.ID)
	p, _ = got.FreePoint()
	assert.Equal(t, types.Point{X: 150, Y: 140}, p)
	hint, _ := h.graph.GetNode(lineA.HintNodeID())
	assert.Equal(t, types.Point{X: 144, Y: 134}, hint.Position)

	got, _ = h.mgr.Line(lineB.ID)
	p, _ = got.FreePoint()
	assert.Equal(t, types.Point{X: 1000, Y: 1000}, p, "hand-placed lines stay put")
}

func TestInitCoversExistingNodes(t *testing.T) {
	clock := schedule.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	graph := canvas.New()
	cfgMgr := nodeconfig.NewManager(nodeconfig.WithClock(clock))
	lcfg := types.DefaultLayoutConfig()
	lcfg.InitDelay = 0
	engine := layout.New(lcfg, layout.WithClock(clock))
	defer engine.Close()

	node := &types.Node{ID: "ev", Type: types.NodeTypeEventSplit, Size: types.Size{Width: 100, Height: 40}}
	require.NoError(t, graph.AddNode(node))
	require.NoError(t, cfgMgr.ProcessNodeConfig(context.Background(), node.Type, node, map[string]any{"eventType": "x"},
		types.ProcessContext{Canvas: graph, Layout: engine}))
	require.NoError(t, graph.AddNode(&types.Node{ID: "plain", Type: types.NodeTypeSMS}))

	mgr := New(graph, cfgMgr, engine, types.PreviewConfig{}, WithClock(clock))
	assert.Equal(t, 2, mgr.Init())
	assert.Equal(t, 0, mgr.Init())

	stats := mgr.Monitor().Statistics()
	assert.Equal(t, 2, stats.TotalPreviewLines)
	assert.Equal(t, 2, stats.HintNodes)
	assert.Equal(t, uint64(2), stats.CreatedCount)

	mgr.Destroy()
	assert.Empty(t, mgr.PreviewLines())
	for _, n := range graph.GetNodes() {
		assert.False(t, n.IsHint())
	}
}

func TestBranchLookupsAreCached(t *testing.T) {
	h := newHarness(t)
	node := h.addNode(t, "sms", types.NodeTypeSMS, types.Point{})
	h.configure(t, node, map[string]any{"nodeName": "x"})
	_, err := h.mgr.CreateDraggablePreviewLine(node)
	require.NoError(t, err)

	m := h.mgr.Monitor().Metrics()
	assert.Equal(t, uint64(1), m.CacheMisses)
	assert.Equal(t, uint64(1), m.CacheHits)
}

// gatedGeometry blocks the first armed endpoint lookup until release is
// closed, holding the manager's lock for that long.
type gatedGeometry struct {
	Geometry
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newGatedGeometry(g Geometry) *gatedGeometry {
	return &gatedGeometry{Geometry: g, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedGeometry) PreviewEndpoints(bounds types.Rect, count int) []types.Point {
	if g.armed.CompareAndSwap(true, false) {
		close(g.entered)
		<-g.release
	}
	return g.Geometry.PreviewEndpoints(bounds, count)
}

// whileLocked runs fn on another goroutine while the manager is busy
// creating lines for blocked, then lets creation finish and waits for both.
func whileLocked(t *testing.T, h *harness, gate *gatedGeometry, blocked *types.Node, cfg map[string]any, fn func()) {
	t.Helper()
	pctx := types.ProcessContext{Canvas: h.graph, Layout: h.engine}
	require.NoError(t, h.config.ProcessNodeConfig(context.Background(), blocked.Type, blocked, cfg, pctx))

	gate.armed.Store(true)
	var wg sync.WaitGroup
	var cfgErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, cfgErr = h.mgr.OnNodeConfigured(blocked.ID, cfg)
	}()
	<-gate.entered
	go func() {
		defer wg.Done()
		fn()
	}()
	time.Sleep(20 * time.Millisecond)
	close(gate.release)
	wg.Wait()
	require.NoError(t, cfgErr)
}

func TestEdgeRemovedDuringLineCreationRestoresLine(t *testing.T) {
	var gate *gatedGeometry
	h := newHarnessWithGeometry(t, func(g Geometry) Geometry {
		gate = newGatedGeometry(g)
		return gate
	})
	a := h.addNode(t, "a", types.NodeTypeSMS, types.Point{})
	b := h.addNode(t, "b", types.NodeTypeSMS, types.Point{X: 400})
	h.addNode(t, "c", types.NodeTypeWait, types.Point{X: 800})
	h.configure(t, b, map[string]any{"nodeName": "b"})
	require.NoError(t, h.graph.AddEdge(&types.Edge{
		ID:     "bc",
		Source: types.BoundEndpoint("b", "out1"),
		Target: types.BoundEndpoint("c", "in"),
		Data:   types.EdgeData{Type: types.EdgeTypeConnection, SourceNodeID: "b", TargetNodeID: "c"},
	}))
	require.Empty(t, h.mgr.PreviewLinesFor("b"))

	var removeErr error
	whileLocked(t, h, gate, a, map[string]any{"nodeName": "a"}, func() {
		removeErr = h.graph.RemoveEdge("bc")
	})
	require.NoError(t, removeErr)

	assert.Len(t, h.mgr.PreviewLinesFor("a"), 1)
	assert.Len(t, h.mgr.PreviewLinesFor("b"), 1, "the freed branch gets its line back")
	assert.Len(t, h.previewEdges(), 2)
	assert.Len(t, h.hintNodes(), 2)
}

func TestNodeMovedDuringLineCreationIsRefreshed(t *testing.T) {
	var gate *gatedGeometry
	h := newHarnessWithGeometry(t, func(g Geometry) Geometry {
		gate = newGatedGeometry(g)
		return gate
	})
	a := h.addNode(t, "a", types.NodeTypeSMS, types.Point{})
	b := h.addNode(t, "b", types.NodeTypeSMS, types.Point{X: 400})
	c := h.addNode(t, "c", types.NodeTypeSMS, types.Point{X: 800})
	lineA := h.configure(t, a, map[string]any{"nodeName": "a"})[0]
	lineB := h.configure(t, b, map[string]any{"nodeName": "b"})[0]

	// A drop on empty canvas runs a hit test that caches every node's bounds.
	_, err := h.mgr.StartDrag(lineA.ID)
	require.NoError(t, err)
	_, err = h.mgr.EndDrag(types.Point{X: 2000, Y: 2000})
	require.NoError(t, err)
	require.True(t, h.mgr.Cache().Has("bounds:b"))

	var moveErr error
	whileLocked(t, h, gate, c, map[string]any{"nodeName": "c"}, func() {
		moveErr = h.graph.SetNodePosition("b", types.Point{X: 500})
	})
	require.NoError(t, moveErr)
	assert.False(t, h.mgr.Cache().Has("bounds:b"))

	h.clock.Advance(100 * time.Millisecond)
	got, ok := h.mgr.Line(lineB.ID)
	require.True(t, ok)
	p, _ := got.FreePoint()
	assert.Equal(t, types.Point{X: 550, Y: 140}, p)
	assert.Len(t, h.mgr.PreviewLinesFor("c"), 1)
}

func TestFailedCreateCountsOneError(t *testing.T) {
	h := newHarness(t)
	ghost := &types.Node{ID: "ghost", Type: types.NodeTypeSMS, Data: &types.NodeData{IsConfigured: true, Config: map[string]any{"nodeName": "x"}}}

	_, err := h.mgr.CreatePreviewLineAfterConfig(ghost, ghost.Data.Config)
	require.Error(t, err)

	mt := h.mgr.Monitor().Metrics()
	assert.Equal(t, uint64(1), mt.LayoutExecutions)
	assert.Equal(t, uint64(1), mt.ErrorCount)
	assert.InDelta(t, 1.0, h.mgr.Monitor().ErrorRate(), 1e-9)
}

func TestRepeatedCrowdIDs(t *testing.T) {
	h := newHarness(t)
	dup := map[string]any{"crowdLayers": []any{
		map[string]any{"id": "a", "crowdName": "VIP"},
		map[string]any{"id": "a", "crowdName": "New"},
	}}

	rejected := h.addNode(t, "rejected", types.NodeTypeAudienceSplit, types.Point{X: 400})
	pctx := types.ProcessContext{Canvas: h.graph, Layout: h.engine}
	var verr *nodeconfig.ValidationError
	require.ErrorAs(t, h.config.ProcessNodeConfig(context.Background(), rejected.Type, rejected, dup, pctx), &verr)

	// A node loaded with such a config still gets one line per branch.
	node := &types.Node{
		ID:    "split",
		Type:  types.NodeTypeAudienceSplit,
		Size:  types.Size{Width: 100, Height: 40},
		Ports: []types.Port{{ID: "in", Group: types.PortGroupIn}, {ID: "out1", Group: types.PortGroupOut}},
		Data:  &types.NodeData{IsConfigured: true, Config: dup},
	}
	require.NoError(t, h.graph.AddNode(node))
	lines, err := h.mgr.CreatePreviewLineAfterConfig(node, nil)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	ids := map[string]bool{}
	for _, l := range lines {
		ids[l.BranchID] = true
	}
	assert.Len(t, ids, 3, "every line has its own branch")

	assert.True(t, h.mgr.RemoveBranchPreviewLine("split", "a"))
	assert.Len(t, h.mgr.PreviewLinesFor("split"), 2, "only the named branch loses its line")
}
