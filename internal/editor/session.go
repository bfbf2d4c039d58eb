// Package editor wires the journey core into one session: the canvas, the
// node configuration manager, the layout engine, the cache, the monitor,
// and the preview line manager are built once here and shared by
// reference.
package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/journey/internal/cache"
	"github.com/mesh-intelligence/journey/internal/canvas"
	"github.com/mesh-intelligence/journey/internal/layout"
	"github.com/mesh-intelligence/journey/internal/nodeconfig"
	"github.com/mesh-intelligence/journey/internal/perf"
	"github.com/mesh-intelligence/journey/internal/preview"
	"github.com/mesh-intelligence/journey/internal/schedule"
	"github.com/mesh-intelligence/journey/internal/sqlite"
	"github.com/mesh-intelligence/journey/pkg/types"
)

// Default node size on the canvas.
const (
	nodeWidth  = 120
	nodeHeight = 40
)

// Session is one editing session over a journey canvas.
type Session struct {
	cfg     types.Config
	clock   schedule.Clock
	log     zerolog.Logger
	newID   func() string
	store   *sqlite.Store
	started bool

	canvas  *canvas.Graph
	configs *nodeconfig.Manager
	layout  *layout.Engine
	cache   *cache.Manager
	monitor *perf.Monitor
	preview *preview.Manager
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the clock shared by every component.
func WithClock(c schedule.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithLogger sets the logger shared by every component.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithStore loads the canvas from st on Init and enables Save. The store
// must already be attached.
func WithStore(st *sqlite.Store) Option {
	return func(s *Session) { s.store = st }
}

// WithIDGenerator replaces the UUID v7 generator used for node, edge, and
// preview line ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Session) { s.newID = fn }
}

// New builds a session from cfg. Nothing runs until Init.
func New(cfg types.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	s := &Session{
		cfg:   cfg,
		clock: schedule.Real(),
		log:   zerolog.Nop(),
		newID: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, opt := range opts {
		opt(s)
	}

	s.canvas = canvas.New()
	s.cache = cache.New(cfg.Cache, cache.WithClock(s.clock), cache.WithLogger(s.log))
	s.monitor = perf.New(cfg.Monitor, perf.WithClock(s.clock), perf.WithLogger(s.log))
	s.layout = layout.New(cfg.Layout,
		layout.WithClock(s.clock),
		layout.WithLogger(s.log),
		layout.WithEvents(s.canvas),
	)
	s.configs = nodeconfig.NewManager(
		nodeconfig.WithClock(s.clock),
		nodeconfig.WithLogger(s.log),
		nodeconfig.WithLayoutConfig(cfg.Layout),
	)
	s.preview = preview.New(s.canvas, s.configs, s.layout, cfg.Preview,
		preview.WithClock(s.clock),
		preview.WithLogger(s.log),
		preview.WithCache(s.cache),
		preview.WithMonitor(s.monitor),
		preview.WithIDGenerator(s.newID),
	)
	return s, nil
}

// Init starts the layout engine, loads the stored journey when a store is
// set, and creates preview lines for every configured node. It returns the
// number of lines created. Calling Init twice has no effect.
func (s *Session) Init(ctx context.Context) (int, error) {
	if s.started {
		return 0, nil
	}
	if err := s.layout.Init(ctx); err != nil {
		return 0, fmt.Errorf("starting layout engine: %w", err)
	}
	if s.store != nil {
		nodes, edges, err := s.store.LoadCanvas(s.canvas)
		if err != nil {
			s.layout.Close()
			return 0, fmt.Errorf("loading journey: %w", err)
		}
		s.log.Debug().Int("nodes", nodes).Int("edges", edges).Msg("journey loaded")
	}
	s.started = true
	return s.preview.Init(), nil
}

// Destroy tears the session down. The store, if any, stays attached. A
// destroyed session cannot be started again.
func (s *Session) Destroy() {
	if s.started {
		s.preview.Destroy()
		s.started = false
	}
	s.layout.Close()
	s.cache.Close()
}

// Canvas returns the session canvas.
func (s *Session) Canvas() *canvas.Graph { return s.canvas }

// Preview returns the preview line manager.
func (s *Session) Preview() *preview.Manager { return s.preview }

// Configs returns the node configuration manager.
func (s *Session) Configs() *nodeconfig.Manager { return s.configs }

// Monitor returns the performance monitor.
func (s *Session) Monitor() *perf.Monitor { return s.monitor }

// Cache returns the shared cache.
func (s *Session) Cache() *cache.Manager { return s.cache }

// Layout returns the layout engine.
func (s *Session) Layout() *layout.Engine { return s.layout }

// AddNode places a new node of nodeType at p. An empty id is generated.
// Start nodes get no input port and end nodes get no output port.
func (s *Session) AddNode(id, nodeType string, p types.Point) (*types.Node, error) {
	if nodeType == "" || nodeType == types.NodeTypeDragHint {
		return nil, fmt.Errorf("cannot add node of type %q: %w", nodeType, types.ErrInvalidConfig)
	}
	if id == "" {
		id = s.newID()
	}
	n := &types.Node{
		ID:       id,
		Type:     nodeType,
		Position: p,
		Size:     types.Size{Width: nodeWidth, Height: nodeHeight},
		Data:     &types.NodeData{NodeType: nodeType},
	}
	if nodeType != types.NodeTypeStart {
		n.Ports = append(n.Ports, types.Port{ID: "in", Group: types.PortGroupIn})
	}
	if nodeType != types.NodeTypeEnd {
		n.Ports = append(n.Ports, types.Port{ID: "out1", Group: types.PortGroupOut})
	}
	if err := s.canvas.AddNode(n); err != nil {
		return nil, err
	}
	return n, nil
}

// Connect adds a real edge from source's port to target's first input
// port. An empty sourcePort uses the source's first output port.
func (s *Session) Connect(sourceID, sourcePort, targetID string) (*types.Edge, error) {
	src, ok := s.canvas.GetNode(sourceID)
	if !ok {
		return nil, fmt.Errorf("source %s: %w", sourceID, types.ErrNodeNotFound)
	}
	tgt, ok := s.canvas.GetNode(targetID)
	if !ok {
		return nil, fmt.Errorf("target %s: %w", targetID, types.ErrNodeNotFound)
	}
	if sourcePort == "" {
		outs := src.OutputPorts()
		if len(outs) == 0 {
			return nil, fmt.Errorf("source %s has no output port: %w", sourceID, types.ErrPortNotFound)
		}
		sourcePort = outs[0].ID
	} else if _, ok := src.Port(sourcePort); !ok {
		return nil, fmt.Errorf("port %s on %s: %w", sourcePort, sourceID, types.ErrPortNotFound)
	}
	targetPort := "in"
	for _, p := range tgt.Ports {
		if p.Group == types.PortGroupIn {
			targetPort = p.ID
			break
		}
	}

	e := &types.Edge{
		ID:     s.newID(),
		Source: types.BoundEndpoint(sourceID, sourcePort),
		Target: types.BoundEndpoint(targetID, targetPort),
		Data: types.EdgeData{
			Type:         types.EdgeTypeConnection,
			SourceNodeID: sourceID,
			TargetNodeID: targetID,
		},
	}
	if src.Data != nil {
		outs := src.OutputPorts()
		for i, b := range src.Data.Branches {
			if i < len(outs) && outs[i].ID == sourcePort {
				e.Data.BranchID, e.Data.BranchIndex, e.Label = b.ID, i, b.Name
				break
			}
		}
	}
	if err := s.canvas.AddEdge(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Configure is the drawer contract: it runs the configuration pass for the
// node and then creates its preview lines exactly once. A rejected config
// returns a *nodeconfig.ValidationError and leaves the node untouched.
func (s *Session) Configure(ctx context.Context, nodeID string, cfg map[string]any) ([]types.PreviewLine, error) {
	node, ok := s.canvas.GetNode(nodeID)
	if !ok {
		return nil, fmt.Errorf("node %s: %w", nodeID, types.ErrNodeNotFound)
	}
	pctx := types.ProcessContext{Canvas: s.canvas, Layout: s.layout}
	if err := s.configs.ProcessNodeConfig(ctx, node.NodeType(), node, cfg, pctx); err != nil {
		var verr *nodeconfig.ValidationError
		if !errors.As(err, &verr) {
			s.monitor.RecordError("config", err, map[string]any{"nodeId": nodeID})
		}
		return nil, err
	}
	return s.preview.OnNodeConfigured(nodeID, node.Data.Config)
}

// Cancel restores the node's preview lines after an abandoned edit.
func (s *Session) Cancel(nodeID string) ([]types.PreviewLine, error) {
	node, ok := s.canvas.GetNode(nodeID)
	if !ok {
		return nil, fmt.Errorf("node %s: %w", nodeID, types.ErrNodeNotFound)
	}
	return s.preview.RestorePreviewLinesAfterCancel(node)
}

// Save writes the real graph to the store.
func (s *Session) Save() (sqlite.Snapshot, error) {
	if s.store == nil {
		return sqlite.Snapshot{}, types.ErrStoreDetached
	}
	return s.store.SaveCanvas(s.canvas)
}
