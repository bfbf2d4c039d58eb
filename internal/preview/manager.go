// Package preview owns the provisional connectors ("preview lines") that
// hang off configured nodes, and the drag-hint nodes that let the user pull
// a line onto a target.
//
// A Manager gates creation on the node's configuration state, keeps one
// line per branch of a split node (or one line for any other configured
// node) in step with the branch topology, and runs the drag state machine
// that turns a line into a real connection. It reacts to canvas events so
// that deleting an edge or a node brings back the lines it had replaced.
package preview

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/journey/internal/cache"
	"github.com/mesh-intelligence/journey/internal/perf"
	"github.com/mesh-intelligence/journey/internal/schedule"
	"github.com/mesh-intelligence/journey/pkg/types"
)

// BranchDeriver derives the branches a configuration implies for a node
// type without touching any node.
type BranchDeriver interface {
	DeriveBranches(nodeType string, cfg map[string]any) []types.Branch
}

// Geometry places the free endpoints of the preview lines leaving a node.
type Geometry interface {
	PreviewEndpoints(bounds types.Rect, count int) []types.Point
}

// Manager owns the preview lines and hint nodes on one canvas.
type Manager struct {
	canvas  types.Canvas
	deriver BranchDeriver
	geom    Geometry
	cfg     types.PreviewConfig

	clock      schedule.Clock
	log        zerolog.Logger
	cache      *cache.Manager
	ownsCache  bool
	monitor    *perf.Monitor
	newID      func() string
	refresh    *schedule.Debouncer
	hover      *schedule.Throttler
	handlerOff []func()

	// own counts the cells the manager is adding or removing itself. Events
	// about them are not handled again. Events about any other cell wait
	// for mu like every other caller.
	ownMu sync.Mutex
	own   map[string]int

	mu      sync.Mutex
	lines   map[string]*types.PreviewLine
	byNode  map[string][]string
	drag    *dragSession
	moved   map[string]struct{}
	created uint64
	deleted uint64
	started bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock used for timestamps, refresh debounce, and hover
// throttling.
func WithClock(c schedule.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l.With().Str("component", "preview").Logger() }
}

// WithCache shares a cache for branch and bounds lookups. Without it the
// manager creates and owns one.
func WithCache(c *cache.Manager) Option {
	return func(m *Manager) { m.cache = c }
}

// WithMonitor reports timings, cache traffic, and line statistics to mon.
func WithMonitor(mon *perf.Monitor) Option {
	return func(m *Manager) { m.monitor = mon }
}

// WithIDGenerator overrides how preview line and connection ids are made.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) { m.newID = fn }
}

// New returns a Manager for canvas. Call Init to start handling canvas
// events.
func New(canvas types.Canvas, deriver BranchDeriver, geom Geometry, cfg types.PreviewConfig, opts ...Option) *Manager {
	m := &Manager{
		canvas:  canvas,
		deriver: deriver,
		geom:    geom,
		cfg:     withDefaults(cfg),
		clock:   schedule.Real(),
		log:     zerolog.Nop(),
		newID:   func() string { return uuid.Must(uuid.NewV7()).String() },
		lines:   make(map[string]*types.PreviewLine),
		byNode:  make(map[string][]string),
		moved:   make(map[string]struct{}),
		own:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cache == nil {
		m.cache = cache.New(types.DefaultCacheConfig(), cache.WithClock(m.clock), cache.WithLogger(m.log))
		m.ownsCache = true
	}
	if m.monitor == nil {
		m.monitor = perf.New(types.DefaultMonitorConfig(), perf.WithClock(m.clock), perf.WithLogger(m.log))
	}
	m.refresh = schedule.NewDebouncer(m.clock, m.cfg.RefreshDebounce)
	m.hover = schedule.NewThrottler(m.clock, m.cfg.HoverThrottle)
	return m
}

func withDefaults(cfg types.PreviewConfig) types.PreviewConfig {
	def := types.DefaultPreviewConfig()
	if cfg.HitTolerance <= 0 {
		cfg.HitTolerance = def.HitTolerance
	}
	if cfg.RefreshDebounce <= 0 {
		cfg.RefreshDebounce = def.RefreshDebounce
	}
	if cfg.HoverThrottle <= 0 {
		cfg.HoverThrottle = def.HoverThrottle
	}
	if cfg.BranchCacheTTL <= 0 {
		cfg.BranchCacheTTL = def.BranchCacheTTL
	}
	return cfg
}

// Monitor returns the monitor the manager reports to.
func (m *Manager) Monitor() *perf.Monitor { return m.monitor }

// Cache returns the cache the manager reads and writes.
func (m *Manager) Cache() *cache.Manager { return m.cache }

// Init subscribes to canvas events and creates lines for nodes that are
// already configured. Calling Init twice has no effect.
func (m *Manager) Init() int {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return 0
	}
	m.started = true
	m.mu.Unlock()

	m.handlerOff = append(m.handlerOff,
		m.canvas.On(types.EventNodeRemoved, m.handleNodeRemoved),
		m.canvas.On(types.EventNodeMoved, m.handleNodeMoved),
		m.canvas.On(types.EventEdgeAdded, m.handleEdgeAdded),
		m.canvas.On(types.EventEdgeRemoved, m.handleEdgeRemoved),
	)
	n := m.InitializeExistingNodes()
	m.log.Info().Int("lines", n).Msg("preview manager started")
	return n
}

// Destroy unsubscribes from the canvas, removes every preview line, and
// closes the cache if the manager created it.
func (m *Manager) Destroy() {
	for _, off := range m.handlerOff {
		off()
	}
	m.handlerOff = nil
	m.refresh.Stop()
	m.hover.Stop()
	removed := m.ClearAllPreviewLines()

	m.mu.Lock()
	m.started = false
	m.mu.Unlock()
	if m.ownsCache {
		m.cache.Close()
	}
	m.log.Info().Int("removed", removed).Msg("preview manager stopped")
}

// claim marks cellID as edited by the manager until release is called.
func (m *Manager) claim(cellID string) (release func()) {
	m.ownMu.Lock()
	m.own[cellID]++
	m.ownMu.Unlock()
	return func() {
		m.ownMu.Lock()
		if m.own[cellID]--; m.own[cellID] <= 0 {
			delete(m.own, cellID)
		}
		m.ownMu.Unlock()
	}
}

// owns reports whether the manager is editing cellID right now.
func (m *Manager) owns(cellID string) bool {
	m.ownMu.Lock()
	defer m.ownMu.Unlock()
	return m.own[cellID] > 0
}

// ShouldCreatePreviewLine reports whether node may own preview lines: it
// must carry data marked configured and a config with at least one
// meaningful value. The answer is computed afresh on every call.
func (m *Manager) ShouldCreatePreviewLine(node *types.Node) bool {
	if node == nil || node.Data == nil || !node.Data.IsConfigured {
		return false
	}
	return hasMeaningfulValue(node.Data.Config)
}

func hasMeaningfulValue(cfg map[string]any) bool {
	for _, v := range cfg {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		return true
	}
	return false
}

// ConfigurationCheck is the result of ValidateNodeConfiguration.
type ConfigurationCheck struct {
	IsConfigured bool     `json:"isConfigured"`
	Reasons      []string `json:"reasons,omitempty"`
}

// Reasons reported by ValidateNodeConfiguration.
const (
	ReasonNoNode          = "node is missing"
	ReasonNoData          = "node has no data"
	ReasonNotConfigured   = "node is not marked configured"
	ReasonEmptyConfig     = "config has no meaningful values"
	ReasonNoBranches      = "split node has no branches"
	ReasonHintNode        = "hint nodes are never configured"
	ReasonNodeTypeMissing = "node type is unknown"
)

// ValidateNodeConfiguration reports whether node is meaningfully
// configured, and why not. data and nodeType default to the node's own
// when empty.
func (m *Manager) ValidateNodeConfiguration(node *types.Node, nodeType string, data *types.NodeData) ConfigurationCheck {
	var reasons []string
	if node == nil {
		return ConfigurationCheck{Reasons: []string{ReasonNoNode}}
	}
	if data == nil {
		data = node.Data
	}
	if nodeType == "" {
		nodeType = node.NodeType()
	}
	switch {
	case node.IsHint():
		reasons = append(reasons, ReasonHintNode)
	case nodeType == "":
		reasons = append(reasons, ReasonNodeTypeMissing)
	}
	if data == nil {
		reasons = append(reasons, ReasonNoData)
		return ConfigurationCheck{Reasons: reasons}
	}
	if !data.IsConfigured {
		reasons = append(reasons, ReasonNotConfigured)
	}
	if !hasMeaningfulValue(data.Config) {
		reasons = append(reasons, ReasonEmptyConfig)
	} else if isSplitType(nodeType) && len(data.Branches) == 0 &&
		len(m.deriver.DeriveBranches(nodeType, data.Config)) == 0 {
		reasons = append(reasons, ReasonNoBranches)
	}
	return ConfigurationCheck{IsConfigured: len(reasons) == 0, Reasons: reasons}
}

func isSplitType(nodeType string) bool {
	switch nodeType {
	case types.NodeTypeAudienceSplit, types.NodeTypeEventSplit, types.NodeTypeABTest:
		return true
	}
	return false
}

// PreviewLines returns a copy of every preview line, ordered by source
// node then branch index.
func (m *Manager) PreviewLines() []types.PreviewLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.PreviewLine, 0, len(m.lines))
	for _, l := range m.lines {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceNodeID != out[j].SourceNodeID {
			return out[i].SourceNodeID < out[j].SourceNodeID
		}
		return out[i].BranchIndex < out[j].BranchIndex
	})
	return out
}

// PreviewLinesFor returns a copy of the lines leaving nodeID in branch
// order.
func (m *Manager) PreviewLinesFor(nodeID string) []types.PreviewLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.linesForLocked(nodeID)
}

func (m *Manager) linesForLocked(nodeID string) []types.PreviewLine {
	ids := m.byNode[nodeID]
	out := make([]types.PreviewLine, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.lines[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BranchIndex < out[j].BranchIndex })
	return out
}

// Line returns a copy of the line with id.
func (m *Manager) Line(id string) (types.PreviewLine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lines[id]
	if !ok {
		return types.PreviewLine{}, false
	}
	return *l, true
}

// pushStatsLocked publishes the current line counts to the monitor.
func (m *Manager) pushStatsLocked() {
	s := perf.Statistics{
		TotalPreviewLines: len(m.lines),
		CreatedCount:      m.created,
		DeletedCount:      m.deleted,
		LastUpdated:       m.clock.Now(),
	}
	for _, l := range m.lines {
		switch l.State {
		case types.DragStateConnected:
			s.ConnectedPreviewLines++
		case types.DragStateDragging:
			s.DraggingPreviewLines++
			s.ActivePreviewLines++
		default:
			s.ActivePreviewLines++
		}
		if l.Endpoint.IsFree() {
			s.HintNodes++
		}
	}
	m.monitor.UpdatePreviewStatistics(s)
}

// timed runs fn inside a monitor task span.
func (m *Manager) timed(task string, md map[string]any, fn func() error) error {
	id := m.monitor.StartTask(task, md)
	err := fn()
	m.monitor.EndTask(id, perf.Result{Err: err})
	return err
}

func (m *Manager) now() time.Time { return m.clock.Now() }
