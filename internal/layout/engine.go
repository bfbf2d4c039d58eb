// Package layout is the structured layout engine consulted by split-node
// strategies and the preview manager. It tracks split-node branch metadata
// and computes where preview lines end.
//
// Initialization is asynchronous: Init schedules readiness on the clock
// after the configured delay, and callers that need a ready engine poll
// IsReady.
package layout

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/journey/internal/schedule"
	"github.com/mesh-intelligence/journey/pkg/types"
)

// EventBranchesUpdated fires after split-node branches change.
const EventBranchesUpdated = "layout:branches-updated"

// BranchesUpdatedEvent is the payload of EventBranchesUpdated.
type BranchesUpdatedEvent struct {
	NodeID   string
	Branches []types.Branch
}

// Engine implements types.LayoutManager.
type Engine struct {
	cfg    types.LayoutConfig
	clock  schedule.Clock
	log    zerolog.Logger
	events types.EventBus

	mu           sync.Mutex
	ready        bool
	initializing bool
	pending      schedule.Handle
	branches     map[string][]types.Branch
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock that drives initialization.
func WithClock(c schedule.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l.With().Str("component", "layout").Logger() }
}

// WithEvents publishes branch updates on bus.
func WithEvents(bus types.EventBus) Option {
	return func(e *Engine) { e.events = bus }
}

// New returns an Engine that is not yet initialized.
func New(cfg types.LayoutConfig, opts ...Option) *Engine {
	def := types.DefaultLayoutConfig()
	if cfg.BranchSpacingMin <= 0 || cfg.BranchSpacingMax < cfg.BranchSpacingMin {
		cfg.BranchSpacingMin, cfg.BranchSpacingMax = def.BranchSpacingMin, def.BranchSpacingMax
	}
	if cfg.VerticalOffset <= 0 {
		cfg.VerticalOffset = def.VerticalOffset
	}
	e := &Engine{
		cfg:      cfg,
		clock:    schedule.Real(),
		log:      zerolog.Nop(),
		branches: make(map[string][]types.Branch),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() types.LayoutConfig {
	return e.cfg
}

// IsReady reports whether initialization has completed.
func (e *Engine) IsReady() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// Init starts initialization. With no init delay the engine is ready on
// return; otherwise readiness arrives after the delay. Repeated calls are
// no-ops.
func (e *Engine) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ready || e.initializing {
		return nil
	}
	if e.cfg.InitDelay <= 0 {
		e.ready = true
		return nil
	}
	e.initializing = true
	e.pending = e.clock.AfterFunc(e.cfg.InitDelay, func() {
		e.mu.Lock()
		e.ready = true
		e.initializing = false
		e.mu.Unlock()
		e.log.Debug().Msg("layout engine ready")
	})
	return nil
}

// Close cancels a pending initialization and marks the engine not ready.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
	}
	e.ready = false
	e.initializing = false
}

// UpdateSplitNodeBranches records the branches of a split node.
// Returns types.ErrLayoutNotReady before initialization completes.
func (e *Engine) UpdateSplitNodeBranches(node *types.Node, branches []types.Branch) error {
	e.mu.Lock()
	if !e.ready {
		e.mu.Unlock()
		return types.ErrLayoutNotReady
	}
	cp := slices.Clone(branches)
	e.branches[node.ID] = cp
	e.mu.Unlock()

	e.log.Debug().Str("node_id", node.ID).Int("branches", len(cp)).Msg("split branches updated")
	if e.events != nil {
		e.events.Trigger(EventBranchesUpdated, BranchesUpdatedEvent{NodeID: node.ID, Branches: cp})
	}
	return nil
}

// Branches returns the recorded branches of a split node.
func (e *Engine) Branches(nodeID string) ([]types.Branch, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.branches[nodeID]
	return slices.Clone(b), ok
}

// Forget drops the branch metadata of a removed node.
func (e *Engine) Forget(nodeID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.branches, nodeID)
}
