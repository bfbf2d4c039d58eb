// Package nodeconfig applies drawer configuration payloads to canvas nodes.
//
// Each node type has a Strategy that validates the payload, normalizes it
// (deriving branches for split nodes), writes node data and visuals,
// refreshes the layout engine, and reconciles output ports. The Manager
// keeps the strategy registry and runs the pipeline.
package nodeconfig

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/journey/internal/schedule"
	"github.com/mesh-intelligence/journey/pkg/types"
)

// ValidationError reports every failed validation rule of a payload.
type ValidationError struct {
	NodeType string
	Errors   []string
}

func (e *ValidationError) Error() string {
	return "配置验证失败: " + strings.Join(e.Errors, ", ")
}

// Unwrap lets callers match types.ErrInvalidConfig.
func (e *ValidationError) Unwrap() error {
	return types.ErrInvalidConfig
}

// Manager is the strategy registry and the configuration pipeline.
type Manager struct {
	clock schedule.Clock
	log   zerolog.Logger
	poll  LayoutPoll

	mu         sync.RWMutex
	strategies map[string]Strategy
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock used for update timestamps and layout polling.
func WithClock(c schedule.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l.With().Str("component", "nodeconfig").Logger() }
}

// WithLayoutConfig sets the layout poll interval and attempts used by the
// split strategies.
func WithLayoutConfig(cfg types.LayoutConfig) Option {
	return func(m *Manager) {
		m.poll.Interval = cfg.RetryInterval
		m.poll.Attempts = cfg.MaxRetries
	}
}

// NewManager returns a Manager with the built-in strategies registered.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		clock:      schedule.Real(),
		log:        zerolog.Nop(),
		strategies: make(map[string]Strategy),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.poll.Clock = m.clock

	m.strategies[types.NodeTypeStart] = NewStartStrategy()
	m.strategies[types.NodeTypeAudienceSplit] = NewAudienceSplitStrategy(m.poll)
	m.strategies[types.NodeTypeEventSplit] = NewEventSplitStrategy(m.poll)
	m.strategies[types.NodeTypeABTest] = NewABTestStrategy(m.poll)
	for _, t := range []string{
		types.NodeTypeAICall, types.NodeTypeSMS, types.NodeTypeManualCall,
		types.NodeTypeWait, types.NodeTypeEnd,
	} {
		m.strategies[t] = NewSimpleStrategy(t)
	}
	return m
}

// RegisterStrategy adds or replaces the strategy for nodeType.
func (m *Manager) RegisterStrategy(nodeType string, s Strategy) error {
	if nodeType == "" || s == nil {
		return types.ErrInvalidStrategy
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategies[nodeType] = s
	m.log.Debug().Str("node_type", nodeType).Msg("registered strategy")
	return nil
}

// Strategy returns the strategy for nodeType, falling back to a simple
// strategy for unknown types.
func (m *Manager) Strategy(nodeType string) Strategy {
	s, ok := m.lookup(nodeType)
	if !ok {
		m.log.Warn().Str("node_type", nodeType).Msg("no strategy for node type, using simple strategy")
	}
	return s
}

func (m *Manager) lookup(nodeType string) (Strategy, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.strategies[nodeType]; ok {
		return s, true
	}
	return NewSimpleStrategy(nodeType), false
}

// SupportedNodeTypes returns the registered node types in sorted order.
func (m *Manager) SupportedNodeTypes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.strategies))
	for t := range m.strategies {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// IsNodeTypeSupported reports whether nodeType has a registered strategy.
func (m *Manager) IsNodeTypeSupported(nodeType string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.strategies[nodeType]
	return ok
}

// Validate runs only the validation step for nodeType.
func (m *Manager) Validate(nodeType string, cfg map[string]any) ValidationResult {
	s, _ := m.lookup(nodeType)
	return s.ValidateConfig(cfg)
}

// DeriveBranches returns the branches cfg implies for nodeType without
// touching any node.
func (m *Manager) DeriveBranches(nodeType string, cfg map[string]any) []types.Branch {
	s, _ := m.lookup(nodeType)
	return s.PreprocessConfig(cfg).Branches
}

// ProcessNodeConfig applies cfg to node: validate, update data, update
// style, update layout (when pctx.Layout is set), post-process. A
// validation failure returns a *ValidationError before the node is
// touched. Failures in later steps are logged and returned unchanged;
// earlier mutations are not rolled back. On success the node:config-updated
// event fires on pctx.Events, or on pctx.Canvas when Events is nil.
func (m *Manager) ProcessNodeConfig(ctx context.Context, nodeType string, node *types.Node, cfg map[string]any, pctx types.ProcessContext) error {
	if node == nil {
		return types.ErrNodeNotFound
	}
	s := m.Strategy(nodeType)
	log := m.log.With().Str("node_id", node.ID).Str("node_type", nodeType).Logger()

	if v := s.ValidateConfig(cfg); !v.Valid {
		log.Info().Strs("errors", v.Errors).Msg("config rejected")
		return &ValidationError{NodeType: nodeType, Errors: v.Errors}
	}

	n := s.PreprocessConfig(cfg)
	s.UpdateNodeData(node, n, m.clock.Now())
	s.UpdateNodeStyle(node, cfg)

	if pctx.Layout != nil {
		if err := s.UpdateNodeLayout(ctx, node, n, pctx.Layout); err != nil {
			log.Error().Err(err).Str("step", "layout").Msg("config processing failed")
			return err
		}
	}
	if err := s.PostProcess(ctx, node, n, pctx); err != nil {
		log.Error().Err(err).Str("step", "post_process").Msg("config processing failed")
		return err
	}

	events := pctx.Events
	if events == nil && pctx.Canvas != nil {
		events = pctx.Canvas
	}
	if events != nil {
		events.Trigger(types.EventNodeConfigUpdated, types.ConfigUpdatedEvent{
			Node:     node,
			NodeType: nodeType,
			Config:   n.Config,
		})
	}
	log.Debug().Int("branches", len(n.Branches)).Msg("config applied")
	return nil
}

// BatchItem is one entry of ProcessBatch.
type BatchItem struct {
	NodeType string
	Node     *types.Node
	Config   map[string]any
	Context  types.ProcessContext
}

// BatchResult reports the outcome of one BatchItem.
type BatchResult struct {
	NodeID  string `json:"nodeId"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ProcessBatch runs ProcessNodeConfig for each item in order. A failure is
// recorded in its result and does not stop the batch.
func (m *Manager) ProcessBatch(ctx context.Context, items []BatchItem) []BatchResult {
	results := make([]BatchResult, 0, len(items))
	failed := 0
	for _, it := range items {
		r := BatchResult{Success: true}
		if it.Node != nil {
			r.NodeID = it.Node.ID
		}
		if err := m.ProcessNodeConfig(ctx, it.NodeType, it.Node, it.Config, it.Context); err != nil {
			r.Success = false
			r.Error = err.Error()
			failed++
		}
		results = append(results, r)
	}
	m.log.Info().Int("total", len(items)).Int("failed", failed).Msg("batch processed")
	return results
}
