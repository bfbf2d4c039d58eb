package nodeconfig

import (
	"context"
	"maps"
	"time"

	"github.com/mesh-intelligence/journey/pkg/types"
)

// ValidationResult is the outcome of ValidateConfig. Errors holds one
// human-readable message per failed rule.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

func result(errs []string) ValidationResult {
	if errs == nil {
		errs = []string{}
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// Normalized is a preprocessed configuration: the config to store on the
// node plus the branches it implies.
type Normalized struct {
	Config      map[string]any
	Branches    []types.Branch
	BranchCount int
}

// Strategy is the per-node-type configuration policy. ProcessNodeConfig
// calls ValidateConfig, PreprocessConfig, UpdateNodeData, UpdateNodeStyle,
// UpdateNodeLayout, and PostProcess in that order. ValidateConfig and
// PreprocessConfig must not touch the node.
type Strategy interface {
	NodeType() string
	ValidateConfig(cfg map[string]any) ValidationResult
	PreprocessConfig(cfg map[string]any) Normalized

	// UpdateNodeData stores the normalized config on the node and marks it
	// configured. It is the only writer of the configured flag.
	UpdateNodeData(node *types.Node, n Normalized, at time.Time)

	UpdateNodeStyle(node *types.Node, cfg map[string]any)
	UpdateNodeLayout(ctx context.Context, node *types.Node, n Normalized, layout types.LayoutManager) error

	// PostProcess reconciles ports and refreshes layout metadata. It never
	// creates preview lines.
	PostProcess(ctx context.Context, node *types.Node, n Normalized, pctx types.ProcessContext) error
}

// Base provides the default behavior for every Strategy method. Strategies
// embed it and override what they need.
type Base struct {
	Type string
}

// NodeType returns the node type the strategy serves.
func (b Base) NodeType() string { return b.Type }

// ValidateConfig accepts every config.
func (b Base) ValidateConfig(cfg map[string]any) ValidationResult { return result(nil) }

// PreprocessConfig returns a copy of cfg with no branches.
func (b Base) PreprocessConfig(cfg map[string]any) Normalized {
	return Normalized{Config: cloneConfig(cfg)}
}

// UpdateNodeData merges the normalized config into the node data.
func (b Base) UpdateNodeData(node *types.Node, n Normalized, at time.Time) {
	if node.Data == nil {
		node.Data = &types.NodeData{NodeType: b.Type}
	} else if node.Data.NodeType == "" {
		node.Data.NodeType = b.Type
	}
	node.MergeData(n.Config, n.Branches, n.BranchCount, at)
}

// UpdateNodeStyle sets the label from nodeName when present.
func (b Base) UpdateNodeStyle(node *types.Node, cfg map[string]any) {
	if name, ok := cfg["nodeName"].(string); ok && name != "" {
		node.ApplyVisual(types.VisualPatch{Label: &name})
	}
}

// UpdateNodeLayout does nothing.
func (b Base) UpdateNodeLayout(ctx context.Context, node *types.Node, n Normalized, layout types.LayoutManager) error {
	return nil
}

// PostProcess does nothing.
func (b Base) PostProcess(ctx context.Context, node *types.Node, n Normalized, pctx types.ProcessContext) error {
	return nil
}

func cloneConfig(cfg map[string]any) map[string]any {
	if cfg == nil {
		return map[string]any{}
	}
	return maps.Clone(cfg)
}
