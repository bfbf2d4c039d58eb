package nodeconfig

import (
	"context"

	"github.com/mesh-intelligence/journey/pkg/types"
)

// Event split branch ids.
const (
	BranchEventYes = "event_yes"
	BranchEventNo  = "event_no"
)

// EventSplitStrategy splits on whether an event happened. It always has a
// yes and a no branch.
type EventSplitStrategy struct {
	BranchBase
}

// NewEventSplitStrategy returns the event split strategy.
func NewEventSplitStrategy(poll LayoutPoll) *EventSplitStrategy {
	return &EventSplitStrategy{BranchBase{Base: Base{Type: types.NodeTypeEventSplit}, Poll: poll}}
}

// ValidateConfig requires the branch labels, when present, to be strings.
func (s *EventSplitStrategy) ValidateConfig(cfg map[string]any) ValidationResult {
	var errs []string
	for _, key := range []string{"yesLabel", "noLabel"} {
		if present(cfg, key) {
			if _, ok := cfg[key].(string); !ok {
				errs = append(errs, "分支标签必须是字符串")
				break
			}
		}
	}
	return result(errs)
}

// PreprocessConfig returns the fixed yes and no branches.
func (s *EventSplitStrategy) PreprocessConfig(cfg map[string]any) Normalized {
	yes := str(cfg, "yesLabel")
	if yes == "" {
		yes = "是"
	}
	no := str(cfg, "noLabel")
	if no == "" {
		no = "否"
	}
	return withBranches(cfg, []types.Branch{
		{ID: BranchEventYes, Name: yes, Condition: "yes"},
		{ID: BranchEventNo, Name: no, Condition: "no"},
	})
}

// PostProcess gives the node two out ports.
func (s *EventSplitStrategy) PostProcess(ctx context.Context, node *types.Node, n Normalized, pctx types.ProcessContext) error {
	return s.reconcile(node, n, pctx, 2)
}
