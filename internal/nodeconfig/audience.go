package nodeconfig

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/journey/pkg/types"
)

const unmatchedBranchName = "未命中人群"

// AudienceSplitStrategy splits users by crowd layer. Every crowd layer is a
// branch, and a final default branch catches users that match no crowd.
type AudienceSplitStrategy struct {
	BranchBase
}

// NewAudienceSplitStrategy returns the audience split strategy.
func NewAudienceSplitStrategy(poll LayoutPoll) *AudienceSplitStrategy {
	return &AudienceSplitStrategy{BranchBase{Base: Base{Type: types.NodeTypeAudienceSplit}, Poll: poll}}
}

// ValidateConfig requires crowdLayers, when present, to be an array of
// layers with distinct ids, none of them the default branch id.
func (s *AudienceSplitStrategy) ValidateConfig(cfg map[string]any) ValidationResult {
	var errs []string
	layers, ok := list(cfg, "crowdLayers")
	if !ok {
		errs = append(errs, "人群层级必须是数组")
	}
	seen := make(map[string]bool, len(layers))
	var dup, reserved bool
	for i, layer := range layers {
		id := layerID(layer, i)
		switch {
		case id == types.DefaultBranchID:
			reserved = true
		case seen[id]:
			dup = true
		}
		seen[id] = true
	}
	if dup {
		errs = append(errs, "人群层级ID不能重复")
	}
	if reserved {
		errs = append(errs, "人群层级ID不能使用保留值"+types.DefaultBranchID)
	}
	return result(errs)
}

// layerID is the branch id of the i-th crowd layer as written.
func layerID(layer map[string]any, i int) string {
	if id := str(layer, "id"); id != "" {
		return id
	}
	return fmt.Sprintf("crowd_%d", i+1)
}

// PreprocessConfig derives one branch per crowd layer plus the default
// branch. Without crowd layers only the default branch remains. Branch ids
// are unique: a repeated or reserved layer id gets a positional suffix.
func (s *AudienceSplitStrategy) PreprocessConfig(cfg map[string]any) Normalized {
	layers, _ := list(cfg, "crowdLayers")
	branches := make([]types.Branch, 0, len(layers)+1)
	taken := map[string]bool{types.DefaultBranchID: true}
	for i, layer := range layers {
		id := layerID(layer, i)
		for n := i + 1; taken[id]; n++ {
			id = fmt.Sprintf("%s_%d", layerID(layer, i), n)
		}
		taken[id] = true
		name := str(layer, "crowdName")
		if name == "" {
			name = fmt.Sprintf("分支%d", i+1)
		}
		order := i + 1
		if o, ok := number(layer, "order"); ok && o > 0 {
			order = int(o)
		}
		branches = append(branches, types.Branch{
			ID:            id,
			Name:          name,
			SourceCrowdID: str(layer, "crowdId"),
			Order:         order,
			Condition:     id,
		})
	}
	branches = append(branches, types.Branch{
		ID:        types.DefaultBranchID,
		Name:      unmatchedBranchName,
		Order:     len(branches) + 1,
		Condition: types.DefaultBranchID,
	})
	return withBranches(cfg, branches)
}

// PostProcess gives the node one out port per branch.
func (s *AudienceSplitStrategy) PostProcess(ctx context.Context, node *types.Node, n Normalized, pctx types.ProcessContext) error {
	required := len(n.Branches)
	if required == 0 {
		required = n.BranchCount + 1
	}
	return s.reconcile(node, n, pctx, required)
}
