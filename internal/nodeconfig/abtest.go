package nodeconfig

import (
	"context"
	"fmt"
	"math"

	"github.com/mesh-intelligence/journey/pkg/types"
)

// A/B test branch ids.
const (
	BranchGroupA = "ab_a"
	BranchGroupB = "ab_b"
)

const (
	defaultGroupRatio = 50
	ratioTolerance    = 0.01
)

// ABTestStrategy splits traffic between experiment groups. By default there
// are two groups, A and B, whose ratios must add up to 100. A versions
// list replaces them with one branch per version.
type ABTestStrategy struct {
	BranchBase
}

// NewABTestStrategy returns the A/B test strategy.
func NewABTestStrategy(poll LayoutPoll) *ABTestStrategy {
	return &ABTestStrategy{BranchBase{Base: Base{Type: types.NodeTypeABTest}, Poll: poll}}
}

// ValidateConfig checks each ratio is within 0..100 and that they sum to 100.
func (s *ABTestStrategy) ValidateConfig(cfg map[string]any) ValidationResult {
	var errs []string

	ratio := func(key, group string) float64 {
		if !present(cfg, key) {
			return defaultGroupRatio
		}
		v, ok := number(cfg, key)
		if !ok {
			errs = append(errs, group+"组比例必须是数字")
			return defaultGroupRatio
		}
		if v < 0 || v > 100 {
			errs = append(errs, group+"组比例必须在0-100之间")
		}
		return v
	}
	a := ratio("groupARatio", "A")
	b := ratio("groupBRatio", "B")
	if math.Abs(a+b-100) > ratioTolerance {
		errs = append(errs, "A组和B组比例之和必须等于100%")
	}

	versions, ok := list(cfg, "versions")
	switch {
	case !ok:
		errs = append(errs, "版本列表必须是数组")
	case len(versions) > 0:
		total, all := 0.0, true
		for _, v := range versions {
			r, has := number(v, "ratio")
			if !has {
				all = false
				break
			}
			total += r
		}
		if all && math.Abs(total-100) > ratioTolerance {
			errs = append(errs, "版本比例之和必须等于100%")
		}
	}
	return result(errs)
}

// PreprocessConfig returns the A and B groups, or one branch per version.
func (s *ABTestStrategy) PreprocessConfig(cfg map[string]any) Normalized {
	if versions, _ := list(cfg, "versions"); len(versions) > 0 {
		even := 100 / float64(len(versions))
		branches := make([]types.Branch, len(versions))
		for i, v := range versions {
			id := str(v, "id")
			if id == "" {
				id = fmt.Sprintf("ab_v%d", i+1)
			}
			name := str(v, "name")
			if name == "" {
				name = fmt.Sprintf("版本%d", i+1)
			}
			r, ok := number(v, "ratio")
			if !ok {
				r = even
			}
			branches[i] = types.Branch{ID: id, Name: name, Condition: id, Ratio: r}
		}
		return withBranches(cfg, branches)
	}

	labelA := str(cfg, "groupALabel")
	if labelA == "" {
		labelA = "实验组A"
	}
	labelB := str(cfg, "groupBLabel")
	if labelB == "" {
		labelB = "实验组B"
	}
	ratioA, ok := number(cfg, "groupARatio")
	if !ok {
		ratioA = defaultGroupRatio
	}
	ratioB, ok := number(cfg, "groupBRatio")
	if !ok {
		ratioB = defaultGroupRatio
	}
	return withBranches(cfg, []types.Branch{
		{ID: BranchGroupA, Name: labelA, Condition: "group_a", Ratio: ratioA},
		{ID: BranchGroupB, Name: labelB, Condition: "group_b", Ratio: ratioB},
	})
}

// PostProcess gives the node one out port per group.
func (s *ABTestStrategy) PostProcess(ctx context.Context, node *types.Node, n Normalized, pctx types.ProcessContext) error {
	required := len(n.Branches)
	if required == 0 {
		required = 2
	}
	return s.reconcile(node, n, pctx, required)
}
