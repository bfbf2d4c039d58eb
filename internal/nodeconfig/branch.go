package nodeconfig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/journey/internal/schedule"
	"github.com/mesh-intelligence/journey/pkg/types"
)

// LayoutPoll controls how a branch strategy waits for a layout engine that
// is still initializing.
type LayoutPoll struct {
	Clock    schedule.Clock
	Interval time.Duration
	Attempts int
}

func (p LayoutPoll) withDefaults() LayoutPoll {
	def := types.DefaultLayoutConfig()
	if p.Clock == nil {
		p.Clock = schedule.Real()
	}
	if p.Interval <= 0 {
		p.Interval = def.RetryInterval
	}
	if p.Attempts <= 0 {
		p.Attempts = def.MaxRetries
	}
	return p
}

// BranchBase is embedded by split-node strategies. It refreshes the layout
// engine's branch metadata and keeps the out ports in step with the
// branch count.
type BranchBase struct {
	Base
	Poll LayoutPoll
}

// UpdateNodeLayout pushes the branches to the layout engine. An engine that
// is not ready is initialized and polled until it is, or until the poll
// attempts run out.
func (b BranchBase) UpdateNodeLayout(ctx context.Context, node *types.Node, n Normalized, layout types.LayoutManager) error {
	if layout == nil {
		return nil
	}
	if !layout.IsReady() {
		if err := layout.Init(ctx); err != nil {
			return fmt.Errorf("init layout engine: %w", err)
		}
		p := b.Poll.withDefaults()
		if err := schedule.Poll(ctx, p.Clock, p.Interval, p.Attempts, layout.IsReady); err != nil {
			if errors.Is(err, schedule.ErrPollExhausted) {
				return fmt.Errorf("node %s: %w", node.ID, types.ErrLayoutNotReady)
			}
			return err
		}
	}
	return layout.UpdateSplitNodeBranches(node, n.Branches)
}

// reconcile syncs the out ports to required and refreshes a ready layout
// engine.
func (b BranchBase) reconcile(node *types.Node, n Normalized, pctx types.ProcessContext, required int) error {
	if err := SyncOutputPorts(pctx.Canvas, node, required); err != nil {
		return fmt.Errorf("sync output ports: %w", err)
	}
	if pctx.Layout != nil && pctx.Layout.IsReady() {
		return pctx.Layout.UpdateSplitNodeBranches(node, n.Branches)
	}
	return nil
}

// SyncOutputPorts adds or removes out ports until node has required of
// them, never going below one. New ports are named outN. Extra ports are
// removed from the end. When canvas is nil the node is edited directly.
func SyncOutputPorts(canvas types.Canvas, node *types.Node, required int) error {
	required = max(required, 1)
	outs := node.OutputPorts()

	for next := len(outs) + 1; len(outs) < required; next++ {
		id := fmt.Sprintf("out%d", next)
		if _, exists := node.Port(id); exists {
			continue
		}
		port := types.Port{ID: id, Group: types.PortGroupOut}
		if canvas != nil {
			if err := canvas.AddPort(node.ID, port); err != nil {
				return err
			}
		} else {
			node.Ports = append(node.Ports, port)
		}
		outs = append(outs, port)
	}

	for i := len(outs) - 1; i >= required; i-- {
		id := outs[i].ID
		if canvas != nil {
			if err := canvas.RemovePort(node.ID, id); err != nil {
				return err
			}
			continue
		}
		for j, p := range node.Ports {
			if p.ID == id {
				node.Ports = append(node.Ports[:j], node.Ports[j+1:]...)
				break
			}
		}
	}
	return nil
}

// withBranches returns the normalized form for a split node: a copy of cfg
// carrying the branch count, plus the branches with color indexes
// assigned in order.
func withBranches(cfg map[string]any, branches []types.Branch) Normalized {
	out := cloneConfig(cfg)
	for i := range branches {
		branches[i].ColorIndex = i
		if branches[i].Order == 0 {
			branches[i].Order = i + 1
		}
	}
	out["branchCount"] = len(branches)
	return Normalized{Config: out, Branches: branches, BranchCount: len(branches)}
}
