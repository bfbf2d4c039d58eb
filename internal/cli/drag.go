package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/journey/pkg/types"
)

func newDragCmd(a *app) *cobra.Command {
	var (
		branch string
		to     string
		via    []string
	)
	cmd := &cobra.Command{
		Use:   "drag <node-id>",
		Short: "Drag a node's preview line to a point",
		Long: `Drag the preview line of a node (the branch's line for split nodes) through
optional --via points and drop it at --to. Dropping on another node
connects the two; dropping on empty canvas leaves the line there.

Example:
  journey drag split --branch vip --via 200,300 --to 240,420`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := parsePoint(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			path := make([]types.Point, 0, len(via))
			for _, v := range via {
				p, err := parsePoint(v)
				if err != nil {
					return fmt.Errorf("--via: %w", err)
				}
				path = append(path, p)
			}

			return a.run(cmd, true, func(w *workspace) error {
				if _, err := nodeArg(w, args[0]); err != nil {
					return err
				}
				pm := w.session.Preview()
				var lineID string
				for _, l := range pm.PreviewLinesFor(args[0]) {
					if branch == "" || l.BranchID == branch {
						lineID = l.ID
						break
					}
				}
				if lineID == "" {
					return fmt.Errorf("node %s branch %q: %w", args[0], branch, types.ErrLineNotFound)
				}

				if _, err := pm.StartDrag(lineID); err != nil {
					return err
				}
				for _, p := range append(path, dest) {
					if err := pm.DragMove(p); err != nil {
						return err
					}
				}
				edge, err := pm.EndDrag(dest)
				if err != nil {
					return err
				}
				if edge == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Dropped on empty canvas at %s\n", formatPoint(dest))
					return nil
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), edge)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Connected %s -> %s (%s)\n",
					formatEndpoint(edge.Source), formatEndpoint(edge.Target), edge.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&branch, "branch", "", "branch id of the line to drag")
	cmd.Flags().StringVar(&to, "to", "", "drop point as x,y")
	cmd.Flags().StringArrayVar(&via, "via", nil, "intermediate point as x,y (repeatable)")
	cmd.MarkFlagRequired("to")
	return cmd
}

// parsePoint parses "x,y".
func parsePoint(s string) (types.Point, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return types.Point{}, fmt.Errorf("invalid point %q (expected x,y)", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return types.Point{}, fmt.Errorf("invalid x in %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return types.Point{}, fmt.Errorf("invalid y in %q: %w", s, err)
	}
	return types.Point{X: x, Y: y}, nil
}
