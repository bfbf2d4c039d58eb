package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/journey/pkg/types"
)

func newNodeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Add, list, move, and remove journey nodes",
	}
	cmd.AddCommand(newNodeAddCmd(a), newNodeListCmd(a), newNodeMoveCmd(a), newNodeRemoveCmd(a))
	return cmd
}

func newNodeAddCmd(a *app) *cobra.Command {
	var (
		id   string
		x, y float64
	)
	cmd := &cobra.Command{
		Use:   "add <type>",
		Short: "Add a node",
		Long: `Add a node of the given type at x,y.

Types: start, audience-split, event-split, ab-test, ai-call, sms,
manual-call, wait, end.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, true, func(w *workspace) error {
				n, err := w.session.AddNode(id, args[0], types.Point{X: x, Y: y})
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), n)
				}
				fmt.Fprintln(cmd.OutOrStdout(), n.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "node id (default: generated)")
	cmd.Flags().Float64Var(&x, "x", 0, "x position")
	cmd.Flags().Float64Var(&y, "y", 0, "y position")
	return cmd
}

func newNodeListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List journey nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, false, func(w *workspace) error {
				var nodes []*types.Node
				for _, n := range w.session.Canvas().GetNodes() {
					if !n.IsHint() {
						nodes = append(nodes, n)
					}
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), nodes)
				}
				rows := make([][]string, 0, len(nodes))
				for _, n := range nodes {
					ports := make([]string, 0, len(n.Ports))
					for _, p := range n.Ports {
						ports = append(ports, p.ID)
					}
					rows = append(rows, []string{
						n.ID,
						n.NodeType(),
						formatPoint(n.Position),
						strconv.FormatBool(n.IsConfigured()),
						strings.Join(ports, ","),
						strconv.Itoa(len(w.session.Preview().PreviewLinesFor(n.ID))),
					})
				}
				printTable(cmd.OutOrStdout(), []string{"ID", "TYPE", "POSITION", "CONFIGURED", "PORTS", "PREVIEWS"}, rows)
				return nil
			})
		},
	}
}

func newNodeMoveCmd(a *app) *cobra.Command {
	var x, y float64
	cmd := &cobra.Command{
		Use:   "move <node-id>",
		Short: "Move a node to x,y",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, true, func(w *workspace) error {
				n, err := nodeArg(w, args[0])
				if err != nil {
					return err
				}
				if err := w.session.Canvas().SetNodePosition(n.ID, types.Point{X: x, Y: y}); err != nil {
					return err
				}
				w.session.Preview().RefreshPositions(n.ID)
				fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to %s\n", n.ID, formatPoint(n.Position))
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&x, "x", 0, "x position")
	cmd.Flags().Float64Var(&y, "y", 0, "y position")
	return cmd
}

func newNodeRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <node-id>",
		Short: "Remove a node and its edges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, true, func(w *workspace) error {
				n, err := nodeArg(w, args[0])
				if err != nil {
					return err
				}
				if err := w.session.Canvas().RemoveNode(n.ID); err != nil {
					return err
				}
				w.session.Layout().Forget(n.ID)
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", n.ID)
				return nil
			})
		},
	}
}
