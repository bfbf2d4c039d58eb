package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/journey/pkg/types"
)

func newEdgeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edge",
		Short: "Add, list, and remove connections",
	}
	cmd.AddCommand(newEdgeAddCmd(a), newEdgeListCmd(a), newEdgeRemoveCmd(a))
	return cmd
}

func newEdgeAddCmd(a *app) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "add <source-id> <target-id>",
		Short: "Connect two nodes",
		Long:  "Connect the source node's output port (default: its first) to the target's input port. The preview line of that port is removed.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, true, func(w *workspace) error {
				e, err := w.session.Connect(args[0], port, args[1])
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), e)
				}
				fmt.Fprintln(cmd.OutOrStdout(), e.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "source output port")
	return cmd
}

func newEdgeListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, false, func(w *workspace) error {
				var edges []*types.Edge
				for _, e := range w.session.Canvas().GetEdges() {
					if !e.IsPreview() {
						edges = append(edges, e)
					}
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), edges)
				}
				rows := make([][]string, 0, len(edges))
				for _, e := range edges {
					rows = append(rows, []string{e.ID, formatEndpoint(e.Source), formatEndpoint(e.Target), e.Data.BranchID, e.Label})
				}
				printTable(cmd.OutOrStdout(), []string{"ID", "SOURCE", "TARGET", "BRANCH", "LABEL"}, rows)
				return nil
			})
		},
	}
}

func newEdgeRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <edge-id>",
		Short: "Remove a connection",
		Long:  "Remove a connection. The source node gets its preview line back.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, true, func(w *workspace) error {
				e, ok := w.session.Canvas().GetEdge(args[0])
				if !ok || e.IsPreview() {
					return fmt.Errorf("edge %s: %w", args[0], types.ErrEdgeNotFound)
				}
				if err := w.session.Canvas().RemoveEdge(e.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", e.ID)
				return nil
			})
		},
	}
}
