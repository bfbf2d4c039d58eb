package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPreviewCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Inspect and manage preview lines",
		Long: `Preview lines are derived from the configured nodes every time the
journey is opened; they are never stored.`,
	}
	cmd.AddCommand(newPreviewListCmd(a), newPreviewCheckCmd(a), newPreviewClearCmd(a), newPreviewRestoreCmd(a))
	return cmd
}

func newPreviewListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [node-id]",
		Short: "List preview lines",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, false, func(w *workspace) error {
				lines := w.session.Preview().PreviewLines()
				if len(args) == 1 {
					if _, err := nodeArg(w, args[0]); err != nil {
						return err
					}
					lines = w.session.Preview().PreviewLinesFor(args[0])
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), lines)
				}
				printLines(cmd.OutOrStdout(), lines)
				return nil
			})
		},
	}
}

func newPreviewCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <node-id>",
		Short: "Explain whether a node qualifies for preview lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, false, func(w *workspace) error {
				n, err := nodeArg(w, args[0])
				if err != nil {
					return err
				}
				check := w.session.Preview().ValidateNodeConfiguration(n, "", nil)
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), check)
				}
				if check.IsConfigured {
					good.Fprintf(cmd.OutOrStdout(), "%s is configured\n", n.ID)
					return nil
				}
				warn.Fprintf(cmd.OutOrStdout(), "%s is not configured\n", n.ID)
				for _, r := range check.Reasons {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", r)
				}
				return nil
			})
		},
	}
}

func newPreviewClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every preview line and drag hint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, false, func(w *workspace) error {
				n := w.session.Preview().ClearAllPreviewLines()
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d preview elements\n", n)
				return nil
			})
		},
	}
}

func newPreviewRestoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Recreate missing preview lines for every configured node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, false, func(w *workspace) error {
				n := w.session.Preview().InitializeExistingNodes()
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %d preview lines\n", n)
				printLines(cmd.OutOrStdout(), w.session.Preview().PreviewLines())
				return nil
			})
		},
	}
}
