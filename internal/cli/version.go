package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/journey/pkg/journey"
)

const modulePath = "github.com/mesh-intelligence/journey"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the journey version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "journey v%s\nmodule: %s\n", journey.Version, modulePath)
			return nil
		},
	}
}
