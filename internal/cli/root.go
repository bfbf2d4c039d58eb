// Package cli implements the journey command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/journey/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	logLevel  string
	jsonMode  bool
}

// app carries the state shared by one command tree.
type app struct {
	flags rootFlags
}

// NewRootCmd creates the top-level "journey" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "journey",
		Short: "Edit journey canvases and their connection previews",
		Long: "Journey manages a marketing journey canvas: nodes, their configuration,\n" +
			"the connections between them, and the draggable preview lines shown\n" +
			"for configured nodes that are not yet connected.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: .journey)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: <config-dir>/data)")
	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newNodeCmd(a),
		newEdgeCmd(a),
		newConfigureCmd(a),
		newCancelCmd(a),
		newPreviewCmd(a),
		newDragCmd(a),
		newReportCmd(a),
		newHealthCmd(a),
	)
	return root
}

// Execute runs the root command and exits with the matching code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}

// sysError marks a failure of the environment rather than of the request.
type sysError struct {
	err error
}

func (e *sysError) Error() string { return e.err.Error() }
func (e *sysError) Unwrap() error { return e.err }

func system(format string, args ...any) error {
	return &sysError{err: fmt.Errorf(format, args...)}
}

func exitCode(err error) int {
	var se *sysError
	if errors.As(err, &se) {
		return exitSysError
	}
	if errors.Is(err, types.ErrStoreDetached) {
		return exitSysError
	}
	return exitUserError
}
