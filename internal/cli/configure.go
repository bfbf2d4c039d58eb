package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/journey/internal/nodeconfig"
	"github.com/mesh-intelligence/journey/pkg/types"
)

func newConfigureCmd(a *app) *cobra.Command {
	var (
		sets    []string
		payload string
	)
	cmd := &cobra.Command{
		Use:   "configure <node-id>",
		Short: "Apply a configuration to a node",
		Long: `Apply a configuration payload to a node and create its preview lines.

The payload is given as key=value pairs, as a JSON object, or both; pairs
override keys of the JSON object. Values that parse as JSON are used as
such, anything else is a string.

Example:
  journey configure split --payload '{"crowdLayers":[{"id":"vip","crowdName":"VIP"}]}'
  journey configure ab --set groupARatio=70 --set groupBRatio=30
  journey configure sms1 --set nodeName=welcome`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := parsePayload(payload, sets)
			if err != nil {
				return err
			}
			return a.run(cmd, true, func(w *workspace) error {
				lines, err := w.session.Configure(cmd.Context(), args[0], cfg)
				if err != nil {
					var verr *nodeconfig.ValidationError
					if errors.As(err, &verr) {
						for _, msg := range verr.Errors {
							bad.Fprintln(cmd.ErrOrStderr(), "  "+msg)
						}
					}
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), lines)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Configured %s\n", args[0])
				printLines(cmd.OutOrStdout(), lines)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "config entry as key=value (repeatable)")
	cmd.Flags().StringVar(&payload, "payload", "", "config as a JSON object")
	return cmd
}

func newCancelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <node-id>",
		Short: "Restore a node's preview lines after an abandoned edit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, false, func(w *workspace) error {
				lines, err := w.session.Cancel(args[0])
				if err != nil {
					return err
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

// parsePayload merges a JSON object and key=value pairs into one config.
func parsePayload(payload string, sets []string) (map[string]any, error) {
	cfg := map[string]any{}
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
			return nil, fmt.Errorf("parse --payload: %w", err)
		}
	}
	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q (expected key=value)", kv)
		}
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			parsed = value
		}
		cfg[key] = parsed
	}
	if len(cfg) == 0 {
		return nil, fmt.Errorf("no configuration given: %w", types.ErrInvalidConfig)
	}
	return cfg, nil
}

func printLines(w io.Writer, lines []types.PreviewLine) {
	rows := make([][]string, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, []string{
			l.SourceNodeID,
			l.BranchID,
			l.SourcePortID,
			string(l.State),
			formatEndpoint(l.Endpoint),
			l.Color,
		})
	}
	printTable(w, []string{"NODE", "BRANCH", "PORT", "STATE", "ENDPOINT", "COLOR"}, rows)
}
