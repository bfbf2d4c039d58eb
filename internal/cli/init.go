package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/journey/internal/paths"
	"github.com/mesh-intelligence/journey/internal/sqlite"
	"github.com/mesh-intelligence/journey/pkg/types"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a journey workspace",
		Long:  "Create the configuration and data directories, write a default config.yaml, and initialize the journey store.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(cmd)
		},
	}
}

func (a *app) runInit(cmd *cobra.Command) error {
	configDir, err := paths.ConfigDir(a.flags.configDir)
	if err != nil {
		return system("resolve config dir: %w", err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return system("create config directory: %w", err)
	}
	if err := writeConfigIfMissing(paths.ConfigFile(configDir)); err != nil {
		return system("write config: %w", err)
	}

	cfg, _, err := a.resolve()
	if err != nil {
		return err
	}
	store := sqlite.NewStore()
	if err := store.Attach(cfg.DataDir); err != nil {
		return system("initialize storage: %w", err)
	}
	if err := store.Detach(); err != nil {
		return system("finalize storage: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Journey workspace initialized in %s\n", configDir)
	return nil
}

// writeConfigIfMissing creates config.yaml with the default settings. An
// existing file is left alone.
func writeConfigIfMissing(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	data, err := defaultConfigYAML(types.DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
