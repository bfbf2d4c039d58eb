// Package paths resolves the configuration and data directories of a journey
// workspace.
package paths

import (
	"os"
	"path/filepath"
)

// Workspace layout. A workspace keeps config.yaml and the data directory
// under one hidden directory in the working directory.
const (
	WorkspaceDirName = ".journey"
	DataDirName      = "data"
	ConfigFileName   = "config.yaml"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "JOURNEY_CONFIG_DIR"
	EnvDataDir   = "JOURNEY_DATA_DIR"
)

// getwd is replaced in tests.
var getwd = os.Getwd

// ConfigDir returns the configuration directory: flag, then JOURNEY_CONFIG_DIR,
// then .journey in the working directory. The result is absolute.
func ConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, WorkspaceDirName), nil
}

// DataDir returns the data directory: flag, then JOURNEY_DATA_DIR, then the
// data_dir value from config.yaml, then configDir/data. A relative
// configured value is taken relative to configDir.
func DataDir(flag, configured, configDir string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	if configured != "" {
		if filepath.IsAbs(configured) {
			return filepath.Clean(configured), nil
		}
		return filepath.Join(configDir, configured), nil
	}
	return filepath.Join(configDir, DataDirName), nil
}

// ConfigFile returns the path of config.yaml in configDir.
func ConfigFile(configDir string) string {
	return filepath.Join(configDir, ConfigFileName)
}
