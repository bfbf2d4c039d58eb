package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/journey/internal/paths"
	"github.com/mesh-intelligence/journey/pkg/types"
)

const envPrefix = "JOURNEY"

// configHeader precedes the YAML written by journey init.
const configHeader = `# Journey workspace configuration.
# Every key may be overridden with a JOURNEY_ environment variable,
# for example JOURNEY_LOG_LEVEL=debug or JOURNEY_CACHE_MAX_SIZE=500.
`

// defaultConfigYAML renders the default configuration as YAML.
func defaultConfigYAML(cfg types.Config) ([]byte, error) {
	body, err := yaml.Marshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return append([]byte(configHeader), body...), nil
}

// loadConfig reads config.yaml from configDir over the built-in defaults and
// applies JOURNEY_ environment overrides. A missing config.yaml is not an
// error.
func loadConfig(configDir string) (types.Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	base, err := yaml.Marshal(types.DefaultConfig())
	if err != nil {
		return types.Config{}, fmt.Errorf("marshal defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(base)); err != nil {
		return types.Config{}, fmt.Errorf("read defaults: %w", err)
	}

	path := paths.ConfigFile(configDir)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return types.Config{}, fmt.Errorf("stat config file: %w", err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
