// Package config loads rig's settings from defaults, an optional YAML file and RIG_*
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"rig/internal/logger"
	"rig/internal/release"
	"rig/internal/retry"
)

// EnvPrefix is the prefix of environment overrides, e.g. RIG_INSTALL_DIR.
const EnvPrefix = "RIG"

// DefaultConfigFile is $XDG_CONFIG_HOME/rig/config.yaml.
func DefaultConfigFile() string {
	return filepath.Join(xdg.ConfigHome, "rig", "config.yaml")
}

// DefaultStateFile is $XDG_STATE_HOME/rig/state.json.
func DefaultStateFile() string {
	return filepath.Join(xdg.StateHome, "rig", "state.json")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("repo", release.DefaultRepo)
	v.SetDefault("api_base", release.DefaultAPIBase)
	v.SetDefault("install_dir", "")
	v.SetDefault("log_file", logger.DefaultLogPath)
	v.SetDefault("catalog_file", "")
	v.SetDefault("state_file", DefaultStateFile())
	v.SetDefault("retry.base_delay", retry.Default.BaseDelay)
	v.SetDefault("retry.multiplier", retry.Default.Multiplier)
}

// Load reads settings. An explicit path must exist; the default path is optional.
func Load(path string) (Settings, error) {
	v := newViper()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile()
	}
	if _, err := os.Stat(path); !explicit && errors.Is(err, fs.ErrNotExist) {
		logger.Debug("[DEBUG] No config file at %s, using defaults\n", path)
	} else {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		logger.Debug("[DEBUG] Loaded config from %s\n", v.ConfigFileUsed())
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if s.Retry.BaseDelay <= 0 {
		return Settings{}, fmt.Errorf("retry.base_delay must be positive, got %s", s.Retry.BaseDelay)
	}
	if s.Retry.Multiplier <= 1 {
		return Settings{}, fmt.Errorf("retry.multiplier must be greater than 1, got %g", s.Retry.Multiplier)
	}
	return s, nil
}

// RetryPolicy is the network retry policy described by s.
func (s Settings) RetryPolicy() retry.Policy {
	return retry.Policy{Attempts: retry.DefaultAttempts, BaseDelay: s.Retry.BaseDelay, Multiplier: s.Retry.Multiplier}
}
