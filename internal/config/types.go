package config

import "time"

// Settings is the runtime configuration of rig. Every field has a default, so a missing
// settings file is not an error.
// - Repo/APIBase: where the latest release is resolved from.
// - InstallDir: user-scoped directory the binary is installed into; empty means ~/.local/bin.
// - LogFile: preferred installation log; the home and temp fallbacks are always tried after it.
// - CatalogFile: optional replacement for the embedded tool catalog.
// - StateFile: where run outcomes are recorded for `rig status`.
type Settings struct {
	Repo        string        `mapstructure:"repo"`
	APIBase     string        `mapstructure:"api_base"`
	InstallDir  string        `mapstructure:"install_dir"`
	LogFile     string        `mapstructure:"log_file"`
	CatalogFile string        `mapstructure:"catalog_file"`
	StateFile   string        `mapstructure:"state_file"`
	Retry       RetrySettings `mapstructure:"retry"`
}

// RetrySettings tunes the backoff between network attempts. The attempt count is fixed.
type RetrySettings struct {
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	Multiplier float64       `mapstructure:"multiplier"`
}
