package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for a titlepatch session.
// Values are populated from .titlepatch.yaml, TITLEPATCH_* env vars, and CLI flags.
type Config struct {
	PatchesDir      string `mapstructure:"patches_dir"`
	StateDB         string `mapstructure:"state_db"`
	LogLevel        string `mapstructure:"log_level"`
	LogFormat       string `mapstructure:"log_format"`
	TelemetryPath   string `mapstructure:"telemetry_path"`
	WatchDebounceMS int    `mapstructure:"watch_debounce_ms"`
	Verbose         bool   `mapstructure:"verbose"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("patches_dir", "patches")
	viper.SetDefault("state_db", ".titlepatch.db")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("telemetry_path", "")
	viper.SetDefault("watch_debounce_ms", 100)
	viper.SetDefault("verbose", false)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}
	if cfg.WatchDebounceMS < 0 {
		return Config{}, fmt.Errorf("watch_debounce_ms must be >= 0, got %d", cfg.WatchDebounceMS)
	}
	return cfg, nil
}
