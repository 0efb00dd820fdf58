package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

// resetViper clears all viper state between tests to avoid cross-contamination.
func resetViper() {
	viper.Reset()
}

func TestLoad_Defaults(t *testing.T) {
	resetViper()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"PatchesDir", cfg.PatchesDir, "patches"},
		{"StateDB", cfg.StateDB, ".titlepatch.db"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFormat", cfg.LogFormat, "text"},
		{"TelemetryPath", cfg.TelemetryPath, ""},
		{"WatchDebounceMS", cfg.WatchDebounceMS, 100},
		{"Verbose", cfg.Verbose, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tests := []struct {
		name   string
		envKey string
		envVal string
		field  func(Config) any
		want   any
	}{
		{
			name:   "patches_dir",
			envKey: "TITLEPATCH_PATCHES_DIR",
			envVal: "/srv/patches",
			field:  func(c Config) any { return c.PatchesDir },
			want:   "/srv/patches",
		},
		{
			name:   "state_db",
			envKey: "TITLEPATCH_STATE_DB",
			envVal: "/tmp/state.db",
			field:  func(c Config) any { return c.StateDB },
			want:   "/tmp/state.db",
		},
		{
			name:   "log_format",
			envKey: "TITLEPATCH_LOG_FORMAT",
			envVal: "json",
			field:  func(c Config) any { return c.LogFormat },
			want:   "json",
		},
		{
			name:   "watch_debounce_ms",
			envKey: "TITLEPATCH_WATCH_DEBOUNCE_MS",
			envVal: "250",
			field:  func(c Config) any { return c.WatchDebounceMS },
			want:   250,
		},
		{
			name:   "verbose raises log level",
			envKey: "TITLEPATCH_VERBOSE",
			envVal: "true",
			field:  func(c Config) any { return c.LogLevel },
			want:   "debug",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper()
			viper.SetEnvPrefix("TITLEPATCH")
			viper.AutomaticEnv()

			t.Setenv(tt.envKey, tt.envVal)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() returned unexpected error: %v", err)
			}
			got := tt.field(cfg)
			if got != tt.want {
				t.Errorf("%s: got %v (%T), want %v (%T)", tt.name, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	resetViper()

	path := filepath.Join(t.TempDir(), ".titlepatch.yaml")
	content := "patches_dir: /games/patches\nlog_level: warn\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.PatchesDir != "/games/patches" || cfg.LogLevel != "warn" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.StateDB != ".titlepatch.db" {
		t.Errorf("StateDB = %q, want default", cfg.StateDB)
	}
}

func TestLoad_RejectsNegativeDebounce(t *testing.T) {
	resetViper()
	viper.Set("watch_debounce_ms", -5)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative watch_debounce_ms")
	}
}
