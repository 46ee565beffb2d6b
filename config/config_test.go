package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/otherjamesbrown/recap-cli/pkg/transcript"
)

// clearEnv isolates a test from RECAP_* variables set in the caller's shell.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RECAP_TIMEOUT", "RECAP_OUTPUT_FORMAT", "RECAP_DEBUG", "RECAP_LOG_JSON",
		"RECAP_REDIS_ADDRESS", "RECAP_REDIS_DB", "RECAP_CHANNEL_PREFIX",
		"RECAP_DATABASE_URL", "RECAP_EXPORT_DIR", "RECAP_SETTLE_DELAY", "RECAP_MAX_ITERATIONS",
	} {
		t.Setenv(key, "")
	}
}

// TestDefaultConfig verifies default configuration values.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.OutputFormat != OutputFormatText {
		t.Errorf("OutputFormat = %v, want text", cfg.OutputFormat)
	}
	if cfg.Debug || cfg.LogJSON {
		t.Error("Debug and LogJSON should be false by default")
	}
	if cfg.Bridge.RedisAddress != DefaultRedisAddress {
		t.Errorf("Bridge.RedisAddress = %v, want %v", cfg.Bridge.RedisAddress, DefaultRedisAddress)
	}
	if cfg.Bridge.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("Bridge.RequestTimeout = %v, want %v", cfg.Bridge.RequestTimeout, DefaultRequestTimeout)
	}
	if !cfg.Export.IncludeTimestamps {
		t.Error("Export.IncludeTimestamps should default to true")
	}
	if cfg.Export.Format != "markdown" {
		t.Errorf("Export.Format = %v, want markdown", cfg.Export.Format)
	}
	if cfg.Database.IsConfigured() {
		t.Error("Database should not be configured by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestCollectorConfig_RoundTrip(t *testing.T) {
	got := DefaultConfig().Collector.ToCollectorConfig()
	want := transcript.DefaultCollectorConfig()

	if got != want {
		t.Errorf("ToCollectorConfig() = %+v, want %+v", got, want)
	}
}

// TestOutputFormat_IsValid verifies output format validation.
func TestOutputFormat_IsValid(t *testing.T) {
	tests := []struct {
		format OutputFormat
		want   bool
	}{
		{OutputFormatText, true},
		{OutputFormatJSON, true},
		{OutputFormatYAML, true},
		{"xml", false},
		{"", false},
		{"JSON", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			if got := tt.format.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestCLIConfig_Validate verifies configuration validation.
func TestCLIConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CLIConfig)
		wantErr string
	}{
		{"valid", func(*CLIConfig) {}, ""},
		{"zero timeout", func(c *CLIConfig) { c.Timeout = 0 }, "timeout must be positive"},
		{"bad output", func(c *CLIConfig) { c.OutputFormat = "xml" }, "invalid output_format"},
		{"negative delay", func(c *CLIConfig) { c.Collector.SettleDelay = -time.Second }, "must not be negative"},
		{"zero scroll step", func(c *CLIConfig) { c.Collector.ScrollStep = 0 }, "scroll_step"},
		{"zero iterations", func(c *CLIConfig) { c.Collector.MaxIterations = 0 }, "max_iterations"},
		{"zero stuck threshold", func(c *CLIConfig) { c.Collector.StuckThreshold = 0 }, "stuck thresholds"},
		{"zero bridge timeout", func(c *CLIConfig) { c.Bridge.RequestTimeout = 0 }, "request_timeout"},
		{"empty prefix", func(c *CLIConfig) { c.Bridge.ChannelPrefix = "" }, "channel_prefix"},
		{"bad export format", func(c *CLIConfig) { c.Export.Format = "pdf" }, "invalid export.format"},
		{"md alias", func(c *CLIConfig) { c.Export.Format = "MD" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

// TestConfigDir verifies config directory path resolution.
func TestConfigDir(t *testing.T) {
	t.Run("with env var", func(t *testing.T) {
		t.Setenv("RECAP_CONFIG_DIR", "/tmp/test-recap-config")

		dir, err := ConfigDir()
		if err != nil {
			t.Fatalf("ConfigDir() error = %v", err)
		}
		if dir != "/tmp/test-recap-config" {
			t.Errorf("ConfigDir() = %v, want /tmp/test-recap-config", dir)
		}

		path, err := ConfigPath()
		if err != nil {
			t.Fatalf("ConfigPath() error = %v", err)
		}
		if want := filepath.Join("/tmp/test-recap-config", DefaultConfigFile); path != want {
			t.Errorf("ConfigPath() = %v, want %v", path, want)
		}
	})

	t.Run("default without env var", func(t *testing.T) {
		t.Setenv("RECAP_CONFIG_DIR", "")

		dir, err := ConfigDir()
		if err != nil {
			t.Fatalf("ConfigDir() error = %v", err)
		}
		home, _ := os.UserHomeDir()
		if want := filepath.Join(home, DefaultConfigDir); dir != want {
			t.Errorf("ConfigDir() = %v, want %v", dir, want)
		}
	})
}

// TestLoadConfig_Defaults verifies default values when no config exists.
func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECAP_CONFIG_DIR", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.Collector.MaxIterations != transcript.DefaultMaxIterations {
		t.Errorf("Collector.MaxIterations = %v, want %v", cfg.Collector.MaxIterations, transcript.DefaultMaxIterations)
	}
}

// TestLoadConfig_FromFile verifies YAML parsing including string durations.
func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	content := `timeout: 90s
output_format: json
debug: true
collector:
  settle_delay: 250ms
  max_iterations: 40
  cell_selector: ".row"
bridge:
  redis_address: redis.internal:6380
  request_timeout: 3s
  publish_events: true
database:
  url: postgres://recap@db.internal/recap
export:
  include_timestamps: false
  format: json
metadata:
  title_fallback: true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("LoadConfigFrom() error = %v", err)
	}

	if cfg.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want 90s", cfg.Timeout)
	}
	if cfg.OutputFormat != OutputFormatJSON || !cfg.Debug {
		t.Errorf("OutputFormat/Debug = %v/%v, want json/true", cfg.OutputFormat, cfg.Debug)
	}
	if cfg.Collector.SettleDelay != 250*time.Millisecond {
		t.Errorf("Collector.SettleDelay = %v, want 250ms", cfg.Collector.SettleDelay)
	}
	if cfg.Collector.MaxIterations != 40 || cfg.Collector.CellSelector != ".row" {
		t.Errorf("Collector = %+v", cfg.Collector)
	}
	if cfg.Collector.StuckThreshold != transcript.DefaultStuckThreshold {
		t.Errorf("unset Collector.StuckThreshold = %v, want default", cfg.Collector.StuckThreshold)
	}
	if cfg.Bridge.RedisAddress != "redis.internal:6380" || cfg.Bridge.RequestTimeout != 3*time.Second || !cfg.Bridge.PublishEvents {
		t.Errorf("Bridge = %+v", cfg.Bridge)
	}
	if !cfg.Database.IsConfigured() {
		t.Error("Database should be configured")
	}
	if cfg.Export.IncludeTimestamps {
		t.Error("Export.IncludeTimestamps should be false")
	}
	if !cfg.Metadata.TitleFallback {
		t.Error("Metadata.TitleFallback should be true")
	}
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("collector:\n  settle_delay: soon\n"), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	_, err := LoadConfigFrom(path)
	if err == nil || !strings.Contains(err.Error(), "collector.settle_delay") {
		t.Errorf("LoadConfigFrom() error = %v, want settle_delay parse error", err)
	}
}

// TestLoadConfig_WithEnvOverrides verifies environment variables win over the file.
func TestLoadConfig_WithEnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("RECAP_CONFIG_DIR", dir)
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("timeout: 1m\n"), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	t.Setenv("RECAP_TIMEOUT", "45s")
	t.Setenv("RECAP_OUTPUT_FORMAT", "yaml")
	t.Setenv("RECAP_DEBUG", "1")
	t.Setenv("RECAP_REDIS_DB", "3")
	t.Setenv("RECAP_DATABASE_URL", "postgres://env/recap")
	t.Setenv("RECAP_MAX_ITERATIONS", "12")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", cfg.Timeout)
	}
	if cfg.OutputFormat != OutputFormatYAML || !cfg.Debug {
		t.Errorf("OutputFormat/Debug = %v/%v", cfg.OutputFormat, cfg.Debug)
	}
	if cfg.Bridge.RedisDB != 3 {
		t.Errorf("Bridge.RedisDB = %v, want 3", cfg.Bridge.RedisDB)
	}
	if cfg.Database.URL != "postgres://env/recap" {
		t.Errorf("Database.URL = %v", cfg.Database.URL)
	}
	if cfg.Collector.MaxIterations != 12 {
		t.Errorf("Collector.MaxIterations = %v, want 12", cfg.Collector.MaxIterations)
	}
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	for _, key := range []string{"RECAP_TIMEOUT", "RECAP_REDIS_DB", "RECAP_MAX_ITERATIONS"} {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, "not-a-number")
			if err := loadFromEnv(DefaultConfig()); err == nil {
				t.Errorf("loadFromEnv() with bad %s should fail", key)
			}
		})
	}
}

// TestSaveConfig verifies a saved config loads back unchanged.
func TestSaveConfig(t *testing.T) {
	clearEnv(t)
	dir := filepath.Join(t.TempDir(), "nested")
	t.Setenv("RECAP_CONFIG_DIR", dir)

	cfg := DefaultConfig()
	cfg.Timeout = 2 * time.Minute
	cfg.OutputFormat = OutputFormatJSON
	cfg.Collector.ResetDelay = 900 * time.Millisecond
	cfg.Bridge.ChannelPrefix = "test:frame"
	cfg.Export.IncludeTimestamps = false

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	path := filepath.Join(dir, DefaultConfigFile)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file permissions = %o, want 0600", perm)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if loaded.Timeout != cfg.Timeout || loaded.OutputFormat != cfg.OutputFormat {
		t.Errorf("loaded = %v/%v, want %v/%v", loaded.Timeout, loaded.OutputFormat, cfg.Timeout, cfg.OutputFormat)
	}
	if loaded.Collector != cfg.Collector {
		t.Errorf("loaded.Collector = %+v, want %+v", loaded.Collector, cfg.Collector)
	}
	if loaded.Bridge.ChannelPrefix != "test:frame" {
		t.Errorf("loaded.Bridge.ChannelPrefix = %v", loaded.Bridge.ChannelPrefix)
	}
	if loaded.Export.IncludeTimestamps {
		t.Error("loaded.Export.IncludeTimestamps should stay false")
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	if got := ExpandPath("~/exports"); got != filepath.Join(home, "exports") {
		t.Errorf("ExpandPath(~/exports) = %v", got)
	}
	if got := ExpandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("ExpandPath(/abs/path) = %v", got)
	}
}
