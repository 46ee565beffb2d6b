// Package config provides CLI configuration management for the recap command-line tool.
// It supports loading configuration from YAML files, environment variables, and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/recap-cli/pkg/transcript"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Default configuration values.
const (
	DefaultTimeout        = 5 * time.Minute
	DefaultOutputFormat   = OutputFormatText
	DefaultConfigDir      = ".recap"
	DefaultConfigFile     = "config.yaml"
	DefaultRedisAddress   = "localhost:6379"
	DefaultChannelPrefix  = "recap:frame"
	DefaultRequestTimeout = 10 * time.Second
	DefaultExportFormat   = "markdown"
)

// CollectorConfig holds the scroll collector tuning.
type CollectorConfig struct {
	SettleDelay           time.Duration
	ResetDelay            time.Duration
	ScrollStep            float64
	MaxIterations         int
	StuckThreshold        int
	StuckTolerance        float64
	MaxContainers         int
	OverflowMargin        float64
	MinContainerText      int
	CellSettleDelay       time.Duration
	CellNoMoveLimit       int
	CellSelector          string
	CellContainerSelector string
}

// ToCollectorConfig converts to the collector's own config type.
func (c CollectorConfig) ToCollectorConfig() transcript.CollectorConfig {
	return transcript.CollectorConfig{
		SettleDelay:           c.SettleDelay,
		ResetDelay:            c.ResetDelay,
		ScrollStep:            c.ScrollStep,
		MaxIterations:         c.MaxIterations,
		StuckThreshold:        c.StuckThreshold,
		StuckTolerance:        c.StuckTolerance,
		MaxContainers:         c.MaxContainers,
		OverflowMargin:        c.OverflowMargin,
		MinContainerText:      c.MinContainerText,
		CellSettleDelay:       c.CellSettleDelay,
		CellNoMoveLimit:       c.CellNoMoveLimit,
		CellSelector:          c.CellSelector,
		CellContainerSelector: c.CellContainerSelector,
	}
}

func defaultCollectorConfig() CollectorConfig {
	d := transcript.DefaultCollectorConfig()
	return CollectorConfig{
		SettleDelay:           d.SettleDelay,
		ResetDelay:            d.ResetDelay,
		ScrollStep:            d.ScrollStep,
		MaxIterations:         d.MaxIterations,
		StuckThreshold:        d.StuckThreshold,
		StuckTolerance:        d.StuckTolerance,
		MaxContainers:         d.MaxContainers,
		OverflowMargin:        d.OverflowMargin,
		MinContainerText:      d.MinContainerText,
		CellSettleDelay:       d.CellSettleDelay,
		CellNoMoveLimit:       d.CellNoMoveLimit,
		CellSelector:          d.CellSelector,
		CellContainerSelector: d.CellContainerSelector,
	}
}

// BridgeConfig holds the frame bridge settings.
type BridgeConfig struct {
	// RedisAddress is the Redis server (host:port) carrying frame requests.
	RedisAddress string `yaml:"redis_address"`

	// RedisDB selects the Redis logical database.
	RedisDB int `yaml:"redis_db"`

	// ChannelPrefix namespaces the request and reply channels.
	ChannelPrefix string `yaml:"channel_prefix"`

	// RequestTimeout bounds one frame request.
	RequestTimeout time.Duration `yaml:"-"`

	// PublishEvents emits an event per handled operation on Redis.
	PublishEvents bool `yaml:"publish_events"`
}

// DatabaseConfig holds the export history database settings.
type DatabaseConfig struct {
	// URL is a postgres:// DSN. The password comes from the credential store.
	URL string `yaml:"url"`
}

// IsConfigured returns true if a database URL is set.
func (c DatabaseConfig) IsConfigured() bool {
	return c.URL != ""
}

// ExportConfig holds defaults for the export command.
type ExportConfig struct {
	IncludeTimestamps bool   `yaml:"include_timestamps"`
	Format            string `yaml:"format"`
	Dir               string `yaml:"dir"`
}

// MetadataConfig holds metadata extraction switches.
type MetadataConfig struct {
	// TitleFallback recovers a title from the page article when no heading matches.
	TitleFallback bool `yaml:"title_fallback"`
}

// CLIConfig holds the CLI configuration settings.
type CLIConfig struct {
	// Timeout bounds every command.
	Timeout time.Duration

	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat

	// Debug enables verbose debug logging.
	Debug bool

	// LogJSON switches log output to JSON lines.
	LogJSON bool

	Collector CollectorConfig
	Bridge    BridgeConfig
	Database  DatabaseConfig
	Export    ExportConfig
	Metadata  MetadataConfig
}

// DefaultConfig returns a CLIConfig with default values.
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		Timeout:      DefaultTimeout,
		OutputFormat: DefaultOutputFormat,
		Collector:    defaultCollectorConfig(),
		Bridge: BridgeConfig{
			RedisAddress:   DefaultRedisAddress,
			ChannelPrefix:  DefaultChannelPrefix,
			RequestTimeout: DefaultRequestTimeout,
		},
		Export: ExportConfig{
			IncludeTimestamps: true,
			Format:            DefaultExportFormat,
			Dir:               ".",
		},
	}
}

// ConfigDir returns the configuration directory path.
// Uses $RECAP_CONFIG_DIR if set, otherwise ~/.recap
func ConfigDir() (string, error) {
	if dir := os.Getenv("RECAP_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the configuration from the default path.
func LoadConfig() (*CLIConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}
	return LoadConfigFrom(path)
}

// LoadConfigFrom loads the CLI configuration from path and environment variables.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file, when it exists
// 3. Environment variables (RECAP_*)
func LoadConfigFrom(path string) (*CLIConfig, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Durations are strings in YAML ("400ms").
type collectorFile struct {
	SettleDelay           string  `yaml:"settle_delay,omitempty"`
	ResetDelay            string  `yaml:"reset_delay,omitempty"`
	ScrollStep            float64 `yaml:"scroll_step,omitempty"`
	MaxIterations         int     `yaml:"max_iterations,omitempty"`
	StuckThreshold        int     `yaml:"stuck_threshold,omitempty"`
	StuckTolerance        float64 `yaml:"stuck_tolerance,omitempty"`
	MaxContainers         int     `yaml:"max_containers,omitempty"`
	OverflowMargin        float64 `yaml:"overflow_margin,omitempty"`
	MinContainerText      int     `yaml:"min_container_text,omitempty"`
	CellSettleDelay       string  `yaml:"cell_settle_delay,omitempty"`
	CellNoMoveLimit       int     `yaml:"cell_no_move_limit,omitempty"`
	CellSelector          string  `yaml:"cell_selector,omitempty"`
	CellContainerSelector string  `yaml:"cell_container_selector,omitempty"`
}

type bridgeFile struct {
	RedisAddress   string `yaml:"redis_address,omitempty"`
	RedisDB        int    `yaml:"redis_db,omitempty"`
	ChannelPrefix  string `yaml:"channel_prefix,omitempty"`
	RequestTimeout string `yaml:"request_timeout,omitempty"`
	PublishEvents  bool   `yaml:"publish_events,omitempty"`
}

type exportFile struct {
	IncludeTimestamps *bool  `yaml:"include_timestamps,omitempty"`
	Format            string `yaml:"format,omitempty"`
	Dir               string `yaml:"dir,omitempty"`
}

type configFile struct {
	Timeout      string         `yaml:"timeout,omitempty"`
	OutputFormat OutputFormat   `yaml:"output_format,omitempty"`
	Debug        bool           `yaml:"debug,omitempty"`
	LogJSON      bool           `yaml:"log_json,omitempty"`
	Collector    collectorFile  `yaml:"collector,omitempty"`
	Bridge       bridgeFile     `yaml:"bridge,omitempty"`
	Database     DatabaseConfig `yaml:"database,omitempty"`
	Export       exportFile     `yaml:"export,omitempty"`
	Metadata     MetadataConfig `yaml:"metadata,omitempty"`
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *CLIConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fileCfg configFile
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if err := setDuration(&cfg.Timeout, fileCfg.Timeout, "timeout"); err != nil {
		return err
	}
	if fileCfg.OutputFormat != "" {
		cfg.OutputFormat = fileCfg.OutputFormat
	}
	cfg.Debug = fileCfg.Debug
	cfg.LogJSON = fileCfg.LogJSON

	if err := applyCollector(&cfg.Collector, fileCfg.Collector); err != nil {
		return err
	}

	b := fileCfg.Bridge
	if b.RedisAddress != "" {
		cfg.Bridge.RedisAddress = b.RedisAddress
	}
	if b.RedisDB != 0 {
		cfg.Bridge.RedisDB = b.RedisDB
	}
	if b.ChannelPrefix != "" {
		cfg.Bridge.ChannelPrefix = b.ChannelPrefix
	}
	if err := setDuration(&cfg.Bridge.RequestTimeout, b.RequestTimeout, "bridge.request_timeout"); err != nil {
		return err
	}
	cfg.Bridge.PublishEvents = b.PublishEvents

	if fileCfg.Database.URL != "" {
		cfg.Database.URL = fileCfg.Database.URL
	}

	e := fileCfg.Export
	if e.IncludeTimestamps != nil {
		cfg.Export.IncludeTimestamps = *e.IncludeTimestamps
	}
	if e.Format != "" {
		cfg.Export.Format = e.Format
	}
	if e.Dir != "" {
		cfg.Export.Dir = ExpandPath(e.Dir)
	}

	cfg.Metadata = fileCfg.Metadata

	return nil
}

func applyCollector(c *CollectorConfig, f collectorFile) error {
	if err := setDuration(&c.SettleDelay, f.SettleDelay, "collector.settle_delay"); err != nil {
		return err
	}
	if err := setDuration(&c.ResetDelay, f.ResetDelay, "collector.reset_delay"); err != nil {
		return err
	}
	if err := setDuration(&c.CellSettleDelay, f.CellSettleDelay, "collector.cell_settle_delay"); err != nil {
		return err
	}
	if f.ScrollStep != 0 {
		c.ScrollStep = f.ScrollStep
	}
	if f.MaxIterations != 0 {
		c.MaxIterations = f.MaxIterations
	}
	if f.StuckThreshold != 0 {
		c.StuckThreshold = f.StuckThreshold
	}
	if f.StuckTolerance != 0 {
		c.StuckTolerance = f.StuckTolerance
	}
	if f.MaxContainers != 0 {
		c.MaxContainers = f.MaxContainers
	}
	if f.OverflowMargin != 0 {
		c.OverflowMargin = f.OverflowMargin
	}
	if f.MinContainerText != 0 {
		c.MinContainerText = f.MinContainerText
	}
	if f.CellNoMoveLimit != 0 {
		c.CellNoMoveLimit = f.CellNoMoveLimit
	}
	if f.CellSelector != "" {
		c.CellSelector = f.CellSelector
	}
	if f.CellContainerSelector != "" {
		c.CellContainerSelector = f.CellContainerSelector
	}
	return nil
}

func setDuration(dst *time.Duration, value, name string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = d
	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *CLIConfig) error {
	if v := os.Getenv("RECAP_TIMEOUT"); v != "" {
		if err := setDuration(&cfg.Timeout, v, "RECAP_TIMEOUT"); err != nil {
			return err
		}
	}

	if v := os.Getenv("RECAP_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}

	if v := os.Getenv("RECAP_DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}

	if v := os.Getenv("RECAP_LOG_JSON"); v == "true" || v == "1" {
		cfg.LogJSON = true
	}

	if v := os.Getenv("RECAP_REDIS_ADDRESS"); v != "" {
		cfg.Bridge.RedisAddress = v
	}

	if v := os.Getenv("RECAP_REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing RECAP_REDIS_DB: %w", err)
		}
		cfg.Bridge.RedisDB = db
	}

	if v := os.Getenv("RECAP_CHANNEL_PREFIX"); v != "" {
		cfg.Bridge.ChannelPrefix = v
	}

	if v := os.Getenv("RECAP_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}

	if v := os.Getenv("RECAP_EXPORT_DIR"); v != "" {
		cfg.Export.Dir = ExpandPath(v)
	}

	if v := os.Getenv("RECAP_SETTLE_DELAY"); v != "" {
		if err := setDuration(&cfg.Collector.SettleDelay, v, "RECAP_SETTLE_DELAY"); err != nil {
			return err
		}
	}

	if v := os.Getenv("RECAP_MAX_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing RECAP_MAX_ITERATIONS: %w", err)
		}
		cfg.Collector.MaxIterations = n
	}

	return nil
}

// Validate checks that the configuration is valid.
func (c *CLIConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}

	col := c.Collector
	if col.SettleDelay < 0 || col.ResetDelay < 0 || col.CellSettleDelay < 0 {
		return fmt.Errorf("collector delays must not be negative")
	}
	if col.ScrollStep <= 0 {
		return fmt.Errorf("collector.scroll_step must be positive")
	}
	if col.MaxIterations <= 0 {
		return fmt.Errorf("collector.max_iterations must be positive")
	}
	if col.StuckThreshold <= 0 || col.CellNoMoveLimit <= 0 {
		return fmt.Errorf("collector stuck thresholds must be positive")
	}

	if c.Bridge.RequestTimeout <= 0 {
		return fmt.Errorf("bridge.request_timeout must be positive")
	}
	if c.Bridge.ChannelPrefix == "" {
		return fmt.Errorf("bridge.channel_prefix is required")
	}

	switch strings.ToLower(c.Export.Format) {
	case "markdown", "md", "json":
	default:
		return fmt.Errorf("invalid export.format: %q (must be markdown or json)", c.Export.Format)
	}

	return nil
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// SaveConfig writes cfg to the default config path.
func SaveConfig(cfg *CLIConfig) error {
	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	includeTimestamps := cfg.Export.IncludeTimestamps
	col := cfg.Collector
	fileCfg := configFile{
		Timeout:      cfg.Timeout.String(),
		OutputFormat: cfg.OutputFormat,
		Debug:        cfg.Debug,
		LogJSON:      cfg.LogJSON,
		Collector: collectorFile{
			SettleDelay:           col.SettleDelay.String(),
			ResetDelay:            col.ResetDelay.String(),
			ScrollStep:            col.ScrollStep,
			MaxIterations:         col.MaxIterations,
			StuckThreshold:        col.StuckThreshold,
			StuckTolerance:        col.StuckTolerance,
			MaxContainers:         col.MaxContainers,
			OverflowMargin:        col.OverflowMargin,
			MinContainerText:      col.MinContainerText,
			CellSettleDelay:       col.CellSettleDelay.String(),
			CellNoMoveLimit:       col.CellNoMoveLimit,
			CellSelector:          col.CellSelector,
			CellContainerSelector: col.CellContainerSelector,
		},
		Bridge: bridgeFile{
			RedisAddress:   cfg.Bridge.RedisAddress,
			RedisDB:        cfg.Bridge.RedisDB,
			ChannelPrefix:  cfg.Bridge.ChannelPrefix,
			RequestTimeout: cfg.Bridge.RequestTimeout.String(),
			PublishEvents:  cfg.Bridge.PublishEvents,
		},
		Database: cfg.Database,
		Export: exportFile{
			IncludeTimestamps: &includeTimestamps,
			Format:            cfg.Export.Format,
			Dir:               cfg.Export.Dir,
		},
		Metadata: cfg.Metadata,
	}

	data, err := yaml.Marshal(&fileCfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(configDir, DefaultConfigFile), data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// ExpandPath expands a leading ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
