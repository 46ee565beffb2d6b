// Package main provides the recap CLI entry point.
// recap extracts meeting transcripts and metadata from rendered meeting recap pages.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/recap-cli/cmd"
	"github.com/otherjamesbrown/recap-cli/config"
	"github.com/otherjamesbrown/recap-cli/pkg/buildinfo"
)

// Global flags.
var (
	cfgFile      string
	timeout      time.Duration
	outputFormat string
	debug        bool
	logJSON      bool
)

// deps is shared by every subcommand.
var deps = cmd.DefaultDeps()

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "recap",
	Short: "Extract transcripts from meeting recap pages",
	Long: `recap extracts speaker-attributed transcripts and meeting metadata from
rendered meeting recap pages and exports them as Markdown or JSON.

Pages are read from static HTML snapshots (--html) or replay captures
(--capture). The embedded transcript frame is reached through a Redis
request/reply bridge (--frame) served by 'recap frame serve'.

COMMON WORKFLOWS:
  Inspect a meeting:  recap meeting info --html recap.html
  Full transcript:    recap transcript scroll --capture recap.yaml
  Export to file:     recap export --capture recap.yaml --format json
  With frame:         recap frame serve --capture frame.yaml  (in another shell)
                      recap export --capture recap.yaml --frame --mode cells

DISCOVERY:
  recap <command> --help      Subcommands, flags, and examples for any command
  recap config show           Effective configuration`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for commands that don't need it.
		if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		deps.Config = cfg
		return nil
	},
}

// loadConfig loads configuration from --config or the default path and
// applies command-line overrides.
func loadConfig() (*config.CLIConfig, error) {
	var (
		cfg *config.CLIConfig
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadConfigFrom(config.ExpandPath(cfgFile))
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return nil, err
	}

	applyFlagOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlagOverrides applies persistent flags that were set.
func applyFlagOverrides(cfg *config.CLIConfig) {
	if timeout != 0 {
		cfg.Timeout = timeout
	}
	if outputFormat != "" {
		cfg.OutputFormat = config.OutputFormat(outputFormat)
	}
	if debug {
		cfg.Debug = true
	}
	if logJSON {
		cfg.LogJSON = true
	}
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash, and build time of the recap CLI.

Examples:
  recap version
  recap version --output json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildinfo.Get("recap")
		out := cmd.OutOrStdout()

		switch config.OutputFormat(outputFormat) {
		case config.OutputFormatJSON:
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		case config.OutputFormatYAML:
			return yaml.NewEncoder(out).Encode(info)
		}

		fmt.Fprintf(out, "recap version %s\n", info.Version)
		fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
		fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
		fmt.Fprintf(out, "  go:         %s\n", info.GoVersion)
		return nil
	},
}

// configCmd manages CLI configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long:  `View and initialize the recap CLI configuration.`,
}

// configShowCmd displays current configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after file, environment and flag overrides.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := deps.Config
		out := cmd.OutOrStdout()

		configPath := cfgFile
		if configPath == "" {
			configPath, _ = config.ConfigPath()
		}

		fmt.Fprintln(out, "Current configuration:")
		fmt.Fprintf(out, "  Config file:       %s\n", configPath)
		fmt.Fprintf(out, "  Timeout:           %s\n", cfg.Timeout)
		fmt.Fprintf(out, "  Output format:     %s\n", cfg.OutputFormat)
		fmt.Fprintf(out, "  Debug:             %t\n", cfg.Debug)
		fmt.Fprintln(out, "  Collector:")
		fmt.Fprintf(out, "    Settle delay:    %s\n", cfg.Collector.SettleDelay)
		fmt.Fprintf(out, "    Max iterations:  %d\n", cfg.Collector.MaxIterations)
		fmt.Fprintf(out, "    Stuck threshold: %d\n", cfg.Collector.StuckThreshold)
		fmt.Fprintf(out, "    Cell selector:   %s\n", cfg.Collector.CellSelector)
		fmt.Fprintln(out, "  Bridge:")
		fmt.Fprintf(out, "    Redis:           %s (db %d)\n", cfg.Bridge.RedisAddress, cfg.Bridge.RedisDB)
		fmt.Fprintf(out, "    Channel prefix:  %s\n", cfg.Bridge.ChannelPrefix)
		fmt.Fprintf(out, "    Request timeout: %s\n", cfg.Bridge.RequestTimeout)
		fmt.Fprintf(out, "    Publish events:  %t\n", cfg.Bridge.PublishEvents)
		fmt.Fprintln(out, "  Export:")
		fmt.Fprintf(out, "    Format:          %s\n", cfg.Export.Format)
		fmt.Fprintf(out, "    Directory:       %s\n", cfg.Export.Dir)
		fmt.Fprintf(out, "    Timestamps:      %t\n", cfg.Export.IncludeTimestamps)
		database := "(not set)"
		if cfg.Database.IsConfigured() {
			database = cfg.Database.URL
		}
		fmt.Fprintf(out, "  Database:          %s\n", database)

		return nil
	},
}

// configInitCmd initializes configuration.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with default values if one doesn't exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		configPath, err := config.ConfigPath()
		if err != nil {
			return fmt.Errorf("getting config path: %w", err)
		}

		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(out, "Configuration file already exists: %s\n", configPath)
			fmt.Fprintln(out, "Use 'recap config show' to view current settings.")
			return nil
		}

		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(out, "Created configuration file: %s\n", configPath)
		return nil
	},
}

func init() {
	deps.LoadConfig = loadConfig

	// Global flags.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.recap/config.yaml)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "command timeout (e.g., 30s, 5m)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write logs as JSON lines")

	rootCmd.AddGroup(
		&cobra.Group{ID: "extract", Title: "Extraction:"},
		&cobra.Group{ID: "ops", Title: "Operations:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	for _, c := range []*cobra.Command{
		cmd.NewMeetingCommand(deps),
		cmd.NewTranscriptCommand(deps),
		cmd.NewExportCommand(deps),
	} {
		c.GroupID = "extract"
		rootCmd.AddCommand(c)
	}

	for _, c := range []*cobra.Command{
		cmd.NewFrameCommand(deps),
		cmd.NewMetricsCommand(deps),
	} {
		c.GroupID = "ops"
		rootCmd.AddCommand(c)
	}

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	secretsCmd := cmd.NewSecretsCommand(deps)
	for _, c := range []*cobra.Command{configCmd, secretsCmd, versionCmd} {
		c.GroupID = "setup"
		rootCmd.AddCommand(c)
	}
}

func main() {
	// Cancel the command context on interrupt so servers and collectors stop cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
