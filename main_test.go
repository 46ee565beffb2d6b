package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/otherjamesbrown/recap-cli/config"
)

func TestVersionCommand(t *testing.T) {
	if versionCmd.Use != "version" {
		t.Errorf("Unexpected Use: %s", versionCmd.Use)
	}
	if versionCmd.Short != "Print version information" {
		t.Errorf("Unexpected Short: %s", versionCmd.Short)
	}
}

func TestVersionOutput(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)

	if err := versionCmd.RunE(versionCmd, nil); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"recap version", "commit:", "built:", "go:"} {
		if !strings.Contains(output, want) {
			t.Errorf("version output does not contain %q. Output:\n%s", want, output)
		}
	}
}

func TestVersionOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)

	outputFormat = "json"
	defer func() { outputFormat = "" }()

	if err := versionCmd.RunE(versionCmd, nil); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	var info map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &info); err != nil {
		t.Fatalf("version --output json produced invalid JSON: %v\n%s", err, buf.String())
	}
	if info["name"] != "recap" {
		t.Errorf("name = %v, want recap", info["name"])
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	want := []string{"meeting", "transcript", "export", "frame", "metrics", "secrets", "config", "version"}
	for _, name := range want {
		c, _, err := rootCmd.Find([]string{name})
		if err != nil || c == nil || c.Name() != name {
			t.Errorf("root command is missing %q", name)
		}
	}

	for _, flag := range []string{"config", "timeout", "output", "debug", "log-json"} {
		if rootCmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("--%s persistent flag not found", flag)
		}
	}
}

func TestLoadConfig_AppliesFlagOverrides(t *testing.T) {
	t.Setenv("RECAP_CONFIG_DIR", t.TempDir())
	t.Setenv("RECAP_OUTPUT_FORMAT", "")
	t.Setenv("RECAP_TIMEOUT", "")

	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("timeout: 2m\noutput_format: yaml\n"), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfgFile, outputFormat, timeout, logJSON = path, "json", 30*time.Second, true
	defer func() {
		cfgFile, outputFormat, timeout, logJSON = "", "", 0, false
	}()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.OutputFormat != config.OutputFormatJSON {
		t.Errorf("OutputFormat = %v, want json", cfg.OutputFormat)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if !cfg.LogJSON {
		t.Error("LogJSON should be true")
	}
}

func TestLoadConfig_RejectsInvalidOutputFlag(t *testing.T) {
	t.Setenv("RECAP_CONFIG_DIR", t.TempDir())

	outputFormat = "xml"
	defer func() { outputFormat = "" }()

	if _, err := loadConfig(); err == nil {
		t.Error("loadConfig() should reject --output xml")
	}
}
