package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/recap-cli/pkg/logging"
	"github.com/otherjamesbrown/recap-cli/pkg/scraper"
	"github.com/otherjamesbrown/recap-cli/pkg/transcript"
)

// NewTranscriptCommand creates the transcript command group.
func NewTranscriptCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Extract the meeting transcript",
		Long: `Extract the speaker turns of a meeting transcript.

Three strategies are available:
  extract  Read whatever the page currently renders
  scroll   Scroll every transcript container and accumulate entries
  cells    Step through virtualized list cells one at a time

Every strategy reads the parent page and, with --frame, the embedded
transcript frame served by 'recap frame serve'. Results from both are
merged, deduplicated and sorted by timestamp.

An empty transcript is not an error. The command fails only when the page
could not be read or the frame bridge did not answer.

'import' reads a transcript file downloaded from the meeting client (WebVTT
or the plain "0:11 : Speaker : text" layout) instead of a page.

Examples:
  recap transcript extract --html recap.html
  recap transcript scroll --capture recap.yaml --output json
  recap transcript cells --capture parent.yaml --frame
  recap transcript import meeting.vtt`,
	}

	cmd.AddCommand(newTranscriptOpCommand(deps, "extract", scraper.OpExtractTranscript,
		"Extract the transcript visible on the page"))
	cmd.AddCommand(newTranscriptOpCommand(deps, "scroll", scraper.OpScrollAndExtract,
		"Scroll transcript containers and extract every entry"))
	cmd.AddCommand(newTranscriptOpCommand(deps, "cells", scraper.OpExtractCells,
		"Walk virtualized list cells and extract every entry"))
	cmd.AddCommand(newTranscriptImportCommand(deps))

	return cmd
}

func newTranscriptOpCommand(deps *Deps, use string, op scraper.Operation, short string) *cobra.Command {
	var src SourceOptions

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, deps, src, op)
		},
	}

	addSourceFlags(cmd, &src)
	return cmd
}

func newTranscriptImportCommand(deps *Deps) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Read a downloaded transcript file",
		Long: `Read a transcript file downloaded from the meeting client.

The format is taken from --format, then the file extension, then a WEBVTT
signature. Entries are deduplicated and sorted like page extractions.

Examples:
  recap transcript import meeting.vtt
  recap transcript import notes.txt --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := deps.init(); err != nil {
				return err
			}
			entries, err := readTranscriptFile(args[0], format, deps.Logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if done, err := writeStructured(out, deps.Config.OutputFormat, entries); done {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No transcript entries found in "+args[0]+".")
				return nil
			}
			printEntries(out, entries)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "File format: vtt, txt (default from extension)")
	return cmd
}

// readTranscriptFile parses path as a downloaded transcript.
func readTranscriptFile(path, formatName string, logger logging.Logger) ([]transcript.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading transcript file: %w", err)
	}

	format := transcript.DetectFileFormat(path, data)
	if formatName != "" {
		if format, err = transcript.ParseFileFormat(formatName); err != nil {
			return nil, err
		}
	}

	entries, err := transcript.ParseFile(bytes.NewReader(data), format)
	if err != nil {
		return nil, err
	}
	logger.Debug("Read transcript file",
		logging.F("path", filepath.Base(path)),
		logging.F("format", string(format)),
		logging.F("entries", len(entries)))
	return entries, nil
}
