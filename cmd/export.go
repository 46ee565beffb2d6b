package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/recap-cli/pkg/export"
	"github.com/otherjamesbrown/recap-cli/pkg/scraper"
	"github.com/otherjamesbrown/recap-cli/pkg/transcript"
)

// exportOptions holds the export command flags.
type exportOptions struct {
	src          SourceOptions
	format       string
	dir          string
	mode         string
	noTimestamps bool
	allowEmpty   bool
	save         bool
	stdout       bool
	title        string
	file         string
	fileFormat   string
}

// NewExportCommand creates the export command and its history subcommands.
func NewExportCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a meeting transcript as Markdown or JSON",
		Long: `Export a meeting transcript as Markdown or JSON.

The export reads the meeting info, then the participants, then the
transcript, and writes one document. Markdown files are named
transcript_<YYYYMMDD>.md after the meeting date; JSON files are named after
the meeting title and the export date.

With --file the transcript comes from a file downloaded from the meeting
client instead of a page; the title defaults to the file name.

With --save the document is also stored in the export history database
(database.url) and can be listed with 'recap export history'.

Examples:
  recap export --html recap.html
  recap export --capture recap.yaml --format json --dir ~/transcripts
  recap export --capture recap.yaml --frame --mode cells --no-timestamps
  recap export --html recap.html --stdout
  recap export --file meeting.vtt --title "Weekly sync"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, deps, opts)
		},
	}

	addSourceFlags(cmd, &opts.src)
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "Document format: markdown, json (default from config)")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "Directory to write the export to (default from config)")
	cmd.Flags().StringVar(&opts.mode, "mode", "scroll", "Transcript strategy: extract, scroll, cells")
	cmd.Flags().BoolVar(&opts.noTimestamps, "no-timestamps", false, "Leave timestamps out of the document")
	cmd.Flags().BoolVar(&opts.allowEmpty, "allow-empty", false, "Write the document even when no transcript was found")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Also store the export in the history database")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "Print the document instead of writing a file")
	cmd.Flags().StringVar(&opts.title, "title", "", "Override the meeting title")
	cmd.Flags().StringVar(&opts.file, "file", "", "Export a downloaded transcript file (vtt or txt) instead of a page")
	cmd.Flags().StringVar(&opts.fileFormat, "file-format", "", "Format of --file: vtt, txt (default from extension)")

	cmd.AddCommand(newExportHistoryCommand(deps))
	cmd.AddCommand(newExportShowCommand(deps))

	return cmd
}

// parseMode maps the --mode flag onto a transcript operation.
func parseMode(mode string) (scraper.Operation, error) {
	switch strings.ToLower(mode) {
	case "extract":
		return scraper.OpExtractTranscript, nil
	case "scroll", "":
		return scraper.OpScrollAndExtract, nil
	case "cells":
		return scraper.OpExtractCells, nil
	}
	return scraper.OpUnknown, fmt.Errorf("invalid --mode %q (must be extract, scroll, or cells)", mode)
}

func runExport(cmd *cobra.Command, deps *Deps, opts exportOptions) error {
	mode, err := parseMode(opts.mode)
	if err != nil {
		return err
	}

	if opts.file != "" {
		return runFileExport(cmd, deps, opts)
	}

	return withSession(cmd, deps, opts.src, func(ctx context.Context, svc *scraper.Service) error {
		doc, err := svc.Export(ctx, scraper.ExportOptions{Mode: mode, AllowEmpty: opts.allowEmpty})
		if scraper.IsEmptyTranscript(err) {
			fmt.Fprintln(cmd.OutOrStdout(), scraper.EmptyTranscriptHint)
			return nil
		}
		if err != nil {
			return err
		}
		if opts.title != "" {
			doc.Meeting.Title = opts.title
		}
		return deliverExport(ctx, cmd, deps, opts, doc)
	})
}

// runFileExport builds the document from a downloaded transcript file. The
// title defaults to the file name; participants are the distinct speakers.
func runFileExport(cmd *cobra.Command, deps *Deps, opts exportOptions) error {
	if opts.src.HTMLPath != "" || opts.src.CapturePath != "" || opts.src.Frame {
		return fmt.Errorf("--file cannot be combined with --html, --capture or --frame")
	}
	if err := deps.init(); err != nil {
		return err
	}

	entries, err := readTranscriptFile(opts.file, opts.fileFormat, deps.Logger)
	if err != nil {
		return err
	}
	if len(entries) == 0 && !opts.allowEmpty {
		fmt.Fprintln(cmd.OutOrStdout(), "No transcript entries found in "+opts.file+".")
		return nil
	}

	title := opts.title
	if title == "" {
		base := filepath.Base(opts.file)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	doc := export.Document{
		Meeting:      transcript.MeetingInfo{Title: title, URL: opts.src.URL},
		Participants: transcript.Speakers(entries),
		Entries:      entries,
		ExportedAt:   time.Now().UTC(),
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, deps.Config.Timeout)
	defer cancel()

	return deliverExport(ctx, cmd, deps, opts, doc)
}

// deliverExport renders doc, writes it to a file or stdout, and stores it in
// the history database when --save is set.
func deliverExport(ctx context.Context, cmd *cobra.Command, deps *Deps, opts exportOptions, doc export.Document) error {
	cfg := deps.Config

	formatName := opts.format
	if formatName == "" {
		formatName = cfg.Export.Format
	}
	format, err := export.ParseFormat(formatName)
	if err != nil {
		return err
	}
	includeTimestamps := cfg.Export.IncludeTimestamps && !opts.noTimestamps

	data, err := export.Render(doc, format, includeTimestamps)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.stdout {
		if _, err := out.Write(data); err != nil {
			return err
		}
	} else {
		dir := opts.dir
		if dir == "" {
			dir = cfg.Export.Dir
		}
		path, err := export.Write(dir, export.Filename(doc, format), data)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Exported %d entries to %s\n", len(doc.Entries), path)
	}

	if !opts.save {
		return nil
	}
	repo, release, err := deps.OpenRepository(ctx, cfg, deps.Logger)
	if err != nil {
		return fmt.Errorf("opening export history: %w", err)
	}
	defer release()

	id, err := repo.SaveExport(ctx, doc)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Saved export %d\n", id)
	return nil
}

func newExportHistoryCommand(deps *Deps) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved exports",
		Long: `List exports stored with 'recap export --save', newest first.

Examples:
  recap export history
  recap export history --limit 5 --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(cmd, deps, func(ctx context.Context, repo ExportRepository) error {
				exports, err := repo.ListExports(ctx, limit)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if done, err := writeStructured(out, deps.Config.OutputFormat, exports); done {
					return err
				}
				if len(exports) == 0 {
					fmt.Fprintln(out, "No saved exports.")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tTITLE\tDATE\tENTRIES\tEXPORTED")
				for _, e := range exports {
					fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
						e.ID,
						truncate(valueOrDefault(e.Title, export.DefaultTitle), 40),
						valueOrDefault(e.DateFormatted, "-"),
						e.EntryCount,
						e.ExportedAt.Format("2006-01-02 15:04"))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of exports to list")
	return cmd
}

func newExportShowCommand(deps *Deps) *cobra.Command {
	var (
		format       string
		noTimestamps bool
	)

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved export",
		Long: `Render a saved export again as Markdown or JSON.

Examples:
  recap export show 12
  recap export show 12 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid export id %q", args[0])
			}

			return withRepository(cmd, deps, func(ctx context.Context, repo ExportRepository) error {
				doc, err := repo.GetExport(ctx, id)
				if err != nil {
					return err
				}

				formatName := format
				if formatName == "" {
					formatName = deps.Config.Export.Format
				}
				f, err := export.ParseFormat(formatName)
				if err != nil {
					return err
				}
				data, err := export.Render(*doc, f, deps.Config.Export.IncludeTimestamps && !noTimestamps)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "Document format: markdown, json (default from config)")
	cmd.Flags().BoolVar(&noTimestamps, "no-timestamps", false, "Leave timestamps out of the document")
	return cmd
}

func withRepository(cmd *cobra.Command, deps *Deps, fn func(ctx context.Context, repo ExportRepository) error) error {
	if err := deps.init(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, deps.Config.Timeout)
	defer cancel()

	repo, release, err := deps.OpenRepository(ctx, deps.Config, deps.Logger)
	if err != nil {
		return err
	}
	defer release()

	return fn(ctx, repo)
}
