package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/recap-cli/pkg/scraper"
	"github.com/otherjamesbrown/recap-cli/pkg/transcript"
)

// NewMeetingCommand creates the meeting command group.
func NewMeetingCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:   "meeting",
		Short: "Read meeting metadata from a recap page",
		Long: `Read meeting metadata from a rendered meeting recap page.

The page comes from a static HTML snapshot (--html) or a replay capture
(--capture). Neither command scrolls the page.

Examples:
  recap meeting info --html recap.html
  recap meeting participants --capture recap.yaml --output json`,
	}

	cmd.AddCommand(newMeetingInfoCommand(deps))
	cmd.AddCommand(newMeetingParticipantsCommand(deps))

	return cmd
}

func newMeetingInfoCommand(deps *Deps) *cobra.Command {
	var src SourceOptions

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the meeting title, date and URL",
		Long: `Show the meeting title, date and URL.

The title is the first heading that is not a chat or navigation label. The
date is the first short text node that names a weekday or month and carries
a time or year. With metadata.title_fallback enabled, a title is recovered
from the page's main article when no heading qualifies.

Examples:
  recap meeting info --html recap.html
  recap meeting info --html recap.html --url https://teams.example.com/recap`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, deps, src, scraper.OpGetMeetingInfo)
		},
	}

	addSourceFlags(cmd, &src)
	return cmd
}

func newMeetingParticipantsCommand(deps *Deps) *cobra.Command {
	var src SourceOptions

	cmd := &cobra.Command{
		Use:   "participants",
		Short: "List the meeting participants",
		Long: `List the participants shown on the recap page.

Presence labels, short strings and UI labels such as "People" are skipped.
Roles are picked up from the list item and "You" marks the current user.

Examples:
  recap meeting participants --html recap.html
  recap meeting participants --html recap.html --output yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, deps, src, scraper.OpGetParticipants)
		},
	}

	addSourceFlags(cmd, &src)
	return cmd
}

// runOperation sends one boundary request and prints its response.
func runOperation(cmd *cobra.Command, deps *Deps, src SourceOptions, op scraper.Operation) error {
	return withSession(cmd, deps, src, func(ctx context.Context, svc *scraper.Service) error {
		resp := svc.Handle(ctx, scraper.Request{Operation: op.String()})
		return printResponse(cmd, deps, resp)
	})
}

// printResponse renders a boundary response. Only failed responses become
// command errors; an empty transcript is reported, not failed.
func printResponse(cmd *cobra.Command, deps *Deps, resp scraper.Response) error {
	out := cmd.OutOrStdout()

	if !resp.Success {
		_, _ = writeStructured(cmd.ErrOrStderr(), deps.Config.OutputFormat, resp)
		return fmt.Errorf("%s failed [%s]: %s (request %s)", resp.Operation, resp.Code, resp.Error, resp.RequestID)
	}

	if done, err := writeStructured(out, deps.Config.OutputFormat, resp); done {
		return err
	}

	switch data := resp.Data.(type) {
	case transcript.MeetingInfo:
		printMeetingInfo(out, data)
	case []transcript.Participant:
		printParticipants(out, data)
	case []transcript.Entry:
		if len(data) == 0 {
			fmt.Fprintln(out, scraper.EmptyTranscriptHint)
			return nil
		}
		printEntries(out, data)
	}
	return nil
}
