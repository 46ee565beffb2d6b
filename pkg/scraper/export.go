package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	rcerrors "github.com/otherjamesbrown/recap-cli/pkg/errors"
	"github.com/otherjamesbrown/recap-cli/pkg/export"
	"github.com/otherjamesbrown/recap-cli/pkg/logging"
	"github.com/otherjamesbrown/recap-cli/pkg/observability"
	"github.com/otherjamesbrown/recap-cli/pkg/transcript"
)

// ErrNoTranscript is returned by Export when every strategy came back empty.
var ErrNoTranscript = fmt.Errorf("%s: %w", EmptyTranscriptHint, rcerrors.ErrNotFound)

// ExportOptions selects how the transcript part of an export is gathered.
type ExportOptions struct {
	// Mode is OpExtractTranscript, OpScrollAndExtract or OpExtractCells.
	Mode Operation

	// AllowEmpty returns a document even when no entries were found.
	AllowEmpty bool
}

// Run carries the state of one export from metadata to document. It lives
// only as long as the export call.
type Run struct {
	ID           string
	StartedAt    time.Time
	Meeting      transcript.MeetingInfo
	Participants []transcript.Participant
	Entries      []transcript.Entry
}

// Document assembles the export document for the run.
func (r *Run) Document() export.Document {
	return export.Document{
		Meeting:      r.Meeting,
		Participants: r.Participants,
		Entries:      r.Entries,
		ExportedAt:   r.StartedAt,
	}
}

// Export gathers meeting info, participants and the transcript, in that
// order, and returns the assembled document.
func (s *Service) Export(ctx context.Context, opts ExportOptions) (export.Document, error) {
	if opts.Mode == OpUnknown {
		opts.Mode = OpScrollAndExtract
	}
	if !opts.Mode.IsTranscript() {
		return export.Document{}, fmt.Errorf("export mode %q: %w", opts.Mode.String(), rcerrors.ErrUnknownOperation)
	}

	run := &Run{ID: uuid.NewString(), StartedAt: s.now().UTC()}
	ctx = logging.ContextWithRequestID(ctx, run.ID)

	ctx, span := s.tracer.StartExportSpan(ctx, run.ID)
	defer span.End()
	helper := observability.NewSpanHelper(span)
	helper.SetPage(s.pageURL(), s.session.Frame != nil)

	log := s.logger.WithContext(ctx)
	start := time.Now()

	if err := s.fillRun(ctx, run, opts.Mode); err != nil {
		se := rcerrors.ClassifyError(err, "export")
		helper.SetError(err, string(se.Code), rcerrors.IsRetryable(se.Code))
		s.recordExport(observability.StatusError, start)
		return export.Document{}, err
	}

	helper.SetEntries(len(run.Entries))
	s.recordExport(observability.StatusSuccess, start)

	if len(run.Entries) == 0 && !opts.AllowEmpty {
		helper.AddEvent("empty_transcript")
		return run.Document(), ErrNoTranscript
	}

	helper.SetSuccess()
	log.Info("Export assembled",
		logging.F("title", run.Meeting.Title),
		logging.F("participants", len(run.Participants)),
		logging.F("entries", len(run.Entries)))

	return run.Document(), nil
}

func (s *Service) fillRun(ctx context.Context, run *Run, mode Operation) error {
	info, err := s.MeetingInfo(ctx)
	if err != nil {
		return fmt.Errorf("reading meeting info: %w", err)
	}
	run.Meeting = info

	participants, err := s.Participants(ctx)
	if err != nil {
		return fmt.Errorf("reading participants: %w", err)
	}
	run.Participants = participants

	entries, err := s.Transcript(ctx, mode)
	if err != nil {
		return fmt.Errorf("collecting transcript: %w", err)
	}
	run.Entries = entries
	return nil
}

func (s *Service) recordExport(status string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordOperation("export", status, time.Since(start).Seconds())
	}
}
