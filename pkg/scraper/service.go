package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/otherjamesbrown/recap-cli/pkg/dom"
	rcerrors "github.com/otherjamesbrown/recap-cli/pkg/errors"
	"github.com/otherjamesbrown/recap-cli/pkg/logging"
	"github.com/otherjamesbrown/recap-cli/pkg/observability"
	"github.com/otherjamesbrown/recap-cli/pkg/transcript"
)

// EmptyTranscriptHint is shown to users when no entry could be recovered.
const EmptyTranscriptHint = "No transcript found. Make sure the Transcript tab is open in the meeting Recap."

// Session holds the documents one request may read. Frame is the embedded
// transcript document and is optional.
type Session struct {
	Parent dom.Page
	Frame  dom.Page
}

// Config tunes the boundary.
type Config struct {
	Collector transcript.CollectorConfig

	// TitleFallback enables readability-based title recovery.
	TitleFallback bool

	// EventChannel is where operation events go when a publisher is set.
	EventChannel string
}

// DefaultConfig returns the boundary defaults.
func DefaultConfig() Config {
	return Config{
		Collector:    transcript.DefaultCollectorConfig(),
		EventChannel: observability.ChannelOperationCompleted,
	}
}

// Request names the operation to run. ID is optional; one is assigned when
// empty.
type Request struct {
	ID        string `json:"id,omitempty"`
	Operation string `json:"operation"`
}

// Response is the only value that leaves the boundary. Data holds a
// transcript.MeetingInfo, a []transcript.Participant or a []transcript.Entry
// depending on the operation.
type Response struct {
	RequestID string             `json:"request_id"`
	Operation string             `json:"operation"`
	Success   bool               `json:"success"`
	Data      interface{}        `json:"data,omitempty"`
	Error     string             `json:"error,omitempty"`
	Code      rcerrors.ErrorCode `json:"code,omitempty"`
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMetrics records operation and collector metrics on m.
func WithMetrics(m *observability.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer replaces the default tracer.
func WithTracer(t *observability.Tracer) ServiceOption {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithPublisher emits an OperationEvent after every handled request.
func WithPublisher(p observability.Publisher) ServiceOption {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithClock overrides the clock used for date fallbacks and export stamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithSleep overrides the settle wait used by the collectors.
func WithSleep(sleep transcript.SleepFunc) ServiceOption {
	return func(s *Service) {
		s.sleep = sleep
	}
}

// Service answers boundary requests against one Session.
type Service struct {
	session   Session
	cfg       Config
	logger    logging.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	publisher observability.Publisher
	now       func() time.Time
	sleep     transcript.SleepFunc
}

// NewService creates a boundary service over session.
func NewService(session Session, cfg Config, logger logging.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.EventChannel == "" {
		cfg.EventChannel = observability.ChannelOperationCompleted
	}
	s := &Service{
		session: session,
		cfg:     cfg,
		logger:  logger.With(logging.F("component", "scraper")),
		tracer:  observability.NewTracer(),
		now:     time.Now,
		sleep:   transcript.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle runs one request and never returns an error: every failure is
// classified into the response.
func (s *Service) Handle(ctx context.Context, req Request) Response {
	requestID := req.ID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx = logging.ContextWithRequestID(ctx, requestID)
	ctx = logging.ContextWithOperation(ctx, req.Operation)

	ctx, span := s.tracer.StartOperationSpan(ctx, req.Operation, requestID)
	defer span.End()
	helper := observability.NewSpanHelper(span)
	helper.SetPage(s.pageURL(), s.session.Frame != nil)

	log := s.logger.WithContext(ctx)
	start := time.Now()

	resp := Response{RequestID: requestID, Operation: req.Operation}

	data, count, err := s.dispatch(ctx, req.Operation)
	duration := time.Since(start)
	helper.SetDuration(duration.Milliseconds())

	status := observability.StatusSuccess
	if err != nil {
		status = observability.StatusError
		se := rcerrors.ClassifyError(err, req.Operation)
		resp.Error = se.Message
		resp.Code = se.Code
		helper.SetError(err, string(se.Code), rcerrors.IsRetryable(se.Code))
		log.Error("Operation failed",
			logging.Err(err),
			logging.F("code", string(se.Code)),
			logging.F("duration_ms", duration.Milliseconds()))
	} else {
		resp.Success = true
		resp.Data = data
		helper.SetEntries(count)
		helper.SetSuccess()
		log.Info("Operation complete",
			logging.F("count", count),
			logging.F("duration_ms", duration.Milliseconds()))
	}

	if s.metrics != nil {
		s.metrics.RecordOperation(req.Operation, status, duration.Seconds())
	}
	s.publish(ctx, resp, count, duration)

	return resp
}

func (s *Service) dispatch(ctx context.Context, name string) (interface{}, int, error) {
	op, err := ParseOperation(name)
	if err != nil {
		return nil, 0, err
	}

	switch op {
	case OpGetMeetingInfo:
		info, err := s.MeetingInfo(ctx)
		return info, 1, err
	case OpGetParticipants:
		participants, err := s.Participants(ctx)
		return participants, len(participants), err
	case OpExtractTranscript, OpScrollAndExtract, OpExtractCells:
		entries, err := s.Transcript(ctx, op)
		return entries, len(entries), err
	}
	return nil, 0, fmt.Errorf("operation %q: %w", name, rcerrors.ErrUnknownOperation)
}

// MeetingInfo reads the title and date of the meeting from the parent page.
func (s *Service) MeetingInfo(ctx context.Context) (transcript.MeetingInfo, error) {
	doc, err := s.session.Parent.Snapshot(ctx)
	if err != nil {
		return transcript.MeetingInfo{}, fmt.Errorf("taking snapshot: %w", err)
	}

	info := transcript.ExtractMeetingInfo(doc, s.now())
	if info.Title == "" && s.cfg.TitleFallback {
		title, err := transcript.TitleFallback(doc)
		if err != nil {
			s.logger.Debug("Title fallback failed", logging.Err(err))
		} else {
			info.Title = title
		}
	}
	return info, nil
}

// Participants lists the roster shown on the parent page.
func (s *Service) Participants(ctx context.Context) ([]transcript.Participant, error) {
	doc, err := s.session.Parent.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("taking snapshot: %w", err)
	}
	return transcript.ExtractParticipants(doc), nil
}

// Transcript runs a transcript operation over the parent page and the frame,
// merges their results, and falls back to a direct scan of every page when
// nothing was found.
func (s *Service) Transcript(ctx context.Context, op Operation) ([]transcript.Entry, error) {
	var candidates []transcript.Entry

	for _, t := range s.targets() {
		entries, err := s.collect(ctx, op, t)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("Page collected",
			logging.F("page", t.name),
			logging.F("operation", op.String()),
			logging.F("entries", len(entries)))
		candidates = append(candidates, entries...)
	}

	entries := transcript.Reconcile(candidates)
	if len(entries) > 0 {
		return entries, nil
	}

	return s.directExtract(ctx)
}

type target struct {
	name  string
	page  dom.Page
	frame bool
}

func (s *Service) targets() []target {
	targets := []target{{name: "parent", page: s.session.Parent}}
	if s.session.Frame != nil {
		targets = append(targets, target{name: "frame", page: s.session.Frame, frame: true})
	}
	return targets
}

func (s *Service) pipeline(t target) *transcript.Pipeline {
	if t.frame {
		return transcript.NewPipeline(s.logger, transcript.FrameExtractors(s.cfg.Collector)...)
	}
	return transcript.NewPipeline(s.logger, transcript.DefaultExtractors()...)
}

func (s *Service) collectorOptions() []transcript.CollectorOption {
	opts := []transcript.CollectorOption{transcript.WithSleep(s.sleep)}
	if s.metrics != nil {
		opts = append(opts, transcript.WithObserver(s.metrics))
	}
	return opts
}

func (s *Service) collect(ctx context.Context, op Operation, t target) ([]transcript.Entry, error) {
	switch op {
	case OpExtractTranscript:
		doc, err := t.page.Snapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("taking %s snapshot: %w", t.name, err)
		}
		return s.pipeline(t).Run(doc), nil

	case OpScrollAndExtract:
		c := transcript.NewScrollCollector(s.cfg.Collector, s.pipeline(t), s.logger, s.collectorOptions()...)
		return c.Collect(ctx, t.page)

	case OpExtractCells:
		// Only the frame renders the structured list; a parent without one
		// is not a fault when a frame is present.
		if !t.frame && s.session.Frame != nil {
			return nil, nil
		}
		c := transcript.NewCellCollector(s.cfg.Collector, s.logger, s.collectorOptions()...)
		return c.Collect(ctx, t.page)
	}
	return nil, fmt.Errorf("operation %q: %w", op.String(), rcerrors.ErrUnknownOperation)
}

func (s *Service) directExtract(ctx context.Context) ([]transcript.Entry, error) {
	direct := transcript.NewInlineExtractor(transcript.DirectInlineNoise...)

	var candidates []transcript.Entry
	for _, t := range s.targets() {
		doc, err := t.page.Snapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("taking %s snapshot: %w", t.name, err)
		}
		candidates = append(candidates, direct.Extract(doc)...)
	}

	entries := transcript.Reconcile(candidates)
	s.logger.Debug("Direct extraction finished", logging.F("entries", len(entries)))
	return entries, nil
}

func (s *Service) pageURL() string {
	if s.session.Parent == nil {
		return ""
	}
	return s.session.Parent.URL()
}

func (s *Service) publish(ctx context.Context, resp Response, count int, duration time.Duration) {
	if s.publisher == nil {
		return
	}

	status := observability.StatusSuccess
	if !resp.Success {
		status = observability.StatusError
	}
	event := observability.NewOperationEvent(ctx, resp.RequestID, resp.Operation, status, count, duration)
	event.ErrorCode = string(resp.Code)
	event.PageURL = s.pageURL()

	if err := observability.PublishEvent(ctx, s.publisher, s.cfg.EventChannel, event); err != nil {
		s.logger.Warn("Failed to publish operation event",
			logging.Err(err),
			logging.F("request_id", resp.RequestID))
	}
}

// IsEmptyTranscript reports whether err means no transcript was found.
func IsEmptyTranscript(err error) bool {
	return errors.Is(err, ErrNoTranscript)
}
