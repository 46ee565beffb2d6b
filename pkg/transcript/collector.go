package transcript

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"time"

	"github.com/otherjamesbrown/recap-cli/pkg/dom"
	"github.com/otherjamesbrown/recap-cli/pkg/logging"
)

// Default collector tuning.
const (
	DefaultSettleDelay      = 400 * time.Millisecond
	DefaultResetDelay       = 300 * time.Millisecond
	DefaultScrollStep       = 400
	DefaultMaxIterations    = 100
	DefaultStuckThreshold   = 3
	DefaultStuckTolerance   = 10
	DefaultMaxContainers    = 3
	DefaultOverflowMargin   = 50
	DefaultMinContainerText = 100
	DefaultCellSettleDelay  = 500 * time.Millisecond
	DefaultCellNoMoveLimit  = 5

	DefaultCellSelector          = ".ms-List-cell"
	DefaultCellContainerSelector = `[data-is-scrollable="true"]`
)

// Collector variants and termination reasons reported to an Observer.
const (
	VariantScroll = "scroll"
	VariantCells  = "cells"

	ReasonStuck       = "stuck"
	ReasonCeiling     = "ceiling"
	ReasonNoContainer = "no_container"
)

var containerTimestampRegex = regexp.MustCompile(`\d{1,2}:\d{2}`)

// CollectorConfig holds the render-settling and termination thresholds of
// both collectors.
type CollectorConfig struct {
	SettleDelay    time.Duration
	ResetDelay     time.Duration
	ScrollStep     float64
	MaxIterations  int
	StuckThreshold int
	StuckTolerance float64

	MaxContainers    int
	OverflowMargin   float64
	MinContainerText int

	CellSettleDelay       time.Duration
	CellNoMoveLimit       int
	CellSelector          string
	CellContainerSelector string
}

// DefaultCollectorConfig returns the tuning that matches the meeting client.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		SettleDelay:           DefaultSettleDelay,
		ResetDelay:            DefaultResetDelay,
		ScrollStep:            DefaultScrollStep,
		MaxIterations:         DefaultMaxIterations,
		StuckThreshold:        DefaultStuckThreshold,
		StuckTolerance:        DefaultStuckTolerance,
		MaxContainers:         DefaultMaxContainers,
		OverflowMargin:        DefaultOverflowMargin,
		MinContainerText:      DefaultMinContainerText,
		CellSettleDelay:       DefaultCellSettleDelay,
		CellNoMoveLimit:       DefaultCellNoMoveLimit,
		CellSelector:          DefaultCellSelector,
		CellContainerSelector: DefaultCellContainerSelector,
	}
}

// withDefaults fills zero values so a partially populated config still terminates.
func (c CollectorConfig) withDefaults() CollectorConfig {
	d := DefaultCollectorConfig()
	if c.ScrollStep <= 0 {
		c.ScrollStep = d.ScrollStep
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.StuckThreshold <= 0 {
		c.StuckThreshold = d.StuckThreshold
	}
	if c.MaxContainers <= 0 {
		c.MaxContainers = d.MaxContainers
	}
	if c.CellNoMoveLimit <= 0 {
		c.CellNoMoveLimit = d.CellNoMoveLimit
	}
	if c.CellSelector == "" {
		c.CellSelector = d.CellSelector
	}
	if c.CellContainerSelector == "" {
		c.CellContainerSelector = d.CellContainerSelector
	}
	return c
}

// Observer receives collector progress. Implementations must be safe to call
// from the collecting goroutine.
type Observer interface {
	Iteration(variant string)
	EntriesAdded(variant string, n int)
	Terminated(variant, reason string)
}

type nopObserver struct{}

func (nopObserver) Iteration(string)          {}
func (nopObserver) EntriesAdded(string, int)  {}
func (nopObserver) Terminated(string, string) {}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CollectorOption configures a collector.
type CollectorOption func(*collectorOptions)

type collectorOptions struct {
	observer Observer
	sleep    SleepFunc
}

// WithObserver reports progress to o.
func WithObserver(o Observer) CollectorOption {
	return func(opts *collectorOptions) {
		if o != nil {
			opts.observer = o
		}
	}
}

// WithSleep replaces the settle delay implementation.
func WithSleep(s SleepFunc) CollectorOption {
	return func(opts *collectorOptions) {
		if s != nil {
			opts.sleep = s
		}
	}
}

func buildOptions(opts []CollectorOption) collectorOptions {
	o := collectorOptions{observer: nopObserver{}, sleep: Sleep}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// FindScrollContainers returns the containers likely to hold the transcript
// panel: scrollable, holding timestamp-shaped text of some length, smallest
// first, at most cfg.MaxContainers.
func FindScrollContainers(ctx context.Context, page dom.Page, cfg CollectorConfig) ([]dom.Container, error) {
	cfg = cfg.withDefaults()

	all, err := page.Containers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}

	type candidate struct {
		c      dom.Container
		height float64
	}
	var candidates []candidate
	for _, c := range all {
		m, err := c.Metrics(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading metrics of %s: %w", c.ID(), err)
		}
		if !m.Scrollable(cfg.OverflowMargin) {
			continue
		}
		text, err := c.Text(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading text of %s: %w", c.ID(), err)
		}
		if !containerTimestampRegex.MatchString(text) || dom.TextLength(text) <= cfg.MinContainerText {
			continue
		}
		candidates = append(candidates, candidate{c: c, height: m.ScrollHeight})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].height < candidates[j].height
	})
	if len(candidates) > cfg.MaxContainers {
		candidates = candidates[:cfg.MaxContainers]
	}

	out := make([]dom.Container, len(candidates))
	for i, c := range candidates {
		out[i] = c.c
	}
	return out, nil
}

// ScrollCollector gathers a virtualized transcript by stepping each candidate
// container from top to bottom and extracting after every step.
type ScrollCollector struct {
	cfg      CollectorConfig
	pipeline *Pipeline
	logger   logging.Logger
	opts     collectorOptions
}

// NewScrollCollector creates a collector that runs pipeline at every step.
func NewScrollCollector(cfg CollectorConfig, pipeline *Pipeline, logger logging.Logger, opts ...CollectorOption) *ScrollCollector {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ScrollCollector{
		cfg:      cfg.withDefaults(),
		pipeline: pipeline,
		logger:   logger.With(logging.F("component", "scroll_collector")),
		opts:     buildOptions(opts),
	}
}

// Collect scrolls every candidate container of page and returns the
// accumulated, time-sorted entries. A page without candidates gets a single
// extraction pass. Running out of new content is normal termination; page
// failures and cancellation are returned as errors.
func (s *ScrollCollector) Collect(ctx context.Context, page dom.Page) ([]Entry, error) {
	s.pipeline.Reset()

	containers, err := FindScrollContainers(ctx, page, s.cfg)
	if err != nil {
		return nil, err
	}

	if len(containers) == 0 {
		s.logger.Debug("No scroll container found, extracting once", logging.F("url", page.URL()))
		doc, err := page.Snapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("taking snapshot: %w", err)
		}
		entries := s.pipeline.Run(doc)
		s.opts.observer.EntriesAdded(VariantScroll, len(entries))
		s.opts.observer.Terminated(VariantScroll, ReasonNoContainer)
		return entries, nil
	}

	acc := NewAccumulator()
	for _, c := range containers {
		if err := s.collectContainer(ctx, page, c, acc); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Scroll collection complete",
		logging.F("containers", len(containers)),
		logging.F("entries", acc.Len()))

	return acc.Entries(), nil
}

func (s *ScrollCollector) collectContainer(ctx context.Context, page dom.Page, c dom.Container, acc *Accumulator) error {
	log := s.logger.With(logging.F("container", c.ID()))

	if err := c.ScrollTo(ctx, 0); err != nil {
		return fmt.Errorf("resetting %s: %w", c.ID(), err)
	}
	if err := s.opts.sleep(ctx, s.cfg.ResetDelay); err != nil {
		return err
	}

	previous := -1.0
	stuck := 0
	reason := ReasonCeiling
	iterations := 0

	for i := 0; i < s.cfg.MaxIterations; i++ {
		iterations++
		s.opts.observer.Iteration(VariantScroll)

		doc, err := page.Snapshot(ctx)
		if err != nil {
			return fmt.Errorf("taking snapshot: %w", err)
		}
		if added := acc.Add(s.pipeline.Run(doc)); added > 0 {
			s.opts.observer.EntriesAdded(VariantScroll, added)
		}

		if err := c.ScrollBy(ctx, s.cfg.ScrollStep); err != nil {
			return fmt.Errorf("scrolling %s: %w", c.ID(), err)
		}
		if err := s.opts.sleep(ctx, s.cfg.SettleDelay); err != nil {
			return err
		}

		m, err := c.Metrics(ctx)
		if err != nil {
			return fmt.Errorf("reading metrics of %s: %w", c.ID(), err)
		}

		// Smooth scrolling can leave sub-step rounding, so compare within a tolerance
		if math.Abs(m.ScrollTop-previous) < s.cfg.StuckTolerance {
			stuck++
			if stuck >= s.cfg.StuckThreshold {
				reason = ReasonStuck
				break
			}
		} else {
			stuck = 0
		}
		previous = m.ScrollTop
	}

	s.opts.observer.Terminated(VariantScroll, reason)
	log.Debug("Container exhausted",
		logging.F("iterations", iterations),
		logging.F("reason", reason),
		logging.F("entries", acc.Len()))
	return nil
}
