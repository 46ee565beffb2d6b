package transcript

import (
	"context"
	"fmt"
	"math"

	"github.com/PuerkitoBio/goquery"

	"github.com/otherjamesbrown/recap-cli/pkg/dom"
	rcerrors "github.com/otherjamesbrown/recap-cli/pkg/errors"
	"github.com/otherjamesbrown/recap-cli/pkg/logging"
)

// minScrollMovement is the smallest scrollTop change counted as movement.
const minScrollMovement = 1

// CellCollector gathers structured cells from the single large scroll
// container of a virtualized list. Unlike ScrollCollector it has no iteration
// ceiling and deduplicates by the raw cell text, so a cell re-rendered with
// identical text is kept once even if it would parse differently.
type CellCollector struct {
	cfg    CollectorConfig
	logger logging.Logger
	opts   collectorOptions
}

// NewCellCollector creates a structured-cell collector.
func NewCellCollector(cfg CollectorConfig, logger logging.Logger, opts ...CollectorOption) *CellCollector {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CellCollector{
		cfg:    cfg.withDefaults(),
		logger: logger.With(logging.F("component", "cell_collector")),
		opts:   buildOptions(opts),
	}
}

// Collect scrolls the cell container until it stops moving and returns the
// parsed cells ordered by timestamp. A page without any usable container is a
// structural fault.
func (cc *CellCollector) Collect(ctx context.Context, page dom.Page) ([]Entry, error) {
	container, err := cc.findContainer(ctx, page)
	if err != nil {
		return nil, err
	}
	log := cc.logger.With(logging.F("container", container.ID()))

	if err := container.ScrollTo(ctx, 0); err != nil {
		return nil, fmt.Errorf("resetting %s: %w", container.ID(), err)
	}
	if err := cc.opts.sleep(ctx, cc.cfg.ResetDelay); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var entries []Entry
	noMove := 0
	cycles := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cycles++
		cc.opts.observer.Iteration(VariantCells)

		doc, err := page.Snapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("taking snapshot: %w", err)
		}

		added := 0
		doc.Find(cc.cfg.CellSelector).Each(func(_ int, cell *goquery.Selection) {
			raw := dom.InnerText(cell)
			if raw == "" || seen[raw] {
				return
			}
			e, ok := ParseCell(raw)
			if !ok {
				return
			}
			seen[raw] = true
			entries = append(entries, e)
			added++
		})
		if added > 0 {
			cc.opts.observer.EntriesAdded(VariantCells, added)
		}

		before, err := container.Metrics(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading metrics of %s: %w", container.ID(), err)
		}
		if err := container.ScrollBy(ctx, cc.cfg.ScrollStep); err != nil {
			return nil, fmt.Errorf("scrolling %s: %w", container.ID(), err)
		}
		if err := cc.opts.sleep(ctx, cc.cfg.CellSettleDelay); err != nil {
			return nil, err
		}
		after, err := container.Metrics(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading metrics of %s: %w", container.ID(), err)
		}

		if math.Abs(after.ScrollTop-before.ScrollTop) < minScrollMovement {
			noMove++
			if noMove >= cc.cfg.CellNoMoveLimit {
				break
			}
		} else {
			noMove = 0
		}
	}

	cc.opts.observer.Terminated(VariantCells, ReasonStuck)
	log.Info("Cell collection complete",
		logging.F("cycles", cycles),
		logging.F("entries", len(entries)))

	sortByTimestamp(entries)
	return entries, nil
}

// findContainer prefers the container whose element matches the configured
// container selector, then the tallest scrollable container.
func (cc *CellCollector) findContainer(ctx context.Context, page dom.Page) (dom.Container, error) {
	containers, err := page.Containers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}

	doc, err := page.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("taking snapshot: %w", err)
	}
	if id, ok := doc.Find(cc.cfg.CellContainerSelector).First().Attr("id"); ok && id != "" {
		for _, c := range containers {
			if c.ID() == id {
				return c, nil
			}
		}
	}

	var (
		best   dom.Container
		height float64
	)
	for _, c := range containers {
		m, err := c.Metrics(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading metrics of %s: %w", c.ID(), err)
		}
		if !m.Scrollable(cc.cfg.OverflowMargin) {
			continue
		}
		if best == nil || m.ScrollHeight > height {
			best, height = c, m.ScrollHeight
		}
	}
	if best == nil {
		cc.opts.observer.Terminated(VariantCells, ReasonNoContainer)
		return nil, fmt.Errorf("transcript cell container not found on %s: %w", page.URL(), rcerrors.ErrStructural)
	}
	return best, nil
}
