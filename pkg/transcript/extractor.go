package transcript

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/otherjamesbrown/recap-cli/pkg/dom"
	"github.com/otherjamesbrown/recap-cli/pkg/logging"
)

// Extraction patterns
var (
	// Matches a turn header: "Alice Smith 1:02" or "Jo O'Neil 1:02:03"
	inlineHeaderRegex = regexp.MustCompile(`^([A-Z][a-z]+(?:\s+[A-Z][a-z'-]+)*)\s+(\d{1,2}:\d{2}(?::\d{2})?)$`)

	// Matches an accessible label: "Carol, 2:15, Can everyone hear me?"
	labelRegex = regexp.MustCompile(`^([^,]+),\s*(\d{1,2}:\d{2}(?::\d{2})?),?\s*(.*)$`)
)

// Inline block limits
const (
	inlineMaxChildren = 5
	inlineMinText     = 10
	inlineMaxText     = 2000
	cellMinLines      = 5
)

// Extractor names
const (
	ExtractorInline = "inline"
	ExtractorLabel  = "label"
	ExtractorCell   = "cell"
)

// DefaultInlineNoise lists body lines that are client chrome, not speech.
var DefaultInlineNoise = []string{"started transcription", "AI-generated", "Search"}

// DirectInlineNoise is the looser filter used by the last-resort direct pass,
// which keeps lines mentioning "Search".
var DirectInlineNoise = []string{"started transcription", "AI-generated"}

// CellNoise marks structured cells that are system events.
var CellNoise = []string{"started transcription", "stopped transcription"}

// Extractor produces candidate entries from one DOM snapshot.
// Extractors never fail: a miss is an empty result.
type Extractor interface {
	Name() string
	Extract(doc *dom.Document) []Entry
}

// resetter is implemented by extractors that keep state across snapshots.
type resetter interface {
	Reset()
}

// InlineExtractor reads turns rendered as a header line ("Name M:SS")
// followed by body lines, inside small text blocks.
type InlineExtractor struct {
	noise []string
}

// NewInlineExtractor builds an inline extractor that drops body lines
// containing any of the noise phrases. With none given it uses DefaultInlineNoise.
func NewInlineExtractor(noise ...string) *InlineExtractor {
	if len(noise) == 0 {
		noise = DefaultInlineNoise
	}
	return &InlineExtractor{noise: noise}
}

func (x *InlineExtractor) Name() string { return ExtractorInline }

func (x *InlineExtractor) Extract(doc *dom.Document) []Entry {
	var entries []Entry
	doc.Find("div, p, span").Each(func(_ int, el *goquery.Selection) {
		if dom.ChildElementCount(el) > inlineMaxChildren {
			return
		}
		text := dom.InnerText(el)
		if n := dom.TextLength(text); n < inlineMinText || n > inlineMaxText {
			return
		}
		entries = append(entries, x.parseBlock(dom.Lines(text))...)
	})
	return entries
}

// ParseText runs the header/body scan over already rendered text.
func (x *InlineExtractor) ParseText(text string) []Entry {
	return x.parseBlock(dom.Lines(text))
}

func (x *InlineExtractor) parseBlock(lines []string) []Entry {
	var (
		entries   []Entry
		speaker   string
		timestamp string
		body      []string
	)

	flush := func() {
		if speaker != "" && len(body) > 0 {
			entries = append(entries, Entry{
				Speaker:   speaker,
				Timestamp: timestamp,
				Text:      strings.TrimSpace(strings.Join(body, " ")),
			})
		}
	}

	for _, line := range lines {
		if m := inlineHeaderRegex.FindStringSubmatch(line); m != nil {
			flush()
			speaker, timestamp, body = m[1], m[2], nil
			continue
		}
		// Lines before the first header belong to no one
		if speaker == "" || containsAny(line, x.noise) {
			continue
		}
		body = append(body, line)
	}
	flush()

	return entries
}

// LabelExtractor reads turns from accessible labels of the form
// "Speaker, M:SS, text".
type LabelExtractor struct{}

func NewLabelExtractor() *LabelExtractor { return &LabelExtractor{} }

func (x *LabelExtractor) Name() string { return ExtractorLabel }

func (x *LabelExtractor) Extract(doc *dom.Document) []Entry {
	var entries []Entry
	doc.Find("[aria-label]").Each(func(_ int, el *goquery.Selection) {
		label, _ := el.Attr("aria-label")
		m := labelRegex.FindStringSubmatch(label)
		if m == nil {
			return
		}
		text := strings.TrimSpace(m[3])
		if text == "" {
			text = strings.TrimSpace(dom.InnerText(el))
		}
		if text == "" {
			return
		}
		entries = append(entries, Entry{
			Speaker:   strings.TrimSpace(m[1]),
			Timestamp: strings.TrimSpace(m[2]),
			Text:      text,
		})
	})
	return entries
}

// CellExtractor reads virtualized list cells whose rendered lines are
// speaker, spoken duration, timestamp, a repeated header, then the body.
// It remembers every cell text it has parsed until Reset.
type CellExtractor struct {
	selector string
	seen     map[string]bool
}

// NewCellExtractor builds a cell extractor for the given cell selector.
func NewCellExtractor(selector string) *CellExtractor {
	if selector == "" {
		selector = DefaultCellSelector
	}
	return &CellExtractor{selector: selector, seen: make(map[string]bool)}
}

func (x *CellExtractor) Name() string { return ExtractorCell }

func (x *CellExtractor) Extract(doc *dom.Document) []Entry {
	var entries []Entry
	doc.Find(x.selector).Each(func(_ int, cell *goquery.Selection) {
		raw := dom.InnerText(cell)
		if raw == "" || x.seen[raw] {
			return
		}
		x.seen[raw] = true
		if e, ok := ParseCell(raw); ok {
			entries = append(entries, e)
		}
	})
	return entries
}

// Reset forgets every cell seen so far.
func (x *CellExtractor) Reset() {
	x.seen = make(map[string]bool)
}

// ParseCell parses the rendered text of one structured cell.
// Cells with fewer than five lines or system event text are rejected.
func ParseCell(raw string) (Entry, bool) {
	if containsAny(raw, CellNoise) {
		return Entry{}, false
	}
	lines := dom.Lines(raw)
	if len(lines) < cellMinLines {
		return Entry{}, false
	}
	e := Entry{
		Speaker:   lines[0],
		Timestamp: lines[2],
		Text:      strings.Join(lines[4:], " "),
	}
	return e, e.Valid()
}

// DefaultExtractors returns the strategies used on an ordinary page.
func DefaultExtractors() []Extractor {
	return []Extractor{NewInlineExtractor(), NewLabelExtractor()}
}

// FrameExtractors adds the structured-cell strategy used inside the
// embedded transcript frame.
func FrameExtractors(cfg CollectorConfig) []Extractor {
	return append(DefaultExtractors(), NewCellExtractor(cfg.CellSelector))
}

// Pipeline runs a fixed set of extractors over one snapshot and reconciles
// their union. A strategy that panics contributes nothing.
type Pipeline struct {
	extractors []Extractor
	logger     logging.Logger
}

// NewPipeline creates a pipeline over extractors, run in the given order.
func NewPipeline(logger logging.Logger, extractors ...Extractor) *Pipeline {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Pipeline{
		extractors: extractors,
		logger:     logger.With(logging.F("component", "pipeline")),
	}
}

// Extractors returns the strategies in run order.
func (p *Pipeline) Extractors() []Extractor {
	return p.extractors
}

// Candidates returns the raw union of every strategy's output.
func (p *Pipeline) Candidates(doc *dom.Document) []Entry {
	var all []Entry
	for _, x := range p.extractors {
		entries, err := p.safeExtract(x, doc)
		if err != nil {
			p.logger.Warn("Extractor failed",
				logging.F("extractor", x.Name()),
				logging.Err(err))
			continue
		}
		p.logger.Debug("Extractor finished",
			logging.F("extractor", x.Name()),
			logging.F("candidates", len(entries)))
		all = append(all, entries...)
	}
	return all
}

// Run extracts and reconciles one snapshot.
func (p *Pipeline) Run(doc *dom.Document) []Entry {
	return Reconcile(p.Candidates(doc))
}

// Reset clears per-collection state held by stateful extractors.
func (p *Pipeline) Reset() {
	for _, x := range p.extractors {
		if r, ok := x.(resetter); ok {
			r.Reset()
		}
	}
}

func (p *Pipeline) safeExtract(x Extractor, doc *dom.Document) (entries []Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			entries = nil
			err = fmt.Errorf("extractor %s panicked: %v", x.Name(), r)
		}
	}()
	return x.Extract(doc), nil
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
