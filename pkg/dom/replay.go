package dom

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	rcerrors "github.com/otherjamesbrown/recap-cli/pkg/errors"
)

// Capture is a recording of a virtualized transcript panel: one HTML snapshot
// per scroll position of its single scroll container.
type Capture struct {
	URL       string           `yaml:"url"`
	Container CaptureContainer `yaml:"container"`
	Frames    []CaptureFrame   `yaml:"frames"`
}

// CaptureContainer describes the scroll container the capture was taken from.
type CaptureContainer struct {
	ID           string  `yaml:"id"`
	OverflowY    string  `yaml:"overflow_y"`
	ScrollHeight float64 `yaml:"scroll_height"`
	ClientHeight float64 `yaml:"client_height"`
}

// CaptureFrame is the DOM as rendered while the container sat at ScrollTop.
type CaptureFrame struct {
	ScrollTop float64 `yaml:"scroll_top"`
	HTML      string  `yaml:"html,omitempty"`
	HTMLFile  string  `yaml:"html_file,omitempty"`
}

// LoadCapture reads a capture manifest. html_file entries are resolved
// relative to the manifest's directory.
func LoadCapture(path string) (*Capture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading capture: %w", err)
	}

	var c Capture
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing capture: %w", err)
	}

	base := filepath.Dir(path)
	for i := range c.Frames {
		f := &c.Frames[i]
		if f.HTML != "" || f.HTMLFile == "" {
			continue
		}
		p := f.HTMLFile
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading frame %d: %w", i, err)
		}
		f.HTML = string(raw)
	}
	return &c, nil
}

type replayFrame struct {
	top float64
	doc *Document
}

// ReplayPage plays a Capture back: the snapshot it returns depends on where
// its container has been scrolled to, like a virtualized list that only
// renders the visible window.
type ReplayPage struct {
	url       string
	container *replayContainer
	frames    []replayFrame
}

// NewReplayPage parses every frame of c up front.
func NewReplayPage(c *Capture) (*ReplayPage, error) {
	if c == nil || len(c.Frames) == 0 {
		return nil, fmt.Errorf("capture has no frames: %w", rcerrors.ErrValidation)
	}

	p := &ReplayPage{url: c.URL}
	for i, f := range c.Frames {
		doc, err := ParseString(f.HTML, c.URL)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		p.frames = append(p.frames, replayFrame{top: f.ScrollTop, doc: doc})
	}
	sort.SliceStable(p.frames, func(i, j int) bool { return p.frames[i].top < p.frames[j].top })

	id := c.Container.ID
	if id == "" {
		id = "replay-0"
	}
	overflow := c.Container.OverflowY
	if overflow == "" {
		overflow = OverflowAuto
	}
	p.container = &replayContainer{
		id:   id,
		page: p,
		metrics: Metrics{
			ScrollTop:    p.frames[0].top,
			ScrollHeight: c.Container.ScrollHeight,
			ClientHeight: c.Container.ClientHeight,
			OverflowY:    overflow,
		},
	}
	p.container.metrics.ScrollTop = clamp(p.container.metrics.ScrollTop, p.container.metrics)
	return p, nil
}

// LoadReplayPage is LoadCapture followed by NewReplayPage.
func LoadReplayPage(path string) (*ReplayPage, error) {
	c, err := LoadCapture(path)
	if err != nil {
		return nil, err
	}
	return NewReplayPage(c)
}

func (p *ReplayPage) URL() string {
	return p.url
}

func (p *ReplayPage) Snapshot(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.frameAt(p.container.top()), nil
}

func (p *ReplayPage) Containers(ctx context.Context) ([]Container, error) {
	return []Container{p.container}, nil
}

// ScrollCalls reports how many scroll operations the container received.
func (p *ReplayPage) ScrollCalls() int {
	p.container.mu.Lock()
	defer p.container.mu.Unlock()
	return p.container.calls
}

// frameAt returns the last frame recorded at or above top.
func (p *ReplayPage) frameAt(top float64) *Document {
	doc := p.frames[0].doc
	for _, f := range p.frames {
		if f.top > top {
			break
		}
		doc = f.doc
	}
	return doc
}

type replayContainer struct {
	id   string
	page *ReplayPage

	mu      sync.Mutex
	metrics Metrics
	calls   int
}

func (c *replayContainer) top() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics.ScrollTop
}

func (c *replayContainer) ID() string { return c.id }

func (c *replayContainer) Metrics(ctx context.Context) (Metrics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics, nil
}

func (c *replayContainer) Text(ctx context.Context) (string, error) {
	return InnerText(c.page.frameAt(c.top()).Body()), nil
}

func (c *replayContainer) ScrollTo(ctx context.Context, top float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.metrics.ScrollTop = clamp(top, c.metrics)
	return nil
}

func (c *replayContainer) ScrollBy(ctx context.Context, delta float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.metrics.ScrollTop = clamp(c.metrics.ScrollTop+delta, c.metrics)
	return nil
}
