package dom

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Geometry attributes a saved snapshot uses to record scroll state, since
// computed layout does not survive serialization.
const (
	AttrScrollHeight = "data-scroll-height"
	AttrClientHeight = "data-client-height"
	AttrScrollTop    = "data-scroll-top"
	AttrOverflowY    = "data-overflow-y"
)

var overflowStyleRegex = regexp.MustCompile(`(?i)overflow(?:-y)?\s*:\s*([a-z]+)`)

// StaticPage serves a single saved snapshot. Scrolling moves the recorded
// position but never changes the content.
type StaticPage struct {
	doc        *Document
	containers []*staticContainer
}

// NewStaticPage wraps doc and discovers its geometry-annotated containers.
func NewStaticPage(doc *Document) *StaticPage {
	p := &StaticPage{doc: doc}
	doc.Find("[" + AttrScrollHeight + "]").Each(func(i int, sel *goquery.Selection) {
		p.containers = append(p.containers, newStaticContainer(i, sel))
	})
	return p
}

// LoadStaticPage reads an HTML file into a StaticPage.
func LoadStaticPage(path, url string) (*StaticPage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	if url == "" {
		url = "file://" + path
	}
	doc, err := Parse(f, url)
	if err != nil {
		return nil, err
	}
	return NewStaticPage(doc), nil
}

func (p *StaticPage) URL() string {
	return p.doc.URL()
}

func (p *StaticPage) Snapshot(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.doc, nil
}

func (p *StaticPage) Containers(ctx context.Context) ([]Container, error) {
	out := make([]Container, len(p.containers))
	for i, c := range p.containers {
		out[i] = c
	}
	return out, nil
}

type staticContainer struct {
	id  string
	sel *goquery.Selection

	mu      sync.Mutex
	metrics Metrics
}

func newStaticContainer(index int, sel *goquery.Selection) *staticContainer {
	id, ok := sel.Attr("id")
	if !ok || id == "" {
		id = fmt.Sprintf("static-%d", index)
	}

	m := Metrics{
		ScrollHeight: attrFloat(sel, AttrScrollHeight),
		ClientHeight: attrFloat(sel, AttrClientHeight),
		ScrollTop:    attrFloat(sel, AttrScrollTop),
		OverflowY:    overflowOf(sel),
	}
	m.ScrollTop = clamp(m.ScrollTop, m)

	return &staticContainer{id: id, sel: sel, metrics: m}
}

func (c *staticContainer) ID() string { return c.id }

func (c *staticContainer) Metrics(ctx context.Context) (Metrics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics, nil
}

func (c *staticContainer) Text(ctx context.Context) (string, error) {
	return InnerText(c.sel), nil
}

func (c *staticContainer) ScrollTo(ctx context.Context, top float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.ScrollTop = clamp(top, c.metrics)
	return nil
}

func (c *staticContainer) ScrollBy(ctx context.Context, delta float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.ScrollTop = clamp(c.metrics.ScrollTop+delta, c.metrics)
	return nil
}

func attrFloat(sel *goquery.Selection, key string) float64 {
	v, ok := sel.Attr(key)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "px"), 64)
	if err != nil {
		return 0
	}
	return f
}

// overflowOf prefers the explicit attribute, then the inline style.
func overflowOf(sel *goquery.Selection) string {
	if v, ok := sel.Attr(AttrOverflowY); ok {
		return strings.ToLower(strings.TrimSpace(v))
	}
	style, _ := sel.Attr("style")
	var overflow string
	// overflow-y wins over the shorthand regardless of order
	for _, m := range overflowStyleRegex.FindAllStringSubmatch(style, -1) {
		if strings.Contains(strings.ToLower(m[0]), "overflow-y") || overflow == "" {
			overflow = strings.ToLower(m[1])
		}
	}
	return overflow
}
