// Package dom provides read-only views over a rendered meeting client page.
//
// A Document is one parsed snapshot of the DOM. A Page is the live side: it
// hands out fresh snapshots and exposes the scrollable containers whose
// position changes what the next snapshot contains. Extractors only ever see
// Documents; collectors drive Pages.
package dom

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is an immutable snapshot of one page's DOM.
type Document struct {
	doc *goquery.Document
	url string
}

// Parse reads HTML from r and returns a Document for url.
func Parse(r io.Reader, url string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	return &Document{doc: doc, url: url}, nil
}

// ParseString is Parse over an in-memory string.
func ParseString(s, url string) (*Document, error) {
	return Parse(strings.NewReader(s), url)
}

// URL returns the address the snapshot was taken from.
func (d *Document) URL() string {
	return d.url
}

// Find runs a CSS selector against the whole document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// Body returns the body element, or the document root when there is none.
func (d *Document) Body() *goquery.Selection {
	body := d.doc.Find("body")
	if body.Length() == 0 {
		return d.doc.Selection
	}
	return body
}

// HTML serializes the snapshot back to markup.
func (d *Document) HTML() (string, error) {
	return d.doc.Html()
}

// elements whose boundaries start a new rendered line
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true,
	"ol": true, "p": true, "pre": true, "section": true, "table": true,
	"tr": true, "ul": true,
}

// elements that never render text
var skippedElements = map[string]bool{
	"head": true, "script": true, "style": true, "template": true,
	"noscript": true, "svg": true,
}

// InnerText approximates the browser's innerText for the first node of sel:
// whitespace inside text collapses, block boundaries and <br> become line
// breaks, non-rendered elements are skipped, and blank lines are dropped.
func InnerText(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	var b strings.Builder
	renderText(&b, sel.Get(0))
	return normalizeLines(b.String())
}

func renderText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		// source line breaks inside text are plain whitespace once rendered
		b.WriteString(strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' || r == '\t' {
				return ' '
			}
			return r
		}, n.Data))
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if skippedElements[n.Data] || hasAttr(n, "hidden") {
			return
		}
		if n.Data == "br" {
			b.WriteByte('\n')
			return
		}
	}

	block := n.Type == html.ElementNode && blockElements[n.Data]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderText(b, c)
	}
	if block {
		b.WriteByte('\n')
	}
}

// normalizeLines collapses whitespace runs inside each line and drops empty lines.
func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// Lines splits rendered text into trimmed, non-empty lines.
func Lines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// TextLength counts characters, not bytes.
func TextLength(s string) int {
	return utf8.RuneCountInString(s)
}

// ChildElementCount returns the number of element children of the first node in sel.
func ChildElementCount(sel *goquery.Selection) int {
	if sel == nil || sel.Length() == 0 {
		return 0
	}
	count := 0
	for c := sel.Get(0).FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			count++
		}
	}
	return count
}

// TextNodes returns the trimmed, non-empty text nodes under body in
// depth-first document order, skipping non-rendered elements. The walk stops
// early when visit returns false.
func (d *Document) TextNodes(visit func(text string) bool) {
	root := d.Body()
	if root.Length() == 0 {
		return
	}
	walkText(root.Get(0), visit)
}

func walkText(n *html.Node, visit func(string) bool) bool {
	if n.Type == html.ElementNode && skippedElements[n.Data] {
		return true
	}
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			return visit(text)
		}
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walkText(c, visit) {
			return false
		}
	}
	return true
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}
