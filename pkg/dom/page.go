package dom

import (
	"context"
	"strings"
)

// Overflow values that make an element scroll its own content.
const (
	OverflowAuto   = "auto"
	OverflowScroll = "scroll"
)

// Metrics is the scroll geometry of one container at one moment.
type Metrics struct {
	ScrollTop    float64 `json:"scroll_top" yaml:"scroll_top"`
	ScrollHeight float64 `json:"scroll_height" yaml:"scroll_height"`
	ClientHeight float64 `json:"client_height" yaml:"client_height"`
	OverflowY    string  `json:"overflow_y" yaml:"overflow_y"`
}

// Scrollable reports whether the container scrolls vertically and its content
// exceeds the visible height by more than margin pixels.
func (m Metrics) Scrollable(margin float64) bool {
	overflow := strings.ToLower(strings.TrimSpace(m.OverflowY))
	if overflow != OverflowAuto && overflow != OverflowScroll {
		return false
	}
	return m.ScrollHeight > m.ClientHeight+margin
}

// MaxScrollTop is the largest reachable scroll position.
func (m Metrics) MaxScrollTop() float64 {
	if max := m.ScrollHeight - m.ClientHeight; max > 0 {
		return max
	}
	return 0
}

// Container is a scrollable region of a live page.
type Container interface {
	// ID identifies the container within its page.
	ID() string

	// Metrics reads the current scroll geometry.
	Metrics(ctx context.Context) (Metrics, error)

	// Text returns the container's rendered text.
	Text(ctx context.Context) (string, error)

	// ScrollTo sets the scroll position.
	ScrollTo(ctx context.Context, top float64) error

	// ScrollBy moves the scroll position by delta pixels.
	ScrollBy(ctx context.Context, delta float64) error
}

// Page is a live, mutable document that is queried repeatedly as it changes.
type Page interface {
	// URL returns the page address.
	URL() string

	// Snapshot captures the current DOM.
	Snapshot(ctx context.Context) (*Document, error)

	// Containers lists every element that carries scroll geometry. Callers
	// decide which of them are worth scrolling.
	Containers(ctx context.Context) ([]Container, error)
}

func clamp(top float64, m Metrics) float64 {
	if top < 0 {
		return 0
	}
	if max := m.MaxScrollTop(); top > max {
		return max
	}
	return top
}
