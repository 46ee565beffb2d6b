// Package bridge carries DOM queries between the meeting page and the
// isolated transcript frame.
//
// Every request gets its own correlation ID and the caller listens on a reply
// channel unique to that ID, so overlapping requests never receive each
// other's results. A Client exposes the remote frame as a dom.Page; a Server
// answers requests from any dom.Page.
package bridge

import (
	"time"

	"github.com/otherjamesbrown/recap-cli/pkg/dom"
)

// DefaultChannelPrefix namespaces bridge channels.
const DefaultChannelPrefix = "recap:frame"

// ProtocolVersion is stamped on every message.
const ProtocolVersion = "1.0"

// Op names a remote DOM query.
type Op string

const (
	OpSnapshot   Op = "snapshot"
	OpContainers Op = "containers"
	OpMetrics    Op = "metrics"
	OpText       Op = "text"
	OpScrollTo   Op = "scroll_to"
	OpScrollBy   Op = "scroll_by"
)

// Valid reports whether op is one the server understands.
func (op Op) Valid() bool {
	switch op {
	case OpSnapshot, OpContainers, OpMetrics, OpText, OpScrollTo, OpScrollBy:
		return true
	}
	return false
}

// needsContainer reports whether op addresses a single container.
func (op Op) needsContainer() bool {
	switch op {
	case OpMetrics, OpText, OpScrollTo, OpScrollBy:
		return true
	}
	return false
}

// RequestChannel is where servers listen for requests.
func RequestChannel(prefix string) string {
	return prefix + ":request"
}

// ReplyChannel is where the reply to request id is published.
func ReplyChannel(prefix, id string) string {
	return prefix + ":reply:" + id
}

// Request is one DOM query.
type Request struct {
	ID          string    `json:"id"`
	Op          Op        `json:"op"`
	ContainerID string    `json:"container_id,omitempty"`
	Value       float64   `json:"value,omitempty"`
	SentAt      time.Time `json:"sent_at"`
	Version     string    `json:"version"`
}

// ContainerInfo identifies a remote container and its geometry when listed.
type ContainerInfo struct {
	ID      string      `json:"id"`
	Metrics dom.Metrics `json:"metrics"`
}

// Reply answers the request with the same ID. Only the fields relevant to
// the request's op are set.
type Reply struct {
	ID         string          `json:"id"`
	OK         bool            `json:"ok"`
	Error      string          `json:"error,omitempty"`
	URL        string          `json:"url,omitempty"`
	HTML       string          `json:"html,omitempty"`
	Containers []ContainerInfo `json:"containers,omitempty"`
	Metrics    *dom.Metrics    `json:"metrics,omitempty"`
	Text       string          `json:"text,omitempty"`
	Version    string          `json:"version"`
}
