package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/otherjamesbrown/recap-cli/pkg/dom"
	rcerrors "github.com/otherjamesbrown/recap-cli/pkg/errors"
	"github.com/otherjamesbrown/recap-cli/pkg/logging"
)

// DefaultRequestTimeout bounds the wait for a reply.
const DefaultRequestTimeout = 10 * time.Second

// ClientConfig configures a Client.
type ClientConfig struct {
	Prefix  string
	Timeout time.Duration
}

// Client is a dom.Page whose DOM lives on the other side of the bridge.
// It is safe for concurrent use.
type Client struct {
	transport Transport
	prefix    string
	timeout   time.Duration
	logger    logging.Logger

	mu  sync.RWMutex
	url string
}

// NewClient creates a frame proxy over transport.
func NewClient(transport Transport, cfg ClientConfig, logger logging.Logger) *Client {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultChannelPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Client{
		transport: transport,
		prefix:    cfg.Prefix,
		timeout:   cfg.Timeout,
		logger:    logger.With(logging.F("component", "bridge_client")),
	}
}

// URL returns the frame address seen in the most recent snapshot.
func (c *Client) URL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.url
}

func (c *Client) Snapshot(ctx context.Context) (*dom.Document, error) {
	reply, err := c.call(ctx, Request{Op: OpSnapshot})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.url = reply.URL
	c.mu.Unlock()

	doc, err := dom.ParseString(reply.HTML, reply.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing frame snapshot: %w", err)
	}
	return doc, nil
}

func (c *Client) Containers(ctx context.Context) ([]dom.Container, error) {
	reply, err := c.call(ctx, Request{Op: OpContainers})
	if err != nil {
		return nil, err
	}

	out := make([]dom.Container, len(reply.Containers))
	for i, info := range reply.Containers {
		out[i] = &remoteContainer{client: c, id: info.ID}
	}
	return out, nil
}

// call sends req and waits for the reply carrying the same ID.
func (c *Client) call(ctx context.Context, req Request) (*Reply, error) {
	req.ID = uuid.NewString()
	req.SentAt = time.Now().UTC()
	req.Version = ProtocolVersion

	log := c.logger.WithContext(ctx).With(
		logging.F("bridge_request_id", req.ID),
		logging.F("op", string(req.Op)))

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Listen before asking so the reply cannot arrive unobserved
	sub, err := c.transport.Subscribe(ctx, ReplyChannel(c.prefix, req.ID))
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", req.Op, err, rcerrors.ErrTransport)
	}
	defer sub.Close()

	if err := c.transport.Publish(ctx, RequestChannel(c.prefix), payload); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", req.Op, err, rcerrors.ErrTransport)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			log.Warn("Bridge request timed out", logging.F("timeout", c.timeout.String()))
			return nil, fmt.Errorf("%s: no reply within %s: %w", req.Op, c.timeout, rcerrors.ErrTransport)
		case msg, ok := <-sub.Messages():
			if !ok {
				return nil, fmt.Errorf("%s: reply channel closed: %w", req.Op, rcerrors.ErrTransport)
			}
			var reply Reply
			if err := json.Unmarshal(msg, &reply); err != nil {
				log.Warn("Ignoring malformed reply", logging.Err(err))
				continue
			}
			if reply.ID != req.ID {
				continue
			}
			if !reply.OK {
				return nil, fmt.Errorf("%s: %s: %w", req.Op, reply.Error, rcerrors.ErrStructural)
			}
			log.Debug("Bridge reply received")
			return &reply, nil
		}
	}
}

type remoteContainer struct {
	client *Client
	id     string
}

func (r *remoteContainer) ID() string { return r.id }

func (r *remoteContainer) Metrics(ctx context.Context) (dom.Metrics, error) {
	reply, err := r.client.call(ctx, Request{Op: OpMetrics, ContainerID: r.id})
	if err != nil {
		return dom.Metrics{}, err
	}
	if reply.Metrics == nil {
		return dom.Metrics{}, fmt.Errorf("metrics reply for %s has no metrics: %w", r.id, rcerrors.ErrTransport)
	}
	return *reply.Metrics, nil
}

func (r *remoteContainer) Text(ctx context.Context) (string, error) {
	reply, err := r.client.call(ctx, Request{Op: OpText, ContainerID: r.id})
	if err != nil {
		return "", err
	}
	return reply.Text, nil
}

func (r *remoteContainer) ScrollTo(ctx context.Context, top float64) error {
	_, err := r.client.call(ctx, Request{Op: OpScrollTo, ContainerID: r.id, Value: top})
	return err
}

func (r *remoteContainer) ScrollBy(ctx context.Context, delta float64) error {
	_, err := r.client.call(ctx, Request{Op: OpScrollBy, ContainerID: r.id, Value: delta})
	return err
}
