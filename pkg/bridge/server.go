package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/otherjamesbrown/recap-cli/pkg/dom"
	"github.com/otherjamesbrown/recap-cli/pkg/logging"
)

// Server answers bridge requests against a page. Requests are handled one at
// a time, in arrival order.
type Server struct {
	transport Transport
	prefix    string
	logger    logging.Logger
	observer  RequestObserver
	ready     chan struct{}
}

// RequestObserver is told about every answered request.
type RequestObserver interface {
	BridgeRequest(op string, ok bool)
}

// SetObserver registers o before Serve is called.
func (s *Server) SetObserver(o RequestObserver) {
	s.observer = o
}

// NewServer creates a server listening under prefix.
func NewServer(transport Transport, prefix string, logger logging.Logger) *Server {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Server{
		transport: transport,
		prefix:    prefix,
		logger:    logger.With(logging.F("component", "bridge_server")),
		ready:     make(chan struct{}),
	}
}

// Ready is closed once the server is subscribed to the request channel.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Serve answers requests until ctx is done. A Server serves once.
func (s *Server) Serve(ctx context.Context, page dom.Page) error {
	channel := RequestChannel(s.prefix)
	sub, err := s.transport.Subscribe(ctx, channel)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", channel, err)
	}
	defer sub.Close()
	close(s.ready)

	s.logger.Info("Frame bridge serving",
		logging.F("channel", channel),
		logging.F("url", page.URL()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.Messages():
			if !ok {
				return fmt.Errorf("request channel %s closed", channel)
			}
			var req Request
			if err := json.Unmarshal(msg, &req); err != nil || req.ID == "" {
				s.logger.Warn("Ignoring malformed request", logging.F("payload_size", len(msg)))
				continue
			}

			reply := s.handle(ctx, page, req)
			reply.ID = req.ID
			reply.Version = ProtocolVersion

			data, err := json.Marshal(reply)
			if err != nil {
				s.logger.Error("Failed to marshal reply", logging.Err(err), logging.F("bridge_request_id", req.ID))
				continue
			}
			if err := s.transport.Publish(ctx, ReplyChannel(s.prefix, req.ID), data); err != nil {
				s.logger.Error("Failed to publish reply", logging.Err(err), logging.F("bridge_request_id", req.ID))
			}
		}
	}
}

func (s *Server) handle(ctx context.Context, page dom.Page, req Request) Reply {
	log := s.logger.With(
		logging.F("bridge_request_id", req.ID),
		logging.F("op", string(req.Op)))

	reply, err := s.dispatch(ctx, page, req)
	if s.observer != nil {
		s.observer.BridgeRequest(string(req.Op), err == nil)
	}
	if err != nil {
		log.Warn("Bridge request failed", logging.Err(err))
		return Reply{OK: false, Error: err.Error()}
	}
	log.Debug("Bridge request answered")
	reply.OK = true
	return reply
}

func (s *Server) dispatch(ctx context.Context, page dom.Page, req Request) (Reply, error) {
	if !req.Op.Valid() {
		return Reply{}, fmt.Errorf("unknown op %q", req.Op)
	}
	if req.Op.needsContainer() && req.ContainerID == "" {
		return Reply{}, fmt.Errorf("op %s requires a container id", req.Op)
	}

	switch req.Op {
	case OpSnapshot:
		doc, err := page.Snapshot(ctx)
		if err != nil {
			return Reply{}, err
		}
		html, err := doc.HTML()
		if err != nil {
			return Reply{}, fmt.Errorf("serializing snapshot: %w", err)
		}
		return Reply{URL: doc.URL(), HTML: html}, nil

	case OpContainers:
		containers, err := page.Containers(ctx)
		if err != nil {
			return Reply{}, err
		}
		infos := make([]ContainerInfo, 0, len(containers))
		for _, c := range containers {
			m, err := c.Metrics(ctx)
			if err != nil {
				return Reply{}, err
			}
			infos = append(infos, ContainerInfo{ID: c.ID(), Metrics: m})
		}
		return Reply{Containers: infos}, nil
	}

	c, err := findContainer(ctx, page, req.ContainerID)
	if err != nil {
		return Reply{}, err
	}

	switch req.Op {
	case OpMetrics:
		m, err := c.Metrics(ctx)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Metrics: &m}, nil
	case OpText:
		text, err := c.Text(ctx)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Text: text}, nil
	case OpScrollTo:
		return Reply{}, c.ScrollTo(ctx, req.Value)
	default:
		return Reply{}, c.ScrollBy(ctx, req.Value)
	}
}

func findContainer(ctx context.Context, page dom.Page, id string) (dom.Container, error) {
	containers, err := page.Containers(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range containers {
		if c.ID() == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("container %q not found", id)
}
