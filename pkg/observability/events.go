package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChannelOperationCompleted carries one event per finished boundary operation.
const ChannelOperationCompleted = "events.recap.operation_completed"

// OperationEvent is emitted after each boundary operation.
type OperationEvent struct {
	EventID    string    `json:"event_id"`
	RequestID  string    `json:"request_id"`
	TraceID    string    `json:"trace_id,omitempty"`
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	ErrorCode  string    `json:"error_code,omitempty"`
	PageURL    string    `json:"page_url,omitempty"`
	Count      int       `json:"count"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewOperationEvent creates an event stamped with a fresh ID and the trace
// in ctx.
func NewOperationEvent(ctx context.Context, requestID, operation, status string, count int, duration time.Duration) *OperationEvent {
	return &OperationEvent{
		EventID:    uuid.NewString(),
		RequestID:  requestID,
		TraceID:    GetTraceID(ctx),
		Operation:  operation,
		Status:     status,
		Count:      count,
		DurationMs: duration.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
}

// Publisher is the subset of a message bus that events need.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// PublishEvent serializes event and publishes it on channel.
func PublishEvent(ctx context.Context, pub Publisher, channel string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := pub.Publish(ctx, channel, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}
