package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Event types published on the lifecycle stream
const (
	EventNotificationCreated = "notification.created"
	EventMemberPrefix        = "member."
)

// EventPublisher publishes lifecycle events for real-time consumers
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]interface{}) error
}

// StreamWriter is the XADD subset of *goredis.Client
type StreamWriter interface {
	XAdd(ctx context.Context, a *goredis.XAddArgs) *goredis.StringCmd
}

// StreamPublisher writes events to a Redis stream
type StreamPublisher struct {
	client StreamWriter
	stream string
	maxLen int64
}

// NewStreamPublisher creates a publisher bound to one stream.
// A positive maxLen trims the stream approximately on every write.
func NewStreamPublisher(client StreamWriter, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

// Publish appends the event to the stream with an auto-generated entry ID
func (p *StreamPublisher) Publish(ctx context.Context, eventType string, payload map[string]interface{}) error {
	values, err := EncodeEvent(eventType, payload, time.Now().UTC())
	if err != nil {
		return err
	}

	args := &goredis.XAddArgs{Stream: p.stream, Values: values}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to append %s to stream %s: %w", eventType, p.stream, err)
	}
	return nil
}

// EncodeEvent flattens an event into stream entry fields
func EncodeEvent(eventType string, payload map[string]interface{}, at time.Time) (map[string]interface{}, error) {
	if eventType == "" {
		return nil, fmt.Errorf("event type is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return map[string]interface{}{
		"type":        eventType,
		"occurred_at": at.Format(time.RFC3339Nano),
		"payload":     string(body),
	}, nil
}

// NoopPublisher drops every event; used when Redis is not configured
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, map[string]interface{}) error { return nil }
