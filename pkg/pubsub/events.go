package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
)

// Content event types carried on the content-events topic.
const (
	EventContentProcessed = "content.processed"
	EventContentFailed    = "content.failed"
)

// AttrEventType is the message attribute consumers route on.
const AttrEventType = "event_type"

// ContentEvent is the envelope the worker publishes when a processing
// run reaches a terminal state.
type ContentEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	Type       string    `json:"type"`
	ContentID  uuid.UUID `json:"content_id"`
	CourseID   uuid.UUID `json:"course_id"`
	Title      string    `json:"title"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PublishContentEvent sends the event and blocks until the server
// acknowledges it, so a crashed worker never silently drops a
// completion signal.
func PublishContentEvent(ctx context.Context, publisher *pubsub.Publisher, event ContentEvent) error {
	if publisher == nil {
		return errors.New("publisher required")
	}
	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal content event: %w", err)
	}

	result := publisher.Publish(ctx, &pubsub.Message{
		Data:       raw,
		Attributes: map[string]string{AttrEventType: event.Type},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish content event: %w", err)
	}
	return nil
}

// PublishContentEvent publishes on the configured content-events topic.
func (c *Client) PublishContentEvent(ctx context.Context, event ContentEvent) error {
	return PublishContentEvent(ctx, c.ContentEventsPublisher(), event)
}
