package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/davemarrero/learnhub-backend/internal/realtime"
	"github.com/davemarrero/learnhub-backend/pkg/db/models"
	"github.com/davemarrero/learnhub-backend/pkg/email"
	"github.com/davemarrero/learnhub-backend/pkg/enums"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
	"github.com/davemarrero/learnhub-backend/pkg/pubsub"
)

const (
	contentEventConsumer = "content-event-dispatcher"
	eventDedupeTTL       = 24 * time.Hour
)

type courseGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Course, error)
}

type userGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type dedupeStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CounterKey(name string) string
	Del(ctx context.Context, keys ...string) error
}

// Dispatcher consumes content processing events from the worker and
// fans them out: an in-app notification row for the instructor, a
// websocket broadcast to the course room, and a courtesy email.
type Dispatcher struct {
	service      Service
	courses      courseGetter
	users        userGetter
	registry     *realtime.Registry
	mailer       email.Sender
	dedupe       dedupeStore
	subscription *gcppubsub.Subscriber
	logg         *logger.Logger
}

// NewDispatcher builds the content event dispatcher.
func NewDispatcher(
	service Service,
	courses courseGetter,
	users userGetter,
	registry *realtime.Registry,
	mailer email.Sender,
	dedupe dedupeStore,
	subscription *gcppubsub.Subscriber,
	logg *logger.Logger,
) (*Dispatcher, error) {
	if service == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	if courses == nil {
		return nil, fmt.Errorf("course getter required")
	}
	if registry == nil {
		return nil, fmt.Errorf("realtime registry required")
	}
	if dedupe == nil {
		return nil, fmt.Errorf("dedupe store required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("content events subscription required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{
		service:      service,
		courses:      courses,
		users:        users,
		registry:     registry,
		mailer:       mailer,
		dedupe:       dedupe,
		subscription: subscription,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (d *Dispatcher) Run(ctx context.Context) error {
	return d.subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		result := d.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (d *Dispatcher) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	eventType := msg.Attributes[pubsub.AttrEventType]
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != pubsub.EventContentProcessed && eventType != pubsub.EventContentFailed {
		d.logg.Info(logCtx, "skipping unrelated event")
		return processResult{ack: true}
	}

	var event pubsub.ContentEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		d.logg.Error(logCtx, "failed to decode content event", err)
		return processResult{ack: true}
	}
	if event.EventID == uuid.Nil || event.ContentID == uuid.Nil {
		d.logg.Warn(logCtx, "content event missing identifiers")
		return processResult{ack: true}
	}

	dedupeKey := d.dedupe.CounterKey(contentEventConsumer + ":" + event.EventID.String())
	first, err := d.dedupe.SetNX(ctx, dedupeKey, 1, eventDedupeTTL)
	if err != nil {
		d.logg.Error(logCtx, "event dedupe check failed", err)
		return processResult{nack: true}
	}
	if !first {
		d.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	logCtx = d.logg.WithContentID(logCtx, event.ContentID.String())
	if err := d.handleEvent(ctx, event, logCtx); err != nil {
		d.logg.Error(logCtx, "content event handling failed", err)
		_ = d.dedupe.Del(ctx, dedupeKey)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (d *Dispatcher) handleEvent(ctx context.Context, event pubsub.ContentEvent, logCtx context.Context) error {
	course, err := d.courses.Get(ctx, event.CourseID)
	if err != nil {
		return fmt.Errorf("load course: %w", err)
	}

	var (
		notifType enums.NotificationType
		wsType    string
		title     string
		message   string
	)
	switch event.Type {
	case pubsub.EventContentProcessed:
		notifType = enums.NotificationTypeContentProcessed
		wsType = realtime.MessageTypeContentProcessed
		title = "Video ready"
		message = fmt.Sprintf("%q finished processing and is ready to watch.", event.Title)
	case pubsub.EventContentFailed:
		notifType = enums.NotificationTypeContentFailed
		wsType = realtime.MessageTypeContentFailed
		title = "Video processing failed"
		message = fmt.Sprintf("%q could not be processed: %s", event.Title, event.Error)
	default:
		return fmt.Errorf("unhandled event type %q", event.Type)
	}

	if _, err := d.service.Create(ctx, CreateParams{
		UserID:  course.InstructorID,
		Type:    notifType,
		Title:   title,
		Message: message,
		Link:    fmt.Sprintf("/courses/%s/contents/%s", event.CourseID, event.ContentID),
	}); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	d.registry.SendToUser(ctx, course.InstructorID, realtime.OutboundMessage{
		Type:      wsType,
		CourseID:  event.CourseID,
		ContentID: event.ContentID,
		Title:     title,
		Message:   message,
		Status:    statusForEvent(event.Type),
	})
	d.registry.BroadcastToCourse(ctx, event.CourseID, realtime.OutboundMessage{
		Type:      wsType,
		CourseID:  event.CourseID,
		ContentID: event.ContentID,
		Title:     title,
		Message:   message,
		Status:    statusForEvent(event.Type),
	})

	d.sendEmail(ctx, course.InstructorID, title, message, logCtx)
	return nil
}

// sendEmail is best effort; a bounced email never blocks the event.
func (d *Dispatcher) sendEmail(ctx context.Context, userID uuid.UUID, subject, body string, logCtx context.Context) {
	if d.mailer == nil || d.users == nil {
		return
	}
	user, err := d.users.GetByID(ctx, userID)
	if err != nil {
		d.logg.Warn(logCtx, "email recipient lookup failed")
		return
	}
	err = d.mailer.Send(ctx, email.Message{
		ToEmail:   user.Email,
		ToName:    user.FirstName + " " + user.LastName,
		Subject:   subject,
		PlainBody: body,
	})
	if err != nil {
		d.logg.Warn(logCtx, "notification email failed")
	}
}

func statusForEvent(eventType string) string {
	if eventType == pubsub.EventContentProcessed {
		return enums.ProcessingStatusCompleted.String()
	}
	return enums.ProcessingStatusFailed.String()
}
