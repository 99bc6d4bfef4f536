package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/davemarrero/learnhub-backend/internal/realtime"
	"github.com/davemarrero/learnhub-backend/pkg/db/models"
	"github.com/davemarrero/learnhub-backend/pkg/email"
	"github.com/davemarrero/learnhub-backend/pkg/enums"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
	"github.com/davemarrero/learnhub-backend/pkg/metrics"
	"github.com/davemarrero/learnhub-backend/pkg/pubsub"
	"github.com/davemarrero/learnhub-backend/pkg/queue"
)

type stubNotificationsService struct {
	created []CreateParams
	err     error
}

func (s *stubNotificationsService) Create(ctx context.Context, params CreateParams) (*models.Notification, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, params)
	return &models.Notification{ID: uuid.New(), UserID: params.UserID}, nil
}

func (s *stubNotificationsService) List(ctx context.Context, params ListParams) (*ListResult, error) {
	return &ListResult{}, nil
}

func (s *stubNotificationsService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return nil
}

func (s *stubNotificationsService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

type stubCourses struct {
	course *models.Course
	err    error
}

func (s *stubCourses) Get(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.course, nil
}

type stubUsers struct {
	user *models.User
	err  error
}

func (s *stubUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.user, nil
}

type stubMailer struct {
	sent []email.Message
	err  error
}

func (s *stubMailer) Send(ctx context.Context, msg email.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type stubDedupe struct {
	seen    map[string]bool
	deleted []string
	err     error
}

func newStubDedupe() *stubDedupe {
	return &stubDedupe{seen: map[string]bool{}}
}

func (s *stubDedupe) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

func (s *stubDedupe) CounterKey(name string) string { return "counter:" + name }

func (s *stubDedupe) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		s.deleted = append(s.deleted, key)
		delete(s.seen, key)
	}
	return nil
}

type dispatcherFixture struct {
	dispatcher *Dispatcher
	service    *stubNotificationsService
	mailer     *stubMailer
	dedupe     *stubDedupe
}

func newDispatcherFixture(t *testing.T, course *models.Course) *dispatcherFixture {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test"})
	service := &stubNotificationsService{}
	mailer := &stubMailer{}
	dedupe := newStubDedupe()
	registry := realtime.NewRegistry(logg, metrics.NewRealtimeMetrics(prometheus.NewRegistry()))

	return &dispatcherFixture{
		dispatcher: &Dispatcher{
			service:  service,
			courses:  &stubCourses{course: course},
			users:    &stubUsers{user: &models.User{ID: course.InstructorID, Email: "instructor@example.com", FirstName: "Dana", LastName: "Lee"}},
			registry: registry,
			mailer:   mailer,
			dedupe:   dedupe,
			logg:     logg,
		},
		service: service,
		mailer:  mailer,
		dedupe:  dedupe,
	}
}

func processedEventMessage(t *testing.T, event pubsub.ContentEvent) *gcppubsub.Message {
	t.Helper()
	raw, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return &gcppubsub.Message{
		ID:         "msg-" + event.EventID.String(),
		Data:       raw,
		Attributes: map[string]string{pubsub.AttrEventType: event.Type},
	}
}

func TestDispatcherProcessedEventNotifiesInstructor(t *testing.T) {
	instructorID := uuid.New()
	courseID := uuid.New()
	contentID := uuid.New()
	course := &models.Course{ID: courseID, InstructorID: instructorID, Title: "Intro to Go"}
	fixture := newDispatcherFixture(t, course)

	event := pubsub.ContentEvent{
		EventID:    uuid.New(),
		Type:       pubsub.EventContentProcessed,
		ContentID:  contentID,
		CourseID:   courseID,
		Title:      "Lesson 1",
		OccurredAt: time.Now(),
	}

	result := fixture.dispatcher.process(context.Background(), processedEventMessage(t, event))
	if !result.ack || result.nack {
		t.Fatalf("expected ack, got %+v", result)
	}

	if len(fixture.service.created) != 1 {
		t.Fatalf("expected one notification row, got %d", len(fixture.service.created))
	}
	row := fixture.service.created[0]
	if row.UserID != instructorID {
		t.Fatalf("notification should target the instructor, got %s", row.UserID)
	}
	if row.Type != enums.NotificationTypeContentProcessed {
		t.Fatalf("unexpected notification type %s", row.Type)
	}

	if len(fixture.mailer.sent) != 1 {
		t.Fatalf("expected courtesy email, got %d", len(fixture.mailer.sent))
	}
	if fixture.mailer.sent[0].ToEmail != "instructor@example.com" {
		t.Fatalf("unexpected recipient %q", fixture.mailer.sent[0].ToEmail)
	}
}

func TestDispatcherDeduplicatesByEventID(t *testing.T) {
	instructorID := uuid.New()
	course := &models.Course{ID: uuid.New(), InstructorID: instructorID}
	fixture := newDispatcherFixture(t, course)

	event := pubsub.ContentEvent{
		EventID:   uuid.New(),
		Type:      pubsub.EventContentProcessed,
		ContentID: uuid.New(),
		CourseID:  course.ID,
		Title:     "Lesson 1",
	}

	first := fixture.dispatcher.process(context.Background(), processedEventMessage(t, event))
	second := fixture.dispatcher.process(context.Background(), processedEventMessage(t, event))

	if !first.ack || !second.ack {
		t.Fatalf("both deliveries should ack: %+v %+v", first, second)
	}
	if len(fixture.service.created) != 1 {
		t.Fatalf("duplicate delivery must not create a second notification, got %d", len(fixture.service.created))
	}
}

func TestDispatcherNacksAndReleasesDedupeOnFailure(t *testing.T) {
	course := &models.Course{ID: uuid.New(), InstructorID: uuid.New()}
	fixture := newDispatcherFixture(t, course)
	fixture.service.err = errors.New("db down")

	event := pubsub.ContentEvent{
		EventID:   uuid.New(),
		Type:      pubsub.EventContentFailed,
		ContentID: uuid.New(),
		CourseID:  course.ID,
		Title:     "Lesson 1",
		Error:     "ffmpeg exit 1",
	}

	result := fixture.dispatcher.process(context.Background(), processedEventMessage(t, event))
	if !result.nack {
		t.Fatalf("handler failure must nack for redelivery, got %+v", result)
	}
	if len(fixture.dedupe.deleted) != 1 {
		t.Fatal("dedupe key must be released so the retry is not swallowed")
	}
}

func TestDispatcherIgnoresUnrelatedEvents(t *testing.T) {
	course := &models.Course{ID: uuid.New(), InstructorID: uuid.New()}
	fixture := newDispatcherFixture(t, course)

	msg := &gcppubsub.Message{
		ID:         "msg-unrelated",
		Data:       []byte(`{}`),
		Attributes: map[string]string{pubsub.AttrEventType: "billing.invoice"},
	}

	result := fixture.dispatcher.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("unrelated events should ack without work, got %+v", result)
	}
	if len(fixture.service.created) != 0 {
		t.Fatal("unrelated event must not create notifications")
	}
}

type welcomeUserStub struct {
	user *models.User
}

func (s *welcomeUserStub) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil {
		return nil, errors.New("record not found")
	}
	return s.user, nil
}

func TestWelcomeEmailHandlerSendsToUser(t *testing.T) {
	userID := uuid.New()
	mailer := &stubMailer{}
	handler, err := NewWelcomeEmailHandler(
		&welcomeUserStub{user: &models.User{ID: userID, Email: "dana@example.com", FirstName: "Dana", LastName: "Lee"}},
		mailer,
		logger.New(logger.Options{ServiceName: "test"}),
	)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	task, err := queue.NewWelcomeEmailTask(queue.WelcomeEmailPayload{UserID: userID})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := handler.HandleWelcomeEmail(context.Background(), task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mailer.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(mailer.sent))
	}
	msg := mailer.sent[0]
	if msg.ToEmail != "dana@example.com" {
		t.Fatalf("unexpected recipient %q", msg.ToEmail)
	}
	if msg.Subject != "Welcome to LearnHub" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if msg.PlainBody == "" || msg.HTMLBody == "" {
		t.Fatal("expected both plain and html bodies")
	}
}

func TestWelcomeEmailHandlerDropsMissingUser(t *testing.T) {
	mailer := &stubMailer{}
	handler, err := NewWelcomeEmailHandler(&welcomeUserStub{}, mailer, logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	task, err := queue.NewWelcomeEmailTask(queue.WelcomeEmailPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := handler.HandleWelcomeEmail(context.Background(), task); err != nil {
		t.Fatalf("missing user should drop the task, got %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatal("no email should be sent for a deleted user")
	}
}

func TestWelcomeEmailHandlerSkipsRetryOnMalformedPayload(t *testing.T) {
	handler, err := NewWelcomeEmailHandler(&welcomeUserStub{}, &stubMailer{}, logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	task := asynq.NewTask(queue.TypeWelcomeEmail, []byte("{not json"))
	handleErr := handler.HandleWelcomeEmail(context.Background(), task)
	if !errors.Is(handleErr, asynq.SkipRetry) {
		t.Fatalf("malformed payload must not be retried, got %v", handleErr)
	}
}
