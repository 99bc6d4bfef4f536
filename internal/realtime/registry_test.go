package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/davemarrero/learnhub-backend/pkg/logger"
	"github.com/davemarrero/learnhub-backend/pkg/metrics"
)

type stubEnrollments struct {
	enrolled bool
	err      error
}

func (s stubEnrollments) IsEnrolled(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return s.enrolled, s.err
}

type stubProgress struct {
	mu     sync.Mutex
	result ProgressResult
	err    error
	got    ProgressUpdate
}

func (s *stubProgress) Apply(_ context.Context, update ProgressUpdate) (ProgressResult, error) {
	s.mu.Lock()
	s.got = update
	s.mu.Unlock()
	return s.result, s.err
}

func (s *stubProgress) last() ProgressUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.got
}

// broadcastingSink mirrors the production bridge: persistence is
// stubbed out and the update is fanned out to the course room.
type broadcastingSink struct {
	registry *Registry
	result   ProgressResult
}

func (s *broadcastingSink) Apply(ctx context.Context, update ProgressUpdate) (ProgressResult, error) {
	s.registry.BroadcastToCourse(ctx, update.CourseID, OutboundMessage{
		Type:            MessageTypeProgressUpdated,
		UserID:          update.UserID,
		CourseID:        update.CourseID,
		ContentID:       update.ContentID,
		ProgressPercent: update.ProgressPercent,
		PositionSeconds: update.PositionSeconds,
	})
	return s.result, nil
}

func newTestRegistry() *Registry {
	logg := logger.New(logger.Options{ServiceName: "test"})
	return NewRegistry(logg, metrics.NewRealtimeMetrics(prometheus.NewRegistry()))
}

// dialClient runs a full upgraded connection through Client.Run and
// returns the caller side of the socket.
func dialClient(t *testing.T, registry *Registry, userID uuid.UUID, enroll EnrollmentChecker, sink ProgressSink) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	logg := logger.New(logger.Options{ServiceName: "test"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(conn, userID, registry, enroll, sink, logg).Run(r.Context())
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	waitFor(t, func() bool { return registry.UserConnectionCount(userID) > 0 })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}

func readMessage(t *testing.T, conn *websocket.Conn) OutboundMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var msg OutboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	return msg
}

func TestSendToUserFansOutToAllConnections(t *testing.T) {
	registry := newTestRegistry()
	userID := uuid.New()

	first := dialClient(t, registry, userID, stubEnrollments{}, &stubProgress{})
	second := dialClient(t, registry, userID, stubEnrollments{}, &stubProgress{})
	waitFor(t, func() bool { return registry.UserConnectionCount(userID) == 2 })

	delivered := registry.SendToUser(context.Background(), userID, OutboundMessage{
		Type:    MessageTypeNotification,
		Message: "course published",
	})
	if delivered != 2 {
		t.Fatalf("expected delivery to 2 connections, got %d", delivered)
	}

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readMessage(t, conn)
		if msg.Type != MessageTypeNotification || msg.Message != "course published" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	}
}

func TestSendToUserIgnoresOtherUsers(t *testing.T) {
	registry := newTestRegistry()
	userID := uuid.New()
	dialClient(t, registry, userID, stubEnrollments{}, &stubProgress{})

	delivered := registry.SendToUser(context.Background(), uuid.New(), OutboundMessage{Type: MessageTypePong})
	if delivered != 0 {
		t.Fatalf("expected no deliveries, got %d", delivered)
	}
}

func TestSubscribeCourseRequiresEnrollment(t *testing.T) {
	registry := newTestRegistry()
	userID := uuid.New()
	courseID := uuid.New()

	conn := dialClient(t, registry, userID, stubEnrollments{enrolled: false}, &stubProgress{})
	if err := conn.WriteJSON(InboundMessage{Type: MessageTypeSubscribeCourse, CourseID: courseID}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	// The server closes the socket with the not-enrolled code instead
	// of acking the subscribe.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, CloseCodeNotEnrolled) {
		t.Fatalf("expected close code %d, got %v", CloseCodeNotEnrolled, err)
	}
	if registry.CourseSubscriberCount(courseID) != 0 {
		t.Fatalf("expected no subscribers for non-enrolled user")
	}
}

func TestSubscribeCourseBroadcast(t *testing.T) {
	registry := newTestRegistry()
	userID := uuid.New()
	courseID := uuid.New()

	conn := dialClient(t, registry, userID, stubEnrollments{enrolled: true}, &stubProgress{})
	if err := conn.WriteJSON(InboundMessage{Type: MessageTypeSubscribeCourse, CourseID: courseID}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	ack := readMessage(t, conn)
	if ack.Type != MessageTypeSubscribed || ack.CourseID != courseID {
		t.Fatalf("unexpected subscribe ack: %+v", ack)
	}

	delivered := registry.BroadcastToCourse(context.Background(), courseID, OutboundMessage{
		Type:      MessageTypeContentProcessed,
		CourseID:  courseID,
		ContentID: uuid.New(),
		Status:    "completed",
	})
	if delivered != 1 {
		t.Fatalf("expected broadcast to 1 subscriber, got %d", delivered)
	}

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeContentProcessed || msg.Status != "completed" {
		t.Fatalf("unexpected broadcast payload: %+v", msg)
	}
}

func TestProgressUpdateFansOutToCourseRoom(t *testing.T) {
	registry := newTestRegistry()
	senderID := uuid.New()
	viewerID := uuid.New()
	courseID := uuid.New()
	contentID := uuid.New()

	sink := &broadcastingSink{registry: registry}
	sender := dialClient(t, registry, senderID, stubEnrollments{enrolled: true}, sink)
	viewer := dialClient(t, registry, viewerID, stubEnrollments{enrolled: true}, sink)

	for _, conn := range []*websocket.Conn{sender, viewer} {
		if err := conn.WriteJSON(InboundMessage{Type: MessageTypeSubscribeCourse, CourseID: courseID}); err != nil {
			t.Fatalf("write subscribe: %v", err)
		}
		if ack := readMessage(t, conn); ack.Type != MessageTypeSubscribed {
			t.Fatalf("expected subscribed ack, got %q", ack.Type)
		}
	}

	if err := sender.WriteJSON(InboundMessage{
		Type:            MessageTypeProgressUpdate,
		CourseID:        courseID,
		ContentID:       contentID,
		ProgressPercent: 87.5,
		PositionSeconds: 1234,
	}); err != nil {
		t.Fatalf("write progress: %v", err)
	}

	// The other viewer in the room hears about it, not just the
	// sender's own connections.
	msg := readMessage(t, viewer)
	if msg.Type != MessageTypeProgressUpdated {
		t.Fatalf("expected progress_updated, got %q", msg.Type)
	}
	if msg.UserID != senderID {
		t.Fatalf("expected sender id %s in payload, got %s", senderID, msg.UserID)
	}
	if msg.ProgressPercent != 87.5 || msg.PositionSeconds != 1234 {
		t.Fatalf("unexpected fan-out payload: %+v", msg)
	}
}

func TestProgressUpdateAcceptsWireFieldNames(t *testing.T) {
	registry := newTestRegistry()
	userID := uuid.New()
	courseID := uuid.New()
	contentID := uuid.New()

	sink := &stubProgress{}
	conn := dialClient(t, registry, userID, stubEnrollments{enrolled: true}, sink)

	raw := fmt.Sprintf(
		`{"type":"progress_update","course_id":%q,"content_id":%q,"progress_percentage":87.5,"last_position":1234}`,
		courseID, contentID,
	)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("write progress: %v", err)
	}

	waitFor(t, func() bool { return sink.last().ContentID == contentID })
	got := sink.last()
	if got.ProgressPercent != 87.5 {
		t.Fatalf("expected percent 87.5, got %v", got.ProgressPercent)
	}
	if got.PositionSeconds != 1234 {
		t.Fatalf("expected position 1234, got %v", got.PositionSeconds)
	}
}

func TestPongCarriesTimestamp(t *testing.T) {
	registry := newTestRegistry()
	conn := dialClient(t, registry, uuid.New(), stubEnrollments{}, &stubProgress{})

	if err := conn.WriteJSON(InboundMessage{Type: MessageTypePing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	msg := readMessage(t, conn)
	if msg.Type != MessageTypePong {
		t.Fatalf("expected pong, got %q", msg.Type)
	}
	if _, err := time.Parse(time.RFC3339, msg.Timestamp); err != nil {
		t.Fatalf("pong timestamp %q not RFC3339: %v", msg.Timestamp, err)
	}
}

func TestBroadcastReachesEveryConnection(t *testing.T) {
	registry := newTestRegistry()
	first := dialClient(t, registry, uuid.New(), stubEnrollments{}, &stubProgress{})
	second := dialClient(t, registry, uuid.New(), stubEnrollments{}, &stubProgress{})

	delivered := registry.Broadcast(context.Background(), OutboundMessage{
		Type:    MessageTypeNotification,
		Message: "maintenance window tonight",
	})
	if delivered != 2 {
		t.Fatalf("expected delivery to 2 connections, got %d", delivered)
	}
	for _, conn := range []*websocket.Conn{first, second} {
		msg := readMessage(t, conn)
		if msg.Type != MessageTypeNotification || msg.Message != "maintenance window tonight" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	}
}

func TestBroadcastToCourseSkipsOtherRooms(t *testing.T) {
	registry := newTestRegistry()
	userID := uuid.New()
	courseA := uuid.New()
	courseB := uuid.New()

	// Two connections for the same user, each watching a different
	// course. Room fan-out must follow subscriptions, not user buckets.
	inA := dialClient(t, registry, userID, stubEnrollments{enrolled: true}, &stubProgress{})
	inB := dialClient(t, registry, userID, stubEnrollments{enrolled: true}, &stubProgress{})
	waitFor(t, func() bool { return registry.UserConnectionCount(userID) == 2 })

	for conn, courseID := range map[*websocket.Conn]uuid.UUID{inA: courseA, inB: courseB} {
		if err := conn.WriteJSON(InboundMessage{Type: MessageTypeSubscribeCourse, CourseID: courseID}); err != nil {
			t.Fatalf("write subscribe: %v", err)
		}
		if ack := readMessage(t, conn); ack.Type != MessageTypeSubscribed {
			t.Fatalf("expected subscribed ack, got %q", ack.Type)
		}
	}

	delivered := registry.BroadcastToCourse(context.Background(), courseA, OutboundMessage{
		Type:     MessageTypeContentProcessed,
		CourseID: courseA,
	})
	if delivered != 1 {
		t.Fatalf("expected delivery to course A only, got %d", delivered)
	}
	if msg := readMessage(t, inA); msg.Type != MessageTypeContentProcessed {
		t.Fatalf("course A subscriber got %q", msg.Type)
	}

	// A ping on the other connection must be answered before anything
	// else arrives, proving the course A broadcast never reached it.
	if err := inB.WriteJSON(InboundMessage{Type: MessageTypePing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if msg := readMessage(t, inB); msg.Type != MessageTypePong {
		t.Fatalf("course B subscriber received %q before pong", msg.Type)
	}
}

func TestUnregisterDropsCourseSubscriptions(t *testing.T) {
	registry := newTestRegistry()
	userID := uuid.New()
	courseID := uuid.New()

	conn := dialClient(t, registry, userID, stubEnrollments{enrolled: true}, &stubProgress{})
	if err := conn.WriteJSON(InboundMessage{Type: MessageTypeSubscribeCourse, CourseID: courseID}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	readMessage(t, conn) // subscribed ack
	if registry.CourseSubscriberCount(courseID) != 1 {
		t.Fatalf("expected 1 subscriber before close")
	}

	conn.Close()
	waitFor(t, func() bool {
		return registry.UserConnectionCount(userID) == 0 && registry.CourseSubscriberCount(courseID) == 0
	})
}
