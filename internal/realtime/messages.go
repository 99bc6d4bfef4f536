package realtime

import (
	"context"

	"github.com/google/uuid"
)

// Inbound and outbound websocket message types.
const (
	MessageTypePing              = "ping"
	MessageTypePong              = "pong"
	MessageTypeSubscribeCourse   = "subscribe_course"
	MessageTypeUnsubscribeCourse = "unsubscribe_course"
	MessageTypeSubscribed        = "subscribed"
	MessageTypeProgressUpdate    = "progress_update"
	MessageTypeProgressUpdated   = "progress_updated"
	MessageTypeContentProcessed  = "content_processed"
	MessageTypeContentFailed     = "content_failed"
	MessageTypeNotification      = "notification"
)

// Application close codes sent before dropping a connection.
const (
	CloseCodeUnauthorized = 4001
	CloseCodeNotEnrolled  = 4003
)

// InboundMessage is the superset of fields clients may send; Type
// decides which ones are read.
type InboundMessage struct {
	Type            string    `json:"type"`
	CourseID        uuid.UUID `json:"course_id,omitempty"`
	ContentID       uuid.UUID `json:"content_id,omitempty"`
	ProgressPercent float64   `json:"progress_percentage,omitempty"`
	PositionSeconds float64   `json:"last_position,omitempty"`
}

// OutboundMessage is the envelope pushed to clients. The progress
// fields carry no omitempty so receivers can tell an explicit zero
// from an absent value.
type OutboundMessage struct {
	Type            string    `json:"type"`
	UserID          uuid.UUID `json:"user_id,omitempty"`
	CourseID        uuid.UUID `json:"course_id,omitempty"`
	ContentID       uuid.UUID `json:"content_id,omitempty"`
	Title           string    `json:"title,omitempty"`
	Message         string    `json:"message,omitempty"`
	ProgressPercent float64   `json:"progress_percentage"`
	PositionSeconds float64   `json:"last_position"`
	Completed       bool      `json:"completed"`
	Status          string    `json:"status,omitempty"`
	Timestamp       string    `json:"timestamp,omitempty"`
}

// EnrollmentChecker answers whether a user may subscribe to a course
// room.
type EnrollmentChecker interface {
	IsEnrolled(ctx context.Context, userID, courseID uuid.UUID) (bool, error)
}

// ProgressUpdate is a position report received over the socket.
type ProgressUpdate struct {
	UserID          uuid.UUID
	CourseID        uuid.UUID
	ContentID       uuid.UUID
	ProgressPercent float64
	PositionSeconds float64
}

// ProgressResult is the persisted state after clamping and latching.
type ProgressResult struct {
	ProgressPercent float64
	PositionSeconds float64
	Completed       bool
}

// ProgressSink persists progress updates arriving over the socket.
type ProgressSink interface {
	Apply(ctx context.Context, update ProgressUpdate) (ProgressResult, error)
}
