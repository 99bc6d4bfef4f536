package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/davemarrero/learnhub-backend/pkg/config"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
)

// Learning event types written to the warehouse.
const (
	EventContentViewed    = "content_viewed"
	EventProgressUpdated  = "progress_updated"
	EventContentCompleted = "content_completed"
	EventCourseEnrolled   = "course_enrolled"
	EventContentProcessed = "content_processed"
	EventProcessingFailed = "processing_failed"
	EventContentUploaded  = "content_uploaded"
	EventCoursePublished  = "course_published"
	EventStreamStarted    = "stream_started"
)

// LearningEvent is one warehouse row.
type LearningEvent struct {
	EventID    string    `bigquery:"event_id"`
	EventType  string    `bigquery:"event_type"`
	UserID     string    `bigquery:"user_id"`
	CourseID   string    `bigquery:"course_id"`
	ContentID  string    `bigquery:"content_id"`
	Value      float64   `bigquery:"value"`
	OccurredAt time.Time `bigquery:"occurred_at"`
}

// RowInserter is the slice of the BigQuery client the recorder needs.
type RowInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// Recorder writes learning events. Every write is best effort: the
// warehouse is downstream reporting, never part of a request's
// success path, so failures are logged and swallowed.
type Recorder struct {
	inserter RowInserter
	table    string
	logg     *logger.Logger
}

// NewRecorder wires the analytics recorder. A nil inserter yields a
// recorder that drops everything, so callers never nil-check.
func NewRecorder(inserter RowInserter, cfg config.BigQueryConfig, logg *logger.Logger) *Recorder {
	return &Recorder{inserter: inserter, table: cfg.LearningEventsTable, logg: logg}
}

// Record writes one event.
func (r *Recorder) Record(ctx context.Context, event LearningEvent) {
	if r == nil || r.inserter == nil {
		return
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := r.inserter.InsertRows(ctx, r.table, []any{&event}); err != nil {
		r.logg.Error(ctx, "record learning event", err)
	}
}

// RecordProgress writes a progress event, adding the completion event
// when the update crossed the finish line.
func (r *Recorder) RecordProgress(ctx context.Context, userID, courseID, contentID uuid.UUID, percent float64, completed bool) {
	r.Record(ctx, LearningEvent{
		EventType: EventProgressUpdated,
		UserID:    userID.String(),
		CourseID:  courseID.String(),
		ContentID: contentID.String(),
		Value:     percent,
	})
	if completed {
		r.Record(ctx, LearningEvent{
			EventType: EventContentCompleted,
			UserID:    userID.String(),
			CourseID:  courseID.String(),
			ContentID: contentID.String(),
			Value:     100,
		})
	}
}
