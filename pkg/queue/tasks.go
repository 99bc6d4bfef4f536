package queue

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Queue names. Video work is isolated from maintenance so a backlog of
// transcodes never starves cleanup jobs, mirroring a dedicated worker
// pool per queue.
const (
	QueueVideoProcessing = "video_processing"
	QueueMaintenance     = "maintenance"
)

// Task type identifiers.
const (
	TypeVideoTranscode = "video:transcode"
	TypeVideoPreview   = "video:preview"
	TypeSearchIndex    = "search:index_content"
	TypeCourseReindex  = "search:index_course"
	TypeWelcomeEmail   = "maintenance:welcome_email"
)

// TranscodePayload carries everything the worker needs to run the
// full processing pipeline for one uploaded video.
type TranscodePayload struct {
	ContentID uuid.UUID `json:"content_id"`
	CourseID  uuid.UUID `json:"course_id"`
	SourceURL string    `json:"source_url"`
}

// PreviewPayload requests a short preview clip for a processed video.
type PreviewPayload struct {
	ContentID uuid.UUID `json:"content_id"`
	SourceURL string    `json:"source_url"`
}

// SearchIndexPayload asks the worker to (re)index one content row.
type SearchIndexPayload struct {
	ContentID uuid.UUID `json:"content_id"`
}

// CourseReindexPayload asks the worker to (re)index one course.
type CourseReindexPayload struct {
	CourseID uuid.UUID `json:"course_id"`
}

// WelcomeEmailPayload schedules the post-registration email.
type WelcomeEmailPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

// NewTranscodeTask builds the transcode task with its retry contract:
// a bounded number of retries with a fixed delay, and a hard timeout
// that kills runaway ffmpeg invocations.
func NewTranscodeTask(payload TranscodePayload) (*asynq.Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal transcode payload: %w", err)
	}
	return asynq.NewTask(TypeVideoTranscode, raw, asynq.Queue(QueueVideoProcessing)), nil
}

// NewPreviewTask builds the preview-clip task.
func NewPreviewTask(payload PreviewPayload) (*asynq.Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal preview payload: %w", err)
	}
	return asynq.NewTask(TypeVideoPreview, raw, asynq.Queue(QueueVideoProcessing)), nil
}

// NewSearchIndexTask builds the content indexing task.
func NewSearchIndexTask(payload SearchIndexPayload) (*asynq.Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal search index payload: %w", err)
	}
	return asynq.NewTask(TypeSearchIndex, raw, asynq.Queue(QueueMaintenance)), nil
}

// NewCourseReindexTask builds the course indexing task.
func NewCourseReindexTask(payload CourseReindexPayload) (*asynq.Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal course reindex payload: %w", err)
	}
	return asynq.NewTask(TypeCourseReindex, raw, asynq.Queue(QueueMaintenance)), nil
}

// NewWelcomeEmailTask builds the welcome email task.
func NewWelcomeEmailTask(payload WelcomeEmailPayload) (*asynq.Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal welcome email payload: %w", err)
	}
	return asynq.NewTask(TypeWelcomeEmail, raw, asynq.Queue(QueueMaintenance)), nil
}
