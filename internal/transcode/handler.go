package transcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/davemarrero/learnhub-backend/internal/content"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
	"github.com/davemarrero/learnhub-backend/pkg/metrics"
	pkgpubsub "github.com/davemarrero/learnhub-backend/pkg/pubsub"
	"github.com/davemarrero/learnhub-backend/pkg/queue"
)

// TaskHandler adapts the pipeline to asynq's handler contract.
type TaskHandler struct {
	pipeline      *Pipeline
	logg          *logger.Logger
	softTimeLimit time.Duration
}

// NewTaskHandler wires the transcode task handlers.
func NewTaskHandler(pipeline *Pipeline, logg *logger.Logger, softTimeLimit time.Duration) (*TaskHandler, error) {
	if pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &TaskHandler{pipeline: pipeline, logg: logg, softTimeLimit: softTimeLimit}, nil
}

// Register attaches the handlers to the worker mux.
func (h *TaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(queue.TypeVideoTranscode, h.HandleTranscode)
	mux.HandleFunc(queue.TypeVideoPreview, h.HandlePreview)
}

// HandleTranscode runs the full pipeline for one video. Permanent
// failures (unreadable source, no video stream) are marked failed
// immediately and not retried; everything else bubbles up to asynq's
// retry machinery.
func (h *TaskHandler) HandleTranscode(ctx context.Context, task *asynq.Task) error {
	var payload queue.TranscodePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal transcode payload: %v: %w", err, asynq.SkipRetry)
	}
	ctx = h.logg.WithContentID(ctx, payload.ContentID.String())

	stopWarn := h.softLimitWarn(ctx)
	defer stopWarn()

	err := h.pipeline.Process(ctx, payload)
	if err == nil {
		return nil
	}

	var perm *PermanentError
	if errors.As(err, &perm) {
		h.logg.Error(ctx, "transcode failed permanently", err)
		h.failContent(ctx, payload.ContentID, payload.CourseID, perm.Reason)
		return fmt.Errorf("%s: %w", perm.Reason, asynq.SkipRetry)
	}
	return err
}

// HandlePreview generates the short preview clip for processed content.
func (h *TaskHandler) HandlePreview(ctx context.Context, task *asynq.Task) error {
	var payload queue.PreviewPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal preview payload: %v: %w", err, asynq.SkipRetry)
	}
	ctx = h.logg.WithContentID(ctx, payload.ContentID.String())
	return h.pipeline.ProcessPreview(ctx, payload)
}

// softLimitWarn logs when a task exceeds the soft time limit so long
// encodes are visible before the hard timeout kills them.
func (h *TaskHandler) softLimitWarn(ctx context.Context) func() {
	if h.softTimeLimit <= 0 {
		return func() {}
	}
	timer := time.AfterFunc(h.softTimeLimit, func() {
		h.logg.Warn(ctx, fmt.Sprintf("transcode exceeded soft time limit of %s", h.softTimeLimit))
	})
	return func() { timer.Stop() }
}

// failContent marks the row failed and publishes the terminal event.
// Best effort: the error handler path gets another shot on exhaustion.
func (h *TaskHandler) failContent(ctx context.Context, contentID, courseID uuid.UUID, reason string) {
	if err := h.pipeline.contents.MarkProcessingFailed(ctx, contentID, reason); err != nil {
		h.logg.Error(ctx, "mark content failed", err)
	}
	if h.pipeline.events == nil {
		return
	}
	event := pkgpubsub.ContentEvent{
		EventID:    uuid.New(),
		Type:       pkgpubsub.EventContentFailed,
		ContentID:  contentID,
		CourseID:   courseID,
		Error:      reason,
		OccurredAt: time.Now().UTC(),
	}
	if err := h.pipeline.events.PublishContentEvent(ctx, event); err != nil {
		h.logg.Error(ctx, "publish content failed event", err)
	}
}

// NewErrorHandler returns the server-level error handler. It counts
// retries and, when a transcode task has exhausted them, flips the
// content row to failed and emits the failure event so users are not
// left staring at a permanent "processing".
func NewErrorHandler(
	contents content.Service,
	events EventPublisher,
	pipelineMetrics *metrics.PipelineMetrics,
	logg *logger.Logger,
) asynq.ErrorHandlerFunc {
	return func(ctx context.Context, task *asynq.Task, err error) {
		logCtx := logg.WithField(ctx, "task_type", task.Type())
		logg.Error(logCtx, "task failed", err)

		if task.Type() != queue.TypeVideoTranscode {
			return
		}
		if pipelineMetrics != nil {
			pipelineMetrics.IncRetried()
		}

		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		if retried < maxRetry {
			return
		}

		var payload queue.TranscodePayload
		if unmarshalErr := json.Unmarshal(task.Payload(), &payload); unmarshalErr != nil {
			logg.Error(logCtx, "unmarshal exhausted transcode payload", unmarshalErr)
			return
		}
		logCtx = logg.WithContentID(logCtx, payload.ContentID.String())

		reason := fmt.Sprintf("transcoding failed after %d attempts: %v", retried+1, err)
		if markErr := contents.MarkProcessingFailed(logCtx, payload.ContentID, reason); markErr != nil {
			logg.Error(logCtx, "mark content failed after retry exhaustion", markErr)
		}
		if pipelineMetrics != nil {
			pipelineMetrics.IncCompleted("failure")
		}
		if events == nil {
			return
		}
		event := pkgpubsub.ContentEvent{
			EventID:    uuid.New(),
			Type:       pkgpubsub.EventContentFailed,
			ContentID:  payload.ContentID,
			CourseID:   payload.CourseID,
			Error:      reason,
			OccurredAt: time.Now().UTC(),
		}
		if pubErr := events.PublishContentEvent(logCtx, event); pubErr != nil {
			logg.Error(logCtx, "publish content failed event", pubErr)
		}
	}
}
