package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/davemarrero/learnhub-backend/internal/content"
	"github.com/davemarrero/learnhub-backend/internal/courses"
	"github.com/davemarrero/learnhub-backend/internal/enrollments"
	"github.com/davemarrero/learnhub-backend/internal/users"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
	"github.com/davemarrero/learnhub-backend/pkg/queue"
)

// TaskHandler maintains the search indices from queue tasks. Indexing
// is async so a slow or down Elasticsearch never blocks the pipeline
// or the API write path.
type TaskHandler struct {
	indexer     Indexer
	contents    content.Service
	courses     courses.Service
	users       users.Service
	enrollments enrollments.Service
	logg        *logger.Logger
}

// NewTaskHandler wires the indexing handlers.
func NewTaskHandler(
	indexer Indexer,
	contentsSvc content.Service,
	coursesSvc courses.Service,
	usersSvc users.Service,
	enrollmentsSvc enrollments.Service,
	logg *logger.Logger,
) (*TaskHandler, error) {
	if indexer == nil {
		return nil, errors.New("search indexer required")
	}
	if contentsSvc == nil || coursesSvc == nil || usersSvc == nil || enrollmentsSvc == nil {
		return nil, errors.New("domain services required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &TaskHandler{
		indexer:     indexer,
		contents:    contentsSvc,
		courses:     coursesSvc,
		users:       usersSvc,
		enrollments: enrollmentsSvc,
		logg:        logg,
	}, nil
}

// Register attaches the handlers to the worker mux.
func (h *TaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(queue.TypeSearchIndex, h.HandleSearchIndex)
	mux.HandleFunc(queue.TypeCourseReindex, h.HandleCourseReindex)
}

// HandleSearchIndex (re)indexes a single content row. A row that no
// longer exists is removed from the index instead.
func (h *TaskHandler) HandleSearchIndex(ctx context.Context, task *asynq.Task) error {
	var payload queue.SearchIndexPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal search index payload: %v: %w", err, asynq.SkipRetry)
	}
	ctx = h.logg.WithContentID(ctx, payload.ContentID.String())

	row, err := h.contents.Get(ctx, payload.ContentID)
	if err != nil {
		h.logg.Info(ctx, "content gone, removing from index")
		if delErr := h.indexer.Delete(ctx, h.indexer.ContentIndex(), payload.ContentID.String()); delErr != nil {
			return fmt.Errorf("delete content document: %w", delErr)
		}
		return nil
	}

	courseTitle := ""
	if course, courseErr := h.courses.Get(ctx, row.CourseID); courseErr == nil {
		courseTitle = course.Title
	}

	doc := buildContentDocument(row, courseTitle)
	if err := h.indexer.Index(ctx, h.indexer.ContentIndex(), doc.ID, doc); err != nil {
		return fmt.Errorf("index content: %w", err)
	}
	h.logg.Info(ctx, "content indexed")
	return nil
}

// HandleCourseReindex rebuilds the course document and every content
// document under it. Enqueued on publish, update and archive.
func (h *TaskHandler) HandleCourseReindex(ctx context.Context, task *asynq.Task) error {
	var payload queue.CourseReindexPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal course reindex payload: %v: %w", err, asynq.SkipRetry)
	}
	ctx = h.logg.WithCourseID(ctx, payload.CourseID.String())

	course, err := h.courses.GetWithContents(ctx, payload.CourseID)
	if err != nil {
		h.logg.Info(ctx, "course gone, removing from index")
		if delErr := h.indexer.Delete(ctx, h.indexer.CourseIndex(), payload.CourseID.String()); delErr != nil {
			return fmt.Errorf("delete course document: %w", delErr)
		}
		return nil
	}

	instructorName := ""
	if instructor, userErr := h.users.GetByID(ctx, course.InstructorID); userErr == nil {
		instructorName = instructor.FirstName + " " + instructor.LastName
	}

	enrolled, enrollErr := h.enrollments.ListUserIDsByCourse(ctx, course.ID)
	if enrollErr != nil {
		h.logg.Error(ctx, "count enrollments for index", enrollErr)
	}

	doc := buildCourseDocument(course, instructorName, len(enrolled))
	if err := h.indexer.Index(ctx, h.indexer.CourseIndex(), doc.ID, doc); err != nil {
		return fmt.Errorf("index course: %w", err)
	}

	for i := range course.Contents {
		contentDoc := buildContentDocument(&course.Contents[i], course.Title)
		if err := h.indexer.Index(ctx, h.indexer.ContentIndex(), contentDoc.ID, contentDoc); err != nil {
			return fmt.Errorf("index content %s: %w", contentDoc.ID, err)
		}
	}
	h.logg.Info(ctx, "course reindexed")
	return nil
}
