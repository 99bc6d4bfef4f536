package progress

import (
	"context"

	"github.com/google/uuid"

	"github.com/davemarrero/learnhub-backend/internal/realtime"
	"github.com/davemarrero/learnhub-backend/pkg/db/models"
	pkgerrors "github.com/davemarrero/learnhub-backend/pkg/errors"
)

// Service persists watch progress and summarizes it per course.
type Service interface {
	Apply(ctx context.Context, update realtime.ProgressUpdate) (realtime.ProgressResult, error)
	Get(ctx context.Context, userID, contentID uuid.UUID) (*models.ContentProgress, error)
	CourseSummary(ctx context.Context, userID, courseID uuid.UUID) (*CourseSummary, error)
}

// CourseSummary aggregates a user's progress across a course.
type CourseSummary struct {
	CourseID        uuid.UUID                `json:"course_id"`
	CompletedCount  int                      `json:"completed_count"`
	TrackedCount    int                      `json:"tracked_count"`
	AveragePercent  float64                  `json:"average_percent"`
	ContentProgress []models.ContentProgress `json:"content_progress"`
}

// Broadcaster fans persisted progress out to a course's subscriber
// set so other viewers (instructor dashboards included) see it live.
type Broadcaster interface {
	BroadcastToCourse(ctx context.Context, courseID uuid.UUID, msg realtime.OutboundMessage) int
}

type service struct {
	repo        Repository
	broadcaster Broadcaster
}

// NewService wires progress dependencies.
func NewService(repo Repository, broadcaster Broadcaster) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "progress repository required")
	}
	if broadcaster == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "progress broadcaster required")
	}
	return &service{repo: repo, broadcaster: broadcaster}, nil
}

// Apply upserts the (user, content) row. Completion latches: once a
// row is completed it stays completed even if a later update reports
// a lower percentage, so rewatching a lesson never un-completes it.
func (s *service) Apply(ctx context.Context, update realtime.ProgressUpdate) (realtime.ProgressResult, error) {
	if update.UserID == uuid.Nil || update.ContentID == uuid.Nil || update.CourseID == uuid.Nil {
		return realtime.ProgressResult{}, pkgerrors.New(pkgerrors.CodeValidation, "user, course and content ids required")
	}

	pct := clampPercent(update.ProgressPercent)

	row, err := s.repo.Get(ctx, update.UserID, update.ContentID)
	if err != nil {
		return realtime.ProgressResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load progress")
	}
	if row == nil {
		row = &models.ContentProgress{
			UserID:    update.UserID,
			ContentID: update.ContentID,
			CourseID:  update.CourseID,
		}
	}

	row.ProgressPercent = pct
	row.PositionSeconds = update.PositionSeconds
	if pct >= 100 {
		row.Completed = true
	}

	if err := s.repo.Upsert(ctx, row); err != nil {
		return realtime.ProgressResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save progress")
	}

	// Every persisted mutation fans out to the course room, whichever
	// ingress carried it here.
	s.broadcaster.BroadcastToCourse(ctx, update.CourseID, realtime.OutboundMessage{
		Type:            realtime.MessageTypeProgressUpdated,
		UserID:          update.UserID,
		CourseID:        update.CourseID,
		ContentID:       update.ContentID,
		ProgressPercent: row.ProgressPercent,
		PositionSeconds: row.PositionSeconds,
		Completed:       row.Completed,
	})

	return realtime.ProgressResult{
		ProgressPercent: row.ProgressPercent,
		PositionSeconds: row.PositionSeconds,
		Completed:       row.Completed,
	}, nil
}

func (s *service) Get(ctx context.Context, userID, contentID uuid.UUID) (*models.ContentProgress, error) {
	if userID == uuid.Nil || contentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user and content ids required")
	}
	row, err := s.repo.Get(ctx, userID, contentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load progress")
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "progress not found")
	}
	return row, nil
}

func (s *service) CourseSummary(ctx context.Context, userID, courseID uuid.UUID) (*CourseSummary, error) {
	if userID == uuid.Nil || courseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user and course ids required")
	}
	rows, err := s.repo.ListByCourse(ctx, userID, courseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list progress")
	}

	summary := &CourseSummary{
		CourseID:        courseID,
		TrackedCount:    len(rows),
		ContentProgress: rows,
	}
	if len(rows) == 0 {
		return summary, nil
	}

	var total float64
	for _, row := range rows {
		total += row.ProgressPercent
		if row.Completed {
			summary.CompletedCount++
		}
	}
	summary.AveragePercent = total / float64(len(rows))
	return summary, nil
}

func clampPercent(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
