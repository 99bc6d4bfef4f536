package courses

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davemarrero/learnhub-backend/pkg/db/models"
	"github.com/davemarrero/learnhub-backend/pkg/enums"
	pkgerrors "github.com/davemarrero/learnhub-backend/pkg/errors"
	"github.com/davemarrero/learnhub-backend/pkg/pagination"
	"github.com/davemarrero/learnhub-backend/pkg/queue"
)

// Service owns course CRUD and the publish lifecycle.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*models.Course, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Course, error)
	GetWithContents(ctx context.Context, id uuid.UUID) (*models.Course, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*models.Course, error)
	Publish(ctx context.Context, id, instructorID uuid.UUID) error
	Archive(ctx context.Context, id, instructorID uuid.UUID) error
	Delete(ctx context.Context, id, instructorID uuid.UUID) error
}

type service struct {
	repo     Repository
	enqueuer queue.Enqueuer
}

// CreateParams describes a new course.
type CreateParams struct {
	InstructorID uuid.UUID
	Title        string
	Description  string
	Category     string
	Difficulty   enums.DifficultyLevel
	PriceCents   int
}

// UpdateParams carries optional field updates.
type UpdateParams struct {
	InstructorID uuid.UUID
	Title        *string
	Description  *string
	Category     *string
	Difficulty   *enums.DifficultyLevel
	PriceCents   *int
	ThumbnailURL *string
}

// ListParams configures filtering and pagination.
type ListParams struct {
	InstructorID *uuid.UUID
	Status       *enums.CourseStatus
	Category     string
	Limit        int
	Cursor       string
}

// ListResult wraps returned courses and the cursor for the next page.
type ListResult struct {
	Items  []models.Course `json:"items"`
	Cursor string          `json:"cursor"`
}

// NewService wires course dependencies.
func NewService(repo Repository, enqueuer queue.Enqueuer) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "courses repository required")
	}
	if enqueuer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "task enqueuer required")
	}
	return &service{repo: repo, enqueuer: enqueuer}, nil
}

func (s *service) Create(ctx context.Context, params CreateParams) (*models.Course, error) {
	if params.InstructorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "instructor id required")
	}
	if params.Title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	difficulty := params.Difficulty
	if difficulty == "" {
		difficulty = enums.DifficultyBeginner
	}
	if !difficulty.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid difficulty level")
	}

	course := &models.Course{
		InstructorID: params.InstructorID,
		Title:        params.Title,
		Difficulty:   difficulty,
		Status:       enums.CourseStatusDraft,
		PriceCents:   params.PriceCents,
	}
	if params.Description != "" {
		course.Description = &params.Description
	}
	if params.Category != "" {
		course.Category = &params.Category
	}

	if err := s.repo.Create(ctx, course); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create course")
	}
	return course, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	return s.get(ctx, id, false)
}

func (s *service) GetWithContents(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	return s.get(ctx, id, true)
}

func (s *service) get(ctx context.Context, id uuid.UUID, withContents bool) (*models.Course, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "course id required")
	}
	var (
		course *models.Course
		err    error
	)
	if withContents {
		course, err = s.repo.GetByIDWithContents(ctx, id)
	} else {
		course, err = s.repo.GetByID(ctx, id)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get course")
	}
	return course, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listCoursesParams{
		InstructorID: params.InstructorID,
		Status:       params.Status,
		Category:     params.Category,
		Limit:        params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list courses")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*models.Course, error) {
	course, err := s.get(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if course.InstructorID != params.InstructorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "course belongs to another instructor")
	}

	if params.Title != nil {
		if *params.Title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title cannot be empty")
		}
		course.Title = *params.Title
	}
	if params.Description != nil {
		course.Description = params.Description
	}
	if params.Category != nil {
		course.Category = params.Category
	}
	if params.Difficulty != nil {
		if !params.Difficulty.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid difficulty level")
		}
		course.Difficulty = *params.Difficulty
	}
	if params.PriceCents != nil {
		course.PriceCents = *params.PriceCents
	}
	if params.ThumbnailURL != nil {
		course.ThumbnailURL = params.ThumbnailURL
	}

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update course")
	}
	s.enqueueReindex(ctx, course.ID)
	return course, nil
}

func (s *service) Publish(ctx context.Context, id, instructorID uuid.UUID) error {
	course, err := s.get(ctx, id, false)
	if err != nil {
		return err
	}
	if course.InstructorID != instructorID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "course belongs to another instructor")
	}
	if course.Status == enums.CourseStatusPublished {
		return nil
	}

	now := time.Now().UTC()
	affected, err := s.repo.UpdateStatus(ctx, id, enums.CourseStatusPublished, &now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish course")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
	}
	s.enqueueReindex(ctx, id)
	return nil
}

func (s *service) Archive(ctx context.Context, id, instructorID uuid.UUID) error {
	course, err := s.get(ctx, id, false)
	if err != nil {
		return err
	}
	if course.InstructorID != instructorID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "course belongs to another instructor")
	}

	affected, err := s.repo.UpdateStatus(ctx, id, enums.CourseStatusArchived, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "archive course")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
	}
	s.enqueueReindex(ctx, id)
	return nil
}

func (s *service) Delete(ctx context.Context, id, instructorID uuid.UUID) error {
	course, err := s.get(ctx, id, false)
	if err != nil {
		return err
	}
	if course.InstructorID != instructorID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "course belongs to another instructor")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete course")
	}
	return nil
}

// enqueueReindex schedules a search index refresh; indexing lag is
// acceptable so failures only log through the enqueuer.
func (s *service) enqueueReindex(ctx context.Context, courseID uuid.UUID) {
	task, err := queue.NewCourseReindexTask(queue.CourseReindexPayload{CourseID: courseID})
	if err != nil {
		return
	}
	_, _ = s.enqueuer.Enqueue(ctx, task, queue.MaintenanceOptions()...)
}
