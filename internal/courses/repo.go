package courses

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davemarrero/learnhub-backend/pkg/db/models"
	"github.com/davemarrero/learnhub-backend/pkg/enums"
	"github.com/davemarrero/learnhub-backend/pkg/pagination"
)

// Repository exposes persistence helpers for courses.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, course *models.Course) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
	GetByIDWithContents(ctx context.Context, id uuid.UUID) (*models.Course, error)
	List(ctx context.Context, params listCoursesParams) ([]models.Course, *pagination.Cursor, error)
	Update(ctx context.Context, course *models.Course) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.CourseStatus, publishedAt *time.Time) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a courses repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listCoursesParams struct {
	InstructorID *uuid.UUID
	Status       *enums.CourseStatus
	Category     string
	Limit        int
	Cursor       *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *repositoryImpl) GetByIDWithContents(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	var course models.Course
	err := r.db.WithContext(ctx).
		Preload("Contents", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, created_at ASC")
		}).
		First(&course, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *repositoryImpl) List(ctx context.Context, params listCoursesParams) ([]models.Course, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Course{})
	if params.InstructorID != nil {
		query = query.Where("instructor_id = ?", *params.InstructorID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var courses []models.Course
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&courses).Error; err != nil {
		return nil, nil, err
	}

	if len(courses) > normalized {
		next := courses[normalized]
		courses = courses[:normalized]
		return courses, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return courses, nil, nil
}

func (r *repositoryImpl) Update(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Save(course).Error
}

func (r *repositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.CourseStatus, publishedAt *time.Time) (int64, error) {
	updates := map[string]any{"status": status}
	if publishedAt != nil {
		updates["published_at"] = *publishedAt
	}
	result := r.db.WithContext(ctx).
		Model(&models.Course{}).
		Where("id = ?", id).
		UpdateColumns(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Course{}, "id = ?", id).Error
}
