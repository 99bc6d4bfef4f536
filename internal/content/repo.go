package content

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davemarrero/learnhub-backend/pkg/db/models"
	dbtypes "github.com/davemarrero/learnhub-backend/pkg/db/types"
)

// Repository exposes persistence helpers for course contents.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, content *models.CourseContent) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.CourseContent, error)
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]models.CourseContent, error)
	ReplaceMeta(ctx context.Context, id uuid.UUID, meta dbtypes.ContentMeta) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListStalledPending(ctx context.Context, olderThan time.Time, limit int) ([]models.CourseContent, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a content repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, content *models.CourseContent) error {
	return r.db.WithContext(ctx).Create(content).Error
}

func (r *repositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.CourseContent, error) {
	var content models.CourseContent
	if err := r.db.WithContext(ctx).First(&content, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &content, nil
}

func (r *repositoryImpl) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]models.CourseContent, error) {
	var contents []models.CourseContent
	err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("position ASC, created_at ASC").
		Find(&contents).Error
	if err != nil {
		return nil, err
	}
	return contents, nil
}

// ReplaceMeta overwrites the whole metadata blob in a single UPDATE.
// Concurrent publishers therefore resolve last-write-wins; there is no
// partial merge state to observe.
func (r *repositoryImpl) ReplaceMeta(ctx context.Context, id uuid.UUID, meta dbtypes.ContentMeta) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CourseContent{}).
		Where("id = ?", id).
		UpdateColumn("meta", meta)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.CourseContent{}, "id = ?", id).Error
}

// ListStalledPending returns contents stuck in a non-terminal
// processing state past the cutoff, for the cleanup job.
func (r *repositoryImpl) ListStalledPending(ctx context.Context, olderThan time.Time, limit int) ([]models.CourseContent, error) {
	var contents []models.CourseContent
	err := r.db.WithContext(ctx).
		Where("updated_at < ?", olderThan).
		Where("meta ->> 'processing_status' IN ?", []string{"pending", "processing"}).
		Order("updated_at ASC").
		Limit(limit).
		Find(&contents).Error
	if err != nil {
		return nil, err
	}
	return contents, nil
}
