package progress

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davemarrero/learnhub-backend/pkg/db/models"
)

// Repository exposes persistence helpers for per-content progress rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, userID, contentID uuid.UUID) (*models.ContentProgress, error)
	Upsert(ctx context.Context, row *models.ContentProgress) error
	ListByCourse(ctx context.Context, userID, courseID uuid.UUID) ([]models.ContentProgress, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a progress repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Get(ctx context.Context, userID, contentID uuid.UUID) (*models.ContentProgress, error) {
	var row models.ContentProgress
	err := r.db.WithContext(ctx).
		First(&row, "user_id = ? AND content_id = ?", userID, contentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Upsert writes the row in place; rows are keyed one per
// (user, content) by a unique index.
func (r *repositoryImpl) Upsert(ctx context.Context, row *models.ContentProgress) error {
	return r.db.WithContext(ctx).Save(row).Error
}

func (r *repositoryImpl) ListByCourse(ctx context.Context, userID, courseID uuid.UUID) ([]models.ContentProgress, error) {
	var rows []models.ContentProgress
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Order("updated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
