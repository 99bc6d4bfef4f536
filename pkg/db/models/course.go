package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/davemarrero/learnhub-backend/pkg/enums"
)

// Course represents the canonical instructor listing.
type Course struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InstructorID uuid.UUID             `gorm:"column:instructor_id;type:uuid;not null;index:courses_instructor_id_idx"`
	Title        string                `gorm:"column:title;not null"`
	Description  *string               `gorm:"column:description"`
	Category     *string               `gorm:"column:category"`
	Difficulty   enums.DifficultyLevel `gorm:"column:difficulty;type:text;not null;default:beginner"`
	Status       enums.CourseStatus    `gorm:"column:status;type:text;not null;default:draft"`
	ThumbnailURL *string               `gorm:"column:thumbnail_url"`
	PriceCents   int                   `gorm:"column:price_cents;not null;default:0"`
	Contents     []CourseContent       `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE"`
	PublishedAt  *time.Time            `gorm:"column:published_at"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
