package models

import (
	"time"

	"github.com/google/uuid"
)

// Note is a private annotation a student pins to a moment in a lesson.
type Note struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:notes_user_id_idx"`
	ContentID        uuid.UUID `gorm:"column:content_id;type:uuid;not null;index:notes_content_id_idx"`
	Body             string    `gorm:"column:body;not null"`
	TimestampSeconds float64   `gorm:"column:timestamp_seconds;not null;default:0"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
