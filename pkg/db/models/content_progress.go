package models

import (
	"time"

	"github.com/google/uuid"
)

// ContentProgress is the per-user watch position on a single lesson.
// One row per (user, content); progress updates upsert in place.
type ContentProgress struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID `gorm:"column:user_id;type:uuid;not null;index:content_progress_user_id_idx;uniqueIndex:content_progress_user_content_key"`
	ContentID       uuid.UUID `gorm:"column:content_id;type:uuid;not null;index:content_progress_content_id_idx;uniqueIndex:content_progress_user_content_key"`
	CourseID        uuid.UUID `gorm:"column:course_id;type:uuid;not null;index:content_progress_course_id_idx"`
	ProgressPercent float64   `gorm:"column:progress_percent;not null;default:0"`
	PositionSeconds float64   `gorm:"column:position_seconds;not null;default:0"`
	Completed       bool      `gorm:"column:completed;not null;default:false"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}
