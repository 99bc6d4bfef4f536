package models

import (
	"time"

	"github.com/google/uuid"
)

// Enrollment links a student to a course they can access.
type Enrollment struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index:enrollments_user_id_idx;uniqueIndex:enrollments_user_course_key"`
	CourseID    uuid.UUID  `gorm:"column:course_id;type:uuid;not null;index:enrollments_course_id_idx;uniqueIndex:enrollments_user_course_key"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}
