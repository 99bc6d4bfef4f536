package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/davemarrero/learnhub-backend/pkg/db/types"
	"github.com/davemarrero/learnhub-backend/pkg/enums"
)

// CourseContent is a single lesson artifact (video or presentation)
// attached to a course. Meta holds everything the processing pipeline
// writes: rendition URLs, thumbnail, probe metadata and status.
type CourseContent struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CourseID    uuid.UUID           `gorm:"column:course_id;type:uuid;not null;index:course_contents_course_id_idx"`
	Title       string              `gorm:"column:title;not null"`
	ContentType enums.ContentType   `gorm:"column:content_type;type:text;not null"`
	FileURL     string              `gorm:"column:file_url;not null"`
	FileSize    int64               `gorm:"column:file_size;not null;default:0"`
	Position    int                 `gorm:"column:position;not null;default:0"`
	Meta        dbtypes.ContentMeta `gorm:"column:meta;type:jsonb"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
