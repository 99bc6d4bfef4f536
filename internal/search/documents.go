package search

import (
	"time"

	"github.com/davemarrero/learnhub-backend/pkg/db/models"
)

// CourseDocument is the indexed shape of a course.
type CourseDocument struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Instructor      string    `json:"instructor"`
	Category        string    `json:"category"`
	Difficulty      string    `json:"difficulty"`
	Status          string    `json:"status"`
	DurationSeconds int       `json:"duration"`
	EnrollmentCount int       `json:"enrollment_count"`
	ThumbnailURL    string    `json:"thumbnail_url"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ContentDocument is the indexed shape of one lesson artifact.
type ContentDocument struct {
	ID              string    `json:"id"`
	CourseID        string    `json:"course_id"`
	CourseTitle     string    `json:"course_title"`
	Title           string    `json:"title"`
	Type            string    `json:"type"`
	Position        int       `json:"order_index"`
	DurationSeconds int       `json:"duration"`
	FileSize        int64     `json:"file_size"`
	FileURL         string    `json:"file_url"`
	ThumbnailURL    string    `json:"thumbnail_url"`
	ProcessingState string    `json:"processing_status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func buildCourseDocument(course *models.Course, instructorName string, enrollmentCount int) CourseDocument {
	doc := CourseDocument{
		ID:              course.ID.String(),
		Title:           course.Title,
		Instructor:      instructorName,
		Difficulty:      course.Difficulty.String(),
		Status:          course.Status.String(),
		EnrollmentCount: enrollmentCount,
		CreatedAt:       course.CreatedAt,
		UpdatedAt:       course.UpdatedAt,
	}
	if course.Description != nil {
		doc.Description = *course.Description
	}
	if course.Category != nil {
		doc.Category = *course.Category
	}
	if course.ThumbnailURL != nil {
		doc.ThumbnailURL = *course.ThumbnailURL
	}
	for _, row := range course.Contents {
		if row.Meta.VideoMetadata != nil {
			doc.DurationSeconds += int(row.Meta.VideoMetadata.Duration)
		}
	}
	return doc
}

func buildContentDocument(row *models.CourseContent, courseTitle string) ContentDocument {
	doc := ContentDocument{
		ID:              row.ID.String(),
		CourseID:        row.CourseID.String(),
		CourseTitle:     courseTitle,
		Title:           row.Title,
		Type:            row.ContentType.String(),
		Position:        row.Position,
		FileSize:        row.FileSize,
		FileURL:         row.FileURL,
		ThumbnailURL:    row.Meta.ThumbnailURL,
		ProcessingState: row.Meta.ProcessingStatus,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if row.Meta.VideoMetadata != nil {
		doc.DurationSeconds = int(row.Meta.VideoMetadata.Duration)
	}
	return doc
}
