package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/davemarrero/learnhub-backend/api/responses"
	"github.com/davemarrero/learnhub-backend/api/validators"
	"github.com/davemarrero/learnhub-backend/internal/courses"
	"github.com/davemarrero/learnhub-backend/pkg/db/models"
	dbtypes "github.com/davemarrero/learnhub-backend/pkg/db/types"
	"github.com/davemarrero/learnhub-backend/pkg/enums"
	pkgerrors "github.com/davemarrero/learnhub-backend/pkg/errors"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
)

type courseView struct {
	ID           uuid.UUID     `json:"id"`
	InstructorID uuid.UUID     `json:"instructor_id"`
	Title        string        `json:"title"`
	Description  *string       `json:"description,omitempty"`
	Category     *string       `json:"category,omitempty"`
	Difficulty   string        `json:"difficulty"`
	Status       string        `json:"status"`
	ThumbnailURL *string       `json:"thumbnail_url,omitempty"`
	PriceCents   int           `json:"price_cents"`
	PublishedAt  *time.Time    `json:"published_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Contents     []contentView `json:"contents,omitempty"`
}

type contentView struct {
	ID               uuid.UUID              `json:"id"`
	CourseID         uuid.UUID              `json:"course_id"`
	Title            string                 `json:"title"`
	ContentType      string                 `json:"content_type"`
	FileSize         int64                  `json:"file_size"`
	Position         int                    `json:"position"`
	ProcessingStatus string                 `json:"processing_status,omitempty"`
	ProcessingError  string                 `json:"processing_error,omitempty"`
	ThumbnailURL     string                 `json:"thumbnail_url,omitempty"`
	PreviewURL       string                 `json:"preview_url,omitempty"`
	Renditions       []string               `json:"renditions,omitempty"`
	VideoMetadata    *dbtypes.VideoMetadata `json:"video_metadata,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

func toCourseView(course *models.Course, includeContents bool) courseView {
	view := courseView{
		ID:           course.ID,
		InstructorID: course.InstructorID,
		Title:        course.Title,
		Description:  course.Description,
		Category:     course.Category,
		Difficulty:   string(course.Difficulty),
		Status:       string(course.Status),
		ThumbnailURL: course.ThumbnailURL,
		PriceCents:   course.PriceCents,
		PublishedAt:  course.PublishedAt,
		CreatedAt:    course.CreatedAt,
		UpdatedAt:    course.UpdatedAt,
	}
	if includeContents {
		view.Contents = make([]contentView, 0, len(course.Contents))
		for i := range course.Contents {
			view.Contents = append(view.Contents, toContentView(&course.Contents[i]))
		}
	}
	return view
}

func toContentView(row *models.CourseContent) contentView {
	view := contentView{
		ID:               row.ID,
		CourseID:         row.CourseID,
		Title:            row.Title,
		ContentType:      string(row.ContentType),
		FileSize:         row.FileSize,
		Position:         row.Position,
		ProcessingStatus: row.Meta.ProcessingStatus,
		ProcessingError:  row.Meta.ProcessingError,
		ThumbnailURL:     row.Meta.ThumbnailURL,
		PreviewURL:       row.Meta.PreviewURL,
		VideoMetadata:    row.Meta.VideoMetadata,
		CreatedAt:        row.CreatedAt,
	}
	for label := range row.Meta.ProcessedURLs {
		view.Renditions = append(view.Renditions, label)
	}
	return view
}

func courseIDFromPath(r *http.Request) (uuid.UUID, error) {
	return validators.ParseURLUUID(chi.URLParam(r, "courseID"), "courseID")
}

// ListCourses returns the paginated catalog with optional filters.
func ListCourses(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := courses.ListParams{
			Category: strings.TrimSpace(r.URL.Query().Get("category")),
			Limit:    limit,
			Cursor:   strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, parseErr := enums.ParseCourseStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status"))
				return
			}
			params.Status = &status
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("instructor_id")); raw != "" {
			instructorID, parseErr := validators.ParseURLUUID(raw, "instructor_id")
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, parseErr)
				return
			}
			params.InstructorID = &instructorID
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]courseView, 0, len(result.Items))
		for i := range result.Items {
			items = append(items, toCourseView(&result.Items[i], false))
		}
		responses.WriteSuccess(w, map[string]any{
			"items":  items,
			"cursor": result.Cursor,
		})
	}
}

// GetCourse returns a course with its ordered content list.
func GetCourse(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID, err := courseIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		course, err := svc.GetWithContents(r.Context(), courseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toCourseView(course, true))
	}
}

type createCourseRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=300"`
	Description string `json:"description" validate:"omitempty,max=10000"`
	Category    string `json:"category" validate:"omitempty,max=100"`
	Difficulty  string `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	PriceCents  int    `json:"price_cents" validate:"omitempty,gte=0"`
}

// CreateCourse creates a draft course owned by the calling instructor.
func CreateCourse(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instructorID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createCourseRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := courses.CreateParams{
			InstructorID: instructorID,
			Title:        body.Title,
			Description:  body.Description,
			Category:     body.Category,
			PriceCents:   body.PriceCents,
		}
		if body.Difficulty != "" {
			difficulty, parseErr := enums.ParseDifficultyLevel(body.Difficulty)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid difficulty"))
				return
			}
			params.Difficulty = difficulty
		}

		course, err := svc.Create(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toCourseView(course, false))
	}
}

type updateCourseRequest struct {
	Title        *string `json:"title" validate:"omitempty,min=1,max=300"`
	Description  *string `json:"description" validate:"omitempty,max=10000"`
	Category     *string `json:"category" validate:"omitempty,max=100"`
	Difficulty   *string `json:"difficulty" validate:"omitempty,oneof=beginner intermediate advanced"`
	PriceCents   *int    `json:"price_cents" validate:"omitempty,gte=0"`
	ThumbnailURL *string `json:"thumbnail_url" validate:"omitempty,url"`
}

// UpdateCourse applies partial updates to a course the caller owns.
func UpdateCourse(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instructorID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		courseID, err := courseIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateCourseRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := courses.UpdateParams{
			InstructorID: instructorID,
			Title:        body.Title,
			Description:  body.Description,
			Category:     body.Category,
			PriceCents:   body.PriceCents,
			ThumbnailURL: body.ThumbnailURL,
		}
		if body.Difficulty != nil {
			difficulty, parseErr := enums.ParseDifficultyLevel(*body.Difficulty)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid difficulty"))
				return
			}
			params.Difficulty = &difficulty
		}

		course, err := svc.Update(r.Context(), courseID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toCourseView(course, false))
	}
}

// PublishCourse moves a draft into the public catalog.
func PublishCourse(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return courseStatusAction(svc.Publish, logg)
}

// ArchiveCourse pulls a course out of the catalog.
func ArchiveCourse(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return courseStatusAction(svc.Archive, logg)
}

// DeleteCourse removes a course and cascades to its contents.
func DeleteCourse(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return courseStatusAction(svc.Delete, logg)
}

func courseStatusAction(action func(ctx context.Context, id, instructorID uuid.UUID) error, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instructorID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		courseID, err := courseIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := action(r.Context(), courseID, instructorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}
