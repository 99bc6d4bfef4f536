package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/davemarrero/learnhub-backend/api/responses"
	"github.com/davemarrero/learnhub-backend/api/validators"
	"github.com/davemarrero/learnhub-backend/internal/analytics"
	"github.com/davemarrero/learnhub-backend/internal/progress"
	"github.com/davemarrero/learnhub-backend/internal/realtime"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
)

type progressView struct {
	ContentID       uuid.UUID `json:"content_id"`
	ProgressPercent float64   `json:"progress_percent"`
	PositionSeconds float64   `json:"position_seconds"`
	Completed       bool      `json:"completed"`
}

// GetContentProgress returns the caller's saved position for one lesson.
func GetContentProgress(svc progress.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contentID, err := contentIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Get(r.Context(), userID, contentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view := progressView{ContentID: contentID}
		if row != nil {
			view.ProgressPercent = row.ProgressPercent
			view.PositionSeconds = row.PositionSeconds
			view.Completed = row.Completed
		}
		responses.WriteSuccess(w, view)
	}
}

type updateProgressRequest struct {
	CourseID        uuid.UUID `json:"course_id" validate:"required"`
	ProgressPercent float64   `json:"progress_percent" validate:"gte=0,lte=100"`
	PositionSeconds float64   `json:"position_seconds" validate:"gte=0"`
}

// UpdateContentProgress is the REST fallback for clients without a
// websocket. It shares the socket's persistence path, so the course
// room sees the same progress_updated fan-out either way.
func UpdateContentProgress(svc progress.Service, recorder *analytics.Recorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		contentID, err := contentIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateProgressRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Apply(r.Context(), realtime.ProgressUpdate{
			UserID:          userID,
			CourseID:        body.CourseID,
			ContentID:       contentID,
			ProgressPercent: body.ProgressPercent,
			PositionSeconds: body.PositionSeconds,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		recorder.RecordProgress(r.Context(), userID, body.CourseID, contentID, result.ProgressPercent, result.Completed)

		responses.WriteSuccess(w, progressView{
			ContentID:       contentID,
			ProgressPercent: result.ProgressPercent,
			PositionSeconds: result.PositionSeconds,
			Completed:       result.Completed,
		})
	}
}

// CourseProgressSummary aggregates the caller's progress in a course.
func CourseProgressSummary(svc progress.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		courseID, err := courseIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.CourseSummary(r.Context(), userID, courseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
