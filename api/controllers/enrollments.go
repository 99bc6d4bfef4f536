package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/davemarrero/learnhub-backend/api/responses"
	"github.com/davemarrero/learnhub-backend/internal/analytics"
	"github.com/davemarrero/learnhub-backend/internal/enrollments"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
)

type enrollmentView struct {
	ID         uuid.UUID `json:"id"`
	CourseID   uuid.UUID `json:"course_id"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// Enroll adds the caller to a course roster.
func Enroll(svc enrollments.Service, recorder *analytics.Recorder, logg *logger.Logger) http.HandlerFunc {
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

		enrollment, err := svc.Enroll(r.Context(), userID, courseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		recorder.Record(r.Context(), analytics.LearningEvent{
			EventType: analytics.EventCourseEnrolled,
			UserID:    userID.String(),
			CourseID:  courseID.String(),
		})

		responses.WriteSuccessStatus(w, http.StatusCreated, enrollmentView{
			ID:         enrollment.ID,
			CourseID:   enrollment.CourseID,
			EnrolledAt: enrollment.CreatedAt,
		})
	}
}

// Unenroll removes the caller from a course roster.
func Unenroll(svc enrollments.Service, logg *logger.Logger) http.HandlerFunc {
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

		if err := svc.Unenroll(r.Context(), userID, courseID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "unenrolled"})
	}
}

// MyEnrollments lists the caller's enrollments.
func MyEnrollments(svc enrollments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListByUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]enrollmentView, 0, len(rows))
		for _, row := range rows {
			items = append(items, enrollmentView{
				ID:         row.ID,
				CourseID:   row.CourseID,
				EnrolledAt: row.CreatedAt,
			})
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}
