package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/davemarrero/learnhub-backend/api/responses"
	"github.com/davemarrero/learnhub-backend/api/validators"
	"github.com/davemarrero/learnhub-backend/internal/notes"
	"github.com/davemarrero/learnhub-backend/pkg/db/models"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
)

type noteView struct {
	ID               uuid.UUID `json:"id"`
	ContentID        uuid.UUID `json:"content_id"`
	Body             string    `json:"body"`
	TimestampSeconds float64   `json:"timestamp_seconds"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toNoteView(note *models.Note) noteView {
	return noteView{
		ID:               note.ID,
		ContentID:        note.ContentID,
		Body:             note.Body,
		TimestampSeconds: note.TimestampSeconds,
		CreatedAt:        note.CreatedAt,
		UpdatedAt:        note.UpdatedAt,
	}
}

type createNoteRequest struct {
	Body             string  `json:"body" validate:"required,min=1,max=10000"`
	TimestampSeconds float64 `json:"timestamp_seconds" validate:"gte=0"`
}

// CreateNote pins a note to a moment in a lesson.
func CreateNote(svc notes.Service, logg *logger.Logger) http.HandlerFunc {
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

		var body createNoteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		note, err := svc.Create(r.Context(), notes.CreateParams{
			UserID:           userID,
			ContentID:        contentID,
			Body:             body.Body,
			TimestampSeconds: body.TimestampSeconds,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toNoteView(note))
	}
}

// ListNotes returns the caller's notes for a lesson ordered by
// timestamp.
func ListNotes(svc notes.Service, logg *logger.Logger) http.HandlerFunc {
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

		rows, err := svc.ListByContent(r.Context(), userID, contentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]noteView, 0, len(rows))
		for i := range rows {
			items = append(items, toNoteView(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

type updateNoteRequest struct {
	Body string `json:"body" validate:"required,min=1,max=10000"`
}

// UpdateNote edits a note the caller owns.
func UpdateNote(svc notes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		noteID, err := validators.ParseURLUUID(chi.URLParam(r, "noteID"), "noteID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateNoteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		note, err := svc.Update(r.Context(), userID, noteID, body.Body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toNoteView(note))
	}
}

// DeleteNote removes a note the caller owns.
func DeleteNote(svc notes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		noteID, err := validators.ParseURLUUID(chi.URLParam(r, "noteID"), "noteID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), userID, noteID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
