package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/davemarrero/learnhub-backend/api/responses"
	"github.com/davemarrero/learnhub-backend/api/validators"
	"github.com/davemarrero/learnhub-backend/internal/search"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
)

// SearchCourses runs a full-text query over the course catalog.
func SearchCourses(svc search.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParseQueryInt(r, "page", 1, 1, 1000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		size, err := validators.ParseQueryInt(r, "size", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := r.URL.Query()
		hits, err := svc.SearchCourses(r.Context(), search.CourseQuery{
			Query:      strings.TrimSpace(query.Get("q")),
			Category:   strings.TrimSpace(query.Get("category")),
			Difficulty: strings.TrimSpace(query.Get("difficulty")),
			Page:       page,
			Size:       size,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": hits, "page": page, "size": size})
	}
}

// SearchContent runs a full-text query over lesson content.
func SearchContent(svc search.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParseQueryInt(r, "page", 1, 1, 1000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		size, err := validators.ParseQueryInt(r, "size", 20, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := r.URL.Query()
		params := search.ContentQuery{
			Query:       strings.TrimSpace(query.Get("q")),
			ContentType: strings.TrimSpace(query.Get("type")),
			Page:        page,
			Size:        size,
		}
		if raw := strings.TrimSpace(query.Get("course_id")); raw != "" {
			courseID, parseErr := validators.ParseURLUUID(raw, "course_id")
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, parseErr)
				return
			}
			params.CourseID = courseID
		} else {
			params.CourseID = uuid.Nil
		}

		hits, err := svc.SearchContent(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": hits, "page": page, "size": size})
	}
}
