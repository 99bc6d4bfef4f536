package controllers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/davemarrero/learnhub-backend/api/middleware"
	"github.com/davemarrero/learnhub-backend/api/responses"
	"github.com/davemarrero/learnhub-backend/internal/content"
	"github.com/davemarrero/learnhub-backend/internal/courses"
	"github.com/davemarrero/learnhub-backend/internal/enrollments"
	"github.com/davemarrero/learnhub-backend/internal/transcode"
	"github.com/davemarrero/learnhub-backend/pkg/db/models"
	"github.com/davemarrero/learnhub-backend/pkg/enums"
	pkgerrors "github.com/davemarrero/learnhub-backend/pkg/errors"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
	"github.com/davemarrero/learnhub-backend/pkg/storage/gcs"
)

// StreamStore is the slice of the storage client the playback path
// needs: ranged object reads plus URL-to-object mapping.
type StreamStore interface {
	NewReader(ctx context.Context, object, rangeHeader string) (*gcs.ObjectReader, error)
	ObjectFromURL(raw string) string
}

// requirePlaybackAccess checks that the caller may watch the content:
// enrolled in the course, its instructor, or an admin.
func requirePlaybackAccess(r *http.Request, enrollSvc enrollments.Service, courseSvc courses.Service, row *models.CourseContent) error {
	actor, err := actorID(r)
	if err != nil {
		return err
	}
	if middleware.RoleFromContext(r.Context()) == string(enums.UserRoleAdmin) {
		return nil
	}

	enrolled, err := enrollSvc.IsEnrolled(r.Context(), actor, row.CourseID)
	if err != nil {
		return err
	}
	if enrolled {
		return nil
	}

	course, err := courseSvc.Get(r.Context(), row.CourseID)
	if err != nil {
		return err
	}
	if course.InstructorID == actor {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not enrolled in this course")
}

// pickRendition resolves the requested quality label against what the
// pipeline produced, falling back through the playback order.
func pickRendition(urls map[string]string, requested string) (string, string) {
	if requested != "" {
		if url, ok := urls[requested]; ok {
			return requested, url
		}
	}
	for _, label := range transcode.PlaybackOrder {
		if url, ok := urls[label]; ok {
			return label, url
		}
	}
	for label, url := range urls {
		return label, url
	}
	return "", ""
}

// StreamContent proxies a ranged read of one rendition. The Range
// header passes straight through to storage, so seeking costs one
// round trip and nothing is buffered.
func StreamContent(
	contentSvc content.Service,
	enrollSvc enrollments.Service,
	courseSvc courses.Service,
	store StreamStore,
	logg *logger.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contentID, err := contentIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := contentSvc.Get(r.Context(), contentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := requirePlaybackAccess(r, enrollSvc, courseSvc, row); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var objectURL string
		if row.ContentType == enums.ContentTypeVideo {
			status := enums.ProcessingStatus(row.Meta.ProcessingStatus)
			if status != enums.ProcessingStatusCompleted {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeConflict, "content is still processing").WithDetails(map[string]any{"status": row.Meta.ProcessingStatus}))
				return
			}
			_, objectURL = pickRendition(row.Meta.ProcessedURLs, strings.TrimSpace(r.URL.Query().Get("quality")))
		} else {
			objectURL = row.FileURL
		}
		if objectURL == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no playable rendition"))
			return
		}

		object := store.ObjectFromURL(objectURL)
		if object == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "unresolvable storage url"))
			return
		}

		reader, err := store.NewReader(r.Context(), object, r.Header.Get("Range"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "open stream"))
			return
		}
		defer func() { _ = reader.Body.Close() }()

		w.Header().Set("Accept-Ranges", "bytes")
		if reader.ContentType != "" {
			w.Header().Set("Content-Type", reader.ContentType)
		}
		if reader.ContentLength > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(reader.ContentLength, 10))
		}
		if reader.ContentRange != "" {
			w.Header().Set("Content-Range", reader.ContentRange)
		}
		w.WriteHeader(reader.StatusCode)

		if _, err := io.Copy(w, reader.Body); err != nil {
			// Client disconnects mid-stream are routine; just log.
			logg.Debug(r.Context(), "stream copy ended early")
		}
	}
}

type manifestRendition struct {
	Label       string `json:"label"`
	Height      int    `json:"height"`
	BitrateKbps int    `json:"bitrate_kbps"`
	URL         string `json:"url"`
}

type manifestResponse struct {
	ContentID    uuid.UUID           `json:"content_id"`
	Status       string              `json:"status"`
	Default      string              `json:"default,omitempty"`
	Renditions   []manifestRendition `json:"renditions"`
	ThumbnailURL string              `json:"thumbnail_url,omitempty"`
	PreviewURL   string              `json:"preview_url,omitempty"`
	Duration     float64             `json:"duration,omitempty"`
}

// ContentManifest describes the available renditions for a player.
func ContentManifest(
	contentSvc content.Service,
	enrollSvc enrollments.Service,
	courseSvc courses.Service,
	logg *logger.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contentID, err := contentIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := contentSvc.Get(r.Context(), contentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := requirePlaybackAccess(r, enrollSvc, courseSvc, row); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := manifestResponse{
			ContentID:    row.ID,
			Status:       row.Meta.ProcessingStatus,
			ThumbnailURL: row.Meta.ThumbnailURL,
			PreviewURL:   row.Meta.PreviewURL,
			Renditions:   []manifestRendition{},
		}
		if row.Meta.VideoMetadata != nil {
			resp.Duration = row.Meta.VideoMetadata.Duration
		}

		for _, rendition := range transcode.Ladder {
			url, ok := row.Meta.ProcessedURLs[rendition.Label]
			if !ok {
				continue
			}
			resp.Renditions = append(resp.Renditions, manifestRendition{
				Label:       rendition.Label,
				Height:      rendition.Height,
				BitrateKbps: rendition.BitrateKbps,
				URL:         url,
			})
		}
		resp.Default, _ = pickRendition(row.Meta.ProcessedURLs, "")

		responses.WriteSuccess(w, resp)
	}
}
