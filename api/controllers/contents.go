package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/davemarrero/learnhub-backend/api/middleware"
	"github.com/davemarrero/learnhub-backend/api/responses"
	"github.com/davemarrero/learnhub-backend/api/validators"
	"github.com/davemarrero/learnhub-backend/internal/content"
	"github.com/davemarrero/learnhub-backend/internal/courses"
	"github.com/davemarrero/learnhub-backend/pkg/config"
	"github.com/davemarrero/learnhub-backend/pkg/enums"
	pkgerrors "github.com/davemarrero/learnhub-backend/pkg/errors"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
	"github.com/davemarrero/learnhub-backend/pkg/queue"
)

// allowedUploadTypes maps accepted MIME types to the content kind they
// imply. Anything else is rejected before a byte hits storage.
var allowedUploadTypes = map[string]enums.ContentType{
	"video/mp4":  enums.ContentTypeVideo,
	"video/webm": enums.ContentTypeVideo,

	"application/pdf":               enums.ContentTypePresentation,
	"application/vnd.ms-powerpoint": enums.ContentTypePresentation,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": enums.ContentTypePresentation,
}

// Uploader is the slice of the storage client the upload path needs.
type Uploader interface {
	Upload(ctx context.Context, object string, body io.Reader, contentType string) error
	ObjectURL(object string) string
}

func contentIDFromPath(r *http.Request) (uuid.UUID, error) {
	return validators.ParseURLUUID(chi.URLParam(r, "contentID"), "contentID")
}

// requireCourseOwner loads the course and verifies the caller owns it.
// Admins pass regardless.
func requireCourseOwner(r *http.Request, svc courses.Service, courseID uuid.UUID) (*http.Request, error) {
	actor, err := actorID(r)
	if err != nil {
		return r, err
	}
	course, err := svc.Get(r.Context(), courseID)
	if err != nil {
		return r, err
	}
	if course.InstructorID != actor && middleware.RoleFromContext(r.Context()) != string(enums.UserRoleAdmin) {
		return r, pkgerrors.New(pkgerrors.CodeForbidden, "not the course instructor")
	}
	return r, nil
}

// ListCourseContents returns the lesson list for a course.
func ListCourseContents(svc content.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID, err := courseIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListByCourse(r.Context(), courseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]contentView, 0, len(rows))
		for i := range rows {
			items = append(items, toContentView(&rows[i]))
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

// GetContent returns a single content row.
func GetContent(svc content.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contentID, err := contentIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Get(r.Context(), contentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toContentView(row))
	}
}

// DeleteContent removes a content row. Storage objects are cleaned up
// by the maintenance sweep, not inline.
func DeleteContent(contentSvc content.Service, courseSvc courses.Service, logg *logger.Logger) http.HandlerFunc {
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
		if _, err := requireCourseOwner(r, courseSvc, row.CourseID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := contentSvc.Delete(r.Context(), contentID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

type uploadResponse struct {
	ContentID uuid.UUID `json:"content_id"`
	URL       string    `json:"url"`
	Status    string    `json:"status"`
	TaskID    string    `json:"task_id,omitempty"`
}

// UploadContent accepts a multipart upload, streams it to storage and,
// for videos, enqueues the transcode task. The response reports the
// stored URL plus the queued task so clients can poll status.
func UploadContent(
	contentSvc content.Service,
	courseSvc courses.Service,
	uploader Uploader,
	enqueuer queue.Enqueuer,
	uploadCfg config.UploadConfig,
	queueCfg config.QueueConfig,
	logg *logger.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID, err := courseIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := requireCourseOwner(r, courseSvc, courseID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		maxBytes := uploadCfg.MaxUploadBytes
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeTooLarge, fmt.Sprintf("upload exceeds %d bytes", maxBytes)))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file field required"))
			return
		}
		defer func() { _ = file.Close() }()

		mimeType := sniffUploadType(header.Header.Get("Content-Type"), header.Filename)
		contentType, ok := allowedUploadTypes[mimeType]
		if !ok {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "unsupported file type").WithDetails(map[string]any{"mime_type": mimeType}))
			return
		}

		title := strings.TrimSpace(r.FormValue("title"))
		if title == "" {
			title = header.Filename
		}
		position := 0
		if raw := strings.TrimSpace(r.FormValue("position")); raw != "" {
			position, err = strconv.Atoi(raw)
			if err != nil || position < 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid position"))
				return
			}
		}

		object := fmt.Sprintf("uploads/%s/%s%s", courseID, uuid.NewString(), safeExtension(header.Filename))
		if err := uploader.Upload(r.Context(), object, file, mimeType); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "store upload"))
			return
		}
		fileURL := uploader.ObjectURL(object)

		row, err := contentSvc.Create(r.Context(), content.CreateParams{
			CourseID:    courseID,
			Title:       title,
			ContentType: contentType,
			FileURL:     fileURL,
			FileSize:    header.Size,
			Position:    position,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// Videos report "processing" until the pipeline publishes their
		// renditions; anything else is servable as uploaded.
		status := "complete"
		if contentType == enums.ContentTypeVideo {
			status = "processing"
		}
		resp := uploadResponse{
			ContentID: row.ID,
			URL:       fileURL,
			Status:    status,
		}

		if contentType == enums.ContentTypeVideo {
			task, taskErr := queue.NewTranscodeTask(queue.TranscodePayload{
				ContentID: row.ID,
				CourseID:  courseID,
				SourceURL: fileURL,
			})
			if taskErr == nil {
				info, enqueueErr := enqueuer.Enqueue(r.Context(), task, queue.TranscodeOptions(queueCfg)...)
				if enqueueErr != nil {
					taskErr = enqueueErr
				} else {
					resp.TaskID = info.ID
				}
			}
			if taskErr != nil {
				// The row stays pending; the stalled sweep will fail it
				// if no retryer picks it up.
				logg.Error(r.Context(), "enqueue transcode task failed", taskErr)
			}
		} else {
			task, taskErr := queue.NewSearchIndexTask(queue.SearchIndexPayload{ContentID: row.ID})
			if taskErr == nil {
				_, taskErr = enqueuer.Enqueue(r.Context(), task, queue.MaintenanceOptions()...)
			}
			if taskErr != nil {
				logg.Error(r.Context(), "enqueue search index task failed", taskErr)
			}
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

func sniffUploadType(headerType, filename string) string {
	mimeType := strings.TrimSpace(headerType)
	if idx := strings.Index(mimeType, ";"); idx > 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if mimeType != "" && mimeType != "application/octet-stream" {
		return strings.ToLower(mimeType)
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		if idx := strings.Index(byExt, ";"); idx > 0 {
			byExt = byExt[:idx]
		}
		return strings.ToLower(byExt)
	}
	return mimeType
}

func safeExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 10 {
		return ""
	}
	return ext
}
