package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/davemarrero/learnhub-backend/internal/content"
	"github.com/davemarrero/learnhub-backend/pkg/config"
	"github.com/davemarrero/learnhub-backend/pkg/db/models"
	dbtypes "github.com/davemarrero/learnhub-backend/pkg/db/types"
	"github.com/davemarrero/learnhub-backend/pkg/enums"
	"github.com/davemarrero/learnhub-backend/pkg/queue"
)

type testUploader struct {
	object      string
	contentType string
	size        int
	err         error
}

func (u *testUploader) Upload(ctx context.Context, object string, body io.Reader, contentType string) error {
	if u.err != nil {
		return u.err
	}
	u.object = object
	u.contentType = contentType
	n, _ := io.Copy(io.Discard, body)
	u.size = int(n)
	return nil
}

func (u *testUploader) ObjectURL(object string) string {
	return "https://storage.example.com/learnhub-media/" + object
}

type testEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (e *testEnqueuer) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{ID: "task-1"}, nil
}

func multipartUpload(t *testing.T, filename, mimeType, title string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if title != "" {
		if err := writer.WriteField("title", title); err != nil {
			t.Fatalf("write title: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func uploadTestConfig() (config.UploadConfig, config.QueueConfig) {
	return config.UploadConfig{MaxUploadBytes: 1 << 20},
		config.QueueConfig{TranscodeMaxRetries: 3}
}

func TestUploadContentVideoEnqueuesTranscode(t *testing.T) {
	instructorID := uuid.New()
	courseID := uuid.New()
	contentID := uuid.New()

	courseSvc := &stubCourseService{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.Course, error) {
			return &models.Course{ID: id, InstructorID: instructorID}, nil
		},
	}
	contentSvc := &stubContentService{
		createFn: func(ctx context.Context, params content.CreateParams) (*models.CourseContent, error) {
			if params.CourseID != courseID {
				t.Fatalf("unexpected course %s", params.CourseID)
			}
			if params.ContentType != enums.ContentTypeVideo {
				t.Fatalf("expected video content type, got %s", params.ContentType)
			}
			if params.Title != "Lesson 1" {
				t.Fatalf("unexpected title %q", params.Title)
			}
			return &models.CourseContent{
				ID:          contentID,
				CourseID:    params.CourseID,
				Title:       params.Title,
				ContentType: params.ContentType,
				FileURL:     params.FileURL,
				Meta:        dbtypes.ContentMeta{ProcessingStatus: string(enums.ProcessingStatusPending)},
			}, nil
		},
	}
	uploader := &testUploader{}
	enqueuer := &testEnqueuer{}
	uploadCfg, queueCfg := uploadTestConfig()

	body, contentType := multipartUpload(t, "intro.mp4", "video/mp4", "Lesson 1", []byte("fake video bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/courses/"+courseID.String()+"/contents", body)
	req.Header.Set("Content-Type", contentType)
	req = asActor(req, instructorID, string(enums.UserRoleInstructor))
	req = addRouteParam(req, "courseID", courseID.String())

	resp := httptest.NewRecorder()
	UploadContent(contentSvc, courseSvc, uploader, enqueuer, uploadCfg, queueCfg, testLogger(t))(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if uploader.object == "" || uploader.contentType != "video/mp4" {
		t.Fatalf("upload not stored as expected: %+v", uploader)
	}
	if len(enqueuer.tasks) != 1 {
		t.Fatalf("expected one enqueued task, got %d", len(enqueuer.tasks))
	}
	if got := enqueuer.tasks[0].Type(); got != queue.TypeVideoTranscode {
		t.Fatalf("unexpected task type %s", got)
	}

	var envelope struct {
		Data struct {
			ContentID uuid.UUID `json:"content_id"`
			Status    string    `json:"status"`
			TaskID    string    `json:"task_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.ContentID != contentID {
		t.Fatalf("unexpected content id %s", envelope.Data.ContentID)
	}
	if envelope.Data.Status != "processing" {
		t.Fatalf("expected processing status, got %q", envelope.Data.Status)
	}
	if envelope.Data.TaskID != "task-1" {
		t.Fatalf("expected task id in response, got %q", envelope.Data.TaskID)
	}
}

func TestUploadContentPDFSkipsTranscode(t *testing.T) {
	instructorID := uuid.New()
	courseID := uuid.New()

	courseSvc := &stubCourseService{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.Course, error) {
			return &models.Course{ID: id, InstructorID: instructorID}, nil
		},
	}
	contentSvc := &stubContentService{
		createFn: func(ctx context.Context, params content.CreateParams) (*models.CourseContent, error) {
			if params.ContentType != enums.ContentTypePresentation {
				t.Fatalf("expected presentation type, got %s", params.ContentType)
			}
			return &models.CourseContent{ID: uuid.New(), CourseID: params.CourseID, ContentType: params.ContentType}, nil
		},
	}
	enqueuer := &testEnqueuer{}
	uploadCfg, queueCfg := uploadTestConfig()

	body, contentType := multipartUpload(t, "slides.pdf", "application/pdf", "", []byte("%PDF-1.5"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/courses/"+courseID.String()+"/contents", body)
	req.Header.Set("Content-Type", contentType)
	req = asActor(req, instructorID, string(enums.UserRoleInstructor))
	req = addRouteParam(req, "courseID", courseID.String())

	resp := httptest.NewRecorder()
	UploadContent(contentSvc, courseSvc, &testUploader{}, enqueuer, uploadCfg, queueCfg, testLogger(t))(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if len(enqueuer.tasks) != 1 {
		t.Fatalf("expected one enqueued task, got %d", len(enqueuer.tasks))
	}
	if got := enqueuer.tasks[0].Type(); got != queue.TypeSearchIndex {
		t.Fatalf("documents should only enqueue indexing, got %s", got)
	}

	var envelope struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	// Nothing left to process for a document, so it is servable as is.
	if envelope.Data.Status != "complete" {
		t.Fatalf("expected complete status, got %q", envelope.Data.Status)
	}
}

func TestUploadContentRejectsUnsupportedType(t *testing.T) {
	instructorID := uuid.New()
	courseID := uuid.New()

	courseSvc := &stubCourseService{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.Course, error) {
			return &models.Course{ID: id, InstructorID: instructorID}, nil
		},
	}
	uploader := &testUploader{}
	uploadCfg, queueCfg := uploadTestConfig()

	body, contentType := multipartUpload(t, "malware.exe", "application/x-msdownload", "", []byte{0x4d, 0x5a})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/courses/"+courseID.String()+"/contents", body)
	req.Header.Set("Content-Type", contentType)
	req = asActor(req, instructorID, string(enums.UserRoleInstructor))
	req = addRouteParam(req, "courseID", courseID.String())

	resp := httptest.NewRecorder()
	UploadContent(&stubContentService{}, courseSvc, uploader, &testEnqueuer{}, uploadCfg, queueCfg, testLogger(t))(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if uploader.object != "" {
		t.Fatal("rejected upload must never reach storage")
	}
}

func TestUploadContentRequiresCourseOwnership(t *testing.T) {
	courseID := uuid.New()
	courseSvc := &stubCourseService{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.Course, error) {
			return &models.Course{ID: id, InstructorID: uuid.New()}, nil
		},
	}
	uploadCfg, queueCfg := uploadTestConfig()

	body, contentType := multipartUpload(t, "intro.mp4", "video/mp4", "", []byte("bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/courses/"+courseID.String()+"/contents", body)
	req.Header.Set("Content-Type", contentType)
	req = asActor(req, uuid.New(), string(enums.UserRoleInstructor))
	req = addRouteParam(req, "courseID", courseID.String())

	resp := httptest.NewRecorder()
	UploadContent(&stubContentService{}, courseSvc, &testUploader{}, &testEnqueuer{}, uploadCfg, queueCfg, testLogger(t))(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestSniffUploadType(t *testing.T) {
	cases := []struct {
		name       string
		headerType string
		filename   string
		want       string
	}{
		{"header wins", "video/mp4", "file.bin", "video/mp4"},
		{"header with params", "video/mp4; codecs=avc1", "file.mp4", "video/mp4"},
		{"octet stream falls back to extension", "application/octet-stream", "clip.mp4", "video/mp4"},
		{"empty header falls back to extension", "", "deck.pdf", "application/pdf"},
		{"uppercase normalized", "VIDEO/MP4", "x", "video/mp4"},
		{"unknown extension keeps header", "application/octet-stream", "file.zzz9", "application/octet-stream"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sniffUploadType(tc.headerType, tc.filename); got != tc.want {
				t.Fatalf("sniffUploadType(%q, %q) = %q, want %q", tc.headerType, tc.filename, got, tc.want)
			}
		})
	}
}

func TestSafeExtension(t *testing.T) {
	if got := safeExtension("Intro Video.MP4"); got != ".mp4" {
		t.Fatalf("unexpected extension %q", got)
	}
	if got := safeExtension("noext"); got != "" {
		t.Fatalf("expected empty extension, got %q", got)
	}
	if got := safeExtension("evil.reallyreallylongext"); got != "" {
		t.Fatalf("oversized extension should be dropped, got %q", got)
	}
}

func TestDeleteContentRequiresOwnership(t *testing.T) {
	contentID := uuid.New()
	courseID := uuid.New()

	contentSvc := &stubContentService{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.CourseContent, error) {
			return &models.CourseContent{ID: id, CourseID: courseID}, nil
		},
		deleteFn: func(ctx context.Context, id uuid.UUID) error {
			t.Fatal("delete must not run for non-owners")
			return nil
		},
	}
	courseSvc := &stubCourseService{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.Course, error) {
			return &models.Course{ID: id, InstructorID: uuid.New()}, nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/contents/"+contentID.String(), nil)
	req = asActor(req, uuid.New(), string(enums.UserRoleInstructor))
	req = addRouteParam(req, "contentID", contentID.String())

	resp := httptest.NewRecorder()
	DeleteContent(contentSvc, courseSvc, testLogger(t))(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}
