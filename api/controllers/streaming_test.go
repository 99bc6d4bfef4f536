package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/davemarrero/learnhub-backend/pkg/db/models"
	dbtypes "github.com/davemarrero/learnhub-backend/pkg/db/types"
	"github.com/davemarrero/learnhub-backend/pkg/enums"
	"github.com/davemarrero/learnhub-backend/pkg/storage/gcs"
)

type testStreamStore struct {
	object      string
	rangeHeader string
	reader      *gcs.ObjectReader
	err         error
}

func (s *testStreamStore) NewReader(ctx context.Context, object, rangeHeader string) (*gcs.ObjectReader, error) {
	s.object = object
	s.rangeHeader = rangeHeader
	if s.err != nil {
		return nil, s.err
	}
	return s.reader, nil
}

func (s *testStreamStore) ObjectFromURL(raw string) string {
	const prefix = "https://storage.example.com/learnhub-media/"
	if strings.HasPrefix(raw, prefix) {
		return strings.TrimPrefix(raw, prefix)
	}
	return ""
}

func processedVideoRow(contentID, courseID uuid.UUID) *models.CourseContent {
	return &models.CourseContent{
		ID:          contentID,
		CourseID:    courseID,
		Title:       "Intro",
		ContentType: enums.ContentTypeVideo,
		Meta: dbtypes.ContentMeta{
			ProcessingStatus: string(enums.ProcessingStatusCompleted),
			ProcessedURLs: map[string]string{
				"1080p": "https://storage.example.com/learnhub-media/processed/x/1080p.mp4",
				"720p":  "https://storage.example.com/learnhub-media/processed/x/720p.mp4",
				"480p":  "https://storage.example.com/learnhub-media/processed/x/480p.mp4",
			},
			ThumbnailURL:  "https://storage.example.com/learnhub-media/processed/x/thumb.jpg",
			VideoMetadata: &dbtypes.VideoMetadata{Duration: 642.5, Width: 1920, Height: 1080},
		},
	}
}

func TestPickRendition(t *testing.T) {
	urls := map[string]string{
		"1080p": "u1080",
		"720p":  "u720",
		"480p":  "u480",
	}

	label, url := pickRendition(urls, "480p")
	if label != "480p" || url != "u480" {
		t.Fatalf("requested rendition not honored: %s %s", label, url)
	}

	label, url = pickRendition(urls, "")
	if label != "720p" || url != "u720" {
		t.Fatalf("default should follow playback order, got %s %s", label, url)
	}

	label, _ = pickRendition(urls, "4k")
	if label != "720p" {
		t.Fatalf("unknown request should fall back to playback order, got %s", label)
	}

	label, url = pickRendition(map[string]string{"240p": "u240"}, "")
	if label != "240p" || url != "u240" {
		t.Fatalf("off-ladder rendition should still be served, got %s %s", label, url)
	}

	if label, url = pickRendition(nil, ""); label != "" || url != "" {
		t.Fatalf("empty map should return nothing, got %s %s", label, url)
	}
}

func TestStreamContentProxiesRangeRequest(t *testing.T) {
	contentID := uuid.New()
	courseID := uuid.New()
	userID := uuid.New()
	row := processedVideoRow(contentID, courseID)

	contentSvc := &stubContentService{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.CourseContent, error) {
			return row, nil
		},
	}
	enrollSvc := &stubEnrollService{
		isEnrolledFn: func(ctx context.Context, uid, cid uuid.UUID) (bool, error) {
			return uid == userID && cid == courseID, nil
		},
	}
	store := &testStreamStore{
		reader: &gcs.ObjectReader{
			Body:          io.NopCloser(strings.NewReader("chunk")),
			StatusCode:    http.StatusPartialContent,
			ContentType:   "video/mp4",
			ContentLength: 5,
			ContentRange:  "bytes 0-4/1000",
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contents/"+contentID.String()+"/stream?quality=480p", nil)
	req.Header.Set("Range", "bytes=0-4")
	req = asActor(req, userID, string(enums.UserRoleStudent))
	req = addRouteParam(req, "contentID", contentID.String())

	resp := httptest.NewRecorder()
	StreamContent(contentSvc, enrollSvc, &stubCourseService{}, store, testLogger(t))(resp, req)

	if resp.Code != http.StatusPartialContent {
		t.Fatalf("expected 206 got %d: %s", resp.Code, resp.Body.String())
	}
	if store.object != "processed/x/480p.mp4" {
		t.Fatalf("unexpected object %q", store.object)
	}
	if store.rangeHeader != "bytes=0-4" {
		t.Fatalf("range header not forwarded, got %q", store.rangeHeader)
	}
	if resp.Header().Get("Content-Range") != "bytes 0-4/1000" {
		t.Fatalf("content range not forwarded, got %q", resp.Header().Get("Content-Range"))
	}
	if resp.Header().Get("Accept-Ranges") != "bytes" {
		t.Fatal("missing Accept-Ranges header")
	}
	if resp.Body.String() != "chunk" {
		t.Fatalf("unexpected body %q", resp.Body.String())
	}
}

func TestStreamContentRejectsWhileProcessing(t *testing.T) {
	contentID := uuid.New()
	courseID := uuid.New()
	userID := uuid.New()

	contentSvc := &stubContentService{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.CourseContent, error) {
			return &models.CourseContent{
				ID:          id,
				CourseID:    courseID,
				ContentType: enums.ContentTypeVideo,
				Meta:        dbtypes.ContentMeta{ProcessingStatus: string(enums.ProcessingStatusProcessing)},
			}, nil
		},
	}
	enrollSvc := &stubEnrollService{
		isEnrolledFn: func(ctx context.Context, uid, cid uuid.UUID) (bool, error) { return true, nil },
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contents/"+contentID.String()+"/stream", nil)
	req = asActor(req, userID, string(enums.UserRoleStudent))
	req = addRouteParam(req, "contentID", contentID.String())

	resp := httptest.NewRecorder()
	StreamContent(contentSvc, enrollSvc, &stubCourseService{}, &testStreamStore{}, testLogger(t))(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestStreamContentDeniesNonEnrolled(t *testing.T) {
	contentID := uuid.New()
	courseID := uuid.New()
	row := processedVideoRow(contentID, courseID)

	contentSvc := &stubContentService{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.CourseContent, error) { return row, nil },
	}
	courseSvc := &stubCourseService{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.Course, error) {
			return &models.Course{ID: id, InstructorID: uuid.New()}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contents/"+contentID.String()+"/stream", nil)
	req = asActor(req, uuid.New(), string(enums.UserRoleStudent))
	req = addRouteParam(req, "contentID", contentID.String())

	resp := httptest.NewRecorder()
	StreamContent(contentSvc, &stubEnrollService{}, courseSvc, &testStreamStore{}, testLogger(t))(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestStreamContentAllowsAdmin(t *testing.T) {
	contentID := uuid.New()
	row := processedVideoRow(contentID, uuid.New())

	contentSvc := &stubContentService{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.CourseContent, error) { return row, nil },
	}
	store := &testStreamStore{
		reader: &gcs.ObjectReader{
			Body:       io.NopCloser(strings.NewReader("payload")),
			StatusCode: http.StatusOK,
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contents/"+contentID.String()+"/stream", nil)
	req = asActor(req, uuid.New(), string(enums.UserRoleAdmin))
	req = addRouteParam(req, "contentID", contentID.String())

	resp := httptest.NewRecorder()
	StreamContent(contentSvc, &stubEnrollService{}, &stubCourseService{}, store, testLogger(t))(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestContentManifestListsRenditionsInLadderOrder(t *testing.T) {
	contentID := uuid.New()
	courseID := uuid.New()
	userID := uuid.New()
	row := processedVideoRow(contentID, courseID)

	contentSvc := &stubContentService{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.CourseContent, error) { return row, nil },
	}
	enrollSvc := &stubEnrollService{
		isEnrolledFn: func(ctx context.Context, uid, cid uuid.UUID) (bool, error) { return true, nil },
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contents/"+contentID.String()+"/manifest", nil)
	req = asActor(req, userID, string(enums.UserRoleStudent))
	req = addRouteParam(req, "contentID", contentID.String())

	resp := httptest.NewRecorder()
	ContentManifest(contentSvc, enrollSvc, &stubCourseService{}, testLogger(t))(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data struct {
			ContentID  uuid.UUID `json:"content_id"`
			Status     string    `json:"status"`
			Default    string    `json:"default"`
			Duration   float64   `json:"duration"`
			Renditions []struct {
				Label       string `json:"label"`
				Height      int    `json:"height"`
				BitrateKbps int    `json:"bitrate_kbps"`
				URL         string `json:"url"`
			} `json:"renditions"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}

	data := envelope.Data
	if data.ContentID != contentID {
		t.Fatalf("unexpected content id %s", data.ContentID)
	}
	if data.Status != string(enums.ProcessingStatusCompleted) {
		t.Fatalf("unexpected status %q", data.Status)
	}
	if data.Default != "720p" {
		t.Fatalf("default should follow playback order, got %q", data.Default)
	}
	if data.Duration != 642.5 {
		t.Fatalf("unexpected duration %v", data.Duration)
	}

	labels := make([]string, 0, len(data.Renditions))
	for _, r := range data.Renditions {
		if r.URL == "" || r.Height == 0 || r.BitrateKbps == 0 {
			t.Fatalf("incomplete rendition entry %+v", r)
		}
		labels = append(labels, r.Label)
	}
	want := []string{"1080p", "720p", "480p"}
	if len(labels) != len(want) {
		t.Fatalf("expected %d renditions, got %v", len(want), labels)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("renditions out of ladder order: %v", labels)
		}
	}
}
