package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/davemarrero/learnhub-backend/internal/content"
	"github.com/davemarrero/learnhub-backend/pkg/config"
	"github.com/davemarrero/learnhub-backend/pkg/db/models"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
	pkgpubsub "github.com/davemarrero/learnhub-backend/pkg/pubsub"
	"github.com/davemarrero/learnhub-backend/pkg/queue"
)

type fakeRunner struct {
	probe      *ProbeResult
	probeErr   error
	encoded    []string
	encodeErr  error
	thumbnails int
	previews   int
}

func (f *fakeRunner) Probe(context.Context, string) (*ProbeResult, error) {
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	return f.probe, nil
}

func (f *fakeRunner) TranscodeRendition(_ context.Context, _ string, outputPath string, rendition Rendition) error {
	if f.encodeErr != nil {
		return f.encodeErr
	}
	f.encoded = append(f.encoded, rendition.Label)
	return os.WriteFile(outputPath, []byte("encoded "+rendition.Label), 0o644)
}

func (f *fakeRunner) Thumbnail(_ context.Context, _ string, outputPath string) error {
	f.thumbnails++
	return os.WriteFile(outputPath, []byte("jpeg"), 0o644)
}

func (f *fakeRunner) Preview(_ context.Context, _ string, outputPath string, _ int) error {
	f.previews++
	return os.WriteFile(outputPath, []byte("clip"), 0o644)
}

type fakeStore struct {
	uploads     map[string]string
	downloadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: make(map[string]string)}
}

func (f *fakeStore) Download(_ context.Context, _ string, w io.Writer) error {
	if f.downloadErr != nil {
		return f.downloadErr
	}
	_, err := w.Write([]byte("source bytes"))
	return err
}

func (f *fakeStore) Upload(_ context.Context, object string, body io.Reader, contentType string) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.uploads[object] = contentType + ":" + string(raw)
	return nil
}

func (f *fakeStore) ObjectURL(object string) string {
	return "https://storage.example.com/learnhub-media/" + object
}

func (f *fakeStore) ObjectFromURL(raw string) string {
	const prefix = "https://storage.example.com/learnhub-media/"
	if !strings.HasPrefix(raw, prefix) {
		return ""
	}
	return strings.TrimPrefix(raw, prefix)
}

type fakeContents struct {
	content.Service

	row         *models.CourseContent
	processing  []uuid.UUID
	published   map[uuid.UUID]content.ProcessingResult
	failed      map[uuid.UUID]string
	previewURLs map[uuid.UUID]string
	markErr     error
}

func newFakeContents() *fakeContents {
	return &fakeContents{
		published:   make(map[uuid.UUID]content.ProcessingResult),
		failed:      make(map[uuid.UUID]string),
		previewURLs: make(map[uuid.UUID]string),
	}
}

func (f *fakeContents) Get(_ context.Context, id uuid.UUID) (*models.CourseContent, error) {
	if f.row == nil {
		return nil, errors.New("not found")
	}
	return f.row, nil
}

func (f *fakeContents) MarkProcessing(_ context.Context, id uuid.UUID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.processing = append(f.processing, id)
	return nil
}

func (f *fakeContents) PublishProcessingResult(_ context.Context, id uuid.UUID, result content.ProcessingResult) error {
	f.published[id] = result
	return nil
}

func (f *fakeContents) MarkProcessingFailed(_ context.Context, id uuid.UUID, reason string) error {
	f.failed[id] = reason
	return nil
}

func (f *fakeContents) SetPreviewURL(_ context.Context, id uuid.UUID, previewURL string) error {
	f.previewURLs[id] = previewURL
	return nil
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: fmt.Sprintf("task-%d", len(f.tasks))}, nil
}

type fakeEvents struct {
	events []pkgpubsub.ContentEvent
	err    error
}

func (f *fakeEvents) PublishContentEvent(_ context.Context, event pkgpubsub.ContentEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func goodProbe() *ProbeResult {
	return &ProbeResult{
		Duration: 642.5,
		Width:    1920,
		Height:   1080,
		FPS:      29.97,
		Codec:    "h264",
		Bitrate:  4_800_000,
		HasVideo: true,
	}
}

func newTestPipeline(t *testing.T, runner Runner, store ObjectStore, contents content.Service, enqueuer queue.Enqueuer, events EventPublisher) *Pipeline {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test"})
	p, err := NewPipeline(runner, store, contents, enqueuer, events, nil, logg, config.TranscodeConfig{
		WorkDir:        t.TempDir(),
		PreviewSeconds: 10,
	})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func TestProcessRunsFullLadder(t *testing.T) {
	runner := &fakeRunner{probe: goodProbe()}
	store := newFakeStore()
	contents := newFakeContents()
	contents.row = &models.CourseContent{Title: "Intro to Go"}
	enqueuer := &fakeEnqueuer{}
	events := &fakeEvents{}

	p := newTestPipeline(t, runner, store, contents, enqueuer, events)

	contentID := uuid.New()
	courseID := uuid.New()
	err := p.Process(context.Background(), queue.TranscodePayload{
		ContentID: contentID,
		CourseID:  courseID,
		SourceURL: store.ObjectURL("uploads/" + courseID.String() + "/raw.mp4"),
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(runner.encoded) != len(Ladder) {
		t.Fatalf("expected %d renditions, got %v", len(Ladder), runner.encoded)
	}
	for i, rendition := range Ladder {
		if runner.encoded[i] != rendition.Label {
			t.Fatalf("rendition %d: expected %s, got %s", i, rendition.Label, runner.encoded[i])
		}
		object := fmt.Sprintf("processed/%s/%s.mp4", contentID, rendition.Label)
		if _, ok := store.uploads[object]; !ok {
			t.Fatalf("missing upload for %s", object)
		}
	}
	if runner.thumbnails != 1 {
		t.Fatalf("expected one thumbnail, got %d", runner.thumbnails)
	}

	result, ok := contents.published[contentID]
	if !ok {
		t.Fatalf("processing result never published")
	}
	if len(result.ProcessedURLs) != len(Ladder) {
		t.Fatalf("expected %d processed urls, got %d", len(Ladder), len(result.ProcessedURLs))
	}
	if result.ThumbnailURL == "" {
		t.Fatalf("expected thumbnail url in result")
	}
	if result.VideoMetadata == nil {
		t.Fatalf("expected video metadata in result")
	}
	if result.VideoMetadata.Duration != 642.5 || result.VideoMetadata.Height != 1080 {
		t.Fatalf("unexpected video metadata: %+v", result.VideoMetadata)
	}

	// Follow-ups: search index + preview tasks, and a processed event.
	if len(enqueuer.tasks) != 2 {
		t.Fatalf("expected 2 follow-up tasks, got %d", len(enqueuer.tasks))
	}
	if enqueuer.tasks[0].Type() != queue.TypeSearchIndex || enqueuer.tasks[1].Type() != queue.TypeVideoPreview {
		t.Fatalf("unexpected follow-up tasks: %s, %s", enqueuer.tasks[0].Type(), enqueuer.tasks[1].Type())
	}
	if len(events.events) != 1 {
		t.Fatalf("expected 1 content event, got %d", len(events.events))
	}
	event := events.events[0]
	if event.Type != pkgpubsub.EventContentProcessed || event.Title != "Intro to Go" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestProcessNoVideoStreamIsPermanent(t *testing.T) {
	probe := goodProbe()
	probe.HasVideo = false
	runner := &fakeRunner{probe: probe}
	store := newFakeStore()
	contents := newFakeContents()

	p := newTestPipeline(t, runner, store, contents, &fakeEnqueuer{}, &fakeEvents{})

	err := p.Process(context.Background(), queue.TranscodePayload{
		ContentID: uuid.New(),
		SourceURL: store.ObjectURL("uploads/x/raw.mp4"),
	})

	var perm *PermanentError
	if !errors.As(err, &perm) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if len(runner.encoded) != 0 {
		t.Fatalf("should not transcode an audio-only source")
	}
}

func TestProcessRejectsForeignSourceURL(t *testing.T) {
	runner := &fakeRunner{probe: goodProbe()}
	p := newTestPipeline(t, runner, newFakeStore(), newFakeContents(), &fakeEnqueuer{}, &fakeEvents{})

	err := p.Process(context.Background(), queue.TranscodePayload{
		ContentID: uuid.New(),
		SourceURL: "https://evil.example.com/video.mp4",
	})

	var perm *PermanentError
	if !errors.As(err, &perm) {
		t.Fatalf("expected permanent error for foreign url, got %v", err)
	}
}

func TestProcessTransientDownloadFailureIsRetryable(t *testing.T) {
	runner := &fakeRunner{probe: goodProbe()}
	store := newFakeStore()
	store.downloadErr = errors.New("connection reset")
	contents := newFakeContents()

	p := newTestPipeline(t, runner, store, contents, &fakeEnqueuer{}, &fakeEvents{})

	err := p.Process(context.Background(), queue.TranscodePayload{
		ContentID: uuid.New(),
		SourceURL: store.ObjectURL("uploads/x/raw.mp4"),
	})
	if err == nil {
		t.Fatalf("expected download error")
	}
	var perm *PermanentError
	if errors.As(err, &perm) {
		t.Fatalf("transient download failure must stay retryable, got %v", err)
	}
	if len(contents.published) != 0 {
		t.Fatalf("nothing should be published on failure")
	}
}

func TestProcessEnqueueFailureDoesNotFailPipeline(t *testing.T) {
	runner := &fakeRunner{probe: goodProbe()}
	store := newFakeStore()
	contents := newFakeContents()
	contents.row = &models.CourseContent{Title: "x"}
	enqueuer := &fakeEnqueuer{err: errors.New("redis down")}
	events := &fakeEvents{}

	p := newTestPipeline(t, runner, store, contents, enqueuer, events)

	err := p.Process(context.Background(), queue.TranscodePayload{
		ContentID: uuid.New(),
		SourceURL: store.ObjectURL("uploads/x/raw.mp4"),
	})
	if err != nil {
		t.Fatalf("follow-up enqueue failures must not fail the pipeline: %v", err)
	}
	if len(events.events) != 1 {
		t.Fatalf("processed event should still publish")
	}
}

func TestProcessPreviewUploadsClip(t *testing.T) {
	runner := &fakeRunner{probe: goodProbe()}
	store := newFakeStore()
	contents := newFakeContents()

	p := newTestPipeline(t, runner, store, contents, &fakeEnqueuer{}, &fakeEvents{})

	contentID := uuid.New()
	err := p.ProcessPreview(context.Background(), queue.PreviewPayload{
		ContentID: contentID,
		SourceURL: store.ObjectURL("uploads/x/raw.mp4"),
	})
	if err != nil {
		t.Fatalf("process preview: %v", err)
	}
	if runner.previews != 1 {
		t.Fatalf("expected one preview encode, got %d", runner.previews)
	}

	object := fmt.Sprintf("previews/%s.mp4", contentID)
	if _, ok := store.uploads[object]; !ok {
		t.Fatalf("missing preview upload %s", object)
	}
	if contents.previewURLs[contentID] != store.ObjectURL(object) {
		t.Fatalf("preview url not recorded: %q", contents.previewURLs[contentID])
	}
}

func TestProcessCleansUpScratchDir(t *testing.T) {
	runner := &fakeRunner{probe: goodProbe()}
	store := newFakeStore()
	contents := newFakeContents()
	contents.row = &models.CourseContent{}
	workDir := t.TempDir()

	logg := logger.New(logger.Options{ServiceName: "test"})
	p, err := NewPipeline(runner, store, contents, &fakeEnqueuer{}, &fakeEvents{}, nil, logg, config.TranscodeConfig{WorkDir: workDir})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	if err := p.Process(context.Background(), queue.TranscodePayload{
		ContentID: uuid.New(),
		SourceURL: store.ObjectURL("uploads/x/raw.mp4"),
	}); err != nil {
		t.Fatalf("process: %v", err)
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty work dir after run, found %d entries", len(entries))
	}
}
