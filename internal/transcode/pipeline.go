package transcode

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/davemarrero/learnhub-backend/internal/content"
	"github.com/davemarrero/learnhub-backend/pkg/config"
	pkgerrors "github.com/davemarrero/learnhub-backend/pkg/errors"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
	"github.com/davemarrero/learnhub-backend/pkg/metrics"
	pkgpubsub "github.com/davemarrero/learnhub-backend/pkg/pubsub"
	"github.com/davemarrero/learnhub-backend/pkg/queue"
)

// ObjectStore is the slice of the storage client the pipeline needs.
type ObjectStore interface {
	Download(ctx context.Context, object string, w io.Writer) error
	Upload(ctx context.Context, object string, body io.Reader, contentType string) error
	ObjectURL(object string) string
	ObjectFromURL(raw string) string
}

// EventPublisher emits terminal processing events for downstream
// consumers (notifications, realtime fanout).
type EventPublisher interface {
	PublishContentEvent(ctx context.Context, event pkgpubsub.ContentEvent) error
}

// Pipeline runs a full transcode for one uploaded video: probe, the
// fixed rendition ladder, a poster thumbnail, then a single metadata
// publish that replaces the whole processing blob.
type Pipeline struct {
	runner   Runner
	storage  ObjectStore
	contents content.Service
	enqueuer queue.Enqueuer
	events   EventPublisher
	metrics  *metrics.PipelineMetrics
	logg     *logger.Logger
	cfg      config.TranscodeConfig
}

// NewPipeline wires the transcode pipeline.
func NewPipeline(
	runner Runner,
	storage ObjectStore,
	contents content.Service,
	enqueuer queue.Enqueuer,
	events EventPublisher,
	pipelineMetrics *metrics.PipelineMetrics,
	logg *logger.Logger,
	cfg config.TranscodeConfig,
) (*Pipeline, error) {
	if runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "runner is required")
	}
	if storage == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "storage is required")
	}
	if contents == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "content service is required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger is required")
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	return &Pipeline{
		runner:   runner,
		storage:  storage,
		contents: contents,
		enqueuer: enqueuer,
		events:   events,
		metrics:  pipelineMetrics,
		logg:     logg,
		cfg:      cfg,
	}, nil
}

// Process executes the whole pipeline for one task. Any error returned
// leaves the content row in "processing"; the task handler decides
// whether the failure is retryable.
func (p *Pipeline) Process(ctx context.Context, payload queue.TranscodePayload) (err error) {
	ctx = p.logg.WithContentID(ctx, payload.ContentID.String())

	scratch, cleanup, scratchErr := p.scratchDir(payload.ContentID)
	if scratchErr != nil {
		return scratchErr
	}
	defer func() { err = multierr.Append(err, cleanup()) }()

	if markErr := p.contents.MarkProcessing(ctx, payload.ContentID); markErr != nil {
		return fmt.Errorf("mark processing: %w", markErr)
	}

	sourcePath := filepath.Join(scratch, "source")
	if dlErr := p.downloadSource(ctx, payload.SourceURL, sourcePath); dlErr != nil {
		return dlErr
	}

	probe, probeErr := p.timedProbe(ctx, sourcePath)
	if probeErr != nil {
		return probeErr
	}
	if !probe.HasVideo {
		return NewPermanentError("source has no video stream")
	}

	urls := make(map[string]string, len(Ladder))
	for _, rendition := range Ladder {
		outPath := filepath.Join(scratch, rendition.Label+".mp4")
		start := time.Now()
		if encErr := p.runner.TranscodeRendition(ctx, sourcePath, outPath, rendition); encErr != nil {
			return fmt.Errorf("transcode %s: %w", rendition.Label, encErr)
		}
		p.observeStage("transcode_"+rendition.Label, start)

		object := processedObject(payload.ContentID, rendition.Label)
		if upErr := p.uploadFile(ctx, object, outPath, "video/mp4"); upErr != nil {
			return fmt.Errorf("upload %s: %w", rendition.Label, upErr)
		}
		urls[rendition.Label] = p.storage.ObjectURL(object)
	}

	thumbPath := filepath.Join(scratch, "thumbnail.jpg")
	start := time.Now()
	if thumbErr := p.runner.Thumbnail(ctx, sourcePath, thumbPath); thumbErr != nil {
		return fmt.Errorf("thumbnail: %w", thumbErr)
	}
	p.observeStage("thumbnail", start)

	thumbObject := thumbnailObject(payload.ContentID)
	if upErr := p.uploadFile(ctx, thumbObject, thumbPath, "image/jpeg"); upErr != nil {
		return fmt.Errorf("upload thumbnail: %w", upErr)
	}

	result := content.ProcessingResult{
		ProcessedURLs: urls,
		ThumbnailURL:  p.storage.ObjectURL(thumbObject),
		VideoMetadata: probe.VideoMetadata(),
	}
	if pubErr := p.contents.PublishProcessingResult(ctx, payload.ContentID, result); pubErr != nil {
		return fmt.Errorf("publish processing result: %w", pubErr)
	}

	p.afterCompletion(ctx, payload)
	p.logg.Info(ctx, "transcode pipeline completed")
	if p.metrics != nil {
		p.metrics.IncCompleted("success")
	}
	return nil
}

// ProcessPreview produces the short preview clip. It runs after the
// main pipeline and never touches the processing status.
func (p *Pipeline) ProcessPreview(ctx context.Context, payload queue.PreviewPayload) (err error) {
	ctx = p.logg.WithContentID(ctx, payload.ContentID.String())

	scratch, cleanup, scratchErr := p.scratchDir(payload.ContentID)
	if scratchErr != nil {
		return scratchErr
	}
	defer func() { err = multierr.Append(err, cleanup()) }()

	sourcePath := filepath.Join(scratch, "source")
	if dlErr := p.downloadSource(ctx, payload.SourceURL, sourcePath); dlErr != nil {
		return dlErr
	}

	previewPath := filepath.Join(scratch, "preview.mp4")
	start := time.Now()
	if prevErr := p.runner.Preview(ctx, sourcePath, previewPath, p.cfg.PreviewSeconds); prevErr != nil {
		return fmt.Errorf("preview clip: %w", prevErr)
	}
	p.observeStage("preview", start)

	object := previewObject(payload.ContentID)
	if upErr := p.uploadFile(ctx, object, previewPath, "video/mp4"); upErr != nil {
		return fmt.Errorf("upload preview: %w", upErr)
	}

	if setErr := p.contents.SetPreviewURL(ctx, payload.ContentID, p.storage.ObjectURL(object)); setErr != nil {
		return fmt.Errorf("set preview url: %w", setErr)
	}
	p.logg.Info(ctx, "preview clip completed")
	return nil
}

// afterCompletion kicks off best-effort follow-ups. Failures here are
// logged and dropped; the content itself is already published.
func (p *Pipeline) afterCompletion(ctx context.Context, payload queue.TranscodePayload) {
	if p.enqueuer != nil {
		task, taskErr := queue.NewSearchIndexTask(queue.SearchIndexPayload{ContentID: payload.ContentID})
		if taskErr == nil {
			_, taskErr = p.enqueuer.Enqueue(ctx, task, queue.MaintenanceOptions()...)
		}
		if taskErr != nil {
			p.logg.Error(ctx, "enqueue search index task failed", taskErr)
		}

		preview, prevErr := queue.NewPreviewTask(queue.PreviewPayload{
			ContentID: payload.ContentID,
			SourceURL: payload.SourceURL,
		})
		if prevErr == nil {
			_, prevErr = p.enqueuer.Enqueue(ctx, preview, queue.PreviewOptions()...)
		}
		if prevErr != nil {
			p.logg.Error(ctx, "enqueue preview task failed", prevErr)
		}
	}

	if p.events != nil {
		row, getErr := p.contents.Get(ctx, payload.ContentID)
		title := ""
		if getErr == nil && row != nil {
			title = row.Title
		}
		event := pkgpubsub.ContentEvent{
			EventID:    uuid.New(),
			Type:       pkgpubsub.EventContentProcessed,
			ContentID:  payload.ContentID,
			CourseID:   payload.CourseID,
			Title:      title,
			OccurredAt: time.Now().UTC(),
		}
		if pubErr := p.events.PublishContentEvent(ctx, event); pubErr != nil {
			p.logg.Error(ctx, "publish content processed event failed", pubErr)
		}
	}
}

func (p *Pipeline) scratchDir(contentID uuid.UUID) (string, func() error, error) {
	if mkErr := os.MkdirAll(p.cfg.WorkDir, 0o755); mkErr != nil {
		return "", nil, fmt.Errorf("create work dir: %w", mkErr)
	}
	dir, err := os.MkdirTemp(p.cfg.WorkDir, contentID.String()+"-")
	if err != nil {
		return "", nil, fmt.Errorf("create scratch dir: %w", err)
	}
	cleanup := func() error {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			return fmt.Errorf("remove scratch dir: %w", rmErr)
		}
		return nil
	}
	return dir, cleanup, nil
}

func (p *Pipeline) downloadSource(ctx context.Context, sourceURL, destPath string) error {
	object := p.storage.ObjectFromURL(sourceURL)
	if object == "" {
		return NewPermanentError("source url %q is not a storage object", sourceURL)
	}

	dlCtx := ctx
	if p.cfg.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		dlCtx, cancel = context.WithTimeout(ctx, p.cfg.DownloadTimeout)
		defer cancel()
	}

	file, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create source file: %w", err)
	}
	start := time.Now()
	if dlErr := p.storage.Download(dlCtx, object, file); dlErr != nil {
		_ = file.Close()
		return fmt.Errorf("download source: %w", dlErr)
	}
	if closeErr := file.Close(); closeErr != nil {
		return fmt.Errorf("close source file: %w", closeErr)
	}
	p.observeStage("download", start)
	return nil
}

func (p *Pipeline) timedProbe(ctx context.Context, sourcePath string) (*ProbeResult, error) {
	start := time.Now()
	probe, err := p.runner.Probe(ctx, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}
	p.observeStage("probe", start)
	return probe, nil
}

func (p *Pipeline) uploadFile(ctx context.Context, object, path, contentType string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = file.Close() }()
	return p.storage.Upload(ctx, object, file, contentType)
}

func (p *Pipeline) observeStage(stage string, start time.Time) {
	if p.metrics != nil {
		p.metrics.ObserveStage(stage, time.Since(start))
	}
}

func processedObject(contentID uuid.UUID, label string) string {
	return fmt.Sprintf("processed/%s/%s.mp4", contentID, label)
}

func thumbnailObject(contentID uuid.UUID) string {
	return fmt.Sprintf("thumbnails/%s.jpg", contentID)
}

func previewObject(contentID uuid.UUID) string {
	return fmt.Sprintf("previews/%s.mp4", contentID)
}
