package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/davemarrero/learnhub-backend/pkg/db/models"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
)

const (
	defaultStalledAfter = 2 * time.Hour
	stalledBatchSize    = 100
)

type stalledContentLister interface {
	ListStalledPending(ctx context.Context, olderThan time.Time, limit int) ([]models.CourseContent, error)
}

type processingFailer interface {
	MarkProcessingFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// StalledContentJobParams configure the stalled content cleanup job.
type StalledContentJobParams struct {
	Logger       *logger.Logger
	Repository   stalledContentLister
	Contents     processingFailer
	StalledAfter time.Duration
}

// NewStalledContentJob builds the job that fails content rows stuck in
// a non-terminal processing state. A worker crash between MarkProcessing
// and the final publish leaves rows like this; without the sweep they
// show "processing" forever.
func NewStalledContentJob(params StalledContentJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("content repository required")
	}
	if params.Contents == nil {
		return nil, fmt.Errorf("content service required")
	}
	stalledAfter := params.StalledAfter
	if stalledAfter <= 0 {
		stalledAfter = defaultStalledAfter
	}
	return &stalledContentJob{
		logg:         params.Logger,
		repo:         params.Repository,
		contents:     params.Contents,
		stalledAfter: stalledAfter,
		now:          time.Now,
	}, nil
}

type stalledContentJob struct {
	logg         *logger.Logger
	repo         stalledContentLister
	contents     processingFailer
	stalledAfter time.Duration
	now          func() time.Time
}

func (j *stalledContentJob) Name() string { return "stalled-content-cleanup" }

func (j *stalledContentJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.stalledAfter)
	rows, err := j.repo.ListStalledPending(ctx, cutoff, stalledBatchSize)
	if err != nil {
		return fmt.Errorf("list stalled content: %w", err)
	}

	failed := 0
	for _, row := range rows {
		rowCtx := j.logg.WithContentID(ctx, row.ID.String())
		reason := fmt.Sprintf("processing stalled; no progress since %s", row.UpdatedAt.UTC().Format(time.RFC3339))
		if markErr := j.contents.MarkProcessingFailed(rowCtx, row.ID, reason); markErr != nil {
			j.logg.Error(rowCtx, "mark stalled content failed", markErr)
			continue
		}
		failed++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":      cutoff,
		"rows_found":  len(rows),
		"rows_failed": failed,
	})
	j.logg.Info(logCtx, "stalled content cleanup complete")
	return nil
}
