package cron

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/davemarrero/learnhub-backend/pkg/logger"
)

const defaultScratchMaxAge = 24 * time.Hour

// ScratchCleanupJobParams configure the transcode scratch sweep.
type ScratchCleanupJobParams struct {
	Logger  *logger.Logger
	WorkDir string
	MaxAge  time.Duration
}

// NewScratchCleanupJob builds the job that removes abandoned transcode
// scratch directories. The pipeline cleans up after itself, but a
// killed worker process leaves its scratch behind.
func NewScratchCleanupJob(params ScratchCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.WorkDir == "" {
		return nil, fmt.Errorf("work dir required")
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = defaultScratchMaxAge
	}
	return &scratchCleanupJob{
		logg:    params.Logger,
		workDir: params.WorkDir,
		maxAge:  maxAge,
		now:     time.Now,
	}, nil
}

type scratchCleanupJob struct {
	logg    *logger.Logger
	workDir string
	maxAge  time.Duration
	now     func() time.Time
}

func (j *scratchCleanupJob) Name() string { return "scratch-cleanup" }

func (j *scratchCleanupJob) Run(ctx context.Context) error {
	entries, err := os.ReadDir(j.workDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read work dir: %w", err)
	}

	cutoff := j.now().Add(-j.maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, infoErr := entry.Info()
		if infoErr != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.workDir, entry.Name())
		if rmErr := os.RemoveAll(path); rmErr != nil {
			j.logg.Error(ctx, fmt.Sprintf("remove scratch dir %s", path), rmErr)
			continue
		}
		removed++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"dirs_removed": removed,
		"max_age":      j.maxAge.String(),
	})
	j.logg.Info(logCtx, "scratch cleanup complete")
	return nil
}
