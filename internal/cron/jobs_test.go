package cron

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/davemarrero/learnhub-backend/pkg/db/models"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test"})
}

type stubStalledLister struct {
	rows      []models.CourseContent
	err       error
	gotCutoff time.Time
	gotLimit  int
}

func (s *stubStalledLister) ListStalledPending(_ context.Context, olderThan time.Time, limit int) ([]models.CourseContent, error) {
	s.gotCutoff = olderThan
	s.gotLimit = limit
	return s.rows, s.err
}

type stubFailer struct {
	failed  map[uuid.UUID]string
	failErr map[uuid.UUID]error
}

func newStubFailer() *stubFailer {
	return &stubFailer{failed: make(map[uuid.UUID]string), failErr: make(map[uuid.UUID]error)}
}

func (s *stubFailer) MarkProcessingFailed(_ context.Context, id uuid.UUID, reason string) error {
	if err := s.failErr[id]; err != nil {
		return err
	}
	s.failed[id] = reason
	return nil
}

func TestStalledContentJobFailsStuckRows(t *testing.T) {
	staleAt := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	lister := &stubStalledLister{rows: []models.CourseContent{
		{ID: uuid.New(), UpdatedAt: staleAt},
		{ID: uuid.New(), UpdatedAt: staleAt},
	}}
	failer := newStubFailer()

	job, err := NewStalledContentJob(StalledContentJobParams{
		Logger:       testLogger(),
		Repository:   lister,
		Contents:     failer,
		StalledAfter: 2 * time.Hour,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	job.(*stalledContentJob).now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got, want := lister.gotCutoff, now.Add(-2*time.Hour); !got.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", got, want)
	}
	if lister.gotLimit != stalledBatchSize {
		t.Fatalf("limit = %d, want %d", lister.gotLimit, stalledBatchSize)
	}
	if len(failer.failed) != 2 {
		t.Fatalf("expected 2 rows failed, got %d", len(failer.failed))
	}
	for _, reason := range failer.failed {
		if reason != "processing stalled; no progress since 2026-08-29T10:00:00Z" {
			t.Fatalf("unexpected reason: %q", reason)
		}
	}
}

func TestStalledContentJobContinuesPastFailures(t *testing.T) {
	brokenID := uuid.New()
	okID := uuid.New()
	lister := &stubStalledLister{rows: []models.CourseContent{{ID: brokenID}, {ID: okID}}}
	failer := newStubFailer()
	failer.failErr[brokenID] = errors.New("db timeout")

	job, err := NewStalledContentJob(StalledContentJobParams{
		Logger:     testLogger(),
		Repository: lister,
		Contents:   failer,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run should not fail on individual rows: %v", err)
	}
	if _, ok := failer.failed[okID]; !ok {
		t.Fatalf("healthy row should still be processed")
	}
}

type stubNotificationsCleanup struct {
	deleted   int64
	err       error
	gotCutoff time.Time
}

func (s *stubNotificationsCleanup) DeleteReadOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.gotCutoff = cutoff
	return s.deleted, s.err
}

func TestNotificationCleanupJobUsesRetention(t *testing.T) {
	repo := &stubNotificationsCleanup{deleted: 7}
	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     testLogger(),
		Repository: repo,
		Retention:  10,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	job.(*notificationCleanupJob).now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got, want := repo.gotCutoff, now.Add(-10*24*time.Hour); !got.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", got, want)
	}
}

func TestNotificationCleanupJobPropagatesError(t *testing.T) {
	repo := &stubNotificationsCleanup{err: errors.New("db gone")}
	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     testLogger(),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected error to propagate")
	}
}

func TestScratchCleanupJobRemovesOnlyOldDirs(t *testing.T) {
	workDir := t.TempDir()

	oldDir := filepath.Join(workDir, "abandoned")
	newDir := filepath.Join(workDir, "active")
	if err := os.Mkdir(oldDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Mkdir(newDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	looseFile := filepath.Join(workDir, "notes.txt")
	if err := os.WriteFile(looseFile, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldDir, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(looseFile, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	job, err := NewScratchCleanupJob(ScratchCleanupJobParams{
		Logger:  testLogger(),
		WorkDir: workDir,
		MaxAge:  24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Fatalf("old scratch dir should be removed")
	}
	if _, err := os.Stat(newDir); err != nil {
		t.Fatalf("fresh scratch dir must survive: %v", err)
	}
	if _, err := os.Stat(looseFile); err != nil {
		t.Fatalf("plain files are not swept: %v", err)
	}
}

func TestScratchCleanupJobMissingWorkDir(t *testing.T) {
	job, err := NewScratchCleanupJob(ScratchCleanupJobParams{
		Logger:  testLogger(),
		WorkDir: filepath.Join(t.TempDir(), "never-created"),
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("missing work dir is not an error: %v", err)
	}
}
