package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gridpoint-energy/postoffice-backend/pkg/db/models"
	"github.com/gridpoint-energy/postoffice-backend/pkg/logger"
)

func TestArchiveExportJobExportsAndMarksRows(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo := &fakeArchiveExportRepo{
		batches: [][]models.ArchivedNotification{
			{newArchivedRow(), newArchivedRow()},
		},
	}
	inserter := &fakeArchiveInserter{}
	job := newArchiveExportJob(t, repo, inserter)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	expectedBefore := now.Add(-archiveExportAfterDays * 24 * time.Hour)
	if !repo.lastBefore.Equal(expectedBefore) {
		t.Fatalf("expected before %s, got %s", expectedBefore, repo.lastBefore)
	}
	if inserter.rowsInserted != 2 {
		t.Fatalf("expected 2 rows inserted, got %d", inserter.rowsInserted)
	}
	if len(repo.markedExported) != 2 {
		t.Fatalf("expected 2 rows marked, got %d", len(repo.markedExported))
	}
}

func TestArchiveExportJobLeavesRowsUnmarkedOnInsertFailure(t *testing.T) {
	repo := &fakeArchiveExportRepo{
		batches: [][]models.ArchivedNotification{{newArchivedRow()}},
	}
	inserter := &fakeArchiveInserter{err: errors.New("cold store unavailable")}
	job := newArchiveExportJob(t, repo, inserter)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(repo.markedExported) != 0 {
		t.Fatalf("expected no rows marked, got %d", len(repo.markedExported))
	}
}

func TestArchiveExportJobNothingToExport(t *testing.T) {
	repo := &fakeArchiveExportRepo{}
	inserter := &fakeArchiveInserter{}
	job := newArchiveExportJob(t, repo, inserter)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if inserter.calls != 0 {
		t.Fatalf("expected no inserts, got %d", inserter.calls)
	}
}

func newArchiveExportJob(t *testing.T, repo *fakeArchiveExportRepo, inserter *fakeArchiveInserter) *archiveExportJob {
	t.Helper()
	jobIface, err := NewArchiveExportJob(ArchiveExportJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: repo,
		Inserter:   inserter,
	})
	if err != nil {
		t.Fatalf("NewArchiveExportJob: %v", err)
	}
	job, ok := jobIface.(*archiveExportJob)
	if !ok {
		t.Fatalf("expected archiveExportJob, got %T", jobIface)
	}
	return job
}

func newArchivedRow() models.ArchivedNotification {
	return models.ArchivedNotification{
		ID:          uuid.New(),
		RecipientID: uuid.New(),
		BundleID:    uuid.New(),
		ArchivedAt:  time.Now().UTC().Add(-60 * 24 * time.Hour),
	}
}

type fakeArchiveExportRepo struct {
	batches        [][]models.ArchivedNotification
	lastBefore     time.Time
	markedExported []uuid.UUID
}

func (f *fakeArchiveExportRepo) UnexportedArchives(_ context.Context, before time.Time, _ int) ([]models.ArchivedNotification, error) {
	f.lastBefore = before
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *fakeArchiveExportRepo) MarkArchivesExported(_ context.Context, archiveIDs []uuid.UUID, _ time.Time) error {
	f.markedExported = append(f.markedExported, archiveIDs...)
	return nil
}

type fakeArchiveInserter struct {
	rowsInserted int
	calls        int
	err          error
}

func (f *fakeArchiveInserter) InsertArchiveRows(_ context.Context, rows []any) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.rowsInserted += len(rows)
	return nil
}
