package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gridpoint-energy/postoffice-backend/pkg/db/models"
	"github.com/gridpoint-energy/postoffice-backend/pkg/logger"
)

const (
	archiveExportAfterDays = 30
	archiveExportBatchSize = 500
)

type archiveExportRepo interface {
	UnexportedArchives(ctx context.Context, before time.Time, limit int) ([]models.ArchivedNotification, error)
	MarkArchivesExported(ctx context.Context, archiveIDs []uuid.UUID, now time.Time) error
}

type archiveInserter interface {
	InsertArchiveRows(ctx context.Context, rows []any) error
}

type ArchiveExportJobParams struct {
	Logger      *logger.Logger
	Repository  archiveExportRepo
	Inserter    archiveInserter
	ExportAfter int
	BatchSize   int
}

// NewArchiveExportJob builds the job shipping aged archive rows to the
// analytical cold store.
func NewArchiveExportJob(params ArchiveExportJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("archive repository required")
	}
	if params.Inserter == nil {
		return nil, fmt.Errorf("archive inserter required")
	}
	exportAfter := params.ExportAfter
	if exportAfter <= 0 {
		exportAfter = archiveExportAfterDays
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = archiveExportBatchSize
	}
	return &archiveExportJob{
		logg:        params.Logger,
		repo:        params.Repository,
		inserter:    params.Inserter,
		exportAfter: exportAfter,
		batchSize:   batchSize,
		now:         time.Now,
	}, nil
}

type archiveExportJob struct {
	logg        *logger.Logger
	repo        archiveExportRepo
	inserter    archiveInserter
	exportAfter int
	batchSize   int
	now         func() time.Time
}

// archiveExportRow is the cold-store schema for one archived notification.
type archiveExportRow struct {
	NotificationID string    `bigquery:"notification_id"`
	RecipientID    string    `bigquery:"recipient_id"`
	Origin         string    `bigquery:"origin"`
	ContentType    string    `bigquery:"content_type"`
	DocumentType   string    `bigquery:"document_type"`
	Weight         int       `bigquery:"weight"`
	SequenceNumber int64     `bigquery:"sequence_number"`
	BundleID       string    `bigquery:"bundle_id"`
	ArchivedAt     time.Time `bigquery:"archived_at"`
}

func (j *archiveExportJob) Name() string { return "archive-export" }

// Run exports unshipped archive rows in batches until none remain. Rows are
// marked exported only after the insert succeeds, so a failed run re-exports
// on the next cycle rather than losing data.
func (j *archiveExportJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	before := now.Add(-time.Duration(j.exportAfter) * 24 * time.Hour)

	var exported int
	for {
		batch, err := j.repo.UnexportedArchives(ctx, before, j.batchSize)
		if err != nil {
			return fmt.Errorf("list unexported archives: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		rows := make([]any, 0, len(batch))
		ids := make([]uuid.UUID, 0, len(batch))
		for _, archived := range batch {
			rows = append(rows, &archiveExportRow{
				NotificationID: archived.ID.String(),
				RecipientID:    archived.RecipientID.String(),
				Origin:         string(archived.Origin),
				ContentType:    archived.ContentType,
				DocumentType:   archived.DocumentType,
				Weight:         archived.Weight,
				SequenceNumber: archived.SequenceNumber,
				BundleID:       archived.BundleID.String(),
				ArchivedAt:     archived.ArchivedAt,
			})
			ids = append(ids, archived.ID)
		}

		if err := j.inserter.InsertArchiveRows(ctx, rows); err != nil {
			return fmt.Errorf("insert archive rows: %w", err)
		}
		if err := j.repo.MarkArchivesExported(ctx, ids, now); err != nil {
			return fmt.Errorf("mark archives exported: %w", err)
		}
		exported += len(batch)

		if len(batch) < j.batchSize {
			break
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"export_after_days": j.exportAfter,
		"rows_exported":     exported,
	})
	j.logg.Info(logCtx, "archive export complete")
	return nil
}
