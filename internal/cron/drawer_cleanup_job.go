package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/gridpoint-energy/postoffice-backend/pkg/db/models"
	"github.com/gridpoint-energy/postoffice-backend/pkg/logger"
)

const (
	drawerRetentionDays    = 7
	drawerCleanupBatchSize = 500
)

type drawerSweepRepo interface {
	FullAgedDrawers(ctx context.Context, cutoff time.Time, limit int) ([]models.Drawer, error)
	DeleteDrawerContents(ctx context.Context, tx *gorm.DB, drawerID uuid.UUID) (int64, error)
	DeleteDrawer(ctx context.Context, tx *gorm.DB, drawerID uuid.UUID) (bool, error)
}

type DrawerCleanupJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository drawerSweepRepo
	Retention  int
	BatchSize  int
}

// NewDrawerCleanupJob builds the sweep that reclaims sealed drawers past the
// retention window, together with any notifications still partitioned under
// them.
func NewDrawerCleanupJob(params DrawerCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("cabinet repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = drawerRetentionDays
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = drawerCleanupBatchSize
	}
	return &drawerCleanupJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		retention: retention,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type drawerCleanupJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      drawerSweepRepo
	retention int
	batchSize int
	now       func() time.Time
}

func (j *drawerCleanupJob) Name() string { return "drawer-cleanup" }

// Run deletes each eligible drawer and its contents. A drawer that is
// already gone counts as swept; one failing drawer does not stop the sweep
// for the rest.
func (j *drawerCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	drawers, err := j.repo.FullAgedDrawers(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("list aged drawers: %w", err)
	}

	var sweepErr error
	var swept int
	var rowsDeleted int64
	for _, drawer := range drawers {
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			deleted, err := j.repo.DeleteDrawerContents(ctx, tx, drawer.ID)
			if err != nil {
				return err
			}
			rowsDeleted += deleted
			_, err = j.repo.DeleteDrawer(ctx, tx, drawer.ID)
			return err
		})
		if err != nil {
			sweepErr = multierr.Append(sweepErr, fmt.Errorf("drawer %s: %w", drawer.ID, err))
			continue
		}
		swept++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"drawers_swept":  swept,
		"rows_deleted":   rowsDeleted,
	})
	j.logg.Info(logCtx, "drawer cleanup complete")
	return sweepErr
}
