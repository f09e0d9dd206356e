package cabinet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gridpoint-energy/postoffice-backend/pkg/db/models"
	"github.com/gridpoint-energy/postoffice-backend/pkg/enums"
	"github.com/gridpoint-energy/postoffice-backend/pkg/pagination"
)

// ErrDrawerConflict signals that a concurrent writer filled the open drawer
// first. Callers retry the append against the (possibly new) open drawer.
var ErrDrawerConflict = errors.New("drawer position conflict")

// Repository exposes persistence for cabinets: the drawer-paged notification
// log partitioned by (recipient, origin, content type).
type Repository interface {
	Append(ctx context.Context, notification *models.Notification) (*models.Drawer, error)
	OpenDrawer(ctx context.Context, key models.CabinetKey) (*models.Drawer, error)
	AppendToDrawer(ctx context.Context, notification *models.Notification, drawerID uuid.UUID) error
	OpenReader(ctx context.Context, key models.CabinetKey) (*Reader, error)
	PendingCabinets(ctx context.Context, recipientID uuid.UUID, origin enums.Origin) ([]models.CabinetKey, error)
	Acknowledge(ctx context.Context, recipientID uuid.UUID, notificationIDs []uuid.UUID, now time.Time) error
	Archive(ctx context.Context, tx *gorm.DB, bundleID uuid.UUID, notificationIDs []uuid.UUID, now time.Time) (int64, error)
	Delete(ctx context.Context, tx *gorm.DB, notificationIDs []uuid.UUID) (int64, error)
	DrawerHoldsNotification(ctx context.Context, drawerID, notificationID uuid.UUID) (bool, error)
	ListPending(ctx context.Context, recipientID uuid.UUID, params ListPendingParams) ([]models.Notification, *pagination.Cursor, error)
	FullAgedDrawers(ctx context.Context, cutoff time.Time, limit int) ([]models.Drawer, error)
	DeleteDrawerContents(ctx context.Context, tx *gorm.DB, drawerID uuid.UUID) (int64, error)
	DeleteDrawer(ctx context.Context, tx *gorm.DB, drawerID uuid.UUID) (bool, error)
	UnexportedArchives(ctx context.Context, before time.Time, limit int) ([]models.ArchivedNotification, error)
	MarkArchivesExported(ctx context.Context, archiveIDs []uuid.UUID, now time.Time) error
}

type repositoryImpl struct {
	db            *gorm.DB
	maxDrawerSize int
}

// NewRepository returns a cabinet repository bound to the provided database.
// maxDrawerSize bounds how many notifications one drawer page holds.
func NewRepository(db *gorm.DB, maxDrawerSize int) Repository {
	if maxDrawerSize <= 0 {
		maxDrawerSize = 1000
	}
	return &repositoryImpl{db: db, maxDrawerSize: maxDrawerSize}
}

// ListPendingParams configures pagination over a recipient's pending
// notifications.
type ListPendingParams struct {
	Limit  int
	Cursor *pagination.Cursor
}

// Append writes the notification against the cabinet's open drawer, creating
// one when absent or full. The position bump is a conditional update; losing
// it to a concurrent writer surfaces as ErrDrawerConflict.
func (r *repositoryImpl) Append(ctx context.Context, notification *models.Notification) (*models.Drawer, error) {
	drawer, err := r.OpenDrawer(ctx, notification.CabinetKey())
	if err != nil {
		return nil, err
	}
	if err := r.AppendToDrawer(ctx, notification, drawer.ID); err != nil {
		return nil, err
	}
	return drawer, nil
}

// OpenDrawer finds the cabinet's open drawer, creating one when every
// existing drawer is sealed. Two concurrent writers may both create a
// drawer; readers walk notifications, not drawers, so an extra open drawer
// is harmless.
func (r *repositoryImpl) OpenDrawer(ctx context.Context, key models.CabinetKey) (*models.Drawer, error) {
	return r.openDrawer(ctx, r.db, key)
}

// AppendToDrawer reserves a position on the drawer and writes the
// notification, as one transaction. A sealed drawer surfaces as
// ErrDrawerConflict; callers retry against a freshly opened drawer.
func (r *repositoryImpl) AppendToDrawer(ctx context.Context, notification *models.Notification, drawerID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bump := tx.Model(&models.Drawer{}).
			Where("id = ? AND position < ?", drawerID, r.maxDrawerSize).
			UpdateColumn("position", gorm.Expr("position + 1"))
		if bump.Error != nil {
			return bump.Error
		}
		if bump.RowsAffected == 0 {
			return ErrDrawerConflict
		}

		notification.DrawerID = drawerID
		return tx.Create(notification).Error
	})
}

func (r *repositoryImpl) openDrawer(ctx context.Context, tx *gorm.DB, key models.CabinetKey) (*models.Drawer, error) {
	var drawer models.Drawer
	err := tx.WithContext(ctx).
		Where("recipient_id = ? AND origin = ? AND content_type = ? AND position < ?",
			key.RecipientID, key.Origin, key.ContentType, r.maxDrawerSize).
		Order("created_at DESC").
		First(&drawer).Error
	if err == nil {
		return &drawer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	drawer = models.Drawer{
		ID:          uuid.New(),
		RecipientID: key.RecipientID,
		Origin:      key.Origin,
		ContentType: key.ContentType,
		Position:    0,
	}
	if err := tx.Create(&drawer).Error; err != nil {
		return nil, err
	}
	return &drawer, nil
}

// OpenReader returns a sequential reader over the cabinet's pending
// notifications, oldest first with sequence-number tie break, or nil when
// nothing is pending.
func (r *repositoryImpl) OpenReader(ctx context.Context, key models.CabinetKey) (*Reader, error) {
	reader := newReader(r, key)
	if err := reader.fill(ctx); err != nil {
		return nil, err
	}
	if !reader.CanPeek() {
		return nil, nil
	}
	return reader, nil
}

func (r *repositoryImpl) pendingPage(ctx context.Context, key models.CabinetKey, after *pageCursor, limit int) ([]models.Notification, error) {
	query := r.db.WithContext(ctx).
		Where("recipient_id = ? AND origin = ? AND content_type = ? AND acknowledged_at IS NULL",
			key.RecipientID, key.Origin, key.ContentType)
	if after != nil {
		query = query.Where("(created_at, sequence_number) > (?, ?)", after.createdAt, after.sequence)
	}

	var rows []models.Notification
	err := query.Order("created_at ASC, sequence_number ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

// PendingCabinets lists the cabinets under (recipient, origin) that hold
// pending notifications, ordered by their oldest pending entry.
func (r *repositoryImpl) PendingCabinets(ctx context.Context, recipientID uuid.UUID, origin enums.Origin) ([]models.CabinetKey, error) {
	var rows []struct {
		ContentType string
		Oldest      time.Time
	}
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Select("content_type, MIN(created_at) AS oldest").
		Where("recipient_id = ? AND origin = ? AND acknowledged_at IS NULL", recipientID, origin).
		Group("content_type").
		Order("oldest ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	keys := make([]models.CabinetKey, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, models.CabinetKey{
			RecipientID: recipientID,
			Origin:      origin,
			ContentType: row.ContentType,
		})
	}
	return keys, nil
}

// Acknowledge marks the notifications consumed. Re-acknowledging is a no-op.
func (r *repositoryImpl) Acknowledge(ctx context.Context, recipientID uuid.UUID, notificationIDs []uuid.UUID, now time.Time) error {
	if len(notificationIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id IN ? AND recipient_id = ? AND acknowledged_at IS NULL", notificationIDs, recipientID).
		UpdateColumn("acknowledged_at", now).Error
}

// Archive copies the notifications into the cold store. Rows already removed
// by a concurrent sweep are skipped silently.
func (r *repositoryImpl) Archive(ctx context.Context, tx *gorm.DB, bundleID uuid.UUID, notificationIDs []uuid.UUID, now time.Time) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	if len(notificationIDs) == 0 {
		return 0, nil
	}

	var rows []models.Notification
	if err := tx.WithContext(ctx).Where("id IN ?", notificationIDs).Find(&rows).Error; err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	archived := make([]models.ArchivedNotification, 0, len(rows))
	for _, row := range rows {
		archived = append(archived, models.ArchivedNotification{
			ID:             row.ID,
			RecipientID:    row.RecipientID,
			Origin:         row.Origin,
			ContentType:    row.ContentType,
			DocumentType:   row.DocumentType,
			Weight:         row.Weight,
			SequenceNumber: row.SequenceNumber,
			BundleID:       bundleID,
			ArchivedAt:     now,
		})
	}

	// A concurrent archiver may have copied some rows already.
	result := tx.WithContext(ctx).
		Clauses(onConflictDoNothing()).
		Create(&archived)
	if result.Error != nil {
		return 0, result.Error
	}
	return int64(len(archived)), nil
}

// Delete removes the notifications from the working set, tolerating rows that
// are already gone.
func (r *repositoryImpl) Delete(ctx context.Context, tx *gorm.DB, notificationIDs []uuid.UUID) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	if len(notificationIDs) == 0 {
		return 0, nil
	}
	result := tx.WithContext(ctx).Where("id IN ?", notificationIDs).Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}

// DrawerHoldsNotification reports whether the drawer still holds a live copy
// of the notification.
func (r *repositoryImpl) DrawerHoldsNotification(ctx context.Context, drawerID, notificationID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND drawer_id = ?", notificationID, drawerID).
		Count(&count).Error
	return count > 0, err
}

// ListPending returns a cursor-paginated view over a recipient's pending
// notifications across all cabinets.
func (r *repositoryImpl) ListPending(ctx context.Context, recipientID uuid.UUID, params ListPendingParams) ([]models.Notification, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND acknowledged_at IS NULL", recipientID)
	if params.Cursor != nil {
		query = query.Where("(created_at, id) > (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Notification
	if err := query.Order("created_at ASC, id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	if len(rows) > normalized {
		next := rows[normalized]
		rows = rows[:normalized]
		return rows, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return rows, nil, nil
}

// FullAgedDrawers returns sealed drawers older than the cutoff, eligible for
// the cleanup sweep.
func (r *repositoryImpl) FullAgedDrawers(ctx context.Context, cutoff time.Time, limit int) ([]models.Drawer, error) {
	var rows []models.Drawer
	query := r.db.WithContext(ctx).
		Where("position >= ? AND created_at < ?", r.maxDrawerSize, cutoff).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&rows).Error
	return rows, err
}

// DeleteDrawerContents removes every notification partitioned under the
// drawer. Zero rows affected is a valid outcome (already swept).
func (r *repositoryImpl) DeleteDrawerContents(ctx context.Context, tx *gorm.DB, drawerID uuid.UUID) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Where("drawer_id = ?", drawerID).Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}

// UnexportedArchives returns archived notifications old enough for the
// cold-store export that have not been exported yet.
func (r *repositoryImpl) UnexportedArchives(ctx context.Context, before time.Time, limit int) ([]models.ArchivedNotification, error) {
	var rows []models.ArchivedNotification
	query := r.db.WithContext(ctx).
		Where("exported_at IS NULL AND archived_at < ?", before).
		Order("archived_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&rows).Error
	return rows, err
}

// MarkArchivesExported stamps the rows as shipped to the cold store.
func (r *repositoryImpl) MarkArchivesExported(ctx context.Context, archiveIDs []uuid.UUID, now time.Time) error {
	if len(archiveIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.ArchivedNotification{}).
		Where("id IN ? AND exported_at IS NULL", archiveIDs).
		UpdateColumn("exported_at", now).Error
}

// DeleteDrawer removes the drawer record itself, tolerating absence.
func (r *repositoryImpl) DeleteDrawer(ctx context.Context, tx *gorm.DB, drawerID uuid.UUID) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Where("id = ?", drawerID).Delete(&models.Drawer{})
	return result.RowsAffected > 0, result.Error
}
