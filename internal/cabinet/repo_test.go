package cabinet

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gridpoint-energy/postoffice-backend/pkg/db/models"
	"github.com/gridpoint-energy/postoffice-backend/pkg/enums"
)

func setupCabinetTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	drawers := `
CREATE TABLE IF NOT EXISTS drawers (
  id TEXT PRIMARY KEY,
  recipient_id TEXT NOT NULL,
  origin TEXT NOT NULL,
  content_type TEXT NOT NULL,
  position INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);`
	notifications := `
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  recipient_id TEXT NOT NULL,
  origin TEXT NOT NULL,
  content_type TEXT NOT NULL,
  document_type TEXT NOT NULL,
  supports_bundling INTEGER NOT NULL,
  weight INTEGER NOT NULL,
  sequence_number INTEGER NOT NULL,
  drawer_id TEXT NOT NULL,
  acknowledged_at DATETIME,
  created_at DATETIME
);`
	archived := `
CREATE TABLE IF NOT EXISTS archived_notifications (
  id TEXT PRIMARY KEY,
  recipient_id TEXT NOT NULL,
  origin TEXT NOT NULL,
  content_type TEXT NOT NULL,
  document_type TEXT NOT NULL,
  weight INTEGER NOT NULL,
  sequence_number INTEGER NOT NULL,
  bundle_id TEXT NOT NULL,
  archived_at DATETIME,
  exported_at DATETIME
);`
	require.NoError(t, db.Exec(drawers).Error)
	require.NoError(t, db.Exec(notifications).Error)
	require.NoError(t, db.Exec(archived).Error)
	return db
}

func newTestNotification(key models.CabinetKey, seq int64, created time.Time) *models.Notification {
	return &models.Notification{
		ID:               uuid.New(),
		RecipientID:      key.RecipientID,
		Origin:           key.Origin,
		ContentType:      key.ContentType,
		DocumentType:     "RSM-012",
		SupportsBundling: true,
		Weight:           5,
		SequenceNumber:   seq,
		CreatedAt:        created,
	}
}

func testKey() models.CabinetKey {
	return models.CabinetKey{
		RecipientID: uuid.New(),
		Origin:      enums.OriginTimeSeries,
		ContentType: "RSM-012",
	}
}

func TestAppendCreatesDrawerAndBumpsPosition(t *testing.T) {
	db := setupCabinetTestDB(t)
	repo := NewRepository(db, 3)
	ctx := context.Background()
	key := testKey()
	now := time.Now().UTC()

	first, err := repo.Append(ctx, newTestNotification(key, 1, now))
	require.NoError(t, err)

	second, err := repo.Append(ctx, newTestNotification(key, 2, now.Add(time.Second)))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var drawer models.Drawer
	require.NoError(t, db.First(&drawer, "id = ?", first.ID).Error)
	assert.Equal(t, 2, drawer.Position)
}

func TestAppendRollsOverToNewDrawerWhenFull(t *testing.T) {
	db := setupCabinetTestDB(t)
	repo := NewRepository(db, 2)
	ctx := context.Background()
	key := testKey()
	now := time.Now().UTC()

	first, err := repo.Append(ctx, newTestNotification(key, 1, now))
	require.NoError(t, err)
	_, err = repo.Append(ctx, newTestNotification(key, 2, now.Add(time.Second)))
	require.NoError(t, err)

	third, err := repo.Append(ctx, newTestNotification(key, 3, now.Add(2*time.Second)))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)

	var count int64
	require.NoError(t, db.Model(&models.Drawer{}).
		Where("recipient_id = ?", key.RecipientID).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestAppendIsolatesCabinets(t *testing.T) {
	db := setupCabinetTestDB(t)
	repo := NewRepository(db, 10)
	ctx := context.Background()
	recipient := uuid.New()
	now := time.Now().UTC()

	keyA := models.CabinetKey{RecipientID: recipient, Origin: enums.OriginTimeSeries, ContentType: "RSM-012"}
	keyB := models.CabinetKey{RecipientID: recipient, Origin: enums.OriginCharges, ContentType: "RSM-034"}

	drawerA, err := repo.Append(ctx, newTestNotification(keyA, 1, now))
	require.NoError(t, err)
	drawerB, err := repo.Append(ctx, newTestNotification(keyB, 1, now))
	require.NoError(t, err)
	assert.NotEqual(t, drawerA.ID, drawerB.ID)
}

func TestOpenReaderReturnsNilWhenEmpty(t *testing.T) {
	db := setupCabinetTestDB(t)
	repo := NewRepository(db, 10)

	reader, err := repo.OpenReader(context.Background(), testKey())
	require.NoError(t, err)
	assert.Nil(t, reader)
}

func TestReaderWalksInDeliveryOrder(t *testing.T) {
	db := setupCabinetTestDB(t)
	repo := NewRepository(db, 10)
	ctx := context.Background()
	key := testKey()
	base := time.Now().UTC().Truncate(time.Second)

	// Same timestamp: sequence number breaks the tie.
	tied1 := newTestNotification(key, 7, base)
	tied2 := newTestNotification(key, 6, base)
	older := newTestNotification(key, 9, base.Add(-time.Minute))

	for _, n := range []*models.Notification{tied1, tied2, older} {
		_, err := repo.Append(ctx, n)
		require.NoError(t, err)
	}

	reader, err := repo.OpenReader(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, reader)

	var got []int64
	for {
		n, err := reader.Take(ctx)
		require.NoError(t, err)
		if n == nil {
			break
		}
		got = append(got, n.SequenceNumber)
	}
	assert.Equal(t, []int64{9, 6, 7}, got)
}

func TestReaderSkipsAcknowledged(t *testing.T) {
	db := setupCabinetTestDB(t)
	repo := NewRepository(db, 10)
	ctx := context.Background()
	key := testKey()
	now := time.Now().UTC()

	consumed := newTestNotification(key, 1, now)
	pending := newTestNotification(key, 2, now.Add(time.Second))
	for _, n := range []*models.Notification{consumed, pending} {
		_, err := repo.Append(ctx, n)
		require.NoError(t, err)
	}

	require.NoError(t, repo.Acknowledge(ctx, key.RecipientID, []uuid.UUID{consumed.ID}, now))

	reader, err := repo.OpenReader(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, reader)
	assert.Equal(t, pending.ID, reader.Peek().ID)

	n, err := reader.Take(ctx)
	require.NoError(t, err)
	require.NotNil(t, n)
	n, err = reader.Take(ctx)
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestAcknowledgeIsIdempotent(t *testing.T) {
	db := setupCabinetTestDB(t)
	repo := NewRepository(db, 10)
	ctx := context.Background()
	key := testKey()
	now := time.Now().UTC()

	notification := newTestNotification(key, 1, now)
	_, err := repo.Append(ctx, notification)
	require.NoError(t, err)

	ids := []uuid.UUID{notification.ID}
	require.NoError(t, repo.Acknowledge(ctx, key.RecipientID, ids, now))
	require.NoError(t, repo.Acknowledge(ctx, key.RecipientID, ids, now.Add(time.Hour)))

	var stored models.Notification
	require.NoError(t, db.First(&stored, "id = ?", notification.ID).Error)
	require.NotNil(t, stored.AcknowledgedAt)
	assert.WithinDuration(t, now, *stored.AcknowledgedAt, time.Second)
}

func TestArchiveAndDeleteTolerateMissingRows(t *testing.T) {
	db := setupCabinetTestDB(t)
	repo := NewRepository(db, 10)
	ctx := context.Background()
	key := testKey()
	now := time.Now().UTC()

	notification := newTestNotification(key, 1, now)
	_, err := repo.Append(ctx, notification)
	require.NoError(t, err)

	bundleID := uuid.New()
	ids := []uuid.UUID{notification.ID, uuid.New()}

	copied, err := repo.Archive(ctx, nil, bundleID, ids, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), copied)

	// Archiving again must not fail on the existing cold-store row.
	_, err = repo.Archive(ctx, nil, bundleID, ids, now)
	require.NoError(t, err)

	deleted, err := repo.Delete(ctx, nil, ids)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = repo.Delete(ctx, nil, ids)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	var archivedRow models.ArchivedNotification
	require.NoError(t, db.First(&archivedRow, "id = ?", notification.ID).Error)
	assert.Equal(t, bundleID, archivedRow.BundleID)
}

func TestFullAgedDrawersAndSweep(t *testing.T) {
	db := setupCabinetTestDB(t)
	repo := NewRepository(db, 2)
	ctx := context.Background()
	key := testKey()
	old := time.Now().UTC().Add(-30 * 24 * time.Hour)

	sealed := &models.Drawer{
		ID:          uuid.New(),
		RecipientID: key.RecipientID,
		Origin:      key.Origin,
		ContentType: key.ContentType,
		Position:    2,
		CreatedAt:   old,
	}
	require.NoError(t, db.Create(sealed).Error)

	inside := newTestNotification(key, 1, old)
	inside.DrawerID = sealed.ID
	require.NoError(t, db.Create(inside).Error)

	cutoff := time.Now().UTC().Add(-7 * 24 * time.Hour)
	aged, err := repo.FullAgedDrawers(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, aged, 1)
	assert.Equal(t, sealed.ID, aged[0].ID)

	removed, err := repo.DeleteDrawerContents(ctx, nil, sealed.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	gone, err := repo.DeleteDrawer(ctx, nil, sealed.ID)
	require.NoError(t, err)
	assert.True(t, gone)

	gone, err = repo.DeleteDrawer(ctx, nil, sealed.ID)
	require.NoError(t, err)
	assert.False(t, gone)
}

func TestPendingCabinetsOrderedByOldestEntry(t *testing.T) {
	db := setupCabinetTestDB(t)
	repo := NewRepository(db, 10)
	ctx := context.Background()
	recipient := uuid.New()
	now := time.Now().UTC()

	newer := models.CabinetKey{RecipientID: recipient, Origin: enums.OriginTimeSeries, ContentType: "RSM-012"}
	older := models.CabinetKey{RecipientID: recipient, Origin: enums.OriginTimeSeries, ContentType: "RSM-014"}

	_, err := repo.Append(ctx, newTestNotification(newer, 1, now))
	require.NoError(t, err)
	_, err = repo.Append(ctx, newTestNotification(older, 1, now.Add(-time.Hour)))
	require.NoError(t, err)

	// Acknowledged notifications do not count as pending.
	acked := newTestNotification(models.CabinetKey{RecipientID: recipient, Origin: enums.OriginTimeSeries, ContentType: "RSM-020"}, 1, now)
	_, err = repo.Append(ctx, acked)
	require.NoError(t, err)
	require.NoError(t, repo.Acknowledge(ctx, recipient, []uuid.UUID{acked.ID}, now))

	keys, err := repo.PendingCabinets(ctx, recipient, enums.OriginTimeSeries)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "RSM-014", keys[0].ContentType)
	assert.Equal(t, "RSM-012", keys[1].ContentType)

	keys, err = repo.PendingCabinets(ctx, recipient, enums.OriginCharges)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestUnexportedArchivesAndMarkExported(t *testing.T) {
	db := setupCabinetTestDB(t)
	repo := NewRepository(db, 10)
	ctx := context.Background()
	recipient := uuid.New()
	now := time.Now().UTC()

	aged := models.ArchivedNotification{
		ID:             uuid.New(),
		RecipientID:    recipient,
		Origin:         enums.OriginTimeSeries,
		ContentType:    "RSM-012",
		DocumentType:   "RSM-012",
		Weight:         1,
		SequenceNumber: 1,
		BundleID:       uuid.New(),
		ArchivedAt:     now.Add(-40 * 24 * time.Hour),
	}
	fresh := aged
	fresh.ID = uuid.New()
	fresh.ArchivedAt = now
	require.NoError(t, db.Create(&aged).Error)
	require.NoError(t, db.Create(&fresh).Error)

	cutoff := now.Add(-30 * 24 * time.Hour)
	rows, err := repo.UnexportedArchives(ctx, cutoff, 10)
	require.NoError(t, err)
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	assert.Contains(t, ids, aged.ID)
	assert.NotContains(t, ids, fresh.ID)

	require.NoError(t, repo.MarkArchivesExported(ctx, []uuid.UUID{aged.ID}, now))

	rows, err = repo.UnexportedArchives(ctx, cutoff, 10)
	require.NoError(t, err)
	for _, row := range rows {
		assert.NotEqual(t, aged.ID, row.ID)
	}
}

func TestDrawerHoldsNotification(t *testing.T) {
	db := setupCabinetTestDB(t)
	repo := NewRepository(db, 10)
	ctx := context.Background()
	key := testKey()

	notification := newTestNotification(key, 1, time.Now().UTC())
	drawer, err := repo.Append(ctx, notification)
	require.NoError(t, err)

	held, err := repo.DrawerHoldsNotification(ctx, drawer.ID, notification.ID)
	require.NoError(t, err)
	assert.True(t, held)

	held, err = repo.DrawerHoldsNotification(ctx, drawer.ID, uuid.New())
	require.NoError(t, err)
	assert.False(t, held)
}
