package dedup

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
	"github.com/gridpoint-energy/postoffice-backend/pkg/errors"
)

func setupDedupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	records := `
CREATE TABLE IF NOT EXISTS dedup_records (
  notification_id TEXT PRIMARY KEY,
  partition_key TEXT NOT NULL,
  fingerprint TEXT NOT NULL,
  drawer_id TEXT NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(records).Error)
	return db
}

type stubDrawerChecker struct {
	live bool
	err  error
}

func (s *stubDrawerChecker) DrawerHoldsNotification(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return s.live, s.err
}

func newGuardNotification() *models.Notification {
	return &models.Notification{
		ID:               uuid.New(),
		RecipientID:      uuid.New(),
		Origin:           enums.OriginTimeSeries,
		ContentType:      "RSM-012",
		DocumentType:     "RSM-012",
		SupportsBundling: true,
		Weight:           3,
		SequenceNumber:   1,
		CreatedAt:        time.Now().UTC(),
	}
}

func TestFirstDeliveryIsNotDuplicate(t *testing.T) {
	db := setupDedupTestDB(t)
	guard := NewGuard(db, &stubDrawerChecker{live: true})
	ctx := context.Background()

	notification := newGuardNotification()
	drawerID := uuid.New()

	seen, err := guard.WasReceivedPreviously(ctx, notification, drawerID)
	require.NoError(t, err)
	assert.False(t, seen)

	var record models.DedupRecord
	require.NoError(t, db.First(&record, "notification_id = ?", notification.ID).Error)
	assert.Equal(t, drawerID, record.DrawerID)
	assert.Equal(t, Fingerprint(notification), record.Fingerprint)
}

func TestIdenticalRedeliveryIsDuplicate(t *testing.T) {
	db := setupDedupTestDB(t)
	guard := NewGuard(db, &stubDrawerChecker{live: true})
	ctx := context.Background()

	notification := newGuardNotification()
	drawerID := uuid.New()

	_, err := guard.WasReceivedPreviously(ctx, notification, drawerID)
	require.NoError(t, err)

	seen, err := guard.WasReceivedPreviously(ctx, notification, drawerID)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestConflictingPayloadFailsValidation(t *testing.T) {
	db := setupDedupTestDB(t)
	guard := NewGuard(db, &stubDrawerChecker{live: true})
	ctx := context.Background()

	notification := newGuardNotification()
	_, err := guard.WasReceivedPreviously(ctx, notification, uuid.New())
	require.NoError(t, err)

	altered := *notification
	altered.Weight = 99

	_, err = guard.WasReceivedPreviously(ctx, &altered, uuid.New())
	require.Error(t, err)
	typed := errors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, errors.CodeValidation, typed.Code())
}

func TestStaleRecordIsReadmitted(t *testing.T) {
	db := setupDedupTestDB(t)
	checker := &stubDrawerChecker{live: true}
	guard := NewGuard(db, checker)
	ctx := context.Background()

	notification := newGuardNotification()
	_, err := guard.WasReceivedPreviously(ctx, notification, uuid.New())
	require.NoError(t, err)

	// The original was swept from its drawer in the meantime.
	checker.live = false
	newDrawer := uuid.New()

	seen, err := guard.WasReceivedPreviously(ctx, notification, newDrawer)
	require.NoError(t, err)
	assert.False(t, seen)

	var record models.DedupRecord
	require.NoError(t, db.First(&record, "notification_id = ?", notification.ID).Error)
	assert.Equal(t, newDrawer, record.DrawerID)
}

func TestPartitionKeyIsStable(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, PartitionKey(id), PartitionKey(id))
	assert.Regexp(t, `^p\d{2}$`, PartitionKey(id))
}
