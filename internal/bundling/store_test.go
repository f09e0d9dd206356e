package bundling

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gridpoint-energy/postoffice-backend/pkg/db/models"
	dbtypes "github.com/gridpoint-energy/postoffice-backend/pkg/db/types"
	"github.com/gridpoint-energy/postoffice-backend/pkg/enums"
)

func setupBundleTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	bundles := `
CREATE TABLE IF NOT EXISTS bundles (
  id TEXT PRIMARY KEY,
  recipient_id TEXT NOT NULL,
  origin TEXT NOT NULL,
  content_type TEXT NOT NULL,
  domain_group TEXT NOT NULL,
  notification_ids TEXT NOT NULL,
  document_types TEXT NOT NULL,
  response_format TEXT NOT NULL,
  response_version INTEGER NOT NULL DEFAULT 1,
  dequeued INTEGER NOT NULL DEFAULT 0,
  content_uri TEXT,
  notifications_archived INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	activeIndex := `
CREATE UNIQUE INDEX IF NOT EXISTS ux_bundles_active
  ON bundles (recipient_id) WHERE NOT dequeued;`
	require.NoError(t, db.Exec(bundles).Error)
	require.NoError(t, db.Exec(activeIndex).Error)
	return db
}

func newTestBundle(recipientID uuid.UUID, group enums.DomainGroup) *models.Bundle {
	return &models.Bundle{
		ID:              uuid.New(),
		RecipientID:     recipientID,
		Origin:          enums.OriginTimeSeries,
		ContentType:     "RSM-012",
		DomainGroup:     group,
		NotificationIDs: dbtypes.UUIDArray{uuid.New()},
		DocumentTypes:   dbtypes.StringArray{"RSM-012"},
		ResponseFormat:  enums.ResponseFormatXML,
		ResponseVersion: 1,
	}
}

func TestTryCreateSuccessThenGetActive(t *testing.T) {
	db := setupBundleTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	recipient := uuid.New()

	bundle := newTestBundle(recipient, enums.DomainGroupTimeSeries)
	outcome, err := store.TryCreate(ctx, bundle)
	require.NoError(t, err)
	assert.Equal(t, CreateSuccess, outcome)

	active, err := store.GetActive(ctx, recipient, enums.DomainGroupTimeSeries)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, bundle.ID, active.ID)

	none, err := store.GetActive(ctx, recipient, enums.DomainGroupMasterData)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestTryCreateLosesRaceToActiveBundle(t *testing.T) {
	db := setupBundleTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	recipient := uuid.New()

	first := newTestBundle(recipient, enums.DomainGroupTimeSeries)
	outcome, err := store.TryCreate(ctx, first)
	require.NoError(t, err)
	require.Equal(t, CreateSuccess, outcome)

	second := newTestBundle(recipient, enums.DomainGroupTimeSeries)
	outcome, err = store.TryCreate(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, CreateAnotherBundleExists, outcome)

	// Exactly one active bundle survives the race.
	var count int64
	require.NoError(t, db.Model(&models.Bundle{}).
		Where("recipient_id = ? AND dequeued = ?", recipient, false).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestActiveBundleSpansOverlappingGroups(t *testing.T) {
	db := setupBundleTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	recipient := uuid.New()

	first := newTestBundle(recipient, enums.DomainGroupTimeSeries)
	outcome, err := store.TryCreate(ctx, first)
	require.NoError(t, err)
	require.Equal(t, CreateSuccess, outcome)

	// The unrestricted group contains the timeseries origin, so the same
	// bundle is the active one there too.
	active, err := store.GetActive(ctx, recipient, enums.DomainGroupAll)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first.ID, active.ID)

	// A peek through the unrestricted group must not mint a second bundle
	// over the same recipient's pending notifications.
	second := newTestBundle(recipient, enums.DomainGroupAll)
	second.Origin = enums.OriginAggregations
	outcome, err = store.TryCreate(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, CreateAnotherBundleExists, outcome)

	var count int64
	require.NoError(t, db.Model(&models.Bundle{}).
		Where("recipient_id = ? AND dequeued = ?", recipient, false).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestTryCreateRejectsReusedBundleID(t *testing.T) {
	db := setupBundleTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	first := newTestBundle(uuid.New(), enums.DomainGroupTimeSeries)
	outcome, err := store.TryCreate(ctx, first)
	require.NoError(t, err)
	require.Equal(t, CreateSuccess, outcome)

	// A different recipient suggests the same bundle id.
	colliding := newTestBundle(uuid.New(), enums.DomainGroupTimeSeries)
	colliding.ID = first.ID

	outcome, err = store.TryCreate(ctx, colliding)
	require.NoError(t, err)
	assert.Equal(t, CreateIDAlreadyInUse, outcome)
}

func TestAcknowledgeFreesTheActiveSlot(t *testing.T) {
	db := setupBundleTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	recipient := uuid.New()

	bundle := newTestBundle(recipient, enums.DomainGroupTimeSeries)
	_, err := store.TryCreate(ctx, bundle)
	require.NoError(t, err)

	require.NoError(t, store.Acknowledge(ctx, recipient, bundle.ID))
	require.NoError(t, store.Acknowledge(ctx, recipient, bundle.ID))

	active, err := store.GetActive(ctx, recipient, enums.DomainGroupTimeSeries)
	require.NoError(t, err)
	assert.Nil(t, active)

	// The slot is free for the next bundle.
	next := newTestBundle(recipient, enums.DomainGroupTimeSeries)
	outcome, err := store.TryCreate(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, CreateSuccess, outcome)
}

func TestAssignContentAndMarkArchived(t *testing.T) {
	db := setupBundleTestDB(t)
	store := NewStore(db)
	ctx := context.Background()
	recipient := uuid.New()

	bundle := newTestBundle(recipient, enums.DomainGroupTimeSeries)
	_, err := store.TryCreate(ctx, bundle)
	require.NoError(t, err)
	assert.False(t, bundle.HasContent())

	require.NoError(t, store.AssignContent(ctx, bundle, "https://content.example/bundles/abc"))
	assert.True(t, bundle.HasContent())

	stored, err := store.GetByID(ctx, recipient, bundle.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.NotNil(t, stored.ContentURI)
	assert.Equal(t, "https://content.example/bundles/abc", *stored.ContentURI)

	require.NoError(t, store.MarkArchived(ctx, bundle.ID))
	stored, err = store.GetByID(ctx, recipient, bundle.ID)
	require.NoError(t, err)
	assert.True(t, stored.NotificationsArchived)
}

func TestGetByIDUnknownBundle(t *testing.T) {
	db := setupBundleTestDB(t)
	store := NewStore(db)

	bundle, err := store.GetByID(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, bundle)
}
