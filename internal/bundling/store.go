package bundling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gridpoint-energy/postoffice-backend/pkg/db"
	"github.com/gridpoint-energy/postoffice-backend/pkg/db/models"
	"github.com/gridpoint-energy/postoffice-backend/pkg/enums"
)

// CreateOutcome is the result of attempting to commit a new bundle.
type CreateOutcome int

const (
	// CreateSuccess means the bundle was committed and is now the
	// recipient's active bundle for the domain group.
	CreateSuccess CreateOutcome = iota
	// CreateAnotherBundleExists means a concurrent peek won the race; the
	// competing bundle will be served instead.
	CreateAnotherBundleExists
	// CreateIDAlreadyInUse means the client-suggested bundle id collides
	// with an unrelated existing bundle.
	CreateIDAlreadyInUse
)

// Store persists bundles and enforces the single-active-bundle invariant
// through the partial unique index on recipient_id where dequeued is false.
// The constraint is recipient-wide because domain groups overlap: every
// bundle's origin falls inside the unrestricted group.
type Store interface {
	GetActive(ctx context.Context, recipientID uuid.UUID, group enums.DomainGroup) (*models.Bundle, error)
	GetByID(ctx context.Context, recipientID, bundleID uuid.UUID) (*models.Bundle, error)
	TryCreate(ctx context.Context, bundle *models.Bundle) (CreateOutcome, error)
	AssignContent(ctx context.Context, bundle *models.Bundle, contentURI string) error
	Acknowledge(ctx context.Context, recipientID, bundleID uuid.UUID) error
	MarkArchived(ctx context.Context, bundleID uuid.UUID) error
}

type storeImpl struct {
	db *gorm.DB
}

func NewStore(gormDB *gorm.DB) Store {
	return &storeImpl{db: gormDB}
}

// GetActive returns the recipient's unacknowledged bundle for the domain
// group, or nil when none exists. Membership is decided by the bundle's
// origin, not the group label it was created under, so a bundle created
// through the timeseries group is found again through the unrestricted one.
func (s *storeImpl) GetActive(ctx context.Context, recipientID uuid.UUID, group enums.DomainGroup) (*models.Bundle, error) {
	var bundle models.Bundle
	err := s.db.WithContext(ctx).
		Where("recipient_id = ? AND dequeued = ? AND origin IN ?", recipientID, false, group.Origins()).
		First(&bundle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bundle, nil
}

// GetByID returns the recipient's bundle with the given id, or nil.
func (s *storeImpl) GetByID(ctx context.Context, recipientID, bundleID uuid.UUID) (*models.Bundle, error) {
	var bundle models.Bundle
	err := s.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", bundleID, recipientID).
		First(&bundle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bundle, nil
}

// TryCreate commits the bundle as a single atomic insert. The partial unique
// index rejects a second active bundle for the recipient, so a lost race
// surfaces as a unique violation rather than a double-active state.
func (s *storeImpl) TryCreate(ctx context.Context, bundle *models.Bundle) (CreateOutcome, error) {
	err := s.db.WithContext(ctx).Create(bundle).Error
	if err == nil {
		return CreateSuccess, nil
	}
	if !db.IsUniqueViolation(err, "ux_bundles_active") {
		return 0, err
	}

	var count int64
	if lookupErr := s.db.WithContext(ctx).
		Model(&models.Bundle{}).
		Where("id = ?", bundle.ID).
		Count(&count).Error; lookupErr != nil {
		return 0, lookupErr
	}
	if count > 0 {
		return CreateIDAlreadyInUse, nil
	}
	return CreateAnotherBundleExists, nil
}

// AssignContent records the sub-domain's content reference on the bundle.
func (s *storeImpl) AssignContent(ctx context.Context, bundle *models.Bundle, contentURI string) error {
	err := s.db.WithContext(ctx).
		Model(&models.Bundle{}).
		Where("id = ?", bundle.ID).
		Updates(map[string]any{
			"content_uri": contentURI,
			"updated_at":  time.Now().UTC(),
		}).Error
	if err != nil {
		return err
	}
	bundle.ContentURI = &contentURI
	return nil
}

// Acknowledge flips the dequeued flag. Re-acknowledging an already dequeued
// bundle is a no-op.
func (s *storeImpl) Acknowledge(ctx context.Context, recipientID, bundleID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Model(&models.Bundle{}).
		Where("id = ? AND recipient_id = ? AND dequeued = ?", bundleID, recipientID, false).
		Updates(map[string]any{
			"dequeued":   true,
			"updated_at": time.Now().UTC(),
		}).Error
}

// MarkArchived records that the bundle's notifications were copied to the
// cold store and removed from the working set.
func (s *storeImpl) MarkArchived(ctx context.Context, bundleID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Model(&models.Bundle{}).
		Where("id = ?", bundleID).
		Updates(map[string]any{
			"notifications_archived": true,
			"updated_at":             time.Now().UTC(),
		}).Error
}
