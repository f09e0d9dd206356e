package postoffice

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gridpoint-energy/postoffice-backend/internal/bundling"
	"github.com/gridpoint-energy/postoffice-backend/internal/cabinet"
	"github.com/gridpoint-energy/postoffice-backend/internal/contentbroker"
	"github.com/gridpoint-energy/postoffice-backend/pkg/db/models"
	dbtypes "github.com/gridpoint-energy/postoffice-backend/pkg/db/types"
	"github.com/gridpoint-energy/postoffice-backend/pkg/enums"
	"github.com/gridpoint-energy/postoffice-backend/pkg/errors"
	"github.com/gridpoint-energy/postoffice-backend/pkg/logger"
)

// ContentRequester resolves a bundle's payload reference from the owning
// sub-domain. A nil result means "not ready yet".
type ContentRequester interface {
	RequestContent(ctx context.Context, bundle *models.Bundle) (*contentbroker.BundleContent, error)
}

// Service is the peek/dequeue state machine. It ties the cabinet store, the
// packer, the bundle store and the content broker together.
type Service struct {
	db       *gorm.DB
	cabinets cabinet.Repository
	bundles  bundling.Store
	weights  *bundling.WeightPolicy
	broker   ContentRequester
	log      *logger.Logger
}

func NewService(gormDB *gorm.DB, cabinets cabinet.Repository, bundles bundling.Store, weights *bundling.WeightPolicy, broker ContentRequester, log *logger.Logger) *Service {
	return &Service{
		db:       gormDB,
		cabinets: cabinets,
		bundles:  bundles,
		weights:  weights,
		broker:   broker,
		log:      log,
	}
}

// PeekRequest carries a market operator's peek call.
type PeekRequest struct {
	RecipientID       uuid.UUID
	SuggestedBundleID *uuid.UUID
	DomainGroup       enums.DomainGroup
	ResponseFormat    enums.ResponseFormat
	ResponseVersion   int
}

// PeekResult is the peek outcome. Found is false when nothing is pending or
// a concurrent peek won the bundle-creation race; both are normal results
// the operator handles by polling again. HasContent is false while the
// sub-domain has not answered the content request yet.
type PeekResult struct {
	Found           bool
	BundleID        uuid.UUID
	NotificationIDs []uuid.UUID
	DocumentTypes   []string
	HasContent      bool
	ContentURI      string
}

// Peek returns the recipient's active bundle, creating one from pending
// notifications when none exists, and lazily resolves its content.
func (s *Service) Peek(ctx context.Context, req PeekRequest) (PeekResult, error) {
	ctx = s.log.WithRecipientID(ctx, req.RecipientID.String())

	active, err := s.bundles.GetActive(ctx, req.RecipientID, req.DomainGroup)
	if err != nil {
		return PeekResult{}, err
	}

	if active == nil {
		active, err = s.createBundle(ctx, req)
		if err != nil {
			return PeekResult{}, err
		}
		if active == nil {
			return PeekResult{}, nil
		}
	} else if err := validateAgainstActive(req, active); err != nil {
		return PeekResult{}, err
	}

	return s.ensureContent(ctx, active)
}

func validateAgainstActive(req PeekRequest, active *models.Bundle) error {
	if req.SuggestedBundleID != nil && *req.SuggestedBundleID != active.ID {
		return errors.New(errors.CodeValidation, "suggested bundle id does not match the active bundle").
			WithDetails(map[string]string{"active_bundle_id": active.ID.String()})
	}
	if req.ResponseFormat != active.ResponseFormat {
		return errors.New(errors.CodeValidation, "response format does not match the active bundle").
			WithDetails(map[string]string{"bundle_format": string(active.ResponseFormat)})
	}
	return nil
}

// createBundle walks the domain group's origins in priority order, packs the
// first cabinet with pending data and commits the bundle. A lost creation
// race returns (nil, nil): the competing bundle will be served instead.
func (s *Service) createBundle(ctx context.Context, req PeekRequest) (*models.Bundle, error) {
	for _, origin := range req.DomainGroup.Origins() {
		keys, err := s.cabinets.PendingCabinets(ctx, req.RecipientID, origin)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			reader, err := s.cabinets.OpenReader(ctx, key)
			if err != nil {
				return nil, err
			}
			if reader == nil {
				continue
			}

			packed, err := bundling.Pack(ctx, reader, s.weights.MaxWeight(origin))
			if err != nil {
				return nil, err
			}
			if packed.Empty() {
				continue
			}

			bundleID := uuid.New()
			if req.SuggestedBundleID != nil {
				bundleID = *req.SuggestedBundleID
			}
			bundle := &models.Bundle{
				ID:              bundleID,
				RecipientID:     req.RecipientID,
				Origin:          origin,
				ContentType:     key.ContentType,
				DomainGroup:     req.DomainGroup,
				NotificationIDs: dbtypes.UUIDArray(packed.NotificationIDs),
				DocumentTypes:   dbtypes.StringArray(packed.DocumentTypes),
				ResponseFormat:  req.ResponseFormat,
				ResponseVersion: req.ResponseVersion,
			}

			outcome, err := s.bundles.TryCreate(ctx, bundle)
			if err != nil {
				return nil, err
			}
			switch outcome {
			case bundling.CreateSuccess:
				return bundle, nil
			case bundling.CreateAnotherBundleExists:
				return nil, nil
			case bundling.CreateIDAlreadyInUse:
				return nil, errors.New(errors.CodeValidation, "suggested bundle id is already in use")
			}
		}
	}
	return nil, nil
}

func (s *Service) ensureContent(ctx context.Context, bundle *models.Bundle) (PeekResult, error) {
	result := PeekResult{
		Found:           true,
		BundleID:        bundle.ID,
		NotificationIDs: bundle.NotificationIDs,
		DocumentTypes:   bundle.DocumentTypes,
	}

	if !bundle.HasContent() {
		content, err := s.broker.RequestContent(ctx, bundle)
		if err != nil {
			return PeekResult{}, err
		}
		if content == nil {
			// Not ready yet; the bundle stays in its created state and
			// the next peek retries the content request.
			return result, nil
		}
		if err := s.bundles.AssignContent(ctx, bundle, content.URI); err != nil {
			return PeekResult{}, err
		}
	}

	result.HasContent = true
	result.ContentURI = *bundle.ContentURI
	return result, nil
}

// Dequeue acknowledges the bundle and its notifications, then archives the
// consumed notifications out of the working set. Unknown or already dequeued
// bundles report false rather than failing, so operators can retry safely.
func (s *Service) Dequeue(ctx context.Context, recipientID, bundleID uuid.UUID) (bool, error) {
	ctx = s.log.WithRecipientID(ctx, recipientID.String())
	ctx = s.log.WithBundleID(ctx, bundleID.String())

	bundle, err := s.bundles.GetByID(ctx, recipientID, bundleID)
	if err != nil {
		return false, err
	}
	if bundle == nil || bundle.Dequeued {
		return false, nil
	}

	now := time.Now().UTC()
	if err := s.cabinets.Acknowledge(ctx, recipientID, bundle.NotificationIDs, now); err != nil {
		return false, err
	}
	if err := s.bundles.Acknowledge(ctx, recipientID, bundleID); err != nil {
		return false, err
	}

	if err := s.archive(ctx, bundle, now); err != nil {
		// The dequeue itself committed; archival is re-runnable and the
		// drawer sweep mops up anything left behind.
		s.log.Error(ctx, "archiving dequeued notifications failed", err)
	}
	return true, nil
}

func (s *Service) archive(ctx context.Context, bundle *models.Bundle, now time.Time) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.cabinets.Archive(ctx, tx, bundle.ID, bundle.NotificationIDs, now); err != nil {
			return err
		}
		_, err := s.cabinets.Delete(ctx, tx, bundle.NotificationIDs)
		return err
	})
	if err != nil {
		return err
	}
	return s.bundles.MarkArchived(ctx, bundle.ID)
}
