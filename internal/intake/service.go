package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	retry "github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/gridpoint-energy/postoffice-backend/internal/actors"
	"github.com/gridpoint-energy/postoffice-backend/internal/cabinet"
	"github.com/gridpoint-energy/postoffice-backend/pkg/actor"
	"github.com/gridpoint-energy/postoffice-backend/pkg/db/models"
	"github.com/gridpoint-energy/postoffice-backend/pkg/enums"
	apperrors "github.com/gridpoint-energy/postoffice-backend/pkg/errors"
	"github.com/gridpoint-energy/postoffice-backend/pkg/logger"
)

const (
	appendRetryAttempts = 4
	appendRetryBackoff  = 25 * time.Millisecond
)

// Guard answers whether a notification delivery was already recorded.
type Guard interface {
	WasReceivedPreviously(ctx context.Context, notification *models.Notification, drawerID uuid.UUID) (bool, error)
}

// Service ingests notification batches. Recipients are processed in
// parallel; one recipient's stream stays sequential so sequence numbers keep
// their order.
type Service struct {
	cabinets cabinet.Repository
	guard    Guard
	actors   actors.Repository
	log      *logger.Logger
}

func NewService(cabinets cabinet.Repository, guard Guard, actorRepo actors.Repository, log *logger.Logger) *Service {
	return &Service{
		cabinets: cabinets,
		guard:    guard,
		actors:   actorRepo,
		log:      log,
	}
}

// IngestBatch stores every notification in the batch. The whole batch fails
// only on infrastructure errors; per-notification validation faults are
// returned so the consumer can dead-letter them individually.
func (s *Service) IngestBatch(ctx context.Context, batch BatchMessage) ([]Rejection, error) {
	byRecipient := make(map[string][]NotificationMessage)
	order := make([]string, 0)
	for _, msg := range batch.Notifications {
		if _, seen := byRecipient[msg.Recipient]; !seen {
			order = append(order, msg.Recipient)
		}
		byRecipient[msg.Recipient] = append(byRecipient[msg.Recipient], msg)
	}

	rejections := make([][]Rejection, len(order))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, recipient := range order {
		group.Go(func() error {
			rejected, err := s.ingestStream(groupCtx, byRecipient[recipient])
			if err != nil {
				return err
			}
			rejections[i] = rejected
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var flat []Rejection
	for _, rejected := range rejections {
		flat = append(flat, rejected...)
	}
	return flat, nil
}

// Rejection is a notification the engine refused with a client-caused fault.
type Rejection struct {
	Notification NotificationMessage
	Reason       string
}

func (s *Service) ingestStream(ctx context.Context, stream []NotificationMessage) ([]Rejection, error) {
	var rejections []Rejection
	for _, msg := range stream {
		if err := s.ingestOne(ctx, msg); err != nil {
			typed := apperrors.As(err)
			if typed != nil && !apperrors.MetadataFor(typed.Code()).Retryable {
				rejections = append(rejections, Rejection{Notification: msg, Reason: typed.Message()})
				continue
			}
			return nil, err
		}
	}
	return rejections, nil
}

func (s *Service) ingestOne(ctx context.Context, msg NotificationMessage) error {
	origin, err := enums.ParseOrigin(msg.Origin)
	if err != nil {
		return apperrors.New(apperrors.CodeValidation, err.Error())
	}
	identity, err := actor.Parse(msg.Recipient)
	if err != nil {
		return apperrors.New(apperrors.CodeValidation, err.Error())
	}

	recipient, err := s.resolveRecipient(ctx, identity)
	if err != nil {
		return err
	}

	notification := &models.Notification{
		ID:               msg.ID,
		RecipientID:      recipient.ID,
		Origin:           origin,
		ContentType:      msg.ContentType,
		DocumentType:     msg.DocumentType,
		SupportsBundling: msg.SupportsBundling,
		Weight:           msg.Weight,
		SequenceNumber:   msg.SequenceNumber,
	}

	ctx = s.log.WithRecipientID(ctx, recipient.ID.String())
	ctx = s.log.WithOrigin(ctx, string(origin))
	return s.appendWithRetry(ctx, notification)
}

// resolveRecipient registers GUID actors on first sight; GLN identities
// must already exist in the registry.
func (s *Service) resolveRecipient(ctx context.Context, identity actor.ID) (*models.Actor, error) {
	if guid, ok := identity.GUID(); ok {
		return s.actors.EnsureByGUID(ctx, guid)
	}
	return s.actors.Resolve(ctx, identity)
}

// appendWithRetry opens the cabinet's drawer, consults the guard and writes
// the notification. A drawer sealed by a concurrent writer is retried
// against the next open drawer.
func (s *Service) appendWithRetry(ctx context.Context, notification *models.Notification) error {
	backoff := retry.WithMaxRetries(appendRetryAttempts, retry.NewConstant(appendRetryBackoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		drawer, err := s.cabinets.OpenDrawer(ctx, notification.CabinetKey())
		if err != nil {
			return err
		}

		duplicate, err := s.guard.WasReceivedPreviously(ctx, notification, drawer.ID)
		if err != nil {
			return err
		}
		if duplicate {
			s.log.Info(ctx, fmt.Sprintf("dropping duplicate notification %s", notification.ID))
			return nil
		}

		if err := s.cabinets.AppendToDrawer(ctx, notification, drawer.ID); err != nil {
			if errors.Is(err, cabinet.ErrDrawerConflict) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
}
