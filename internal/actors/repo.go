package actors

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gridpoint-energy/postoffice-backend/internal/repo"
	"github.com/gridpoint-energy/postoffice-backend/pkg/actor"
	"github.com/gridpoint-energy/postoffice-backend/pkg/db"
	"github.com/gridpoint-energy/postoffice-backend/pkg/db/models"
	apperrors "github.com/gridpoint-energy/postoffice-backend/pkg/errors"
)

// Repository resolves market-participant identities to registry rows.
type Repository interface {
	Resolve(ctx context.Context, id actor.ID) (*models.Actor, error)
	EnsureByGUID(ctx context.Context, externalID uuid.UUID) (*models.Actor, error)
}

type repositoryImpl struct {
	repo.Base
}

func NewRepository(gormDB *gorm.DB) Repository {
	return &repositoryImpl{Base: repo.NewBase(gormDB)}
}

// Resolve looks the actor up by its new-style GUID first and falls back to
// the legacy GLN. A missing actor returns a NotFound error.
func (r *repositoryImpl) Resolve(ctx context.Context, id actor.ID) (*models.Actor, error) {
	if id.IsZero() {
		return nil, apperrors.New(apperrors.CodeValidation, "actor identity is empty")
	}

	var found models.Actor
	var err error
	if guid, ok := id.GUID(); ok {
		err = r.DB(ctx).First(&found, "external_id = ?", guid).Error
	} else if gln, ok := id.GLN(); ok {
		err = r.DB(ctx).First(&found, "gln = ?", gln).Error
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.CodeNotFound, "actor is not registered").
			WithDetails(map[string]string{"actor": id.String()})
	}
	if err != nil {
		return nil, err
	}
	return &found, nil
}

// EnsureByGUID resolves a GUID actor, registering it on first sight. GLN
// actors are never auto-registered; the legacy registry is the source of
// truth for those.
func (r *repositoryImpl) EnsureByGUID(ctx context.Context, externalID uuid.UUID) (*models.Actor, error) {
	found, err := r.Resolve(ctx, actor.FromGUID(externalID))
	if err == nil {
		return found, nil
	}
	typed := apperrors.As(err)
	if typed == nil || typed.Code() != apperrors.CodeNotFound {
		return nil, err
	}

	created := &models.Actor{
		ID:         uuid.New(),
		ExternalID: externalID,
	}
	if createErr := r.DB(ctx).Create(created).Error; createErr != nil {
		if db.IsUniqueViolation(createErr, "actors_external_id_key") {
			// Lost a registration race; the winner's row serves.
			return r.Resolve(ctx, actor.FromGUID(externalID))
		}
		return nil, createErr
	}
	return created, nil
}
