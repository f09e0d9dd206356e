package models

import (
	"time"

	"github.com/google/uuid"
)

// Actor is one market participant in the registry. ExternalID is the
// new-style GUID identity; GLN carries the legacy number when the actor
// predates the migration.
type Actor struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ExternalID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	GLN        *string   `gorm:"type:text;uniqueIndex"`
	CreatedAt  time.Time `gorm:"type:timestamptz;default:now()"`
}
