package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/gridpoint-energy/postoffice-backend/pkg/db/types"
	"github.com/gridpoint-energy/postoffice-backend/pkg/enums"
)

// Bundle is a batch of notifications offered to a market operator as one unit
// of work. At most one bundle with dequeued = false may exist per recipient
// and domain group; the partial unique index ux_bundles_active enforces it.
type Bundle struct {
	ID                    uuid.UUID            `gorm:"type:uuid;primaryKey"`
	RecipientID           uuid.UUID            `gorm:"type:uuid;not null"`
	Origin                enums.Origin         `gorm:"type:text;not null"`
	ContentType           string               `gorm:"type:text;not null"`
	DomainGroup           enums.DomainGroup    `gorm:"type:text;not null"`
	NotificationIDs       dbtypes.UUIDArray    `gorm:"type:text;not null"`
	DocumentTypes         dbtypes.StringArray  `gorm:"type:text;not null"`
	ResponseFormat        enums.ResponseFormat `gorm:"type:text;not null"`
	ResponseVersion       int                  `gorm:"not null;default:1"`
	Dequeued              bool                 `gorm:"not null;default:false"`
	ContentURI            *string              `gorm:"type:text"`
	NotificationsArchived bool                 `gorm:"not null;default:false"`
	CreatedAt             time.Time            `gorm:"type:timestamptz;default:now()"`
	UpdatedAt             time.Time            `gorm:"type:timestamptz;default:now()"`
}

// HasContent reports whether the sub-domain has answered the content request.
func (b Bundle) HasContent() bool {
	return b.ContentURI != nil && *b.ContentURI != ""
}
