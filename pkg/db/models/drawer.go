package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gridpoint-energy/postoffice-backend/pkg/enums"
)

// Drawer is one bounded page of a cabinet's notification log. A drawer fills
// up to the configured maximum and is then sealed; appends start a new one.
type Drawer struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey"`
	RecipientID uuid.UUID    `gorm:"type:uuid;not null;index:idx_drawers_cabinet"`
	Origin      enums.Origin `gorm:"type:text;not null;index:idx_drawers_cabinet"`
	ContentType string       `gorm:"type:text;not null;index:idx_drawers_cabinet"`
	Position    int          `gorm:"not null;default:0"`
	CreatedAt   time.Time    `gorm:"type:timestamptz;default:now()"`
}

// Key returns the cabinet partition the drawer belongs to.
func (d Drawer) Key() CabinetKey {
	return CabinetKey{
		RecipientID: d.RecipientID,
		Origin:      d.Origin,
		ContentType: d.ContentType,
	}
}
