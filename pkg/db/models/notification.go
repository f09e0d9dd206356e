package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gridpoint-energy/postoffice-backend/pkg/enums"
)

// Notification is one immutable entry in a recipient's cabinet. Rows are never
// updated after insert except for the acknowledgment marker.
type Notification struct {
	ID               uuid.UUID    `gorm:"type:uuid;primaryKey"`
	RecipientID      uuid.UUID    `gorm:"type:uuid;not null;index:idx_notifications_cabinet"`
	Origin           enums.Origin `gorm:"type:text;not null;index:idx_notifications_cabinet"`
	ContentType      string       `gorm:"type:text;not null;index:idx_notifications_cabinet"`
	DocumentType     string       `gorm:"type:text;not null"`
	SupportsBundling bool         `gorm:"not null"`
	Weight           int          `gorm:"not null"`
	SequenceNumber   int64        `gorm:"not null"`
	DrawerID         uuid.UUID    `gorm:"type:uuid;not null;index"`
	AcknowledgedAt   *time.Time   `gorm:"type:timestamptz"`
	CreatedAt        time.Time    `gorm:"type:timestamptz;default:now()"`
}

// CabinetKey returns the partition the notification is stored under.
func (n Notification) CabinetKey() CabinetKey {
	return CabinetKey{
		RecipientID: n.RecipientID,
		Origin:      n.Origin,
		ContentType: n.ContentType,
	}
}

// CabinetKey is the (recipient, origin, content-type) triple identifying one
// logical notification queue.
type CabinetKey struct {
	RecipientID uuid.UUID
	Origin      enums.Origin
	ContentType string
}
