package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/gridpoint-energy/postoffice-backend/pkg/enums"
)

// ArchivedNotification is the cold-store copy of a consumed notification.
type ArchivedNotification struct {
	ID             uuid.UUID    `gorm:"type:uuid;primaryKey"`
	RecipientID    uuid.UUID    `gorm:"type:uuid;not null;index"`
	Origin         enums.Origin `gorm:"type:text;not null"`
	ContentType    string       `gorm:"type:text;not null"`
	DocumentType   string       `gorm:"type:text;not null"`
	Weight         int          `gorm:"not null"`
	SequenceNumber int64        `gorm:"not null"`
	BundleID       uuid.UUID    `gorm:"type:uuid;not null;index"`
	ArchivedAt     time.Time    `gorm:"type:timestamptz;default:now()"`
	ExportedAt     *time.Time   `gorm:"type:timestamptz"`
}
