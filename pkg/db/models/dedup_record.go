package models

import (
	"time"

	"github.com/google/uuid"
)

// DedupRecord marks a notification id as received. One record per
// notification; the fingerprint detects conflicting re-deliveries under the
// same id. PartitionKey is a uniform hash prefix of the notification id.
type DedupRecord struct {
	NotificationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	PartitionKey   string    `gorm:"type:text;not null;index"`
	Fingerprint    string    `gorm:"type:text;not null"`
	DrawerID       uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt      time.Time `gorm:"type:timestamptz;default:now()"`
}
