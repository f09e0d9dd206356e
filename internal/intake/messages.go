package intake

import (
	"github.com/google/uuid"
)

// BatchMessage is one intake payload from a sub-domain: a batch of
// data-available notifications, all encoded as JSON on the wire.
type BatchMessage struct {
	Notifications []NotificationMessage `json:"notifications" validate:"required,min=1,dive"`
}

// NotificationMessage is one data-available announcement. Recipient is an
// actor identity in either encoding (GUID or legacy GLN).
type NotificationMessage struct {
	ID               uuid.UUID `json:"id" validate:"required"`
	Recipient        string    `json:"recipient" validate:"required"`
	ContentType      string    `json:"content_type" validate:"required"`
	Origin           string    `json:"origin" validate:"required"`
	DocumentType     string    `json:"document_type" validate:"required"`
	SupportsBundling bool      `json:"supports_bundling"`
	Weight           int       `json:"weight" validate:"gt=0"`
	SequenceNumber   int64     `json:"sequence_number" validate:"gte=0"`
}
