package dedup

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gridpoint-energy/postoffice-backend/pkg/db"
	"github.com/gridpoint-energy/postoffice-backend/pkg/db/models"
	"github.com/gridpoint-energy/postoffice-backend/pkg/errors"
)

const partitionCount = 16

// DrawerChecker reports whether a drawer still holds a live copy of a
// notification. Satisfied by the cabinet repository.
type DrawerChecker interface {
	DrawerHoldsNotification(ctx context.Context, drawerID, notificationID uuid.UUID) (bool, error)
}

// Guard detects duplicate notification deliveries. One record is written per
// notification id on first sight; later deliveries under the same id are
// either pure duplicates (dropped), stale records whose original was already
// swept (re-admitted), or conflicting payloads (rejected).
type Guard struct {
	db      *gorm.DB
	drawers DrawerChecker
}

func NewGuard(gormDB *gorm.DB, drawers DrawerChecker) *Guard {
	return &Guard{db: gormDB, drawers: drawers}
}

// WasReceivedPreviously records the notification as seen and reports whether
// an identical delivery was already stored. A conflicting payload under a
// known id returns a validation error.
func (g *Guard) WasReceivedPreviously(ctx context.Context, notification *models.Notification, drawerID uuid.UUID) (bool, error) {
	record := models.DedupRecord{
		NotificationID: notification.ID,
		PartitionKey:   PartitionKey(notification.ID),
		Fingerprint:    Fingerprint(notification),
		DrawerID:       drawerID,
	}

	err := g.db.WithContext(ctx).Create(&record).Error
	if err == nil {
		return false, nil
	}
	if !db.IsUniqueViolation(err, "dedup_records_pkey") {
		return false, errors.Wrap(errors.CodeInternal, err, "create dedup record")
	}

	var existing models.DedupRecord
	if err := g.db.WithContext(ctx).
		First(&existing, "notification_id = ?", notification.ID).Error; err != nil {
		return false, errors.Wrap(errors.CodeInternal, err, "load dedup record")
	}

	live, err := g.drawers.DrawerHoldsNotification(ctx, existing.DrawerID, notification.ID)
	if err != nil {
		return false, errors.Wrap(errors.CodeInternal, err, "check drawer contents")
	}
	if !live {
		// The original was consumed and swept; re-admit under the new drawer.
		updates := map[string]any{
			"drawer_id":   drawerID,
			"fingerprint": record.Fingerprint,
		}
		if err := g.db.WithContext(ctx).
			Model(&models.DedupRecord{}).
			Where("notification_id = ?", notification.ID).
			Updates(updates).Error; err != nil {
			return false, errors.Wrap(errors.CodeInternal, err, "refresh dedup record")
		}
		return false, nil
	}

	if existing.Fingerprint == record.Fingerprint {
		return true, nil
	}
	return false, errors.New(errors.CodeValidation, "conflicting notification payload for known notification id").
		WithDetails(map[string]string{"notification_id": notification.ID.String()})
}

// Fingerprint derives the content identity used to distinguish pure
// re-deliveries from conflicting payloads under the same notification id.
func Fingerprint(n *models.Notification) string {
	return fmt.Sprintf("%s|%s|%s|%t|%d",
		n.ContentType, n.Origin, n.RecipientID, n.SupportsBundling, n.Weight)
}

// PartitionKey spreads dedup records uniformly by hashing the notification id.
func PartitionKey(id uuid.UUID) string {
	h := fnv.New32a()
	h.Write(id[:])
	return fmt.Sprintf("p%02d", h.Sum32()%partitionCount)
}
