package bundling

import (
	"context"

	"github.com/google/uuid"

	"github.com/gridpoint-energy/postoffice-backend/pkg/db/models"
)

// Reader is the cabinet view the packer consumes from. Peek never advances;
// Take does. Satisfied by the cabinet reader.
type Reader interface {
	CanPeek() bool
	Peek() models.Notification
	Take(ctx context.Context) (*models.Notification, error)
}

// PackResult is the packer's selection: which notifications go into the next
// bundle and the distinct document types they carry.
type PackResult struct {
	NotificationIDs []uuid.UUID
	DocumentTypes   []string
	TotalWeight     int
}

// Empty reports whether the packer selected nothing.
func (r PackResult) Empty() bool {
	return len(r.NotificationIDs) == 0
}

// Pack greedily selects a prefix of the reader's pending notifications under
// the weight budget. The first notification is always taken, even oversized,
// so a bundle always makes progress; a non-bundlable first item travels
// alone. Packing stops before consuming any notification that would overflow
// the budget.
func Pack(ctx context.Context, reader Reader, maxWeight int) (PackResult, error) {
	var result PackResult
	if reader == nil || !reader.CanPeek() {
		return result, nil
	}

	first, err := reader.Take(ctx)
	if err != nil {
		return PackResult{}, err
	}
	if first == nil {
		return result, nil
	}
	result.add(*first)
	if !first.SupportsBundling {
		return result, nil
	}

	for reader.CanPeek() {
		next := reader.Peek()
		if !next.SupportsBundling || result.TotalWeight+next.Weight > maxWeight {
			break
		}
		taken, err := reader.Take(ctx)
		if err != nil {
			return PackResult{}, err
		}
		if taken == nil {
			break
		}
		result.add(*taken)
	}
	return result, nil
}

func (r *PackResult) add(n models.Notification) {
	r.NotificationIDs = append(r.NotificationIDs, n.ID)
	r.TotalWeight += n.Weight
	for _, known := range r.DocumentTypes {
		if known == n.DocumentType {
			return
		}
	}
	r.DocumentTypes = append(r.DocumentTypes, n.DocumentType)
}
