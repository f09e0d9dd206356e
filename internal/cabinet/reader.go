package cabinet

import (
	"context"
	"time"

	"github.com/gridpoint-energy/postoffice-backend/pkg/db/models"
)

const readerPageSize = 200

type pageCursor struct {
	createdAt time.Time
	sequence  int64
}

// Reader walks a cabinet's pending notifications in delivery order. It
// buffers one page at a time and fetches the next page lazily, so taking
// more than a page's worth never loads the whole cabinet in memory.
type Reader struct {
	repo      *repositoryImpl
	key       models.CabinetKey
	buffer    []models.Notification
	index     int
	exhausted bool
}

func newReader(repo *repositoryImpl, key models.CabinetKey) *Reader {
	return &Reader{repo: repo, key: key}
}

// CanPeek reports whether a notification is buffered and ready to inspect.
func (r *Reader) CanPeek() bool {
	return r.index < len(r.buffer)
}

// Peek returns the next notification without consuming it. Callers must
// check CanPeek first.
func (r *Reader) Peek() models.Notification {
	return r.buffer[r.index]
}

// Take consumes the next notification and eagerly loads the following page
// when the current one runs out, so CanPeek stays accurate across page
// boundaries. It returns nil when the cabinet is drained.
func (r *Reader) Take(ctx context.Context) (*models.Notification, error) {
	if !r.CanPeek() {
		return nil, nil
	}
	notification := r.buffer[r.index]
	r.index++

	if !r.CanPeek() {
		if err := r.fill(ctx); err != nil {
			return nil, err
		}
	}
	return &notification, nil
}

func (r *Reader) fill(ctx context.Context) error {
	if r.exhausted {
		return nil
	}

	var after *pageCursor
	if len(r.buffer) > 0 {
		last := r.buffer[len(r.buffer)-1]
		after = &pageCursor{createdAt: last.CreatedAt, sequence: last.SequenceNumber}
	}

	page, err := r.repo.pendingPage(ctx, r.key, after, readerPageSize)
	if err != nil {
		return err
	}
	if len(page) < readerPageSize {
		r.exhausted = true
	}
	r.buffer = page
	r.index = 0
	return nil
}
