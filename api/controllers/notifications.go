package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gridpoint-energy/postoffice-backend/api/responses"
	"github.com/gridpoint-energy/postoffice-backend/internal/cabinet"
	"github.com/gridpoint-energy/postoffice-backend/pkg/db/models"
	pkgerrors "github.com/gridpoint-energy/postoffice-backend/pkg/errors"
	"github.com/gridpoint-energy/postoffice-backend/pkg/logger"
	"github.com/gridpoint-energy/postoffice-backend/pkg/pagination"
)

// PendingLister is the read surface the admin listing uses.
type PendingLister interface {
	ListPending(ctx context.Context, recipientID uuid.UUID, params cabinet.ListPendingParams) ([]models.Notification, *pagination.Cursor, error)
}

type pendingNotification struct {
	ID               string    `json:"id"`
	Origin           string    `json:"origin"`
	ContentType      string    `json:"content_type"`
	DocumentType     string    `json:"document_type"`
	SupportsBundling bool      `json:"supports_bundling"`
	Weight           int       `json:"weight"`
	SequenceNumber   int64     `json:"sequence_number"`
	CreatedAt        time.Time `json:"created_at"`
}

type pendingListResponse struct {
	Notifications []pendingNotification `json:"notifications"`
	NextCursor    string                `json:"next_cursor,omitempty"`
}

// AdminPendingNotifications lists a recipient's unacknowledged notifications
// with cursor pagination, for operational inspection of stuck queues.
func AdminPendingNotifications(repo PendingLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cabinet repository unavailable"))
			return
		}

		recipientID, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("recipientId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid recipient id"))
			return
		}

		params := cabinet.ListPendingParams{}

		if limitStr := strings.TrimSpace(r.URL.Query().Get("limit")); limitStr != "" {
			value, err := strconv.Atoi(limitStr)
			if err != nil || value <= 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer"))
				return
			}
			params.Limit = value
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("cursor")); raw != "" {
			cursor, err := pagination.ParseCursor(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
				return
			}
			params.Cursor = cursor
		}

		rows, next, err := repo.ListPending(r.Context(), recipientID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := pendingListResponse{Notifications: make([]pendingNotification, 0, len(rows))}
		for _, row := range rows {
			resp.Notifications = append(resp.Notifications, pendingNotification{
				ID:               row.ID.String(),
				Origin:           string(row.Origin),
				ContentType:      row.ContentType,
				DocumentType:     row.DocumentType,
				SupportsBundling: row.SupportsBundling,
				Weight:           row.Weight,
				SequenceNumber:   row.SequenceNumber,
				CreatedAt:        row.CreatedAt,
			})
		}
		if next != nil {
			resp.NextCursor = pagination.EncodeCursor(*next)
		}

		responses.WriteSuccess(w, resp)
	}
}
