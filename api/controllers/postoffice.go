package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gridpoint-energy/postoffice-backend/api/middleware"
	"github.com/gridpoint-energy/postoffice-backend/api/responses"
	"github.com/gridpoint-energy/postoffice-backend/internal/postoffice"
	"github.com/gridpoint-energy/postoffice-backend/pkg/enums"
	pkgerrors "github.com/gridpoint-energy/postoffice-backend/pkg/errors"
	"github.com/gridpoint-energy/postoffice-backend/pkg/logger"
)

// PeekService is the bundling surface the controllers sit on.
type PeekService interface {
	Peek(ctx context.Context, req postoffice.PeekRequest) (postoffice.PeekResult, error)
	Dequeue(ctx context.Context, recipientID, bundleID uuid.UUID) (bool, error)
}

type peekResponse struct {
	BundleID        string   `json:"bundle_id"`
	NotificationIDs []string `json:"notification_ids"`
	DocumentTypes   []string `json:"document_types"`
	ContentURI      string   `json:"content_uri"`
}

// Peek returns the caller's active bundle for the requested domain group,
// creating one from pending notifications when none exists. A 204 means
// nothing is ready yet: either no pending data or content still resolving.
func Peek(svc PeekService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "post office service unavailable"))
			return
		}

		recipientID, err := recipientFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		group, err := enums.ParseDomainGroup(chi.URLParam(r, "domainGroup"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid domain group"))
			return
		}

		req := postoffice.PeekRequest{
			RecipientID:     recipientID,
			DomainGroup:     group,
			ResponseFormat:  enums.ResponseFormatXML,
			ResponseVersion: 1,
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("bundleId")); raw != "" {
			suggested, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid bundle id"))
				return
			}
			req.SuggestedBundleID = &suggested
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("responseFormat")); raw != "" {
			format, err := enums.ParseResponseFormat(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid response format"))
				return
			}
			req.ResponseFormat = format
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("responseVersion")); raw != "" {
			version, err := strconv.Atoi(raw)
			if err != nil || version <= 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "response version must be a positive integer"))
				return
			}
			req.ResponseVersion = version
		}

		result, err := svc.Peek(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if !result.Found || !result.HasContent {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		ids := make([]string, 0, len(result.NotificationIDs))
		for _, id := range result.NotificationIDs {
			ids = append(ids, id.String())
		}
		responses.WriteSuccess(w, peekResponse{
			BundleID:        result.BundleID.String(),
			NotificationIDs: ids,
			DocumentTypes:   result.DocumentTypes,
			ContentURI:      result.ContentURI,
		})
	}
}

// Dequeue acknowledges the caller's active bundle. Unknown or already
// dequeued bundle ids map to 404 so retried dequeues stay safe.
func Dequeue(svc PeekService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "post office service unavailable"))
			return
		}

		recipientID, err := recipientFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bundleID, err := uuid.Parse(chi.URLParam(r, "bundleId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid bundle id"))
			return
		}

		ok, err := svc.Dequeue(r.Context(), recipientID, bundleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no dequeueable bundle with this id"))
			return
		}

		responses.WriteSuccess(w, map[string]any{"bundle_id": bundleID.String(), "dequeued": true})
	}
}

func recipientFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.RecipientIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "recipient context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid recipient id")
	}
	return id, nil
}
