package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgactor "github.com/gridpoint-energy/postoffice-backend/pkg/actor"
	"github.com/gridpoint-energy/postoffice-backend/pkg/auth"
	"github.com/gridpoint-energy/postoffice-backend/pkg/config"
	"github.com/gridpoint-energy/postoffice-backend/pkg/db/models"
	pkgerrors "github.com/gridpoint-energy/postoffice-backend/pkg/errors"
)

type stubResolver struct {
	actor *models.Actor
	err   error
}

func (s stubResolver) Resolve(_ context.Context, _ pkgactor.ID) (*models.Actor, error) {
	return s.actor, s.err
}

func TestAuthRejectsMissingToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "issuer"}
	handler := Auth(cfg, stubResolver{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "issuer"}
	handler := Auth(cfg, stubResolver{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsUnknownActor(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "issuer"}
	token := mintTestToken(t, cfg, pkgactor.FromGUID(uuid.New()))

	resolver := stubResolver{err: pkgerrors.New(pkgerrors.CodeNotFound, "actor not registered")}
	handler := Auth(cfg, resolver, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "issuer"}
	externalID := uuid.New()
	registered := &models.Actor{ID: uuid.New(), ExternalID: externalID}
	token := mintTestToken(t, cfg, pkgactor.FromGUID(externalID))

	var captured struct {
		recipient string
		identity  string
	}
	handler := Auth(cfg, stubResolver{actor: registered}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.recipient = RecipientIDFromContext(r.Context())
		captured.identity = ActorIdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.recipient != registered.ID.String() {
		t.Fatalf("expected recipient %s got %s", registered.ID, captured.recipient)
	}
	if captured.identity != externalID.String() {
		t.Fatalf("expected identity %s got %s", externalID, captured.identity)
	}
}

func TestAuthResolvesLegacyGLN(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "issuer"}
	gln := "5790000000005"
	registered := &models.Actor{ID: uuid.New(), GLN: &gln}
	identity, err := pkgactor.FromGLN(gln)
	if err != nil {
		t.Fatalf("build gln: %v", err)
	}
	token := mintTestToken(t, cfg, identity)

	var recipient string
	handler := Auth(cfg, stubResolver{actor: registered}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recipient = RecipientIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if recipient != registered.ID.String() {
		t.Fatalf("expected recipient %s got %s", registered.ID, recipient)
	}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, id pkgactor.ID) string {
	t.Helper()
	token, err := auth.MintActorToken(cfg, time.Now(), id, 10*time.Minute)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}
