package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gridpoint-energy/postoffice-backend/api/responses"
	pkgactor "github.com/gridpoint-energy/postoffice-backend/pkg/actor"
	pkgAuth "github.com/gridpoint-energy/postoffice-backend/pkg/auth"
	"github.com/gridpoint-energy/postoffice-backend/pkg/config"
	"github.com/gridpoint-energy/postoffice-backend/pkg/db/models"
	pkgerrors "github.com/gridpoint-energy/postoffice-backend/pkg/errors"
	"github.com/gridpoint-energy/postoffice-backend/pkg/logger"
)

// ActorResolver maps a presented identity onto the actor registry.
type ActorResolver interface {
	Resolve(ctx context.Context, id pkgactor.ID) (*models.Actor, error)
}

// Auth validates a bearer token, resolves the actor it names against the
// registry, and seeds the request context with the recipient id.
func Auth(cfg config.JWTConfig, resolver ActorResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseActorToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			identity, err := claims.ActorID()
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor identity"))
				return
			}

			registered, err := resolver.Resolve(r.Context(), identity)
			if err != nil {
				if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown actor"))
					return
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve actor"))
				return
			}

			ctx := WithRecipientID(r.Context(), registered.ID.String())
			ctx = WithActorIdentity(ctx, identity.String())

			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"recipient_id":   registered.ID.String(),
					"actor_identity": identity.String(),
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
