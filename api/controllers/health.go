package controllers

import (
	"context"
	"net/http"

	"github.com/gridpoint-energy/postoffice-backend/api/responses"
	"github.com/gridpoint-energy/postoffice-backend/pkg/config"
	pkgerrors "github.com/gridpoint-energy/postoffice-backend/pkg/errors"
	"github.com/gridpoint-energy/postoffice-backend/pkg/logger"
)

// Pinger is the health-check surface every backing client exposes.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PostOffice-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every backing service. Nil pingers are skipped so
// partial deployments can still report readiness.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PostOffice-Env", cfg.App.Env)

		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable").
						WithDetails(map[string]string{"dependency": name}))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
