package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gridpoint-energy/postoffice-backend/api/controllers"
	"github.com/gridpoint-energy/postoffice-backend/api/middleware"
	"github.com/gridpoint-energy/postoffice-backend/pkg/config"
	"github.com/gridpoint-energy/postoffice-backend/pkg/logger"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	DB         controllers.Pinger
	Redis      controllers.Pinger
	PubSub     controllers.Pinger
	BigQuery   controllers.Pinger
	Actors     middleware.ActorResolver
	PostOffice controllers.PeekService
	Pending    controllers.PendingLister
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": deps.DB,
			"redis":    deps.Redis,
			"pubsub":   deps.PubSub,
			"bigquery": deps.BigQuery,
		}))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Actors, logg))
		r.Get("/peek/{domainGroup}", controllers.Peek(deps.PostOffice, logg))
		r.Delete("/dequeue/{bundleId}", controllers.Dequeue(deps.PostOffice, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Actors, logg))
		r.Get("/notifications", controllers.AdminPendingNotifications(deps.Pending, logg))
	})

	return r
}
