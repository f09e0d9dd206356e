package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gridpoint-energy/postoffice-backend/api/routes"
	"github.com/gridpoint-energy/postoffice-backend/internal/actors"
	"github.com/gridpoint-energy/postoffice-backend/internal/bundling"
	"github.com/gridpoint-energy/postoffice-backend/internal/cabinet"
	"github.com/gridpoint-energy/postoffice-backend/internal/contentbroker"
	"github.com/gridpoint-energy/postoffice-backend/internal/postoffice"
	"github.com/gridpoint-energy/postoffice-backend/pkg/bigquery"
	"github.com/gridpoint-energy/postoffice-backend/pkg/config"
	"github.com/gridpoint-energy/postoffice-backend/pkg/db"
	"github.com/gridpoint-energy/postoffice-backend/pkg/instance"
	"github.com/gridpoint-energy/postoffice-backend/pkg/logger"
	"github.com/gridpoint-energy/postoffice-backend/pkg/metrics"
	"github.com/gridpoint-energy/postoffice-backend/pkg/migrate"
	"github.com/gridpoint-energy/postoffice-backend/pkg/pubsub"
	"github.com/gridpoint-energy/postoffice-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	bigqueryClient, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap bigquery", err)
		os.Exit(1)
	}
	defer func() {
		if err := bigqueryClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing bigquery", err)
		}
	}()

	dispatcher := contentbroker.NewDispatcher(logg)
	broker := contentbroker.NewBroker(
		contentbroker.NewPubSubSender(pubsubClient),
		dispatcher,
		cfg.Broker.RequestTimeout,
		metrics.NewBrokerMetrics(prometheus.DefaultRegisterer),
		logg,
	)

	cabinets := cabinet.NewRepository(dbClient.DB(), cfg.PostOffice.MaxDrawerSize)
	bundles := bundling.NewStore(dbClient.DB())
	weights := bundling.NewWeightPolicy(cfg.PostOffice)
	postOfficeService := postoffice.NewService(dbClient.DB(), cabinets, bundles, weights, broker, logg)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})

	go func() {
		if err := dispatcher.Run(ctx, pubsubClient.ContentReplySubscription()); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "content reply dispatcher stopped unexpectedly", err)
		}
	}()

	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			DB:         dbClient,
			Redis:      redisClient,
			PubSub:     pubsubClient,
			BigQuery:   bigqueryClient,
			Actors:     actors.NewRepository(dbClient.DB()),
			PostOffice: postOfficeService,
			Pending:    cabinets,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
