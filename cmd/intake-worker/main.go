package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/gridpoint-energy/postoffice-backend/internal/actors"
	"github.com/gridpoint-energy/postoffice-backend/internal/cabinet"
	"github.com/gridpoint-energy/postoffice-backend/internal/dedup"
	"github.com/gridpoint-energy/postoffice-backend/internal/intake"
	"github.com/gridpoint-energy/postoffice-backend/pkg/config"
	"github.com/gridpoint-energy/postoffice-backend/pkg/db"
	"github.com/gridpoint-energy/postoffice-backend/pkg/instance"
	"github.com/gridpoint-energy/postoffice-backend/pkg/logger"
	"github.com/gridpoint-energy/postoffice-backend/pkg/migrate"
	"github.com/gridpoint-energy/postoffice-backend/pkg/pubsub"
	"github.com/gridpoint-energy/postoffice-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "intake-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "intake-worker"

	logg = logger.New(logger.Options{
		ServiceName: "intake-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		requireResource(ctx, logg, "dev migrations", err)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer redisClient.Close()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	cabinets := cabinet.NewRepository(dbClient.DB(), cfg.PostOffice.MaxDrawerSize)
	guard := dedup.NewGuard(dbClient.DB(), cabinets)
	actorRepo := actors.NewRepository(dbClient.DB())
	service := intake.NewService(cabinets, guard, actorRepo, logg)

	seenGuard, err := intake.NewRedisSeenGuard(redisClient)
	requireResource(ctx, logg, "delivery guard", err)

	consumer, err := intake.NewConsumer(
		service,
		pubsubClient.IntakeSubscription(),
		intake.NewPubSubDeadLetters(pubsubClient),
		seenGuard,
		logg,
	)
	requireResource(ctx, logg, "intake consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"env":         cfg.App.Env,
		"instance":    instance.GetID(),
	})
	logg.Info(runCtx, "intake worker ready")

	if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "intake worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
