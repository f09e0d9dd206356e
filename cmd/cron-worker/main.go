package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gridpoint-energy/postoffice-backend/internal/cabinet"
	"github.com/gridpoint-energy/postoffice-backend/internal/cron"
	"github.com/gridpoint-energy/postoffice-backend/pkg/bigquery"
	"github.com/gridpoint-energy/postoffice-backend/pkg/config"
	"github.com/gridpoint-energy/postoffice-backend/pkg/db"
	"github.com/gridpoint-energy/postoffice-backend/pkg/instance"
	"github.com/gridpoint-energy/postoffice-backend/pkg/logger"
	"github.com/gridpoint-energy/postoffice-backend/pkg/metrics"
	"github.com/gridpoint-energy/postoffice-backend/pkg/migrate"
	"github.com/gridpoint-energy/postoffice-backend/pkg/redis"
)


func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	cabinets := cabinet.NewRepository(dbClient.DB(), cfg.PostOffice.MaxDrawerSize)

	drawerCleanup, err := cron.NewDrawerCleanupJob(cron.DrawerCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: cabinets,
		Retention:  cfg.PostOffice.DrawerRetentionDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create drawer cleanup job", err)
		os.Exit(1)
	}

	archiveExport, err := cron.NewArchiveExportJob(cron.ArchiveExportJobParams{
		Logger:      logg,
		Repository:  cabinets,
		Inserter:    bigqueryClient,
		ExportAfter: cfg.BigQuery.ExportAfterDays,
		BatchSize:   cfg.BigQuery.ExportBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create archive export job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(drawerCleanup, archiveExport)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("cron-worker:%s", env)
}
