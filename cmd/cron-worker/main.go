package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tech4loop/marketplace-backend/internal/cron"
	"github.com/tech4loop/marketplace-backend/internal/orders"
	"github.com/tech4loop/marketplace-backend/internal/reconciliation"
	"github.com/tech4loop/marketplace-backend/pkg/bigquery"
	"github.com/tech4loop/marketplace-backend/pkg/config"
	"github.com/tech4loop/marketplace-backend/pkg/db"
	"github.com/tech4loop/marketplace-backend/pkg/logger"
	"github.com/tech4loop/marketplace-backend/pkg/mercadopago"
	"github.com/tech4loop/marketplace-backend/pkg/metrics"
	"github.com/tech4loop/marketplace-backend/pkg/migrate"
	"github.com/tech4loop/marketplace-backend/pkg/outbox"
	"github.com/tech4loop/marketplace-backend/pkg/redis"
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

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outboxRepo, logg)

	expiryJob, err := cron.NewStockHoldExpiryJob(cron.StockHoldExpiryJobParams{
		Logger: logg,
		DB:     dbClient,
		Outbox: outboxSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stock hold expiry job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:       logg,
		DB:           dbClient,
		Repository:   outboxRepo,
		DeadAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(expiryJob, retentionJob)

	if cfg.BigQuery.Enabled() {
		snapshotJob, closeWarehouse, err := buildSnapshotJob(cfg, logg, dbClient)
		if err != nil {
			logg.Error(context.Background(), "failed to create reconciliation snapshot job", err)
			os.Exit(1)
		}
		defer closeWarehouse()
		registry.Register(snapshotJob)
	} else {
		logg.Warn(context.Background(), "bigquery dataset not configured, reconciliation snapshot disabled")
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+envName(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Cron.Interval.String(),
		"jobs":     len(registry.Jobs()),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildSnapshotJob(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (cron.Job, func(), error) {
	ctx := context.Background()
	warehouse, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return nil, nil, err
	}
	closeWarehouse := func() {
		if err := warehouse.Close(); err != nil {
			logg.Error(context.Background(), "error closing bigquery", err)
		}
	}

	gateway, err := mercadopago.NewClient(ctx, cfg.Gateway, logg)
	if err != nil {
		closeWarehouse()
		return nil, nil, err
	}
	builder, err := reconciliation.NewBuilder(reconciliation.BuilderParams{
		Orders:       orders.NewRepository(dbClient.DB()),
		Gateway:      gateway,
		Logger:       logg,
		Metrics:      metrics.NewOrderMetrics(prometheus.DefaultRegisterer),
		Concurrency:  cfg.Report.Concurrency,
		MaxRangeDays: cfg.Report.MaxRangeDays,
	})
	if err != nil {
		closeWarehouse()
		return nil, nil, err
	}
	exporter, err := reconciliation.NewExporter(warehouse, logg)
	if err != nil {
		closeWarehouse()
		return nil, nil, err
	}
	job, err := cron.NewReconciliationSnapshotJob(cron.ReconciliationSnapshotJobParams{
		Logger:   logg,
		Builder:  builder,
		Exporter: exporter,
	})
	if err != nil {
		closeWarehouse()
		return nil, nil, err
	}
	return job, closeWarehouse, nil
}

func envName(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
