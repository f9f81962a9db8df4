package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tech4loop/marketplace-backend/api/routes"
	"github.com/tech4loop/marketplace-backend/internal/checkout"
	"github.com/tech4loop/marketplace-backend/internal/holds"
	"github.com/tech4loop/marketplace-backend/internal/orders"
	"github.com/tech4loop/marketplace-backend/internal/payments"
	product "github.com/tech4loop/marketplace-backend/internal/products"
	"github.com/tech4loop/marketplace-backend/internal/profiles"
	"github.com/tech4loop/marketplace-backend/internal/reconciliation"
	"github.com/tech4loop/marketplace-backend/pkg/config"
	"github.com/tech4loop/marketplace-backend/pkg/db"
	"github.com/tech4loop/marketplace-backend/pkg/env"
	"github.com/tech4loop/marketplace-backend/pkg/logger"
	"github.com/tech4loop/marketplace-backend/pkg/mercadopago"
	"github.com/tech4loop/marketplace-backend/pkg/metrics"
	"github.com/tech4loop/marketplace-backend/pkg/migrate"
	"github.com/tech4loop/marketplace-backend/pkg/outbox"
	"github.com/tech4loop/marketplace-backend/pkg/redis"
	"github.com/tech4loop/marketplace-backend/pkg/storage/gcs"
)

const shutdownTimeout = 15 * time.Second

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

	gateway, err := mercadopago.NewClient(context.Background(), cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap payment gateway", err)
		os.Exit(1)
	}

	storage, err := gcs.NewClient(context.Background(), cfg.Storage, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap object storage", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	orderMetrics := metrics.NewOrderMetrics(registry)

	conn := dbClient.DB()
	productRepo := product.NewRepository(conn)
	profileRepo := profiles.NewRepository(conn)
	holdRepo := holds.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)

	productService, err := product.NewService(productRepo, profileRepo, storage)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Config:   cfg,
		Logger:   logg,
		Tx:       dbClient,
		Products: productRepo,
		Profiles: profileRepo,
		Holds:    holdRepo,
		Orders:   orderRepo,
		Outbox:   outboxSvc,
		Gateway:  gateway,
		Storage:  storage,
		Metrics:  orderMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	guard, err := payments.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, "payments")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Config:   cfg,
		Logger:   logg,
		Tx:       dbClient,
		Orders:   orderRepo,
		Holds:    holdRepo,
		Products: productRepo,
		Outbox:   outboxSvc,
		Gateway:  gateway,
		Guard:    guard,
		Metrics:  orderMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	reportBuilder, err := reconciliation.NewBuilder(reconciliation.BuilderParams{
		Orders:       orderRepo,
		Gateway:      gateway,
		Logger:       logg,
		Metrics:      orderMetrics,
		Concurrency:  cfg.Report.Concurrency,
		MaxRangeDays: cfg.Report.MaxRangeDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation builder", err)
		os.Exit(1)
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"gateway_env": gateway.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			DB:              dbClient,
			Redis:           redisClient,
			Products:        productService,
			Checkout:        checkoutService,
			Payments:        paymentService,
			Reconciliation:  reportBuilder,
			MetricsGatherer: registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}
