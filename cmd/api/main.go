package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/librariashqip/libraria-backend/api/routes"
	"github.com/librariashqip/libraria-backend/internal/audit"
	"github.com/librariashqip/libraria-backend/internal/catalog"
	"github.com/librariashqip/libraria-backend/internal/orders"
	"github.com/librariashqip/libraria-backend/internal/rentals"
	"github.com/librariashqip/libraria-backend/internal/settlement"
	"github.com/librariashqip/libraria-backend/internal/subscriptions"
	"github.com/librariashqip/libraria-backend/internal/terms"
	"github.com/librariashqip/libraria-backend/pkg/config"
	"github.com/librariashqip/libraria-backend/pkg/db"
	"github.com/librariashqip/libraria-backend/pkg/logger"
	"github.com/librariashqip/libraria-backend/pkg/metrics"
	"github.com/librariashqip/libraria-backend/pkg/migrate"
	"github.com/librariashqip/libraria-backend/pkg/redis"
	"github.com/librariashqip/libraria-backend/pkg/storage/gcs"
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

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gcs", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	rentalMetrics := metrics.NewRentalMetrics(registry)

	gdb := dbClient.DB()
	rentalRepo := rentals.NewRepository(gdb)
	catalogRepo := catalog.NewRepository(gdb)
	orderRepo := orders.NewRepository(gdb)
	auditRepo := audit.NewRepository(gdb)
	termsRepo := terms.NewRepository(gdb)
	subscriptionRepo := subscriptions.NewRepository(gdb)

	termsService, err := terms.NewService(termsRepo, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create terms service", err)
		os.Exit(1)
	}

	auditService, err := audit.NewService(auditRepo, logg, rentalMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}

	rentalService, err := rentals.NewService(
		rentalRepo,
		catalogRepo,
		orderRepo,
		auditRepo,
		termsService,
		dbClient,
		gcsClient,
		cfg.GCS.BucketName,
		cfg.GCS.DownloadURLExpiry,
		cfg.AccessToken,
		rentalMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create rental service", err)
		os.Exit(1)
	}

	// Violation reports revoke through the ledger once both sides exist.
	auditService.SetRevoker(rentalService)

	rentalFacade, err := rentals.NewFacade(rentalRepo, catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create rental facade", err)
		os.Exit(1)
	}

	settlementService, err := settlement.NewService(rentalRepo, catalogRepo, auditRepo, dbClient, rentalMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	subscriptionService, err := subscriptions.NewService(subscriptionRepo, auditRepo, dbClient, rentalMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			GCS:           gcsClient,
			Registry:      registry,
			Rentals:       rentalService,
			RentalFacade:  rentalFacade,
			Settlements:   settlementService,
			Subscriptions: subscriptionService,
			Terms:         termsService,
			Audit:         auditService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
