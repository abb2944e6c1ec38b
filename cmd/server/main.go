package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/jopa/salestracker/internal/app"
	"github.com/jopa/salestracker/internal/auth"
	"github.com/jopa/salestracker/internal/config"
	"github.com/jopa/salestracker/internal/observability"
	"github.com/jopa/salestracker/internal/repository/postgres"
	"github.com/jopa/salestracker/internal/server/handlers"
	"github.com/jopa/salestracker/internal/server/router"
	"github.com/jopa/salestracker/internal/service/accounts"
	"github.com/jopa/salestracker/internal/service/ledger"
	"github.com/jopa/salestracker/internal/service/reporting"
	"github.com/jopa/salestracker/pkg/logger"
	"github.com/jopa/salestracker/pkg/tracing"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	if err := cfg.ValidateServer(); err != nil {
		baseLogger.Fatal("invalid server configuration", zap.Error(err))
	}
	if err := cfg.ValidateReporting(); err != nil {
		baseLogger.Fatal("invalid reporting configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Telemetry.ServiceName, cfg.Server.Environment, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		baseLogger.Fatal("failed to init tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			baseLogger.Error("failed to flush traces", zap.Error(err))
		}
	}()

	db, err := postgres.Open(ctx, cfg.Database, baseLogger.Named("repo.postgres"))
	if err != nil {
		baseLogger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := postgres.Migrate(db); err != nil {
		baseLogger.Fatal("failed to migrate database", zap.Error(err))
	}
	store := postgres.NewStore(db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	reports, err := app.NewReportStack(ctx, cfg, store, metrics, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to init report pipeline", zap.Error(err))
	}
	defer reports.Close(context.Background())

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	accountSvc := accounts.NewService(store, tokens, baseLogger.Named("svc.accounts"))
	ledgerSvc := ledger.NewService(store, baseLogger.Named("svc.ledger"))

	var snapshots handlers.SnapshotFinder
	if reports.Archive != nil {
		snapshots = reports.Archive
	}
	var notifications *handlers.NotificationHandler
	if reports.WhatsApp.Configured() {
		notifications = handlers.NewNotificationHandler(reports.WhatsApp, baseLogger.Named("handlers.notifications"))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.New(router.Dependencies{
		Tokens:        tokens,
		Users:         store,
		UserHandler:   handlers.NewUserHandler(accountSvc, baseLogger.Named("handlers.users")),
		Products:      handlers.NewProductHandler(ledgerSvc, baseLogger.Named("handlers.products")),
		Sales:         handlers.NewSaleHandler(ledgerSvc, baseLogger.Named("handlers.sales")),
		Reports:       handlers.NewReportHandler(store, reporting.NewGenerator(store, cfg.Location()), reports.Scheduler, snapshots, cfg.Location(), baseLogger.Named("handlers.reports")),
		Dashboard:     handlers.NewDashboardHandler(store, cfg.Location(), baseLogger.Named("handlers.dashboard")),
		Notifications: notifications,
		Metrics:       metrics,
		Gatherer:      registry,
		ServiceName:   cfg.Telemetry.ServiceName,
		CORSOrigins:   cfg.Server.CORSOrigins,
	}, baseLogger.Named("router"))

	if err := reports.Scheduler.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Reporting.RunTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	reports.Scheduler.Stop(shutdownCtx)
}
