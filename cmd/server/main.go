package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/farmwatch/internal/config"
	"github.com/mamadbah2/farmwatch/internal/repository/mongodb"
	"github.com/mamadbah2/farmwatch/internal/repository/sheets"
	"github.com/mamadbah2/farmwatch/internal/scheduler"
	"github.com/mamadbah2/farmwatch/internal/server/handlers"
	"github.com/mamadbah2/farmwatch/internal/server/router"
	alertsvc "github.com/mamadbah2/farmwatch/internal/service/alerts"
	farmsvc "github.com/mamadbah2/farmwatch/internal/service/farms"
	monitoringsvc "github.com/mamadbah2/farmwatch/internal/service/monitoring"
	notifysvc "github.com/mamadbah2/farmwatch/internal/service/notify"
	"github.com/mamadbah2/farmwatch/pkg/clients/agro"
	"github.com/mamadbah2/farmwatch/pkg/clients/openweather"
	whatsappclient "github.com/mamadbah2/farmwatch/pkg/clients/whatsapp"
	"github.com/mamadbah2/farmwatch/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoRepo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB, logger.Named(baseLogger, "repo.mongodb"))
	if err != nil {
		baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
	}
	defer func() {
		if err := mongoRepo.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close mongodb connection", zap.Error(err))
		}
	}()
	if err := mongoRepo.EnsureIndexes(ctx); err != nil {
		baseLogger.Warn("failed to ensure mongodb indexes", zap.Error(err))
	}

	var ledger sheets.Repository
	if cfg.Sheets.Enabled() {
		sheetsLedger, err := sheets.NewLedger(ctx, cfg.Sheets, logger.Named(baseLogger, "repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets ledger", zap.Error(err))
		}
		if err := sheetsLedger.EnsureHeader(ctx); err != nil {
			baseLogger.Warn("failed to prepare ledger header", zap.Error(err))
		}
		ledger = sheetsLedger
		baseLogger.Info("alert ledger enabled")
	} else {
		baseLogger.Warn("google sheets not configured, alert ledger disabled")
	}

	var notifier alertsvc.Notifier
	if cfg.WhatsApp.Enabled() {
		notifier = notifysvc.NewService(whatsappclient.NewClient(cfg.WhatsApp), logger.Named(baseLogger, "svc.notify"))
		baseLogger.Info("whatsapp notifications enabled")
	} else {
		baseLogger.Warn("whatsapp credentials missing, alert notifications disabled")
	}

	agroClient := agro.NewClient(cfg.Agro)
	weatherClient := openweather.NewClient(cfg.Weather)

	alertSvc := alertsvc.NewService(mongoRepo, ledger, notifier, logger.Named(baseLogger, "svc.alerts"))
	monitorSvc := monitoringsvc.NewService(mongoRepo, mongoRepo, alertSvc, agroClient, weatherClient, logger.Named(baseLogger, "svc.monitoring"))
	sched := scheduler.NewScheduler(cfg.Monitoring, monitorSvc, mongoRepo, logger.Named(baseLogger, "scheduler"))
	farmSvc := farmsvc.NewService(mongoRepo, agroClient, sched, cfg.Boundary.MaxAreaAcres, logger.Named(baseLogger, "svc.farms"))

	engine := router.New(router.Handlers{
		Profiles: handlers.NewProfileHandler(mongoRepo, logger.Named(baseLogger, "handlers.profiles")),
		Farms:    handlers.NewFarmHandler(farmSvc, monitorSvc, agroClient, logger.Named(baseLogger, "handlers.farms")),
		Alerts:   handlers.NewAlertHandler(alertSvc, farmSvc, logger.Named(baseLogger, "handlers.alerts")),
		Auth:     handlers.RequireProfile(mongoRepo, logger.Named(baseLogger, "handlers.auth")),
	}, logger.Named(baseLogger, "router"))

	if err := sched.Start(ctx); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
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
}
