package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"achievements/internal/config"
	"achievements/internal/db"
	"achievements/internal/handlers"
	"achievements/internal/logger"
	"achievements/internal/metrics"
	"achievements/internal/scheduler"
	"achievements/internal/services"
	"achievements/internal/store"
	"achievements/internal/websocket"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	if cfg.AuthorityID == "" {
		logger.Warn("AUTHORITY_ID is empty; privileged operations will be rejected")
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	users := store.NewUserStore(database)
	accounts := store.NewAccountStore(database)
	entries := store.NewLedgerStore(database)
	credentials := store.NewCredentialStore(database)
	audit := store.NewAuditStore(database)
	settings := store.NewSettingsStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()
	collector := metrics.New(prometheus.DefaultRegisterer)

	pointsSvc := services.NewPointsService(txRunner, accounts, entries, audit, settings, hub, collector, cfg.AuthorityID)
	registry := services.NewCredentialService(txRunner, credentials, audit, settings, hub, collector, cfg.AuthorityID, cfg.RegistryPrincipal)

	ctx := context.Background()
	if err := services.RestoreSettings(ctx, pointsSvc, registry, services.BootDefaults{
		Authority:  cfg.AuthorityID,
		Principal:  cfg.RegistryPrincipal,
		Settlement: cfg.SettlementEnabled,
	}); err != nil {
		logger.Fatalf("failed to restore registry settings: %v", err)
	}

	reconciler := scheduler.NewReconcileScheduler(pointsSvc, collector, cfg.ReconcileCron)
	if err := reconciler.Start(); err != nil {
		logger.Fatalf("failed to start reconcile scheduler: %v", err)
	}
	defer reconciler.Stop()

	handler := handlers.New(handlers.Deps{
		TxRunner:    txRunner,
		Config:      cfg,
		Users:       users,
		Accounts:    accounts,
		Entries:     entries,
		Audit:       audit,
		Points:      pointsSvc,
		Credentials: registry,
		Ledger:      pointsSvc,
		Hub:         hub,
		Metrics:     promhttp.Handler(),
	})
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"addr":         server.Addr,
			"env":          cfg.AppEnv,
			"settlement":   registry.LedgerConfigured(),
			"collaborator": pointsSvc.Collaborator(),
		}).Info("achievements API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server error: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error: ", err)
	}
}
