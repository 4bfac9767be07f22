// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

// Ledgerlock server: encrypted transaction ledger with anomaly
// monitoring, admin alerting, and scheduled encrypted backups.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/ledgerlock/ledgerlock/internal/alerts"
	"github.com/ledgerlock/ledgerlock/internal/anomaly"
	"github.com/ledgerlock/ledgerlock/internal/api"
	"github.com/ledgerlock/ledgerlock/internal/backup"
	"github.com/ledgerlock/ledgerlock/internal/config"
	"github.com/ledgerlock/ledgerlock/internal/database"
	"github.com/ledgerlock/ledgerlock/internal/keys"
	"github.com/ledgerlock/ledgerlock/internal/ledger"
	"github.com/ledgerlock/ledgerlock/internal/logging"
	"github.com/ledgerlock/ledgerlock/internal/storage"
	"github.com/ledgerlock/ledgerlock/internal/supervisor"
	"github.com/ledgerlock/ledgerlock/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Info().
		Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Str("database", cfg.Database.Path).
		Msg("Starting ledgerlock")

	// Both master keys must be present before any transaction is accepted.
	keyring, err := keys.NewKeyring(cfg.Keys)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build keyring")
	}
	if err := keyring.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("Encryption keys not configured")
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ledgerStore := ledger.NewDuckDBStore(db.Conn())
	if err := ledgerStore.CreateTables(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to create ledger tables")
	}

	alertStore := alerts.NewDuckDBStore(db.Conn())
	if err := alertStore.CreateTable(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to create alerts table")
	}

	snapshotStore := backup.NewDuckDBStore(db.Conn())
	if err := snapshotStore.CreateTable(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to create backup snapshot table")
	}

	// Alert pipeline: Sink persists and publishes, the Forwarder's router
	// delivers to notifiers.
	bufferSize := int64(cfg.Alerts.BufferSize)
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: bufferSize,
	}, watermill.NewStdLogger(false, false))

	sink := alerts.NewSink(alertStore, pubsub)

	hub := websocket.NewHub()

	notifiers := []alerts.Notifier{websocket.NewNotifier(hub)}
	if cfg.Alerts.WebhookURL != "" {
		notifiers = append(notifiers, alerts.NewWebhookNotifier(alerts.WebhookConfig{
			WebhookURL:  cfg.Alerts.WebhookURL,
			Enabled:     true,
			RateLimitMs: cfg.Alerts.WebhookRateLimitMs,
		}))
		logging.Info().Msg("Webhook alert notifier enabled")
	}

	forwarder, err := alerts.NewForwarder(pubsub, notifiers, nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build alert forwarder")
	}

	// Anomaly engine runs synchronously on the ingest path.
	engine := anomaly.NewEngine(sink)
	engine.RegisterDetector(anomaly.NewLargeTransactionDetector(anomaly.LargeTransactionConfig{
		Threshold: cfg.Anomaly.LargeTxnThreshold,
		Enabled:   true,
	}))
	engine.RegisterDetector(anomaly.NewRapidTransactionsDetector(ledgerStore, anomaly.RapidTransactionsConfig{
		Window:    cfg.Anomaly.RapidTxnWindow(),
		Threshold: cfg.Anomaly.RapidTxnThreshold,
		Enabled:   true,
	}))

	ingestor := ledger.NewIngestor(ledgerStore, keyring, engine, sink)

	objectStore, err := storage.NewFilesystemStore(cfg.Backup.Dir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open backup object store")
	}

	scheduler, err := backup.NewScheduler(cfg.Backup, ledgerStore, snapshotStore, objectStore, keyring, sink)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build backup scheduler")
	}

	handler := api.NewHandler(ingestor, ledgerStore, alertStore, snapshotStore, scheduler, func() error {
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer pingCancel()
		return db.Conn().PingContext(pingCtx)
	})
	router := api.NewRouter(handler, hub, cfg.Server)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// === SUPERVISOR TREE ===

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddAlertService(supervisor.NewNamedService("websocket-hub", hub))
	tree.AddAlertService(supervisor.NewNamedService("alert-forwarder", forwarder))
	tree.AddBackupService(supervisor.NewNamedService("backup-scheduler", scheduler))
	tree.AddAPIService(supervisor.NewHTTPServerService(server, 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	if err := pubsub.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing alert channel")
	}

	logging.Info().Msg("Ledgerlock stopped gracefully")
}
