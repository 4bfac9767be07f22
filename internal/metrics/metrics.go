// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

// Package metrics provides Prometheus instrumentation for the ledger core:
// ingestion throughput and failures, alert volume by type, backup run
// outcomes and duration, and live alert feed connections.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransactionsIngested counts successfully persisted transactions.
	TransactionsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledgerlock_transactions_ingested_total",
			Help: "Total number of transactions successfully ingested",
		},
	)

	// TransactionFailures counts failed submissions by stage.
	TransactionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerlock_transaction_failures_total",
			Help: "Total number of failed transaction submissions",
		},
		[]string{"stage"}, // "validation", "encryption", "persistence", "security_log"
	)

	// AlertsRaised counts admin alerts by type.
	AlertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerlock_alerts_raised_total",
			Help: "Total number of admin alerts raised",
		},
		[]string{"type"},
	)

	// AlertForwardFailures counts alert deliveries that failed per notifier.
	AlertForwardFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerlock_alert_forward_failures_total",
			Help: "Total number of failed alert forward attempts",
		},
		[]string{"notifier"},
	)

	// BackupRuns counts backup runs by outcome.
	BackupRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerlock_backup_runs_total",
			Help: "Total number of backup runs",
		},
		[]string{"status"}, // "completed", "failed", "skipped"
	)

	// BackupDuration observes backup run duration in seconds.
	BackupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledgerlock_backup_duration_seconds",
			Help:    "Duration of backup runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// WebsocketClients tracks connected alert feed clients.
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledgerlock_websocket_clients",
			Help: "Current number of connected alert feed clients",
		},
	)
)
