// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

// Package alerts persists admin alerts and forwards them to external
// notification channels.
//
// Persistence and forwarding are deliberately decoupled: a Sink.Record call
// stores the alert and publishes it onto an in-process channel; delivery to
// notifiers happens in the Forwarder's router. A forwarding failure is
// logged and counted but never re-raised into the caller's primary
// operation.
package alerts

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// AlertType identifies the kind of admin alert.
type AlertType string

const (
	// TypeLargeTransaction flags a single transaction above the size threshold.
	TypeLargeTransaction AlertType = "LARGE_TRANSACTION"

	// TypeRapidTransactions flags a same-owner burst within the velocity window.
	TypeRapidTransactions AlertType = "RAPID_TRANSACTIONS"

	// TypeTransactionError flags an encryption or persistence failure during ingest.
	TypeTransactionError AlertType = "TRANSACTION_ERROR"

	// TypeBackupFailed flags a failed backup run.
	TypeBackupFailed AlertType = "BACKUP_FAILED"
)

// Severity indicates the severity level of an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AdminAlert is a persisted alert record. Payloads are sanitized before they
// reach this type: no plaintext payment data, no key material.
type AdminAlert struct {
	ID        string          `json:"id"`
	Type      AlertType       `json:"type"`
	Severity  Severity        `json:"severity"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// AlertFilter defines filtering options for alert queries.
type AlertFilter struct {
	Types []AlertType `json:"types,omitempty"`
	Since *time.Time  `json:"since,omitempty"`
	Until *time.Time  `json:"until,omitempty"`
	Limit int         `json:"limit,omitempty"`
}

// Store defines alert persistence.
type Store interface {
	// SaveAlert persists a new alert.
	SaveAlert(ctx context.Context, alert *AdminAlert) error

	// ListAlerts retrieves alerts with optional filtering, newest first.
	ListAlerts(ctx context.Context, filter AlertFilter) ([]AdminAlert, error)
}

// Notifier delivers alerts to an external system.
type Notifier interface {
	// Send delivers an alert to the notification channel.
	Send(ctx context.Context, alert *AdminAlert) error

	// Name returns the notifier name (e.g. "webhook", "websocket").
	Name() string

	// Enabled returns whether this notifier is enabled.
	Enabled() bool
}

// Recorder is the interface other components use to raise alerts.
type Recorder interface {
	Record(ctx context.Context, alertType AlertType, severity Severity, message string, metadata interface{}) (*AdminAlert, error)
}
