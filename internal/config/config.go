// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

// Package config provides configuration management for Ledgerlock.
//
// Configuration is loaded once at startup via Koanf v2 with layered sources
// (defaults, optional YAML file, environment variables) and passed into each
// component's constructor as an immutable value. Components never read
// ambient process state themselves, so they are testable in isolation with
// injected fake keys and thresholds.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the process-wide configuration, loaded once at startup.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Keys     KeysConfig     `koanf:"keys"`
	Anomaly  AnomalyConfig  `koanf:"anomaly"`
	Backup   BackupConfig   `koanf:"backup"`
	Alerts   AlertsConfig   `koanf:"alerts"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gte=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// KeysConfig holds the two symmetric master keys.
//
// The transaction key seals live transaction payloads; the backup key is
// used only for periodic ledger snapshots. The separation is deliberate:
// compromise of one must not expose data sealed with the other. Presence is
// enforced eagerly by keys.Keyring.Validate before any transaction is
// accepted.
type KeysConfig struct {
	// TransactionKey is the master key for transaction payload encryption.
	// Required. Set via TRANSACTION_KEY.
	TransactionKey string `koanf:"transaction_key"`

	// BackupKey is the master key for ledger snapshot encryption.
	// Required. Set via BACKUP_KEY.
	BackupKey string `koanf:"backup_key"`
}

// AnomalyConfig holds anomaly rule thresholds.
type AnomalyConfig struct {
	// LargeTxnThreshold is the amount above which a transaction is flagged.
	LargeTxnThreshold float64 `koanf:"large_txn_threshold" validate:"gt=0"`

	// RapidTxnWindowSeconds is the trailing window for the velocity rule.
	RapidTxnWindowSeconds int `koanf:"rapid_txn_window_seconds" validate:"gt=0"`

	// RapidTxnThreshold is the same-owner count above which the velocity
	// rule fires. With the default of 5, the sixth in-window transaction
	// raises the alert.
	RapidTxnThreshold int `koanf:"rapid_txn_threshold" validate:"gt=0"`
}

// RapidTxnWindow returns the velocity window as a duration.
func (c AnomalyConfig) RapidTxnWindow() time.Duration {
	return time.Duration(c.RapidTxnWindowSeconds) * time.Second
}

// BackupConfig holds backup scheduler settings.
type BackupConfig struct {
	Enabled bool `koanf:"enabled"`

	// Schedule is a standard five-field cron expression. Default runs daily
	// at 03:00 in the configured time zone.
	Schedule string `koanf:"schedule" validate:"required"`

	// Timezone is an IANA time zone name for the schedule.
	Timezone string `koanf:"timezone" validate:"required"`

	// Dir is the root directory of the backup object store.
	Dir string `koanf:"dir" validate:"required"`

	// RunTimeout bounds a single backup run. A run that exceeds it is
	// recorded as failed rather than left hanging.
	RunTimeout time.Duration `koanf:"run_timeout"`
}

// AlertsConfig holds alert forwarding settings.
type AlertsConfig struct {
	// WebhookURL is the external notification endpoint. Empty disables the
	// webhook notifier; persisted alerts are unaffected.
	WebhookURL string `koanf:"webhook_url"`

	// WebhookRateLimitMs throttles webhook deliveries.
	WebhookRateLimitMs int `koanf:"webhook_rate_limit_ms"`

	// BufferSize is the in-process alert channel buffer.
	BufferSize int `koanf:"buffer_size" validate:"gt=0"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for coherent values.
// Key presence is deliberately not checked here; keys.Keyring owns that so
// the error surfaces as a configuration error from the key boundary.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := time.LoadLocation(c.Backup.Timezone); err != nil {
		return fmt.Errorf("invalid backup timezone %q: %w", c.Backup.Timezone, err)
	}

	if c.Backup.RunTimeout <= 0 {
		return fmt.Errorf("backup run_timeout must be positive, got %s", c.Backup.RunTimeout)
	}

	return nil
}
