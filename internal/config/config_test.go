// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8343 {
		t.Errorf("default port = %d, want 8343", cfg.Server.Port)
	}
	if cfg.Anomaly.LargeTxnThreshold != 10000 {
		t.Errorf("default large txn threshold = %v, want 10000", cfg.Anomaly.LargeTxnThreshold)
	}
	if cfg.Anomaly.RapidTxnThreshold != 5 || cfg.Anomaly.RapidTxnWindow() != 5*time.Minute {
		t.Errorf("default velocity rule = %d in %v", cfg.Anomaly.RapidTxnThreshold, cfg.Anomaly.RapidTxnWindow())
	}
	if cfg.Backup.Schedule != "0 3 * * *" || !cfg.Backup.Enabled {
		t.Errorf("default backup schedule = %+v", cfg.Backup)
	}
	if cfg.Keys.TransactionKey != "" || cfg.Keys.BackupKey != "" {
		t.Error("keys must default to empty, presence is enforced at startup")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("default log format = %q", cfg.Logging.Format)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TRANSACTION_KEY", "env-transaction-master-secret")
	t.Setenv("BACKUP_KEY", "env-backup-master-secret")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("LARGE_TXN_THRESHOLD", "2500")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Keys.TransactionKey != "env-transaction-master-secret" {
		t.Error("TRANSACTION_KEY not applied")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Anomaly.LargeTxnThreshold != 2500 {
		t.Errorf("threshold = %v, want 2500", cfg.Anomaly.LargeTxnThreshold)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("cors origins = %v", cfg.Server.CORSOrigins)
	}
}

func TestLoadIgnoresUnknownEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PATH_INFO", "should-not-leak")
	t.Setenv("SERVER", "also-ignored")

	if _, err := Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	content := []byte(`
server:
  port: 8888
backup:
  schedule: "30 2 * * *"
  timezone: "Europe/Berlin"
anomaly:
  large_txn_threshold: 7500
`)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8888 {
		t.Errorf("port = %d, want 8888", cfg.Server.Port)
	}
	if cfg.Backup.Schedule != "30 2 * * *" || cfg.Backup.Timezone != "Europe/Berlin" {
		t.Errorf("backup config = %+v", cfg.Backup)
	}
	if cfg.Anomaly.LargeTxnThreshold != 7500 {
		t.Errorf("threshold = %v, want 7500", cfg.Anomaly.LargeTxnThreshold)
	}
}

func TestEnvOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: 8888\n"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("HTTP_PORT", "9001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("port = %d, environment must win over the config file", cfg.Server.Port)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"zero anomaly threshold", func(c *Config) { c.Anomaly.LargeTxnThreshold = 0 }},
		{"empty backup schedule", func(c *Config) { c.Backup.Schedule = "" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := defaultConfig().Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}
