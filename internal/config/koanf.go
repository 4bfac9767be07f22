// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/ledgerlock/config.yaml",
	"/etc/ledgerlock/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8343,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Path:      "/data/ledgerlock.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = runtime.NumCPU()
		},
		Keys: KeysConfig{
			TransactionKey: "",
			BackupKey:      "",
		},
		Anomaly: AnomalyConfig{
			LargeTxnThreshold:     10000,
			RapidTxnWindowSeconds: 300,
			RapidTxnThreshold:     5,
		},
		Backup: BackupConfig{
			Enabled:    true,
			Schedule:   "0 3 * * *", // daily, off-peak
			Timezone:   "UTC",
			Dir:        "/data/backups",
			RunTimeout: 10 * time.Minute,
		},
		Alerts: AlertsConfig{
			WebhookURL:         "",
			WebhookRateLimitMs: 500,
			BufferSize:         64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values
//  2. Config file: optional YAML file (if present)
//  3. Environment variables: override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated slices.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars arrive as strings but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envAliases maps the recognized environment variable names onto nested
// configuration paths. Unknown variables are ignored so unrelated process
// environment never leaks into the configuration.
var envAliases = map[string]string{
	// Key material
	"TRANSACTION_KEY": "keys.transaction_key",
	"BACKUP_KEY":      "keys.backup_key",

	// Anomaly thresholds
	"LARGE_TXN_THRESHOLD":      "anomaly.large_txn_threshold",
	"RAPID_TXN_WINDOW_SECONDS": "anomaly.rapid_txn_window_seconds",
	"RAPID_TXN_THRESHOLD":      "anomaly.rapid_txn_threshold",

	// Backup scheduler
	"BACKUP_ENABLED":     "backup.enabled",
	"BACKUP_SCHEDULE":    "backup.schedule",
	"BACKUP_TIMEZONE":    "backup.timezone",
	"BACKUP_DIR":         "backup.dir",
	"BACKUP_RUN_TIMEOUT": "backup.run_timeout",

	// Alert forwarding
	"ALERT_WEBHOOK_URL":           "alerts.webhook_url",
	"ALERT_WEBHOOK_RATE_LIMIT_MS": "alerts.webhook_rate_limit_ms",
	"ALERT_BUFFER_SIZE":           "alerts.buffer_size",

	// Server
	"HTTP_HOST":         "server.host",
	"HTTP_PORT":         "server.port",
	"HTTP_TIMEOUT":      "server.timeout",
	"CORS_ORIGINS":      "server.cors_origins",
	"RATE_LIMIT_REQS":   "server.rate_limit_reqs",
	"RATE_LIMIT_WINDOW": "server.rate_limit_window",

	// Database
	"DUCKDB_PATH":       "database.path",
	"DUCKDB_MAX_MEMORY": "database.max_memory",
	"DUCKDB_THREADS":    "database.threads",

	// Logging
	"LOG_LEVEL":  "logging.level",
	"LOG_FORMAT": "logging.format",
	"LOG_CALLER": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config
// paths. Returning an empty string skips the variable.
func envTransformFunc(key string) string {
	if path, ok := envAliases[strings.ToUpper(key)]; ok {
		return path
	}
	return ""
}
