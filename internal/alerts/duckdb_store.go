// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

package alerts

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ledgerlock/ledgerlock/internal/logging"
)

// DuckDBStore implements Store using DuckDB for persistent storage.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore creates a new DuckDB-backed alert store.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateTable creates the admin_alerts table if it doesn't exist.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS admin_alerts (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata JSON,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_alerts_type ON admin_alerts(type);
		CREATE INDEX IF NOT EXISTS idx_alerts_created ON admin_alerts(created_at DESC);
	`

	for _, stmt := range strings.Split(query, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	logging.Info().Msg("admin alerts table created/verified")
	return nil
}

// SaveAlert persists a new alert.
func (s *DuckDBStore) SaveAlert(ctx context.Context, alert *AdminAlert) error {
	if alert == nil {
		return fmt.Errorf("alert cannot be nil")
	}

	var metadataStr *string
	if len(alert.Metadata) > 0 {
		m := string(alert.Metadata)
		metadataStr = &m
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_alerts (id, type, severity, message, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		alert.ID,
		string(alert.Type),
		string(alert.Severity),
		alert.Message,
		metadataStr,
		alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}

	return nil
}

// ListAlerts retrieves alerts with optional filtering, newest first.
func (s *DuckDBStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]AdminAlert, error) {
	var (
		conditions []string
		args       []interface{}
	)

	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		conditions = append(conditions, fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Since != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, *filter.Since)
	}
	if filter.Until != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, *filter.Until)
	}

	query := "SELECT id, type, severity, message, CAST(metadata AS VARCHAR) AS metadata, created_at FROM admin_alerts"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var result []AdminAlert
	for rows.Next() {
		var (
			alert       AdminAlert
			alertType   string
			severity    string
			metadataStr sql.NullString
		)
		if err := rows.Scan(&alert.ID, &alertType, &severity, &alert.Message, &metadataStr, &alert.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alert.Type = AlertType(alertType)
		alert.Severity = Severity(severity)
		if metadataStr.Valid && metadataStr.String != "" {
			alert.Metadata = []byte(metadataStr.String)
		}
		result = append(result, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}

	return result, nil
}
