// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

package backup

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ledgerlock/ledgerlock/internal/logging"
)

const defaultSnapshotListLimit = 50

// DuckDBStore implements SnapshotStore using DuckDB.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore creates a new DuckDB-backed snapshot store.
// The caller is responsible for calling CreateTable during initialization.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateTable creates the backup_snapshots table if missing.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS backup_snapshots (
			id TEXT PRIMARY KEY,
			object_key TEXT,
			status TEXT NOT NULL,
			record_count INTEGER NOT NULL,
			size_bytes BIGINT NOT NULL,
			error TEXT,
			started_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_snapshots_started ON backup_snapshots(started_at DESC);
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

	logging.Info().Msg("backup snapshot table created/verified")
	return nil
}

// SaveSnapshot records one backup run.
func (s *DuckDBStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO backup_snapshots (
			id, object_key, status, record_count, size_bytes, error, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID,
		snap.ObjectKey,
		string(snap.Status),
		snap.RecordCount,
		snap.SizeBytes,
		snap.Error,
		snap.StartedAt,
		snap.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns run history, newest first.
func (s *DuckDBStore) ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = defaultSnapshotListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, object_key, status, record_count, size_bytes, error, started_at, completed_at
		FROM backup_snapshots
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var (
			snap      Snapshot
			status    string
			objectKey sql.NullString
			errText   sql.NullString
		)
		if err := rows.Scan(
			&snap.ID,
			&objectKey,
			&status,
			&snap.RecordCount,
			&snap.SizeBytes,
			&errText,
			&snap.StartedAt,
			&snap.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap.Status = SnapshotStatus(status)
		snap.ObjectKey = objectKey.String
		snap.Error = errText.String
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snaps, nil
}
