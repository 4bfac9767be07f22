// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

// Package backup runs scheduled encrypted snapshots of the transaction
// ledger into the object store.
package backup

import (
	"context"
	"time"
)

// SnapshotStatus is the outcome of one backup run.
type SnapshotStatus string

const (
	StatusCompleted SnapshotStatus = "completed"
	StatusFailed    SnapshotStatus = "failed"
)

// Snapshot records one backup run, successful or not.
type Snapshot struct {
	ID string `json:"id"`

	// ObjectKey is where the encrypted archive was written. Empty for
	// failed runs that never reached the object store.
	ObjectKey string `json:"object_key,omitempty"`

	Status      SnapshotStatus `json:"status"`
	RecordCount int            `json:"record_count"`
	SizeBytes   int64          `json:"size_bytes"`

	// Error holds a sanitized failure description for failed runs.
	Error string `json:"error,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// SnapshotStore persists backup run history.
type SnapshotStore interface {
	// SaveSnapshot records one run.
	SaveSnapshot(ctx context.Context, snap *Snapshot) error

	// ListSnapshots returns run history, newest first, at most limit
	// entries (a non-positive limit applies a default).
	ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error)
}
