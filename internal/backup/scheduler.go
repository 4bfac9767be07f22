// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

package backup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/ledgerlock/ledgerlock/internal/alerts"
	"github.com/ledgerlock/ledgerlock/internal/config"
	"github.com/ledgerlock/ledgerlock/internal/crypto"
	"github.com/ledgerlock/ledgerlock/internal/keys"
	"github.com/ledgerlock/ledgerlock/internal/ledger"
	"github.com/ledgerlock/ledgerlock/internal/logging"
	"github.com/ledgerlock/ledgerlock/internal/metrics"
	"github.com/ledgerlock/ledgerlock/internal/storage"
)

// archiveKeyPrefix is where encrypted ledger archives live in the
// object store.
const archiveKeyPrefix = "backups/"

// archive is the plaintext layout of a backup before encryption.
type archive struct {
	Version      int                  `json:"version"`
	CreatedAt    time.Time            `json:"created_at"`
	RecordCount  int                  `json:"record_count"`
	Transactions []ledger.Transaction `json:"transactions"`
}

// Scheduler runs ledger backups on a cron schedule. It owns no
// goroutines of its own; Serve is run under the supervision tree.
type Scheduler struct {
	cfg       config.BackupConfig
	ledger    ledger.Store
	snapshots SnapshotStore
	objects   storage.ObjectStore
	keyring   *keys.Keyring
	recorder  alerts.Recorder

	schedule cron.Schedule
	location *time.Location

	// runMu enforces single-flight: a scheduled run that overlaps a
	// still-executing one is skipped, not queued.
	runMu sync.Mutex
}

// NewScheduler creates the backup scheduler. The cron expression and
// timezone come from cfg and are validated here.
func NewScheduler(
	cfg config.BackupConfig,
	ledgerStore ledger.Store,
	snapshots SnapshotStore,
	objects storage.ObjectStore,
	keyring *keys.Keyring,
	recorder alerts.Recorder,
) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid backup schedule %q: %w", cfg.Schedule, err)
	}

	location := time.UTC
	if cfg.Timezone != "" {
		location, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid backup timezone %q: %w", cfg.Timezone, err)
		}
	}

	return &Scheduler{
		cfg:       cfg,
		ledger:    ledgerStore,
		snapshots: snapshots,
		objects:   objects,
		keyring:   keyring,
		recorder:  recorder,
		schedule:  schedule,
		location:  location,
	}, nil
}

// NextRun returns the next scheduled activation after now.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	return s.schedule.Next(now.In(s.location))
}

// Serve runs the schedule loop until ctx is canceled. Run failures are
// recorded and alerted but never stop the loop.
func (s *Scheduler) Serve(ctx context.Context) error {
	if !s.cfg.Enabled {
		logging.Info().Msg("backup scheduler disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	logging.Info().
		Str("schedule", s.cfg.Schedule).
		Str("timezone", s.location.String()).
		Msg("backup scheduler started")

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		next := s.NextRun(time.Now())
		timer.Reset(time.Until(next))
		logging.Debug().Time("next_run", next).Msg("backup run scheduled")

		select {
		case <-ctx.Done():
			logging.Info().Msg("backup scheduler stopped")
			return ctx.Err()
		case <-timer.C:
			if _, err := s.RunOnce(ctx); err != nil {
				logging.Error().Err(err).Msg("scheduled backup run failed")
			}
		}
	}
}

// RunOnce executes one backup run: read the full ledger, encrypt it
// with the backup key, write it to the object store, and record a
// snapshot. When another run is still in flight it returns nil without
// doing anything.
func (s *Scheduler) RunOnce(ctx context.Context) (*Snapshot, error) {
	if !s.runMu.TryLock() {
		metrics.BackupRuns.WithLabelValues("skipped").Inc()
		logging.Warn().Msg("backup run skipped, previous run still in flight")
		return nil, nil
	}
	defer s.runMu.Unlock()

	runCtx := ctx
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	started := time.Now().UTC()
	snap, err := s.run(runCtx, started)
	duration := time.Since(started)
	metrics.BackupDuration.Observe(duration.Seconds())

	if err != nil {
		metrics.BackupRuns.WithLabelValues("failed").Inc()
		snap = &Snapshot{
			ID:          uuid.NewString(),
			Status:      StatusFailed,
			Error:       logging.SanitizeError(err.Error()),
			StartedAt:   started,
			CompletedAt: time.Now().UTC(),
		}
		if saveErr := s.snapshots.SaveSnapshot(ctx, snap); saveErr != nil {
			logging.Error().Err(saveErr).Msg("failed to record failed backup snapshot")
		}
		s.alertFailure(ctx, snap)
		return snap, err
	}

	metrics.BackupRuns.WithLabelValues("completed").Inc()
	if saveErr := s.snapshots.SaveSnapshot(ctx, snap); saveErr != nil {
		logging.Error().Err(saveErr).Msg("failed to record backup snapshot")
	}

	logging.Info().
		Str("object_key", snap.ObjectKey).
		Int("record_count", snap.RecordCount).
		Int64("size_bytes", snap.SizeBytes).
		Dur("duration", duration).
		Msg("backup completed")

	return snap, nil
}

// run produces and stores one encrypted archive.
func (s *Scheduler) run(ctx context.Context, started time.Time) (*Snapshot, error) {
	key, err := s.keyring.BackupKey()
	if err != nil {
		return nil, err
	}

	txns, err := s.ledger.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	arc := archive{
		Version:      1,
		CreatedAt:    started,
		RecordCount:  len(txns),
		Transactions: txns,
	}
	plaintext, err := json.Marshal(arc)
	if err != nil {
		return nil, fmt.Errorf("marshal archive: %w", err)
	}

	ciphertext, err := crypto.Seal(plaintext, key)
	if err != nil {
		return nil, fmt.Errorf("encrypt archive: %w", err)
	}

	objectKey := fmt.Sprintf("%stransactions_%d.enc", archiveKeyPrefix, started.UnixMilli())
	meta := storage.ObjectMetadata{
		Encrypted:   true,
		CreatedAt:   started,
		ContentType: "application/json",
	}
	if err := s.objects.Put(ctx, objectKey, []byte(ciphertext), meta); err != nil {
		return nil, fmt.Errorf("store archive: %w", err)
	}

	return &Snapshot{
		ID:          uuid.NewString(),
		ObjectKey:   objectKey,
		Status:      StatusCompleted,
		RecordCount: len(txns),
		SizeBytes:   int64(len(ciphertext)),
		StartedAt:   started,
		CompletedAt: time.Now().UTC(),
	}, nil
}

// Restore decrypts a stored archive and returns its transactions. It
// never writes to the ledger; applying a restore is an operator action.
func (s *Scheduler) Restore(ctx context.Context, objectKey string) ([]ledger.Transaction, error) {
	key, err := s.keyring.BackupKey()
	if err != nil {
		return nil, err
	}

	data, _, err := s.objects.Get(ctx, objectKey)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}

	plaintext, err := crypto.Open(string(data), key)
	if err != nil {
		return nil, err
	}

	var arc archive
	if err := json.Unmarshal(plaintext, &arc); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}

	return arc.Transactions, nil
}

// alertFailure raises a BACKUP_FAILED admin alert for a failed run.
func (s *Scheduler) alertFailure(ctx context.Context, snap *Snapshot) {
	if s.recorder == nil {
		return
	}
	metadata := map[string]interface{}{
		"snapshotId": snap.ID,
		"error":      snap.Error,
		"startedAt":  snap.StartedAt.Format(time.RFC3339),
	}
	if _, err := s.recorder.Record(ctx, alerts.TypeBackupFailed, alerts.SeverityCritical,
		"scheduled ledger backup failed", metadata); err != nil {
		logging.Error().Err(err).Msg("failed to record backup failure alert")
	}
}
