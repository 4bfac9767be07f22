// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

package anomaly

import (
	"context"
	"sync"

	"github.com/ledgerlock/ledgerlock/internal/alerts"
	"github.com/ledgerlock/ledgerlock/internal/ledger"
	"github.com/ledgerlock/ledgerlock/internal/logging"
)

// Engine runs registered detectors against each new transaction. It
// implements the ledger's created hook, so checks run synchronously on
// the submission path; detector failures are logged and never fail the
// transaction.
type Engine struct {
	recorder alerts.Recorder

	mu        sync.RWMutex
	detectors map[string]Detector
}

// NewEngine creates a detection engine that raises alerts through recorder.
func NewEngine(recorder alerts.Recorder) *Engine {
	return &Engine{
		recorder:  recorder,
		detectors: make(map[string]Detector),
	}
}

// RegisterDetector adds a detector to the engine. Registering a second
// detector with the same type replaces the first.
func (e *Engine) RegisterDetector(d Detector) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.detectors[d.Type()] = d
	logging.Info().Str("detector", d.Type()).Bool("enabled", d.Enabled()).Msg("Anomaly detector registered")
}

// Detectors returns the registered detectors.
func (e *Engine) Detectors() []Detector {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Detector, 0, len(e.detectors))
	for _, d := range e.detectors {
		out = append(out, d)
	}
	return out
}

// TransactionCreated runs every enabled detector against txn. Each
// match becomes one admin alert; there is no deduplication, the same
// transaction can raise several alert types.
func (e *Engine) TransactionCreated(ctx context.Context, txn *ledger.Transaction) {
	e.mu.RLock()
	detectors := make([]Detector, 0, len(e.detectors))
	for _, d := range e.detectors {
		detectors = append(detectors, d)
	}
	e.mu.RUnlock()

	for _, d := range detectors {
		if !d.Enabled() {
			continue
		}

		finding, err := d.Check(ctx, txn)
		if err != nil {
			logging.Warn().Err(err).
				Str("detector", d.Type()).
				Str("transaction_id", txn.ID).
				Msg("Anomaly check failed")
			continue
		}
		if finding == nil {
			continue
		}

		if _, err := e.recorder.Record(ctx, finding.Type, finding.Severity, finding.Message, finding.Metadata); err != nil {
			logging.Error().Err(err).
				Str("detector", d.Type()).
				Str("transaction_id", txn.ID).
				Msg("Failed to record anomaly alert")
		}
	}
}
