// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

package anomaly

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ledgerlock/ledgerlock/internal/alerts"
	"github.com/ledgerlock/ledgerlock/internal/ledger"
	"github.com/ledgerlock/ledgerlock/internal/logging"
)

// RapidTransactionsConfig configures the transaction velocity rule.
type RapidTransactionsConfig struct {
	// Window is how far back same-owner transactions are counted.
	Window time.Duration `json:"window"`

	// Threshold is the count strictly above which the rule fires. With
	// the default of 5, the sixth transaction inside the window raises
	// an alert.
	Threshold int  `json:"threshold"`
	Enabled   bool `json:"enabled"`
}

// DefaultRapidTransactionsConfig returns the default rule configuration.
func DefaultRapidTransactionsConfig() RapidTransactionsConfig {
	return RapidTransactionsConfig{
		Window:    5 * time.Minute,
		Threshold: 5,
		Enabled:   true,
	}
}

// RapidTransactionsDetector flags owners creating too many transactions
// inside a sliding window. The count comes from the ledger store, so it
// includes the transaction under inspection.
type RapidTransactionsDetector struct {
	store ledger.Store

	mu     sync.RWMutex
	config RapidTransactionsConfig
}

// NewRapidTransactionsDetector creates the velocity rule backed by the
// ledger store.
func NewRapidTransactionsDetector(store ledger.Store, config RapidTransactionsConfig) *RapidTransactionsDetector {
	defaults := DefaultRapidTransactionsConfig()
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if config.Threshold <= 0 {
		config.Threshold = defaults.Threshold
	}
	return &RapidTransactionsDetector{
		store:  store,
		config: config,
	}
}

// Type returns the detector identifier.
func (d *RapidTransactionsDetector) Type() string {
	return "rapid_transactions"
}

// Enabled returns whether the rule is active.
func (d *RapidTransactionsDetector) Enabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config.Enabled
}

// SetEnabled enables or disables the rule.
func (d *RapidTransactionsDetector) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.config.Enabled = enabled
}

// Check counts same-owner transactions in the trailing window and flags
// the owner when the count exceeds the threshold.
func (d *RapidTransactionsDetector) Check(ctx context.Context, txn *ledger.Transaction) (*Finding, error) {
	d.mu.RLock()
	window := d.config.Window
	threshold := d.config.Threshold
	d.mu.RUnlock()

	since := txn.CreatedAt.Add(-window)
	count, err := d.store.CountForOwnerSince(ctx, txn.OwnerID, since)
	if err != nil {
		return nil, fmt.Errorf("count owner transactions: %w", err)
	}

	if count <= threshold {
		return nil, nil
	}

	return &Finding{
		Type:     alerts.TypeRapidTransactions,
		Severity: alerts.SeverityWarning,
		Message: fmt.Sprintf("%d transactions within %s exceeds velocity threshold %d",
			count, window, threshold),
		Metadata: map[string]interface{}{
			"transactionId": txn.ID,
			"ownerId":       logging.SanitizeOwnerID(txn.OwnerID),
			"count":         count,
			"threshold":     threshold,
			"windowSeconds": int(window.Seconds()),
		},
	}, nil
}
