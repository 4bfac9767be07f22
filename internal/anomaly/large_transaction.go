// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

package anomaly

import (
	"context"
	"fmt"
	"sync"

	"github.com/ledgerlock/ledgerlock/internal/alerts"
	"github.com/ledgerlock/ledgerlock/internal/ledger"
	"github.com/ledgerlock/ledgerlock/internal/logging"
)

// LargeTransactionConfig configures the large transaction rule.
type LargeTransactionConfig struct {
	// Threshold is the amount strictly above which a transaction is
	// flagged. A transaction of exactly Threshold does not fire.
	Threshold float64 `json:"threshold"`
	Enabled   bool    `json:"enabled"`
}

// DefaultLargeTransactionConfig returns the default rule configuration.
func DefaultLargeTransactionConfig() LargeTransactionConfig {
	return LargeTransactionConfig{
		Threshold: 10000,
		Enabled:   true,
	}
}

// LargeTransactionDetector flags transactions whose amount exceeds a
// fixed threshold.
type LargeTransactionDetector struct {
	mu     sync.RWMutex
	config LargeTransactionConfig
}

// NewLargeTransactionDetector creates the large transaction rule.
func NewLargeTransactionDetector(config LargeTransactionConfig) *LargeTransactionDetector {
	if config.Threshold <= 0 {
		config.Threshold = DefaultLargeTransactionConfig().Threshold
	}
	return &LargeTransactionDetector{config: config}
}

// Type returns the detector identifier.
func (d *LargeTransactionDetector) Type() string {
	return "large_transaction"
}

// Enabled returns whether the rule is active.
func (d *LargeTransactionDetector) Enabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config.Enabled
}

// SetEnabled enables or disables the rule.
func (d *LargeTransactionDetector) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.config.Enabled = enabled
}

// Check flags txn when its amount is strictly greater than the threshold.
func (d *LargeTransactionDetector) Check(_ context.Context, txn *ledger.Transaction) (*Finding, error) {
	d.mu.RLock()
	threshold := d.config.Threshold
	d.mu.RUnlock()

	if txn.Amount <= threshold {
		return nil, nil
	}

	return &Finding{
		Type:     alerts.TypeLargeTransaction,
		Severity: alerts.SeverityWarning,
		Message: fmt.Sprintf("transaction of %.2f %s exceeds large transaction threshold %.2f",
			txn.Amount, txn.Currency, threshold),
		Metadata: map[string]interface{}{
			"transactionId": txn.ID,
			"ownerId":       logging.SanitizeOwnerID(txn.OwnerID),
			"amount":        txn.Amount,
			"currency":      txn.Currency,
			"threshold":     threshold,
		},
	}, nil
}
