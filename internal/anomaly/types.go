// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

// Package anomaly inspects newly created transactions against a set of
// pluggable detection rules and raises admin alerts for matches.
package anomaly

import (
	"context"

	"github.com/ledgerlock/ledgerlock/internal/alerts"
	"github.com/ledgerlock/ledgerlock/internal/ledger"
)

// Finding is a single rule match for one transaction.
type Finding struct {
	Type     alerts.AlertType       `json:"type"`
	Severity alerts.Severity        `json:"severity"`
	Message  string                 `json:"message"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Detector is a single anomaly detection rule. Detectors are stateless
// between transactions; any history they need comes from the ledger
// store. Implementations must be safe for concurrent use.
type Detector interface {
	// Type returns a stable identifier for this rule.
	Type() string

	// Check inspects one newly created transaction and returns a
	// finding, or nil when the rule does not match.
	Check(ctx context.Context, txn *ledger.Transaction) (*Finding, error)

	// Enabled returns whether this detector is active.
	Enabled() bool

	// SetEnabled enables or disables the detector.
	SetEnabled(enabled bool)
}
