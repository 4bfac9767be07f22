// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

package websocket

import (
	"context"

	"github.com/ledgerlock/ledgerlock/internal/alerts"
)

// Notifier delivers admin alerts to connected dashboard clients through
// the hub. It implements alerts.Notifier.
type Notifier struct {
	hub *Hub
}

// NewNotifier creates a hub-backed alert notifier.
func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

// Name returns the notifier name.
func (n *Notifier) Name() string {
	return "websocket"
}

// Enabled is always true; delivery to zero clients is a no-op.
func (n *Notifier) Enabled() bool {
	return true
}

// Send broadcasts the alert. It never blocks and never fails; slow
// clients are handled by the hub.
func (n *Notifier) Send(_ context.Context, alert *alerts.AdminAlert) error {
	n.hub.BroadcastJSON(MessageTypeAlert, alert)
	return nil
}
