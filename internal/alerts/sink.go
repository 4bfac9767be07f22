// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/ledgerlock/ledgerlock/internal/logging"
	"github.com/ledgerlock/ledgerlock/internal/metrics"
)

// TopicAdminAlerts is the in-process topic alerts are published on after
// persistence. The Forwarder consumes it and delivers to notifiers.
const TopicAdminAlerts = "alerts.admin"

// Sink persists admin alerts and hands them to the forwarding channel.
// Publishing is best effort: a publish failure loses the forward, never the
// persisted record, and is logged rather than returned.
type Sink struct {
	store     Store
	publisher message.Publisher
}

// NewSink creates a new alert sink. publisher may be nil, in which case
// alerts are persisted but not forwarded.
func NewSink(store Store, publisher message.Publisher) *Sink {
	return &Sink{
		store:     store,
		publisher: publisher,
	}
}

// Record persists an alert and publishes it for forwarding.
// metadata must already be sanitized by the caller; it is serialized as-is.
func (s *Sink) Record(ctx context.Context, alertType AlertType, severity Severity, msg string, metadata interface{}) (*AdminAlert, error) {
	var metadataJSON json.RawMessage
	if metadata != nil {
		data, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal alert metadata: %w", err)
		}
		metadataJSON = data
	}

	alert := &AdminAlert{
		ID:        uuid.NewString(),
		Type:      alertType,
		Severity:  severity,
		Message:   msg,
		Metadata:  metadataJSON,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.SaveAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to persist alert: %w", err)
	}

	metrics.AlertsRaised.WithLabelValues(string(alertType)).Inc()
	logging.Info().
		Str("alert_id", alert.ID).
		Str("type", string(alertType)).
		Str("severity", string(severity)).
		Msg("admin alert recorded")

	s.publish(alert)

	return alert, nil
}

// publish hands the alert to the forwarding channel, best effort.
func (s *Sink) publish(alert *AdminAlert) {
	if s.publisher == nil {
		return
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		logging.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to encode alert for forwarding")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := s.publisher.Publish(TopicAdminAlerts, msg); err != nil {
		logging.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert for forwarding")
	}
}
