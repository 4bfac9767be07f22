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
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"

	"github.com/ledgerlock/ledgerlock/internal/logging"
	"github.com/ledgerlock/ledgerlock/internal/metrics"
)

// Forwarder consumes persisted alerts from the in-process channel and
// delivers them to the registered notifiers.
//
// Delivery failures are logged and counted, never propagated: the alert
// already exists in the store, and the transaction path must not observe
// notification problems.
type Forwarder struct {
	router    *message.Router
	notifiers []Notifier
}

// NewForwarder creates a forwarder consuming from subscriber.
func NewForwarder(subscriber message.Subscriber, notifiers []Notifier, logger watermill.LoggerAdapter) (*Forwarder, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: 10 * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)

	f := &Forwarder{
		router:    router,
		notifiers: notifiers,
	}

	router.AddNoPublisherHandler(
		"alert-delivery",
		TopicAdminAlerts,
		subscriber,
		f.deliver,
	)

	return f, nil
}

// deliver fans one alert out to all enabled notifiers.
// It always acks: forwarding is at-most-once per notifier.
func (f *Forwarder) deliver(msg *message.Message) error {
	var alert AdminAlert
	if err := json.Unmarshal(msg.Payload, &alert); err != nil {
		logging.Error().Err(err).Msg("failed to decode forwarded alert")
		return nil
	}

	for _, n := range f.notifiers {
		if !n.Enabled() {
			continue
		}
		if err := n.Send(msg.Context(), &alert); err != nil {
			metrics.AlertForwardFailures.WithLabelValues(n.Name()).Inc()
			logging.Error().
				Err(err).
				Str("notifier", n.Name()).
				Str("alert_id", alert.ID).
				Msg("failed to forward alert")
		}
	}

	return nil
}

// Serve runs the forwarding router until ctx is canceled.
// It implements suture.Service.
func (f *Forwarder) Serve(ctx context.Context) error {
	return f.router.Run(ctx)
}

// Running closes when the router has started and handlers are subscribed.
func (f *Forwarder) Running() <-chan struct{} {
	return f.router.Running()
}
