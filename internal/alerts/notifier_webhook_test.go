// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

package alerts

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func testAlert() *AdminAlert {
	return &AdminAlert{
		ID:        "alert-1",
		Type:      TypeLargeTransaction,
		Severity:  SeverityWarning,
		Message:   "transaction exceeds threshold",
		CreatedAt: time.Now().UTC(),
	}
}

func TestWebhookNotifierSend(t *testing.T) {
	var (
		mu       sync.Mutex
		body     []byte
		authHdr  string
		ctypeHdr string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		body, _ = io.ReadAll(r.Body)
		authHdr = r.Header.Get("Authorization")
		ctypeHdr = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(WebhookConfig{
		WebhookURL:  server.URL,
		Headers:     map[string]string{"Authorization": "Bearer token"},
		Enabled:     true,
		RateLimitMs: 1,
	})

	if err := n.Send(context.Background(), testAlert()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if ctypeHdr != "application/json" {
		t.Errorf("content type = %q", ctypeHdr)
	}
	if authHdr != "Bearer token" {
		t.Errorf("authorization header = %q", authHdr)
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload.EventType != "admin_alert" || payload.Source != "ledgerlock" {
		t.Errorf("unexpected envelope: %+v", payload)
	}
	if payload.Alert == nil || payload.Alert.ID != "alert-1" {
		t.Error("payload does not carry the alert")
	}
}

func TestWebhookNotifierErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewWebhookNotifier(WebhookConfig{WebhookURL: server.URL, Enabled: true, RateLimitMs: 1})
	if err := n.Send(context.Background(), testAlert()); err == nil {
		t.Fatal("expected error for 5xx response")
	}
}

func TestWebhookNotifierBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls int
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewWebhookNotifier(WebhookConfig{WebhookURL: server.URL, Enabled: true, RateLimitMs: 1})

	for i := 0; i < 8; i++ {
		if err := n.Send(context.Background(), testAlert()); err == nil {
			t.Fatal("expected every delivery to fail")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if calls >= 8 {
		t.Errorf("breaker never opened: %d requests reached the endpoint", calls)
	}
}

func TestWebhookNotifierEnabled(t *testing.T) {
	n := NewWebhookNotifier(WebhookConfig{WebhookURL: "http://example.com/hook", Enabled: true})
	if !n.Enabled() {
		t.Error("notifier with URL should be enabled")
	}

	n.SetEnabled(false)
	if n.Enabled() {
		t.Error("SetEnabled(false) should disable the notifier")
	}

	empty := NewWebhookNotifier(WebhookConfig{Enabled: true})
	if empty.Enabled() {
		t.Error("notifier without URL must report disabled")
	}
}

func TestWebhookNotifierName(t *testing.T) {
	n := NewWebhookNotifier(WebhookConfig{})
	if n.Name() != "webhook" {
		t.Errorf("Name = %q", n.Name())
	}
}
