// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

package anomaly

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ledgerlock/ledgerlock/internal/alerts"
	"github.com/ledgerlock/ledgerlock/internal/ledger"
)

// mockRecorder captures recorded alerts.
type mockRecorder struct {
	alertTypes []alerts.AlertType
	messages   []string
	err        error
}

func (r *mockRecorder) Record(_ context.Context, alertType alerts.AlertType, severity alerts.Severity, msg string, _ interface{}) (*alerts.AdminAlert, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.alertTypes = append(r.alertTypes, alertType)
	r.messages = append(r.messages, msg)
	return &alerts.AdminAlert{Type: alertType, Severity: severity, Message: msg}, nil
}

// countStore implements only the ledger call the velocity rule needs.
type countStore struct {
	ledger.Store
	count int
	err   error
}

func (s *countStore) CountForOwnerSince(_ context.Context, _ string, _ time.Time) (int, error) {
	return s.count, s.err
}

// stubDetector returns a fixed finding or error.
type stubDetector struct {
	typ     string
	finding *Finding
	err     error
	enabled bool
	checks  int
}

func (d *stubDetector) Type() string          { return d.typ }
func (d *stubDetector) Enabled() bool         { return d.enabled }
func (d *stubDetector) SetEnabled(e bool)     { d.enabled = e }
func (d *stubDetector) Check(_ context.Context, _ *ledger.Transaction) (*Finding, error) {
	d.checks++
	return d.finding, d.err
}

func sampleTxn(amount float64) *ledger.Transaction {
	return &ledger.Transaction{
		ID:        "txn-1",
		OwnerID:   "owner-123456789",
		Amount:    amount,
		Currency:  "USD",
		CreatedAt: time.Now().UTC(),
	}
}

func TestLargeTransactionDetector(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		amount    float64
		fires     bool
	}{
		{"well below", 10000, 100, false},
		{"exactly at threshold", 10000, 10000, false},
		{"just above", 10000, 10000.01, true},
		{"far above", 10000, 15000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewLargeTransactionDetector(LargeTransactionConfig{Threshold: tt.threshold, Enabled: true})
			finding, err := d.Check(context.Background(), sampleTxn(tt.amount))
			if err != nil {
				t.Fatalf("Check failed: %v", err)
			}
			if (finding != nil) != tt.fires {
				t.Fatalf("fires = %v, want %v", finding != nil, tt.fires)
			}
			if finding != nil {
				if finding.Type != alerts.TypeLargeTransaction {
					t.Errorf("type = %q, want LARGE_TRANSACTION", finding.Type)
				}
				if finding.Metadata["ownerId"] == "owner-123456789" {
					t.Error("finding metadata carries the unmasked owner id")
				}
			}
		})
	}
}

func TestRapidTransactionsDetector(t *testing.T) {
	tests := []struct {
		name  string
		count int
		fires bool
	}{
		{"below threshold", 3, false},
		{"at threshold", 5, false},
		{"sixth transaction fires", 6, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &countStore{count: tt.count}
			d := NewRapidTransactionsDetector(store, DefaultRapidTransactionsConfig())
			finding, err := d.Check(context.Background(), sampleTxn(10))
			if err != nil {
				t.Fatalf("Check failed: %v", err)
			}
			if (finding != nil) != tt.fires {
				t.Fatalf("fires = %v, want %v", finding != nil, tt.fires)
			}
			if finding != nil && finding.Type != alerts.TypeRapidTransactions {
				t.Errorf("type = %q, want RAPID_TRANSACTIONS", finding.Type)
			}
		})
	}
}

func TestRapidTransactionsStoreError(t *testing.T) {
	store := &countStore{err: errors.New("query timeout")}
	d := NewRapidTransactionsDetector(store, DefaultRapidTransactionsConfig())

	finding, err := d.Check(context.Background(), sampleTxn(10))
	if err == nil {
		t.Fatal("expected error from failing store")
	}
	if finding != nil {
		t.Error("no finding may be produced when the count is unknown")
	}
}

func TestEngineRecordsEveryFinding(t *testing.T) {
	recorder := &mockRecorder{}
	engine := NewEngine(recorder)
	engine.RegisterDetector(&stubDetector{typ: "a", enabled: true, finding: &Finding{
		Type: alerts.TypeLargeTransaction, Severity: alerts.SeverityWarning, Message: "large",
	}})
	engine.RegisterDetector(&stubDetector{typ: "b", enabled: true, finding: &Finding{
		Type: alerts.TypeRapidTransactions, Severity: alerts.SeverityWarning, Message: "rapid",
	}})

	engine.TransactionCreated(context.Background(), sampleTxn(20000))

	if len(recorder.alertTypes) != 2 {
		t.Fatalf("expected both findings recorded, got %d", len(recorder.alertTypes))
	}
}

func TestEngineSkipsDisabledDetectors(t *testing.T) {
	recorder := &mockRecorder{}
	engine := NewEngine(recorder)
	disabled := &stubDetector{typ: "a", enabled: false, finding: &Finding{Type: alerts.TypeLargeTransaction}}
	engine.RegisterDetector(disabled)

	engine.TransactionCreated(context.Background(), sampleTxn(20000))

	if disabled.checks != 0 {
		t.Error("disabled detector must not be checked")
	}
	if len(recorder.alertTypes) != 0 {
		t.Error("disabled detector must not produce alerts")
	}
}

func TestEngineSurvivesDetectorError(t *testing.T) {
	recorder := &mockRecorder{}
	engine := NewEngine(recorder)
	engine.RegisterDetector(&stubDetector{typ: "broken", enabled: true, err: errors.New("boom")})
	engine.RegisterDetector(&stubDetector{typ: "ok", enabled: true, finding: &Finding{
		Type: alerts.TypeLargeTransaction, Severity: alerts.SeverityWarning,
	}})

	engine.TransactionCreated(context.Background(), sampleTxn(20000))

	if len(recorder.alertTypes) != 1 {
		t.Fatalf("healthy detector must still record, got %d alerts", len(recorder.alertTypes))
	}
}

func TestEngineReplacesDetectorByType(t *testing.T) {
	engine := NewEngine(&mockRecorder{})
	first := &stubDetector{typ: "rule", enabled: true}
	second := &stubDetector{typ: "rule", enabled: true}
	engine.RegisterDetector(first)
	engine.RegisterDetector(second)

	if got := len(engine.Detectors()); got != 1 {
		t.Fatalf("detector count = %d, want 1", got)
	}

	engine.TransactionCreated(context.Background(), sampleTxn(10))
	if first.checks != 0 || second.checks != 1 {
		t.Error("registration must replace the detector with the same type")
	}
}
