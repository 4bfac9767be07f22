// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestSanitizeOwnerID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"short", "owner1", "***"},
		{"exactly eight", "12345678", "***"},
		{"long", "owner-12345678", "owne...5678"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeOwnerID(tt.input); got != tt.want {
				t.Errorf("SanitizeOwnerID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeCardNumber(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "4111111111111111", "****1111"},
		{"with dashes", "4111-1111-1111-1234", "****1234"},
		{"too short", "123", "****"},
		{"empty", "", "****"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeCardNumber(tt.input); got != tt.want {
				t.Errorf("SanitizeCardNumber(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"normal", "john.doe@example.com", "jo***@example.com"},
		{"short local part", "jo@example.com", "***@example.com"},
		{"no at sign", "not-an-email", "***"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeEmail(tt.input); got != tt.want {
				t.Errorf("SanitizeEmail(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeErrorCollapsesSensitiveMessages(t *testing.T) {
	sensitive := []string{
		"invalid key size",
		"plaintext too large",
		"payload decode failed",
		"card validation error",
		"bad CVV check",
		"secret rotation failed",
		"password mismatch",
	}

	for _, msg := range sensitive {
		if got := SanitizeError(msg); got != "internal processing error" {
			t.Errorf("SanitizeError(%q) = %q, want generic message", msg, got)
		}
	}
}

func TestSanitizeErrorTruncatesLongMessages(t *testing.T) {
	long := strings.Repeat("x", 300)
	got := SanitizeError(long)
	if len(got) != 203 { // 200 chars + "..."
		t.Errorf("expected truncation to 203 chars, got %d", len(got))
	}
}

func TestSanitizeErrorPassesBenignMessages(t *testing.T) {
	msg := "connection refused"
	if got := SanitizeError(msg); got != msg {
		t.Errorf("SanitizeError(%q) = %q, want unchanged", msg, got)
	}
}

func TestAuditLoggerNeverLogsRawOwner(t *testing.T) {
	var buf bytes.Buffer
	audit := NewAuditLoggerWithLogger(NewTestLogger(&buf))

	audit.LogTransaction("transaction_created", TransactionSummary{
		TransactionID: "txn-1",
		OwnerID:       "owner-sensitive-id",
		Amount:        42.50,
		Currency:      "USD",
		Status:        "pending",
		CreatedAt:     time.Now().UTC(),
	})

	out := buf.String()
	if strings.Contains(out, "owner-sensitive-id") {
		t.Error("audit log contains unmasked owner id")
	}
	if !strings.Contains(out, "txn-1") {
		t.Error("audit log missing transaction id")
	}
}

func TestAuditLoggerSanitizesFailureErrors(t *testing.T) {
	var buf bytes.Buffer
	audit := NewAuditLoggerWithLogger(NewTestLogger(&buf))

	audit.LogTransactionFailure("encryption", TransactionSummary{
		OwnerID: "owner-sensitive-id",
		Amount:  10,
	}, "invalid key size for payload")

	out := buf.String()
	if strings.Contains(out, "invalid key size") {
		t.Error("audit log contains raw error mentioning key material")
	}
	if !strings.Contains(out, "internal processing error") {
		t.Error("audit log missing sanitized error")
	}
}
