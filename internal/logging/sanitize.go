// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

package logging

import (
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TransactionSummary is the only transaction shape allowed into a log line.
// It carries ids, amount, currency, status and timestamps - never the raw
// payload, never ciphertext internals, never key material.
type TransactionSummary struct {
	TransactionID string
	OwnerID       string
	Amount        float64
	Currency      string
	Status        string
	CreatedAt     time.Time
}

// AuditLogger logs transaction lifecycle events with automatic sanitization.
type AuditLogger struct {
	logger zerolog.Logger
}

// NewAuditLogger creates an audit logger scoped to the ledger component.
func NewAuditLogger() *AuditLogger {
	return &AuditLogger{
		logger: With().Str("component", "ledger").Logger(),
	}
}

// NewAuditLoggerWithLogger creates an audit logger with a custom zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewAuditLoggerWithLogger(logger zerolog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger.With().Str("component", "ledger").Logger(),
	}
}

// LogTransaction emits a sanitized record of a transaction event.
func (l *AuditLogger) LogTransaction(event string, summary TransactionSummary) {
	l.logger.Info().
		Str("event", event).
		Str("transaction_id", summary.TransactionID).
		Str("owner_id", SanitizeOwnerID(summary.OwnerID)).
		Float64("amount", summary.Amount).
		Str("currency", summary.Currency).
		Str("status", summary.Status).
		Time("created_at", summary.CreatedAt).
		Msg("")
}

// LogTransactionFailure emits a sanitized record of a failed operation.
// The error string passes through SanitizeError so payload fragments or key
// material mentioned in wrapped errors never reach the log.
func (l *AuditLogger) LogTransactionFailure(event string, summary TransactionSummary, errMsg string) {
	l.logger.Error().
		Str("event", event).
		Str("transaction_id", summary.TransactionID).
		Str("owner_id", SanitizeOwnerID(summary.OwnerID)).
		Float64("amount", summary.Amount).
		Str("currency", summary.Currency).
		Str("error", SanitizeError(errMsg)).
		Msg("")
}

// SanitizeOwnerID masks an owner identifier for privacy.
// Example: "owner-12345678" -> "owne...5678"
func SanitizeOwnerID(ownerID string) string {
	if ownerID == "" {
		return ""
	}
	if len(ownerID) <= 8 {
		return "***"
	}
	return ownerID[:4] + "..." + ownerID[len(ownerID)-4:]
}

// SanitizeCardNumber masks a card number, keeping only the last four digits.
// Example: "4111111111111111" -> "****1111"
func SanitizeCardNumber(cardNumber string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, cardNumber)

	if len(digits) < 4 {
		return "****"
	}
	return "****" + digits[len(digits)-4:]
}

// SanitizeEmail masks an email address.
// Example: "john.doe@example.com" -> "jo***@example.com"
func SanitizeEmail(email string) string {
	if email == "" {
		return ""
	}

	atIndex := strings.Index(email, "@")
	if atIndex <= 0 {
		return "***"
	}

	localPart := email[:atIndex]
	domain := email[atIndex:]

	if len(localPart) <= 2 {
		return "***" + domain
	}
	return localPart[:2] + "***" + domain
}

// SanitizeError removes potentially sensitive information from error messages.
// Errors that mention keys, payloads or card data collapse to a generic
// message; everything else is truncated.
func SanitizeError(err string) string {
	sensitivePatterns := []string{
		"key",
		"plaintext",
		"payload",
		"card",
		"cvv",
		"secret",
		"password",
	}

	lowerErr := strings.ToLower(err)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lowerErr, pattern) {
			return "internal processing error"
		}
	}

	return truncateString(err, 200)
}

// truncateString truncates a string to a maximum length.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
