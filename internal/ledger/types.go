// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

// Package ledger implements transaction ingestion and the transaction
// ledger itself.
//
// A Transaction keeps amount and currency in plaintext so they stay
// queryable and alertable; every other customer-sensitive field lives only
// inside EncryptedPayload. Transactions are immutable after creation except
// for status transitions driven by the external payment processor.
package ledger

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Transaction is a persisted ledger record.
type Transaction struct {
	ID string `json:"id"`

	// OwnerID identifies the customer the transaction belongs to.
	OwnerID string `json:"owner_id"`

	// EncryptedPayload is the opaque ciphertext of the full sensitive
	// payload (shipping and payment details).
	EncryptedPayload string `json:"encrypted_payload"`

	// Amount and Currency are deliberately plaintext so the velocity and
	// size rules can evaluate them without decryption.
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`

	Status        Status `json:"status"`
	PaymentMethod string `json:"payment_method"`

	// Metadata holds non-sensitive annotations only.
	Metadata map[string]string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// SecurityLogEntry is one append-only audit record. Every transaction
// creation, payload reveal, and status change writes one.
type SecurityLogEntry struct {
	ID            string    `json:"id"`
	Action        string    `json:"action"`
	TransactionID string    `json:"transaction_id"`
	OwnerID       string    `json:"owner_id"`
	Actor         string    `json:"actor"`
	Amount        float64   `json:"amount"`
	Detail        string    `json:"detail,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Security log actions.
const (
	ActionTransactionCreated = "transaction_created"
	ActionPayloadRevealed    = "payload_revealed"
	ActionStatusChanged      = "status_changed"
)

// SensitivePayload carries the customer-sensitive transaction fields. It is
// serialized and sealed as a whole; none of these fields is ever persisted
// or logged in plaintext.
type SensitivePayload struct {
	CardNumber      string `json:"card_number,omitempty"`
	CardHolder      string `json:"card_holder,omitempty"`
	ExpiryMonth     int    `json:"expiry_month,omitempty"`
	ExpiryYear      int    `json:"expiry_year,omitempty"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	ShippingAddress string `json:"shipping_address,omitempty"`
	BillingAddress  string `json:"billing_address,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// Empty reports whether the payload carries no sensitive fields at all.
func (p SensitivePayload) Empty() bool {
	return p == SensitivePayload{}
}

// SubmitRequest is the caller-facing input for transaction submission.
type SubmitRequest struct {
	Amount        float64           `json:"amount" validate:"required,gt=0"`
	Currency      string            `json:"currency" validate:"omitempty,len=3,alpha"`
	PaymentMethod string            `json:"payment_method" validate:"required"`
	Details       SensitivePayload  `json:"details"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// SubmitResult is returned to the caller on success.
type SubmitResult struct {
	TransactionID string `json:"transactionId"`
}

// TransactionFilter selects transactions for the admin listing.
type TransactionFilter struct {
	OwnerID string     `json:"owner_id,omitempty"`
	Since   *time.Time `json:"since,omitempty"`
	Limit   int        `json:"limit,omitempty"`
}

// Store defines transaction ledger persistence.
type Store interface {
	// InsertTransaction persists a new transaction record.
	InsertTransaction(ctx context.Context, txn *Transaction) error

	// AppendSecurityLog appends an audit entry. Independent of the
	// transaction write; no cross-record atomicity is provided.
	AppendSecurityLog(ctx context.Context, entry *SecurityLogEntry) error

	// GetTransaction retrieves a transaction by id.
	GetTransaction(ctx context.Context, id string) (*Transaction, error)

	// CountForOwnerSince counts transactions owned by ownerID with
	// created_at in [since, now], inclusive.
	CountForOwnerSince(ctx context.Context, ownerID string, since time.Time) (int, error)

	// ListAll enumerates the full ledger, oldest first. Used by backups.
	ListAll(ctx context.Context) ([]Transaction, error)

	// ListTransactions enumerates transactions matching filter, newest
	// first. A zero filter lists everything up to the default limit.
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)

	// UpdateStatus applies a status transition from the external payment
	// processor.
	UpdateStatus(ctx context.Context, id string, status Status) error
}

// marshalMetadata encodes metadata for storage, defaulting to an empty object.
func marshalMetadata(metadata map[string]string) string {
	if len(metadata) == 0 {
		return "{}"
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "{}"
	}
	return string(data)
}
