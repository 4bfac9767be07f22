// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ledgerlock/ledgerlock/internal/alerts"
	"github.com/ledgerlock/ledgerlock/internal/crypto"
	"github.com/ledgerlock/ledgerlock/internal/keys"
	"github.com/ledgerlock/ledgerlock/internal/logging"
	"github.com/ledgerlock/ledgerlock/internal/metrics"
)

// Sentinel errors returned by Submit. Callers map these to HTTP status
// codes; the underlying cause is logged but never returned to clients.
var (
	ErrValidation  = errors.New("transaction validation failed")
	ErrPersistence = errors.New("transaction persistence failed")
	ErrProcessing  = errors.New("transaction processing failed")
)

const (
	defaultCurrency = "USD"

	// persistRetryDelay is the backoff before the single persistence retry.
	persistRetryDelay = 100 * time.Millisecond
)

// CreatedHook is invoked synchronously after a transaction has been
// persisted. The anomaly engine implements this to inspect each new
// transaction before Submit returns.
type CreatedHook interface {
	TransactionCreated(ctx context.Context, txn *Transaction)
}

// Ingestor validates, encrypts, and persists incoming transactions.
type Ingestor struct {
	store    Store
	keyring  *keys.Keyring
	hook     CreatedHook
	recorder alerts.Recorder
	validate *validator.Validate
	audit    *logging.AuditLogger
}

// NewIngestor creates a transaction ingestor. hook and recorder may be
// nil; a nil hook disables anomaly checks, a nil recorder disables
// operational alerts.
func NewIngestor(store Store, keyring *keys.Keyring, hook CreatedHook, recorder alerts.Recorder) *Ingestor {
	return &Ingestor{
		store:    store,
		keyring:  keyring,
		hook:     hook,
		recorder: recorder,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		audit:    logging.NewAuditLogger(),
	}
}

// Submit processes a new transaction: validate, encrypt the sensitive
// payload, persist, append the security log entry, then run anomaly
// checks. Validation failures have no side effects. A missing
// transaction key fails before anything is written.
func (i *Ingestor) Submit(ctx context.Context, req *SubmitRequest, actor string) (*SubmitResult, error) {
	ownerID := strings.TrimSpace(actor)
	if ownerID == "" {
		metrics.TransactionFailures.WithLabelValues("validation").Inc()
		return nil, fmt.Errorf("%w: missing actor", ErrValidation)
	}

	if err := i.validate.Struct(req); err != nil {
		metrics.TransactionFailures.WithLabelValues("validation").Inc()
		i.audit.LogTransactionFailure("validation", logging.TransactionSummary{OwnerID: ownerID, Amount: req.Amount}, err.Error())
		return nil, fmt.Errorf("%w: %s", ErrValidation, validationDetail(err))
	}

	// A transaction without payment and shipping details has nothing to
	// seal; there is no point persisting an empty ciphertext.
	if req.Details.Empty() {
		metrics.TransactionFailures.WithLabelValues("validation").Inc()
		i.audit.LogTransactionFailure("validation", logging.TransactionSummary{OwnerID: ownerID, Amount: req.Amount}, "empty sensitive payload")
		return nil, fmt.Errorf("%w: missing payment and shipping details", ErrValidation)
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	key, err := i.keyring.TransactionKey()
	if err != nil {
		// Fail fast: no ciphertext means nothing to store.
		metrics.TransactionFailures.WithLabelValues("encryption").Inc()
		i.audit.LogTransactionFailure("key_lookup", logging.TransactionSummary{OwnerID: ownerID, Amount: req.Amount}, err.Error())
		return nil, err
	}

	encrypted, err := crypto.SealJSON(&req.Details, key)
	if err != nil {
		metrics.TransactionFailures.WithLabelValues("encryption").Inc()
		i.audit.LogTransactionFailure("encryption", logging.TransactionSummary{OwnerID: ownerID, Amount: req.Amount}, err.Error())
		i.raiseAlert(ctx, alerts.TypeTransactionError, alerts.SeverityCritical,
			"transaction payload encryption failed",
			map[string]interface{}{"ownerId": logging.SanitizeOwnerID(ownerID), "stage": "encryption"})
		return nil, ErrProcessing
	}

	txn := &Transaction{
		ID:               uuid.NewString(),
		OwnerID:          ownerID,
		EncryptedPayload: encrypted,
		Amount:           req.Amount,
		Currency:         currency,
		Status:           StatusPending,
		PaymentMethod:    req.PaymentMethod,
		Metadata:         req.Metadata,
		CreatedAt:        time.Now().UTC(),
	}

	if err := i.persistWithRetry(ctx, txn); err != nil {
		metrics.TransactionFailures.WithLabelValues("persistence").Inc()
		i.audit.LogTransactionFailure("persistence", logging.TransactionSummary{
			TransactionID: txn.ID, OwnerID: ownerID, Amount: txn.Amount, Currency: txn.Currency,
		}, err.Error())
		i.raiseAlert(ctx, alerts.TypeTransactionError, alerts.SeverityCritical,
			"transaction persistence failed",
			map[string]interface{}{"ownerId": logging.SanitizeOwnerID(ownerID), "stage": "persistence"})
		return nil, ErrPersistence
	}

	metrics.TransactionsIngested.Inc()
	i.audit.LogTransaction("transaction_created", logging.TransactionSummary{
		TransactionID: txn.ID,
		OwnerID:       txn.OwnerID,
		Amount:        txn.Amount,
		Currency:      txn.Currency,
		Status:        string(txn.Status),
		CreatedAt:     txn.CreatedAt,
	})

	// The transaction is already durable; a security log failure is
	// surfaced as an alert rather than failing the submission.
	entry := &SecurityLogEntry{
		ID:            uuid.NewString(),
		TransactionID: txn.ID,
		Action:        ActionTransactionCreated,
		OwnerID:       txn.OwnerID,
		Actor:         ownerID,
		Amount:        txn.Amount,
		CreatedAt:     time.Now().UTC(),
	}
	if err := i.store.AppendSecurityLog(ctx, entry); err != nil {
		metrics.TransactionFailures.WithLabelValues("security_log").Inc()
		i.audit.LogTransactionFailure("security_log", logging.TransactionSummary{
			TransactionID: txn.ID, OwnerID: ownerID, Amount: txn.Amount, Currency: txn.Currency,
		}, err.Error())
		i.raiseAlert(ctx, alerts.TypeTransactionError, alerts.SeverityWarning,
			"security log append failed",
			map[string]interface{}{"transactionId": txn.ID, "stage": "security_log"})
	}

	if i.hook != nil {
		i.hook.TransactionCreated(ctx, txn)
	}

	return &SubmitResult{TransactionID: txn.ID}, nil
}

// persistWithRetry attempts the insert, retrying once after a short
// backoff on failure.
func (i *Ingestor) persistWithRetry(ctx context.Context, txn *Transaction) error {
	err := i.store.InsertTransaction(ctx, txn)
	if err == nil {
		return nil
	}

	logging.Warn().Err(err).Str("transaction_id", txn.ID).Msg("Transaction insert failed, retrying once")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(persistRetryDelay):
	}

	return i.store.InsertTransaction(ctx, txn)
}

// Reveal decrypts the sensitive payload of a stored transaction for an
// audited administrative lookup. The access is recorded in the security
// log before the plaintext is returned.
func (i *Ingestor) Reveal(ctx context.Context, transactionID, actor string) (*SensitivePayload, error) {
	txn, err := i.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	key, err := i.keyring.TransactionKey()
	if err != nil {
		return nil, err
	}

	var payload SensitivePayload
	if err := crypto.OpenJSON(txn.EncryptedPayload, key, &payload); err != nil {
		return nil, err
	}

	entry := &SecurityLogEntry{
		ID:            uuid.NewString(),
		TransactionID: txn.ID,
		Action:        ActionPayloadRevealed,
		OwnerID:       txn.OwnerID,
		Actor:         actor,
		Amount:        txn.Amount,
		CreatedAt:     time.Now().UTC(),
	}
	if err := i.store.AppendSecurityLog(ctx, entry); err != nil {
		// Reveal without an audit record is not acceptable.
		return nil, fmt.Errorf("security log append: %w", err)
	}

	return &payload, nil
}

// UpdateStatus transitions a transaction to a new status and records
// the change in the security log.
func (i *Ingestor) UpdateStatus(ctx context.Context, transactionID string, status Status, actor string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, status)
	}

	if err := i.store.UpdateStatus(ctx, transactionID, status); err != nil {
		return err
	}

	entry := &SecurityLogEntry{
		ID:            uuid.NewString(),
		TransactionID: transactionID,
		Action:        ActionStatusChanged,
		Actor:         actor,
		Detail:        string(status),
		CreatedAt:     time.Now().UTC(),
	}
	if err := i.store.AppendSecurityLog(ctx, entry); err != nil {
		logging.Warn().Err(err).Str("transaction_id", transactionID).Msg("Security log append failed for status change")
	}

	return nil
}

// raiseAlert records an operational alert, swallowing recorder errors.
func (i *Ingestor) raiseAlert(ctx context.Context, alertType alerts.AlertType, severity alerts.Severity, message string, metadata map[string]interface{}) {
	if i.recorder == nil {
		return
	}
	if _, err := i.recorder.Record(ctx, alertType, severity, message, metadata); err != nil {
		logging.Warn().Err(err).Str("alert_type", string(alertType)).Msg("Failed to record alert")
	}
}

// validationDetail flattens validator errors into a short field list
// safe to return to clients.
func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return "invalid fields: " + strings.Join(fields, ", ")
}
