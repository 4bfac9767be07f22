// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/ledgerlock/ledgerlock/internal/logging"
)

// ErrNotFound is returned when a transaction does not exist.
var ErrNotFound = errors.New("transaction not found")

// DuckDBStore implements Store using DuckDB for persistent storage.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore creates a new DuckDB-backed ledger store.
// The caller is responsible for calling CreateTables during initialization.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateTables creates the transactions and security_log tables if missing.
func (s *DuckDBStore) CreateTables(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			encrypted_payload TEXT NOT NULL,
			amount DOUBLE NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			payment_method TEXT NOT NULL,
			metadata JSON,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_txn_owner_created ON transactions(owner_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_txn_created ON transactions(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_txn_status ON transactions(status);

		CREATE TABLE IF NOT EXISTS security_log (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			transaction_id TEXT NOT NULL,
			owner_id TEXT NOT NULL,
			actor TEXT NOT NULL,
			amount DOUBLE NOT NULL,
			detail TEXT,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_seclog_txn ON security_log(transaction_id);
		CREATE INDEX IF NOT EXISTS idx_seclog_created ON security_log(created_at DESC);
	`

	for _, stmt := range strings.Split(query, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	logging.Info().Msg("ledger tables created/verified")
	return nil
}

// InsertTransaction persists a new transaction record.
func (s *DuckDBStore) InsertTransaction(ctx context.Context, txn *Transaction) error {
	if txn == nil {
		return fmt.Errorf("transaction cannot be nil")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, owner_id, encrypted_payload, amount, currency,
			status, payment_method, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID,
		txn.OwnerID,
		txn.EncryptedPayload,
		txn.Amount,
		txn.Currency,
		string(txn.Status),
		txn.PaymentMethod,
		marshalMetadata(txn.Metadata),
		txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	return nil
}

// AppendSecurityLog appends an audit entry for a created transaction.
func (s *DuckDBStore) AppendSecurityLog(ctx context.Context, entry *SecurityLogEntry) error {
	if entry == nil {
		return fmt.Errorf("security log entry cannot be nil")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO security_log (id, action, transaction_id, owner_id, actor, amount, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Action,
		entry.TransactionID,
		entry.OwnerID,
		entry.Actor,
		entry.Amount,
		entry.Detail,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append security log: %w", err)
	}

	return nil
}

// GetTransaction retrieves a transaction by id.
func (s *DuckDBStore) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, encrypted_payload, amount, currency,
		       status, payment_method, CAST(metadata AS VARCHAR) AS metadata, created_at
		FROM transactions WHERE id = ?`, id)

	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// CountForOwnerSince counts same-owner transactions created at or after since.
func (s *DuckDBStore) CountForOwnerSince(ctx context.Context, ownerID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions
		WHERE owner_id = ? AND created_at >= ?`,
		ownerID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// ListAll enumerates the full ledger, oldest first.
// An unbounded scan is acceptable here; the only caller is the backup run.
func (s *DuckDBStore) ListAll(ctx context.Context) ([]Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, encrypted_payload, amount, currency,
		       status, payment_method, CAST(metadata AS VARCHAR) AS metadata, created_at
		FROM transactions ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txns, nil
}

// defaultListLimit caps unfiltered transaction listings.
const defaultListLimit = 100

// ListTransactions enumerates transactions matching filter, newest first.
func (s *DuckDBStore) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	query := `
		SELECT id, owner_id, encrypted_payload, amount, currency,
		       status, payment_method, CAST(metadata AS VARCHAR) AS metadata, created_at
		FROM transactions`

	var (
		conds []string
		args  []interface{}
	)
	if filter.OwnerID != "" {
		conds = append(conds, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Since != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, *filter.Since)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txns, nil
}

// UpdateStatus applies a status transition.
func (s *DuckDBStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// scanner abstracts sql.Row and sql.Rows for scanTransaction.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTransaction reads one transaction row.
func scanTransaction(row scanner) (*Transaction, error) {
	var (
		txn         Transaction
		status      string
		metadataStr sql.NullString
	)

	if err := row.Scan(
		&txn.ID,
		&txn.OwnerID,
		&txn.EncryptedPayload,
		&txn.Amount,
		&txn.Currency,
		&status,
		&txn.PaymentMethod,
		&metadataStr,
		&txn.CreatedAt,
	); err != nil {
		return nil, err
	}

	txn.Status = Status(status)
	if metadataStr.Valid && metadataStr.String != "" && metadataStr.String != "{}" {
		if err := json.Unmarshal([]byte(metadataStr.String), &txn.Metadata); err != nil {
			logging.Warn().Str("transaction_id", txn.ID).Msg("failed to decode transaction metadata")
		}
	}

	return &txn, nil
}
