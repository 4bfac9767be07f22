// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

// Package keys supplies the two symmetric keys used by the ledger.
//
// The transaction key seals live transaction payloads; the backup key is used
// only for periodic ledger snapshots. Both are derived from master secrets in
// configuration using HKDF-SHA256 with distinct context strings, so even
// identical master secrets yield unrelated derived keys. Key material never
// leaves this package except through TransactionKey/BackupKey, and is never
// logged.
package keys

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/ledgerlock/ledgerlock/internal/config"
)

const (
	// derivedKeySize is the size of derived AES keys in bytes (256 bits).
	derivedKeySize = 32

	// minSecretLength is the minimum accepted master secret length.
	minSecretLength = 16

	// transactionKeyContext binds the transaction key derivation to its use.
	transactionKeyContext = "ledgerlock-transaction-data-v1"

	// backupKeyContext binds the backup key derivation to its use.
	backupKeyContext = "ledgerlock-backup-archive-v1"
)

var (
	// ErrKeyNotConfigured is returned when a required key is absent from
	// configuration. The service must refuse transactions while this holds.
	ErrKeyNotConfigured = errors.New("encryption key not configured")

	// ErrKeyTooShort is returned when a master secret is too short to
	// provide meaningful entropy.
	ErrKeyTooShort = errors.New("encryption key secret too short")
)

// Keyring holds the derived transaction and backup keys for the process
// lifetime. It is read-only after construction.
type Keyring struct {
	transactionKey []byte
	backupKey      []byte
}

// NewKeyring derives keys from the configured master secrets. A missing
// secret is not an immediate error so callers can construct a keyring and
// surface ErrKeyNotConfigured on first use; call Validate at startup to fail
// eagerly instead.
func NewKeyring(cfg config.KeysConfig) (*Keyring, error) {
	kr := &Keyring{}

	if cfg.TransactionKey != "" {
		key, err := deriveKey(cfg.TransactionKey, transactionKeyContext)
		if err != nil {
			return nil, fmt.Errorf("transaction key: %w", err)
		}
		kr.transactionKey = key
	}

	if cfg.BackupKey != "" {
		key, err := deriveKey(cfg.BackupKey, backupKeyContext)
		if err != nil {
			return nil, fmt.Errorf("backup key: %w", err)
		}
		kr.backupKey = key
	}

	return kr, nil
}

// Validate reports whether both keys are present. Call this at startup,
// before the service accepts any transaction.
func (k *Keyring) Validate() error {
	if k.transactionKey == nil {
		return fmt.Errorf("%w: TRANSACTION_KEY", ErrKeyNotConfigured)
	}
	if k.backupKey == nil {
		return fmt.Errorf("%w: BACKUP_KEY", ErrKeyNotConfigured)
	}
	return nil
}

// TransactionKey returns the derived transaction key.
func (k *Keyring) TransactionKey() ([]byte, error) {
	if k.transactionKey == nil {
		return nil, fmt.Errorf("%w: TRANSACTION_KEY", ErrKeyNotConfigured)
	}
	return copyKey(k.transactionKey), nil
}

// BackupKey returns the derived backup key.
func (k *Keyring) BackupKey() ([]byte, error) {
	if k.backupKey == nil {
		return nil, fmt.Errorf("%w: BACKUP_KEY", ErrKeyNotConfigured)
	}
	return copyKey(k.backupKey), nil
}

// deriveKey derives a 256-bit key from a master secret using HKDF-SHA256.
func deriveKey(secret, context string) ([]byte, error) {
	if len(secret) < minSecretLength {
		return nil, ErrKeyTooShort
	}

	reader := hkdf.New(sha256.New, []byte(secret), nil, []byte(context))
	key := make([]byte, derivedKeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to read HKDF output: %w", err)
	}
	return key, nil
}

// copyKey returns a copy so callers cannot mutate the keyring's material.
func copyKey(key []byte) []byte {
	out := make([]byte, len(key))
	copy(out, key)
	return out
}
