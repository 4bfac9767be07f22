// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

// Package crypto implements the encryption primitives for the ledger.
//
// Encryption Algorithm:
//   - AES-256-GCM (authenticated encryption)
//   - 12-byte random nonce per encryption
//   - Ciphertext format: base64(nonce || ciphertext || tag)
//
// The ciphertext is self-describing: the same key and nothing else is needed
// to decrypt it later. All functions are stateless; keys come from the keys
// package. Callers must never log plaintext arguments or key bytes - only
// ciphertext, digests and error kinds may be logged.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

const (
	// keySize is the required key size in bytes (256 bits).
	keySize = 32

	// gcmNonceSize is the size of the GCM nonce in bytes.
	gcmNonceSize = 12
)

var (
	// ErrInvalidKeySize is returned when the key is not 32 bytes.
	ErrInvalidKeySize = errors.New("encryption key must be 32 bytes")

	// ErrEmptyPlaintext is returned when attempting to encrypt empty data.
	ErrEmptyPlaintext = errors.New("plaintext cannot be empty")

	// ErrEmptyCiphertext is returned when attempting to decrypt empty data.
	ErrEmptyCiphertext = errors.New("ciphertext cannot be empty")

	// ErrInvalidCiphertext is returned when the ciphertext encoding is invalid.
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")

	// ErrCiphertextTooShort is returned when the ciphertext is shorter than
	// the minimum nonce + data + tag length.
	ErrCiphertextTooShort = errors.New("ciphertext too short")

	// ErrDecryptionFailed is returned when the key is wrong or the
	// ciphertext is corrupt. It carries no plaintext or key detail.
	ErrDecryptionFailed = errors.New("decryption failed: invalid ciphertext or authentication tag")
)

// Seal encrypts plaintext with the given 32-byte key and returns a
// base64-encoded ciphertext in the format nonce || ciphertext || tag.
func Seal(plaintext, key []byte) (string, error) {
	if len(plaintext) == 0 {
		return "", ErrEmptyPlaintext
	}

	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open decrypts a base64-encoded ciphertext produced by Seal.
// It fails with ErrDecryptionFailed when the key is wrong or the data is
// corrupt or truncated; no partial plaintext is ever returned.
func Open(ciphertext string, key []byte) ([]byte, error) {
	if ciphertext == "" {
		return nil, ErrEmptyCiphertext
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}

	// Minimum length: nonce (12) + at least 1 byte + tag (16)
	if len(data) < gcmNonceSize+1+aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}

	nonce := data[:gcmNonceSize]
	plaintext, err := aead.Open(nil, nonce, data[gcmNonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

// SealJSON serializes v and encrypts the result.
func SealJSON(v interface{}, key []byte) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize payload: %w", err)
	}
	return Seal(plaintext, key)
}

// OpenJSON decrypts a ciphertext produced by SealJSON and unmarshals it into out.
func OpenJSON(ciphertext string, key []byte, out interface{}) error {
	plaintext, err := Open(ciphertext, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, out); err != nil {
		return fmt.Errorf("%w: payload decode failed", ErrInvalidCiphertext)
	}
	return nil
}

// Hash returns a deterministic hex-encoded SHA-256 digest of data.
// It is used for indexing and equality checks without storing raw values,
// not for secrecy.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashString is a convenience wrapper for Hash over a string.
func HashString(s string) string {
	return Hash([]byte(s))
}

// newAEAD builds an AES-256-GCM cipher for the given key.
func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != keySize {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return gcm, nil
}
