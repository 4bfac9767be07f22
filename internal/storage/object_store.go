// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

// Package storage provides the object store abstraction backup archives
// are written to.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound is returned when the requested object key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectMetadata describes one stored object.
type ObjectMetadata struct {
	// Encrypted marks the object body as ciphertext. Always true for
	// backup archives.
	Encrypted bool `json:"encrypted"`

	// CreatedAt is when the object was written, RFC 3339 in UTC.
	CreatedAt time.Time `json:"created_at"`

	// ContentType describes the decrypted body.
	ContentType string `json:"content_type,omitempty"`
}

// ObjectInfo is a listing entry.
type ObjectInfo struct {
	Key      string         `json:"key"`
	Size     int64          `json:"size"`
	Metadata ObjectMetadata `json:"metadata"`
}

// ObjectStore is a flat key/value blob store. Keys use forward slashes
// as path separators regardless of the backing implementation.
type ObjectStore interface {
	// Put writes an object and its metadata. An existing key is
	// overwritten atomically.
	Put(ctx context.Context, key string, data []byte, meta ObjectMetadata) error

	// Get reads an object body and metadata.
	Get(ctx context.Context, key string) ([]byte, ObjectMetadata, error)

	// List enumerates objects under a key prefix, lexicographically.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
