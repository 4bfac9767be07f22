// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *FilesystemStore {
	t.Helper()
	store, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore failed: %v", err)
	}
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	meta := ObjectMetadata{
		Encrypted:   true,
		CreatedAt:   time.Now().UTC(),
		ContentType: "application/json",
	}
	body := []byte("ciphertext-bytes")

	if err := store.Put(ctx, "backups/archive.enc", body, meta); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, gotMeta, err := store.Get(ctx, "backups/archive.enc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Error("body does not round-trip")
	}
	if !gotMeta.Encrypted || gotMeta.ContentType != "application/json" {
		t.Errorf("metadata does not round-trip: %+v", gotMeta)
	}
}

func TestPutOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "key", []byte("first"), ObjectMetadata{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(ctx, "key", []byte("second"), ObjectMetadata{}); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	got, _, err := store.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("body = %q, want overwritten value", got)
	}
}

func TestGetMissingObject(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	keys := []string{"", "../outside", "a/../../outside", "/etc/passwd"}
	for _, key := range keys {
		if err := store.Put(ctx, key, []byte("x"), ObjectMetadata{}); err == nil {
			t.Errorf("Put(%q) accepted an invalid key", key)
		}
		if _, _, err := store.Get(ctx, key); err == nil {
			t.Errorf("Get(%q) accepted an invalid key", key)
		}
	}
}

func TestListPrefixAndOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"backups/b.enc", "backups/a.enc", "other/c.enc"} {
		if err := store.Put(ctx, key, []byte("x"), ObjectMetadata{Encrypted: true}); err != nil {
			t.Fatalf("Put(%q) failed: %v", key, err)
		}
	}

	infos, err := store.List(ctx, "backups/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 objects under prefix, got %d", len(infos))
	}
	if infos[0].Key != "backups/a.enc" || infos[1].Key != "backups/b.enc" {
		t.Errorf("keys not sorted: %v", []string{infos[0].Key, infos[1].Key})
	}
	if infos[0].Size != 1 || !infos[0].Metadata.Encrypted {
		t.Errorf("info incomplete: %+v", infos[0])
	}
}

func TestListExcludesMetadataSidecars(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "key", []byte("x"), ObjectMetadata{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	infos, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 object, got %d", len(infos))
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "key", []byte("x"), ObjectMetadata{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete of missing object failed: %v", err)
	}
	if _, _, err := store.Get(ctx, "key"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound after delete, got %v", err)
	}
}

func TestPutLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFilesystemStore(dir)
	if err != nil {
		t.Fatalf("NewFilesystemStore failed: %v", err)
	}

	if err := store.Put(context.Background(), "key", []byte("x"), ObjectMetadata{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, ".tmp-*"))
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestCanceledContext(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Put(ctx, "key", []byte("x"), ObjectMetadata{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Put with canceled context: %v", err)
	}
	if _, err := store.List(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("List with canceled context: %v", err)
	}
	if _, err := os.Stat(store.root); err != nil {
		t.Fatalf("store root missing: %v", err)
	}
}
