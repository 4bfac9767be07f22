// Ledgerlock - Encrypted Transaction Ledger and Anomaly Monitoring
// Copyright 2026 Ledgerlock Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ledgerlock/ledgerlock

package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ledgerlock/ledgerlock/internal/logging"
)

const metaSuffix = ".meta.json"

// FilesystemStore implements ObjectStore on a local directory. Each
// object is a file plus a metadata sidecar; writes go through a temp
// file and rename so readers never observe a partial object.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore creates a store rooted at dir, creating it if needed.
func NewFilesystemStore(dir string) (*FilesystemStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FilesystemStore{root: dir}, nil
}

// Put writes the object body and metadata sidecar atomically.
func (s *FilesystemStore) Put(ctx context.Context, key string, data []byte, meta ObjectMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal object metadata: %w", err)
	}

	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write object %s: %w", key, err)
	}
	if err := writeAtomic(path+metaSuffix, metaData); err != nil {
		return fmt.Errorf("failed to write object metadata %s: %w", key, err)
	}

	logging.Debug().Str("key", key).Int("size", len(data)).Msg("object stored")
	return nil
}

// Get reads an object body and its metadata sidecar.
func (s *FilesystemStore) Get(ctx context.Context, key string) ([]byte, ObjectMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectMetadata{}, err
	}

	path, err := s.resolve(key)
	if err != nil {
		return nil, ObjectMetadata{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ObjectMetadata{}, ErrObjectNotFound
		}
		return nil, ObjectMetadata{}, fmt.Errorf("failed to read object %s: %w", key, err)
	}

	meta, err := s.readMeta(path)
	if err != nil {
		return nil, ObjectMetadata{}, err
	}

	return data, meta, nil
}

// List enumerates objects under prefix in key order.
func (s *FilesystemStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var infos []ObjectInfo
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, metaSuffix) {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		meta, err := s.readMeta(path)
		if err != nil {
			logging.Warn().Str("key", key).Err(err).Msg("object missing metadata sidecar")
			meta = ObjectMetadata{}
		}

		infos = append(infos, ObjectInfo{
			Key:      key,
			Size:     fi.Size(),
			Metadata: meta,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// Delete removes an object and its metadata sidecar.
func (s *FilesystemStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	if err := os.Remove(path + metaSuffix); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object metadata %s: %w", key, err)
	}
	return nil
}

// resolve maps a key to a filesystem path, rejecting escapes from the root.
func (s *FilesystemStore) resolve(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("object key cannot be empty")
	}
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.root, cleaned), nil
}

// readMeta loads the metadata sidecar for an object path.
func (s *FilesystemStore) readMeta(path string) (ObjectMetadata, error) {
	var meta ObjectMetadata
	data, err := os.ReadFile(path + metaSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			return meta, ErrObjectNotFound
		}
		return meta, fmt.Errorf("failed to read object metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to decode object metadata: %w", err)
	}
	return meta, nil
}

// writeAtomic writes data to path via a temp file and rename.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
