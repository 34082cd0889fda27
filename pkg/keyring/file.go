// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-cryptobox.
//
// go-cryptobox is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package keyring

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Default directory permissions (owner rwx only)
const defaultDirPerms = 0700

// FileBackend stores each entry as a file in a single directory.
type FileBackend struct {
	mu      sync.RWMutex
	rootDir string
	closed  bool
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend opens rootDir, creating it with 0700 permissions if it
// does not exist.
func NewFileBackend(rootDir string) (*FileBackend, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("keyring: root directory cannot be empty")
	}
	if err := os.MkdirAll(rootDir, defaultDirPerms); err != nil {
		return nil, fmt.Errorf("keyring: failed to create root directory: %w", err)
	}
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("keyring: failed to resolve root directory: %w", err)
	}
	return &FileBackend{rootDir: abs}, nil
}

// Name returns "file".
func (f *FileBackend) Name() string { return "file" }

// Dir returns the absolute root directory.
func (f *FileBackend) Dir() string { return f.rootDir }

// Get reads the file for key.
func (f *FileBackend) Get(key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	path, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("keyring: failed to read %q: %w", key, err)
	}
	return data, nil
}

// Put writes the file for key through a temporary file and a rename, so
// readers never see a partial key.
func (f *FileBackend) Put(key string, value []byte, perm fs.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path, err := f.path(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.rootDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("keyring: failed to write %q: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("keyring: failed to write %q: %w", key, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("keyring: failed to chmod %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("keyring: failed to write %q: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("keyring: failed to write %q: %w", key, err)
	}
	return nil
}

// Delete removes the file for key.
func (f *FileBackend) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("keyring: failed to delete %q: %w", key, err)
	}
	return nil
}

// List returns the names of the regular files in the root directory,
// skipping hidden files.
func (f *FileBackend) List() ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrClosed
	}
	dirEntries, err := os.ReadDir(f.rootDir)
	if err != nil {
		return nil, fmt.Errorf("keyring: failed to list keys: %w", err)
	}
	keys := make([]string, 0, len(dirEntries))
	for _, d := range dirEntries {
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		keys = append(keys, d.Name())
	}
	sort.Strings(keys)
	return keys, nil
}

// Exists reports whether the file for key exists.
func (f *FileBackend) Exists(key string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	path, err := f.path(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("keyring: failed to check %q: %w", key, err)
	}
	return true, nil
}

// Close marks the backend closed. Files are left in place.
func (f *FileBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// path maps a storage key to a file directly inside the root directory.
// Callers hold the lock.
func (f *FileBackend) path(key string) (string, error) {
	if f.closed {
		return "", ErrClosed
	}
	if key == "" || strings.ContainsAny(key, "/\\\x00") || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("%w: storage key %q", ErrInvalidName, key)
	}
	return filepath.Join(f.rootDir, key), nil
}
