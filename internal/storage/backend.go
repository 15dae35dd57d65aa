// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/cleo/internal/util"
)

// HistoryKey is the key under which the session mapping is stored.
const HistoryKey = "cleoHistory"

// Backend stores and retrieves the serialized session mapping.
// Load returns (nil, nil) when nothing has been stored yet.
type Backend interface {
	Load() ([]byte, error)
	Save(data []byte) error
	Close() error
}

// =============================================================================
// FILE BACKEND
// =============================================================================

// FileBackend keeps the blob in a single JSON file.
type FileBackend struct {
	Path string
}

// NewFileBackend creates a file backend, ensuring the parent directory exists.
func NewFileBackend(path string) (*FileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	return &FileBackend{Path: path}, nil
}

// Load implements Backend.
func (b *FileBackend) Load() ([]byte, error) {
	data, err := os.ReadFile(b.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Save implements Backend. The file is replaced atomically with 0600
// permissions.
func (b *FileBackend) Save(data []byte) error {
	return util.AtomicWriteFile(b.Path, data, 0600)
}

// Close implements Backend.
func (b *FileBackend) Close() error { return nil }

// =============================================================================
// SQLITE BACKEND
// =============================================================================

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);`

// SQLiteBackend keeps the blob in a key/value table.
type SQLiteBackend struct {
	db  *sql.DB
	key string
}

// NewSQLiteBackend opens (or creates) the database at path.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(kvSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteBackend{db: db, key: HistoryKey}, nil
}

// Load implements Backend.
func (b *SQLiteBackend) Load() ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var data []byte
	err := b.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", b.key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", b.key, err)
	}
	return data, nil
}

// Save implements Backend.
func (b *SQLiteBackend) Save(data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := b.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		b.key, data, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save %s: %w", b.key, err)
	}
	return nil
}

// Close implements Backend.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// =============================================================================
// MEMORY BACKEND
// =============================================================================

// MemoryBackend keeps the blob in memory. Used by tests and --ephemeral runs.
type MemoryBackend struct {
	mu    sync.Mutex
	data  []byte
	saves int
	err   error
}

// NewMemoryBackend creates a backend seeded with data (may be nil).
func NewMemoryBackend(data []byte) *MemoryBackend {
	return &MemoryBackend{data: data}
}

// Load implements Backend.
func (b *MemoryBackend) Load() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return nil, nil
	}
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, nil
}

// Save implements Backend.
func (b *MemoryBackend) Save(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.data = append([]byte(nil), data...)
	b.saves++
	return nil
}

// Close implements Backend.
func (b *MemoryBackend) Close() error { return nil }

// Saves returns how many times Save succeeded.
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

// FailWith makes subsequent saves return err (nil to clear).
func (b *MemoryBackend) FailWith(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

// OpenBackend selects a backend by name.
func OpenBackend(kind, path string) (Backend, error) {
	switch kind {
	case "", "file":
		return NewFileBackend(path)
	case "sqlite":
		return NewSQLiteBackend(path)
	case "memory":
		return NewMemoryBackend(nil), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}
