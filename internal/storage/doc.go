// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides session persistence for cleo.
//
// The Store owns the full id -> Session mapping and the active-session
// pointer. Every mutation serializes the whole mapping as one JSON blob and
// hands it to a Backend; there is no incremental persistence.
//
// # Key Types
//
//   - Store: the session mapping plus the active session id
//   - Backend: where the blob lives (FileBackend, SQLiteBackend, MemoryBackend)
//
// # Usage
//
//	backend, err := storage.NewFileBackend(path)
//	store := storage.New(backend, storage.WithLogger(logger))
//	active, err := store.Open()
//
// List and search sessions:
//
//	all := store.List()
//	hits := store.Search("sunscreen")
//
// # Storage Location
//
// The file backend writes ~/.cleo/history.json; the sqlite backend writes
// ~/.cleo/history.db with the blob under the key "cleoHistory".
package storage
