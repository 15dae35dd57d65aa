// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across cleo.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file writing with fsync, used for the
//     session blob and the config file
//   - TruncateRunes: UTF-8 safe truncation with a trailing ellipsis
//   - TruncateWidth: display-width aware truncation for terminal columns
//
// # Usage
//
//	err := util.AtomicWriteFile(path, data, 0600)
//	title := util.TruncateWidth(session.Title, 24)
package util
