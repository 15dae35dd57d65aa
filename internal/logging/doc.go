// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the file logger shared by the store, the client and
// the controller. The terminal belongs to the UI, so logs go to a file.
package logging
