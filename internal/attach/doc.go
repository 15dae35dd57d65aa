// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package attach reads files chosen by the user into pending attachments.
//
// Text files (text/* and common source extensions) are decoded to UTF-8 and
// later merged inline into the user message. Images are encoded as base64
// data: URLs and sent as an image part. Anything else is rejected with
// ErrUnsupported and the caller keeps no pending attachment.
package attach
