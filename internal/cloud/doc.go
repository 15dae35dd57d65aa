// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud talks to an OpenAI-compatible chat completions endpoint
// (OpenRouter by default) and decodes its server-sent event stream.
//
// # Key Types
//
//   - Client: builds and sends the streaming request, lists models
//   - Request / Message: the outbound body; messages[0] is always the
//     synthesized system turn
//   - Decoder: turns the raw byte stream into content deltas
//   - TransportError: non-success status or network failure
//
// # Usage
//
//	client := cloud.NewClient(apiKey, cloud.WithLogger(logger))
//	req := cloud.NewRequest(model, systemPrompt, profile, session.History())
//	res, err := client.Stream(ctx, req, &stop, func(delta string) {
//	    fmt.Print(delta)
//	})
//
// # Security
//
// The credential is never logged; a SHA-256 fingerprint is used instead.
package cloud
