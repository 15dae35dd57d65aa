// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the conversation controller: the state machine
// that sends a turn, streams the reply into the active session, and handles
// stop, regeneration and failure.
//
// # States
//
//	Idle -> Sending -> Streaming -> Idle | Error
//
// Sending covers the time between issuing the request and receiving the
// response headers. Streaming lasts while deltas are decoded. A failed
// request leaves the controller in Error until the next send or session
// change.
//
// # Events
//
// The controller renders nothing itself. Presentation layers subscribe with
// Subscribe and receive value events (StateChanged, TurnAppended,
// DeltaReceived, TurnCommitted, TitleChanged, ErrorOccurred, Settled, ...)
// from the goroutine running Send. Sinks must not block on the caller of
// Send.
//
// # Usage
//
//	ctrl := chat.New(store, holder, chat.WithRenderer(renderer))
//	ctrl.Subscribe(chat.SinkFunc(func(e chat.Event) { ... }))
//	reply, err := ctrl.Send(ctx, chat.Input{Text: "Hello"})
package chat
