// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for sessions and turns.
//
// This package defines the core domain types used throughout cleo for
// representing conversations, their role-tagged turns, and the transient
// attachment a user may send with a message.
//
// # Key Types
//
//   - Session: a named, ordered, persisted conversation
//   - Turn: one role-tagged message; content is plain text or an ordered
//     list of parts (text and image references)
//   - Content / Part / ImageRef: the string-or-parts content shape used both
//     in storage and on the wire
//   - Attachment: the single pending file (text or image) waiting to be sent
//   - ModelInfo: catalogue entry for a selectable model
//
// # Usage
//
//	sess := model.NewSession("chat_1700000000000", time.Now())
//	turn, ok := model.BuildUserTurn("Hello", nil)
//	if ok {
//	    sess.Append(turn)
//	}
//
// The JSON shape of Session and Turn is the persisted format; it is read and
// written verbatim by the storage package.
package model
