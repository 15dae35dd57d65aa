// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	core "github.com/jeranaias/cleo/internal/chat"
)

// =============================================================================
// CONTROLLER MESSAGES
// =============================================================================

// EventMsg carries one controller event into Update.
type EventMsg struct {
	Event core.Event
}

// replyMsg is returned by the command that runs a send.
type replyMsg struct {
	reply *core.Reply
	err   error
}

// =============================================================================
// COMMAND RESULT MESSAGES
// =============================================================================

// exportedMsg reports the outcome of /export.
type exportedMsg struct {
	path string
	err  error
}

// statusMsg replaces the status line.
type statusMsg struct {
	text  string
	isErr bool
}
