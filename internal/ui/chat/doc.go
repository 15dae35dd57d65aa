// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the interactive consultation view for the cleo TUI.

The view is a Bubble Tea model layered over the conversation controller in
internal/chat. It never talks to the gateway itself: keystrokes become
controller calls run as tea.Cmds, and controller events come back as
EventMsg values delivered by a Bridge.

# Layout

  - Header with the brand, active session title and model
  - Session sidebar (hidden on narrow terminals)
  - Message viewport showing committed turns plus the in-flight reply
  - Textarea input with the pending attachment shown above it
  - Status bar with the controller state and key hints

# Slash Commands (commands.go)

Input starting with "/" is dispatched through commandHandlers: /new,
/rename, /delete, /clear, /sessions, /open, /search, /export, /attach,
/detach, /model, /profile, /regen, /stop, /help and /quit.
*/
package chat
