// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the cleo TUI.

All colors use Lip Gloss AdaptiveColor so one palette serves light and dark
terminals. A Theme binds the styles to a lipgloss renderer whose color
profile comes from the output writer, or is forced to ASCII for the notty
and ascii themes.

# Colors (colors.go)

  - Blush - brand accent and assistant label
  - Peach - user label and input prompt
  - Sage - idle state and attachments
  - Amber - streaming state and notices
  - Rose - errors

# Layout

GetLayoutMode maps the terminal width to narrow, medium or wide. The session
sidebar is hidden in narrow mode.
*/
package styles
