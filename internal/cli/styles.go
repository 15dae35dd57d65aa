// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/cleo/internal/ui/styles"
)

// init configures lipgloss for the detected terminal, honoring NO_COLOR.
func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES FOR ALL CLI COMMANDS
// =============================================================================

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Blush)

	labelStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	idStyle = lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(styles.Sage).
			Bold(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Peach).
			Bold(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(styles.Amber).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)
)
