// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// ACCENT COLORS
// =============================================================================

// Blush - Brand accent, assistant label, selections
var Blush = lipgloss.AdaptiveColor{Light: "#BE185D", Dark: "#F9A8D4"}

// BlushDeep - Darker blush for header and selected rows
var BlushDeep = lipgloss.AdaptiveColor{Light: "#9D174D", Dark: "#831843"}

// Peach - User label, prompts
var Peach = lipgloss.AdaptiveColor{Light: "#C2410C", Dark: "#FDBA74"}

// Sage - Success states, idle indicator
var Sage = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#6EE7B7"}

// Amber - Warnings, streaming indicator, notices
var Amber = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FCD34D"}

// Rose - Errors
var Rose = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

// =============================================================================
// SURFACE AND TEXT COLORS
// =============================================================================

// Surface - Main background
var Surface = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#1F1A24"}

// SurfaceDim - Header and status bar background
var SurfaceDim = lipgloss.AdaptiveColor{Light: "#FDF2F8", Dark: "#17131B"}

// Overlay - Borders and separators
var Overlay = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#3B3242"}

// TextPrimary - Main body text
var TextPrimary = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#EDE4F0"}

// TextSecondary - Labels, less prominent text
var TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#B8AEC0"}

// TextMuted - Hints, timestamps
var TextMuted = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6F6578"}

// TextInverse - Text on colored backgrounds
var TextInverse = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#17131B"}

// Palette returns the named colors, used by the theme preview and tests.
func Palette() map[string]lipgloss.AdaptiveColor {
	return map[string]lipgloss.AdaptiveColor{
		"blush":          Blush,
		"blush-deep":     BlushDeep,
		"peach":          Peach,
		"sage":           Sage,
		"amber":          Amber,
		"rose":           Rose,
		"surface":        Surface,
		"surface-dim":    SurfaceDim,
		"overlay":        Overlay,
		"text-primary":   TextPrimary,
		"text-secondary": TextSecondary,
		"text-muted":     TextMuted,
		"text-inverse":   TextInverse,
	}
}
