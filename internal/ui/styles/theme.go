// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme names accepted by NewTheme. They match the ui.theme config values.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
	ThemeNoTTY = "notty"
	ThemeASCII = "ascii"
)

// Theme holds all the styled components for the application.
type Theme struct {
	Name         string
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	renderer *lipgloss.Renderer

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderModel lipgloss.Style

	// ==========================================================================
	// SIDEBAR
	// ==========================================================================

	Sidebar         lipgloss.Style
	SidebarTitle    lipgloss.Style
	SidebarItem     lipgloss.Style
	SidebarSelected lipgloss.Style
	SidebarActive   lipgloss.Style
	SidebarPreview  lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemLabel    lipgloss.Style
	UserText       lipgloss.Style
	Notice         lipgloss.Style
	Placeholder    lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	Attachment     lipgloss.Style
	StatusBar      lipgloss.Style
	StatusIdle     lipgloss.Style
	StatusBusy     lipgloss.Style
	StatusError    lipgloss.Style
	ShortcutKey    lipgloss.Style
	ShortcutDesc   lipgloss.Style
	Muted          lipgloss.Style
	Help           lipgloss.Style
}

// NewTheme creates a theme writing to stdout. Unknown names fall back to
// dark.
func NewTheme(name string) *Theme {
	return NewThemeFor(os.Stdout, name)
}

// NewThemeFor creates a theme whose color profile is detected from w.
// notty and ascii force plain output.
func NewThemeFor(w io.Writer, name string) *Theme {
	name = strings.ToLower(strings.TrimSpace(name))
	r := lipgloss.NewRenderer(w)

	switch name {
	case ThemeLight:
		r.SetHasDarkBackground(false)
	case ThemeNoTTY, ThemeASCII:
		r.SetColorProfile(termenv.Ascii)
	default:
		name = ThemeDark
		r.SetHasDarkBackground(true)
	}

	t := &Theme{
		Name:         name,
		IsDark:       r.HasDarkBackground(),
		ColorProfile: r.ColorProfile(),
		renderer:     r,
	}
	t.initStyles()
	return t
}

// Plain reports whether styles render without color.
func (t *Theme) Plain() bool {
	return t.ColorProfile == termenv.Ascii
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	s := t.renderer.NewStyle

	// Header
	t.Header = s().
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderBrand = s().
		Bold(true).
		Foreground(Blush)

	t.HeaderTitle = s().
		Foreground(TextPrimary)

	t.HeaderModel = s().
		Foreground(TextMuted).
		Italic(true)

	// Sidebar
	t.Sidebar = s().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		PaddingRight(1)

	t.SidebarTitle = s().
		Bold(true).
		Foreground(TextSecondary).
		MarginBottom(1)

	t.SidebarItem = s().
		Foreground(TextPrimary)

	t.SidebarSelected = s().
		Background(BlushDeep).
		Foreground(TextInverse).
		Bold(true)

	t.SidebarActive = s().
		Foreground(Blush).
		Bold(true)

	t.SidebarPreview = s().
		Foreground(TextMuted)

	// Messages
	t.UserLabel = s().
		Bold(true).
		Foreground(Peach)

	t.AssistantLabel = s().
		Bold(true).
		Foreground(Blush)

	t.SystemLabel = s().
		Bold(true).
		Foreground(Amber)

	t.UserText = s().
		Foreground(TextPrimary).
		PaddingLeft(2)

	t.Notice = s().
		Foreground(Amber).
		Italic(true).
		PaddingLeft(2)

	t.Placeholder = s().
		Foreground(TextMuted).
		Italic(true)

	// Input area
	t.InputContainer = s().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)

	t.InputPrompt = s().
		Foreground(Peach).
		Bold(true)

	t.Attachment = s().
		Foreground(Sage)

	// Status bar
	t.StatusBar = s().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.StatusIdle = s().
		Foreground(Sage).
		Bold(true)

	t.StatusBusy = s().
		Foreground(Amber).
		Bold(true)

	t.StatusError = s().
		Foreground(Rose).
		Bold(true)

	t.ShortcutKey = s().
		Foreground(Blush).
		Bold(true)

	t.ShortcutDesc = s().
		Foreground(TextMuted)

	t.Muted = s().
		Foreground(TextMuted)

	t.Help = s().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Blush).
		Padding(0, 1)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// SidebarWidth returns the session list width for the current layout, or 0
// when the sidebar is hidden.
func (t *Theme) SidebarWidth() int {
	switch t.GetLayoutMode() {
	case LayoutNarrow:
		return 0
	case LayoutMedium:
		return 24
	default:
		return 32
	}
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // >= 100 columns
)
