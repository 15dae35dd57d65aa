// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// THEME CREATION TESTS
// =============================================================================

func TestNewThemeFor_Names(t *testing.T) {
	tests := []struct {
		in   string
		want string
		dark bool
	}{
		{"dark", ThemeDark, true},
		{"LIGHT", ThemeLight, false},
		{"", ThemeDark, true},
		{"solarized", ThemeDark, true},
	}
	for _, tt := range tests {
		theme := NewThemeFor(io.Discard, tt.in)
		if theme.Name != tt.want {
			t.Errorf("NewThemeFor(%q).Name = %q, want %q", tt.in, theme.Name, tt.want)
		}
		if theme.IsDark != tt.dark {
			t.Errorf("NewThemeFor(%q).IsDark = %v, want %v", tt.in, theme.IsDark, tt.dark)
		}
	}
}

func TestNewThemeFor_PlainThemesHaveNoColor(t *testing.T) {
	for _, name := range []string{ThemeNoTTY, ThemeASCII} {
		theme := NewThemeFor(io.Discard, name)
		if !theme.Plain() {
			t.Errorf("%s theme should be plain", name)
		}
		if theme.ColorProfile != termenv.Ascii {
			t.Errorf("%s theme profile = %v, want Ascii", name, theme.ColorProfile)
		}
		out := theme.AssistantLabel.Render("AI")
		if strings.Contains(out, "\x1b[") {
			t.Errorf("%s theme emitted escape codes: %q", name, out)
		}
	}
}

func TestThemeInitStyles(t *testing.T) {
	theme := NewThemeFor(io.Discard, ThemeDark)

	styles := []struct {
		name  string
		style lipgloss.Style
	}{
		{"Header", theme.Header},
		{"Sidebar", theme.Sidebar},
		{"UserLabel", theme.UserLabel},
		{"AssistantLabel", theme.AssistantLabel},
		{"Notice", theme.Notice},
		{"InputContainer", theme.InputContainer},
		{"StatusBar", theme.StatusBar},
		{"Help", theme.Help},
	}

	for _, s := range styles {
		if !strings.Contains(s.style.Render("test"), "test") {
			t.Errorf("%s style lost its content", s.name)
		}
	}
}

// =============================================================================
// LAYOUT TESTS
// =============================================================================

func TestLayoutMode(t *testing.T) {
	tests := []struct {
		width   int
		mode    LayoutMode
		sidebar int
	}{
		{40, LayoutNarrow, 0},
		{59, LayoutNarrow, 0},
		{60, LayoutMedium, 24},
		{99, LayoutMedium, 24},
		{100, LayoutWide, 32},
		{200, LayoutWide, 32},
	}

	theme := NewThemeFor(io.Discard, ThemeDark)
	for _, tt := range tests {
		theme.SetSize(tt.width, 30)
		if got := theme.GetLayoutMode(); got != tt.mode {
			t.Errorf("width %d: mode = %v, want %v", tt.width, got, tt.mode)
		}
		if got := theme.SidebarWidth(); got != tt.sidebar {
			t.Errorf("width %d: sidebar = %d, want %d", tt.width, got, tt.sidebar)
		}
	}
}

func TestPalette(t *testing.T) {
	p := Palette()
	for name, c := range p {
		if c.Light == "" || c.Dark == "" {
			t.Errorf("color %s has an empty variant", name)
		}
		if !strings.HasPrefix(c.Light, "#") || !strings.HasPrefix(c.Dark, "#") {
			t.Errorf("color %s is not hex", name)
		}
	}
	if _, ok := p["blush"]; !ok {
		t.Error("palette is missing the brand color")
	}
}
