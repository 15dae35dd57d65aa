// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/muesli/termenv"
)

// DefaultWordWrap is the wrap width when none is configured.
const DefaultWordWrap = 80

// TerminalOptions configures the terminal engine.
type TerminalOptions struct {
	// Theme is one of dark, light, notty, ascii (default: dark)
	Theme string

	// WordWrap is the wrap width in cells (default: 80)
	WordWrap int

	// Profile forces a colour profile; zero value means detect from the
	// environment.
	Profile *termenv.Profile
}

// Terminal renders Markdown to ANSI text with glamour.
type Terminal struct {
	mu          sync.Mutex
	plain       *glamour.TermRenderer
	highlighted *glamour.TermRenderer
}

// NewTerminal builds both renderers. Unknown themes fall back to dark.
func NewTerminal(opts TerminalOptions) (*Terminal, error) {
	if opts.WordWrap <= 0 {
		opts.WordWrap = DefaultWordWrap
	}
	profile := termenv.EnvColorProfile()
	if opts.Profile != nil {
		profile = *opts.Profile
	}

	full := themeStyle(opts.Theme)
	plain := full
	plain.CodeBlock.Chroma = nil
	plain.CodeBlock.Theme = ""

	p, err := newTermRenderer(plain, opts.WordWrap, profile)
	if err != nil {
		return nil, err
	}
	h, err := newTermRenderer(full, opts.WordWrap, profile)
	if err != nil {
		return nil, err
	}
	return &Terminal{plain: p, highlighted: h}, nil
}

func newTermRenderer(style ansi.StyleConfig, wrap int, profile termenv.Profile) (*glamour.TermRenderer, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(style),
		glamour.WithWordWrap(wrap),
		glamour.WithColorProfile(profile),
	)
	if err != nil {
		return nil, fmt.Errorf("create markdown renderer: %w", err)
	}
	return r, nil
}

// themeStyle returns a copy of the named glamour style.
func themeStyle(theme string) ansi.StyleConfig {
	switch theme {
	case "light":
		return styles.LightStyleConfig
	case "notty":
		return styles.NoTTYStyleConfig
	case "ascii":
		return styles.ASCIIStyleConfig
	default:
		return styles.DarkStyleConfig
	}
}

// Parse implements Engine.
func (t *Terminal) Parse(src string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.plain.Render(src)
}

// ParseHighlighted implements Engine.
func (t *Terminal) ParseHighlighted(src string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.highlighted.Render(src)
}
