// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import "strings"

// Fence is the code fence delimiter.
const Fence = "```"

// ParseFunc renders a complete Markdown document.
type ParseFunc func(src string) (string, error)

// Engine renders Markdown for one output surface.
type Engine interface {
	// Parse renders src without syntax highlighting.
	Parse(src string) (string, error)

	// ParseHighlighted renders src with code blocks highlighted.
	ParseHighlighted(src string) (string, error)
}

// HasOpenFence reports whether src ends inside an unterminated code fence.
func HasOpenFence(src string) bool {
	return strings.Count(src, Fence)%2 == 1
}

// Stable renders src so that an unterminated trailing fence is shown as a
// closed code block. Balanced input is parsed whole; otherwise the text
// before the last delimiter and the open tail are parsed separately and
// concatenated.
func Stable(src string, parse ParseFunc) (string, error) {
	parts := strings.Split(src, Fence)
	if len(parts)%2 == 1 {
		return parse(src)
	}

	last := len(parts) - 1
	head, err := parse(strings.Join(parts[:last], Fence))
	if err != nil {
		return "", err
	}
	tail, err := parse(CloseFence(parts[last]))
	if err != nil {
		return "", err
	}
	return head + tail, nil
}

// CloseFence wraps an open fence body (info string first) in a complete
// fenced block.
func CloseFence(body string) string {
	return Fence + body + "\n" + Fence
}

// =============================================================================
// RENDERER
// =============================================================================

// Renderer applies stable rendering over an Engine.
type Renderer struct {
	engine Engine
}

// New creates a renderer. A nil engine renders plain text.
func New(engine Engine) *Renderer {
	if engine == nil {
		engine = Plain{}
	}
	return &Renderer{engine: engine}
}

// Render is called on every delta with the full accumulated text. It is a
// pure function of src.
func (r *Renderer) Render(src string) (string, error) {
	return Stable(src, r.engine.Parse)
}

// Finalize renders a completed message with syntax highlighting. It is
// called once per message.
func (r *Renderer) Finalize(src string) (string, error) {
	return Stable(src, r.engine.ParseHighlighted)
}

// Engine returns the underlying engine.
func (r *Renderer) Engine() Engine {
	return r.engine
}

// Plain is an Engine that returns its input unchanged.
type Plain struct{}

// Parse implements Engine.
func (Plain) Parse(src string) (string, error) { return src, nil }

// ParseHighlighted implements Engine.
func (Plain) ParseHighlighted(src string) (string, error) { return src, nil }
