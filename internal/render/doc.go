// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns accumulated Markdown into safe display output while a
// reply is still streaming.
//
// Re-parsing a growing reply on every delta makes an unterminated code fence
// flip between fenced and unfenced layouts. Stable rendering avoids that: when
// the text has an odd number of ``` delimiters, everything before the open
// fence is parsed normally and the open tail is parsed as if its fence were
// already closed.
//
// # Engines
//
//   - Terminal: glamour ANSI output; code blocks stay plain while streaming
//     and are chroma-highlighted when the message is finalized
//   - HTML: goldmark output sanitized by bluemonday; finalize runs a chroma
//     pass over every pre > code block not yet marked as highlighted
//   - Plain: returns the text unchanged
//
// # Usage
//
//	r := render.New(render.NewTerminal(render.TerminalOptions{Theme: "dark"}))
//	live, _ := r.Render(accumulated)   // on every delta
//	final, _ := r.Finalize(accumulated) // once, after the stream ends
package render
