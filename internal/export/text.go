// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"

	"github.com/jeranaias/cleo/internal/model"
)

// TextSeparator follows every turn in a text transcript.
const TextSeparator = "------------------------------------"

// TextDateLayout formats the Date header.
const TextDateLayout = "1/2/2006, 3:04:05 PM"

// TextExporter writes the plain transcript.
type TextExporter struct {
	options *Options
}

// NewTextExporter creates a new text exporter.
func NewTextExporter(opts *Options) *TextExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &TextExporter{options: opts}
}

// Export converts a session to the text transcript.
func (e *TextExporter) Export(sess *model.Session) ([]byte, error) {
	if sess == nil {
		return nil, ErrNoSession
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", sess.Title)
	fmt.Fprintf(&sb, "Date: %s\n", e.options.updated(sess).Format(TextDateLayout))
	fmt.Fprintf(&sb, "Model: %s\n\n", e.options.Model)

	for _, t := range e.options.turns(sess) {
		fmt.Fprintf(&sb, "%s:\n%s\n\n%s\n\n", senderLabel(t.Role), strings.TrimSpace(t.Content.Transcript()), TextSeparator)
	}
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for text.
func (e *TextExporter) FileExtension() string {
	return ".txt"
}

// MimeType returns the MIME type for text.
func (e *TextExporter) MimeType() string {
	return "text/plain; charset=utf-8"
}
