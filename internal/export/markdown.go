// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/cleo/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports sessions to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// frontmatter is the YAML header of a Markdown export.
type frontmatter struct {
	Title     string `yaml:"title"`
	ID        string `yaml:"id"`
	Model     string `yaml:"model"`
	Updated   string `yaml:"updated"`
	Messages  int    `yaml:"messages"`
	Exported  string `yaml:"exported"`
	Generator string `yaml:"generator"`
}

// Export converts a session to Markdown format.
func (e *MarkdownExporter) Export(sess *model.Session) ([]byte, error) {
	if sess == nil {
		return nil, ErrNoSession
	}
	turns := e.options.turns(sess)

	var sb strings.Builder

	if e.options.IncludeMetadata {
		header, err := yaml.Marshal(frontmatter{
			Title:     sess.Title,
			ID:        sess.ID,
			Model:     e.options.Model,
			Updated:   e.options.updated(sess).Format(time.RFC3339),
			Messages:  len(turns),
			Exported:  e.options.now().In(e.options.location()).Format(time.RFC3339),
			Generator: "cleo",
		})
		if err != nil {
			return nil, fmt.Errorf("encode frontmatter: %w", err)
		}
		sb.WriteString("---\n")
		sb.Write(header)
		sb.WriteString("---\n\n")
	}

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(sess.Title)))

	for i, t := range turns {
		sb.WriteString(fmt.Sprintf("### %s\n\n", t.Role.DisplayName()))
		sb.WriteString(e.formatContent(t))
		sb.WriteString("\n\n")

		if i < len(turns)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	sb.WriteString(fmt.Sprintf("*Exported from cleo on %s*\n",
		e.options.now().In(e.options.location()).Format("January 2, 2006 at 3:04 PM")))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// formatContent renders one turn body. Notices become block quotes and
// images an italic placeholder.
func (e *MarkdownExporter) formatContent(t model.Turn) string {
	var body string
	if t.Content.IsStructured() {
		var parts []string
		for _, p := range t.Content.Parts {
			switch p.Type {
			case model.PartText:
				parts = append(parts, strings.TrimSpace(p.Text))
			case model.PartImageURL:
				parts = append(parts, "*[Image Uploaded]*")
			}
		}
		body = strings.Join(parts, "\n\n")
	} else {
		body = strings.TrimSpace(t.Content.Text)
	}

	if t.Notice {
		return "> " + strings.ReplaceAll(body, "\n", "\n> ")
	}
	return body
}

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	// Only escape characters that would break formatting in titles/headings
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}
