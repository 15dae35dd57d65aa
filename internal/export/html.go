// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"strings"

	"github.com/jeranaias/cleo/internal/model"
	"github.com/jeranaias/cleo/internal/render"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports sessions to a self-contained HTML page. Turn bodies go
// through the sanitizing Markdown renderer with code highlighting applied.
type HTMLExporter struct {
	options  *Options
	markdown *render.HTML
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	style := "monokai"
	if opts.Theme == "light" {
		style = "github"
	}
	return &HTMLExporter{options: opts, markdown: render.NewHTML(style)}
}

// Export converts a session to HTML format.
func (e *HTMLExporter) Export(sess *model.Session) ([]byte, error) {
	if sess == nil {
		return nil, ErrNoSession
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString(fmt.Sprintf("    <title>%s</title>\n", html.EscapeString(sess.Title)))
	sb.WriteString("    <meta name=\"generator\" content=\"cleo\">\n")
	sb.WriteString(pageCSS)
	sb.WriteString("</head>\n")
	sb.WriteString(fmt.Sprintf("<body class=\"%s-theme\">\n", theme))
	sb.WriteString("    <div class=\"container\">\n")

	if e.options.IncludeMetadata {
		sb.WriteString("        <header class=\"header\">\n")
		sb.WriteString(fmt.Sprintf("            <h1>%s</h1>\n", html.EscapeString(sess.Title)))
		sb.WriteString("            <div class=\"metadata\">\n")
		sb.WriteString(fmt.Sprintf("                <span><strong>Model:</strong> %s</span>\n", html.EscapeString(e.options.Model)))
		sb.WriteString(fmt.Sprintf("                <span><strong>Date:</strong> %s</span>\n", e.options.updated(sess).Format(TextDateLayout)))
		sb.WriteString("            </div>\n")
		sb.WriteString("        </header>\n")
	}

	sb.WriteString("        <main class=\"conversation\">\n")
	for _, t := range e.options.turns(sess) {
		msg, err := e.renderTurn(t)
		if err != nil {
			return nil, err
		}
		sb.WriteString(msg)
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	sb.WriteString(fmt.Sprintf("            <p>Exported from <strong>cleo</strong> on %s</p>\n",
		e.options.now().In(e.options.location()).Format("January 2, 2006 at 3:04 PM")))
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// renderTurn renders a single turn.
func (e *HTMLExporter) renderTurn(t model.Turn) (string, error) {
	var sb strings.Builder

	class := string(t.Role)
	if t.Notice {
		class += " notice"
	}
	sb.WriteString(fmt.Sprintf("            <div class=\"message %s\">\n", class))
	sb.WriteString(fmt.Sprintf("                <div class=\"role-label\">%s</div>\n", t.Role.DisplayName()))
	sb.WriteString("                <div class=\"message-content\">\n")

	if text := t.Content.PlainText(); text != "" {
		body, err := e.markdown.ParseHighlighted(text)
		if err != nil {
			return "", fmt.Errorf("render turn: %w", err)
		}
		sb.WriteString(body)
	}
	if url, ok := t.Content.Image(); ok {
		sb.WriteString(fmt.Sprintf("<img src=\"%s\" alt=\"Uploaded image\">\n", html.EscapeString(url)))
	}

	sb.WriteString("                </div>\n")
	sb.WriteString("            </div>\n")
	return sb.String(), nil
}

const pageCSS = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        .dark-theme {
            --bg: #1f1a24; --panel: #2a2331; --text: #f1e9f5; --muted: #b9a8c4;
            --user: #3a2d45; --assistant: #2a2331; --accent: #e8a0bf; --notice: #f7768e;
        }
        .light-theme {
            --bg: #fdf7fa; --panel: #ffffff; --text: #2b2230; --muted: #7a6a83;
            --user: #fbe9f1; --assistant: #ffffff; --accent: #b8527f; --notice: #c0392b;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            line-height: 1.6; color: var(--text); background: var(--bg); padding: 20px;
        }
        .container { max-width: 860px; margin: 0 auto; background: var(--panel); border-radius: 12px; overflow: hidden; }
        .header { padding: 28px 32px; border-bottom: 2px solid var(--accent); }
        .header h1 { font-size: 26px; margin-bottom: 8px; }
        .metadata { display: flex; gap: 16px; font-size: 14px; color: var(--muted); }
        .conversation { padding: 24px 32px; }
        .message { padding: 16px 20px; margin-bottom: 16px; border-radius: 10px; }
        .message.user { background: var(--user); }
        .message.assistant { background: var(--assistant); border: 1px solid var(--user); }
        .message.notice { border-left: 4px solid var(--notice); }
        .role-label { font-weight: 700; color: var(--accent); margin-bottom: 8px; }
        .message-content p { margin-bottom: 10px; }
        .message-content pre { padding: 12px; border-radius: 8px; overflow-x: auto; margin: 10px 0; }
        .message-content code { font-family: "SF Mono", Menlo, Consolas, monospace; font-size: 14px; }
        .message-content img { max-width: 100%; border-radius: 8px; }
        .footer { padding: 16px 32px; font-size: 13px; color: var(--muted); text-align: center; }
    </style>
`
