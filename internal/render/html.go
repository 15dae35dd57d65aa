// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// HighlightedAttr marks a code element that has been through the highlight
// pass.
const HighlightedAttr = "data-highlighted"

var languageClass = regexp.MustCompile(`^language-[a-zA-Z0-9+#-]+$`)

// HTML renders Markdown to sanitized HTML.
type HTML struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	style  *chroma.Style
}

// NewHTML creates an HTML engine. styleName selects the chroma style
// (default: github).
func NewHTML(styleName string) *HTML {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(languageClass).OnElements("code")

	style := chromaStyles.Get(styleName)
	if styleName == "" || style == nil {
		style = chromaStyles.Get("github")
	}
	if style == nil {
		style = chromaStyles.Fallback
	}

	return &HTML{
		// Raw HTML in the source is omitted by goldmark's default renderer.
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: policy,
		style:  style,
	}
}

// Parse implements Engine.
func (h *HTML) Parse(src string) (string, error) {
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return h.policy.Sanitize(buf.String()), nil
}

// ParseHighlighted implements Engine.
func (h *HTML) ParseHighlighted(src string) (string, error) {
	out, err := h.Parse(src)
	if err != nil {
		return "", err
	}
	return h.Highlight(out)
}

// Highlight colours every pre > code block that is not yet marked and marks
// it, so running it twice leaves the output unchanged.
func (h *HTML) Highlight(rendered string) (string, error) {
	if !strings.Contains(rendered, "<pre") {
		return rendered, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return "", fmt.Errorf("parse rendered html: %w", err)
	}

	blocks := doc.Find("pre > code").Not("[" + HighlightedAttr + "]")
	if blocks.Length() == 0 {
		return rendered, nil
	}

	var highlightErr error
	blocks.Each(func(_ int, sel *goquery.Selection) {
		if highlightErr != nil {
			return
		}
		out, err := h.highlightCode(sel.Text(), languageOf(sel))
		if err != nil {
			highlightErr = err
			return
		}
		sel.SetHtml(out)
		sel.SetAttr(HighlightedAttr, "true")
	})
	if highlightErr != nil {
		return "", highlightErr
	}

	return doc.Find("body").Html()
}

func (h *HTML) highlightCode(code, language string) (string, error) {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("tokenise %s: %w", language, err)
	}

	formatter := chromahtml.New(chromahtml.PreventSurroundingPre(true))
	var buf bytes.Buffer
	if err := formatter.Format(&buf, h.style, iterator); err != nil {
		return "", fmt.Errorf("highlight %s: %w", language, err)
	}
	return buf.String(), nil
}

// languageOf reads the language-xxx class of a code element.
func languageOf(sel *goquery.Selection) string {
	class, _ := sel.Attr("class")
	for _, c := range strings.Fields(class) {
		if lang, ok := strings.CutPrefix(c, "language-"); ok {
			return lang
		}
	}
	return ""
}
