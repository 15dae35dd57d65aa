// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/cleo/internal/model"
)

// YAMLExporter exports a readable YAML document.
type YAMLExporter struct {
	options *Options
}

// NewYAMLExporter creates a new YAML exporter.
func NewYAMLExporter(opts *Options) *YAMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &YAMLExporter{options: opts}
}

// YAMLDocument is the exported document.
type YAMLDocument struct {
	ID       string        `yaml:"id"`
	Title    string        `yaml:"title"`
	Model    string        `yaml:"model"`
	Updated  string        `yaml:"updated"`
	Messages []YAMLMessage `yaml:"messages"`
}

// YAMLMessage is one exported turn.
type YAMLMessage struct {
	Role    string `yaml:"role"`
	Content string `yaml:"content"`
	Image   bool   `yaml:"image,omitempty"`
	Notice  bool   `yaml:"notice,omitempty"`
}

// Export converts a session to YAML.
func (e *YAMLExporter) Export(sess *model.Session) ([]byte, error) {
	if sess == nil {
		return nil, ErrNoSession
	}

	doc := YAMLDocument{
		ID:      sess.ID,
		Title:   sess.Title,
		Model:   e.options.Model,
		Updated: e.options.updated(sess).Format(time.RFC3339),
	}
	for _, t := range e.options.turns(sess) {
		_, hasImage := t.Content.Image()
		doc.Messages = append(doc.Messages, YAMLMessage{
			Role:    string(t.Role),
			Content: t.Content.PlainText(),
			Image:   hasImage,
			Notice:  t.Notice,
		})
	}
	return yaml.Marshal(doc)
}

// FileExtension returns the file extension for YAML.
func (e *YAMLExporter) FileExtension() string {
	return ".yaml"
}

// MimeType returns the MIME type for YAML.
func (e *YAMLExporter) MimeType() string {
	return "application/yaml"
}
