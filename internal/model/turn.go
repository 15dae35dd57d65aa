// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns the label used in exports and the terminal UI.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "AI"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// IsConversational reports whether the role takes part in an exchange
// (user or assistant).
func (r Role) IsConversational() bool {
	return r == RoleUser || r == RoleAssistant
}

// =============================================================================
// CONTENT TYPES
// =============================================================================

// PartType identifies the kind of a content part.
type PartType string

const (
	PartText     PartType = "text"
	PartImageURL PartType = "image_url"
)

// ImageRef points at an image, usually a base64 data: URL.
type ImageRef struct {
	URL string `json:"url"`
}

// Part is one element of structured content.
type Part struct {
	Type     PartType  `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageRef `json:"image_url,omitempty"`
}

// TextPart creates a text part.
func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// ImagePart creates an image part referencing url.
func ImagePart(url string) Part {
	return Part{Type: PartImageURL, ImageURL: &ImageRef{URL: url}}
}

// Content is either plain text or an ordered sequence of parts. It encodes
// to a JSON string when Parts is nil and to a JSON array otherwise, which is
// the shape both the chat completions API and the persisted blob use.
type Content struct {
	Text  string
	Parts []Part
}

// Text creates plain-text content.
func Text(s string) Content {
	return Content{Text: s}
}

// Parts creates structured content.
func Parts(parts ...Part) Content {
	return Content{Parts: parts}
}

// IsStructured reports whether the content is a parts array.
func (c Content) IsStructured() bool {
	return c.Parts != nil
}

// IsEmpty reports whether the content carries nothing to show or send.
func (c Content) IsEmpty() bool {
	if !c.IsStructured() {
		return c.Text == ""
	}
	for _, p := range c.Parts {
		switch p.Type {
		case PartText:
			if p.Text != "" {
				return false
			}
		case PartImageURL:
			if p.ImageURL != nil && p.ImageURL.URL != "" {
				return false
			}
		}
	}
	return true
}

// PlainText returns the text of plain content, or the first text part of
// structured content.
func (c Content) PlainText() string {
	if !c.IsStructured() {
		return c.Text
	}
	for _, p := range c.Parts {
		if p.Type == PartText {
			return p.Text
		}
	}
	return ""
}

// Image returns the URL of the first image part, if any.
func (c Content) Image() (string, bool) {
	for _, p := range c.Parts {
		if p.Type == PartImageURL && p.ImageURL != nil {
			return p.ImageURL.URL, true
		}
	}
	return "", false
}

// Transcript flattens the content to text, writing "[Image Uploaded]" in
// place of image parts.
func (c Content) Transcript() string {
	if !c.IsStructured() {
		return c.Text
	}
	var sb strings.Builder
	for _, p := range c.Parts {
		switch p.Type {
		case PartText:
			sb.WriteString(p.Text)
			sb.WriteString("\n")
		case PartImageURL:
			sb.WriteString("[Image Uploaded]\n")
		}
	}
	return strings.TrimSpace(sb.String())
}

// MarshalJSON implements json.Marshaler.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsStructured() {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Content{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Content{Text: s}
	case '[':
		var parts []Part
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		if parts == nil {
			parts = []Part{}
		}
		*c = Content{Parts: parts}
	default:
		return fmt.Errorf("content must be a string or an array of parts, got %s", data[:1])
	}
	return nil
}

// =============================================================================
// TURN TYPE
// =============================================================================

// Turn is one role-tagged message in a session.
type Turn struct {
	ID      string  `json:"id,omitempty"`
	Role    Role    `json:"role"`
	Content Content `json:"content"`

	// Notice marks a synthetic assistant turn describing a failed or stopped
	// request. Notices are shown and persisted but never sent to the model.
	Notice bool `json:"notice,omitempty"`
}

// NewTurn creates a turn with a generated ID.
func NewTurn(role Role, content Content) Turn {
	return Turn{
		ID:      uuid.NewString(),
		Role:    role,
		Content: content,
	}
}

// NewAssistantTurn creates a committed assistant reply.
func NewAssistantTurn(text string) Turn {
	return NewTurn(RoleAssistant, Text(text))
}

// NewNoticeTurn creates an assistant-visible notice.
func NewNoticeTurn(text string) Turn {
	t := NewTurn(RoleAssistant, Text(text))
	t.Notice = true
	return t
}

// Text returns the displayable text of the turn.
func (t Turn) Text() string {
	return t.Content.PlainText()
}

// =============================================================================
// USER TURN CONSTRUCTION
// =============================================================================

// BuildUserTurn assembles the outgoing user turn from typed text and an
// optional pending attachment.
//
// A text attachment is merged inline ahead of the typed text under a labeled
// header and fenced block. An image attachment becomes an image part; the
// typed text, if any, precedes it as a text part. The second return is false
// when there is nothing to send.
func BuildUserTurn(text string, att *Attachment) (Turn, bool) {
	text = strings.TrimSpace(text)

	messageText := text
	if att != nil && att.Kind == AttachmentText {
		messageText = fmt.Sprintf("File Content: \"%s\"\n\n```\n%s\n```\n\n%s", att.Name, att.Text, text)
	}

	if att != nil && att.Kind == AttachmentImage && att.DataURL != "" {
		parts := make([]Part, 0, 2)
		if messageText != "" {
			parts = append(parts, TextPart(messageText))
		}
		parts = append(parts, ImagePart(att.DataURL))
		return NewTurn(RoleUser, Parts(parts...)), true
	}

	if messageText == "" {
		return Turn{}, false
	}
	return NewTurn(RoleUser, Text(messageText)), true
}
