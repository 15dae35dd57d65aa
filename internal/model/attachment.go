// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// AttachmentKind distinguishes text files from images.
type AttachmentKind int

const (
	AttachmentText AttachmentKind = iota
	AttachmentImage
)

// String returns a short label for the kind.
func (k AttachmentKind) String() string {
	switch k {
	case AttachmentText:
		return "text"
	case AttachmentImage:
		return "image"
	default:
		return "unknown"
	}
}

// Attachment is the single pending file held until the next send. Text holds
// the decoded file for text attachments; DataURL holds the base64 data: URL
// for images.
type Attachment struct {
	Name     string
	MIMEType string
	Kind     AttachmentKind
	Text     string
	DataURL  string
}
