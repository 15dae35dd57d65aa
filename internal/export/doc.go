// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a consultation session to a file.
//
// # Supported Formats
//
//   - Text: the classic transcript (Title/Date/Model header, You:/AI: blocks)
//   - Markdown: YAML frontmatter plus one section per turn
//   - JSON: a session mapping that Store.Import accepts
//   - YAML: a readable document of the turns
//   - HTML: self-contained page, replies rendered and highlighted
//
// # Usage
//
//	exporter, err := export.New(export.FormatText, opts)
//	path, err := export.ExportToFile(session, exporter, opts)
package export
