// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
	"time"
)

// PlaceholderTitle is the title of a session that has not been titled yet.
const PlaceholderTitle = "New Consultation"

// TitleMaxRunes is the number of runes kept when deriving a title.
const TitleMaxRunes = 40

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session is a named, ordered conversation.
type Session struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Messages []Turn `json:"messages"`

	// Timestamp is the last-updated time in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// NewSessionID returns an identifier of the form chat_<unix-ms>.
func NewSessionID(now time.Time) string {
	return fmt.Sprintf("chat_%d", now.UnixMilli())
}

// NewSession creates an empty session with the placeholder title.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Title:     PlaceholderTitle,
		Messages:  []Turn{},
		Timestamp: now.UnixMilli(),
	}
}

// UpdatedAt returns the last-updated time.
func (s *Session) UpdatedAt() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// Touch sets the last-updated time.
func (s *Session) Touch(now time.Time) {
	s.Timestamp = now.UnixMilli()
}

// Append adds a turn to the end of the session.
func (s *Session) Append(t Turn) {
	s.Messages = append(s.Messages, t)
}

// Len returns the number of turns.
func (s *Session) Len() int {
	return len(s.Messages)
}

// IsEmpty reports whether the session has no turns.
func (s *Session) IsEmpty() bool {
	return len(s.Messages) == 0
}

// LastUserIndex returns the index of the last user turn, or -1.
func (s *Session) LastUserIndex() int {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return i
		}
	}
	return -1
}

// TruncateAfterLastUser drops every turn after the last user turn and returns
// how many were removed. A session without user turns is left untouched.
func (s *Session) TruncateAfterLastUser() int {
	idx := s.LastUserIndex()
	if idx < 0 {
		return 0
	}
	removed := len(s.Messages) - idx - 1
	s.Messages = s.Messages[:idx+1]
	return removed
}

// History returns the user and assistant turns that are sent to the model,
// skipping notices.
func (s *Session) History() []Turn {
	out := make([]Turn, 0, len(s.Messages))
	for _, t := range s.Messages {
		if t.Notice || !t.Role.IsConversational() {
			continue
		}
		out = append(out, t)
	}
	return out
}

// HasTitle reports whether the session has been titled.
func (s *Session) HasTitle() bool {
	return s.Title != "" && s.Title != PlaceholderTitle
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	c.Messages = make([]Turn, len(s.Messages))
	for i, t := range s.Messages {
		c.Messages[i] = t
		if t.Content.Parts != nil {
			parts := make([]Part, len(t.Content.Parts))
			copy(parts, t.Content.Parts)
			c.Messages[i].Content.Parts = parts
		}
	}
	return &c
}

// Preview returns the first line of the first user turn, truncated.
func (s *Session) Preview(maxLen int) string {
	for _, t := range s.Messages {
		if t.Role != RoleUser {
			continue
		}
		text := strings.TrimSpace(t.Content.PlainText())
		if idx := strings.IndexByte(text, '\n'); idx >= 0 {
			text = text[:idx]
		}
		r := []rune(text)
		if maxLen > 3 && len(r) > maxLen {
			return string(r[:maxLen-3]) + "..."
		}
		return text
	}
	return ""
}

// Matches reports whether query occurs, case-insensitively, in the title or
// any turn text.
func (s *Session) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(s.Title), q) {
		return true
	}
	for _, t := range s.Messages {
		if strings.Contains(strings.ToLower(t.Content.Transcript()), q) {
			return true
		}
	}
	return false
}
