// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/cleo/internal/model"
	"github.com/jeranaias/cleo/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrSessionNotFound is returned when an id is not in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrCorruptHistory is returned when the persisted blob cannot be decoded.
	ErrCorruptHistory = errors.New("corrupt session history")
)

// =============================================================================
// STORE
// =============================================================================

// Store owns the session mapping and the active-session pointer. All methods
// are safe for concurrent use; returned sessions are copies.
type Store struct {
	mu       sync.Mutex
	backend  Backend
	sessions map[string]*model.Session
	activeID string

	now    func() time.Time
	logger *log.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a store over backend. Call Open to load persisted sessions.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		sessions: make(map[string]*model.Session),
		now:      time.Now,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open loads the persisted mapping and selects the most recently updated
// session, creating one if the store is empty.
func (s *Store) Open() (*model.Session, error) {
	data, err := s.backend.Load()
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	sessions, err := decodeHistory(data)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = sessions
	s.logger.Debug("history loaded", "sessions", len(sessions))

	if latest := s.latestLocked(); latest != nil {
		s.activeID = latest.ID
		return latest.Clone(), nil
	}
	return s.createLocked()
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

// Create inserts an empty session, makes it active, and persists.
func (s *Store) Create() (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked()
}

func (s *Store) createLocked() (*model.Session, error) {
	now := s.now()
	id := model.NewSessionID(now)
	// Two sessions created within the same millisecond get distinct ids.
	for _, exists := s.sessions[id]; exists; _, exists = s.sessions[id] {
		now = now.Add(time.Millisecond)
		id = model.NewSessionID(now)
	}

	sess := model.NewSession(id, s.now())
	s.sessions[id] = sess
	s.activeID = id
	s.logger.Debug("session created", "id", id)

	if err := s.persistLocked(); err != nil {
		return sess.Clone(), err
	}
	return sess.Clone(), nil
}

// Select makes id the active session. An unknown id falls back to Create.
func (s *Store) Select(id string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		s.logger.Warn("unknown session, creating new", "id", id)
		return s.createLocked()
	}
	s.activeID = id
	return sess.Clone(), nil
}

// Rename sets the title of id. A blank title is ignored.
func (s *Store) Rename(id, title string) error {
	title = strings.TrimSpace(title)

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if title == "" {
		return nil
	}
	sess.Title = title
	return s.persistLocked()
}

// Delete removes id. When the active session is deleted, the most recently
// updated remaining session becomes active, or a new one is created. The
// returned session is the active one after deletion.
func (s *Store) Delete(id string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	s.logger.Debug("session deleted", "id", id)

	if id == s.activeID {
		s.activeID = ""
		if latest := s.latestLocked(); latest != nil {
			s.activeID = latest.ID
		} else {
			return s.createLocked()
		}
	}

	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return s.sessions[s.activeID].Clone(), nil
}

// Clear removes every session, then creates a fresh active one.
func (s *Store) Clear() (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = make(map[string]*model.Session)
	s.activeID = ""
	s.logger.Info("history cleared")
	return s.createLocked()
}

// =============================================================================
// TURN MUTATIONS
// =============================================================================

// AppendTurn appends turn to session id, refreshes its timestamp, and
// persists.
func (s *Store) AppendTurn(id string, turn model.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.Append(turn)
	sess.Touch(s.now())
	return s.persistLocked()
}

// TruncateAfterLastUser removes every turn after the last user turn of id and
// returns the removed turns.
func (s *Store) TruncateAfterLastUser(id string) ([]model.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	idx := sess.LastUserIndex()
	if idx < 0 || idx == len(sess.Messages)-1 {
		return nil, nil
	}
	removed := append([]model.Turn(nil), sess.Messages[idx+1:]...)
	sess.TruncateAfterLastUser()
	sess.Touch(s.now())
	return removed, s.persistLocked()
}

// UpdateTitleFromFirstReply titles id from reply text and returns the new
// title.
func (s *Store) UpdateTitleFromFirstReply(id, text string) (string, error) {
	title := DeriveTitle(text)
	if title == "" {
		return "", nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.Title = title
	return title, s.persistLocked()
}

// DeriveTitle returns the first 40 characters of text, with "..." appended
// when truncated, trimmed of surrounding whitespace.
func DeriveTitle(text string) string {
	prefix, cut := util.PrefixRunes(norm.NFC.String(text), model.TitleMaxRunes)
	if cut {
		prefix += util.Ellipsis
	}
	return strings.TrimSpace(prefix)
}

// =============================================================================
// QUERIES
// =============================================================================

// ActiveID returns the id of the active session.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Active returns a copy of the active session, or nil before Open.
func (s *Store) Active() *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[s.activeID]; ok {
		return sess.Clone()
	}
	return nil
}

// Get returns a copy of session id.
func (s *Store) Get(id string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess.Clone(), nil
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// List returns copies of all sessions, most recently updated first.
func (s *Store) List() []*model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked(nil)
}

// Search returns sessions whose title contains term, case-insensitively,
// most recently updated first. A blank term returns every session.
func (s *Store) Search(term string) []*model.Session {
	q := strings.ToLower(strings.TrimSpace(term))

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked(func(sess *model.Session) bool {
		return q == "" || strings.Contains(strings.ToLower(sess.Title), q)
	})
}

// SearchMessages returns sessions whose title or turns contain term.
func (s *Store) SearchMessages(term string) []*model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked(func(sess *model.Session) bool {
		return sess.Matches(term)
	})
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// Persist refreshes the active session's timestamp and writes the mapping.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

// Export returns the serialized mapping.
func (s *Store) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.MarshalIndent(s.sessions, "", "  ")
}

// Import merges a serialized mapping into the store. Sessions with an id
// already present are replaced. Returns the number of sessions imported.
func (s *Store) Import(data []byte) (int, error) {
	incoming, err := decodeHistory(data)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range incoming {
		s.sessions[id] = sess
	}
	s.logger.Info("history imported", "sessions", len(incoming))
	return len(incoming), s.persistLocked()
}

func (s *Store) persistLocked() error {
	if sess, ok := s.sessions[s.activeID]; ok {
		sess.Touch(s.now())
	}

	data, err := json.Marshal(s.sessions)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.backend.Save(data); err != nil {
		s.logger.Error("persist failed", "err", err)
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) latestLocked() *model.Session {
	var latest *model.Session
	for _, sess := range s.sessions {
		if latest == nil || sess.Timestamp > latest.Timestamp ||
			(sess.Timestamp == latest.Timestamp && sess.ID > latest.ID) {
			latest = sess
		}
	}
	return latest
}

func (s *Store) sortedLocked(keep func(*model.Session) bool) []*model.Session {
	out := make([]*model.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if keep == nil || keep(sess) {
			out = append(out, sess.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// decodeHistory parses a blob into a normalized mapping. Empty input yields
// an empty mapping.
func decodeHistory(data []byte) (map[string]*model.Session, error) {
	sessions := make(map[string]*model.Session)
	if len(strings.TrimSpace(string(data))) == 0 {
		return sessions, nil
	}
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptHistory, err)
	}
	for id, sess := range sessions {
		if sess == nil {
			delete(sessions, id)
			continue
		}
		sess.ID = id
		if sess.Title == "" {
			sess.Title = model.PlaceholderTitle
		}
		if sess.Messages == nil {
			sess.Messages = []model.Turn{}
		}
	}
	return sessions, nil
}
