// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/cleo/internal/model"
)

// tickClock advances by one second on every call.
type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTickClock() *tickClock {
	return &tickClock{t: time.UnixMilli(1700000000000)}
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestStore(t *testing.T) (*Store, *MemoryBackend) {
	t.Helper()
	backend := NewMemoryBackend(nil)
	store := New(backend, WithClock(newTickClock().Now))
	_, err := store.Open()
	require.NoError(t, err)
	return store, backend
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestOpen_EmptyCreatesSession(t *testing.T) {
	backend := NewMemoryBackend(nil)
	store := New(backend, WithClock(newTickClock().Now))

	active, err := store.Open()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(active.ID, "chat_"))
	assert.Equal(t, model.PlaceholderTitle, active.Title)
	assert.Equal(t, active.ID, store.ActiveID())
	assert.Equal(t, 1, backend.Saves())
}

func TestOpen_SelectsMostRecent(t *testing.T) {
	blob := `{
		"chat_1": {"id":"chat_1","title":"Old","messages":[],"timestamp":1000},
		"chat_2": {"id":"chat_2","title":"New","messages":[{"role":"user","content":"hi"}],"timestamp":2000}
	}`
	store := New(NewMemoryBackend([]byte(blob)))

	active, err := store.Open()
	require.NoError(t, err)
	assert.Equal(t, "chat_2", active.ID)
	assert.Equal(t, 1, active.Len())
	assert.Equal(t, 2, store.Len())
}

func TestOpen_CorruptBlob(t *testing.T) {
	store := New(NewMemoryBackend([]byte("{not json")))
	_, err := store.Open()
	assert.ErrorIs(t, err, ErrCorruptHistory)
}

func TestOpen_NormalizesMissingFields(t *testing.T) {
	store := New(NewMemoryBackend([]byte(`{"chat_9": {"timestamp": 5}}`)))
	active, err := store.Open()
	require.NoError(t, err)
	assert.Equal(t, "chat_9", active.ID)
	assert.Equal(t, model.PlaceholderTitle, active.Title)
	assert.NotNil(t, active.Messages)
}

func TestCreate_UniqueIDsWithinSameMillisecond(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	store := New(NewMemoryBackend(nil), WithClock(func() time.Time { return fixed }))

	a, err := store.Create()
	require.NoError(t, err)
	b, err := store.Create()
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, b.ID, store.ActiveID())
}

func TestSelect_UnknownFallsBackToCreate(t *testing.T) {
	store, _ := newTestStore(t)
	before := store.Len()

	sess, err := store.Select("chat_missing")
	require.NoError(t, err)
	assert.NotEqual(t, "chat_missing", sess.ID)
	assert.Equal(t, before+1, store.Len())
	assert.Equal(t, sess.ID, store.ActiveID())
}

func TestSelect_Existing(t *testing.T) {
	store, _ := newTestStore(t)
	first := store.ActiveID()
	_, err := store.Create()
	require.NoError(t, err)

	sess, err := store.Select(first)
	require.NoError(t, err)
	assert.Equal(t, first, sess.ID)
	assert.Equal(t, first, store.ActiveID())
}

func TestRename(t *testing.T) {
	store, _ := newTestStore(t)
	id := store.ActiveID()

	require.NoError(t, store.Rename(id, "  Acne questions "))
	sess, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Acne questions", sess.Title)

	require.NoError(t, store.Rename(id, "   "))
	sess, _ = store.Get(id)
	assert.Equal(t, "Acne questions", sess.Title)

	assert.ErrorIs(t, store.Rename("chat_nope", "x"), ErrSessionNotFound)
}

func TestDelete_ActiveSelectsMostRecentRemaining(t *testing.T) {
	store, _ := newTestStore(t)
	first := store.ActiveID()
	second, err := store.Create()
	require.NoError(t, err)
	third, err := store.Create()
	require.NoError(t, err)

	// Touch the first so it is the most recently updated non-active session.
	require.NoError(t, store.AppendTurn(first, model.NewTurn(model.RoleUser, model.Text("hi"))))

	active, err := store.Delete(third.ID)
	require.NoError(t, err)
	assert.Equal(t, first, active.ID)
	assert.Equal(t, first, store.ActiveID())

	_, err = store.Get(second.ID)
	assert.NoError(t, err)
}

func TestDelete_LastSessionCreatesNew(t *testing.T) {
	store, _ := newTestStore(t)
	only := store.ActiveID()

	active, err := store.Delete(only)
	require.NoError(t, err)
	assert.NotEqual(t, only, active.ID)
	assert.Equal(t, 1, store.Len())
}

func TestDelete_NonActiveKeepsActive(t *testing.T) {
	store, _ := newTestStore(t)
	first := store.ActiveID()
	second, err := store.Create()
	require.NoError(t, err)

	active, err := store.Delete(first)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	_, err = store.Delete(first)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestClear(t *testing.T) {
	store, _ := newTestStore(t)
	_, _ = store.Create()
	_, _ = store.Create()

	fresh, err := store.Clear()
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, fresh.ID, store.ActiveID())
	assert.True(t, fresh.IsEmpty())
}

// =============================================================================
// TURN TESTS
// =============================================================================

func TestAppendTurn_PersistsEveryTurn(t *testing.T) {
	store, backend := newTestStore(t)
	id := store.ActiveID()
	saves := backend.Saves()

	require.NoError(t, store.AppendTurn(id, model.NewTurn(model.RoleUser, model.Text("Hello"))))
	require.NoError(t, store.AppendTurn(id, model.NewAssistantTurn("Hi there!")))
	assert.Equal(t, saves+2, backend.Saves())

	// The persisted blob reflects both turns.
	reloaded := New(NewMemoryBackend(mustLoad(t, backend)))
	active, err := reloaded.Open()
	require.NoError(t, err)
	require.Equal(t, 2, active.Len())
	assert.Equal(t, "Hi there!", active.Messages[1].Text())

	assert.ErrorIs(t, store.AppendTurn("chat_nope", model.NewAssistantTurn("x")), ErrSessionNotFound)
}

func TestTruncateAfterLastUser(t *testing.T) {
	store, _ := newTestStore(t)
	id := store.ActiveID()
	require.NoError(t, store.AppendTurn(id, model.NewTurn(model.RoleUser, model.Text("q"))))
	require.NoError(t, store.AppendTurn(id, model.NewAssistantTurn("a")))

	removed, err := store.TruncateAfterLastUser(id)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "a", removed[0].Text())

	sess, _ := store.Get(id)
	assert.Equal(t, 1, sess.Len())

	removed, err = store.TruncateAfterLastUser(id)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestPersist_FailureKeepsMemoryState(t *testing.T) {
	store, backend := newTestStore(t)
	id := store.ActiveID()
	backend.FailWith(errors.New("disk full"))

	err := store.AppendTurn(id, model.NewTurn(model.RoleUser, model.Text("q")))
	assert.Error(t, err)

	sess, _ := store.Get(id)
	assert.Equal(t, 1, sess.Len())
}

func TestPersist_RefreshesActiveTimestamp(t *testing.T) {
	store, _ := newTestStore(t)
	before := store.Active().Timestamp
	require.NoError(t, store.Persist())
	assert.Greater(t, store.Active().Timestamp, before)
}

// =============================================================================
// TITLE TESTS
// =============================================================================

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short", "Hi there!", "Hi there!"},
		{"exactly forty", strings.Repeat("a", 40), strings.Repeat("a", 40)},
		{"truncated", strings.Repeat("b", 41), strings.Repeat("b", 40) + "..."},
		{"trimmed", "  Hello  ", "Hello"},
		{"multibyte", strings.Repeat("é", 45), strings.Repeat("é", 40) + "..."},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTitle(tt.in))
		})
	}
}

func TestDeriveTitle_NormalizesCombiningMarks(t *testing.T) {
	// "e" + combining acute composes to a single rune under NFC.
	decomposed := strings.Repeat("e\u0301", 40)
	assert.Equal(t, strings.Repeat("\u00e9", 40), DeriveTitle(decomposed))
}

func TestUpdateTitleFromFirstReply(t *testing.T) {
	store, _ := newTestStore(t)
	id := store.ActiveID()

	title, err := store.UpdateTitleFromFirstReply(id, "Hi there!")
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", title)

	sess, _ := store.Get(id)
	assert.Equal(t, "Hi there!", sess.Title)

	_, err = store.UpdateTitleFromFirstReply("chat_nope", "x")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// =============================================================================
// QUERY TESTS
// =============================================================================

func TestList_MostRecentFirst(t *testing.T) {
	store, _ := newTestStore(t)
	a := store.ActiveID()
	b, _ := store.Create()
	c, _ := store.Create()

	require.NoError(t, store.AppendTurn(a, model.NewTurn(model.RoleUser, model.Text("bump"))))

	// The active session is refreshed on every persist, so it stays on top.
	list := store.List()
	require.Len(t, list, 3)
	assert.Equal(t, c.ID, list[0].ID)
	assert.Equal(t, a, list[1].ID)
	assert.Equal(t, b.ID, list[2].ID)
}

func TestSearch(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Rename(store.ActiveID(), "Sunscreen advice"))
	other, _ := store.Create()
	require.NoError(t, store.Rename(other.ID, "Retinol schedule"))
	require.NoError(t, store.AppendTurn(other.ID, model.NewTurn(model.RoleUser, model.Text("what about sunscreen"))))

	hits := store.Search("SUNSCREEN")
	require.Len(t, hits, 1)
	assert.Equal(t, "Sunscreen advice", hits[0].Title)

	assert.Len(t, store.Search(""), 2)
	assert.Len(t, store.SearchMessages("sunscreen"), 2)
}

func TestReturnedSessionsAreCopies(t *testing.T) {
	store, _ := newTestStore(t)
	sess := store.Active()
	sess.Title = "mutated"
	sess.Append(model.NewAssistantTurn("x"))

	fresh := store.Active()
	assert.Equal(t, model.PlaceholderTitle, fresh.Title)
	assert.True(t, fresh.IsEmpty())
}

// =============================================================================
// IMPORT / EXPORT TESTS
// =============================================================================

func TestImportExport(t *testing.T) {
	src, _ := newTestStore(t)
	require.NoError(t, src.AppendTurn(src.ActiveID(), model.NewTurn(model.RoleUser, model.Text("q"))))
	data, err := src.Export()
	require.NoError(t, err)

	later := time.UnixMilli(1800000000000)
	dst := New(NewMemoryBackend(nil), WithClock(func() time.Time { return later }))
	_, err = dst.Open()
	require.NoError(t, err)
	n, err := dst.Import(data)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, dst.Len())

	_, err = dst.Import([]byte("[1,2"))
	assert.ErrorIs(t, err, ErrCorruptHistory)
}

// =============================================================================
// BACKEND TESTS
// =============================================================================

func TestFileBackend_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.json")
	backend, err := NewFileBackend(path)
	require.NoError(t, err)

	data, err := backend.Load()
	require.NoError(t, err)
	assert.Nil(t, data)

	store := New(backend)
	active, err := store.Open()
	require.NoError(t, err)
	require.NoError(t, store.AppendTurn(active.ID, model.NewTurn(model.RoleUser, model.Text("hello"))))

	reopened := New(backend)
	again, err := reopened.Open()
	require.NoError(t, err)
	assert.Equal(t, active.ID, again.ID)
	assert.Equal(t, "hello", again.Messages[0].Text())
}

func TestSQLiteBackend_RoundTrip(t *testing.T) {
	backend, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer backend.Close()

	data, err := backend.Load()
	require.NoError(t, err)
	assert.Nil(t, data)

	require.NoError(t, backend.Save([]byte(`{"a":1}`)))
	require.NoError(t, backend.Save([]byte(`{"a":2}`)))

	data, err = backend.Load()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(data))
}

func TestOpenBackend(t *testing.T) {
	b, err := OpenBackend("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, b)

	_, err = OpenBackend("redis", "")
	assert.Error(t, err)
}

func mustLoad(t *testing.T, b Backend) []byte {
	t.Helper()
	data, err := b.Load()
	require.NoError(t, err)
	require.True(t, json.Valid(data))
	return data
}
