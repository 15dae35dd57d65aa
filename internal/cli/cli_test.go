// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/cleo/internal/attach"
	"github.com/jeranaias/cleo/internal/cloud"
	"github.com/jeranaias/cleo/internal/config"
	"github.com/jeranaias/cleo/internal/model"
	"github.com/jeranaias/cleo/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// isolate points the cleo directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("CLEO_HOME", home)
	for _, key := range []string{"CLEO_API_KEY", "CLEO_ENDPOINT", "CLEO_MODEL", "CLEO_STORAGE_BACKEND", "CLEO_STORAGE_PATH"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	return home
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func streamingGateway(t *testing.T, deltas ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range deltas {
			chunk := map[string]any{
				"choices": []any{map[string]any{"delta": map[string]any{"content": d}}},
			}
			data, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeHistory(t *testing.T, sessions ...*model.Session) string {
	t.Helper()
	m := make(map[string]*model.Session, len(sessions))
	for _, s := range sessions {
		m[s.ID] = s
	}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "backup.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func consultation(id, title string, at time.Time, turns ...model.Turn) *model.Session {
	s := model.NewSession(id, at)
	s.Title = title
	s.Messages = append(s.Messages, turns...)
	return s
}

// =============================================================================
// CONFIG COMMANDS
// =============================================================================

func TestConfig_InitSetGet(t *testing.T) {
	home := isolate(t)

	out, err := run(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(home, "config.toml"))

	_, err = run(t, "config", "init")
	assert.Equal(t, ExitUsageError, ExitCode(err))

	_, err = run(t, "config", "set", "model", "vendor/custom")
	require.NoError(t, err)
	out, err = run(t, "config", "get", "model")
	require.NoError(t, err)
	assert.Equal(t, "vendor/custom\n", out)

	out, err = run(t, "config", "set", "api_key", "sk-secret")
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-secret")

	out, err = run(t, "config", "get", "api_key")
	require.NoError(t, err)
	assert.Equal(t, "[REDACTED]\n", out)

	out, err = run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "model = vendor/custom")
	assert.NotContains(t, out, "sk-secret")

	info, err := os.Stat(filepath.Join(home, "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestConfig_SetInvalidValue(t *testing.T) {
	isolate(t)

	_, err := run(t, "config", "set", "ui.theme", "neon")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, ExitCode(err))

	_, err = run(t, "config", "set", "no.such.key", "x")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

func TestConfig_Path(t *testing.T) {
	home := isolate(t)
	out, err := run(t, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.toml")+"\n", out)
}

// =============================================================================
// SESSION COMMANDS
// =============================================================================

func TestSessions_ImportListShowRenameDelete(t *testing.T) {
	isolate(t)
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	backup := writeHistory(t,
		consultation("1714554000000", "Retinol questions", base,
			model.NewTurn(model.RoleUser, model.Text("Can I use retinol daily?")),
			model.NewAssistantTurn("Start twice a week.")),
		consultation("1714557600000", "Sunscreen", base.Add(time.Hour),
			model.NewTurn(model.RoleUser, model.Text("Which SPF?")),
			model.NewAssistantTurn("SPF 30 or higher.")),
	)

	out, err := run(t, "sessions", "import", backup)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2")

	out, err = run(t, "sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "Retinol questions")
	assert.Contains(t, out, "Sunscreen")

	out, err = run(t, "sessions", "search", "spf")
	require.NoError(t, err)
	assert.Contains(t, out, "Sunscreen")
	assert.NotContains(t, out, "Retinol questions")

	out, err = run(t, "sessions", "show", "1714554000000")
	require.NoError(t, err)
	assert.Contains(t, out, "Can I use retinol daily?")
	assert.Contains(t, out, "Start twice a week.")

	_, err = run(t, "sessions", "rename", "1714554000000", "Retinol", "plan")
	require.NoError(t, err)
	out, err = run(t, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Retinol plan")

	_, err = run(t, "sessions", "delete", "1714557600000")
	require.NoError(t, err)
	out, err = run(t, "sessions")
	require.NoError(t, err)
	assert.NotContains(t, out, "Sunscreen")

	_, err = run(t, "sessions", "show", "missing")
	assert.Equal(t, ExitNotFoundError, ExitCode(err))
}

func TestSessions_ClearNeedsYes(t *testing.T) {
	isolate(t)
	backup := writeHistory(t, consultation("1714554000000", "Old", time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		model.NewTurn(model.RoleUser, model.Text("Hi"))))
	_, err := run(t, "sessions", "import", backup)
	require.NoError(t, err)

	_, err = run(t, "sessions", "clear")
	assert.Equal(t, ExitUsageError, ExitCode(err))

	out, err := run(t, "sessions", "clear", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "History cleared")

	out, err = run(t, "sessions")
	require.NoError(t, err)
	assert.NotContains(t, out, "Old")
}

func TestResolveSession_ByIndex(t *testing.T) {
	store := storage.New(storage.NewMemoryBackend(nil))
	_, err := store.Open()
	require.NoError(t, err)
	first := store.ActiveID()

	sess, err := resolveSession(store, "1")
	require.NoError(t, err)
	assert.Equal(t, first, sess.ID)

	_, err = resolveSession(store, "2")
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}

// =============================================================================
// ASK, EXPORT, MODELS
// =============================================================================

func TestAsk_RawStreamsReply(t *testing.T) {
	isolate(t)
	gw := streamingGateway(t, "Use ", "SPF daily.")
	t.Setenv("CLEO_API_KEY", "sk-test")
	t.Setenv("CLEO_ENDPOINT", gw.URL)

	out, err := run(t, "ask", "--raw", "What", "should", "I", "do?")
	require.NoError(t, err)
	assert.Contains(t, out, "Use SPF daily.")

	out, err = run(t, "export", "--format", "text", "--stdout")
	require.NoError(t, err)
	assert.Contains(t, out, "What should I do?")
	assert.Contains(t, out, "Use SPF daily.")
}

func TestAsk_NotConfigured(t *testing.T) {
	isolate(t)
	_, err := run(t, "ask", "--raw", "Hello")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, ExitCode(err))
}

func TestAsk_NothingToAsk(t *testing.T) {
	isolate(t)
	t.Setenv("CLEO_API_KEY", "sk-test")
	_, err := run(t, "ask", "--raw")
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

func TestExport_WritesFile(t *testing.T) {
	isolate(t)
	backup := writeHistory(t, consultation("1714554000000", "Night routine", time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		model.NewTurn(model.RoleUser, model.Text("Night routine?")),
		model.NewAssistantTurn("Cleanse, then moisturise.")))
	_, err := run(t, "sessions", "import", backup)
	require.NoError(t, err)

	dir := t.TempDir()
	out, err := run(t, "export", "1714554000000", "-f", "md", "-o", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported to")

	data, err := os.ReadFile(filepath.Join(dir, "Night_routine.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Cleanse, then moisturise.")

	_, err = run(t, "export", "-f", "docx")
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

func TestModels_Catalogue(t *testing.T) {
	isolate(t)
	out, err := run(t, "models")
	require.NoError(t, err)
	for _, m := range model.Catalogue {
		assert.Contains(t, out, m.ID)
	}
	assert.Contains(t, out, "* DeepSeek Chat (Default)")
}

func TestModels_Remote(t *testing.T) {
	isolate(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[{"id":"a/one","name":"One","context_length":8192},{"id":"b/two","name":"Two","context_length":4096}]}`)
	}))
	defer srv.Close()
	t.Setenv("CLEO_ENDPOINT", srv.URL+"/api/v1/chat/completions")

	out, err := run(t, "models", "--remote", "--filter", "two")
	require.NoError(t, err)
	assert.Contains(t, out, "b/two")
	assert.NotContains(t, out, "a/one")
	assert.Contains(t, out, "1 model(s)")
}

// =============================================================================
// LINE-MODE CHAT
// =============================================================================

type scriptedInput struct {
	lines   []string
	history []string
}

func (s *scriptedInput) Prompt(string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedInput) AppendHistory(item string) {
	s.history = append(s.history, item)
}

func TestRepl_Conversation(t *testing.T) {
	isolate(t)
	gw := streamingGateway(t, "Hello ", "from CLEO")
	t.Setenv("CLEO_API_KEY", "sk-test")
	t.Setenv("CLEO_ENDPOINT", gw.URL)

	a, err := openApp(&globalOptions{backend: "memory"}, renderPlain)
	require.NoError(t, err)
	defer a.Close()

	in := &scriptedInput{lines: []string{
		"Hi",
		"",
		"/model Gemini 2.0 Flash",
		"/bogus",
		"/attach /no/such/file.txt",
		"/regen",
		"/quit",
		"never read",
	}}
	var out bytes.Buffer
	r := &repl{app: a, in: in, out: &out, loader: attach.DefaultLoader(), interrupts: make(chan os.Signal)}

	require.NoError(t, r.run(t.Context()))

	text := out.String()
	assert.Equal(t, 2, strings.Count(text, "Hello from CLEO"))
	assert.Contains(t, text, "Model set to Gemini 2.0 Flash")
	assert.Contains(t, text, "unknown command /bogus")
	assert.Contains(t, text, "file not found")
	assert.Equal(t, []string{"never read"}, in.lines)
	assert.NotContains(t, in.history, "")

	sess := a.store.Active()
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, "google/gemini-2.0-flash-001", a.holder.Get().Model)
}

// =============================================================================
// EXIT CODES
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", usageErrorf("bad"), ExitUsageError},
		{"not configured", fmt.Errorf("wrap: %w", cloud.ErrNotConfigured), ExitConfigError},
		{"invalid config", fmt.Errorf("invalid config: %w", config.ValidateErrors{{Field: "model", Message: "empty"}}), ExitConfigError},
		{"auth", &cloud.TransportError{Status: 401, Message: "No auth credentials found"}, ExitAuthError},
		{"network", &cloud.TransportError{Message: cloud.NetworkErrorMessage, Err: errors.New("dial")}, ExitNetworkError},
		{"not found", storage.ErrSessionNotFound, ExitNotFoundError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
