// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/cleo/internal/model"
)

const testKey = "sk-or-test-abcdefghijklmnopqrstuvwxyz0123456789"

// sseServer streams the given frames, flushing after each one.
func sseServer(t *testing.T, frames []string, inspect func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inspect != nil {
			inspect(r)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, f := range frames {
			fmt.Fprint(w, f)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// =============================================================================
// REQUEST TESTS
// =============================================================================

func TestSystemContent(t *testing.T) {
	assert.Equal(t, "prompt", SystemContent("prompt", ""))
	assert.Equal(t, "prompt", SystemContent("prompt", "   "))
	assert.Equal(t,
		"---START USER PROFILE---\nOily skin\n---END USER PROFILE---\n\nprompt",
		SystemContent("prompt", "Oily skin"))
}

func TestNewRequest(t *testing.T) {
	history := []model.Turn{
		model.NewTurn(model.RoleUser, model.Text("Hello")),
		model.NewTurn(model.RoleUser, model.Parts(model.ImagePart("data:image/png;base64,AA"))),
	}
	req := NewRequest("deepseek/deepseek-chat", "sys", "", history)

	assert.True(t, req.Stream)
	require.Len(t, req.Messages, 3)
	assert.Equal(t, model.RoleSystem, req.Messages[0].Role)

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"model": "deepseek/deepseek-chat",
		"stream": true,
		"messages": [
			{"role": "system", "content": "sys"},
			{"role": "user", "content": "Hello"},
			{"role": "user", "content": [{"type": "image_url", "image_url": {"url": "data:image/png;base64,AA"}}]}
		]
	}`, string(data))
}

// =============================================================================
// STREAM TESTS
// =============================================================================

func TestStream_HeadersAndBody(t *testing.T) {
	var gotAuth, gotCT string
	var gotBody Request
	srv := sseServer(t, []string{deltaLine("Hi"), deltaLine(" there!"), "data: [DONE]\n\n"}, func(r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCT = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
	})

	c := NewClient(testKey, WithEndpoint(srv.URL))
	var deltas []string
	res, err := c.Stream(context.Background(), NewRequest("m", "sys", "", nil), nil, func(d string) {
		deltas = append(deltas, d)
	})

	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, []string{"Hi", " there!"}, deltas)
	assert.Equal(t, "Bearer "+testKey, gotAuth)
	assert.Contains(t, gotCT, "application/json")
	assert.Equal(t, "m", gotBody.Model)
	assert.True(t, gotBody.Stream)
}

func TestStream_NotConfigured(t *testing.T) {
	c := NewClient("  ")
	assert.False(t, c.IsConfigured())
	_, err := c.Stream(context.Background(), Request{}, nil, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestStream_ErrorBodies(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
		is      error
	}{
		{"nested error message", 401, `{"error":{"code":401,"message":"No auth credentials found"}}`, "No auth credentials found", ErrAuthFailed},
		{"top-level message", 402, `{"message":"Insufficient credits"}`, "Insufficient credits", ErrInsufficientCredits},
		{"json without message", 404, `{"detail":"x"}`, DefaultErrorMessage, ErrModelNotFound},
		{"non-json body", 429, `slow down`, "Too Many Requests", ErrRateLimited},
		{"server error", 500, ``, "Internal Server Error", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(testKey, WithEndpoint(srv.URL))
			_, err := c.Stream(context.Background(), NewRequest("m", "s", "", nil), nil, nil)

			var terr *TransportError
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, tt.status, terr.Status)
			assert.Equal(t, tt.wantMsg, terr.Message)
			assert.False(t, terr.IsNetwork())
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestStream_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(testKey, WithEndpoint(url))
	_, err := c.Stream(context.Background(), NewRequest("m", "s", "", nil), nil, nil)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.True(t, terr.IsNetwork())
	assert.Equal(t, NetworkErrorMessage, terr.Message)
}

func TestStream_CancelAbortsTransport(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, deltaLine("partial"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	var stop atomic.Bool
	c := NewClient(testKey, WithEndpoint(srv.URL))

	var got []string
	done := make(chan struct{})
	var res Result
	var err error
	go func() {
		defer close(done)
		res, err = c.Stream(ctx, NewRequest("m", "s", "", nil), &stop, func(d string) {
			got = append(got, d)
			stop.Store(true)
			cancel()
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not return after cancellation")
	}
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.Equal(t, []string{"partial"}, got)
}

func TestStream_MalformedTolerated(t *testing.T) {
	srv := sseServer(t, []string{"data: {bad json\n", deltaLine("fine"), "data: [DONE]\n"}, nil)
	c := NewClient(testKey, WithEndpoint(srv.URL), WithReadSize(8))

	var got []string
	res, err := c.Stream(context.Background(), NewRequest("m", "s", "", nil), nil, func(d string) { got = append(got, d) })
	require.NoError(t, err)
	assert.Equal(t, []string{"fine"}, got)
	assert.Equal(t, 1, res.Malformed)
}

func TestStream_RateLimiterHonoursContext(t *testing.T) {
	srv := sseServer(t, []string{"data: [DONE]\n"}, nil)
	c := NewClient(testKey, WithEndpoint(srv.URL), WithRateLimit(1))

	_, err := c.Stream(context.Background(), NewRequest("m", "s", "", nil), nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Stream(ctx, NewRequest("m", "s", "", nil), nil, nil)
	assert.Error(t, err)
}

// =============================================================================
// MODEL LISTING TESTS
// =============================================================================

func TestModelsURL(t *testing.T) {
	c := NewClient(testKey)
	assert.Equal(t, "https://openrouter.ai/api/v1/models", c.ModelsURL())

	c = NewClient(testKey, WithEndpoint("http://localhost:9999/v1/"))
	assert.Equal(t, "http://localhost:9999/v1/models", c.ModelsURL())
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"qwen/qwen3-30b-a3b:free","name":"Qwen3 30B","context_length":40960}]}`))
	}))
	defer srv.Close()

	c := NewClient("", WithEndpoint(srv.URL+"/api/v1/chat/completions"))
	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "qwen/qwen3-30b-a3b:free", models[0].ID)
	assert.Equal(t, 40960, models[0].ContextLength)
}

func TestListModels_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"down for maintenance"}}`))
	}))
	defer srv.Close()

	c := NewClient("", WithEndpoint(srv.URL+"/chat/completions"))
	_, err := c.ListModels(context.Background())
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "down for maintenance", terr.Message)
}

func TestKeyFingerprint(t *testing.T) {
	assert.Equal(t, "none", KeyFingerprint(""))
	fp := KeyFingerprint(testKey)
	assert.Len(t, fp, 8)
	assert.NotContains(t, testKey, fp)
}
