// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/jeranaias/cleo/internal/model"
)

// Configuration constants.
const (
	// DefaultEndpoint is the chat completions URL.
	DefaultEndpoint = "https://openrouter.ai/api/v1/chat/completions"

	// MaxErrorBodySize bounds how much of an error response is read.
	MaxErrorBodySize = 64 * 1024

	// NetworkErrorMessage is shown when the request never reached the server.
	NetworkErrorMessage = "Oops! There was an error connecting to the API. Please check your settings and network."

	userAgent = "cleo/1.0"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Message is one outbound chat message.
type Message struct {
	Role    model.Role    `json:"role"`
	Content model.Content `json:"content"`
}

// Request is the body of a chat completions call.
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// SystemContent builds the system turn: an optional user-profile block
// followed by the system prompt.
func SystemContent(systemPrompt, userProfile string) string {
	if strings.TrimSpace(userProfile) == "" {
		return systemPrompt
	}
	return "---START USER PROFILE---\n" + userProfile + "\n---END USER PROFILE---\n\n" + systemPrompt
}

// NewRequest builds a streaming request whose first message is the system
// turn, followed by history verbatim.
func NewRequest(modelID, systemPrompt, userProfile string, history []model.Turn) Request {
	msgs := make([]Message, 0, len(history)+1)
	msgs = append(msgs, Message{
		Role:    model.RoleSystem,
		Content: model.Text(SystemContent(systemPrompt, userProfile)),
	})
	for _, t := range history {
		msgs = append(msgs, Message{Role: t.Role, Content: t.Content})
	}
	return Request{Model: modelID, Messages: msgs, Stream: true}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client sends chat completion requests.
type Client struct {
	rc       *resty.Client
	apiKey   string
	endpoint string
	limiter  *rate.Limiter
	logger   *log.Logger
	readSize int
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the chat completions URL.
func WithEndpoint(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.endpoint = url
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRateLimit allows at most perMinute requests per minute (0 = unlimited).
func WithRateLimit(perMinute int) Option {
	return func(c *Client) {
		if perMinute > 0 {
			c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
		}
	}
}

// WithReadSize sets the stream read buffer size.
func WithReadSize(n int) Option {
	return func(c *Client) { c.readSize = n }
}

// NewClient creates a client. An empty key yields a client whose requests
// fail with ErrNotConfigured.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:   strings.TrimSpace(apiKey),
		endpoint: DefaultEndpoint,
		logger:   log.New(io.Discard),
		readSize: DefaultReadSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.rc = resty.New().
		SetHeader("User-Agent", userAgent).
		SetLogger(c.logger)
	return c
}

// IsConfigured reports whether an API key is set.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Endpoint returns the chat completions URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// KeyFingerprint returns the first 8 hex characters of the key's SHA-256.
func (c *Client) KeyFingerprint() string {
	return KeyFingerprint(c.apiKey)
}

// KeyFingerprint identifies a key in logs without revealing it.
func KeyFingerprint(key string) string {
	if key == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:4])
}

// =============================================================================
// STREAMING
// =============================================================================

// Open sends req and returns the response body for decoding. Non-success
// statuses and network failures are returned as *TransportError. A request
// aborted by ctx returns ctx.Err().
func (c *Client) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	c.logger.Debug("API request", "model", req.Model, "messages", len(req.Messages), "key", c.KeyFingerprint())
	start := time.Now()

	resp, err := c.rc.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetAuthToken(c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "text/event-stream").
		SetBody(req).
		Post(c.endpoint)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.Warn("API request failed", "err", err)
		return nil, &TransportError{Message: NetworkErrorMessage, Err: err}
	}

	body := resp.RawBody()
	c.logger.Debug("API response", "status", resp.StatusCode(), "elapsed", time.Since(start))

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		defer body.Close()
		data, _ := io.ReadAll(io.LimitReader(body, MaxErrorBodySize))
		terr := newStatusError(resp.StatusCode(), data)
		c.logger.Warn("API error response", "status", terr.Status, "message", terr.Message)
		return nil, terr
	}
	return body, nil
}

// Stream sends req and decodes the response, calling emit for each delta.
// Setting stop makes decoding return at the next read or line boundary;
// cancelling ctx aborts the transport. Either way the returned Result has
// Stopped set and err is nil.
func (c *Client) Stream(ctx context.Context, req Request, stop *atomic.Bool, emit DeltaFunc) (Result, error) {
	body, err := c.Open(ctx, req)
	if err != nil {
		if stop != nil && stop.Load() && !errors.Is(err, ErrNotConfigured) {
			return Result{Stopped: true}, nil
		}
		return Result{}, err
	}
	return c.Decode(ctx, body, stop, emit)
}

// Decode consumes and closes a body returned by Open. A read error caused by
// cancelling ctx is reported as a stop, not an error.
func (c *Client) Decode(ctx context.Context, body io.ReadCloser, stop *atomic.Bool, emit DeltaFunc) (Result, error) {
	defer body.Close()

	dec := NewDecoder(body, stop)
	dec.SetReadSize(c.readSize)
	dec.OnMalformed = func(line []byte, err error) {
		c.logger.Warn("skipping malformed stream line", "bytes", len(line), "err", err)
	}

	res, err := dec.Decode(emit)
	if err != nil && ctx.Err() != nil {
		// Transport torn down by cancellation.
		res.Stopped = true
		err = nil
	}
	if res.Malformed > 0 {
		c.logger.Warn("stream contained malformed lines", "count", res.Malformed)
	}
	c.logger.Debug("stream finished", "deltas", res.Deltas, "done", res.Done, "stopped", res.Stopped)
	return res, err
}

// =============================================================================
// MODEL LISTING
// =============================================================================

// RemoteModel is a model advertised by the gateway.
type RemoteModel struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	ContextLength int    `json:"context_length" yaml:"context_length"`
}

type modelsResponse struct {
	Data []RemoteModel `json:"data"`
}

// ModelsURL derives the models listing URL from the chat endpoint.
func (c *Client) ModelsURL() string {
	if base, ok := strings.CutSuffix(c.endpoint, "/chat/completions"); ok {
		return base + "/models"
	}
	return strings.TrimSuffix(c.endpoint, "/") + "/models"
}

// ListModels retrieves the models available from the gateway. No API key
// is required.
func (c *Client) ListModels(ctx context.Context) ([]RemoteModel, error) {
	var out modelsResponse
	r := c.rc.R().SetContext(ctx).SetResult(&out)
	if c.apiKey != "" {
		r.SetAuthToken(c.apiKey)
	}

	resp, err := r.Get(c.ModelsURL())
	if err != nil {
		return nil, &TransportError{Message: NetworkErrorMessage, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, newStatusError(resp.StatusCode(), resp.Body())
	}
	if out.Data == nil {
		return nil, fmt.Errorf("failed to parse models response: no data")
	}
	return out.Data, nil
}
