// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/cleo/internal/cloud"
	"github.com/jeranaias/cleo/internal/config"
	"github.com/jeranaias/cleo/internal/model"
	"github.com/jeranaias/cleo/internal/render"
	"github.com/jeranaias/cleo/internal/storage"
)

// =============================================================================
// ERRORS AND MESSAGES
// =============================================================================

// ErrNotConfigured is returned by Send when no API key is configured.
var ErrNotConfigured = cloud.ErrNotConfigured

// User-visible messages.
const (
	ConfigMessage  = "Please set your API key in the settings first."
	StoppedMessage = "Response generation was stopped."
)

// ErrorNotice formats a server-supplied failure as a notice turn body.
func ErrorNotice(msg string) string {
	return "**Error:** " + msg
}

// =============================================================================
// TRANSPORT
// =============================================================================

// Streamer opens a streaming request and decodes its body.
type Streamer interface {
	Open(ctx context.Context, req cloud.Request) (io.ReadCloser, error)
	Decode(ctx context.Context, body io.ReadCloser, stop *atomic.Bool, emit cloud.DeltaFunc) (cloud.Result, error)
}

// ClientFactory builds a Streamer for a configuration snapshot.
type ClientFactory func(cfg *config.Config, logger *log.Logger) Streamer

// NewCloudClient is the default ClientFactory.
func NewCloudClient(cfg *config.Config, logger *log.Logger) Streamer {
	return cloud.NewClient(cfg.APIKey,
		cloud.WithEndpoint(cfg.Endpoint),
		cloud.WithLogger(logger),
		cloud.WithRateLimit(cfg.Client.RequestsPerMinute),
	)
}

type clientKey struct {
	apiKey   string
	endpoint string
	rpm      int
}

// =============================================================================
// STREAM STATE
// =============================================================================

// streamState is the single in-flight request.
type streamState struct {
	sessionID string
	ctx       context.Context
	cancel    context.CancelFunc
	stop      atomic.Bool
	done      chan struct{}

	mu          sync.Mutex
	accumulated strings.Builder
	failed      bool
}

func (st *streamState) abort() {
	st.stop.Store(true)
	st.cancel()
}

func (st *streamState) append(delta string) string {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.accumulated.WriteString(delta)
	return st.accumulated.String()
}

func (st *streamState) text() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.accumulated.String()
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Input is one send request.
type Input struct {
	// Text is the user's message. Ignored when regenerating.
	Text string
	// Attachment overrides the pending attachment when set.
	Attachment *model.Attachment
	// Regenerate retries the last exchange instead of adding a user turn.
	Regenerate bool
}

// Reply describes the assistant turn committed by a request.
type Reply struct {
	SessionID string
	Turn      model.Turn
	Rendered  string
	Title     string
	Stopped   bool
	// Err is the transport failure that produced a notice, if any.
	Err error
}

// Controller owns the conversation state machine. It is safe for concurrent
// use; at most one request is in flight.
type Controller struct {
	store     *storage.Store
	cfg       *config.Holder
	renderer  *render.Renderer
	logger    *log.Logger
	newClient ClientFactory

	mu        sync.Mutex
	state     State
	stream    *streamState
	pending   *model.Attachment
	client    Streamer
	clientKey clientKey

	sinkMu sync.Mutex
	sinks  []subscriber
	nextID int
}

type subscriber struct {
	id   int
	sink Sink
}

// Option configures a Controller.
type Option func(*Controller)

// WithRenderer sets the renderer used for deltas and final turns.
func WithRenderer(r *render.Renderer) Option {
	return func(c *Controller) {
		if r != nil {
			c.renderer = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClientFactory overrides how transport clients are built.
func WithClientFactory(f ClientFactory) Option {
	return func(c *Controller) {
		if f != nil {
			c.newClient = f
		}
	}
}

// New creates a controller over store, reading configuration from cfg on
// every send.
func New(store *storage.Store, cfg *config.Holder, opts ...Option) *Controller {
	c := &Controller{
		store:     store,
		cfg:       cfg,
		renderer:  render.New(nil),
		logger:    log.New(io.Discard),
		newClient: NewCloudClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the session store.
func (c *Controller) Store() *storage.Store { return c.store }

// Config returns the configuration holder.
func (c *Controller) Config() *config.Holder { return c.cfg }

// Renderer returns the renderer.
func (c *Controller) Renderer() *render.Renderer { return c.renderer }

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers s and returns a function that removes it. Sinks are
// called in registration order.
func (c *Controller) Subscribe(s Sink) func() {
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()
	id := c.nextID
	c.nextID++
	c.sinks = append(c.sinks, subscriber{id: id, sink: s})
	return func() {
		c.sinkMu.Lock()
		defer c.sinkMu.Unlock()
		for i, sub := range c.sinks {
			if sub.id == id {
				c.sinks = append(c.sinks[:i:i], c.sinks[i+1:]...)
				return
			}
		}
	}
}

func (c *Controller) emit(e Event) {
	c.sinkMu.Lock()
	subs := c.sinks
	c.sinkMu.Unlock()

	for _, sub := range subs {
		sub.sink.Handle(e)
	}
}

func (c *Controller) setState(to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.mu.Unlock()
	if from != to {
		c.emit(StateChanged{From: from, To: to})
	}
}

// =============================================================================
// PENDING ATTACHMENT
// =============================================================================

// SetAttachment replaces the pending attachment.
func (c *Controller) SetAttachment(att *model.Attachment) {
	c.mu.Lock()
	c.pending = att
	c.mu.Unlock()
	c.emit(AttachmentChanged{Attachment: att})
}

// Attachment returns the pending attachment, or nil.
func (c *Controller) Attachment() *model.Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// ClearAttachment drops the pending attachment.
func (c *Controller) ClearAttachment() {
	c.mu.Lock()
	had := c.pending != nil
	c.pending = nil
	c.mu.Unlock()
	if had {
		c.emit(AttachmentChanged{})
	}
}

// =============================================================================
// SEND
// =============================================================================

// Regenerate retries the active session's last exchange.
func (c *Controller) Regenerate(ctx context.Context) (*Reply, error) {
	return c.Send(ctx, Input{Regenerate: true})
}

// Send runs one request against the active session and blocks until the
// reply is committed. It returns nil, nil when there is nothing to send and
// ErrNotConfigured, with no state change, when no API key is set. A
// transport failure commits a notice turn and is returned both in
// Reply.Err and as the error.
//
// Any request already in flight is stopped first and its partial reply is
// committed to the session it belongs to.
func (c *Controller) Send(ctx context.Context, in Input) (*Reply, error) {
	cfg := c.cfg.Get()

	text := strings.TrimSpace(in.Text)
	att := in.Attachment
	if att == nil && !in.Regenerate {
		att = c.Attachment()
	}
	if !in.Regenerate && text == "" && att == nil {
		return nil, nil
	}

	if !cfg.IsConfigured() {
		c.emit(ErrorOccurred{
			SessionID: c.store.ActiveID(),
			Kind:      ErrorConfig,
			Message:   ConfigMessage,
			Err:       ErrNotConfigured,
		})
		return nil, ErrNotConfigured
	}

	c.cancelAndWait()

	sessionID := c.store.ActiveID()
	if in.Regenerate {
		sess, err := c.store.Get(sessionID)
		if err != nil {
			return nil, err
		}
		if sess.LastUserIndex() < 0 {
			return nil, nil
		}
	}

	st := c.begin(ctx, sessionID)
	outcome := StateIdle
	defer func() { c.finish(st, outcome) }()

	if in.Regenerate {
		removed, err := c.store.TruncateAfterLastUser(sessionID)
		if err != nil {
			outcome = StateError
			return nil, c.storageFailure(sessionID, err)
		}
		if len(removed) > 0 {
			c.emit(TurnsRemoved{SessionID: sessionID, Turns: removed})
		}
	} else {
		turn, ok := model.BuildUserTurn(text, att)
		if !ok {
			return nil, nil
		}
		if err := c.store.AppendTurn(sessionID, turn); err != nil {
			outcome = StateError
			return nil, c.storageFailure(sessionID, err)
		}
		c.emit(TurnAppended{SessionID: sessionID, Turn: turn})
		c.ClearAttachment()
	}

	sess, err := c.store.Get(sessionID)
	if err != nil {
		outcome = StateError
		return nil, err
	}
	history := sess.History()
	titleEligible := len(history) < 2 || (in.Regenerate && len(history) <= 2)

	c.logger.Info("sending",
		"session", sessionID,
		"model", cfg.Model,
		"turns", len(history),
		"regenerate", in.Regenerate,
	)

	req := cloud.NewRequest(cfg.Model, cfg.SystemPrompt, cfg.UserProfile, history)
	reply, err := c.run(st, c.clientFor(cfg), req, titleEligible)
	if st.failed {
		outcome = StateError
	}
	return reply, err
}

// run performs the request and commits its outcome.
func (c *Controller) run(st *streamState, client Streamer, req cloud.Request, titleEligible bool) (*Reply, error) {
	body, err := client.Open(st.ctx, req)
	if err != nil {
		if st.stop.Load() || st.ctx.Err() != nil {
			return c.commit(st, true, false)
		}
		return c.fail(st, err)
	}

	c.setState(StateStreaming)

	res, err := client.Decode(st.ctx, body, &st.stop, func(delta string) {
		acc := st.append(delta)
		rendered, rerr := c.renderer.Render(acc)
		if rerr != nil {
			c.logger.Debug("render failed", "err", rerr)
			rendered = acc
		}
		c.emit(DeltaReceived{
			SessionID:   st.sessionID,
			Delta:       delta,
			Accumulated: acc,
			Rendered:    rendered,
		})
	})
	if err != nil {
		if st.stop.Load() {
			return c.commit(st, true, false)
		}
		return c.fail(st, err)
	}
	return c.commit(st, res.Stopped || (!res.Done && st.stop.Load()), titleEligible)
}

// commit stores the accumulated reply as an assistant turn.
func (c *Controller) commit(st *streamState, stopped, titleEligible bool) (*Reply, error) {
	text := st.text()

	if text == "" {
		if stopped {
			return c.commitNotice(st, StoppedMessage, true)
		}
		st.failed = true
		c.logger.Warn("empty reply", "session", st.sessionID)
		reply, err := c.commitNotice(st, ErrorNotice(cloud.DefaultErrorMessage), false)
		c.emit(ErrorOccurred{
			SessionID: st.sessionID,
			Kind:      ErrorServer,
			Message:   cloud.DefaultErrorMessage,
		})
		return reply, err
	}

	rendered, err := c.renderer.Finalize(text)
	if err != nil {
		c.logger.Debug("render failed", "err", err)
		rendered = text
	}

	turn := model.NewAssistantTurn(text)
	if err := c.store.AppendTurn(st.sessionID, turn); err != nil {
		st.failed = true
		return nil, c.storageFailure(st.sessionID, err)
	}
	c.emit(TurnCommitted{SessionID: st.sessionID, Turn: turn, Rendered: rendered, Stopped: stopped})

	reply := &Reply{SessionID: st.sessionID, Turn: turn, Rendered: rendered, Stopped: stopped}
	c.logger.Info("reply committed", "session", st.sessionID, "chars", len(text), "stopped", stopped)

	if titleEligible {
		title, err := c.store.UpdateTitleFromFirstReply(st.sessionID, text)
		if err != nil {
			return reply, c.storageFailure(st.sessionID, err)
		}
		if title != "" {
			reply.Title = title
			c.emit(TitleChanged{SessionID: st.sessionID, Title: title})
		}
	}
	return reply, nil
}

// fail commits a notice describing err. Partial text is discarded.
func (c *Controller) fail(st *streamState, err error) (*Reply, error) {
	st.failed = true

	kind := ErrorNetwork
	msg := cloud.NetworkErrorMessage
	notice := msg

	var terr *cloud.TransportError
	if errors.As(err, &terr) && terr.Status > 0 {
		kind = ErrorServer
		msg = terr.Message
		notice = ErrorNotice(msg)
	}

	c.logger.Error("request failed", "session", st.sessionID, "kind", kind, "err", err)

	reply, cerr := c.commitNotice(st, notice, false)
	c.emit(ErrorOccurred{SessionID: st.sessionID, Kind: kind, Message: msg, Err: err})
	if cerr != nil {
		return nil, cerr
	}
	if reply != nil {
		reply.Err = err
	}
	return reply, err
}

func (c *Controller) commitNotice(st *streamState, text string, stopped bool) (*Reply, error) {
	turn := model.NewNoticeTurn(text)
	if err := c.store.AppendTurn(st.sessionID, turn); err != nil {
		st.failed = true
		return nil, c.storageFailure(st.sessionID, err)
	}
	rendered, err := c.renderer.Finalize(text)
	if err != nil {
		rendered = text
	}
	c.emit(TurnCommitted{SessionID: st.sessionID, Turn: turn, Rendered: rendered, Stopped: stopped})
	return &Reply{SessionID: st.sessionID, Turn: turn, Rendered: rendered, Stopped: stopped}, nil
}

func (c *Controller) storageFailure(sessionID string, err error) error {
	if errors.Is(err, storage.ErrSessionNotFound) {
		// Session deleted mid-request.
		c.logger.Info("dropping reply for removed session", "session", sessionID)
		return nil
	}
	c.logger.Error("persist failed", "session", sessionID, "err", err)
	c.emit(ErrorOccurred{
		SessionID: sessionID,
		Kind:      ErrorStorage,
		Message:   "Could not save the conversation.",
		Err:       err,
	})
	return fmt.Errorf("persist session %s: %w", sessionID, err)
}

// =============================================================================
// STREAM LIFECYCLE
// =============================================================================

func (c *Controller) begin(ctx context.Context, sessionID string) *streamState {
	sctx, cancel := context.WithCancel(ctx)
	st := &streamState{
		sessionID: sessionID,
		ctx:       sctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	c.mu.Lock()
	c.stream = st
	c.mu.Unlock()

	c.setState(StateSending)
	return st
}

// finish is the per-request cleanup. It always runs.
func (c *Controller) finish(st *streamState, outcome State) {
	st.cancel()

	c.mu.Lock()
	if c.stream == st {
		c.stream = nil
	}
	c.mu.Unlock()

	c.setState(outcome)
	close(st.done)
	c.emit(Settled{SessionID: st.sessionID})
}

// Stop asks the in-flight request to end. The partial reply is committed.
// It returns false when nothing is in flight.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	st := c.stream
	c.mu.Unlock()
	if st == nil {
		return false
	}
	c.logger.Info("stop requested", "session", st.sessionID)
	st.abort()
	return true
}

// Wait blocks until no request is in flight.
func (c *Controller) Wait() {
	for {
		c.mu.Lock()
		st := c.stream
		c.mu.Unlock()
		if st == nil {
			return
		}
		<-st.done
	}
}

func (c *Controller) cancelAndWait() {
	c.Stop()
	c.Wait()
}

func (c *Controller) clientFor(cfg *config.Config) Streamer {
	key := clientKey{apiKey: cfg.APIKey, endpoint: cfg.Endpoint, rpm: cfg.Client.RequestsPerMinute}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil || key != c.clientKey {
		c.client = c.newClient(cfg, c.logger)
		c.clientKey = key
	}
	return c.client
}

// =============================================================================
// SESSIONS
// =============================================================================

// NewSession stops any in-flight request and activates a fresh session.
// The stopped reply still lands in the session it started in.
func (c *Controller) NewSession() (*model.Session, error) {
	c.Stop()
	sess, err := c.store.Create()
	if err != nil {
		return nil, err
	}
	c.activated(sess)
	return sess, nil
}

// SwitchSession stops any in-flight request and activates id, or a fresh
// session when id is unknown.
func (c *Controller) SwitchSession(id string) (*model.Session, error) {
	if id == c.store.ActiveID() {
		return c.store.Get(id)
	}
	c.Stop()
	sess, err := c.store.Select(id)
	if err != nil {
		return nil, err
	}
	c.activated(sess)
	return sess, nil
}

// DeleteSession removes id and returns the session that is now active.
func (c *Controller) DeleteSession(id string) (*model.Session, error) {
	c.mu.Lock()
	st := c.stream
	c.mu.Unlock()
	if st != nil && st.sessionID == id {
		st.abort()
	}

	wasActive := id == c.store.ActiveID()
	sess, err := c.store.Delete(id)
	if err != nil {
		return nil, err
	}
	if wasActive {
		c.activated(sess)
	}
	return sess, nil
}

// ClearHistory stops any request, removes every session and activates a
// fresh one.
func (c *Controller) ClearHistory() (*model.Session, error) {
	c.Stop()
	sess, err := c.store.Clear()
	if err != nil {
		return nil, err
	}
	c.activated(sess)
	return sess, nil
}

func (c *Controller) activated(sess *model.Session) {
	c.mu.Lock()
	if c.state == StateError {
		c.state = StateIdle
		c.mu.Unlock()
		c.emit(StateChanged{From: StateError, To: StateIdle})
	} else {
		c.mu.Unlock()
	}
	c.emit(SessionChanged{Session: sess})
}
