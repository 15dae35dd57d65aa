// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	"github.com/jeranaias/cleo/internal/model"
)

// =============================================================================
// STATE
// =============================================================================

// State is the controller's request state.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Busy reports whether a request is in flight.
func (s State) Busy() bool {
	return s == StateSending || s == StateStreaming
}

// ErrorKind classifies a failure shown to the user.
type ErrorKind int

const (
	// ErrorConfig means no API key is configured.
	ErrorConfig ErrorKind = iota
	// ErrorNetwork means the request never completed at the transport level.
	ErrorNetwork
	// ErrorServer means the gateway answered with a failure status or an
	// empty reply.
	ErrorServer
	// ErrorStorage means the session could not be persisted.
	ErrorStorage
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrorConfig:
		return "config"
	case ErrorNetwork:
		return "network"
	case ErrorServer:
		return "server"
	case ErrorStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// =============================================================================
// EVENTS
// =============================================================================

// Event is a value notification from the controller.
type Event interface {
	event()
}

// StateChanged reports a state transition.
type StateChanged struct {
	From State
	To   State
}

// TurnAppended reports a user turn added to a session.
type TurnAppended struct {
	SessionID string
	Turn      model.Turn
}

// TurnsRemoved reports turns dropped by regeneration.
type TurnsRemoved struct {
	SessionID string
	Turns     []model.Turn
}

// DeltaReceived carries one decoded delta plus the stable rendering of
// everything received so far.
type DeltaReceived struct {
	SessionID   string
	Delta       string
	Accumulated string
	Rendered    string
}

// TurnCommitted reports the assistant turn (reply or notice) that ended a
// request. Rendered has had the highlight pass applied.
type TurnCommitted struct {
	SessionID string
	Turn      model.Turn
	Rendered  string
	Stopped   bool
}

// TitleChanged reports an inferred session title.
type TitleChanged struct {
	SessionID string
	Title     string
}

// ErrorOccurred reports a failure. Message is what the user should see.
type ErrorOccurred struct {
	SessionID string
	Kind      ErrorKind
	Message   string
	Err       error
}

// SessionChanged reports that a different session became active.
type SessionChanged struct {
	Session *model.Session
}

// AttachmentChanged reports the pending attachment was set or cleared.
type AttachmentChanged struct {
	Attachment *model.Attachment
}

// Settled is emitted once per request after cleanup, whatever the outcome.
type Settled struct {
	SessionID string
}

func (StateChanged) event()      {}
func (TurnAppended) event()      {}
func (TurnsRemoved) event()      {}
func (DeltaReceived) event()     {}
func (TurnCommitted) event()     {}
func (TitleChanged) event()      {}
func (ErrorOccurred) event()     {}
func (SessionChanged) event()    {}
func (AttachmentChanged) event() {}
func (Settled) event()           {}

// =============================================================================
// SINKS
// =============================================================================

// Sink receives controller events.
type Sink interface {
	Handle(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Handle calls f(e).
func (f SinkFunc) Handle(e Event) { f(e) }

// Recorder is a Sink that keeps every event. Useful in tests and for the
// one-shot command.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Handle records e.
func (r *Recorder) Handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Reset drops recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
