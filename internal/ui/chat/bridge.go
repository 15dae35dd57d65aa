// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	core "github.com/jeranaias/cleo/internal/chat"
)

// =============================================================================
// EVENT BRIDGE
// =============================================================================

// Sender is the part of *tea.Program the bridge needs.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge forwards controller events to a Bubble Tea program in emission
// order. Handle never blocks, so the controller may emit from inside
// Update (session switches do) without stalling the event loop.
type Bridge struct {
	mu      sync.Mutex
	pending []core.Event
	wake    chan struct{}
	sender  Sender
}

// NewBridge creates a bridge delivering to sender.
func NewBridge(sender Sender) *Bridge {
	return &Bridge{
		wake:   make(chan struct{}, 1),
		sender: sender,
	}
}

// Handle queues e for delivery. It implements core.Sink.
func (b *Bridge) Handle(e core.Event) {
	b.mu.Lock()
	b.pending = append(b.pending, e)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Run delivers queued events until ctx is done.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.wake:
		}

		b.mu.Lock()
		batch := b.pending
		b.pending = nil
		b.mu.Unlock()

		for _, e := range batch {
			b.sender.Send(EventMsg{Event: e})
		}
	}
}

// Attach subscribes a bridge for p to ctrl and starts delivering. The
// returned function unsubscribes and stops delivery.
func Attach(ctx context.Context, p Sender, ctrl *core.Controller) func() {
	ctx, cancel := context.WithCancel(ctx)
	b := NewBridge(p)
	unsubscribe := ctrl.Subscribe(b)
	go b.Run(ctx)
	return func() {
		unsubscribe()
		cancel()
	}
}
