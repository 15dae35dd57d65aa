// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	core "github.com/jeranaias/cleo/internal/chat"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EventMsg:
		return m.handleEvent(msg.Event)

	case replyMsg:
		return m.handleReply(msg)

	case exportedMsg:
		if msg.err != nil {
			m.setStatus("Export failed: "+msg.err.Error(), true)
		} else {
			m.setStatus("Exported to "+msg.path, false)
		}
		return m, nil

	case statusMsg:
		m.setStatus(msg.text, msg.isErr)
		return m, nil

	case spinner.TickMsg:
		if !m.state.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// resize lays out the viewport and input for a width x height terminal.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)
	m.ready = true

	main := width - m.sidebarWidth()
	m.input.SetWidth(max(main-2, 10))
	m.help.Width = width

	vh := height - headerHeight - statusHeight - attachmentHeight - inputHeight - inputBorder
	m.viewport.Width = max(main, 10)
	m.viewport.Height = max(vh, minViewport)
	m.updateViewport()
}

// sidebarWidth is the width taken by the session list, border included.
func (m Model) sidebarWidth() int {
	if !m.sidebar {
		return 0
	}
	w := m.theme.SidebarWidth()
	if w == 0 {
		return 0
	}
	return w + 2
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.ctrl.Stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.Stop):
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		if m.ctrl.Stop() {
			m.setStatus("Stopping...", false)
		}
		return m, nil

	case key.Matches(msg, m.keys.Regenerate):
		return m.regenerate()

	case key.Matches(msg, m.keys.NewSession):
		return m.newSession()

	case key.Matches(msg, m.keys.PrevSession):
		m.moveCursor(-1)
		return m, nil

	case key.Matches(msg, m.keys.NextSession):
		m.moveCursor(1)
		return m, nil

	case key.Matches(msg, m.keys.OpenSession):
		if m.cursor >= 0 && m.cursor < len(m.sessions) {
			return m.openSession(m.sessions[m.cursor].ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.ToggleSidebar):
		m.sidebar = !m.sidebar
		if m.ready {
			m.resize(m.width, m.height)
		}
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) moveCursor(delta int) {
	if len(m.sessions) == 0 {
		return
	}
	m.cursor += delta
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.cursor >= len(m.sessions) {
		m.cursor = len(m.sessions) - 1
	}
}

// =============================================================================
// SENDING
// =============================================================================

func (m Model) submit() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	if strings.HasPrefix(value, "/") {
		m.input.Reset()
		return m.handleCommand(value)
	}
	if value == "" && m.attachment == nil {
		return m, nil
	}
	if m.state.Busy() {
		m.setStatus("CLEO is still replying. Press Esc to stop.", false)
		return m, nil
	}

	m.input.Reset()
	m.setStatus("", false)
	return m, m.sendCmd(core.Input{Text: value})
}

func (m Model) regenerate() (tea.Model, tea.Cmd) {
	if m.state.Busy() {
		m.setStatus("CLEO is still replying. Press Esc to stop.", false)
		return m, nil
	}
	if m.session == nil || m.session.LastUserIndex() < 0 {
		m.setStatus("Nothing to regenerate yet.", false)
		return m, nil
	}
	m.setStatus("", false)
	return m, m.sendCmd(core.Input{Regenerate: true})
}

// sendCmd runs one request off the event loop.
func (m Model) sendCmd(in core.Input) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		reply, err := ctrl.Send(ctx, in)
		return replyMsg{reply: reply, err: err}
	}
}

func (m Model) handleReply(msg replyMsg) (tea.Model, tea.Cmd) {
	switch {
	case errors.Is(msg.err, core.ErrNotConfigured):
		m.setStatus(core.ConfigMessage, true)
	case msg.reply != nil && msg.reply.Stopped:
		m.setStatus("Stopped.", false)
	case msg.err != nil:
		if m.status == "" {
			m.setStatus(msg.err.Error(), true)
		}
	}
	m.refresh()
	return m, nil
}

// =============================================================================
// CONTROLLER EVENTS
// =============================================================================

func (m Model) handleEvent(e core.Event) (tea.Model, tea.Cmd) {
	switch e := e.(type) {
	case core.StateChanged:
		m.state = e.To
		if e.To.Busy() && !e.From.Busy() {
			return m, m.spinner.Tick
		}
		return m, nil

	case core.DeltaReceived:
		if m.session == nil || e.SessionID != m.session.ID {
			return m, nil
		}
		m.streamID = e.SessionID
		m.streaming = e.Rendered
		m.updateViewport()
		return m, nil

	case core.TurnCommitted:
		if !e.Turn.Notice && e.Rendered != "" {
			m.rendered[e.Turn.Text()] = e.Rendered
		}
		if e.Stopped {
			m.setStatus("Stopped.", false)
		}
		m.clearStreaming()
		m.refresh()
		return m, nil

	case core.ErrorOccurred:
		m.setStatus(e.Message, true)
		return m, nil

	case core.SessionChanged:
		m.cursor = -1
		m.clearStreaming()
		m.refresh()
		return m, nil

	case core.Settled:
		m.clearStreaming()
		m.refresh()
		return m, nil

	case core.TurnAppended, core.TurnsRemoved, core.TitleChanged, core.AttachmentChanged:
		m.refresh()
		return m, nil
	}
	return m, nil
}

func (m *Model) clearStreaming() {
	m.streaming = ""
	m.streamID = ""
}
