// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	core "github.com/jeranaias/cleo/internal/chat"
	"github.com/jeranaias/cleo/internal/model"
	"github.com/jeranaias/cleo/internal/util"
)

const (
	welcomeText      = "Tell CLEO about your skin type, concerns and current routine to get started."
	imagePlaceholder = "[Image Uploaded]"
	thinkingText     = "Thinking..."
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the whole screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	body := m.viewport.View()
	if m.showHelp {
		body = m.theme.Help.Render(m.help.FullHelpView(m.keys.FullHelp()))
	}
	if sw := m.sidebarWidth(); sw > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(sw-2), body)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.renderAttachment(),
		m.theme.InputContainer.Render(m.input.View()),
		m.renderStatus(),
	)
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader() string {
	title := model.PlaceholderTitle
	if m.session != nil && m.session.Title != "" {
		title = m.session.Title
	}
	modelName := model.ModelDisplayName(m.ctrl.Config().Get().Model)

	brand := m.theme.HeaderBrand.Render("CLEO")
	right := m.theme.HeaderModel.Render(modelName)
	avail := m.width - lipgloss.Width(brand) - lipgloss.Width(right) - 6
	line := brand + "  " + m.theme.HeaderTitle.Render(util.TruncateWidth(title, max(avail, 0)))

	gap := m.width - lipgloss.Width(line) - lipgloss.Width(right) - 2
	if gap > 0 {
		line += strings.Repeat(" ", gap) + right
	}
	return m.theme.Header.Width(m.width).Render(line)
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m Model) renderSidebar(width int) string {
	var b strings.Builder

	heading := "Consultations"
	if m.filter != "" {
		heading = "Search: " + m.filter
	}
	b.WriteString(m.theme.SidebarTitle.Render(util.TruncateWidth(heading, width)))
	b.WriteString("\n")

	if len(m.sessions) == 0 {
		b.WriteString(m.theme.SidebarPreview.Render("No matches"))
	}

	// Rows left after the heading and its margin.
	rows := max(m.viewport.Height-2, 1)
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	for i := start; i < len(m.sessions) && i < start+rows; i++ {
		s := m.sessions[i]
		marker := "  "
		if m.session != nil && s.ID == m.session.ID {
			marker = "* "
		}
		label := marker + util.TruncateWidth(s.Title, width-2)

		style := m.theme.SidebarItem
		switch {
		case i == m.cursor:
			style = m.theme.SidebarSelected
		case m.session != nil && s.ID == m.session.ID:
			style = m.theme.SidebarActive
		}
		b.WriteString(style.Width(width).Render(label))
		b.WriteString("\n")
	}

	return m.theme.Sidebar.
		Width(width).
		Height(m.viewport.Height).
		Render(strings.TrimRight(b.String(), "\n"))
}

// =============================================================================
// MESSAGES
// =============================================================================

// updateViewport re-renders the conversation and keeps the view pinned to
// the bottom when it already was.
func (m *Model) updateViewport() {
	atBottom := m.viewport.AtBottom() || m.viewport.TotalLineCount() == 0
	m.viewport.SetContent(m.renderConversation())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderConversation() string {
	width := max(m.viewport.Width-2, 10)
	if m.session == nil || (m.session.IsEmpty() && !m.inFlight()) {
		return m.theme.Placeholder.Width(width).Render(welcomeText)
	}

	var blocks []string
	for _, t := range m.session.Messages {
		blocks = append(blocks, m.renderTurn(t, width))
	}

	if m.inFlight() {
		body := m.streaming
		if body == "" {
			body = m.theme.Muted.Render(m.spinner.View() + " " + thinkingText)
		}
		blocks = append(blocks, m.theme.AssistantLabel.Render(model.RoleAssistant.DisplayName())+"\n"+body)
	}
	return strings.Join(blocks, "\n\n")
}

// inFlight reports whether a reply is being produced for the active
// session.
func (m *Model) inFlight() bool {
	if m.session == nil {
		return false
	}
	if m.streamID == m.session.ID {
		return true
	}
	return m.state.Busy() && m.session.Len() > 0 &&
		m.session.Messages[m.session.Len()-1].Role == model.RoleUser
}

func (m *Model) renderTurn(t model.Turn, width int) string {
	switch {
	case t.Role == model.RoleUser:
		return m.theme.UserLabel.Render(t.Role.DisplayName()) + "\n" +
			m.theme.UserText.Width(width).Render(userText(t))
	case t.Notice:
		return m.theme.AssistantLabel.Render(t.Role.DisplayName()) + "\n" +
			m.theme.Notice.Width(width).Render(strings.TrimPrefix(t.Text(), "**Error:** "))
	case t.Role == model.RoleAssistant:
		return m.theme.AssistantLabel.Render(t.Role.DisplayName()) + "\n" +
			strings.TrimRight(m.renderAssistant(t.Text()), "\n")
	default:
		return m.theme.SystemLabel.Render(t.Role.DisplayName()) + "\n" +
			m.theme.UserText.Width(width).Render(t.Text())
	}
}

// userText is the displayed form of a user turn. Images show as a
// placeholder.
func userText(t model.Turn) string {
	text := t.Content.PlainText()
	if _, ok := t.Content.Image(); ok {
		if text == "" {
			return imagePlaceholder
		}
		return text + "\n" + imagePlaceholder
	}
	return text
}

// =============================================================================
// INPUT AND STATUS
// =============================================================================

func (m Model) renderAttachment() string {
	if m.attachment == nil {
		return ""
	}
	return m.theme.Attachment.Render(fmt.Sprintf("Attached: %s (%s) - /detach to remove",
		util.TruncateWidth(m.attachment.Name, 40), m.attachment.Kind))
}

func (m Model) renderStatus() string {
	var state string
	switch m.state {
	case core.StateSending, core.StateStreaming:
		state = m.theme.StatusBusy.Render(m.spinner.View() + " " + m.state.String())
	case core.StateError:
		state = m.theme.StatusError.Render("Error")
	default:
		state = m.theme.StatusIdle.Render("Ready")
	}

	msg := m.status
	if msg != "" {
		style := m.theme.Muted
		if m.statusErr {
			style = m.theme.StatusError
		}
		msg = style.Render(util.TruncateWidth(msg, max(m.width/2, 10)))
	}

	left := state
	if msg != "" {
		left += "  " + msg
	}
	hints := m.theme.ShortcutDesc.Render(m.shortHelp())
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(hints) - 2
	line := left
	if gap > 0 {
		line += strings.Repeat(" ", gap) + hints
	}
	return m.theme.StatusBar.Width(m.width).Render(line)
}

func (m Model) shortHelp() string {
	var parts []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " | ")
}
