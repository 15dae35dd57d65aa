// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/cleo/internal/config"
	"github.com/jeranaias/cleo/internal/export"
	"github.com/jeranaias/cleo/internal/model"
)

// =============================================================================
// COMMAND HANDLER REGISTRY
// =============================================================================

// CommandHandler handles one slash command. args keeps the raw text after
// the command name split on whitespace.
type CommandHandler func(m *Model, args []string) (tea.Model, tea.Cmd)

// commandHandlers maps command names to their handler functions.
var commandHandlers = map[string]CommandHandler{
	// Help & Meta
	"help": handleHelpCommand,
	"h":    handleHelpCommand,
	"?":    handleHelpCommand,
	"quit": handleQuitCommand,
	"q":    handleQuitCommand,
	"exit": handleQuitCommand,

	// Session Management
	"new":      handleNewCommand,
	"n":        handleNewCommand,
	"rename":   handleRenameCommand,
	"delete":   handleDeleteCommand,
	"del":      handleDeleteCommand,
	"clear":    handleClearCommand,
	"sessions": handleSessionsCommand,
	"list":     handleSessionsCommand,
	"open":     handleOpenCommand,
	"o":        handleOpenCommand,
	"search":   handleSearchCommand,
	"export":   handleExportCommand,
	"e":        handleExportCommand,

	// Conversation
	"attach": handleAttachCommand,
	"a":      handleAttachCommand,
	"detach": handleDetachCommand,
	"regen":  handleRegenCommand,
	"r":      handleRegenCommand,
	"stop":   handleStopCommand,

	// Configuration
	"model":   handleModelCommand,
	"m":       handleModelCommand,
	"profile": handleProfileCommand,
}

// handleCommand dispatches a slash command.
func (m Model) handleCommand(content string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(content)
	if len(parts) == 0 {
		return m, nil
	}

	name := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	handler, ok := commandHandlers[name]
	if !ok {
		m.setStatus(fmt.Sprintf("Unknown command: /%s (try /help)", name), true)
		return m, nil
	}
	return handler(&m, parts[1:])
}

// =============================================================================
// HELP & META
// =============================================================================

func handleHelpCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	m.showHelp = true
	m.setStatus("Commands: /new /rename /delete /clear /open /search /export /attach /detach /regen /stop /model /profile /quit", false)
	return *m, nil
}

func handleQuitCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	m.ctrl.Stop()
	return *m, tea.Quit
}

// =============================================================================
// SESSION MANAGEMENT
// =============================================================================

func handleNewCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	return m.newSession()
}

func (m Model) newSession() (tea.Model, tea.Cmd) {
	if _, err := m.ctrl.NewSession(); err != nil {
		m.setStatus("Could not start a consultation: "+err.Error(), true)
		return m, nil
	}
	m.filter = ""
	m.cursor = -1
	m.clearStreaming()
	m.setStatus("Started a new consultation.", false)
	m.refresh()
	return m, nil
}

func (m Model) openSession(id string) (tea.Model, tea.Cmd) {
	if _, err := m.ctrl.SwitchSession(id); err != nil {
		m.setStatus("Could not open consultation: "+err.Error(), true)
		return m, nil
	}
	m.cursor = -1
	m.clearStreaming()
	m.setStatus("", false)
	m.refresh()
	return m, nil
}

func handleRenameCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	title := strings.Join(args, " ")
	if title == "" {
		m.setStatus("Usage: /rename <title>", true)
		return *m, nil
	}
	if m.session == nil {
		return *m, nil
	}
	if err := m.ctrl.Store().Rename(m.session.ID, title); err != nil {
		m.setStatus("Rename failed: "+err.Error(), true)
		return *m, nil
	}
	m.setStatus("Renamed.", false)
	m.refresh()
	return *m, nil
}

// sessionArg resolves a 1-based sidebar index, defaulting to the active
// session.
func (m *Model) sessionArg(args []string) (*model.Session, error) {
	if len(args) == 0 {
		if m.session == nil {
			return nil, fmt.Errorf("no active consultation")
		}
		return m.session, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(m.sessions) {
		return nil, fmt.Errorf("no consultation #%s (1-%d)", args[0], len(m.sessions))
	}
	return m.sessions[n-1], nil
}

func handleDeleteCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	target, err := m.sessionArg(args)
	if err != nil {
		m.setStatus(err.Error(), true)
		return *m, nil
	}
	if _, err := m.ctrl.DeleteSession(target.ID); err != nil {
		m.setStatus("Delete failed: "+err.Error(), true)
		return *m, nil
	}
	m.cursor = -1
	m.setStatus(fmt.Sprintf("Deleted %q.", target.Title), false)
	m.refresh()
	return *m, nil
}

func handleClearCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 || !strings.EqualFold(args[0], "yes") {
		m.setStatus("This deletes every consultation. Type /clear yes to confirm.", false)
		return *m, nil
	}
	if _, err := m.ctrl.ClearHistory(); err != nil {
		m.setStatus("Clear failed: "+err.Error(), true)
		return *m, nil
	}
	m.filter = ""
	m.cursor = -1
	m.clearStreaming()
	m.setStatus("History cleared.", false)
	m.refresh()
	return *m, nil
}

func handleSessionsCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	m.filter = ""
	m.sidebar = true
	m.cursor = -1
	m.refresh()
	if m.ready {
		m.resize(m.width, m.height)
	}
	m.setStatus(fmt.Sprintf("%d consultation(s). Use /open <n> or C-o.", len(m.sessions)), false)
	return *m, nil
}

func handleOpenCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		m.setStatus("Usage: /open <n>", true)
		return *m, nil
	}
	target, err := m.sessionArg(args)
	if err != nil {
		m.setStatus(err.Error(), true)
		return *m, nil
	}
	return m.openSession(target.ID)
}

func handleSearchCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	m.filter = strings.Join(args, " ")
	m.cursor = 0
	m.refresh()
	if m.filter == "" {
		m.setStatus("Search cleared.", false)
	} else {
		m.setStatus(fmt.Sprintf("%d match(es) for %q.", len(m.sessions), m.filter), false)
	}
	return *m, nil
}

func handleExportCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	format := export.FormatMarkdown
	if len(args) > 0 {
		f, err := export.ParseFormat(args[0])
		if err != nil {
			m.setStatus(err.Error(), true)
			return *m, nil
		}
		format = f
	}
	if m.session == nil || m.session.IsEmpty() {
		m.setStatus("Nothing to export yet.", false)
		return *m, nil
	}

	cfg := m.ctrl.Config().Get()
	opts := export.DefaultOptions()
	opts.OutputDir = m.exportDir
	opts.Model = cfg.Model
	if cfg.UI.Theme == "light" {
		opts.Theme = "light"
	}

	sess := m.session.Clone()
	return *m, func() tea.Msg {
		exporter, err := export.New(format, opts)
		if err != nil {
			return exportedMsg{err: err}
		}
		path, err := export.ExportToFile(sess, exporter, opts)
		return exportedMsg{path: path, err: err}
	}
}

// =============================================================================
// CONVERSATION
// =============================================================================

func handleAttachCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	path := strings.Join(args, " ")
	if path == "" {
		m.setStatus("Usage: /attach <path>", true)
		return *m, nil
	}
	att, err := m.loader.Load(path)
	if err != nil {
		m.setStatus("Attach failed: "+err.Error(), true)
		return *m, nil
	}
	m.ctrl.SetAttachment(att)
	m.attachment = att
	m.setStatus(fmt.Sprintf("Attached %s. It will be sent with your next message.", att.Name), false)
	return *m, nil
}

func handleDetachCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	m.ctrl.ClearAttachment()
	m.attachment = nil
	m.setStatus("Attachment removed.", false)
	return *m, nil
}

func handleRegenCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	return m.regenerate()
}

func handleStopCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	if !m.ctrl.Stop() {
		m.setStatus("Nothing to stop.", false)
	}
	return *m, nil
}

// =============================================================================
// CONFIGURATION
// =============================================================================

func handleModelCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	current := m.ctrl.Config().Get().Model
	if len(args) == 0 {
		var names []string
		for _, info := range model.Catalogue {
			names = append(names, info.Name)
		}
		m.setStatus(fmt.Sprintf("Model: %s. Available: %s", model.ModelDisplayName(current), strings.Join(names, ", ")), false)
		return *m, nil
	}

	id := strings.Join(args, " ")
	if info, ok := model.LookupModel(id); ok {
		id = info.ID
	} else if !strings.Contains(id, "/") {
		m.setStatus(fmt.Sprintf("Unknown model %q. Use a catalogue name or a provider/model ID.", id), true)
		return *m, nil
	}

	return m.updateConfig(func(c *config.Config) { c.Model = id }, "Model set to "+model.ModelDisplayName(id)+".")
}

func handleProfileCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	profile := strings.Join(args, " ")
	msg := "Skin profile saved."
	if profile == "" {
		msg = "Skin profile cleared."
	}
	return m.updateConfig(func(c *config.Config) { c.UserProfile = profile }, msg)
}

func (m *Model) updateConfig(fn func(*config.Config), done string) (tea.Model, tea.Cmd) {
	holder := m.ctrl.Config()
	if err := holder.Update(fn); err != nil {
		m.setStatus(err.Error(), true)
		return *m, nil
	}
	m.setStatus(done, false)

	if m.persist == nil {
		return *m, nil
	}
	cfg, persist := holder.Get(), m.persist
	return *m, func() tea.Msg {
		if err := persist(cfg); err != nil {
			return statusMsg{text: "Could not save settings: " + err.Error(), isErr: true}
		}
		return nil
	}
}
