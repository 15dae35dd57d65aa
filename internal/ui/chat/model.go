// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/cleo/internal/attach"
	core "github.com/jeranaias/cleo/internal/chat"
	"github.com/jeranaias/cleo/internal/config"
	"github.com/jeranaias/cleo/internal/model"
	"github.com/jeranaias/cleo/internal/ui/styles"
)

// =============================================================================
// LAYOUT CONSTANTS
// =============================================================================

const (
	headerHeight     = 1
	statusHeight     = 1
	attachmentHeight = 1
	inputHeight      = 3
	inputBorder      = 1
	minViewport      = 3
)

// =============================================================================
// MODEL
// =============================================================================

// Options configures a Model.
type Options struct {
	// Theme defaults to the dark theme.
	Theme *styles.Theme

	// Loader reads files for /attach. Defaults to attach.DefaultLoader.
	Loader *attach.Loader

	// ExportDir receives /export output. Defaults to ".".
	ExportDir string

	// Persist saves configuration changed from inside the view, such as
	// /model. Nil keeps changes in memory only.
	Persist func(*config.Config) error

	// Context bounds requests started from the view.
	Context context.Context
}

// Model is the Bubble Tea model for the consultation view.
type Model struct {
	ctx     context.Context
	ctrl    *core.Controller
	theme   *styles.Theme
	loader  *attach.Loader
	persist func(*config.Config) error

	exportDir string

	keys     KeyMap
	help     help.Model
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	// Mirrors of controller and store state, refreshed on events
	state      core.State
	session    *model.Session
	sessions   []*model.Session
	attachment *model.Attachment

	// Sidebar
	filter  string
	cursor  int
	sidebar bool

	// In-flight reply for the session it belongs to
	streaming string
	streamID  string

	status    string
	statusErr bool
	showHelp  bool

	// Rendered assistant markdown keyed by source text
	rendered map[string]string

	width  int
	height int
	ready  bool
}

// New creates the consultation view over ctrl.
func New(ctrl *core.Controller, opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme(styles.ThemeDark)
	}
	if opts.Loader == nil {
		opts.Loader = attach.DefaultLoader()
	}
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	keys := DefaultKeyMap()

	ta := textarea.New()
	ta.Placeholder = "Ask CLEO about your skin..."
	ta.ShowLineNumbers = false
	ta.Prompt = "> "
	ta.CharLimit = 0
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys(keys.Newline.Keys()...))
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = opts.Theme.StatusBusy

	h := help.New()
	h.ShowAll = true

	m := Model{
		ctx:       opts.Context,
		ctrl:      ctrl,
		theme:     opts.Theme,
		loader:    opts.Loader,
		persist:   opts.Persist,
		exportDir: opts.ExportDir,
		keys:      keys,
		help:      h,
		viewport:  viewport.New(80, 20),
		input:     ta,
		spinner:   sp,
		sidebar:   true,
		cursor:    -1,
		rendered:  make(map[string]string),
	}
	m.refresh()
	return m
}

// Init starts the cursor blinking.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// =============================================================================
// ACCESSORS
// =============================================================================

// State returns the last controller state the view observed.
func (m Model) State() core.State { return m.state }

// Session returns the active session snapshot.
func (m Model) Session() *model.Session { return m.session }

// Sessions returns the sessions listed in the sidebar.
func (m Model) Sessions() []*model.Session { return m.sessions }

// Status returns the status line text and whether it reports an error.
func (m Model) Status() (string, bool) { return m.status, m.statusErr }

// Streaming returns the rendered in-flight reply, if any.
func (m Model) Streaming() string { return m.streaming }

// =============================================================================
// STATE SYNC
// =============================================================================

// refresh reloads the mirrors from the controller and store.
func (m *Model) refresh() {
	store := m.ctrl.Store()
	m.state = m.ctrl.State()
	m.session = store.Active()
	m.attachment = m.ctrl.Attachment()

	if m.filter != "" {
		m.sessions = store.SearchMessages(m.filter)
	} else {
		m.sessions = store.List()
	}

	if m.cursor < 0 || m.cursor >= len(m.sessions) {
		m.cursor = m.activeIndex()
	}
	m.updateViewport()
}

func (m *Model) activeIndex() int {
	if m.session == nil {
		return 0
	}
	for i, s := range m.sessions {
		if s.ID == m.session.ID {
			return i
		}
	}
	return 0
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

// renderAssistant returns the final rendering of an assistant reply.
func (m *Model) renderAssistant(text string) string {
	if out, ok := m.rendered[text]; ok {
		return out
	}
	out, err := m.ctrl.Renderer().Finalize(text)
	if err != nil {
		return text
	}
	m.rendered[text] = out
	return out
}
