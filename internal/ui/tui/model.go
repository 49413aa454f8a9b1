// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/chatly-tui/internal/app"
	"github.com/jeranaias/chatly-tui/internal/chat"
	"github.com/jeranaias/chatly-tui/internal/history"
	"github.com/jeranaias/chatly-tui/internal/logging"
	"github.com/jeranaias/chatly-tui/internal/nav"
	"github.com/jeranaias/chatly-tui/internal/settings"
	"github.com/jeranaias/chatly-tui/internal/ui/styles"
)

// =============================================================================
// MESSAGES
// =============================================================================

// authDoneMsg reports a finished sign-in or sign-up.
type authDoneMsg struct{ err error }

// stepMsg carries the result of one remote step of a submission.
type stepMsg struct {
	sub *chat.Submission
	res chat.Result
}

// revealMsg asks for the next typewriter frame of sub.
type revealMsg struct{ sub *chat.Submission }

// startDoneMsg fires when the loading dwell of plan has passed.
type startDoneMsg struct{ plan nav.StartPlan }

// historyMsg reports a finished history load or action.
type historyMsg struct {
	op  string
	err error
}

// settingsMsg delivers settings changed outside the TUI.
type settingsMsg struct{ s settings.Settings }

// =============================================================================
// COMMAND QUEUE
// =============================================================================

// cmdQueue collects commands requested by core callbacks that fire during
// Update, such as the history loader on entering the history screen.
type cmdQueue struct {
	mu   sync.Mutex
	cmds []tea.Cmd
}

func (q *cmdQueue) push(c tea.Cmd) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cmds = append(q.cmds, c)
}

func (q *cmdQueue) drain() []tea.Cmd {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.cmds
	q.cmds = nil
	return out
}

// =============================================================================
// MODEL
// =============================================================================

// cursorMode applies to every text input. Tests pin it to static.
var cursorMode = cursor.CursorBlink

// Model is the root bubbletea model.
type Model struct {
	ctx   context.Context
	app   *app.App
	log   *logging.Logger
	theme *styles.Theme
	keys  KeyMap
	help  help.Model
	spin  spinner.Model
	queue *cmdQueue

	width  int
	height int

	// Auth overlay.
	fields   []textinput.Model
	focus    int
	formGen  int
	authBusy bool

	// Chat screens.
	input     textinput.Model
	attachIn  textinput.Model
	attaching bool
	notice    string
	active    map[string]*chat.Submission
	view      viewport.Model

	// Loading screen.
	loadingText string

	// History screen.
	cursor int
	md     *glamour.TermRenderer
	mdFor  int
}

// New builds the model for a.
func New(ctx context.Context, a *app.App) Model {
	in := textinput.New()
	in.Placeholder = "Ask a question about your document..."
	in.CharLimit = 4000
	in.Prompt = "> "
	_ = in.Cursor.SetMode(cursorMode)

	attach := textinput.New()
	attach.Placeholder = "Path to a document"
	attach.Prompt = "file: "
	_ = attach.Cursor.SetMode(cursorMode)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:    ctx,
		app:    a,
		log:    a.Log.Named("tui"),
		keys:   DefaultKeyMap(),
		help:   help.New(),
		spin:   sp,
		queue:  &cmdQueue{},
		input:  in,
		active: make(map[string]*chat.Submission),
		view:   viewport.New(80, 20),

		attachIn: attach,
		formGen:  -1,
	}
	m.applyTheme(a.Theme())

	queue, view := m.queue, a.History
	a.SetHistoryLoader(func() {
		queue.push(loadHistoryCmd(ctx, view))
	})
	m.syncForms()
	return m
}

// Run starts the full-screen program and blocks until it exits.
func Run(ctx context.Context, a *app.App) error {
	m := New(ctx, a)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	a.Settings.Subscribe(func(s settings.Settings) {
		p.Send(settingsMsg{s: s})
	})

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := a.Settings.Watch(watchCtx, a.Log); err != nil {
			a.Log.Warn("settings watcher stopped", logging.Fields{"error": err})
		}
	}()

	_, err := p.Run()
	return err
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spin.Tick
}

func (m *Model) applyTheme(t settings.Theme) {
	m.theme = styles.NewTheme(t != settings.ThemeLight)
	m.md = nil
}

// markdown returns a glamour renderer for the current theme and width.
func (m *Model) markdown() *glamour.TermRenderer {
	width := max(m.width-8, 20)
	if m.md != nil && m.mdFor == width {
		return m.md
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.theme.GlamourStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		m.log.Warn("markdown renderer unavailable", logging.Fields{"error": err})
		return nil
	}
	m.md, m.mdFor = r, width
	return r
}

// =============================================================================
// COMMANDS
// =============================================================================

func authCmd(fn func() error) tea.Cmd {
	return func() tea.Msg {
		return authDoneMsg{err: fn()}
	}
}

func stepCmd(ctx context.Context, p *chat.Pipeline, sub *chat.Submission) tea.Cmd {
	return func() tea.Msg {
		return stepMsg{sub: sub, res: p.Execute(ctx, sub)}
	}
}

func revealCmd(sub *chat.Submission) tea.Cmd {
	return tea.Tick(sub.Reveal().Speed(), func(time.Time) tea.Msg {
		return revealMsg{sub: sub}
	})
}

func startCmd(plan nav.StartPlan) tea.Cmd {
	if plan.Dwell <= 0 {
		return func() tea.Msg { return startDoneMsg{plan: plan} }
	}
	return tea.Tick(plan.Dwell, func(time.Time) tea.Msg {
		return startDoneMsg{plan: plan}
	})
}

func loadHistoryCmd(ctx context.Context, v *history.View) tea.Cmd {
	return func() tea.Msg {
		return historyMsg{op: "load", err: v.Load(ctx)}
	}
}

func historyCmd(op string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return historyMsg{op: op, err: fn()}
	}
}
