// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatly-tui/internal/auth"
	"github.com/jeranaias/chatly-tui/internal/chat"
	"github.com/jeranaias/chatly-tui/internal/history"
	"github.com/jeranaias/chatly-tui/internal/logging"
	"github.com/jeranaias/chatly-tui/internal/nav"
	"github.com/jeranaias/chatly-tui/internal/settings"
)

// Notices shown under the chat input.
const (
	NoticePending        = "Please wait for the current answer."
	NoticeUploadDisabled = "Document upload is disabled."
	NoticeAttached       = "Attached "
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.view.Width = max(msg.Width-2, 10)
		m.view.Height = max(msg.Height-7, 3)
		m.input.Width = max(msg.Width-6, 10)
		m.attachIn.Width = max(msg.Width-10, 10)
		m.help.Width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		if m.app.Gate.OverlayVisible() {
			cmds = append(cmds, m.updateAuth(msg))
		} else {
			cmds = append(cmds, m.updateScreen(msg))
		}

	case authDoneMsg:
		m.authBusy = false

	case stepMsg:
		switch m.app.Chat.Advance(msg.sub, msg.res) {
		case chat.StepQuery:
			cmds = append(cmds, stepCmd(m.ctx, m.app.Chat, msg.sub))
		case chat.StepReveal:
			cmds = append(cmds, revealCmd(msg.sub))
		default:
			m.forget(msg.sub)
		}

	case revealMsg:
		if m.app.Chat.Tick(msg.sub) {
			cmds = append(cmds, revealCmd(msg.sub))
		} else {
			m.forget(msg.sub)
		}

	case startDoneMsg:
		m.app.Nav.CompleteStart(msg.plan)

	case historyMsg:
		if msg.err != nil && !errors.Is(msg.err, history.ErrBlocked) {
			m.log.Debug("history action failed", logging.Fields{"op": msg.op, "error": msg.err})
		}
		m.clampCursor()

	case settingsMsg:
		m.applyTheme(m.app.Theme())
	}

	cmds = append(cmds, m.queue.drain()...)
	m.syncForms()
	m.syncChat()
	return m, tea.Batch(cmds...)
}

func (m *Model) forget(sub *chat.Submission) {
	if m.active[sub.Surface] == sub {
		delete(m.active, sub.Surface)
	}
}

// =============================================================================
// AUTH OVERLAY
// =============================================================================

func newField(placeholder string, secret bool) textinput.Model {
	f := textinput.New()
	f.Placeholder = placeholder
	f.Prompt = ""
	f.CharLimit = 256
	_ = f.Cursor.SetMode(cursorMode)
	if secret {
		f.EchoMode = textinput.EchoPassword
		f.EchoCharacter = '•'
	}
	return f
}

// syncForms rebuilds the overlay inputs whenever the gate resets its forms.
func (m *Model) syncForms() {
	forms := m.app.Gate.Forms()
	if forms.Generation == m.formGen && len(m.fields) > 0 {
		return
	}
	m.formGen = forms.Generation
	m.focus = 0
	if forms.Mode == auth.ModeSignUp {
		m.fields = []textinput.Model{
			newField("Name", false),
			newField("Email", false),
			newField("Password", true),
			newField("Confirm password", true),
		}
	} else {
		m.fields = []textinput.Model{
			newField("Email", false),
			newField("Password", true),
		}
	}
	m.fields[0].Focus()
}

func (m *Model) setFocus(i int) {
	n := len(m.fields)
	m.focus = ((i % n) + n) % n
	for j := range m.fields {
		if j == m.focus {
			m.fields[j].Focus()
		} else {
			m.fields[j].Blur()
		}
	}
}

func (m *Model) updateAuth(msg tea.KeyMsg) tea.Cmd {
	gate := m.app.Gate
	if m.authBusy {
		return nil
	}
	switch {
	case key.Matches(msg, m.keys.SwitchForm):
		if gate.Forms().Mode == auth.ModeLogin {
			gate.ShowSignUp()
		} else {
			gate.ShowLogin()
		}
		return nil
	case key.Matches(msg, m.keys.Guest):
		_ = gate.ContinueAsGuest()
		return nil
	case msg.Type == tea.KeyTab || msg.Type == tea.KeyDown:
		m.setFocus(m.focus + 1)
		return nil
	case msg.Type == tea.KeyShiftTab || msg.Type == tea.KeyUp:
		m.setFocus(m.focus - 1)
		return nil
	case key.Matches(msg, m.keys.Submit):
		if m.focus < len(m.fields)-1 {
			m.setFocus(m.focus + 1)
			return nil
		}
		return m.submitAuth()
	}

	var cmd tea.Cmd
	m.fields[m.focus], cmd = m.fields[m.focus].Update(msg)
	m.storeForm()
	return cmd
}

func (m *Model) values() []string {
	out := make([]string, len(m.fields))
	for i, f := range m.fields {
		out[i] = f.Value()
	}
	return out
}

// storeForm mirrors the inputs into the gate so validation sees them.
func (m *Model) storeForm() {
	v := m.values()
	if len(v) == 4 {
		m.app.Gate.SetSignUpForm(auth.SignUpForm{Name: v[0], Email: v[1], Password: v[2], ConfirmPassword: v[3]})
	} else {
		m.app.Gate.SetLoginForm(auth.LoginForm{Email: v[0], Password: v[1]})
	}
}

func (m *Model) submitAuth() tea.Cmd {
	m.storeForm()
	m.authBusy = true
	gate, ctx := m.app.Gate, m.ctx
	if gate.Forms().Mode == auth.ModeSignUp {
		return authCmd(func() error { return gate.SubmitSignUp(ctx) })
	}
	return authCmd(func() error { return gate.SubmitLogin(ctx) })
}

// =============================================================================
// SCREENS
// =============================================================================

func (m *Model) updateScreen(msg tea.KeyMsg) tea.Cmd {
	n := m.app.Nav
	switch {
	case key.Matches(msg, m.keys.Home):
		n.GoTo(nav.ScreenHome)
		return nil
	case key.Matches(msg, m.keys.Healthcare):
		n.GoTo(nav.ScreenHealthcare)
		return nil
	case key.Matches(msg, m.keys.Education):
		n.GoTo(nav.ScreenEducation)
		return nil
	case key.Matches(msg, m.keys.History):
		n.GoTo(nav.ScreenHistory)
		return nil
	case key.Matches(msg, m.keys.Settings):
		n.GoTo(nav.ScreenSettings)
		return nil
	case key.Matches(msg, m.keys.Resume):
		n.GoToLastChat()
		return nil
	case key.Matches(msg, m.keys.SignOut):
		gate, ctx := m.app.Gate, m.ctx
		return authCmd(func() error { return gate.SignOut(ctx) })
	}

	switch cur := n.Current(); {
	case cur == nav.ScreenHome:
		return m.updateHome(msg)
	case cur.IsChat():
		return m.updateChat(msg)
	case cur == nav.ScreenHistory:
		return m.updateHistory(msg)
	case cur == nav.ScreenSettings:
		return m.updateSettings(msg)
	}
	return nil
}

func (m *Model) updateHome(msg tea.KeyMsg) tea.Cmd {
	n := m.app.Nav
	topics := nav.Topics()
	idx := 0
	for i, t := range topics {
		if t == n.State().SelectedTopic {
			idx = i
		}
	}
	switch {
	case key.Matches(msg, m.keys.Left), key.Matches(msg, m.keys.Up):
		n.SelectTopic(topics[(idx+len(topics)-1)%len(topics)])
	case key.Matches(msg, m.keys.Right), key.Matches(msg, m.keys.Down), msg.Type == tea.KeyTab:
		n.SelectTopic(topics[(idx+1)%len(topics)])
	case key.Matches(msg, m.keys.Submit):
		plan, ok := n.Start()
		if !ok {
			return nil
		}
		m.loadingText = plan.LoadingText
		return startCmd(plan)
	}
	return nil
}

func (m *Model) surfaceID() string {
	t, _ := nav.TopicFor(m.app.Nav.Current())
	return string(t)
}

func (m *Model) updateChat(msg tea.KeyMsg) tea.Cmd {
	id := m.surfaceID()
	pipeline := m.app.Chat

	if m.attaching {
		switch {
		case key.Matches(msg, m.keys.Back):
			m.attaching = false
			m.attachIn.Blur()
			m.input.Focus()
			return nil
		case key.Matches(msg, m.keys.Submit):
			m.attaching = false
			m.attachIn.Blur()
			m.input.Focus()
			m.notice = m.attach(id, strings.TrimSpace(m.attachIn.Value()))
			m.attachIn.SetValue("")
			return nil
		}
		var cmd tea.Cmd
		m.attachIn, cmd = m.attachIn.Update(msg)
		return cmd
	}

	switch {
	case key.Matches(msg, m.keys.Attach):
		if !pipeline.UploadEnabled() {
			m.notice = NoticeUploadDisabled
			return nil
		}
		m.attaching = true
		m.input.Blur()
		return m.attachIn.Focus()
	case key.Matches(msg, m.keys.Back):
		if sub := m.active[id]; sub != nil {
			pipeline.Finish(sub)
			m.forget(sub)
		}
		return nil
	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.view, cmd = m.view.Update(msg)
		return cmd
	case key.Matches(msg, m.keys.Submit):
		return m.submit(id)
	}

	if !m.input.Focused() {
		m.input.Focus()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) attach(id, path string) string {
	if path == "" {
		_ = m.app.Chat.Attach(id, nil)
		return ""
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "Cannot read " + path
	}
	switch err := m.app.Chat.Attach(id, chat.FileAttachment(path)); {
	case errors.Is(err, chat.ErrUploadDisabled):
		return NoticeUploadDisabled
	case err != nil:
		return err.Error()
	}
	return NoticeAttached + info.Name()
}

func (m *Model) submit(id string) tea.Cmd {
	text := m.input.Value()
	sub, err := m.app.Chat.Submit(id, chat.Input{Text: text})
	switch {
	case errors.Is(err, chat.ErrSubmissionPending):
		m.notice = NoticePending
		return nil
	case errors.Is(err, chat.ErrUploadDisabled):
		m.notice = NoticeUploadDisabled
		return nil
	case errors.Is(err, chat.ErrEmptySubmission):
		m.input.SetValue("")
		return nil
	case err != nil:
		return nil
	}
	m.input.SetValue("")
	m.notice = ""
	m.active[id] = sub
	return stepCmd(m.ctx, m.app.Chat, sub)
}

// syncChat refreshes the chat viewport, following the tail when it was
// already at the bottom.
func (m *Model) syncChat() {
	cur := m.app.Nav.Current()
	if !cur.IsChat() {
		return
	}
	s, ok := m.app.Chat.Surface(m.surfaceID())
	if !ok {
		return
	}
	follow := m.view.AtBottom()
	m.view.SetContent(m.renderMessages(s))
	if follow {
		m.view.GotoBottom()
	}
	if !m.attaching && !m.input.Focused() {
		m.input.Focus()
	}
}

func (m *Model) selected() (history.Record, bool) {
	st := m.app.History.State()
	if m.cursor < 0 || m.cursor >= len(st.Records) {
		return history.Record{}, false
	}
	return st.Records[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.app.History.State().Records)
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) updateHistory(msg tea.KeyMsg) tea.Cmd {
	v, ctx := m.app.History, m.ctx
	st := v.State()

	if st.ClearPending {
		switch {
		case key.Matches(msg, m.keys.Yes):
			return historyCmd("clear", func() error { return v.ConfirmClear(ctx) })
		case key.Matches(msg, m.keys.No):
			_ = v.CancelClear()
		}
		return nil
	}

	rec, ok := m.selected()
	if ok && rec.ConfirmPending {
		switch {
		case key.Matches(msg, m.keys.Yes):
			id := rec.ID
			return historyCmd("delete", func() error { return v.Confirm(ctx, id) })
		case key.Matches(msg, m.keys.No):
			_ = v.Cancel(rec.ID)
			return nil
		}
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(st.Records)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Toggle):
		if ok {
			_ = v.Toggle(rec.ID)
		}
	case key.Matches(msg, m.keys.Delete):
		if ok {
			_ = v.RequestDelete(rec.ID)
		}
	case key.Matches(msg, m.keys.Clear):
		_ = v.RequestClear()
	case key.Matches(msg, m.keys.Reload):
		return loadHistoryCmd(ctx, v)
	}
	return nil
}

func (m *Model) updateSettings(msg tea.KeyMsg) tea.Cmd {
	st := m.app.Settings
	temp := st.Get().TemperatureOrDefault()
	switch {
	case key.Matches(msg, m.keys.Left):
		if temp > settings.MinTemperature {
			m.saveSetting(st.SetTemperature(temp - 1))
		}
	case key.Matches(msg, m.keys.Right):
		if temp < settings.MaxTemperature {
			m.saveSetting(st.SetTemperature(temp + 1))
		}
	case key.Matches(msg, m.keys.Theme):
		_, err := st.ToggleTheme()
		m.saveSetting(err)
		m.applyTheme(m.app.Theme())
	}
	return nil
}

func (m *Model) saveSetting(err error) {
	if err != nil {
		m.notice = "Could not save settings: " + err.Error()
		m.log.Warn("settings save failed", logging.Fields{"error": err})
		return
	}
	m.notice = ""
}
