// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/chatly-tui/internal/auth"
	"github.com/jeranaias/chatly-tui/internal/chat"
	"github.com/jeranaias/chatly-tui/internal/history"
	"github.com/jeranaias/chatly-tui/internal/nav"
	"github.com/jeranaias/chatly-tui/internal/settings"
	"github.com/jeranaias/chatly-tui/internal/typewriter"
	"github.com/jeranaias/chatly-tui/internal/util"
)

// Screen titles and labels.
const (
	BrandName       = "chatly"
	TitleHome       = "What would you like to explore?"
	TitleHistory    = "Your questions"
	TitleSettings   = "Settings"
	LabelStart      = "[ Start ]"
	LabelTheme      = "Theme"
	LabelTemp       = "Temperature"
	TitleLogin      = "Sign in"
	TitleSignUp     = "Create account"
	previewMaxWidth = 72
)

var navItems = []struct {
	id    nav.ScreenID
	label string
}{
	{nav.ScreenHome, "Home"},
	{nav.ScreenHealthcare, "Healthcare"},
	{nav.ScreenEducation, "Education"},
	{nav.ScreenHistory, "History"},
	{nav.ScreenSettings, "Settings"},
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	if m.app.Gate.OverlayVisible() {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.renderOverlay())
	}

	var body string
	switch cur := m.app.Nav.Current(); {
	case cur == nav.ScreenHome:
		body = m.renderHome()
	case cur == nav.ScreenLoading:
		body = m.renderLoading()
	case cur.IsChat():
		body = m.renderChat()
	case cur == nav.ScreenHistory:
		body = m.renderHistory()
	case cur == nav.ScreenSettings:
		body = m.renderSettings()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderNavBar(),
		m.theme.App.Render(body),
		m.renderFooter(),
	)
}

// =============================================================================
// CHROME
// =============================================================================

func (m *Model) renderNavBar() string {
	highlight := m.app.Nav.State().Highlight
	parts := []string{m.theme.Brand.Render(BrandName)}
	for _, item := range navItems {
		style := m.theme.NavItem
		if item.id == highlight {
			style = m.theme.NavActive
		}
		parts = append(parts, style.Render(item.label))
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	badge := m.theme.UserBadge.Render(m.app.Gate.Session().Name())
	gap := max(m.width-lipgloss.Width(bar)-lipgloss.Width(badge)-2, 1)
	return m.theme.NavBar.Width(m.width).Render(bar + strings.Repeat(" ", gap) + badge)
}

func (m *Model) renderFooter() string {
	bindings := append(m.keys.navHelp(), m.screenHelp()...)
	bindings = append(bindings, m.keys.SignOut, m.keys.Quit)
	m.help.Styles.ShortKey = m.theme.HelpKey
	m.help.Styles.ShortDesc = m.theme.HelpDesc
	return m.help.ShortHelpView(bindings)
}

func (m *Model) screenHelp() []key.Binding {
	switch cur := m.app.Nav.Current(); {
	case cur == nav.ScreenHome:
		return []key.Binding{m.keys.Right, m.keys.Submit, m.keys.Resume}
	case cur.IsChat():
		out := []key.Binding{m.keys.Submit, m.keys.Back}
		if m.app.Chat.UploadEnabled() {
			out = append(out, m.keys.Attach)
		}
		return out
	case cur == nav.ScreenHistory:
		return []key.Binding{m.keys.Toggle, m.keys.Delete, m.keys.Clear, m.keys.Reload}
	case cur == nav.ScreenSettings:
		return []key.Binding{m.keys.Left, m.keys.Right, m.keys.Theme}
	}
	return nil
}

// =============================================================================
// AUTH OVERLAY
// =============================================================================

func (m *Model) renderOverlay() string {
	forms := m.app.Gate.Forms()
	t := m.theme

	title, labels := TitleLogin, []string{"Email", "Password"}
	if forms.Mode == auth.ModeSignUp {
		title, labels = TitleSignUp, []string{"Name", "Email", "Password", "Confirm password"}
	}

	lines := []string{t.Title.Render(title)}
	for i, f := range m.fields {
		if i >= len(labels) {
			break
		}
		label := t.Label.Render(labels[i])
		if i == m.focus {
			label = t.FieldActive.Render(labels[i])
		}
		lines = append(lines, label, f.View(), "")
	}

	if forms.Mode == auth.ModeSignUp && len(m.fields) == 4 {
		lines = append(lines, m.renderRequirements(m.fields[2].Value()))
		if forms.SignUp.ConfirmMismatch() {
			lines = append(lines, t.Error.Render(auth.MsgPasswordMismatch))
		}
	}

	if forms.Error != "" {
		lines = append(lines, t.Error.Render(forms.Error))
	}
	if forms.Notice != "" {
		lines = append(lines, t.Notice.Render(forms.Notice))
	}
	if m.authBusy {
		lines = append(lines, m.spin.View()+" "+t.Muted.Render("Please wait..."))
	}

	switchHint := "C-n create an account"
	if forms.Mode == auth.ModeSignUp {
		switchHint = "C-n sign in instead"
	}
	hints := []string{"Enter submit", switchHint}
	if m.app.Gate.AllowGuest() {
		hints = append(hints, "C-g continue as guest")
	}
	lines = append(lines, "", t.Muted.Render(strings.Join(hints, " · ")))

	return t.Overlay.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m *Model) renderRequirements(pw string) string {
	r := auth.PasswordRequirements(pw)
	rule := func(ok bool, text string) string {
		if ok {
			return m.theme.Succeeded.Render("✓ " + text)
		}
		return m.theme.Muted.Render("• " + text)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		rule(r.Length, fmt.Sprintf("At least %d characters", auth.MinPasswordLength)),
		rule(r.Upper, "An uppercase letter"),
		rule(r.Lower, "A lowercase letter"),
		rule(r.Number, "A number"),
	)
}

// =============================================================================
// HOME AND LOADING
// =============================================================================

func (m *Model) renderHome() string {
	selected := m.app.Nav.State().SelectedTopic
	cards := make([]string, 0, len(nav.Topics()))
	for _, topic := range nav.Topics() {
		style := m.theme.Card
		if topic == selected {
			style = m.theme.CardSelected
		}
		name := strings.ToUpper(string(topic[:1])) + string(topic[1:])
		cards = append(cards, style.Width(24).Render(name))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.theme.Title.Render(TitleHome),
		lipgloss.JoinHorizontal(lipgloss.Top, cards...),
		"",
		m.theme.FieldActive.Render(LabelStart),
	)
}

func (m *Model) renderLoading() string {
	return lipgloss.Place(m.width-2, max(m.height-3, 1), lipgloss.Center, lipgloss.Center,
		m.spin.View()+" "+m.theme.Pending.Render(m.loadingText))
}

// =============================================================================
// CHAT
// =============================================================================

func (m *Model) renderMessages(s chat.Surface) string {
	width := max(m.width-12, 20)
	out := make([]string, 0, len(s.Messages))
	for _, msg := range s.Messages {
		out = append(out, m.renderMessage(msg, width))
	}
	return strings.Join(out, "\n")
}

func (m *Model) renderMessage(msg chat.Message, width int) string {
	t := m.theme
	if msg.Sender == chat.SenderUser {
		bubble := t.UserBubble.MaxWidth(width + 4).Width(min(util.StringWidth(msg.Content)+2, width))
		return lipgloss.PlaceHorizontal(m.width-2, lipgloss.Right, bubble.Render(msg.Content))
	}

	var body string
	switch msg.Kind {
	case chat.KindUploading, chat.KindSynthesizing:
		body = m.spin.View() + " " + t.Pending.Render(msg.Content)
	case chat.KindUploadFailed, chat.KindAnswerFailed:
		body = t.Failed.Render(msg.Content)
	case chat.KindUploadOK:
		body = t.Succeeded.Render(msg.Content)
	case chat.KindAnswer:
		body = m.renderAnswer(msg)
	default:
		body = msg.Content
	}
	return t.BotBubble.Width(width).Render(body)
}

// renderAnswer styles the metadata block apart from the answer once the
// reveal has reached it.
func (m *Model) renderAnswer(msg chat.Message) string {
	i := strings.Index(msg.Content, "\n\nConfidence score:\n")
	if i < 0 {
		i = strings.LastIndex(msg.Content, "\nSources:\n• ")
	}
	if i < 0 {
		return msg.Content
	}
	return msg.Content[:i] + m.theme.Metadata.Render(msg.Content[i:])
}

func (m *Model) renderChat() string {
	s, ok := m.app.Chat.Surface(m.surfaceID())
	if !ok {
		return ""
	}
	var lines []string
	lines = append(lines, m.view.View())

	if s.Attachment != "" {
		lines = append(lines, m.theme.Attachment.Render("📎 "+s.Attachment))
	}
	if m.attaching {
		lines = append(lines, m.theme.Input.Render(m.attachIn.View()))
	} else {
		in := m.input.View()
		if !s.CanSubmit() {
			in = m.theme.Muted.Render(in)
		}
		lines = append(lines, m.theme.Input.Render(in))
	}
	if m.notice != "" {
		lines = append(lines, m.theme.Notice.Render(m.notice))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// =============================================================================
// HISTORY
// =============================================================================

func (m *Model) renderHistory() string {
	t := m.theme
	st := m.app.History.State()
	lines := []string{t.Title.Render(TitleHistory)}

	switch st.Status {
	case history.StatusIdle, history.StatusLoading:
		lines = append(lines, m.spin.View()+" "+t.Pending.Render("Loading history..."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}
	if p := st.Placeholder(); p != "" {
		style := t.Muted
		if st.Status == history.StatusFailed {
			style = t.Failed
		}
		lines = append(lines, style.Render(p))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	if st.ClearPending {
		lines = append(lines, t.Confirm.Render(history.TextConfirmClear+" (y/n)"), "")
	}

	for i, rec := range st.Records {
		lines = append(lines, m.renderRecord(rec, i == m.cursor))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m *Model) renderRecord(rec history.Record, selected bool) string {
	t := m.theme
	style := t.Card
	if selected {
		style = t.CardSelected
	}

	head := t.FieldActive.Render(util.SingleLine(typewriter.Sanitize(rec.Query)))
	stamp := rec.Timestamp
	if ts := rec.Time(); !ts.IsZero() {
		stamp = ts.Format("Jan 2, 2006 15:04")
	}
	lines := []string{head + "  " + t.Timestamp.Render(stamp)}

	answer := typewriter.Sanitize(rec.Answer)
	if rec.Expanded {
		lines = append(lines, m.renderMarkdown(answer))
	} else {
		lines = append(lines, util.TruncateWidth(util.SingleLine(answer), min(m.width-8, previewMaxWidth)))
	}
	if rec.Confidence != "" {
		lines = append(lines, t.Metadata.Render("Confidence: "+typewriter.Sanitize(string(rec.Confidence))))
	}
	lines = append(lines, t.Muted.Render(rec.ToggleLabel()))
	if rec.ConfirmPending {
		lines = append(lines, t.Confirm.Render(history.TextConfirmDelete+" (y/n)"))
	}
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)) + "\n"
}

func (m *Model) renderMarkdown(s string) string {
	r := m.markdown()
	if r == nil {
		return s
	}
	out, err := r.Render(s)
	if err != nil {
		return s
	}
	return strings.TrimRight(out, "\n")
}

// =============================================================================
// SETTINGS
// =============================================================================

func (m *Model) renderSettings() string {
	t := m.theme
	st := m.app.Settings.Get()
	temp := st.TemperatureOrDefault()

	slider := make([]string, 0, settings.MaxTemperature+1)
	for v := settings.MinTemperature; v <= settings.MaxTemperature; v++ {
		if v == temp {
			slider = append(slider, t.FieldActive.Render("●"))
		} else {
			slider = append(slider, t.Muted.Render("─"))
		}
	}

	theme := "Dark"
	if m.app.Theme() == settings.ThemeLight {
		theme = "Light"
	}

	lines := []string{
		t.Title.Render(TitleSettings),
		t.Label.Render(LabelTemp),
		strings.Join(slider, ""),
		settings.TemperatureText(temp),
		"",
		t.Label.Render(LabelTheme) + "  " + theme,
	}
	if m.notice != "" && m.app.Nav.Current() == nav.ScreenSettings {
		lines = append(lines, t.Error.Render(m.notice))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
