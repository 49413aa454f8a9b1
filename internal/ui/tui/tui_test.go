// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatly-tui/internal/app"
	"github.com/jeranaias/chatly-tui/internal/backend"
	"github.com/jeranaias/chatly-tui/internal/chat"
	"github.com/jeranaias/chatly-tui/internal/config"
	"github.com/jeranaias/chatly-tui/internal/history"
	"github.com/jeranaias/chatly-tui/internal/nav"
	"github.com/jeranaias/chatly-tui/internal/settings"
)

// =============================================================================
// FIXTURES
// =============================================================================

func TestMain(m *testing.M) {
	// Blinking cursors schedule timers the synchronous pump would wait on.
	cursorMode = cursor.CursorStatic
	os.Exit(m.Run())
}

type fakeBackend struct {
	mu       sync.Mutex
	uploads  []string
	queries  []string
	records  []backend.Record
	cleared  bool
	deleted  []int64
	queryErr error
}

func (f *fakeBackend) Upload(ctx context.Context, userID, filename string, r io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, filename)
	return "ok", nil
}

func (f *fakeBackend) Query(ctx context.Context, userID, query string) (backend.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.queryErr != nil {
		return backend.Answer{}, f.queryErr
	}
	return backend.Answer{Text: "because", Confidence: "High (0.90)", Sources: []string{"a.txt"}}, nil
}

func (f *fakeBackend) History(ctx context.Context, userID string) ([]backend.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.Record(nil), f.records...), nil
}

func (f *fakeBackend) DeleteHistory(ctx context.Context, userID string, id int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return id, nil
}

func (f *fakeBackend) ClearHistory(ctx context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = true
	return int64(len(f.records)), nil
}

func newTestModel(t *testing.T, fb *fakeBackend, mutate ...func(*config.Config)) (Model, *app.App) {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.Provider = "memory"
	cfg.Auth.AllowGuest = true
	cfg.UI.SettingsPath = filepath.Join(t.TempDir(), "settings.json")
	cfg.UI.Theme = "dark"
	cfg.Nav.LoadingDwellMs = 0
	cfg.Chat.TypewriterSpeedMs = 1
	for _, fn := range mutate {
		fn(cfg)
	}

	a, err := app.New(context.Background(), cfg, nil, app.WithBackend(fb))
	require.NoError(t, err)
	a.Start()
	t.Cleanup(func() { a.Close() })

	m := New(context.Background(), a)
	m = send(m, tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, a
}

// send delivers msg and runs every resulting command to completion,
// feeding their messages back in. Spinner ticks are dropped so the loop
// terminates.
func send(m Model, msg tea.Msg) Model {
	queue := []tea.Msg{msg}
	for steps := 0; len(queue) > 0 && steps < 10000; steps++ {
		next := queue[0]
		queue = queue[1:]
		if _, ok := next.(spinner.TickMsg); ok {
			continue
		}
		model, cmd := m.Update(next)
		m = model.(Model)
		queue = append(queue, run(cmd)...)
	}
	return m
}

func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	switch msg := msg.(type) {
	case nil:
		return nil
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range msg {
			out = append(out, run(c)...)
		}
		return out
	case tea.QuitMsg:
		return nil
	}
	return []tea.Msg{msg}
}

func typeText(m Model, s string) Model {
	for _, r := range s {
		m = send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func press(m Model, k tea.KeyType) Model {
	return send(m, tea.KeyMsg{Type: k})
}

func signUp(t *testing.T, m Model, a *app.App) Model {
	t.Helper()
	m = send(m, tea.KeyMsg{Type: tea.KeyCtrlN})
	for _, v := range []string{"Ana", "ana@example.com", "Passw0rdX", "Passw0rdX"} {
		m = typeText(m, v)
		m = press(m, tea.KeyEnter)
	}
	require.False(t, a.Gate.IsBlocking(), "sign-up should hide the overlay: %s", a.Gate.Forms().Error)
	return m
}

// =============================================================================
// AUTH OVERLAY
// =============================================================================

func TestModel_OverlayShownUntilSignIn(t *testing.T) {
	m, a := newTestModel(t, &fakeBackend{})

	assert.True(t, a.Gate.OverlayVisible())
	assert.Len(t, m.fields, 2)
	assert.Contains(t, m.View(), TitleLogin)

	m = send(m, tea.KeyMsg{Type: tea.KeyF5})
	assert.Equal(t, nav.ScreenHome, a.Nav.Current(), "navigation keys go to the overlay")
}

func TestModel_SwitchToSignUp(t *testing.T) {
	m, a := newTestModel(t, &fakeBackend{})

	m = send(m, tea.KeyMsg{Type: tea.KeyCtrlN})
	assert.Len(t, m.fields, 4)
	assert.Contains(t, m.View(), TitleSignUp)

	m = typeText(m, "Ana")
	m = press(m, tea.KeyTab)
	m = typeText(m, "ana@example.com")
	m = press(m, tea.KeyTab)
	m = typeText(m, "abc")
	view := m.View()
	assert.Contains(t, view, "At least 8 characters")
	assert.Equal(t, "abc", a.Gate.Forms().SignUp.Password)

	m = send(m, tea.KeyMsg{Type: tea.KeyCtrlN})
	assert.Len(t, m.fields, 2)
	assert.Empty(t, m.fields[0].Value())
}

func TestModel_SignUpAndSignIn(t *testing.T) {
	m, a := newTestModel(t, &fakeBackend{})
	m = signUp(t, m, a)
	assert.Equal(t, "Ana", a.Session.Current().Name())
	assert.Contains(t, m.View(), "Ana")

	m = send(m, tea.KeyMsg{Type: tea.KeyCtrlO})
	require.True(t, a.Gate.OverlayVisible())
	require.Len(t, m.fields, 2)

	m = typeText(m, "ana@example.com")
	m = press(m, tea.KeyEnter)
	m = typeText(m, "wrong")
	m = press(m, tea.KeyEnter)
	assert.True(t, a.Gate.IsBlocking())
	assert.NotEmpty(t, a.Gate.Forms().Error)
	assert.Contains(t, m.View(), a.Gate.Forms().Error)

	for range "wrong" {
		m = press(m, tea.KeyBackspace)
	}
	m = typeText(m, "Passw0rdX")
	m = press(m, tea.KeyEnter)
	assert.False(t, a.Gate.IsBlocking())
	assert.Equal(t, nav.ScreenHome, a.Nav.Current())
}

func TestModel_ContinueAsGuest(t *testing.T) {
	m, a := newTestModel(t, &fakeBackend{})
	m = send(m, tea.KeyMsg{Type: tea.KeyCtrlG})
	assert.False(t, a.Gate.IsBlocking())
	assert.Contains(t, m.View(), "Guest")
}

// =============================================================================
// NAVIGATION
// =============================================================================

func TestModel_StartGoesThroughLoading(t *testing.T) {
	m, a := newTestModel(t, &fakeBackend{})
	m = signUp(t, m, a)

	m = press(m, tea.KeyRight)
	assert.Equal(t, nav.TopicEducation, a.Nav.State().SelectedTopic)
	assert.Equal(t, nav.ScreenHome, a.Nav.Current())

	m = press(m, tea.KeyEnter)
	assert.Equal(t, nav.ScreenEducation, a.Nav.Current())
	assert.Equal(t, nav.TopicEducation.LoadingText(), m.loadingText)

	m = send(m, tea.KeyMsg{Type: tea.KeyF1})
	m = send(m, tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.Equal(t, nav.ScreenEducation, a.Nav.Current())
}

func TestModel_NavKeys(t *testing.T) {
	m, a := newTestModel(t, &fakeBackend{})
	m = signUp(t, m, a)

	tests := []struct {
		key  tea.KeyType
		want nav.ScreenID
	}{
		{tea.KeyF2, nav.ScreenHealthcare},
		{tea.KeyF3, nav.ScreenEducation},
		{tea.KeyF4, nav.ScreenHistory},
		{tea.KeyF5, nav.ScreenSettings},
		{tea.KeyF1, nav.ScreenHome},
	}
	for _, tt := range tests {
		m = press(m, tt.key)
		if got := a.Nav.Current(); got != tt.want {
			t.Errorf("after %v Current() = %v, want %v", tt.key, got, tt.want)
		}
	}
}

// =============================================================================
// CHAT
// =============================================================================

func TestModel_ChatSubmitRevealsAnswer(t *testing.T) {
	fb := &fakeBackend{}
	m, a := newTestModel(t, fb)
	m = signUp(t, m, a)
	m = press(m, tea.KeyF2)

	m = typeText(m, "why?")
	m = press(m, tea.KeyEnter)

	s, ok := a.Chat.Surface(string(nav.TopicHealthcare))
	require.True(t, ok)
	assert.False(t, s.Pending)
	last := s.Messages[len(s.Messages)-1]
	assert.Equal(t, chat.KindAnswer, last.Kind)
	assert.Equal(t, chat.RenderSettled, last.RenderState)
	assert.Contains(t, last.Content, "because")
	assert.Contains(t, last.Content, "High (0.90)")
	assert.Equal(t, []string{"why?"}, fb.queries)
	assert.Empty(t, m.input.Value())
	assert.Empty(t, m.active)
}

func TestModel_ChatEmptySubmitIgnored(t *testing.T) {
	fb := &fakeBackend{}
	m, a := newTestModel(t, fb)
	m = signUp(t, m, a)
	m = press(m, tea.KeyF2)

	m = typeText(m, "   ")
	m = press(m, tea.KeyEnter)
	assert.Empty(t, fb.queries)

	s, _ := a.Chat.Surface(string(nav.TopicHealthcare))
	assert.Len(t, s.Messages, 1)
}

func TestModel_AttachAndUpload(t *testing.T) {
	fb := &fakeBackend{}
	m, a := newTestModel(t, fb)
	m = signUp(t, m, a)
	m = press(m, tea.KeyF3)

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	m = send(m, tea.KeyMsg{Type: tea.KeyCtrlA})
	require.True(t, m.attaching)
	m = typeText(m, path)
	m = press(m, tea.KeyEnter)
	assert.False(t, m.attaching)
	assert.Equal(t, NoticeAttached+"notes.txt", m.notice)

	s, _ := a.Chat.Surface(string(nav.TopicEducation))
	assert.Equal(t, "notes.txt", s.Attachment)

	m = press(m, tea.KeyEnter)
	assert.Equal(t, []string{"notes.txt"}, fb.uploads)
	assert.Empty(t, fb.queries)

	s, _ = a.Chat.Surface(string(nav.TopicEducation))
	assert.Equal(t, chat.KindUploadOK, s.Messages[len(s.Messages)-1].Kind)
}

func TestModel_AttachMissingFile(t *testing.T) {
	m, a := newTestModel(t, &fakeBackend{})
	m = signUp(t, m, a)
	m = press(m, tea.KeyF2)

	m = send(m, tea.KeyMsg{Type: tea.KeyCtrlA})
	m = typeText(m, "/does/not/exist.txt")
	m = press(m, tea.KeyEnter)
	assert.True(t, strings.HasPrefix(m.notice, "Cannot read"))

	s, _ := a.Chat.Surface(string(nav.TopicHealthcare))
	assert.Empty(t, s.Attachment)
}

func TestModel_UploadDisabled(t *testing.T) {
	m, a := newTestModel(t, &fakeBackend{}, func(c *config.Config) { c.Chat.UploadEnabled = false })
	m = signUp(t, m, a)
	m = press(m, tea.KeyF2)

	m = send(m, tea.KeyMsg{Type: tea.KeyCtrlA})
	assert.False(t, m.attaching)
	assert.Equal(t, NoticeUploadDisabled, m.notice)
}

// =============================================================================
// HISTORY
// =============================================================================

func historyBackend() *fakeBackend {
	return &fakeBackend{records: []backend.Record{
		{ID: 2, Query: "second", Answer: "**bold** answer", Confidence: "High (0.80)", Timestamp: "2025-01-02 10:00:00"},
		{ID: 1, Query: "first", Answer: "older answer", Timestamp: "2025-01-01 10:00:00"},
	}}
}

func TestModel_HistoryLoadsOnEnter(t *testing.T) {
	m, a := newTestModel(t, historyBackend())
	m = signUp(t, m, a)

	m = press(m, tea.KeyF4)
	st := a.History.State()
	require.Equal(t, history.StatusReady, st.Status)
	require.Len(t, st.Records, 2)

	view := m.View()
	assert.Contains(t, view, "second")
	assert.Contains(t, view, history.LabelExpand)
}

func TestModel_HistoryToggleAndDelete(t *testing.T) {
	fb := historyBackend()
	m, a := newTestModel(t, fb)
	m = signUp(t, m, a)
	m = press(m, tea.KeyF4)

	m = press(m, tea.KeySpace)
	assert.True(t, a.History.State().Records[0].Expanded)
	assert.Contains(t, m.View(), history.LabelCollapse)

	m = press(m, tea.KeyDown)
	m = typeText(m, "d")
	assert.True(t, a.History.State().Records[1].ConfirmPending)
	assert.Contains(t, m.View(), history.TextConfirmDelete)

	m = typeText(m, "n")
	assert.False(t, a.History.State().Records[1].ConfirmPending)

	m = typeText(m, "d")
	m = typeText(m, "y")
	assert.Equal(t, []int64{1}, fb.deleted)
	require.Len(t, a.History.State().Records, 1)
	assert.Equal(t, 0, m.cursor)
}

func TestModel_HistoryEscapesControlSequences(t *testing.T) {
	fb := &fakeBackend{records: []backend.Record{
		{ID: 1, Query: "q\x1b]0;pwned\x07", Answer: "a\x1b[2J\x1b[31mred", Confidence: "x\x1b[5m", Timestamp: "2025-01-01 10:00:00"},
	}}
	m, a := newTestModel(t, fb)
	m = signUp(t, m, a)
	m = press(m, tea.KeyF4)
	require.Len(t, a.History.State().Records, 1)

	collapsed := m.View()
	m = press(m, tea.KeySpace)
	require.True(t, a.History.State().Records[0].Expanded)
	expanded := m.View()

	tests := []struct {
		name string
		view string
	}{
		{"collapsed", collapsed},
		{"expanded", expanded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, seq := range []string{"\x1b[2J", "\x1b]0;", "\x1b[5m", "\x07"} {
				assert.NotContains(t, tt.view, seq)
			}
			assert.Contains(t, tt.view, "pwned")
		})
	}
	assert.Contains(t, collapsed, `a\x1b[2J\x1b[31mred`)
}

func TestModel_HistoryClearAll(t *testing.T) {
	fb := historyBackend()
	m, a := newTestModel(t, fb)
	m = signUp(t, m, a)
	m = press(m, tea.KeyF4)

	m = typeText(m, "c")
	assert.Contains(t, m.View(), history.TextConfirmClear)
	m = typeText(m, "y")

	assert.True(t, fb.cleared)
	assert.Equal(t, history.StatusEmpty, a.History.State().Status)
	assert.Contains(t, m.View(), history.TextEmpty)
}

// =============================================================================
// SETTINGS
// =============================================================================

func TestModel_SettingsTemperature(t *testing.T) {
	m, a := newTestModel(t, &fakeBackend{})
	m = signUp(t, m, a)
	m = press(m, tea.KeyF5)

	m = press(m, tea.KeyRight)
	assert.Equal(t, settings.DefaultTemperature+1, a.Settings.Get().TemperatureOrDefault())
	assert.Contains(t, m.View(), settings.TemperatureText(settings.DefaultTemperature+1))

	for i := 0; i < 20; i++ {
		m = press(m, tea.KeyLeft)
	}
	assert.Equal(t, settings.MinTemperature, a.Settings.Get().TemperatureOrDefault())
}

func TestModel_SettingsToggleTheme(t *testing.T) {
	m, a := newTestModel(t, &fakeBackend{}, func(c *config.Config) { c.UI.Theme = "" })
	m = signUp(t, m, a)
	m = press(m, tea.KeyF5)

	before := a.Theme()
	m = typeText(m, "t")
	after := a.Theme()
	assert.NotEqual(t, before, after)
	assert.Equal(t, after != settings.ThemeLight, m.theme.IsDark)
}

func TestModel_QuitKey(t *testing.T) {
	m, _ := newTestModel(t, &fakeBackend{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}
