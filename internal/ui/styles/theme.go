// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds every style the TUI renders with.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	App lipgloss.Style

	// Navigation bar.
	NavBar    lipgloss.Style
	NavItem   lipgloss.Style
	NavActive lipgloss.Style
	Brand     lipgloss.Style
	UserBadge lipgloss.Style

	// Chat.
	UserBubble lipgloss.Style
	BotBubble  lipgloss.Style
	Pending    lipgloss.Style
	Failed     lipgloss.Style
	Succeeded  lipgloss.Style
	Metadata   lipgloss.Style
	Input      lipgloss.Style
	Attachment lipgloss.Style

	// Overlay and panels.
	Overlay     lipgloss.Style
	Title       lipgloss.Style
	Label       lipgloss.Style
	FieldActive lipgloss.Style
	Error       lipgloss.Style
	Notice      lipgloss.Style
	Muted       lipgloss.Style

	// History.
	Card         lipgloss.Style
	CardSelected lipgloss.Style
	Confirm      lipgloss.Style
	Timestamp    lipgloss.Style

	// Footer.
	HelpKey  lipgloss.Style
	HelpDesc lipgloss.Style
}

// NewTheme builds a theme for a dark or light background. Adaptive colors
// follow the choice rather than the detected terminal background.
func NewTheme(dark bool) *Theme {
	lipgloss.SetHasDarkBackground(dark)
	t := &Theme{IsDark: dark, ColorProfile: termenv.ColorProfile()}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.App = lipgloss.NewStyle().Padding(0, 1)

	t.NavBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.NavItem = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Padding(0, 1)
	t.NavActive = t.NavItem.
		Foreground(TextInverse).
		Background(Purple).
		Bold(true)
	t.Brand = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true).
		PaddingRight(2)
	t.UserBadge = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1).
		MarginLeft(4)
	t.BotBubble = lipgloss.NewStyle().
		Foreground(BotBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(BotBubbleBorder).
		Padding(0, 1).
		MarginRight(4)
	t.Pending = lipgloss.NewStyle().Foreground(Amber).Italic(true)
	t.Failed = lipgloss.NewStyle().Foreground(Rose)
	t.Succeeded = lipgloss.NewStyle().Foreground(Emerald)
	t.Metadata = lipgloss.NewStyle().Foreground(TextSecondary)
	t.Input = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.Attachment = lipgloss.NewStyle().Foreground(Cyan).Italic(true)

	t.Overlay = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(1, 3)
	t.Title = lipgloss.NewStyle().Foreground(Purple).Bold(true).MarginBottom(1)
	t.Label = lipgloss.NewStyle().Foreground(TextSecondary)
	t.FieldActive = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.Error = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.Notice = lipgloss.NewStyle().Foreground(Emerald)
	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)

	t.Card = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Overlay).
		PaddingLeft(1)
	t.CardSelected = t.Card.BorderForeground(Cyan)
	t.Confirm = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.Timestamp = lipgloss.NewStyle().Foreground(TextMuted)

	t.HelpKey = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.HelpDesc = lipgloss.NewStyle().Foreground(TextMuted)
}

// GlamourStyle names the glamour standard style matching the theme.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}
