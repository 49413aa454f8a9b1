// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap holds every binding of the TUI. Screen keys that clash with text
// entry are only routed when no input is focused.
type KeyMap struct {
	Quit key.Binding

	// Navigation.
	Home       key.Binding
	Healthcare key.Binding
	Education  key.Binding
	History    key.Binding
	Settings   key.Binding
	Resume     key.Binding
	SignOut    key.Binding

	// Forms and lists.
	Next   key.Binding
	Prev   key.Binding
	Submit key.Binding
	Back   key.Binding
	Up     key.Binding
	Down   key.Binding
	Left   key.Binding
	Right  key.Binding

	// Auth overlay.
	SwitchForm key.Binding
	Guest      key.Binding

	// Chat.
	Attach   key.Binding
	PageUp   key.Binding
	PageDown key.Binding

	// History.
	Toggle key.Binding
	Delete key.Binding
	Clear  key.Binding
	Yes    key.Binding
	No     key.Binding
	Reload key.Binding

	// Settings.
	Theme key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("C-c", "quit")),

		Home:       key.NewBinding(key.WithKeys("f1", "alt+1"), key.WithHelp("F1", "home")),
		Healthcare: key.NewBinding(key.WithKeys("f2", "alt+2"), key.WithHelp("F2", "healthcare")),
		Education:  key.NewBinding(key.WithKeys("f3", "alt+3"), key.WithHelp("F3", "education")),
		History:    key.NewBinding(key.WithKeys("f4", "alt+4"), key.WithHelp("F4", "history")),
		Settings:   key.NewBinding(key.WithKeys("f5", "alt+5"), key.WithHelp("F5", "settings")),
		Resume:     key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("C-r", "resume chat")),
		SignOut:    key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("C-o", "sign out")),

		Next:   key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("Tab", "next field")),
		Prev:   key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("S-Tab", "previous field")),
		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("Enter", "submit")),
		Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("Esc", "cancel")),
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("up/k", "previous")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("down/j", "next")),
		Left:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("left", "decrease")),
		Right:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("right", "increase")),

		SwitchForm: key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("C-n", "sign in / sign up")),
		Guest:      key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("C-g", "continue as guest")),

		Attach:   key.NewBinding(key.WithKeys("ctrl+a"), key.WithHelp("C-a", "attach document")),
		PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("PgUp", "scroll up")),
		PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("PgDn", "scroll down")),

		Toggle: key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("Space", "expand")),
		Delete: key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete")),
		Clear:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear all")),
		Yes:    key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "confirm")),
		No:     key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "cancel")),
		Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),

		Theme: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "toggle theme")),
	}
}

func (k KeyMap) navHelp() []key.Binding {
	return []key.Binding{k.Home, k.Healthcare, k.Education, k.History, k.Settings}
}
