// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/chatly-tui/internal/ui/styles"
)

func init() {
	lipgloss.SetColorProfile(ColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	titleStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	mutedStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	successStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)

	pendingStyle = lipgloss.NewStyle().
			Foreground(styles.Amber).
			Italic(true)

	plainStyle = lipgloss.NewStyle()

	idStyle = lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Italic(true)
)
