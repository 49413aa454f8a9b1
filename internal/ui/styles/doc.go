// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colors and lipgloss styles of the chatly TUI.

All colors are lipgloss AdaptiveColor values. NewTheme pins lipgloss to the
chosen background so the saved dark/light setting wins over terminal
detection.

# Usage

	theme := styles.NewTheme(a.Theme() == settings.ThemeDark)
	fmt.Println(theme.Title.Render("History"))
*/
package styles
