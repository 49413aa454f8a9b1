// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

// UNICODE: Width-aware truncation keeps CJK and emoji columns aligned in the
// terminal. Byte slicing would split multi-byte runes.

// TruncateWidth truncates s to at most maxWidth terminal columns.
// If the string is cut, "..." is appended within the width budget.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// StringWidth returns the display width of s in terminal columns.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// SingleLine collapses all runs of whitespace (including newlines) into a
// single space and trims the ends.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FormatFloat renders f in its shortest exact decimal form ("0.92", "1").
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
