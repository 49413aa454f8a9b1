// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
)

func TestNewTheme_GlamourStyle(t *testing.T) {
	tests := []struct {
		dark bool
		want string
	}{
		{true, "dark"},
		{false, "light"},
	}
	for _, tt := range tests {
		theme := NewTheme(tt.dark)
		if theme.IsDark != tt.dark {
			t.Errorf("IsDark = %v, want %v", theme.IsDark, tt.dark)
		}
		if got := theme.GlamourStyle(); got != tt.want {
			t.Errorf("GlamourStyle() = %q, want %q", got, tt.want)
		}
	}
}

func TestTheme_RendersText(t *testing.T) {
	theme := NewTheme(true)
	if got := theme.Title.Render("History"); !strings.Contains(got, "History") {
		t.Errorf("Title.Render() = %q, want it to contain the text", got)
	}
}
