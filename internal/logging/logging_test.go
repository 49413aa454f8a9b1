// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatly-tui/internal/config"
)

func TestNew_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chatly.log")
	log, err := New(config.LoggingConfig{Path: path, Level: "info"})
	require.NoError(t, err)

	log.Named("chat").Warn("upload failed", Fields{
		"surface": "healthcare",
		"error":   errors.New("connection refused"),
	})
	log.Debug("dropped below level", nil)
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "upload failed", entry["message"])
	assert.Equal(t, "chat", entry["module"])
	assert.Equal(t, "connection refused", entry["error"])
	assert.Contains(t, entry, "timestamp")

	details, ok := entry["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "healthcare", details["surface"])
}

func TestNew_RejectsBadLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Path: filepath.Join(t.TempDir(), "x.log"), Level: "chatty"})
	assert.Error(t, err)
}

func TestNilAndNopAreSafe(t *testing.T) {
	var l *Logger
	l.Info("ignored", nil)
	assert.NoError(t, l.Close())

	n := Nop().Named("auth")
	n.Error("ignored", Fields{"k": "v"})
	assert.NoError(t, n.Close())
}
