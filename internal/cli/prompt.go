// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"

	"github.com/jeranaias/chatly-tui/internal/config"
)

// Prompter reads user input for the line-mode commands.
type Prompter interface {
	// Line reads one line. io.EOF and ErrAborted end the session.
	Line(prompt string) (string, error)

	// Password reads a line without echo.
	Password(prompt string) (string, error)

	Close() error
}

// =============================================================================
// LINER PROMPTER
// =============================================================================

// linerPrompter provides line editing with persistent input history.
type linerPrompter struct {
	line        *liner.State
	out         io.Writer
	historyFile string
}

// NewLinePrompter returns a liner-backed prompter. History is kept in
// ask_history under the config directory.
func NewLinePrompter(out io.Writer) Prompter {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	p := &linerPrompter{line: line, out: out}
	if dir, err := config.ConfigDir(); err == nil {
		p.historyFile = filepath.Join(dir, "ask_history")
		if f, err := os.Open(p.historyFile); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}
	return p
}

func (p *linerPrompter) Line(prompt string) (string, error) {
	input, err := p.line.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", ErrAborted
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		p.line.AppendHistory(input)
	}
	return input, nil
}

// SECURITY: Passwords are read with echo disabled and never enter the
// input history.
func (p *linerPrompter) Password(prompt string) (string, error) {
	if !IsTTY() {
		pw, err := p.line.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", ErrAborted
		}
		return pw, err
	}
	fmt.Fprint(p.out, prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

func (p *linerPrompter) Close() error {
	if p.historyFile != "" {
		if err := os.MkdirAll(filepath.Dir(p.historyFile), 0o700); err == nil {
			if f, err := os.OpenFile(p.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
				_, _ = p.line.WriteHistory(f)
				f.Close()
			}
		}
	}
	return p.line.Close()
}
