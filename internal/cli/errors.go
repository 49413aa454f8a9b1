// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/chatly-tui/internal/auth"
	"github.com/jeranaias/chatly-tui/internal/backend"
	"github.com/jeranaias/chatly-tui/internal/config"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitAuthError    = 4
	ExitNetworkError = 5
)

// ErrAborted is returned when the user cancels a prompt.
var ErrAborted = errors.New("aborted")

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError is a failed command action with context.
type CommandError struct {
	Command string // e.g. "history"
	Action  string // e.g. "delete"
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func commandError(command, action string, err error) error {
	if err == nil {
		return nil
	}
	return &CommandError{Command: command, Action: action, Err: err}
}

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	var (
		authErr *auth.Error
		apiErr  *backend.APIError
		cfgErrs config.ValidateErrors
		cfgErr  config.ValidationError
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &authErr):
		return ExitAuthError
	case errors.As(err, &apiErr), errors.Is(err, backend.ErrRemoteFailure):
		return ExitNetworkError
	case errors.As(err, &cfgErrs), errors.As(err, &cfgErr):
		return ExitConfigError
	case isUsageError(err):
		return ExitUsageError
	}
	return ExitGeneralError
}

// usagePrefixes match the argument and flag errors cobra returns.
var usagePrefixes = []string{
	"unknown command",
	"unknown flag",
	"unknown shorthand flag",
	"invalid argument",
	"accepts ",
	"requires at least",
	"flag needs an argument",
}

func isUsageError(err error) bool {
	msg := err.Error()
	for _, p := range usagePrefixes {
		if strings.HasPrefix(msg, p) {
			return true
		}
	}
	return false
}
