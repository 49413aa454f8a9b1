// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the chatly command line.
//
// The root command starts the full-screen client. Subcommands cover the
// same core in line mode, plus the local development backend.
//
// # Commands
//
//   - tui: full-screen client (default)
//   - ask: line-mode chat, or one question with an argument
//   - history list|delete|clear: saved questions
//   - signup, signout: account management
//   - devserver: local backend on 127.0.0.1:5001
//   - config show|path|init: configuration
//
// # Exit Codes
//
// ExitCode maps errors to status codes: 2 for usage, 3 for config, 4 for
// auth and 5 for backend failures.
//
// # Usage
//
//	func main() {
//	    cli.Execute()
//	}
package cli
