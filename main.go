// chatly - Topic-scoped document chat in the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import "github.com/jeranaias/chatly-tui/internal/cli"

// Version information (set at build time)
var (
	Version   = ""
	GitCommit = ""
	BuildDate = ""
)

func main() {
	if Version != "" {
		cli.Version = Version
	}
	if GitCommit != "" {
		cli.GitCommit = GitCommit
	}
	if BuildDate != "" {
		cli.BuildDate = BuildDate
	}
	cli.Execute()
}
