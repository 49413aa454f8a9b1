// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across chatly packages.
//
// # Key Functions
//
// Text:
//   - TruncateWidth: display-width aware truncation with ellipsis
//   - SingleLine: collapse whitespace for one-line previews
//   - FormatFloat: shortest decimal form of a float for display
//
// Files:
//   - AtomicWriteFile: crash-safe file writing with fsync
//   - HomeDir: resolve the chatly state directory
//
// # Usage
//
//	preview := util.TruncateWidth(util.SingleLine(answer), 60)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
