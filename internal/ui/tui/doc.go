// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tui is the full-screen terminal client built on Bubble Tea.
//
// The model owns no domain state of its own. Every key is routed to the
// app's gate, navigator, chat pipeline, history view or settings store, and
// View renders snapshots of those. Backend calls run as tea.Cmds so the
// event loop never blocks; each chat submission advances one step per
// message until its typewriter reveal settles.
//
// # Key Types
//
//   - Model: root tea.Model
//   - KeyMap: key bindings, shown in the help footer
//
// # Usage
//
//	a, err := app.New(ctx, cfg, log)
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//	a.Start()
//	return tui.Run(ctx, a)
package tui
