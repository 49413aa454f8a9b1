// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the single live user session for a chatly process.
//
// A Store is created once and passed to every component that needs to know
// who the current user is. Only the auth gate begins and ends sessions; all
// other components read through Current or UserID.
//
// # Key Types
//
//   - Session: Snapshot of the current user
//   - Store: Mutex-guarded holder of the live Session
//
// # Usage
//
//	store := session.NewStore()
//	uid := store.UserID() // "guest" until sign-in
package session
