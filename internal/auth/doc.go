// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth implements the sign-in gate that guards every chatly screen.
//
// The Gate owns the sign-in overlay, the login and sign-up form state, and
// the transition of the session store between guest and signed-in. While the
// gate is blocking, navigation, chat submission and history actions are all
// no-ops; those components consult IsBlocking before acting.
//
// Account storage lives behind the Provider interface. Implementations:
//   - MemoryProvider (this package): in-process accounts for tests and demos
//   - local.Provider: sqlite accounts on this machine
//   - remote.Provider: hosted identity REST API with JWKS-verified tokens
//
// # Key Types
//
//   - Gate: Overlay, forms and session transitions
//   - Provider: External account capability
//   - Error: Coded failure with a user-facing message
//   - Requirements: Live password rule status
//
// # Usage
//
//	gate := auth.NewGate(provider, store, auth.GateConfig{AllowGuest: true})
//	gate.OnUserChanged(func(uid string, signedIn bool) { history.Reset() })
//	if err := gate.SignIn(ctx, auth.LoginForm{Email: e, Password: p}); err != nil {
//	    fmt.Println(err) // "Invalid email or password"
//	}
package auth
