// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"
	"sync"
	"time"
)

// GuestID is the user id used whenever no account is signed in.
const GuestID = "guest"

// =============================================================================
// SESSION
// =============================================================================

// Session is an immutable snapshot of the current user.
type Session struct {
	UserID        string
	Authenticated bool
	Email         string
	DisplayName   string
	StartedAt     time.Time
}

// Guest returns the signed-out session.
func Guest() Session {
	return Session{UserID: GuestID}
}

// IsGuest reports whether the session belongs to the guest id.
func (s Session) IsGuest() bool {
	return s.UserID == "" || s.UserID == GuestID
}

// Name returns a display label: the display name, else the email local part,
// else "Guest".
func (s Session) Name() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	if s.Email != "" {
		if at := strings.IndexByte(s.Email, '@'); at > 0 {
			return s.Email[:at]
		}
		return s.Email
	}
	return "Guest"
}

// =============================================================================
// STORE
// =============================================================================

// Store holds the live session. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	current Session
}

// NewStore returns a store starting in the guest state.
func NewStore() *Store {
	return &Store{current: Guest()}
}

// Current returns a snapshot of the live session.
func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// UserID returns the current user id, "guest" when signed out.
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current.UserID == "" {
		return GuestID
	}
	return s.current.UserID
}

// Authenticated reports whether a session is live.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Authenticated
}

// Begin replaces the live session. Called by the auth gate on sign-in.
func (s *Store) Begin(sess Session) Session {
	if sess.UserID == "" {
		sess.UserID = GuestID
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	sess.Authenticated = true

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = sess
	return sess
}

// End resets the store to the guest state. Called by the auth gate on sign-out.
func (s *Store) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Guest()
}
