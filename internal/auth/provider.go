// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"sync"
)

// User is an account as reported by a provider.
type User struct {
	UID         string
	Email       string
	DisplayName string

	// Token is the provider's session credential, if any.
	Token string
}

// Provider is the external authentication capability.
// Failures should be *Error values carrying a provider Code.
type Provider interface {
	SignUp(ctx context.Context, email, password, displayName string) (*User, error)
	SignIn(ctx context.Context, email, password string) (*User, error)
	SignOut(ctx context.Context) error

	// OnAuthStateChanged registers fn for every change of the signed-in user
	// (nil when signed out). fn is called once immediately with the current
	// state. The returned function unsubscribes.
	OnAuthStateChanged(fn func(*User)) (unsubscribe func())

	CheckEmailRegistered(ctx context.Context, email string) (bool, error)
}

// =============================================================================
// STATE NOTIFIER
// =============================================================================

// StateNotifier tracks the current user for a provider and fans out
// OnAuthStateChanged callbacks. Providers embed one.
type StateNotifier struct {
	mu        sync.Mutex
	current   *User
	nextID    int
	listeners map[int]func(*User)
}

// Current returns the last published user.
func (n *StateNotifier) Current() *User {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Subscribe registers fn and calls it with the current user.
func (n *StateNotifier) Subscribe(fn func(*User)) func() {
	n.mu.Lock()
	if n.listeners == nil {
		n.listeners = make(map[int]func(*User))
	}
	id := n.nextID
	n.nextID++
	n.listeners[id] = fn
	current := n.current
	n.mu.Unlock()

	fn(current)

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners, id)
	}
}

// Publish records u as current and notifies listeners outside the lock.
func (n *StateNotifier) Publish(u *User) {
	n.mu.Lock()
	n.current = u
	fns := make([]func(*User), 0, len(n.listeners))
	for _, fn := range n.listeners {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}
