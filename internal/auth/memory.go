// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type memoryAccount struct {
	user     User
	password string
	disabled bool
}

// MemoryProvider keeps accounts in process memory. Used by tests and the
// "memory" provider setting for demos; nothing survives a restart.
type MemoryProvider struct {
	StateNotifier

	mu       sync.Mutex
	accounts map[string]*memoryAccount

	// FailNext, when set, is returned by the next provider call instead of
	// doing any work. Tests use it to inject unmapped failures.
	FailNext error
}

// NewMemoryProvider returns an empty memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{accounts: make(map[string]*memoryAccount)}
}

func (p *MemoryProvider) takeFailure() error {
	err := p.FailNext
	p.FailNext = nil
	return err
}

// SignUp creates an account and signs it in.
func (p *MemoryProvider) SignUp(ctx context.Context, email, password, displayName string) (*User, error) {
	p.mu.Lock()
	if err := p.takeFailure(); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	key := NormalizeEmail(email)
	if _, exists := p.accounts[key]; exists {
		p.mu.Unlock()
		return nil, NewError(CodeEmailInUse, fmt.Errorf("account %s exists", key))
	}
	acct := &memoryAccount{
		user:     User{UID: uuid.NewString(), Email: key, DisplayName: displayName},
		password: password,
	}
	p.accounts[key] = acct
	u := acct.user
	p.mu.Unlock()

	p.Publish(&u)
	return &u, nil
}

// SignIn verifies credentials.
func (p *MemoryProvider) SignIn(ctx context.Context, email, password string) (*User, error) {
	p.mu.Lock()
	if err := p.takeFailure(); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	acct, ok := p.accounts[NormalizeEmail(email)]
	switch {
	case !ok:
		p.mu.Unlock()
		return nil, NewError(CodeUserNotFound, errors.New("no such account"))
	case acct.disabled:
		p.mu.Unlock()
		return nil, NewError(CodeUserDisabled, errors.New("account disabled"))
	case acct.password != password:
		p.mu.Unlock()
		return nil, NewError(CodeWrongPassword, errors.New("password mismatch"))
	}
	u := acct.user
	p.mu.Unlock()

	p.Publish(&u)
	return &u, nil
}

// SignOut clears the current user.
func (p *MemoryProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	err := p.takeFailure()
	p.mu.Unlock()
	p.Publish(nil)
	return err
}

// OnAuthStateChanged subscribes to user changes.
func (p *MemoryProvider) OnAuthStateChanged(fn func(*User)) func() {
	return p.Subscribe(fn)
}

// CheckEmailRegistered reports whether an account exists for email.
func (p *MemoryProvider) CheckEmailRegistered(ctx context.Context, email string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.takeFailure(); err != nil {
		return false, err
	}
	_, ok := p.accounts[NormalizeEmail(email)]
	return ok, nil
}

// SetDisabled toggles the disabled flag on an existing account.
func (p *MemoryProvider) SetDisabled(email string, disabled bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	acct, ok := p.accounts[NormalizeEmail(email)]
	if ok {
		acct.disabled = disabled
	}
	return ok
}
