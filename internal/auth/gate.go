// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"sync"

	"github.com/jeranaias/chatly-tui/internal/logging"
	"github.com/jeranaias/chatly-tui/internal/session"
)

// GateConfig configures a Gate.
type GateConfig struct {
	// AllowGuest enables ContinueAsGuest.
	AllowGuest bool

	Logger *logging.Logger
}

// UserChangedFunc receives the new user id, or signedIn=false on sign-out.
type UserChangedFunc func(userID string, signedIn bool)

// =============================================================================
// GATE
// =============================================================================

// Gate owns the sign-in overlay and the session transitions.
type Gate struct {
	mu sync.Mutex

	provider   Provider
	store      *session.Store
	log        *logging.Logger
	allowGuest bool

	overlay bool
	forms   Forms

	listeners   []UserChangedFunc
	unsubscribe func()
}

// NewGate returns a gate with the overlay shown.
func NewGate(p Provider, store *session.Store, cfg GateConfig) *Gate {
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Gate{
		provider:   p,
		store:      store,
		log:        log.Named("auth"),
		allowGuest: cfg.AllowGuest,
		overlay:    true,
	}
}

// Start subscribes to the provider's auth state so a restored or externally
// ended session flows through the same transitions as interactive ones.
func (g *Gate) Start() {
	unsub := g.provider.OnAuthStateChanged(g.onProviderState)
	g.mu.Lock()
	g.unsubscribe = unsub
	g.mu.Unlock()
}

// Stop unsubscribes from the provider.
func (g *Gate) Stop() {
	g.mu.Lock()
	unsub := g.unsubscribe
	g.unsubscribe = nil
	g.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// IsBlocking reports whether the app must be inert: no live session, or the
// overlay is explicitly shown.
func (g *Gate) IsBlocking() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.overlay || !g.store.Authenticated()
}

// OverlayVisible reports whether the sign-in overlay is shown.
func (g *Gate) OverlayVisible() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.overlay
}

// AllowGuest reports whether guest access is offered.
func (g *Gate) AllowGuest() bool {
	return g.allowGuest
}

// Session returns the store's current session.
func (g *Gate) Session() session.Session {
	return g.store.Current()
}

// OnUserChanged registers fn for every session transition.
func (g *Gate) OnUserChanged(fn UserChangedFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
}

func (g *Gate) emit(listeners []UserChangedFunc, uid string, signedIn bool) {
	for _, fn := range listeners {
		fn(uid, signedIn)
	}
}

// =============================================================================
// FORMS
// =============================================================================

// Forms returns a copy of the overlay form state.
func (g *Gate) Forms() Forms {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.forms
}

// SetLoginForm stores the login field values.
func (g *Gate) SetLoginForm(f LoginForm) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.forms.Login = f
}

// SetSignUpForm stores the sign-up field values.
func (g *Gate) SetSignUpForm(f SignUpForm) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.forms.SignUp = f
}

// ShowLogin switches to the login form, clearing fields and the sign-up error.
func (g *Gate) ShowLogin() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.forms.Mode = ModeLogin
	g.resetFormsLocked()
}

// ShowSignUp switches to the sign-up form, clearing fields and the login error.
func (g *Gate) ShowSignUp() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.forms.Mode = ModeSignUp
	g.resetFormsLocked()
}

func (g *Gate) resetFormsLocked() {
	g.forms.Login = LoginForm{}
	g.forms.SignUp = SignUpForm{}
	g.forms.Error = ""
	g.forms.Notice = ""
	g.forms.Generation++
}

func (g *Gate) setFormError(msg string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.forms.Error = msg
	g.forms.Notice = ""
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// SignIn validates f, calls the provider and, on success, hides the overlay
// and broadcasts the new user. Failures return an *Error with display copy
// and are also recorded as the login form's inline error.
func (g *Gate) SignIn(ctx context.Context, f LoginForm) error {
	if err := f.Validate(); err != nil {
		ae := Translate(err, OpSignIn)
		g.setFormError(ae.Message)
		return ae
	}

	u, err := g.provider.SignIn(ctx, f.Email, f.Password)
	if err != nil {
		ae := Translate(err, OpSignIn)
		g.log.Warn("sign-in failed", logging.Fields{"code": string(ae.Code), "cause": Describe(err)})
		g.setFormError(ae.Message)
		return ae
	}

	g.completeSignIn(u)
	g.log.Info("signed in", logging.Fields{"uid": u.UID})
	return nil
}

// SignUp validates f, rejects already-registered emails, creates the
// account and signs it in.
func (g *Gate) SignUp(ctx context.Context, f SignUpForm) error {
	if err := f.Validate(); err != nil {
		ae := Translate(err, OpSignUp)
		g.setFormError(ae.Message)
		return ae
	}

	registered, err := g.provider.CheckEmailRegistered(ctx, f.Email)
	if err != nil {
		ae := Translate(err, OpSignUp)
		g.log.Warn("email lookup failed", logging.Fields{"cause": Describe(err)})
		g.setFormError(ae.Message)
		return ae
	}
	if registered {
		ae := Translate(ErrEmailInUse, OpSignUp)
		g.setFormError(ae.Message)
		return ae
	}

	u, err := g.provider.SignUp(ctx, f.Email, f.Password, f.Name)
	if err != nil {
		ae := Translate(err, OpSignUp)
		g.log.Warn("sign-up failed", logging.Fields{"code": string(ae.Code), "cause": Describe(err)})
		g.setFormError(ae.Message)
		return ae
	}

	g.completeSignIn(u)
	g.mu.Lock()
	g.forms.Notice = MsgAccountCreated
	g.mu.Unlock()
	g.log.Info("account created", logging.Fields{"uid": u.UID})
	return nil
}

// SubmitLogin signs in with the stored login form.
func (g *Gate) SubmitLogin(ctx context.Context) error {
	return g.SignIn(ctx, g.Forms().Login)
}

// SubmitSignUp signs up with the stored sign-up form.
func (g *Gate) SubmitSignUp(ctx context.Context) error {
	return g.SignUp(ctx, g.Forms().SignUp)
}

// ContinueAsGuest hides the overlay with a live guest session.
func (g *Gate) ContinueAsGuest() error {
	if !g.allowGuest {
		ae := Translate(ErrGuestDisabled, OpSignIn)
		g.setFormError(ae.Message)
		return ae
	}
	g.completeSignIn(&User{UID: session.GuestID})
	g.log.Info("continuing as guest", nil)
	return nil
}

// SignOut ends the session: provider sign-out (failures are logged, not
// fatal), overlay shown, forms reset, and userChanged with no id.
func (g *Gate) SignOut(ctx context.Context) error {
	var provErr error
	if err := g.provider.SignOut(ctx); err != nil {
		provErr = err
		g.log.Error("provider sign-out failed", logging.Fields{"error": err})
	}
	g.completeSignOut(true)
	return provErr
}

func (g *Gate) completeSignIn(u *User) {
	g.mu.Lock()
	cur := g.store.Current()
	if !g.overlay && cur.Authenticated && cur.UserID == u.UID {
		g.mu.Unlock()
		return
	}
	g.overlay = false
	g.resetFormsLocked()
	g.store.Begin(session.Session{UserID: u.UID, Email: u.Email, DisplayName: u.DisplayName})
	listeners := append([]UserChangedFunc(nil), g.listeners...)
	g.mu.Unlock()

	g.emit(listeners, u.UID, true)
}

// completeSignOut runs the signed-out transition once. force also ends a
// guest session; provider-initiated sign-outs leave guests alone since the
// provider never knew about them.
func (g *Gate) completeSignOut(force bool) {
	g.mu.Lock()
	cur := g.store.Current()
	if !cur.Authenticated {
		g.overlay = true
		g.mu.Unlock()
		return
	}
	if !force && cur.IsGuest() {
		g.mu.Unlock()
		return
	}
	g.overlay = true
	g.forms.Mode = ModeLogin
	g.resetFormsLocked()
	g.store.End()
	listeners := append([]UserChangedFunc(nil), g.listeners...)
	g.mu.Unlock()

	g.emit(listeners, "", false)
	g.log.Info("signed out", nil)
}

func (g *Gate) onProviderState(u *User) {
	if u == nil {
		g.completeSignOut(false)
		return
	}
	g.completeSignIn(u)
}
