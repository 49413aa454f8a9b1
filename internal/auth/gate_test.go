// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatly-tui/internal/session"
)

type userChange struct {
	uid      string
	signedIn bool
}

func newTestGate(t *testing.T, allowGuest bool) (*Gate, *MemoryProvider, *[]userChange) {
	t.Helper()
	p := NewMemoryProvider()
	g := NewGate(p, session.NewStore(), GateConfig{AllowGuest: allowGuest})
	changes := &[]userChange{}
	g.OnUserChanged(func(uid string, signedIn bool) {
		*changes = append(*changes, userChange{uid, signedIn})
	})
	g.Start()
	t.Cleanup(g.Stop)
	return g, p, changes
}

func signUpForm(email string) SignUpForm {
	return SignUpForm{Name: "Ana", Email: email, Password: "Passw0rdX", ConfirmPassword: "Passw0rdX"}
}

// =============================================================================
// BLOCKING
// =============================================================================

func TestGate_BlocksUntilSignedIn(t *testing.T) {
	g, _, changes := newTestGate(t, false)

	assert.True(t, g.IsBlocking())
	assert.True(t, g.OverlayVisible())
	assert.Empty(t, *changes, "initial provider state must not emit")

	require.NoError(t, g.SignUp(context.Background(), signUpForm("ana@example.com")))

	assert.False(t, g.IsBlocking())
	assert.False(t, g.OverlayVisible())
	require.Len(t, *changes, 1)
	assert.True(t, (*changes)[0].signedIn)
	assert.Equal(t, g.Session().UserID, (*changes)[0].uid)
	assert.Equal(t, MsgAccountCreated, g.Forms().Notice)
}

func TestGate_SignOutResetsEverything(t *testing.T) {
	g, _, changes := newTestGate(t, false)
	ctx := context.Background()
	require.NoError(t, g.SignUp(ctx, signUpForm("ana@example.com")))

	g.ShowSignUp()
	g.SetSignUpForm(SignUpForm{Name: "half", Email: "typed@example.com"})
	gen := g.Forms().Generation

	require.NoError(t, g.SignOut(ctx))

	assert.True(t, g.IsBlocking())
	assert.True(t, g.OverlayVisible())
	assert.Equal(t, session.GuestID, g.Session().UserID)

	forms := g.Forms()
	assert.Equal(t, ModeLogin, forms.Mode)
	assert.Equal(t, SignUpForm{}, forms.SignUp)
	assert.Equal(t, LoginForm{}, forms.Login)
	assert.Greater(t, forms.Generation, gen)

	require.Len(t, *changes, 2, "one sign-in and exactly one sign-out broadcast")
	assert.Equal(t, userChange{"", false}, (*changes)[1])
}

func TestGate_ProviderSignOutSurfacesThroughGate(t *testing.T) {
	g, p, changes := newTestGate(t, false)
	require.NoError(t, g.SignUp(context.Background(), signUpForm("ana@example.com")))

	// Session ended outside the gate (token expiry, another window).
	p.Publish(nil)

	assert.True(t, g.IsBlocking())
	require.Len(t, *changes, 2)
	assert.False(t, (*changes)[1].signedIn)
}

func TestGate_ProviderSignOutFailureStillSignsOut(t *testing.T) {
	g, p, changes := newTestGate(t, false)
	ctx := context.Background()
	require.NoError(t, g.SignUp(ctx, signUpForm("ana@example.com")))

	p.FailNext = errors.New("network down")
	err := g.SignOut(ctx)

	assert.Error(t, err)
	assert.True(t, g.IsBlocking())
	require.Len(t, *changes, 2)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestGate_SignInErrors(t *testing.T) {
	g, _, _ := newTestGate(t, false)
	ctx := context.Background()
	require.NoError(t, g.SignUp(ctx, signUpForm("ana@example.com")))
	require.NoError(t, g.SignOut(ctx))

	tests := []struct {
		name string
		form LoginForm
		want string
	}{
		{"empty", LoginForm{}, MsgLoginMissing},
		{"no password", LoginForm{Email: "ana@example.com"}, MsgLoginMissing},
		{"bad format", LoginForm{Email: "not-an-email", Password: "x"}, MsgInvalidEmail},
		{"unknown user", LoginForm{Email: "nobody@example.com", Password: "Passw0rdX"}, MsgInvalidCredentials},
		{"wrong password", LoginForm{Email: "ana@example.com", Password: "Wrong1234"}, MsgInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.SignIn(ctx, tt.form)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
			assert.Equal(t, tt.want, g.Forms().Error)
			assert.True(t, g.IsBlocking())
		})
	}
}

func TestGate_DisabledAccount(t *testing.T) {
	g, p, _ := newTestGate(t, false)
	ctx := context.Background()
	require.NoError(t, g.SignUp(ctx, signUpForm("ana@example.com")))
	require.NoError(t, g.SignOut(ctx))
	p.SetDisabled("ana@example.com", true)

	err := g.SignIn(ctx, LoginForm{Email: "ana@example.com", Password: "Passw0rdX"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUserDisabled))
	assert.Equal(t, MsgUserDisabled, err.Error())
}

func TestGate_SignUpErrors(t *testing.T) {
	g, _, _ := newTestGate(t, false)
	ctx := context.Background()
	require.NoError(t, g.SignUp(ctx, signUpForm("taken@example.com")))
	require.NoError(t, g.SignOut(ctx))

	tests := []struct {
		name string
		form SignUpForm
		want string
	}{
		{"missing", SignUpForm{Email: "a@example.com"}, MsgSignUpMissing},
		{"weak", SignUpForm{Email: "a@example.com", Password: "short", ConfirmPassword: "short"}, MsgPasswordPolicy},
		{"mismatch", SignUpForm{Email: "a@example.com", Password: "Passw0rdX", ConfirmPassword: "Passw0rdY"}, MsgPasswordMismatch},
		{"duplicate", signUpForm("TAKEN@example.com"), MsgEmailInUse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.SignUp(ctx, tt.form)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
			assert.True(t, g.IsBlocking())
		})
	}
}

func TestGate_UnmappedFailureUsesFallback(t *testing.T) {
	g, p, _ := newTestGate(t, false)
	ctx := context.Background()

	p.FailNext = errors.New("socket hang up")
	err := g.SignUp(ctx, signUpForm("ana@example.com"))
	require.Error(t, err)
	assert.Equal(t, MsgSignUpFailed, err.Error())
	assert.NotContains(t, err.Error(), "socket")

	p.FailNext = errors.New("socket hang up")
	err = g.SignIn(ctx, LoginForm{Email: "ana@example.com", Password: "Passw0rdX"})
	require.Error(t, err)
	assert.Equal(t, MsgSignInFailed, err.Error())

	var ae *Error
	require.True(t, errors.As(err, &ae))
	assert.EqualError(t, ae.Err, "socket hang up", "raw cause kept for logs")
}

// =============================================================================
// GUEST
// =============================================================================

func TestGate_Guest(t *testing.T) {
	g, _, changes := newTestGate(t, true)

	require.NoError(t, g.ContinueAsGuest())
	assert.False(t, g.IsBlocking())
	assert.Equal(t, session.GuestID, g.Session().UserID)
	require.Len(t, *changes, 1)
	assert.Equal(t, userChange{session.GuestID, true}, (*changes)[0])

	require.NoError(t, g.SignOut(context.Background()))
	assert.True(t, g.IsBlocking())
	require.Len(t, *changes, 2)
}

func TestGate_GuestDisabled(t *testing.T) {
	g, _, changes := newTestGate(t, false)

	err := g.ContinueAsGuest()
	assert.True(t, errors.Is(err, ErrGuestDisabled))
	assert.True(t, g.IsBlocking())
	assert.Empty(t, *changes)
}

func TestGate_FormToggleClearsFields(t *testing.T) {
	g, _, _ := newTestGate(t, false)
	g.SetLoginForm(LoginForm{Email: "x@example.com", Password: "pw"})
	_ = g.SubmitLogin(context.Background())
	require.NotEmpty(t, g.Forms().Error)

	g.ShowSignUp()
	forms := g.Forms()
	assert.Equal(t, ModeSignUp, forms.Mode)
	assert.Empty(t, forms.Error)
	assert.Equal(t, LoginForm{}, forms.Login)
}
