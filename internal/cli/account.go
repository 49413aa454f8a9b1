// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatly-tui/internal/app"
	"github.com/jeranaias/chatly-tui/internal/auth"
)

// =============================================================================
// SIGN-IN
// =============================================================================

// signIn leaves the gate open: an already restored session is kept,
// --guest continues as guest, and otherwise the user is asked for email and
// password.
func (rt *runtime) signIn(ctx context.Context, a *app.App, p Prompter, out io.Writer) error {
	if !a.Gate.IsBlocking() {
		return nil
	}
	if rt.guest {
		return a.Gate.ContinueAsGuest()
	}

	fmt.Fprintln(out, titleStyle.Render("Sign in"))
	email, err := p.Line("Email: ")
	if err != nil {
		return err
	}
	pw, err := p.Password("Password: ")
	if err != nil {
		return err
	}
	return a.Gate.SignIn(ctx, auth.LoginForm{Email: strings.TrimSpace(email), Password: pw})
}

// =============================================================================
// SIGNUP
// =============================================================================

func (rt *runtime) signUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, out := cmd.Context(), cmd.OutOrStdout()
			a, err := rt.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			p := rt.newPrompter(out)
			defer p.Close()

			form, err := readSignUpForm(p, out)
			if err != nil {
				return err
			}
			if err := a.Gate.SignUp(ctx, form); err != nil {
				for _, v := range auth.PasswordViolations(form.Password) {
					fmt.Fprintln(out, mutedStyle.Render("  • "+v))
				}
				return err
			}
			fmt.Fprintln(out, successStyle.Render(auth.MsgAccountCreated))
			return nil
		},
	}
}

func readSignUpForm(p Prompter, out io.Writer) (auth.SignUpForm, error) {
	var f auth.SignUpForm
	var err error

	fmt.Fprintln(out, titleStyle.Render("Create account"))
	fmt.Fprintln(out, infoStyle.Render(fmt.Sprintf(
		"Passwords need %d+ characters with an uppercase letter, a lowercase letter and a number.",
		auth.MinPasswordLength)))

	if f.Name, err = p.Line("Name: "); err != nil {
		return f, err
	}
	if f.Email, err = p.Line("Email: "); err != nil {
		return f, err
	}
	if f.Password, err = p.Password("Password: "); err != nil {
		return f, err
	}
	if f.ConfirmPassword, err = p.Password("Confirm password: "); err != nil {
		return f, err
	}
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	return f, nil
}

// =============================================================================
// SIGNOUT
// =============================================================================

func (rt *runtime) signOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Forget the remembered session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if a.Gate.IsBlocking() {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("Not signed in."))
				return nil
			}
			name := a.Session.Current().Name()
			if err := a.Gate.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Signed out "+name+"."))
			return nil
		},
	}
}
