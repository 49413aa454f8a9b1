// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"regexp"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// =============================================================================
// FORMS
// =============================================================================

// LoginForm holds the sign-in fields.
type LoginForm struct {
	Email    string
	Password string
}

// SignUpForm holds the registration fields.
type SignUpForm struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// FormMode selects which form the overlay shows.
type FormMode int

const (
	ModeLogin FormMode = iota
	ModeSignUp
)

// Forms is the overlay's form state.
type Forms struct {
	Mode   FormMode
	Login  LoginForm
	SignUp SignUpForm

	// Error is the inline error for the active form.
	Error string
	// Notice is inline success text for the active form.
	Notice string

	// Generation increments whenever the fields are reset so adapters
	// holding their own input widgets know to clear them.
	Generation int
}

// =============================================================================
// PASSWORD POLICY
// =============================================================================

// Per-rule password messages.
const (
	MsgPasswordLength = "Password must be at least 8 characters"
	MsgPasswordUpper  = "Password must contain at least 1 uppercase letter"
	MsgPasswordLower  = "Password must contain at least 1 lowercase letter"
	MsgPasswordNumber = "Password must contain at least 1 numeric number"
)

// MinPasswordLength is the shortest accepted password in characters.
const MinPasswordLength = 8

var (
	upperRe = regexp.MustCompile(`[A-Z]`)
	lowerRe = regexp.MustCompile(`[a-z]`)
	digitRe = regexp.MustCompile(`[0-9]`)
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// passwordRules are checked in order; the first failure is the headline
// detail.
var passwordRules = []validation.Rule{
	validation.RuneLength(MinPasswordLength, 0).Error(MsgPasswordLength),
	validation.Match(upperRe).Error(MsgPasswordUpper),
	validation.Match(lowerRe).Error(MsgPasswordLower),
	validation.Match(digitRe).Error(MsgPasswordNumber),
}

// Requirements reports which password rules are met, for live indicators.
type Requirements struct {
	Length bool
	Upper  bool
	Lower  bool
	Number bool
}

// Met reports whether every rule passes.
func (r Requirements) Met() bool {
	return r.Length && r.Upper && r.Lower && r.Number
}

// PasswordRequirements evaluates pw against each rule independently.
func PasswordRequirements(pw string) Requirements {
	return Requirements{
		Length: len([]rune(pw)) >= MinPasswordLength,
		Upper:  upperRe.MatchString(pw),
		Lower:  lowerRe.MatchString(pw),
		Number: digitRe.MatchString(pw),
	}
}

// PasswordViolations returns the message for every failing rule, in order.
func PasswordViolations(pw string) []string {
	if pw == "" {
		return []string{MsgPasswordLength, MsgPasswordUpper, MsgPasswordLower, MsgPasswordNumber}
	}
	var out []string
	for _, rule := range passwordRules {
		if err := validation.Validate(pw, rule); err != nil {
			out = append(out, err.Error())
		}
	}
	return out
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the login form before any provider call.
func (f LoginForm) Validate() error {
	email := strings.TrimSpace(f.Email)
	if err := validation.Validate(email, validation.Required); err != nil {
		return &Error{Code: CodeMissingFields, Message: MsgLoginMissing}
	}
	if err := validation.Validate(f.Password, validation.Required); err != nil {
		return &Error{Code: CodeMissingFields, Message: MsgLoginMissing}
	}
	if err := validation.Validate(email, validation.Match(emailRe)); err != nil {
		return &Error{Code: CodeInvalidEmail, Message: MsgInvalidEmail}
	}
	return nil
}

// Validate checks the sign-up form: required fields, then password policy,
// then confirmation match, then email format.
func (f SignUpForm) Validate() error {
	email := strings.TrimSpace(f.Email)
	for _, v := range []string{email, f.Password} {
		if err := validation.Validate(v, validation.Required); err != nil {
			return &Error{Code: CodeMissingFields, Message: MsgSignUpMissing}
		}
	}

	if violations := PasswordViolations(f.Password); len(violations) > 0 {
		return &Error{Code: CodePasswordPolicy, Message: MsgPasswordPolicy, Details: violations}
	}
	if f.Password != f.ConfirmPassword {
		return &Error{Code: CodePasswordMismatch, Message: MsgPasswordMismatch}
	}
	if err := validation.Validate(email, validation.Match(emailRe)); err != nil {
		return &Error{Code: CodeInvalidEmail, Message: MsgInvalidEmail}
	}
	return nil
}

// ConfirmMismatch reports whether the confirmation field currently differs,
// for the live mismatch indicator.
func (f SignUpForm) ConfirmMismatch() bool {
	return f.ConfirmPassword != "" && f.Password != f.ConfirmPassword
}

// =============================================================================
// EMAIL NORMALIZATION
// =============================================================================

// NormalizeEmail trims, applies NFKC and case-folds an address so lookups
// ignore case and compatibility forms.
// UNICODE: fullwidth "ＡＮＡ@example.com" and "ana@example.com" compare equal.
func NormalizeEmail(email string) string {
	email = strings.TrimFunc(email, unicode.IsSpace)
	// Casers carry state, so one per call.
	return cases.Fold().String(norm.NFKC.String(email))
}
