// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"errors"
	"fmt"
)

// Code identifies an auth failure independent of its display text.
type Code string

// Provider codes. Providers report these; the gate maps them to copy.
const (
	CodeUserNotFound      Code = "auth/user-not-found"
	CodeInvalidCredential Code = "auth/invalid-credential"
	CodeWrongPassword     Code = "auth/wrong-password"
	CodeInvalidEmail      Code = "auth/invalid-email"
	CodeUserDisabled      Code = "auth/user-disabled"
	CodeEmailInUse        Code = "auth/email-already-in-use"
	CodeTooManyRequests   Code = "auth/too-many-requests"
	CodeWeakPassword      Code = "auth/weak-password"
	CodeInternal          Code = "auth/internal-error"
)

// Form codes. Raised before any provider call.
const (
	CodeMissingFields    Code = "form/missing-fields"
	CodePasswordPolicy   Code = "form/password-policy"
	CodePasswordMismatch Code = "form/password-mismatch"
	CodeGuestDisabled    Code = "form/guest-disabled"
)

// Operation distinguishes which fallback text an unmapped failure gets.
type Operation int

const (
	OpSignIn Operation = iota
	OpSignUp
)

// User-facing copy.
const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgInvalidEmail       = "Invalid email format"
	MsgUserDisabled       = "This account has been disabled"
	MsgEmailInUse         = "email has already registered"
	MsgTooManyRequests    = "Too many attempts. Please try again later."
	MsgPasswordPolicy     = "Please meet all password requirements."
	MsgPasswordMismatch   = "Passwords do not match."
	MsgLoginMissing       = "Please enter email and password"
	MsgSignUpMissing      = "Please fill in all fields"
	MsgGuestDisabled      = "Guest access is disabled."
	MsgSignUpFailed       = "Signup failed. Please try again."
	MsgSignInFailed       = "Something went wrong. Please try again."
	MsgAccountCreated     = "Account created successfully."
)

var codeMessages = map[Code]string{
	CodeUserNotFound:      MsgInvalidCredentials,
	CodeInvalidCredential: MsgInvalidCredentials,
	CodeWrongPassword:     MsgInvalidCredentials,
	CodeInvalidEmail:      MsgInvalidEmail,
	CodeUserDisabled:      MsgUserDisabled,
	CodeEmailInUse:        MsgEmailInUse,
	CodeTooManyRequests:   MsgTooManyRequests,
	CodeWeakPassword:      MsgPasswordPolicy,
	CodePasswordPolicy:    MsgPasswordPolicy,
	CodePasswordMismatch:  MsgPasswordMismatch,
	CodeGuestDisabled:     MsgGuestDisabled,
}

// =============================================================================
// ERROR TYPE
// =============================================================================

// Error is an auth failure with a stable code and display message.
type Error struct {
	Code    Code
	Message string

	// Details lists individual rule failures for policy errors.
	Details []string

	// Err is the raw cause, kept for logs and never shown to the user.
	Err error
}

// Error returns the user-facing message.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code so callers can test against sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrUserNotFound      = &Error{Code: CodeUserNotFound}
	ErrInvalidCredential = &Error{Code: CodeInvalidCredential}
	ErrWrongPassword     = &Error{Code: CodeWrongPassword}
	ErrInvalidEmail      = &Error{Code: CodeInvalidEmail}
	ErrUserDisabled      = &Error{Code: CodeUserDisabled}
	ErrEmailInUse        = &Error{Code: CodeEmailInUse}
	ErrTooManyRequests   = &Error{Code: CodeTooManyRequests}
	ErrPasswordPolicy    = &Error{Code: CodePasswordPolicy}
	ErrPasswordMismatch  = &Error{Code: CodePasswordMismatch}
	ErrMissingFields     = &Error{Code: CodeMissingFields}
	ErrGuestDisabled     = &Error{Code: CodeGuestDisabled}
)

// NewError builds a provider error carrying code and the raw cause.
func NewError(code Code, cause error) *Error {
	return &Error{Code: code, Err: cause}
}

// Translate converts any failure into an *Error with user-facing copy.
// Known codes use the fixed table; everything else gets the generic
// fallback for op. The raw cause is preserved for logging.
func Translate(err error, op Operation) *Error {
	if err == nil {
		return nil
	}

	var ae *Error
	if errors.As(err, &ae) {
		out := *ae
		if out.Message == "" {
			if msg, ok := codeMessages[out.Code]; ok {
				out.Message = msg
			} else {
				out.Message = fallbackMessage(op)
			}
		}
		return &out
	}

	return &Error{Code: CodeInternal, Message: fallbackMessage(op), Err: err}
}

func fallbackMessage(op Operation) string {
	if op == OpSignUp {
		return MsgSignUpFailed
	}
	return MsgSignInFailed
}

// Describe renders an error for logs: code plus the raw cause.
func Describe(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Err != nil {
			return fmt.Sprintf("%s: %v", ae.Code, ae.Err)
		}
		return string(ae.Code)
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
