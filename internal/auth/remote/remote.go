// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package remote implements an auth.Provider against a hosted identity
// toolkit REST API (email/password accounts).
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeranaias/chatly-tui/internal/auth"
	"github.com/jeranaias/chatly-tui/internal/config"
	"github.com/jeranaias/chatly-tui/internal/logging"
)

// maxBody caps identity API responses read into memory.
const maxBody = 1 << 20

// Provider talks to the identity toolkit.
type Provider struct {
	auth.StateNotifier

	baseURL  string
	apiKey   string
	client   *http.Client
	verifier TokenVerifier
	log      *logging.Logger
}

var _ auth.Provider = (*Provider)(nil)

// Option customizes a Provider.
type Option func(*Provider)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// WithVerifier checks every ID token returned by the API.
func WithVerifier(v TokenVerifier) Option {
	return func(p *Provider) { p.verifier = v }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Provider) { p.log = l.Named("auth.remote") }
}

// New creates a remote provider. Nothing is fetched until the first call.
func New(cfg config.RemoteAuthConfig, opts ...Option) *Provider {
	p := &Provider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     logging.Nop().Named("auth.remote"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// =============================================================================
// WIRE TYPES
// =============================================================================

type credentialRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type credentialResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	IDToken     string `json:"idToken"`
}

type updateRequest struct {
	IDToken           string `json:"idToken"`
	DisplayName       string `json:"displayName"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type createAuthURIRequest struct {
	Identifier  string `json:"identifier"`
	ContinueURI string `json:"continueUri"`
}

type createAuthURIResponse struct {
	Registered bool `json:"registered"`
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// errorCodes maps identity API failure reasons onto provider codes.
var errorCodes = map[string]auth.Code{
	"EMAIL_EXISTS":                auth.CodeEmailInUse,
	"EMAIL_NOT_FOUND":             auth.CodeUserNotFound,
	"INVALID_PASSWORD":            auth.CodeWrongPassword,
	"INVALID_LOGIN_CREDENTIALS":   auth.CodeInvalidCredential,
	"INVALID_EMAIL":               auth.CodeInvalidEmail,
	"USER_DISABLED":               auth.CodeUserDisabled,
	"TOO_MANY_ATTEMPTS_TRY_LATER": auth.CodeTooManyRequests,
	"WEAK_PASSWORD":               auth.CodeWeakPassword,
}

// =============================================================================
// PROVIDER METHODS
// =============================================================================

// SignUp creates an account, sets its display name and signs it in.
func (p *Provider) SignUp(ctx context.Context, email, password, displayName string) (*auth.User, error) {
	var resp credentialResponse
	req := credentialRequest{Email: auth.NormalizeEmail(email), Password: password, ReturnSecureToken: true}
	if err := p.call(ctx, "accounts:signUp", req, &resp); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(displayName)
	if name != "" {
		var updated credentialResponse
		upd := updateRequest{IDToken: resp.IDToken, DisplayName: name, ReturnSecureToken: true}
		if err := p.call(ctx, "accounts:update", upd, &updated); err != nil {
			// The account exists; a missing display name is cosmetic.
			p.log.Warn("failed to set display name", logging.Fields{"error": err})
		} else {
			resp.DisplayName = name
			if updated.IDToken != "" {
				resp.IDToken = updated.IDToken
			}
		}
	}

	return p.finish(&resp)
}

// SignIn verifies credentials.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*auth.User, error) {
	var resp credentialResponse
	req := credentialRequest{Email: auth.NormalizeEmail(email), Password: password, ReturnSecureToken: true}
	if err := p.call(ctx, "accounts:signInWithPassword", req, &resp); err != nil {
		return nil, err
	}
	return p.finish(&resp)
}

// SignOut drops the local session. ID tokens are bearer credentials with no
// revocation endpoint for the client.
func (p *Provider) SignOut(ctx context.Context) error {
	p.Publish(nil)
	return nil
}

// OnAuthStateChanged subscribes to user changes.
func (p *Provider) OnAuthStateChanged(fn func(*auth.User)) func() {
	return p.Subscribe(fn)
}

// CheckEmailRegistered asks the API whether email has an account.
func (p *Provider) CheckEmailRegistered(ctx context.Context, email string) (bool, error) {
	var resp createAuthURIResponse
	req := createAuthURIRequest{Identifier: auth.NormalizeEmail(email), ContinueURI: "http://localhost"}
	if err := p.call(ctx, "accounts:createAuthUri", req, &resp); err != nil {
		return false, err
	}
	return resp.Registered, nil
}

func (p *Provider) finish(resp *credentialResponse) (*auth.User, error) {
	if resp.LocalID == "" {
		return nil, auth.NewError(auth.CodeInternal, fmt.Errorf("identity response missing localId"))
	}
	if p.verifier != nil {
		sub, err := p.verifier.Verify(resp.IDToken)
		if err != nil {
			return nil, auth.NewError(auth.CodeInternal, fmt.Errorf("id token rejected: %w", err))
		}
		if sub != resp.LocalID {
			return nil, auth.NewError(auth.CodeInternal, fmt.Errorf("id token subject %q does not match account %q", sub, resp.LocalID))
		}
	}

	u := &auth.User{UID: resp.LocalID, Email: resp.Email, DisplayName: resp.DisplayName, Token: resp.IDToken}
	p.Publish(u)
	return u, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (p *Provider) endpoint(method string) string {
	return p.baseURL + "/" + method + "?key=" + url.QueryEscape(p.apiKey)
}

// call POSTs body to method and decodes the reply into out. API failures
// become *auth.Error values with a mapped code.
func (p *Provider) call(ctx context.Context, method string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return auth.NewError(auth.CodeInternal, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(method), bytes.NewReader(payload))
	if err != nil {
		return auth.NewError(auth.CodeInternal, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return auth.NewError(auth.CodeInternal, fmt.Errorf("%s: %w", method, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return auth.NewError(auth.CodeInternal, fmt.Errorf("%s: read response: %w", method, err))
	}

	if resp.StatusCode != http.StatusOK {
		return apiError(method, resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return auth.NewError(auth.CodeInternal, fmt.Errorf("%s: decode response: %w", method, err))
	}
	return nil
}

// apiError maps an error envelope. Messages look like "WEAK_PASSWORD : Password
// should be at least 6 characters"; only the reason before " : " is matched.
func apiError(method string, status int, data []byte) error {
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil || env.Error.Message == "" {
		return auth.NewError(auth.CodeInternal, fmt.Errorf("%s: HTTP %d", method, status))
	}

	reason := env.Error.Message
	if i := strings.Index(reason, " : "); i >= 0 {
		reason = reason[:i]
	}
	cause := fmt.Errorf("%s: %s", method, env.Error.Message)
	if code, ok := errorCodes[strings.TrimSpace(reason)]; ok {
		return auth.NewError(code, cause)
	}
	return auth.NewError(auth.CodeInternal, cause)
}
