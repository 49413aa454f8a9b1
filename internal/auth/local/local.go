// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package local implements an auth.Provider backed by a SQLite account
// database on this machine.
//
// Passwords are stored as bcrypt hashes. Sign-in attempts are rate limited
// per email. A successful sign-in writes a signed session token so the next
// launch restores the user without prompting.
package local

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/jeranaias/chatly-tui/internal/auth"
	"github.com/jeranaias/chatly-tui/internal/config"
	"github.com/jeranaias/chatly-tui/internal/logging"
	"github.com/jeranaias/chatly-tui/internal/sqlitedb"
	"github.com/jeranaias/chatly-tui/internal/util"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    uid TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL DEFAULT '',
    password_hash BLOB NOT NULL,
    disabled INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);
`

const tokenIssuer = "chatly-local"

// Option customizes a Provider.
type Option func(*Provider)

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(p *Provider) { p.cost = cost }
}

// WithClock overrides time.Now for token expiry.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Provider) { p.log = l.Named("auth.local") }
}

// =============================================================================
// PROVIDER
// =============================================================================

// Provider is the on-machine account store.
type Provider struct {
	auth.StateNotifier

	db        *sql.DB
	tokenPath string
	secret    []byte
	ttl       time.Duration
	cost      int
	now       func() time.Time
	log       *logging.Logger

	// SECURITY: Per-email token buckets slow password guessing.
	limMu     sync.Mutex
	limiters  map[string]*rate.Limiter
	perMinute int
}

var _ auth.Provider = (*Provider)(nil)

// Open opens the account database and restores any remembered session.
func Open(cfg config.LocalAuthConfig, opts ...Option) (*Provider, error) {
	db, err := sqlitedb.Open(cfg.DBPath, schema)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		db:        db,
		tokenPath: cfg.TokenPath,
		ttl:       time.Duration(cfg.TokenTTLHours) * time.Hour,
		cost:      bcrypt.DefaultCost,
		now:       time.Now,
		log:       logging.Nop().Named("auth.local"),
		limiters:  make(map[string]*rate.Limiter),
		perMinute: cfg.AttemptsPerMinute,
	}
	if p.perMinute <= 0 {
		p.perMinute = 5
	}
	for _, opt := range opts {
		opt(p)
	}

	p.secret, err = loadSecret(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	if u := p.restore(); u != nil {
		p.Publish(u)
	}
	return p, nil
}

// Close closes the database.
func (p *Provider) Close() error {
	return p.db.Close()
}

// loadSecret returns the configured token secret, or a random one kept in
// token.key beside the database.
func loadSecret(cfg config.LocalAuthConfig) ([]byte, error) {
	if cfg.TokenSecret != "" {
		return []byte(cfg.TokenSecret), nil
	}
	if cfg.DBPath == sqlitedb.Memory || cfg.TokenPath == "" {
		return randomSecret()
	}

	keyPath := filepath.Join(filepath.Dir(cfg.DBPath), "token.key")
	if data, err := os.ReadFile(keyPath); err == nil {
		if secret, decErr := hex.DecodeString(strings.TrimSpace(string(data))); decErr == nil && len(secret) >= 32 {
			return secret, nil
		}
	}

	secret, err := randomSecret()
	if err != nil {
		return nil, err
	}
	if err := util.AtomicWriteFile(keyPath, []byte(hex.EncodeToString(secret)), 0600); err != nil {
		return nil, fmt.Errorf("failed to store token key: %w", err)
	}
	return secret, nil
}

func randomSecret() ([]byte, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate token key: %w", err)
	}
	return secret, nil
}

// =============================================================================
// ACCOUNTS
// =============================================================================

type account struct {
	uid         string
	email       string
	displayName string
	hash        []byte
	disabled    bool
}

func (p *Provider) lookup(ctx context.Context, email string) (*account, error) {
	var a account
	var disabled int
	err := p.db.QueryRowContext(ctx,
		`SELECT uid, email, display_name, password_hash, disabled FROM accounts WHERE email = ?`,
		email,
	).Scan(&a.uid, &a.email, &a.displayName, &a.hash, &disabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	a.disabled = disabled != 0
	return &a, nil
}

func (p *Provider) lookupUID(ctx context.Context, uid string) (*account, error) {
	var a account
	var disabled int
	err := p.db.QueryRowContext(ctx,
		`SELECT uid, email, display_name, password_hash, disabled FROM accounts WHERE uid = ?`,
		uid,
	).Scan(&a.uid, &a.email, &a.displayName, &a.hash, &disabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	a.disabled = disabled != 0
	return &a, nil
}

// SignUp creates an account and signs it in.
func (p *Provider) SignUp(ctx context.Context, email, password, displayName string) (*auth.User, error) {
	email = auth.NormalizeEmail(email)
	if !auth.PasswordRequirements(password).Met() {
		return nil, auth.NewError(auth.CodeWeakPassword, nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, auth.NewError(auth.CodeInternal, err)
	}

	uid := uuid.NewString()
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO accounts (uid, email, display_name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		uid, email, strings.TrimSpace(displayName), hash, p.now().Unix(),
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return nil, auth.NewError(auth.CodeEmailInUse, err)
		}
		return nil, auth.NewError(auth.CodeInternal, err)
	}

	u := &auth.User{UID: uid, Email: email, DisplayName: strings.TrimSpace(displayName)}
	p.remember(u)
	p.log.Info("account created", logging.Fields{"uid": uid})
	p.Publish(u)
	return u, nil
}

// SignIn verifies credentials.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*auth.User, error) {
	email = auth.NormalizeEmail(email)
	if !p.limiter(email).Allow() {
		p.log.Warn("sign-in rate limited", logging.Fields{"email": email})
		return nil, auth.NewError(auth.CodeTooManyRequests, nil)
	}

	a, err := p.lookup(ctx, email)
	if err != nil {
		return nil, auth.NewError(auth.CodeInternal, err)
	}
	if a == nil {
		return nil, auth.NewError(auth.CodeUserNotFound, nil)
	}
	if a.disabled {
		return nil, auth.NewError(auth.CodeUserDisabled, nil)
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(password)); err != nil {
		return nil, auth.NewError(auth.CodeWrongPassword, err)
	}

	u := &auth.User{UID: a.uid, Email: a.email, DisplayName: a.displayName}
	p.remember(u)
	p.Publish(u)
	return u, nil
}

// SignOut forgets the remembered session.
func (p *Provider) SignOut(ctx context.Context) error {
	var err error
	if p.tokenPath != "" {
		if rmErr := os.Remove(p.tokenPath); rmErr != nil && !os.IsNotExist(rmErr) {
			err = fmt.Errorf("failed to remove session token: %w", rmErr)
		}
	}
	p.Publish(nil)
	return err
}

// OnAuthStateChanged subscribes to user changes.
func (p *Provider) OnAuthStateChanged(fn func(*auth.User)) func() {
	return p.Subscribe(fn)
}

// CheckEmailRegistered reports whether an account exists for email.
func (p *Provider) CheckEmailRegistered(ctx context.Context, email string) (bool, error) {
	a, err := p.lookup(ctx, auth.NormalizeEmail(email))
	if err != nil {
		return false, auth.NewError(auth.CodeInternal, err)
	}
	return a != nil, nil
}

// SetDisabled toggles an account's disabled flag. Returns false when no
// account matches.
func (p *Provider) SetDisabled(ctx context.Context, email string, disabled bool) (bool, error) {
	flag := 0
	if disabled {
		flag = 1
	}
	res, err := p.db.ExecContext(ctx, `UPDATE accounts SET disabled = ? WHERE email = ?`, flag, auth.NormalizeEmail(email))
	if err != nil {
		return false, fmt.Errorf("failed to update account: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (p *Provider) limiter(email string) *rate.Limiter {
	p.limMu.Lock()
	defer p.limMu.Unlock()
	l, ok := p.limiters[email]
	if !ok {
		l = rate.NewLimiter(rate.Every(time.Minute/time.Duration(p.perMinute)), p.perMinute)
		p.limiters[email] = l
	}
	return l
}

// =============================================================================
// REMEMBERED SESSIONS
// =============================================================================

type sessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// remember writes a signed token for u. Failures only cost the user a prompt
// on next launch, so they are logged and dropped.
func (p *Provider) remember(u *auth.User) {
	if p.tokenPath == "" || p.ttl <= 0 {
		return
	}
	token, err := p.issueToken(u)
	if err != nil {
		p.log.Warn("failed to issue session token", logging.Fields{"error": err})
		return
	}
	u.Token = token
	if err := util.AtomicWriteFile(p.tokenPath, []byte(token), 0600); err != nil {
		p.log.Warn("failed to store session token", logging.Fields{"error": err})
	}
}

func (p *Provider) issueToken(u *auth.User) (string, error) {
	now := p.now()
	claims := sessionClaims{
		Email: u.Email,
		Name:  u.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   u.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

// restore returns the user from a valid remembered token, or nil.
func (p *Provider) restore() *auth.User {
	if p.tokenPath == "" {
		return nil
	}
	data, err := os.ReadFile(p.tokenPath)
	if err != nil {
		return nil
	}

	var claims sessionClaims
	_, err = jwt.ParseWithClaims(strings.TrimSpace(string(data)), &claims,
		func(t *jwt.Token) (interface{}, error) { return p.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		p.log.Info("discarding remembered session", logging.Fields{"reason": err.Error()})
		os.Remove(p.tokenPath)
		return nil
	}

	a, err := p.lookupUID(context.Background(), claims.Subject)
	if err != nil || a == nil || a.disabled {
		os.Remove(p.tokenPath)
		return nil
	}
	return &auth.User{UID: a.uid, Email: a.email, DisplayName: a.displayName, Token: strings.TrimSpace(string(data))}
}
