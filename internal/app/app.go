// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app wires the chatly core into one object the adapters drive.
//
// New builds the session store, auth provider and gate, navigator, chat
// pipeline, history view and settings store from a Config, and connects the
// gate's userChanged signal to every user-scoped component.
//
// # Usage
//
//	a, err := app.New(ctx, cfg, log)
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//	a.Start()
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jeranaias/chatly-tui/internal/auth"
	"github.com/jeranaias/chatly-tui/internal/auth/local"
	"github.com/jeranaias/chatly-tui/internal/auth/remote"
	"github.com/jeranaias/chatly-tui/internal/backend"
	"github.com/jeranaias/chatly-tui/internal/chat"
	"github.com/jeranaias/chatly-tui/internal/config"
	"github.com/jeranaias/chatly-tui/internal/history"
	"github.com/jeranaias/chatly-tui/internal/logging"
	"github.com/jeranaias/chatly-tui/internal/nav"
	"github.com/jeranaias/chatly-tui/internal/session"
	"github.com/jeranaias/chatly-tui/internal/settings"
)

// Backend is the remote API the app needs.
type Backend interface {
	chat.Backend
	history.Store
}

// App is the assembled client.
type App struct {
	Config   *config.Config
	Log      *logging.Logger
	Session  *session.Store
	Provider auth.Provider
	Gate     *auth.Gate
	Nav      *nav.Navigator
	Chat     *chat.Pipeline
	History  *history.View
	Settings *settings.Store
	Backend  Backend

	mu            sync.Mutex
	historyLoader func()
	closers       []io.Closer
}

// Option customizes New.
type Option func(*options)

type options struct {
	provider auth.Provider
	backend  Backend
}

// WithProvider uses p instead of the configured auth provider.
func WithProvider(p auth.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithBackend uses b instead of an HTTP client for cfg.Backend.
func WithBackend(b Backend) Option {
	return func(o *options) { o.backend = b }
}

// New assembles the app. ctx bounds provider setup (JWKS fetch).
func New(ctx context.Context, cfg *config.Config, log *logging.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if log == nil {
		log = logging.Nop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Log: log, Session: session.NewStore()}

	if o.provider == nil {
		p, closer, err := NewProvider(ctx, cfg.Auth, log)
		if err != nil {
			return nil, err
		}
		o.provider = p
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
	}
	a.Provider = o.provider

	if o.backend == nil {
		o.backend = backend.New(cfg.Backend, backend.WithLogger(log))
	}
	a.Backend = o.backend

	st, err := settings.Open(cfg.UI.SettingsPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open settings: %w", err)
	}
	a.Settings = st

	a.Gate = auth.NewGate(a.Provider, a.Session, auth.GateConfig{AllowGuest: cfg.Auth.AllowGuest, Logger: log})
	a.Nav = nav.New(a.Gate, cfg.Nav.LoadingDwell())

	surfaces := make([]string, 0, 2)
	for _, t := range nav.Topics() {
		surfaces = append(surfaces, string(t))
	}
	a.Chat = chat.New(a.Gate, a.Session, a.Backend, chat.Options{
		UploadEnabled:  cfg.Chat.UploadEnabled,
		TypewriterRate: cfg.Chat.TypewriterSpeed(),
		Logger:         log,
	}, surfaces...)
	a.History = history.New(a.Gate, a.Session, a.Backend, log)

	a.historyLoader = func() {
		_ = a.History.Load(context.Background())
	}
	a.Gate.OnUserChanged(a.userChanged)
	a.Nav.OnEnter(a.entered)
	return a, nil
}

// NewProvider builds the provider named by cfg.Provider. The closer, when
// non-nil, must be closed on shutdown.
func NewProvider(ctx context.Context, cfg config.AuthConfig, log *logging.Logger) (auth.Provider, io.Closer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "local":
		p, err := local.Open(cfg.Local, local.WithLogger(log))
		if err != nil {
			return nil, nil, fmt.Errorf("open local accounts: %w", err)
		}
		return p, p, nil
	case "remote":
		ropts := []remote.Option{remote.WithLogger(log)}
		if cfg.Remote.JWKSURL != "" {
			v, err := remote.NewJWKSVerifier(ctx, cfg.Remote.JWKSURL)
			if err != nil {
				return nil, nil, fmt.Errorf("load signing keys: %w", err)
			}
			ropts = append(ropts, remote.WithVerifier(v))
		}
		return remote.New(cfg.Remote, ropts...), nil, nil
	case "memory":
		return auth.NewMemoryProvider(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown auth provider %q", cfg.Provider)
	}
}

// Start subscribes the gate to the provider, which may restore a session.
func (a *App) Start() {
	a.Gate.Start()
}

// Close stops the gate and releases the provider.
func (a *App) Close() error {
	if a.Gate != nil {
		a.Gate.Stop()
	}
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// SetHistoryLoader replaces what runs when the history screen is entered.
// The default loads synchronously; the TUI swaps in an async command.
func (a *App) SetHistoryLoader(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.historyLoader = fn
}

// Theme returns the configured theme override, else the saved or detected one.
func (a *App) Theme() settings.Theme {
	switch t := settings.Theme(strings.ToLower(a.Config.UI.Theme)); t {
	case settings.ThemeDark, settings.ThemeLight:
		return t
	}
	return a.Settings.Get().ThemeOrDetect()
}

func (a *App) entered(id nav.ScreenID) {
	if id != nav.ScreenHistory {
		return
	}
	a.mu.Lock()
	load := a.historyLoader
	a.mu.Unlock()
	if load != nil {
		load()
	}
}

// userChanged clears user-scoped state on every session transition.
func (a *App) userChanged(uid string, signedIn bool) {
	a.Chat.Reset()
	a.History.Reset()
	if signedIn {
		a.Nav.ForceHome()
	} else {
		a.Nav.Reset()
	}
	a.Log.Info("user changed", logging.Fields{"user_id": uid, "signed_in": signedIn})
}
