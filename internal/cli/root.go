// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatly-tui/internal/app"
	"github.com/jeranaias/chatly-tui/internal/config"
	"github.com/jeranaias/chatly-tui/internal/logging"
	"github.com/jeranaias/chatly-tui/internal/ui/tui"
)

// Version information, set at build time.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// ROOT COMMAND
// =============================================================================

// runtime carries global flags and the loaded config to every subcommand of
// one root.
type runtime struct {
	configPath string
	verbose    bool
	guest      bool

	newPrompter func(out io.Writer) Prompter
	newApp      func(ctx context.Context, cfg *config.Config, log *logging.Logger) (*app.App, error)

	cfg *config.Config
	log *logging.Logger
}

// Option customizes NewRootCmd.
type Option func(*runtime)

// WithPrompter replaces the liner prompter, used by tests to script input.
func WithPrompter(fn func(out io.Writer) Prompter) Option {
	return func(r *runtime) { r.newPrompter = fn }
}

// WithAppOptions passes opts to app.New for every command.
func WithAppOptions(opts ...app.Option) Option {
	return func(r *runtime) {
		r.newApp = func(ctx context.Context, cfg *config.Config, log *logging.Logger) (*app.App, error) {
			return app.New(ctx, cfg, log, opts...)
		}
	}
}

// NewRootCmd builds the chatly command tree.
func NewRootCmd(opts ...Option) *cobra.Command {
	rt := &runtime{
		newPrompter: NewLinePrompter,
		newApp: func(ctx context.Context, cfg *config.Config, log *logging.Logger) (*app.App, error) {
			return app.New(ctx, cfg, log)
		},
	}
	for _, opt := range opts {
		opt(rt)
	}

	root := &cobra.Command{
		Use:   "chatly",
		Short: "Topic-scoped document chat in your terminal",
		Long: `chatly lets you upload a document and ask questions about it, in a
healthcare or education chat. Answers are typed out with their confidence
score and sources, and every question is kept in your history.

Quick Start:
  chatly                         # Full-screen client
  chatly ask                     # Line-mode chat
  chatly ask "What is a CBC?"    # One question, then exit
  chatly devserver               # Local backend on 127.0.0.1:5001`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return rt.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.runTUI(cmd.Context())
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	flags := root.PersistentFlags()
	flags.StringVarP(&rt.configPath, "config", "c", "", "Config file (default ~/.chatly/config.toml)")
	flags.BoolVarP(&rt.verbose, "verbose", "v", false, "Log at debug level")
	flags.BoolVar(&rt.guest, "guest", false, "Continue as guest instead of signing in (line-mode commands)")

	root.AddCommand(
		rt.tuiCmd(),
		rt.askCmd(),
		rt.historyCmd(),
		rt.signUpCmd(),
		rt.signOutCmd(),
		rt.devServerCmd(),
		rt.configCmd(),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("Error:"), err)
		os.Exit(ExitCode(err))
	}
}

// =============================================================================
// RUNTIME
// =============================================================================

func (rt *runtime) load() error {
	var (
		cfg *config.Config
		err error
	)
	if rt.configPath != "" {
		cfg, err = config.LoadFromPath(rt.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if rt.verbose {
		cfg.Logging.Level = "debug"
	}
	config.SetGlobal(cfg)
	rt.cfg = cfg
	return nil
}

// logger opens the log file on first use.
func (rt *runtime) logger() (*logging.Logger, error) {
	if rt.log != nil {
		return rt.log, nil
	}
	log, err := logging.New(rt.cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	rt.log = log
	return log, nil
}

func (rt *runtime) close() error {
	if rt.log == nil {
		return nil
	}
	err := rt.log.Close()
	rt.log = nil
	return err
}

// openApp assembles and starts the client. A remembered session is restored
// by Start.
func (rt *runtime) openApp(ctx context.Context) (*app.App, error) {
	log, err := rt.logger()
	if err != nil {
		return nil, err
	}
	a, err := rt.newApp(ctx, rt.cfg, log)
	if err != nil {
		return nil, err
	}
	a.Start()
	return a, nil
}

// =============================================================================
// TUI
// =============================================================================

func (rt *runtime) tuiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the full-screen client (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.runTUI(cmd.Context())
		},
	}
}

func (rt *runtime) runTUI(ctx context.Context) error {
	a, err := rt.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return tui.Run(ctx, a)
}
