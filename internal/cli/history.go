// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatly-tui/internal/app"
	"github.com/jeranaias/chatly-tui/internal/history"
	"github.com/jeranaias/chatly-tui/internal/typewriter"
	"github.com/jeranaias/chatly-tui/internal/util"
)

func (rt *runtime) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List or delete saved questions",
	}

	var full bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved questions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withHistory(cmd, func(ctx context.Context, a *app.App, out io.Writer, _ Prompter) error {
				width := TerminalWidth()
				if full {
					width = 0
				}
				printHistory(out, a.History.State(), width)
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&full, "full", false, "Show whole answers")

	deleteCmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete one saved question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid id %q", args[0])
			}
			return rt.withHistory(cmd, func(ctx context.Context, a *app.App, out io.Writer, _ Prompter) error {
				if err := a.History.RequestDelete(id); err != nil {
					return commandError("history", "delete", err)
				}
				if err := a.History.Confirm(ctx, id); err != nil {
					return commandError("history", "delete", err)
				}
				fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("Deleted %d.", id)))
				return nil
			})
		},
	}

	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved question",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withHistory(cmd, func(ctx context.Context, a *app.App, out io.Writer, p Prompter) error {
				if err := a.History.RequestClear(); err != nil {
					return commandError("history", "clear", err)
				}
				if !yes {
					answer, err := p.Line(history.TextConfirmClear + " [y/N] ")
					if err != nil {
						return err
					}
					if !strings.EqualFold(strings.TrimSpace(answer), "y") {
						_ = a.History.CancelClear()
						fmt.Fprintln(out, mutedStyle.Render("Nothing deleted."))
						return nil
					}
				}
				if err := a.History.ConfirmClear(ctx); err != nil {
					return commandError("history", "clear", err)
				}
				fmt.Fprintln(out, successStyle.Render("History cleared."))
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	cmd.AddCommand(listCmd, deleteCmd, clearCmd)
	return cmd
}

// withHistory signs in, loads the history and runs fn.
func (rt *runtime) withHistory(cmd *cobra.Command, fn func(context.Context, *app.App, io.Writer, Prompter) error) error {
	ctx, out := cmd.Context(), cmd.OutOrStdout()
	a, err := rt.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	p := rt.newPrompter(out)
	defer p.Close()

	if err := rt.signIn(ctx, a, p, out); err != nil {
		return err
	}
	if err := a.History.Load(ctx); err != nil {
		return commandError("history", "load", err)
	}
	return fn(ctx, a, out, p)
}

// printHistory writes st as a list. width bounds the one-line answer
// preview; 0 prints whole answers. Backend text is shown in escaped form.
func printHistory(out io.Writer, st history.State, width int) {
	if p := st.Placeholder(); p != "" {
		fmt.Fprintln(out, mutedStyle.Render(p))
		return
	}
	for _, rec := range st.Records {
		stamp := rec.Timestamp
		if ts := rec.Time(); !ts.IsZero() {
			stamp = ts.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(out, "%s %s  %s\n",
			idStyle.Render(fmt.Sprintf("#%d", rec.ID)),
			titleStyle.Render(util.SingleLine(typewriter.Sanitize(rec.Query))),
			mutedStyle.Render(stamp))

		answer := typewriter.Sanitize(rec.Answer)
		if width > 0 {
			answer = util.TruncateWidth(util.SingleLine(answer), width-4)
		}
		fmt.Fprintln(out, "    "+strings.ReplaceAll(answer, "\n", "\n    "))
		if rec.Confidence != "" {
			fmt.Fprintln(out, "    "+infoStyle.Render("Confidence: "+typewriter.Sanitize(string(rec.Confidence))))
		}
	}
}
