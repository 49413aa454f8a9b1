// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatly-tui/internal/app"
	"github.com/jeranaias/chatly-tui/internal/chat"
	"github.com/jeranaias/chatly-tui/internal/nav"
)

// REPL commands.
const (
	cmdHelp    = "/help"
	cmdTopic   = "/topic"
	cmdAttach  = "/attach"
	cmdDetach  = "/detach"
	cmdHistory = "/history"
	cmdQuit    = "/quit"
)

// =============================================================================
// TRANSCRIPT
// =============================================================================

// transcript prints a surface's messages as they appear, streaming the
// answer being revealed.
type transcript struct {
	w       io.Writer
	next    int // first message not fully printed
	printed int // bytes of messages[next] already written
}

func (t *transcript) skip(s chat.Surface) {
	t.next, t.printed = len(s.Messages), 0
}

func (t *transcript) flush(s chat.Surface) {
	for t.next < len(s.Messages) {
		msg := s.Messages[t.next]
		switch {
		case msg.Sender == chat.SenderUser:
		case msg.Placeholder():
			return
		case msg.RenderState == chat.RenderTyping:
			fmt.Fprint(t.w, msg.Content[min(t.printed, len(msg.Content)):])
			t.printed = len(msg.Content)
			return
		default:
			fmt.Fprintln(t.w, styleFor(msg.Kind).Render(msg.Content[min(t.printed, len(msg.Content)):]))
		}
		t.next++
		t.printed = 0
	}
}

func styleFor(k chat.Kind) lipgloss.Style {
	switch k {
	case chat.KindUploadOK:
		return successStyle
	case chat.KindUploadFailed, chat.KindAnswerFailed:
		return errorStyle
	case chat.KindIntro:
		return infoStyle
	}
	return plainStyle
}

// =============================================================================
// ASK COMMAND
// =============================================================================

type askFlags struct {
	topic   string
	file    string
	instant bool
}

func (rt *runtime) askCmd() *cobra.Command {
	var f askFlags
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Chat in line mode, or ask one question",
		Long: `Chat in line mode. With a question argument, asks it once and exits.

Interactive commands:
  /topic healthcare|education   Switch chat
  /attach PATH                  Attach a document to the next message
  /detach                       Drop the attached document
  /history                      List saved questions
  /quit                         Exit (Ctrl+D also works)`,
		Example: `  chatly ask
  chatly ask --topic education "How are grades weighted?"
  chatly ask --file notes.txt "Summarize this"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.runAsk(cmd.Context(), cmd.OutOrStdout(), f, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVarP(&f.topic, "topic", "t", string(nav.DefaultTopic), "Chat to use: healthcare or education")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "Document to upload with the first message")
	cmd.Flags().BoolVar(&f.instant, "instant", false, "Print answers at once instead of typing them out")
	return cmd
}

// asker drives one surface of the pipeline from the line prompt.
type asker struct {
	ctx     context.Context
	a       *app.App
	out     io.Writer
	surface string
	instant bool
	tr      transcript
}

func (rt *runtime) runAsk(ctx context.Context, out io.Writer, f askFlags, question string) error {
	topic := nav.Topic(strings.ToLower(f.topic))
	if !topic.Known() {
		return fmt.Errorf("unknown topic %q (want healthcare or education)", f.topic)
	}

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

	s := &asker{ctx: ctx, a: a, out: out, instant: f.instant, tr: transcript{w: out}}
	s.switchTopic(topic)

	if f.file != "" {
		if err := s.attach(f.file); err != nil {
			return err
		}
	}
	if question != "" || f.file != "" {
		return s.ask(question)
	}
	return s.repl(p)
}

func (s *asker) switchTopic(t nav.Topic) {
	s.surface = string(t)
	s.a.Nav.GoTo(t.Screen())
	cur, _ := s.a.Chat.Surface(s.surface)
	s.tr.skip(cur)
	fmt.Fprintln(s.out, titleStyle.Render(strings.ToUpper(s.surface[:1])+s.surface[1:]))
	fmt.Fprintln(s.out, infoStyle.Render(chat.TextIntro))
}

func (s *asker) attach(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if err := s.a.Chat.Attach(s.surface, chat.FileAttachment(path)); err != nil {
		return err
	}
	fmt.Fprintln(s.out, mutedStyle.Render("Attached "+info.Name()))
	return nil
}

func (s *asker) pace(d time.Duration) {
	if cur, ok := s.a.Chat.Surface(s.surface); ok {
		s.tr.flush(cur)
	}
	time.Sleep(d)
}

// ask runs one submission to completion, printing as it goes.
func (s *asker) ask(question string) error {
	var pace func(time.Duration)
	if !s.instant {
		pace = s.pace
	}
	if s.pendingAttachment() != "" {
		fmt.Fprintln(s.out, pendingStyle.Render(chat.TextUploading))
	} else if strings.TrimSpace(question) != "" {
		fmt.Fprintln(s.out, pendingStyle.Render(chat.TextSynthesizing))
	}

	_, err := s.a.Chat.Run(s.ctx, s.surface, chat.Input{Text: question}, pace)
	if cur, ok := s.a.Chat.Surface(s.surface); ok {
		s.tr.flush(cur)
	}
	if errors.Is(err, chat.ErrEmptySubmission) {
		return nil
	}
	return err
}

func (s *asker) pendingAttachment() string {
	cur, _ := s.a.Chat.Surface(s.surface)
	return cur.Attachment
}

func (s *asker) repl(p Prompter) error {
	fmt.Fprintln(s.out, mutedStyle.Render("Type /help for commands."))
	for {
		line, err := p.Line(promptStyle.Render(s.surface + "> "))
		if errors.Is(err, io.EOF) || errors.Is(err, ErrAborted) {
			fmt.Fprintln(s.out)
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			if err := s.ask(line); err != nil {
				fmt.Fprintln(s.out, errorStyle.Render("Error: ")+err.Error())
			}
			continue
		}

		done, err := s.command(line)
		if err != nil {
			fmt.Fprintln(s.out, errorStyle.Render("Error: ")+err.Error())
		}
		if done {
			return nil
		}
	}
}

func (s *asker) command(line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case cmdQuit, "/q", "/exit":
		return true, nil
	case cmdHelp, "/h":
		fmt.Fprintln(s.out, infoStyle.Render(strings.Join([]string{
			cmdTopic + " healthcare|education", cmdAttach + " PATH", cmdDetach, cmdHistory, cmdQuit,
		}, "\n")))
	case cmdTopic:
		t := nav.Topic(strings.ToLower(arg))
		if !t.Known() {
			return false, fmt.Errorf("unknown topic %q", arg)
		}
		s.switchTopic(t)
	case cmdAttach:
		if arg == "" {
			return false, errors.New("usage: /attach PATH")
		}
		return false, s.attach(arg)
	case cmdDetach:
		return false, s.a.Chat.Attach(s.surface, nil)
	case cmdHistory:
		if err := s.a.History.Load(s.ctx); err != nil {
			return false, err
		}
		printHistory(s.out, s.a.History.State(), TerminalWidth())
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, nil
}
