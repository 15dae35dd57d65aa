// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/cleo/internal/attach"
	"github.com/jeranaias/cleo/internal/chat"
)

type askOptions struct {
	attachPath string
	cont       bool
	raw        bool
}

func newAskCommand(g *globalOptions) *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question",
		Long: `Ask CLEO one question and print the reply.

The question is read from the arguments, or from stdin when it is piped.
Each ask starts a new consultation unless --continue is given. On a
terminal the finished reply is rendered as Markdown; otherwise, or with
--raw, text is printed as it streams in. Ctrl+C stops the reply and keeps
what was received.`,
		Example: `  cleo ask "What does niacinamide do?"
  cleo ask --attach face.jpg "What do you notice about my skin?"
  cat routine.txt | cleo ask --raw`,
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			if question == "" && !IsTTY() {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				question = string(data)
			}

			mode := renderPlain
			if !opts.raw && IsStdoutTTY() {
				mode = renderTerminal
			}
			a, err := openApp(g, mode)
			if err != nil {
				return err
			}
			defer a.Close()

			return runAsk(cmd, a, question, opts, mode == renderPlain)
		},
	}

	cmd.Flags().StringVarP(&opts.attachPath, "attach", "a", "", "Attach a text or image file")
	cmd.Flags().BoolVarP(&opts.cont, "continue", "c", false, "Continue the most recent consultation")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "Print Markdown as it streams, without rendering")
	return cmd
}

// runAsk sends one question and writes the reply to the command output.
// live prints deltas as they arrive instead of the rendered final reply.
func runAsk(cmd *cobra.Command, a *app, question string, opts *askOptions, live bool) error {
	if opts.attachPath != "" {
		att, err := attach.DefaultLoader().Load(opts.attachPath)
		if err != nil {
			return err
		}
		a.ctrl.SetAttachment(att)
	}
	if strings.TrimSpace(question) == "" && a.ctrl.Attachment() == nil {
		return usageErrorf("nothing to ask; pass a question or pipe one on stdin")
	}

	if !opts.cont {
		if _, err := a.ctrl.NewSession(); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	printer := &replyPrinter{out: out, live: live}
	unsubscribe := a.ctrl.Subscribe(printer)
	defer unsubscribe()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	reply, err := a.ctrl.Send(ctx, chat.Input{Text: question})
	if errors.Is(err, chat.ErrNotConfigured) {
		return fmt.Errorf("%s Run 'cleo config set api_key <key>': %w", chat.ConfigMessage, err)
	}
	if err != nil {
		return err
	}
	if reply != nil && reply.Stopped {
		fmt.Fprintln(cmd.ErrOrStderr(), noticeStyle.Render("(stopped)"))
	}
	return nil
}

// =============================================================================
// REPLY PRINTER
// =============================================================================

// replyPrinter writes a reply to out as controller events arrive.
type replyPrinter struct {
	out     io.Writer
	live    bool
	printed bool
}

// Handle implements chat.Sink.
func (p *replyPrinter) Handle(e chat.Event) {
	switch e := e.(type) {
	case chat.DeltaReceived:
		if p.live {
			fmt.Fprint(p.out, e.Delta)
			p.printed = true
		}

	case chat.TurnCommitted:
		switch {
		case e.Turn.Notice:
			if p.printed {
				fmt.Fprintln(p.out)
			}
			fmt.Fprintln(p.out, noticeStyle.Render(strings.TrimPrefix(e.Turn.Text(), "**Error:** ")))
		case p.live:
			if !p.printed {
				fmt.Fprint(p.out, e.Turn.Text())
			}
			fmt.Fprintln(p.out)
		default:
			fmt.Fprintln(p.out, strings.TrimRight(e.Rendered, "\n"))
		}
		p.printed = false
	}
}
