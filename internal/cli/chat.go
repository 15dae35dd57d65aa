// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/cleo/internal/attach"
	"github.com/jeranaias/cleo/internal/chat"
	"github.com/jeranaias/cleo/internal/config"
	"github.com/jeranaias/cleo/internal/model"
)

const chatPrompt = "you> "

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader reads one line of input. *liner.State satisfies it.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a line editor with history loaded from the cleo
// directory.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.Dir()
	if err != nil {
		dir = os.TempDir()
	}
	c := &ChatCLI{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
	return c
}

// Prompt implements lineReader.
func (c *ChatCLI) Prompt(prompt string) (string, error) {
	return c.line.Prompt(prompt)
}

// AppendHistory implements lineReader.
func (c *ChatCLI) AppendHistory(item string) {
	c.line.AppendHistory(item)
}

// Close saves history with 0600 permissions and restores the terminal.
func (c *ChatCLI) Close() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			c.line.WriteHistory(f)
			f.Close()
		}
	}
	c.line.Close()
}

// =============================================================================
// COMMAND
// =============================================================================

func newChatCommand(g *globalOptions) *cobra.Command {
	var fresh bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Line-mode chat with input history",
		Long: `Chat with CLEO line by line. Replies print as they stream in.

Commands inside the chat:
  /new             Start a new consultation
  /regen           Regenerate the last reply
  /attach <path>   Attach a file to the next message
  /detach          Drop the pending attachment
  /model [id]      Show or change the model
  /help            Show this list
  /quit            Leave (Ctrl+D works too)

Ctrl+C while a reply streams stops it and keeps the partial text.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(g, renderPlain)
			if err != nil {
				return err
			}
			defer a.Close()

			if fresh {
				if _, err := a.ctrl.NewSession(); err != nil {
					return err
				}
			}

			line := NewChatCLI()
			defer line.Close()

			r := &repl{
				app:    a,
				in:     line,
				out:    cmd.OutOrStdout(),
				loader: attach.DefaultLoader(),
			}
			return r.run(cmd.Context())
		},
	}
	cmd.Flags().BoolVarP(&fresh, "new", "n", false, "Start a new consultation")
	return cmd
}

// =============================================================================
// REPL
// =============================================================================

// repl runs the line-mode chat loop.
type repl struct {
	app    *app
	in     lineReader
	out    io.Writer
	loader *attach.Loader

	// interrupts delivers Ctrl+C while a reply streams. Nil installs a
	// SIGINT handler per request.
	interrupts <-chan os.Signal
}

func (r *repl) run(ctx context.Context) error {
	sess := r.app.store.Active()
	fmt.Fprintln(r.out, titleStyle.Render("CLEO")+" "+labelStyle.Render("- type /help for commands"))
	if sess != nil && !sess.IsEmpty() {
		fmt.Fprintf(r.out, "%s %s (%d messages)\n", labelStyle.Render("Continuing:"), sess.Title, sess.Len())
	}

	printer := &replyPrinter{out: r.out, live: true}
	unsubscribe := r.app.ctrl.Subscribe(printer)
	defer unsubscribe()

	for {
		input, err := r.in.Prompt(chatPrompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			// io.EOF is Ctrl+D.
			fmt.Fprintln(r.out)
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.in.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			quit, err := r.command(ctx, input)
			if err != nil {
				fmt.Fprintln(r.out, errorStyle.Render(err.Error()))
			}
			if quit {
				return nil
			}
			continue
		}

		r.send(ctx, chat.Input{Text: input})
	}
}

// send runs one request, stopping it on Ctrl+C.
func (r *repl) send(ctx context.Context, in chat.Input) {
	interrupts := r.interrupts
	if interrupts == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt)
		defer signal.Stop(ch)
		interrupts = ch
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-interrupts:
			r.app.ctrl.Stop()
		case <-done:
		}
	}()

	fmt.Fprint(r.out, promptStyle.Render("cleo> "))
	_, err := r.app.ctrl.Send(ctx, in)
	switch {
	case errors.Is(err, chat.ErrNotConfigured):
		fmt.Fprintln(r.out, errorStyle.Render(chat.ConfigMessage))
	case err != nil:
		// The notice turn has already been printed.
		r.app.logger.Debug("request failed", "err", err)
	}
}

func (r *repl) command(ctx context.Context, input string) (bool, error) {
	fields := strings.Fields(input)
	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	rest := strings.TrimSpace(strings.TrimPrefix(input, fields[0]))

	switch name {
	case "quit", "q", "exit":
		return true, nil

	case "help", "h", "?":
		fmt.Fprintln(r.out, "/new  /regen  /attach <path>  /detach  /model [id]  /quit")

	case "new", "n":
		if _, err := r.app.ctrl.NewSession(); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, labelStyle.Render("Started a new consultation."))

	case "regen", "r":
		sess := r.app.store.Active()
		if sess == nil || sess.LastUserIndex() < 0 {
			return false, errors.New("nothing to regenerate yet")
		}
		r.send(ctx, chat.Input{Regenerate: true})

	case "attach", "a":
		if rest == "" {
			return false, errors.New("usage: /attach <path>")
		}
		att, err := r.loader.Load(rest)
		if err != nil {
			return false, err
		}
		r.app.ctrl.SetAttachment(att)
		fmt.Fprintf(r.out, "%s %s (%s)\n", labelStyle.Render("Attached"), att.Name, att.Kind)

	case "detach":
		r.app.ctrl.ClearAttachment()
		fmt.Fprintln(r.out, labelStyle.Render("Attachment removed."))

	case "model", "m":
		if rest == "" {
			fmt.Fprintf(r.out, "%s %s\n", labelStyle.Render("Model:"), r.app.holder.Get().Model)
			return false, nil
		}
		id := rest
		if info, ok := model.LookupModel(rest); ok {
			id = info.ID
		}
		if err := r.app.holder.Update(func(c *config.Config) { c.Model = id }); err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "%s %s\n", labelStyle.Render("Model set to"), model.ModelDisplayName(id))

	default:
		return false, fmt.Errorf("unknown command /%s (try /help)", name)
	}
	return false, nil
}
