// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jeranaias/cleo/internal/export"
	"github.com/jeranaias/cleo/internal/model"
	"github.com/jeranaias/cleo/internal/storage"
)

func newSessionsCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session", "ls"},
		Short:   "List and manage consultations",
		Long: `List and manage saved consultations.

Sessions can be referred to by ID or by their number in 'cleo sessions'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(g, func(a *app) error {
				printSessions(cmd.OutOrStdout(), a, a.store.List())
				return nil
			})
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List consultations, most recent first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(g, func(a *app) error {
					printSessions(cmd.OutOrStdout(), a, a.store.List())
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "search <term>",
			Short: "Find consultations whose title or messages contain term",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(g, func(a *app) error {
					printSessions(cmd.OutOrStdout(), a, a.store.SearchMessages(strings.Join(args, " ")))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "show <session>",
			Short: "Print a consultation transcript",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(g, func(a *app) error {
					sess, err := resolveSession(a.store, args[0])
					if err != nil {
						return err
					}
					opts := export.DefaultOptions()
					opts.Model = a.holder.Get().Model
					data, err := export.NewTextExporter(opts).Export(sess)
					if err != nil {
						return err
					}
					_, err = cmd.OutOrStdout().Write(data)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "rename <session> <title>",
			Short: "Rename a consultation",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(g, func(a *app) error {
					sess, err := resolveSession(a.store, args[0])
					if err != nil {
						return err
					}
					title := strings.Join(args[1:], " ")
					if err := a.store.Rename(sess.ID, title); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q\n", idStyle.Render(sess.ID), title)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:     "delete <session>",
			Aliases: []string{"rm"},
			Short:   "Delete a consultation",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(g, func(a *app) error {
					sess, err := resolveSession(a.store, args[0])
					if err != nil {
						return err
					}
					if _, err := a.ctrl.DeleteSession(sess.ID); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", sess.Title)
					return nil
				})
			},
		},
		newSessionsClearCommand(g),
		&cobra.Command{
			Use:   "import <file>",
			Short: "Merge consultations from an exported history file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("read %s: %w", args[0], err)
				}
				return withApp(g, func(a *app) error {
					n, err := a.store.Import(data)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Imported %s consultation(s)\n", countStyle.Render(strconv.Itoa(n)))
					return nil
				})
			},
		},
	)
	return cmd
}

func newSessionsClearCommand(g *globalOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every consultation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return usageErrorf("this deletes every consultation; pass --yes to confirm")
			}
			return withApp(g, func(a *app) error {
				if _, err := a.ctrl.ClearHistory(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")
	return cmd
}

// =============================================================================
// HELPERS
// =============================================================================

// withApp opens the application without markdown rendering, runs fn and
// closes it.
func withApp(g *globalOptions, fn func(a *app) error) error {
	a, err := openApp(g, renderPlain)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// resolveSession finds a session by ID or by its 1-based position in the
// most-recent-first listing.
func resolveSession(store *storage.Store, ref string) (*model.Session, error) {
	if sess, err := store.Get(ref); err == nil {
		return sess, nil
	}
	if n, err := strconv.Atoi(ref); err == nil {
		list := store.List()
		if n >= 1 && n <= len(list) {
			return list[n-1], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", storage.ErrSessionNotFound, ref)
}

func printSessions(out io.Writer, a *app, sessions []*model.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(out, labelStyle.Render("No consultations found."))
		return
	}

	fmt.Fprintf(out, "%s %s\n\n", titleStyle.Render("Consultations"), countStyle.Render(fmt.Sprintf("(%d)", len(sessions))))

	active := a.store.ActiveID()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, s := range sessions {
		marker := " "
		if s.ID == active {
			marker = "*"
		}
		fmt.Fprintf(w, "%s%d\t%s\t%d msgs\t%s\t%s\n",
			marker, i+1,
			s.Title,
			s.Len(),
			s.UpdatedAt().Local().Format("2006-01-02 15:04"),
			idStyle.Render(s.ID))
	}
	w.Flush()
}
