// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/cleo/internal/cloud"
	"github.com/jeranaias/cleo/internal/model"
)

// modelsTimeout bounds the remote listing.
const modelsTimeout = 15 * time.Second

func newModelsCommand(g *globalOptions) *cobra.Command {
	var remote bool
	var filter string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List selectable models",
		Long: `List the built-in model catalogue, or with --remote the models the
gateway currently offers. Any provider/model ID can be used with --model
or 'cleo config set model'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !remote {
				printCatalogue(out, cfg.Model)
				return nil
			}

			client := cloud.NewClient(cfg.APIKey, cloud.WithEndpoint(cfg.Endpoint))
			ctx, cancel := context.WithTimeout(cmd.Context(), modelsTimeout)
			defer cancel()

			models, err := client.ListModels(ctx)
			if err != nil {
				return err
			}
			printRemote(out, models, filter)
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Query the gateway for available models")
	cmd.Flags().StringVar(&filter, "filter", "", "Only show remote models whose ID contains this text")
	return cmd
}

func printCatalogue(out io.Writer, current string) {
	fmt.Fprintln(out, titleStyle.Render("Models"))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, m := range model.Catalogue {
		marker := " "
		if m.ID == current {
			marker = "*"
		}
		var tags []string
		if m.Free {
			tags = append(tags, "free")
		}
		if m.Default {
			tags = append(tags, "default")
		}
		fmt.Fprintf(w, "%s %s\t%s\t%s\n", marker, m.Name, idStyle.Render(m.ID), strings.Join(tags, ","))
	}
	w.Flush()
	if _, ok := model.LookupModel(current); !ok {
		fmt.Fprintf(out, "* %s (custom)\n", current)
	}
}

func printRemote(out io.Writer, models []cloud.RemoteModel, filter string) {
	filter = strings.ToLower(filter)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	n := 0
	for _, m := range models {
		if filter != "" && !strings.Contains(strings.ToLower(m.ID), filter) {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\n", m.ID, m.Name, m.ContextLength)
		n++
	}
	w.Flush()
	fmt.Fprintf(out, "%s model(s)\n", countStyle.Render(fmt.Sprint(n)))
}
