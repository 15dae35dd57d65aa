// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/cleo/internal/export"
)

type exportOptions struct {
	format     string
	outputDir  string
	open       bool
	noMetadata bool
	noNotices  bool
	stdout     bool
}

func newExportCommand(g *globalOptions) *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export [session]",
		Short: "Export a consultation to a file",
		Long: `Export a consultation as text, Markdown, JSON, YAML or HTML.

Without a session argument the active (most recent) consultation is
exported. JSON output can be read back with 'cleo sessions import'.`,
		Example: `  cleo export -f md
  cleo export 2 --format html --open
  cleo export --format json --stdout > backup.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := export.ParseFormat(opts.format)
			if err != nil {
				return usageErrorf("%v (choose from %v)", err, export.Formats())
			}

			return withApp(g, func(a *app) error {
				sess := a.store.Active()
				if len(args) == 1 {
					if sess, err = resolveSession(a.store, args[0]); err != nil {
						return err
					}
				}

				cfg := a.holder.Get()
				eo := export.DefaultOptions()
				eo.OutputDir = opts.outputDir
				eo.OpenAfterExport = opts.open
				eo.IncludeMetadata = !opts.noMetadata
				eo.IncludeNotices = !opts.noNotices
				eo.Model = cfg.Model
				if cfg.UI.Theme == "light" {
					eo.Theme = "light"
				}

				exporter, err := export.New(format, eo)
				if err != nil {
					return err
				}

				if opts.stdout {
					if sess == nil {
						return export.ErrNoSession
					}
					data, err := exporter.Export(sess)
					if err != nil {
						return err
					}
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}

				path, err := export.ExportToFile(sess, exporter, eo)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.format, "format", "f", "markdown", "Output format: text, markdown, json, yaml, html")
	flags.StringVarP(&opts.outputDir, "output", "o", ".", "Output directory")
	flags.BoolVar(&opts.open, "open", false, "Open the file after exporting")
	flags.BoolVar(&opts.noMetadata, "no-metadata", false, "Omit the metadata header")
	flags.BoolVar(&opts.noNotices, "no-notices", false, "Leave out error and stop notices")
	flags.BoolVar(&opts.stdout, "stdout", false, "Write to stdout instead of a file")
	return cmd
}
