// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set at build time)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// NewRootCommand builds the cleo command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "cleo",
		Short: "Chat with CLEO, an AI skincare consultant",
		Long: `CLEO is an AI skincare consultant for the terminal.

Replies stream in as they are generated and every consultation is kept in
your local history. Attach a photo or a product list with /attach.

Quick Start:
  cleo config set api_key sk-or-...     # Save your API key
  cleo                                  # Open the consultation view
  cleo ask "Build me a gentle AM routine"
  cleo sessions                         # List past consultations`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (default: ~/.cleo/config.toml)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVarP(&opts.model, "model", "m", "", "Model ID for this run")
	flags.StringVar(&opts.backend, "backend", "", "History backend: file, sqlite or memory")

	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newAskCommand(opts),
		newChatCommand(opts),
		newSessionsCommand(opts),
		newExportCommand(opts),
		newConfigCommand(opts),
		newModelsCommand(opts),
	)
	return root
}

// Execute runs the command line and exits with a code derived from the
// error.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:")+" "+err.Error())
		os.Exit(ExitCode(err))
	}
}
