// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/cleo/internal/config"
)

func newConfigCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
		Long: `Show or change settings stored in ~/.cleo/config.toml.

Keys use the dotted TOML names, for example api_key, model,
user_profile, ui.theme or storage.backend. Environment variables
prefixed with CLEO_ override the file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd, g)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective settings with secrets redacted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return showConfig(cmd, g)
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one setting",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, _, err := g.loadConfig()
				if err != nil {
					return err
				}
				if isSecretKey(args[0]) {
					cfg = cfg.Redacted()
				}
				v, err := cfg.Get(args[0])
				if err != nil {
					return usageErrorf("%v", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Change one setting and save it",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, path, err := g.loadConfig()
				if err != nil {
					return err
				}
				value := strings.Join(args[1:], " ")
				if err := cfg.Set(args[0], value); err != nil {
					return usageErrorf("%v", err)
				}
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("invalid config: %w", err)
				}
				if err := saveConfigTo(cfg, path); err != nil {
					return err
				}
				shown := value
				if isSecretKey(args[0]) {
					shown = "[REDACTED]"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", args[0], shown, path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file location",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path := g.configPath
				if path == "" {
					var err error
					if path, err = config.ActivePath(); err != nil {
						return err
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
		newConfigInitCommand(g),
	)
	return cmd
}

func newConfigInitCommand(g *globalOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := g.configPath
			if path == "" {
				var err error
				if path, err = config.PathTOML(); err != nil {
					return err
				}
			}
			if _, err := os.Stat(path); err == nil && !force {
				return usageErrorf("%s already exists; pass --force to overwrite", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := saveConfigTo(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func showConfig(cmd *cobra.Command, g *globalOptions) error {
	cfg, path, err := g.loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", labelStyle.Render("# file:"), path)
	safe := cfg.Redacted()
	for _, key := range config.Keys() {
		v, err := safe.Get(key)
		if err != nil {
			continue
		}
		if key == "system_prompt" {
			v = firstLine(fmt.Sprint(v))
		}
		fmt.Fprintf(out, "%s = %v\n", key, v)
	}
	return nil
}

func isSecretKey(key string) bool {
	k := strings.ReplaceAll(strings.ToLower(key), "-", "_")
	return k == "api_key"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
