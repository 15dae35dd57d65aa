// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	uichat "github.com/jeranaias/cleo/internal/ui/chat"
	"github.com/jeranaias/cleo/internal/ui/styles"
)

// runTUI opens the full-screen consultation view.
func runTUI(cmd *cobra.Command, opts *globalOptions) error {
	if !IsTTY() || !IsStdoutTTY() {
		return usageErrorf("the consultation view needs a terminal; use 'cleo ask' or 'cleo chat' instead")
	}

	a, err := openApp(opts, renderTerminal)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	a.watchConfig(ctx)

	cfg := a.holder.Get()
	m := uichat.New(a.ctrl, uichat.Options{
		Theme:   styles.NewTheme(cfg.UI.Theme),
		Persist: a.saveConfig,
		Context: ctx,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	detach := uichat.Attach(ctx, p, a.ctrl)
	defer detach()

	a.logger.Info("consultation view started", "session", a.store.ActiveID())
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("consultation view: %w", err)
	}
	return nil
}
