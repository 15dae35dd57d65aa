// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/cleo/internal/chat"
	"github.com/jeranaias/cleo/internal/config"
	"github.com/jeranaias/cleo/internal/logging"
	"github.com/jeranaias/cleo/internal/render"
	"github.com/jeranaias/cleo/internal/storage"
)

// =============================================================================
// GLOBAL OPTIONS
// =============================================================================

// globalOptions holds the persistent flags.
type globalOptions struct {
	configPath string
	verbose    bool
	model      string
	backend    string
}

// loadConfig reads the configuration named by --config, or the default
// location, and applies flag overrides. It returns the file path that
// edits should be written to.
func (o *globalOptions) loadConfig() (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path = o.configPath
		err  error
	)
	if path != "" {
		cfg, err = config.LoadFromPath(path)
	} else {
		if path, err = config.ActivePath(); err != nil {
			return nil, "", err
		}
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, "", err
	}

	if o.model != "" {
		cfg.Model = o.model
	}
	if o.backend != "" {
		cfg.Storage.Backend = o.backend
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return cfg, path, nil
}

// =============================================================================
// APPLICATION STACK
// =============================================================================

// app is the wired application: config, logs, history and controller.
type app struct {
	cfgPath string
	holder  *config.Holder
	logger  *logging.Logger
	store   *storage.Store
	ctrl    *chat.Controller
}

// renderMode picks the engine used for replies.
type renderMode int

const (
	renderPlain renderMode = iota
	renderTerminal
)

// openApp loads configuration and history and builds the controller.
func openApp(opts *globalOptions, mode renderMode) (*app, error) {
	cfg, path, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log, opts.verbose)
	if err != nil {
		return nil, err
	}

	backend, err := storage.OpenBackend(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		logger.Close()
		return nil, err
	}
	store := storage.New(backend, storage.WithLogger(logger.Logger))
	if _, err := store.Open(); err != nil {
		store.Close()
		logger.Close()
		return nil, err
	}

	renderer := render.New(nil)
	if mode == renderTerminal {
		engine, err := render.NewTerminal(render.TerminalOptions{
			Theme:    cfg.UI.Theme,
			WordWrap: wrapWidth(cfg.UI.WordWrap),
		})
		if err != nil {
			logger.Warn("markdown rendering unavailable", "err", err)
		} else {
			renderer = render.New(engine)
		}
	}

	holder := config.NewHolder(cfg)
	holder.SetLogger(logger.Logger)

	ctrl := chat.New(store, holder,
		chat.WithRenderer(renderer),
		chat.WithLogger(logger.Logger),
	)

	logger.Debug("application opened",
		"config", path,
		"backend", cfg.Storage.Backend,
		"model", cfg.Model,
		"sessions", store.Len())

	return &app{
		cfgPath: path,
		holder:  holder,
		logger:  logger,
		store:   store,
		ctrl:    ctrl,
	}, nil
}

// watchConfig reloads the config file on change until ctx is done.
func (a *app) watchConfig(ctx context.Context) {
	go func() {
		if err := a.holder.Watch(ctx, a.cfgPath); err != nil {
			a.logger.Warn("config watch disabled", "path", a.cfgPath, "err", err)
		}
	}()
}

// saveConfig writes cfg to the file it was loaded from.
func (a *app) saveConfig(cfg *config.Config) error {
	return saveConfigTo(cfg, a.cfgPath)
}

func saveConfigTo(cfg *config.Config, path string) error {
	if strings.HasSuffix(path, ".json") {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}

// Close stops any request and releases the store and log file.
func (a *app) Close() error {
	a.ctrl.Stop()
	a.ctrl.Wait()
	err := a.store.Close()
	if cerr := a.logger.Close(); err == nil {
		err = cerr
	}
	return err
}
