// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of events an editor save produces.
const reloadDebounce = 100 * time.Millisecond

// Holder owns the current configuration. Readers take a snapshot with Get;
// a new snapshot only affects operations that start after it is stored.
type Holder struct {
	current atomic.Pointer[Config]

	mu       sync.Mutex
	handlers []func(*Config)
	logger   *log.Logger
}

// NewHolder creates a holder seeded with cfg.
func NewHolder(cfg *Config) *Holder {
	h := &Holder{logger: log.Default()}
	if cfg == nil {
		cfg = Default()
	}
	h.current.Store(cfg.Clone())
	return h
}

// SetLogger sets the logger used for reload diagnostics.
func (h *Holder) SetLogger(l *log.Logger) {
	if l != nil {
		h.logger = l
	}
}

// Get returns the current configuration snapshot. Callers must not modify it.
func (h *Holder) Get() *Config {
	return h.current.Load()
}

// Set replaces the configuration and notifies subscribers.
func (h *Holder) Set(cfg *Config) {
	snapshot := cfg.Clone()
	h.current.Store(snapshot)

	h.mu.Lock()
	handlers := append([]func(*Config){}, h.handlers...)
	h.mu.Unlock()

	for _, fn := range handlers {
		fn(snapshot)
	}
}

// Update applies fn to a copy of the current config, validates it and
// stores the result.
func (h *Holder) Update(fn func(*Config)) error {
	next := h.Get().Clone()
	fn(next)
	if err := next.Validate(); err != nil {
		return err
	}
	h.Set(next)
	return nil
}

// OnChange registers fn to run after every Set.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, fn)
}

// Watch reloads path whenever it is written until ctx is done. The parent
// directory is watched so atomic renames are seen. Files that fail to load
// are logged and the previous configuration stays in effect.
func (h *Holder) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	target := filepath.Clean(path)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if timer == nil {
					timer = time.NewTimer(reloadDebounce)
				} else {
					timer.Reset(reloadDebounce)
				}
				fire = timer.C
			}

		case <-fire:
			fire = nil
			cfg, err := LoadFromPath(target)
			if err != nil {
				h.logger.Warn("config reload failed", "path", target, "err", err)
				continue
			}
			h.logger.Info("config reloaded", "path", target, "model", cfg.Model)
			h.Set(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Warn("config watcher error", "err", err)
		}
	}
}
