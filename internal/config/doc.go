// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for cleo.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, validation, and live reload.
//
// # Key Types
//
//   - Config: credential, model, system prompt, user profile and the
//     storage, ui, log and client sections
//   - Holder: the current Config, swapped atomically when the file changes
//   - ValidationError / ValidateErrors: field-level validation failures
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (CLEO_*)
//   - ~/.cleo/config.toml
//   - ~/.cleo/config.json
//   - Built-in defaults
//
// The JSON file uses the same field names as the browser client's saved
// settings (apiKey, model, systemPrompt, userProfile), so an exported
// settings blob can be dropped in as config.json.
//
// # Usage
//
//	cfg, err := config.Load()
//	holder := config.NewHolder(cfg)
//	go holder.Watch(ctx, path)
//	current := holder.Get()
package config
