// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"

	"github.com/jeranaias/cleo/internal/cloud"
	"github.com/jeranaias/cleo/internal/model"
	"github.com/jeranaias/cleo/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete cleo configuration.
type Config struct {
	// Credential and model selection
	APIKey   string `toml:"api_key" json:"apiKey" env:"API_KEY"`
	Model    string `toml:"model" json:"model" env:"MODEL"`
	Endpoint string `toml:"endpoint" json:"endpoint,omitempty" env:"ENDPOINT"`

	// Prompting
	SystemPrompt string `toml:"system_prompt" json:"systemPrompt" env:"SYSTEM_PROMPT"`
	UserProfile  string `toml:"user_profile" json:"userProfile" env:"USER_PROFILE"`

	Storage StorageConfig `toml:"storage" json:"storage" envPrefix:"STORAGE_"`
	UI      UIConfig      `toml:"ui" json:"ui" envPrefix:"UI_"`
	Log     LogConfig     `toml:"log" json:"log" envPrefix:"LOG_"`
	Client  ClientConfig  `toml:"client" json:"client" envPrefix:"CLIENT_"`
}

// StorageConfig selects where session history lives.
type StorageConfig struct {
	// Backend is "file", "sqlite" or "memory"
	Backend string `toml:"backend" json:"backend" env:"BACKEND"`
	// Path is the history file or database (default depends on backend)
	Path string `toml:"path" json:"path" env:"PATH"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the markdown theme: "dark", "light", "notty", "ascii"
	Theme string `toml:"theme" json:"theme" env:"THEME"`
	// WordWrap is the render width in cells
	WordWrap int `toml:"word_wrap" json:"word_wrap" env:"WORD_WRAP"`
}

// LogConfig controls the log file.
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `toml:"level" json:"level" env:"LEVEL"`
	// File is the log path (default: ~/.cleo/cleo.log)
	File string `toml:"file" json:"file" env:"FILE"`
}

// ClientConfig tunes the outbound client.
type ClientConfig struct {
	// RequestsPerMinute caps outbound requests (0 = unlimited)
	RequestsPerMinute int `toml:"requests_per_minute" json:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// DefaultEndpoint is the chat completions URL.
const DefaultEndpoint = cloud.DefaultEndpoint

// DefaultSystemPrompt is the consultant persona.
const DefaultSystemPrompt = `You are CLEO, a knowledgeable and friendly AI skincare consultant. Your expertise includes:

- Analyzing skin types and concerns (dry, oily, combination, sensitive, acne-prone, aging)
- Recommending skincare routines and products
- Explaining skincare ingredients and their benefits
- Providing advice on specific skin conditions
- Suggesting lifestyle changes for better skin health
- Sun protection and anti-aging guidance

Always be helpful, encouraging, and personalized in your responses. Use emojis appropriately to make conversations friendly. When recommending products, focus on ingredients rather than specific brands unless asked. Always remind users to patch test new products and consult dermatologists for serious concerns. If an image is provided, analyze it in the context of the user's query.

Be conversational and supportive - many people feel insecure about their skin, so provide reassurance along with practical advice. Format your responses using Markdown. Code blocks should be used for structured information like routines if appropriate.`

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Model:        model.DefaultModelID,
		Endpoint:     DefaultEndpoint,
		SystemPrompt: DefaultSystemPrompt,
		Storage: StorageConfig{
			Backend: "file",
		},
		UI: UIConfig{
			Theme:    "dark",
			WordWrap: 80,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the cleo directory: $CLEO_HOME, or ~/.cleo.
func Dir() (string, error) {
	if dir := os.Getenv("CLEO_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".cleo"), nil
}

// PathTOML returns the path to the TOML config file.
func PathTOML() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// PathJSON returns the path to the JSON config file.
func PathJSON() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ActivePath returns the file Load would read: the TOML file, else an
// existing JSON file, else the TOML path.
func ActivePath() (string, error) {
	tomlPath, err := PathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	jsonPath, err := PathJSON()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath, nil
	}
	return tomlPath, nil
}

// ensureSecurePermissions tightens a config file to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.cleo/config.toml, falling back to config.json and then to
// defaults. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ActivePath()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		return LoadFromPath(path)
	}
	return finish(Default())
}

// LoadFromPath loads a specific file (JSON by extension, otherwise TOML).
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if err := ensureSecurePermissions(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if strings.HasSuffix(path, ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read JSON file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode JSON file %s: %w", path, err)
		}
	} else {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode TOML file %s: %w", path, err)
		}
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.fillDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
func (c *Config) fillDefaults() error {
	defaults := Default()

	c.APIKey = strings.TrimSpace(c.APIKey)
	c.Model = strings.TrimSpace(c.Model)
	if c.Model == "" {
		c.Model = defaults.Model
	}
	if c.Endpoint == "" {
		c.Endpoint = defaults.Endpoint
	}
	if strings.TrimSpace(c.SystemPrompt) == "" {
		c.SystemPrompt = defaults.SystemPrompt
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = defaults.Storage.Backend
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.UI.WordWrap == 0 {
		c.UI.WordWrap = defaults.UI.WordWrap
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}

	if c.Storage.Path == "" || c.Log.File == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if c.Storage.Path == "" {
			name := "history.json"
			if c.Storage.Backend == "sqlite" {
				name = "history.db"
			}
			c.Storage.Path = filepath.Join(dir, name)
		}
		if c.Log.File == "" {
			c.Log.File = filepath.Join(dir, "cleo.log")
		}
	}
	return nil
}

// ApplyEnvOverrides applies CLEO_* environment variables.
func (c *Config) ApplyEnvOverrides() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: "CLEO_"}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := PathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString("# cleo configuration file\n")
	sb.WriteString("# Generated by cleo - edit with care\n\n")

	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration as JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration. A missing API key is not an error
// here; sends fail with a configuration prompt instead.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, ValidationError{Field: "model", Message: "must not be empty"})
	}

	if u, err := url.Parse(c.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "endpoint",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host/...", c.Endpoint),
		})
	}

	switch c.Storage.Backend {
	case "file", "sqlite", "memory":
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: file, sqlite, memory", c.Storage.Backend),
		})
	}

	switch c.UI.Theme {
	case "dark", "light", "notty", "ascii":
	default:
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, notty, ascii", c.UI.Theme),
		})
	}

	if c.UI.WordWrap < 20 || c.UI.WordWrap > 500 {
		errs = append(errs, ValidationError{
			Field:   "ui.word_wrap",
			Message: fmt.Sprintf("must be between 20 and 500, got %d", c.UI.WordWrap),
		})
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	if c.Client.RequestsPerMinute < 0 {
		errs = append(errs, ValidationError{Field: "client.requests_per_minute", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// IsConfigured reports whether an API key is set.
func (c *Config) IsConfigured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Keys returns every settable key in dot notation.
func Keys() []string {
	return []string{
		"api_key",
		"model",
		"endpoint",
		"system_prompt",
		"user_profile",
		"storage.backend",
		"storage.path",
		"ui.theme",
		"ui.word_wrap",
		"log.level",
		"log.file",
		"client.requests_per_minute",
	}
}

// Get retrieves a value by its TOML key path (e.g. "ui.theme").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value by its TOML key path. String values are converted to
// the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	parts := strings.Split(strings.TrimSpace(key), ".")
	if len(parts) == 0 || parts[0] == "" {
		return reflect.Value{}, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// fieldByTag finds a struct field by its toml tag, accepting - for _.
func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	name = strings.ReplaceAll(strings.ToLower(name), "-", "_")
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag, _, _ := strings.Cut(t.Field(i).Tag.Get("toml"), ",")
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(lower == "1" || lower == "true" || lower == "yes")
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Redacted returns a copy with the API key masked.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	if safe.APIKey != "" {
		safe.APIKey = "[REDACTED]"
	}
	return safe
}

// String returns a JSON rendering with the API key redacted.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}
