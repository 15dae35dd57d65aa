// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sort"
	"strings"
)

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// ModelInfo describes a selectable model.
type ModelInfo struct {
	// ID is the identifier sent in the request body
	ID string `json:"id" yaml:"id"`

	// Name is the human-readable display name
	Name string `json:"name" yaml:"name"`

	// Provider is the upstream vendor prefix (google, deepseek, ...)
	Provider string `json:"provider" yaml:"provider"`

	// Free marks models served without charge by the gateway
	Free bool `json:"free" yaml:"free"`

	// Default marks the model used when none is configured
	Default bool `json:"default,omitempty" yaml:"default,omitempty"`
}

// DefaultModelID is used when no model is configured.
const DefaultModelID = "deepseek/deepseek-chat"

// =============================================================================
// MODEL CATALOGUE
// =============================================================================

// Catalogue lists the models offered for selection, in display order.
var Catalogue = []ModelInfo{
	{ID: "google/gemini-2.0-flash-001", Name: "Gemini 2.0 Flash", Provider: "google"},
	{ID: "deepseek/deepseek-r1-0528-qwen3-8b:free", Name: "DeepSeek R1", Provider: "deepseek", Free: true},
	{ID: "meta-llama/llama-3.3-8b-instruct:free", Name: "Llama 3.3 8B", Provider: "meta-llama", Free: true},
	{ID: "qwen/qwen3-30b-a3b:free", Name: "Qwen3 30B", Provider: "qwen", Free: true},
	{ID: DefaultModelID, Name: "DeepSeek Chat (Default)", Provider: "deepseek", Default: true},
}

// LookupModel finds a catalogue entry by ID or case-insensitive display
// name.
func LookupModel(nameOrID string) (ModelInfo, bool) {
	key := strings.TrimSpace(nameOrID)
	for _, m := range Catalogue {
		if m.ID == key || strings.EqualFold(m.Name, key) {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// ModelDisplayName returns the display name for id, or id itself when it is
// not in the catalogue. Custom model IDs are allowed.
func ModelDisplayName(id string) string {
	if m, ok := LookupModel(id); ok {
		return m.Name
	}
	return id
}

// ProviderOf returns the vendor prefix of a model ID.
func ProviderOf(id string) string {
	if idx := strings.IndexByte(id, '/'); idx > 0 {
		return id[:idx]
	}
	return ""
}

// ModelIDs returns the catalogue IDs sorted alphabetically.
func ModelIDs() []string {
	ids := make([]string, 0, len(Catalogue))
	for _, m := range Catalogue {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids
}
