// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export_test

import (
	"fmt"
	"time"

	"github.com/jeranaias/cleo/internal/export"
	"github.com/jeranaias/cleo/internal/model"
)

// ExampleTextExporter demonstrates the plain transcript layout.
func ExampleTextExporter() {
	at := time.Date(2025, 3, 9, 14, 5, 0, 0, time.UTC)
	sess := model.NewSession(model.NewSessionID(at), at)
	sess.Title = "Oily T-zone"
	sess.Messages = []model.Turn{
		model.NewTurn(model.RoleUser, model.Text("My forehead gets shiny by noon.")),
		model.NewAssistantTurn("Try a niacinamide serum."),
	}

	opts := export.DefaultOptions()
	opts.Location = time.UTC

	out, err := export.NewTextExporter(opts).Export(sess)
	if err != nil {
		fmt.Println("export failed:", err)
		return
	}
	fmt.Print(string(out))
	fmt.Println(export.Filename(sess.Title, ".txt"))

	// Output:
	// Title: Oily T-zone
	// Date: 3/9/2025, 2:05:00 PM
	// Model: deepseek/deepseek-chat
	//
	// You:
	// My forehead gets shiny by noon.
	//
	// ------------------------------------
	//
	// AI:
	// Try a niacinamide serum.
	//
	// ------------------------------------
	//
	// Oily_T-zone.txt
}
