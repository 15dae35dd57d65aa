// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package cli implements the cleo command line.

Commands are built with cobra. Running cleo with no subcommand opens the
full-screen consultation view; the subcommands cover one-shot questions,
a line-mode chat, session management, export, configuration and the model
list:

	cleo                          Open the consultation view
	cleo ask "is niacinamide ok with vitamin c?"
	cleo chat                     Line-mode chat with input history
	cleo sessions [list|show|rename|delete|clear|search|import]
	cleo export [session] -f md   Export a consultation
	cleo config [show|get|set|path|init]
	cleo models [--remote]

Every command that touches history opens the same application stack:
configuration (TOML with JSON fallback and CLEO_* overrides), the log file,
the session store and the conversation controller.
*/
package cli
