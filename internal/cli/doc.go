// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the fitchat command tree.
//
// # Commands
//
//   - fitchat: open the chat screen (requires a terminal)
//   - fitchat ask <message>: one turn, reply printed to stdout
//   - fitchat serve: run the HTTP backend
//   - fitchat config init|show|get|path: manage ~/.fitchat/config.toml
//   - fitchat version: print build information
//
// # Global Flags
//
//   - --config: config file path
//   - --backend-url: backend base URL, beats FITCHAT_BACKEND_URL
//   - --log-level: debug, info, warn or error
//
// # Usage
//
//	if err := cli.Execute(ctx, os.Args[1:]); err != nil {
//	    fmt.Fprintln(os.Stderr, "Error:", err)
//	    os.Exit(1)
//	}
package cli
