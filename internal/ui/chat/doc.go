// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the bubbletea chat screen for fitchat.
//
// The screen holds no conversation state of its own. It forwards input edits
// and submissions to a *conversation.Controller and redraws from the
// snapshots the controller publishes.
//
// # Files
//
//   - model.go: Model, New, Init and the snapshot subscription command
//   - update.go: message and key handling
//   - view.go: header, scrollback, thinking line, input and footer
//   - keys.go: key bindings
//
// # Usage
//
//	ctrl := conversation.New(exchange.NewClient(url))
//	m := chat.New(ctrl, chat.Options{Theme: "auto", Markdown: true})
//	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
package chat
