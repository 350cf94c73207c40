// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types shared by the conversation
// controller, the rendering layer and the one-shot CLI.
//
// # Key Types
//
//   - Role: Message role enumeration (user, assistant)
//   - Message: Immutable record with role, content and timestamp
//   - History: Append-only, ordered log of messages
//
// # Usage
//
//	var h model.History
//	_ = h.Append(model.NewUserMessage("How many sets for hypertrophy?"))
//	_ = h.Append(model.NewAssistantMessage("3 to 5 working sets per exercise."))
//	for _, msg := range h.Messages() {
//	    fmt.Printf("%s: %s\n", msg.Role.DisplayName(), msg.Content)
//	}
package model
