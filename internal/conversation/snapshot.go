// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import "github.com/jeranaias/fitchat/internal/model"

// Snapshot is an immutable copy of the conversation state.
type Snapshot struct {
	// Messages is the history in display order. The slice is owned by the
	// snapshot; the controller never writes to it.
	Messages []model.Message

	// PendingInput is the unsent input text.
	PendingInput string

	// AwaitingReply is true while a turn is in flight.
	AwaitingReply bool

	// Version increases by one on every state change.
	Version uint64
}

// Len returns the number of messages.
func (s Snapshot) Len() int {
	return len(s.Messages)
}

// Last returns the newest message.
func (s Snapshot) Last() (model.Message, bool) {
	if len(s.Messages) == 0 {
		return model.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// LastReply returns the newest assistant message.
func (s Snapshot) LastReply() (model.Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == model.RoleAssistant {
			return s.Messages[i], true
		}
	}
	return model.Message{}, false
}

// Grew reports whether s has more messages than prev. Rendering layers use it
// to scroll to the newest message.
func (s Snapshot) Grew(prev Snapshot) bool {
	return len(s.Messages) > len(prev.Messages)
}
