// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyUserMessage is returned when a user message with blank content is appended.
	ErrEmptyUserMessage = errors.New("user message content is empty")

	// ErrInvalidRole is returned when a message carries an unknown role.
	ErrInvalidRole = errors.New("invalid message role")
)

// History is the append-only, ordered message log of one conversation.
//
// Insertion order is display order. Messages are never edited, removed,
// reordered or deduplicated. The zero value is an empty history ready to use.
// History is not safe for concurrent use; its owner serializes access.
type History struct {
	messages []Message
}

// Append adds msg to the end of the history.
func (h *History) Append(msg Message) error {
	if !msg.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, msg.Role)
	}
	if msg.Role == RoleUser && strings.TrimSpace(msg.Content) == "" {
		return ErrEmptyUserMessage
	}
	h.messages = append(h.messages, msg)
	return nil
}

// Len returns the number of messages.
func (h *History) Len() int {
	return len(h.messages)
}

// IsEmpty returns true if there are no messages.
func (h *History) IsEmpty() bool {
	return len(h.messages) == 0
}

// Messages returns a copy of all messages in chronological order.
func (h *History) Messages() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// At returns the message at index i.
func (h *History) At(i int) (Message, bool) {
	if i < 0 || i >= len(h.messages) {
		return Message{}, false
	}
	return h.messages[i], true
}

// Last returns the most recent message.
func (h *History) Last() (Message, bool) {
	return h.At(len(h.messages) - 1)
}

// LastByRole returns the most recent message sent by role.
func (h *History) LastByRole(role Role) (Message, bool) {
	for i := len(h.messages) - 1; i >= 0; i-- {
		if h.messages[i].Role == role {
			return h.messages[i], true
		}
	}
	return Message{}, false
}

// Count returns the number of messages sent by role.
func (h *History) Count(role Role) int {
	n := 0
	for _, msg := range h.messages {
		if msg.Role == role {
			n++
		}
	}
	return n
}
