// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation owns the state of one chat session.
//
// A Controller holds the message history, the unsent input text and the
// awaiting-reply flag. It accepts at most one turn at a time: a submit while a
// reply is outstanding is dropped, and every accepted submit ends with exactly
// one assistant message, either the reply or a fixed placeholder.
//
// Rendering layers never poll. They Subscribe and receive immutable Snapshots,
// newest wins:
//
//	ctrl := conversation.New(exchange.NewClient(url))
//	defer ctrl.Close()
//
//	updates, unsubscribe := ctrl.Subscribe()
//	defer unsubscribe()
//
//	ctrl.UpdatePendingInput("what should I eat after a run?")
//	ctrl.SubmitPendingInput()
//	for snap := range updates {
//	    render(snap)
//	}
package conversation
