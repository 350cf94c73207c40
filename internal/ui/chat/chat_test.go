// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/fitchat/internal/conversation"
	"github.com/jeranaias/fitchat/internal/exchange"
	"github.com/jeranaias/fitchat/internal/model"
)

// blockingExchanger never answers until its context ends, keeping the
// controller in the awaiting state.
type blockingExchanger struct{}

func (blockingExchanger) Exchange(ctx context.Context, _ string) (exchange.Result, error) {
	<-ctx.Done()
	return exchange.Result{}, ctx.Err()
}

// replyExchanger answers every turn with a fixed reply.
type replyExchanger string

func (r replyExchanger) Exchange(context.Context, string) (exchange.Result, error) {
	return exchange.Result{Reply: string(r), HasReply: true, StatusCode: 200}, nil
}

func newTestModel(t *testing.T, ex conversation.Exchanger) (Model, *conversation.Controller) {
	t.Helper()
	ctrl := conversation.New(ex)
	t.Cleanup(ctrl.Close)

	m := New(ctrl, Options{Theme: "dark", Subtitle: "http://localhost:5000"})
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	return m, ctrl
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	return update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func TestView_Header(t *testing.T) {
	m, _ := newTestModel(t, replyExchanger("ok"))

	view := m.View()
	assert.Contains(t, view, Title)
	assert.Contains(t, view, "localhost:5000")
	assert.Contains(t, view, EmptyText)
}

func TestView_LoadingBeforeSize(t *testing.T) {
	ctrl := conversation.New(replyExchanger("ok"))
	defer ctrl.Close()

	assert.Equal(t, "Loading...", New(ctrl, Options{}).View())
}

func TestTyping_UpdatesPendingInput(t *testing.T) {
	m, ctrl := newTestModel(t, replyExchanger("ok"))

	m = typeText(t, m, "squat form?")

	assert.Equal(t, "squat form?", m.input.Value())
	assert.Equal(t, "squat form?", ctrl.Snapshot().PendingInput)
}

func TestEnter_SubmitsAndClearsInput(t *testing.T) {
	m, ctrl := newTestModel(t, blockingExchanger{})

	m = typeText(t, m, "hello")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	snap := ctrl.Snapshot()
	require.Equal(t, 1, snap.Len())
	assert.Equal(t, model.RoleUser, snap.Messages[0].Role)
	assert.Equal(t, "hello", snap.Messages[0].Content)
	assert.True(t, snap.AwaitingReply)

	assert.Empty(t, m.input.Value())
	assert.True(t, m.Snapshot().AwaitingReply)
	assert.Contains(t, m.View(), ThinkingText)
}

func TestCtrlS_Submits(t *testing.T) {
	m, ctrl := newTestModel(t, blockingExchanger{})

	m = typeText(t, m, "deadlift")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})

	assert.Equal(t, 1, ctrl.Snapshot().Len())
	assert.Empty(t, m.input.Value())
}

func TestEnter_BlankIsNoop(t *testing.T) {
	m, ctrl := newTestModel(t, blockingExchanger{})

	m = typeText(t, m, "   ")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	snap := ctrl.Snapshot()
	assert.Equal(t, 0, snap.Len())
	assert.False(t, snap.AwaitingReply)
	assert.Equal(t, "   ", m.input.Value())
	assert.NotContains(t, m.View(), ThinkingText)
}

func TestEnter_WhileAwaitingKeepsInput(t *testing.T) {
	m, ctrl := newTestModel(t, blockingExchanger{})

	m = typeText(t, m, "first")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = typeText(t, m, "second")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	snap := ctrl.Snapshot()
	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, "second", snap.PendingInput)
	assert.Equal(t, "second", m.input.Value())
}

func TestNewlineKeys_DoNotSubmit(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
	}{
		{"alt+enter", tea.KeyMsg{Type: tea.KeyEnter, Alt: true}},
		{"ctrl+j", tea.KeyMsg{Type: tea.KeyCtrlJ}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ctrl := newTestModel(t, blockingExchanger{})

			m = typeText(t, m, "line one")
			m = update(t, m, tt.key)
			m = typeText(t, m, "line two")

			assert.Equal(t, "line one\nline two", m.input.Value())
			assert.Equal(t, 0, ctrl.Snapshot().Len())
			assert.Equal(t, "line one\nline two", ctrl.Snapshot().PendingInput)
		})
	}
}

func TestSnapshot_ReplyRendered(t *testing.T) {
	m, ctrl := newTestModel(t, replyExchanger("Do **3x10** goblet squats."))

	m = typeText(t, m, "legs?")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	snap, err := ctrl.WaitIdle(context.Background())
	require.NoError(t, err)
	m = update(t, m, snapshotMsg{snapshot: snap})

	view := m.View()
	assert.Contains(t, view, "legs?")
	assert.Contains(t, view, "goblet squats")
	assert.NotContains(t, view, ThinkingText)
}

func TestSnapshot_GrowthScrollsToBottom(t *testing.T) {
	m, _ := newTestModel(t, replyExchanger("ok"))

	var msgs []model.Message
	for i := 0; i < 40; i++ {
		msgs = append(msgs, model.NewUserMessage(fmt.Sprintf("message %d", i)))
	}
	m = update(t, m, snapshotMsg{snapshot: conversation.Snapshot{Messages: msgs, Version: 100}})
	require.True(t, m.viewport.AtBottom())

	m = update(t, m, tea.KeyMsg{Type: tea.KeyPgUp})
	require.False(t, m.viewport.AtBottom())

	// Same history, newer version: the user's scroll position is kept.
	m = update(t, m, snapshotMsg{snapshot: conversation.Snapshot{Messages: msgs, PendingInput: "x", Version: 101}})
	assert.False(t, m.viewport.AtBottom())

	msgs = append(msgs, model.NewAssistantMessage("reply"))
	m = update(t, m, snapshotMsg{snapshot: conversation.Snapshot{Messages: msgs, Version: 102}})
	assert.True(t, m.viewport.AtBottom())
}

func TestSnapshot_StaleVersionIgnored(t *testing.T) {
	m, _ := newTestModel(t, replyExchanger("ok"))

	fresh := conversation.Snapshot{Messages: []model.Message{model.NewUserMessage("new")}, Version: 10}
	stale := conversation.Snapshot{Version: 9}

	m = update(t, m, snapshotMsg{snapshot: fresh})
	m = update(t, m, snapshotMsg{snapshot: stale})

	assert.Equal(t, uint64(10), m.Snapshot().Version)
	assert.Equal(t, 1, m.Snapshot().Len())
}

func TestSnapshot_DuplicateVersionIgnored(t *testing.T) {
	m, _ := newTestModel(t, replyExchanger("ok"))

	first := conversation.Snapshot{Messages: []model.Message{model.NewUserMessage("kept")}, Version: 7}
	again := conversation.Snapshot{Version: 7}

	m = update(t, m, snapshotMsg{snapshot: first})
	m = update(t, m, snapshotMsg{snapshot: again})

	assert.Equal(t, 1, m.Snapshot().Len())
	assert.Contains(t, m.View(), "kept")
}

func TestCopyReply(t *testing.T) {
	m, ctrl := newTestModel(t, replyExchanger("Rest 90 seconds."))

	var copied string
	m.copy = func(s string) error {
		copied = s
		return nil
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	assert.Nil(t, cmd, "nothing to copy before a reply")

	m = typeText(t, m, "rest?")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	snap, err := ctrl.WaitIdle(context.Background())
	require.NoError(t, err)
	m = update(t, m, snapshotMsg{snapshot: snap})

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, "Rest 90 seconds.", copied)

	m = update(t, next.(Model), msg)
	assert.Contains(t, m.View(), "Reply copied")
}

func TestQuit_ClosesController(t *testing.T) {
	m, ctrl := newTestModel(t, blockingExchanger{})

	m = typeText(t, m, "bye")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, ctrl.Closed())
}

func TestSubscription_DeliversAndEnds(t *testing.T) {
	m, ctrl := newTestModel(t, replyExchanger("ok"))

	msg := waitForSnapshot(m.updates)()
	_, ok := msg.(snapshotMsg)
	require.True(t, ok, "first read yields the current snapshot")

	ctrl.Close()
	done := make(chan tea.Msg, 1)
	go func() { done <- waitForSnapshot(m.updates)() }()

	select {
	case msg := <-done:
		assert.IsType(t, sessionClosedMsg{}, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not end after Close")
	}
}

func TestErrorReply_Rendered(t *testing.T) {
	m, _ := newTestModel(t, replyExchanger("ok"))

	snap := conversation.Snapshot{
		Messages: []model.Message{
			model.NewUserMessage("hi"),
			model.NewAssistantMessage(conversation.ErrorReplyText),
		},
		Version: 5,
	}
	m = update(t, m, snapshotMsg{snapshot: snap})

	assert.Contains(t, m.View(), conversation.ErrorReplyText)
	assert.True(t, strings.Contains(m.View(), "Trainer"))
}
