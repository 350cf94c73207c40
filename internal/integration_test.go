// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package internal provides integration tests for the complete fitchat system.
//
// These tests wire the real pieces together:
// - chat controller and exchange client on the client side
// - chi backend and assistant client on the server side
// - a fake OpenAI-compatible upstream
package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/fitchat/internal/assistant"
	"github.com/jeranaias/fitchat/internal/config"
	"github.com/jeranaias/fitchat/internal/conversation"
	"github.com/jeranaias/fitchat/internal/exchange"
	"github.com/jeranaias/fitchat/internal/model"
	"github.com/jeranaias/fitchat/internal/server"
)

// =============================================================================
// TEST UTILITIES
// =============================================================================

// upstream is a fake chat completions API.
type upstream struct {
	srv      *httptest.Server
	requests atomic.Int32
	status   int
	content  string
	delay    time.Duration
}

func newUpstream(t *testing.T, status int, content string) *upstream {
	t.Helper()
	u := &upstream{status: status, content: content}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.requests.Add(1)
		if u.delay > 0 {
			time.Sleep(u.delay)
		}
		w.Header().Set("Content-Type", "application/json")
		if u.status != http.StatusOK {
			w.WriteHeader(u.status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream unavailable","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-3.5-turbo",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": u.content},
			}},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(u.srv.Close)
	return u
}

// newStack starts the backend against up and returns a controller talking
// to it.
func newStack(t *testing.T, up *upstream) (*conversation.Controller, *server.Server) {
	t.Helper()

	cfg := config.Default()
	cfg.Server.RateLimitPerMinute = 0
	cfg.Assistant.APIKey = "sk-test"
	cfg.Assistant.BaseURL = up.srv.URL + "/v1"

	replier := assistant.NewClientFromConfig(cfg.Assistant).WithLogger(zerolog.Nop())
	backend := server.New(cfg.Server, replier, zerolog.Nop())
	httpSrv := httptest.NewServer(backend.Handler())
	t.Cleanup(httpSrv.Close)

	client := exchange.NewClient(httpSrv.URL).WithTimeout(5 * time.Second)
	ctrl := conversation.New(client)
	t.Cleanup(ctrl.Close)
	return ctrl, backend
}

func turn(t *testing.T, ctrl *conversation.Controller, text string) conversation.Snapshot {
	t.Helper()
	ctrl.UpdatePendingInput(text)
	ctrl.SubmitPendingInput()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := ctrl.WaitIdle(ctx)
	require.NoError(t, err)
	return snap
}

// =============================================================================
// END-TO-END
// =============================================================================

func TestEndToEnd_Reply(t *testing.T) {
	up := newUpstream(t, http.StatusOK, "Try 3 sets of 12 push-ups.")
	ctrl, backend := newStack(t, up)

	snap := turn(t, ctrl, "chest workout?")

	require.Equal(t, 2, snap.Len())
	assert.Equal(t, model.RoleUser, snap.Messages[0].Role)
	assert.Equal(t, "chest workout?", snap.Messages[0].Content)
	assert.Equal(t, model.RoleAssistant, snap.Messages[1].Role)
	assert.Equal(t, "Try 3 sets of 12 push-ups.", snap.Messages[1].Content)
	assert.Empty(t, snap.PendingInput)
	assert.False(t, snap.AwaitingReply)

	stats := backend.Stats().Snapshot()
	assert.Equal(t, int64(1), stats.Replies)
}

func TestEndToEnd_EmptyUpstreamContentUsesFallback(t *testing.T) {
	up := newUpstream(t, http.StatusOK, "")
	ctrl, _ := newStack(t, up)

	snap := turn(t, ctrl, "hello")

	last, ok := snap.Last()
	require.True(t, ok)
	assert.Equal(t, assistant.FallbackReply, last.Content)
}

func TestEndToEnd_UpstreamFailureShowsPlaceholder(t *testing.T) {
	up := newUpstream(t, http.StatusInternalServerError, "")
	ctrl, backend := newStack(t, up)

	snap := turn(t, ctrl, "hello")

	last, ok := snap.Last()
	require.True(t, ok)
	assert.Equal(t, conversation.ErrorReplyText, last.Content)
	assert.Equal(t, int64(1), backend.Stats().Snapshot().Failures)
}

func TestEndToEnd_ConversationOrdering(t *testing.T) {
	up := newUpstream(t, http.StatusOK, "ok")
	ctrl, _ := newStack(t, up)

	for _, text := range []string{"one", "two", "three"} {
		turn(t, ctrl, text)
	}

	snap := ctrl.Snapshot()
	require.Equal(t, 6, snap.Len())
	for i, want := range []string{"one", "ok", "two", "ok", "three", "ok"} {
		assert.Equal(t, want, snap.Messages[i].Content, "message %d", i)
	}
	assert.Equal(t, int32(3), up.requests.Load())
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestConcurrentSubmit_SingleTurnInFlight(t *testing.T) {
	up := newUpstream(t, http.StatusOK, "done")
	up.delay = 100 * time.Millisecond
	ctrl, _ := newStack(t, up)

	ctrl.UpdatePendingInput("go")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctrl.SubmitPendingInput()
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := ctrl.WaitIdle(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, snap.Len(), "exactly one turn is accepted")
	assert.Equal(t, int32(1), up.requests.Load())
}

func TestConcurrentSessions(t *testing.T) {
	up := newUpstream(t, http.StatusOK, "ok")
	_, backend := newStack(t, up)
	httpSrv := httptest.NewServer(backend.Handler())
	defer httpSrv.Close()

	const sessions = 10
	var wg sync.WaitGroup
	results := make([]conversation.Snapshot, sessions)
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctrl := conversation.New(exchange.NewClient(httpSrv.URL))
			defer ctrl.Close()
			ctrl.UpdatePendingInput("hi")
			ctrl.SubmitPendingInput()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			results[i], _ = ctrl.WaitIdle(ctx)
		}(i)
	}
	wg.Wait()

	for i, snap := range results {
		require.Equal(t, 2, snap.Len(), "session %d", i)
		assert.Equal(t, "ok", snap.Messages[1].Content)
	}
}
