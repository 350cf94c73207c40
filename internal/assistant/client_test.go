// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/fitchat/internal/config"
)

// completionRequest mirrors the fields the fake upstream inspects.
type completionRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

// newUpstream starts a fake chat completions API. The handler gets the
// decoded request; captured holds the last one.
func newUpstream(t *testing.T, status int, body string) (*httptest.Server, *completionRequest) {
	t.Helper()
	captured := &completionRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(captured)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

const okBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"model": "gpt-3.5-turbo-0125",
	"choices": [{
		"index": 0,
		"message": {"role": "assistant", "content": "Warm up for 5 minutes."},
		"finish_reason": "stop"
	}],
	"usage": {"prompt_tokens": 40, "completion_tokens": 7, "total_tokens": 47}
}`

func TestChat_SendsPromptAndSampling(t *testing.T) {
	srv, captured := newUpstream(t, http.StatusOK, okBody)

	client := NewClient("sk-test").WithBaseURL(srv.URL + "/v1/")
	resp, err := client.Chat(context.Background(), "warmup?", "")
	require.NoError(t, err)

	assert.Equal(t, "Warm up for 5 minutes.", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 7, resp.ReplyTokens)

	assert.Equal(t, DefaultModel, captured.Model)
	assert.Equal(t, DefaultMaxTokens, captured.MaxTokens)
	assert.InDelta(t, 1.5, captured.Temperature, 0.001)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, config.DefaultSystemPrompt, captured.Messages[0].Content)
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Equal(t, "warmup?", captured.Messages[1].Content)
}

func TestChat_CustomSystemPrompt(t *testing.T) {
	srv, captured := newUpstream(t, http.StatusOK, okBody)

	client := NewClient("sk-test").WithBaseURL(srv.URL + "/v1").WithModel("gpt-4o-mini")
	_, err := client.Chat(context.Background(), "hi", "You are a yoga coach.")
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", captured.Model)
	assert.Equal(t, "You are a yoga coach.", captured.Messages[0].Content)
}

func TestReply_Fallback(t *testing.T) {
	testCases := map[string]string{
		"empty content": `{"choices":[{"message":{"role":"assistant","content":""}}]}`,
		"no choices":    `{"choices":[]}`,
	}
	for name, body := range testCases {
		t.Run(name, func(t *testing.T) {
			srv, _ := newUpstream(t, http.StatusOK, body)
			reply, err := NewClient("sk-test").WithBaseURL(srv.URL+"/v1").Reply(context.Background(), "hi", "")
			require.NoError(t, err)
			assert.Equal(t, FallbackReply, reply)
		})
	}
}

func TestChat_NotConfigured(t *testing.T) {
	_, err := NewClient("  ").Chat(context.Background(), "hi", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, NewClient("").IsConfigured())
}

func TestChat_ErrorMapping(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		target error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrAuthFailed},
		{"model missing", http.StatusNotFound, ErrModelNotFound},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newUpstream(t, tc.status, `{"error":{"message":"nope","type":"invalid_request_error"}}`)
			_, err := NewClient("sk-test").WithBaseURL(srv.URL+"/v1").Chat(context.Background(), "hi", "")
			assert.ErrorIs(t, err, tc.target)
		})
	}

	t.Run("server error", func(t *testing.T) {
		srv, _ := newUpstream(t, http.StatusInternalServerError, `{"error":{"message":"overloaded","type":"server_error"}}`)
		_, err := NewClient("sk-test").WithBaseURL(srv.URL+"/v1").Chat(context.Background(), "hi", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 500")
	})
}

func TestChat_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient("sk-test").WithBaseURL(srv.URL + "/v1").WithTimeout(50 * time.Millisecond)
	_, err := client.Chat(context.Background(), "hi", "")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotConfigured))
}

func TestNewClientFromConfig(t *testing.T) {
	srv, captured := newUpstream(t, http.StatusOK, okBody)

	cfg := config.Default().Assistant
	cfg.APIKey = "sk-test"
	cfg.BaseURL = srv.URL + "/v1"
	cfg.Model = "gpt-4o"
	cfg.MaxTokens = 128
	cfg.Temperature = 0.7
	cfg.SystemPrompt = "Be brief."

	client := NewClientFromConfig(cfg)
	assert.Equal(t, "gpt-4o", client.Model())

	_, err := client.Chat(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, 128, captured.MaxTokens)
	assert.InDelta(t, 0.7, captured.Temperature, 0.001)
	assert.Equal(t, "Be brief.", captured.Messages[0].Content)
}
