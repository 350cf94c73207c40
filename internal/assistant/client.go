// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/jeranaias/fitchat/internal/config"
	"github.com/jeranaias/fitchat/internal/util"
)

const (
	// DefaultModel is the upstream model used when none is configured.
	DefaultModel = "gpt-3.5-turbo"

	// DefaultMaxTokens caps the reply length.
	DefaultMaxTokens = 600

	// DefaultTemperature is the sampling temperature.
	DefaultTemperature float32 = 1.5

	// DefaultTimeout is the default timeout for upstream requests.
	DefaultTimeout = 60 * time.Second

	// FallbackReply is returned when the upstream answers without content.
	FallbackReply = "Sorry, I couldn't get a reply."
)

// Error variables for common upstream failures.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = stderrors.New("OpenAI API key not configured")

	// ErrAuthFailed indicates the API key was rejected.
	ErrAuthFailed = stderrors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = stderrors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = stderrors.New("model not found")
)

// Response is one completed upstream reply.
type Response struct {
	Content      string
	Model        string
	FinishReason string
	PromptTokens int
	ReplyTokens  int
}

// Client sends prompts to an OpenAI-compatible chat completions API.
type Client struct {
	apiKey       string
	apiConfig    openai.ClientConfig
	api          *openai.Client
	model        string
	maxTokens    int
	temperature  float32
	systemPrompt string
	logger       zerolog.Logger
}

// NewClient creates a client for the OpenAI API with the given key. A client
// without a key is valid but every request fails with ErrNotConfigured.
func NewClient(apiKey string) *Client {
	apiKey = strings.TrimSpace(apiKey)
	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}

	return &Client{
		apiKey:       apiKey,
		apiConfig:    cfg,
		api:          openai.NewClientWithConfig(cfg),
		model:        DefaultModel,
		maxTokens:    DefaultMaxTokens,
		temperature:  DefaultTemperature,
		systemPrompt: config.DefaultSystemPrompt,
		logger:       zerolog.Nop(),
	}
}

// NewClientFromConfig creates a client from the [assistant] config section.
func NewClientFromConfig(cfg config.AssistantConfig) *Client {
	c := NewClient(cfg.APIKey).
		WithModel(cfg.Model).
		WithMaxTokens(cfg.MaxTokens).
		WithTemperature(cfg.Temperature).
		WithSystemPrompt(cfg.SystemPrompt)
	if cfg.BaseURL != "" {
		c.WithBaseURL(cfg.BaseURL)
	}
	if cfg.TimeoutSecs > 0 {
		c.WithTimeout(time.Duration(cfg.TimeoutSecs) * time.Second)
	}
	return c
}

// WithBaseURL sets a custom base URL for the API.
func (c *Client) WithBaseURL(url string) *Client {
	c.apiConfig.BaseURL = strings.TrimSuffix(url, "/")
	c.api = openai.NewClientWithConfig(c.apiConfig)
	return c
}

// WithTimeout sets the request timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.apiConfig.HTTPClient = &http.Client{Timeout: timeout}
	c.api = openai.NewClientWithConfig(c.apiConfig)
	return c
}

// WithModel sets the model. Empty keeps the current one.
func (c *Client) WithModel(model string) *Client {
	if model != "" {
		c.model = model
	}
	return c
}

// WithMaxTokens sets the reply token cap. Non-positive keeps the current one.
func (c *Client) WithMaxTokens(n int) *Client {
	if n > 0 {
		c.maxTokens = n
	}
	return c
}

// WithTemperature sets the sampling temperature.
func (c *Client) WithTemperature(t float32) *Client {
	c.temperature = t
	return c
}

// WithSystemPrompt sets the prompt used when a request has none.
func (c *Client) WithSystemPrompt(prompt string) *Client {
	if strings.TrimSpace(prompt) != "" {
		c.systemPrompt = prompt
	}
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(logger zerolog.Logger) *Client {
	c.logger = logger
	return c
}

// Model returns the configured model.
func (c *Client) Model() string {
	return c.model
}

// IsConfigured returns true if the client has an API key.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Chat sends one system prompt and one user message. An empty systemPrompt
// selects the client's default prompt.
func (c *Client) Chat(ctx context.Context, message, systemPrompt string) (*Response, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if systemPrompt == "" {
		systemPrompt = c.systemPrompt
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	c.logger.Debug().
		Str("model", c.model).
		Int("max_tokens", c.maxTokens).
		Float32("temperature", c.temperature).
		Int("message_len", len(message)).
		Msg("sending chat completion request")

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	duration := time.Since(start)
	if err != nil {
		c.logger.Debug().Err(err).Dur("duration", duration).Msg("chat completion failed")
		return nil, mapError(err)
	}

	out := &Response{
		Model:        resp.Model,
		PromptTokens: resp.Usage.PromptTokens,
		ReplyTokens:  resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		out.FinishReason = string(resp.Choices[0].FinishReason)
	}

	c.logger.Debug().
		Str("model", out.Model).
		Str("finish_reason", out.FinishReason).
		Int("reply_tokens", out.ReplyTokens).
		Dur("duration", duration).
		Msg("chat completion received")
	return out, nil
}

// Reply is Chat reduced to the reply text, with FallbackReply standing in for
// an empty answer.
func (c *Client) Reply(ctx context.Context, message, systemPrompt string) (string, error) {
	resp, err := c.Chat(ctx, message, systemPrompt)
	if err != nil {
		return "", err
	}
	if resp.Content == "" {
		return FallbackReply, nil
	}
	return resp.Content, nil
}

// mapError converts upstream API errors to the package sentinels where one
// applies. Other errors are wrapped.
func mapError(err error) error {
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		msg := util.TruncateRunes(apiErr.Message, 500)
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized:
			return errors.Wrap(ErrAuthFailed, msg)
		case http.StatusNotFound:
			return errors.Wrap(ErrModelNotFound, msg)
		case http.StatusTooManyRequests:
			return errors.Wrap(ErrRateLimited, msg)
		}
		return errors.Wrapf(err, "upstream error (HTTP %d)", apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if stderrors.As(err, &reqErr) {
		switch reqErr.HTTPStatusCode {
		case http.StatusUnauthorized:
			return errors.Wrap(ErrAuthFailed, reqErr.Error())
		case http.StatusTooManyRequests:
			return errors.Wrap(ErrRateLimited, reqErr.Error())
		}
	}
	return errors.Wrap(err, "chat completion request failed")
}
