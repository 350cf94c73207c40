// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package assistant talks to the upstream chat model for the backend.
//
// It wraps an OpenAI-compatible chat completions API. One call is one
// system-plus-user prompt and one reply; there is no conversation memory on
// the upstream side.
//
// # Usage
//
//	client := assistant.NewClient(apiKey).
//	    WithModel("gpt-3.5-turbo").
//	    WithMaxTokens(600).
//	    WithTemperature(1.5)
//	reply, err := client.Reply(ctx, "what is a good warmup?", "")
//
// API keys are never logged.
package assistant
