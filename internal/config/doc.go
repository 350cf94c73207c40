// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads, validates and saves fitchat configuration.
//
// # Key Types
//
//   - Config: the complete configuration
//   - ClientConfig: backend URL and timeout for the chat client
//   - ServerConfig: listen address, CORS, rate limit for the backend
//   - AssistantConfig: upstream model, prompt and sampling settings
//   - ValidateErrors: every invalid field found by Validate
//
// # Configuration Precedence
//
// Highest first:
//   - Command-line flags (applied by the caller)
//   - Environment variables (FITCHAT_*, PORT, OPENAI_*)
//   - ~/.fitchat/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := exchange.NewClient(cfg.Client.BackendURL)
package config
