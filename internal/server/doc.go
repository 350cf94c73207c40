// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the fitness assistant backend.
//
// # Endpoints
//
//   - GET  /      - Health check
//   - POST /chat  - One chat turn: {"message", "system_prompt"?} -> {"reply"}
//   - GET  /stats - Usage counters
//
// Errors are JSON objects with an "error" field. Upstream failures add a
// "details" field with the underlying error text.
//
// # Middleware
//
//   - Request IDs (X-Request-Id is honored when the client sends one)
//   - Panic recovery
//   - Structured request logging
//   - CORS, all origins by default
//   - Per-IP rate limiting
//   - Request body size limit
//
// # Usage
//
//	srv := server.New(cfg.Server, assistant.NewClientFromConfig(cfg.Assistant), log.Logger)
//	if err := srv.ListenAndServe(ctx); err != nil {
//		log.Fatal().Err(err).Msg("server failed")
//	}
package server
