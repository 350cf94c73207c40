// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package exchange performs a single chat turn against the fitness assistant
// backend.
//
// One call to Exchange is one HTTP POST to {base}/chat carrying
// {"message": text}. The response is classified into a Result (a reply, or a
// degraded success with no reply) or an error. Errors carry enough detail for
// diagnostics and are matched with errors.Is against the package sentinels.
//
// # Key Types
//
//   - Client: HTTP client for the /chat endpoint
//   - Result: outcome of a successful exchange
//   - StatusError: non-2xx response with its diagnostic body
//
// # Usage
//
//	client := exchange.NewClient("http://localhost:5000/").
//	    WithTimeout(30 * time.Second).
//	    WithLogger(log.Logger)
//	res, err := client.Exchange(ctx, "how many squats today?")
//	if err != nil {
//	    // errors.Is(err, exchange.ErrStatus), ErrDecode, ErrTransport, ErrNullBody
//	}
//	if res.HasReply {
//	    fmt.Println(res.Reply)
//	}
//
// No retry is performed. A failed exchange is reported once.
package exchange
