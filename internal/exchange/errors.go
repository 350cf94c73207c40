// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package exchange

import (
	stderrors "errors"
	"fmt"
)

// Error kinds returned by Exchange. Every failure matches exactly one of them.
var (
	// ErrStatus indicates the backend answered with a non-2xx status.
	ErrStatus = stderrors.New("unexpected HTTP status")

	// ErrDecode indicates a 2xx response whose body was not valid JSON.
	ErrDecode = stderrors.New("response body is not valid JSON")

	// ErrNullBody indicates a 2xx response whose body was the JSON literal null.
	ErrNullBody = stderrors.New("response body is null")

	// ErrTransport indicates the request never produced a response:
	// connection refused, DNS failure, timeout or cancellation.
	ErrTransport = stderrors.New("transport failure")
)

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	StatusCode int
	// Body is the diagnostic body: compact JSON when the body parsed as JSON,
	// otherwise the raw text.
	Body string
	// JSON reports whether Body was parsed as JSON.
	JSON bool
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend error (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("backend error (HTTP %d): %s", e.StatusCode, e.Body)
}

// Is reports ErrStatus as the kind of every StatusError.
func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}

// kindError tags an underlying error with one of the package sentinels while
// keeping the underlying error reachable through Unwrap.
type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string {
	if e.err == nil {
		return e.kind.Error()
	}
	return e.kind.Error() + ": " + e.err.Error()
}

func (e *kindError) Is(target error) bool { return target == e.kind }

func (e *kindError) Unwrap() error { return e.err }
