// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jeranaias/fitchat/internal/util"
)

const (
	// ChatPath is the backend endpoint, relative to the base URL.
	ChatPath = "/chat"

	// MaxResponseSize is the maximum response body read from the backend.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit

	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "fitchat"

	// maxDiagnosticLen bounds the raw-text diagnostic kept from error bodies.
	maxDiagnosticLen = 2048
)

// Shared transport so every Client reuses pooled connections.
var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        16,
	MaxIdleConnsPerHost: 4,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
}

// Result is the outcome of a successful exchange.
type Result struct {
	// Reply is the assistant text. Empty when HasReply is false.
	Reply string
	// HasReply is false for a degraded success: a 2xx JSON response that
	// carried no usable reply.
	HasReply bool
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// RequestID is the X-Request-Id sent with the request.
	RequestID string
	// Duration is the wall time from send to body read.
	Duration time.Duration
}

// chatRequest is the wire body of POST /chat.
type chatRequest struct {
	Message string `json:"message"`
}

// Client sends chat turns to the backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	logger     zerolog.Logger
}

// NewClient creates a client for the backend at baseURL. A trailing slash on
// baseURL is ignored. The client has no timeout until WithTimeout is used.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Transport: sharedTransport},
		userAgent:  DefaultUserAgent,
		logger:     zerolog.Nop(),
	}
}

// WithTimeout sets the per-request timeout. Zero disables it.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// WithUserAgent sets the User-Agent header.
func (c *Client) WithUserAgent(ua string) *Client {
	if ua != "" {
		c.userAgent = ua
	}
	return c
}

// WithLogger sets the logger used for request diagnostics.
func (c *Client) WithLogger(logger zerolog.Logger) *Client {
	c.logger = logger
	return c
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Endpoint returns the full URL of the chat endpoint.
func (c *Client) Endpoint() string {
	return c.baseURL + ChatPath
}

// Exchange sends message to the backend and classifies the response.
//
// A nil error means a 2xx response with a JSON body. Every other outcome is an
// error matching one of ErrStatus, ErrDecode, ErrNullBody or ErrTransport.
func (c *Client) Exchange(ctx context.Context, message string) (Result, error) {
	requestID := uuid.NewString()
	res := Result{RequestID: requestID}

	payload, err := json.Marshal(chatRequest{Message: message})
	if err != nil {
		return res, errors.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(payload))
	if err != nil {
		return res, &kindError{kind: ErrTransport, err: errors.Wrap(err, "failed to create request")}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-Id", requestID)

	c.logRequest(req, requestID, len(message))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		res.Duration = time.Since(start)
		return res, &kindError{kind: ErrTransport, err: errors.Wrap(err, "request failed")}
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	res.Duration = time.Since(start)
	res.StatusCode = resp.StatusCode
	c.logResponse(resp, requestID, res.Duration)
	if err != nil {
		return res, &kindError{kind: ErrTransport, err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return res, newStatusError(resp.StatusCode, body)
	}

	reply, ok, err := extractReply(body)
	if err != nil {
		return res, err
	}
	res.Reply = reply
	res.HasReply = ok
	return res, nil
}

// readResponse reads the response body up to MaxResponseSize.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, errors.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// newStatusError builds the diagnostic for a non-2xx response: JSON first,
// then raw text.
func newStatusError(status int, body []byte) *StatusError {
	se := &StatusError{StatusCode: status}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return se
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err == nil {
		se.Body = util.TruncateRunes(compact.String(), maxDiagnosticLen)
		se.JSON = true
		return se
	}
	se.Body = util.TruncateRunes(string(trimmed), maxDiagnosticLen)
	return se
}

// extractReply reads the "reply" field from a 2xx body.
//
// A non-empty string is the reply. A missing field, null, "", false or 0 is a
// degraded success. Any other value (true, other numbers, objects, arrays) is
// rendered as its JSON text. A body that is not an object has no reply field
// and is a degraded success, except the literal null which is an error.
func extractReply(body []byte) (string, bool, error) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return "", false, &kindError{kind: ErrDecode}
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return "", false, &kindError{kind: ErrNullBody}
	}
	if trimmed[0] != '{' {
		return "", false, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return "", false, &kindError{kind: ErrDecode, err: err}
	}
	raw, ok := fields["reply"]
	if !ok {
		return "", false, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", false, &kindError{kind: ErrDecode, err: err}
	}

	switch val := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return val, val != "", nil
	case bool:
		if !val {
			return "", false, nil
		}
		return "true", true, nil
	case json.Number:
		if f, err := val.Float64(); err == nil && f == 0 {
			return "", false, nil
		}
		return val.String(), true, nil
	default:
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			return "", false, &kindError{kind: ErrDecode, err: err}
		}
		return compact.String(), true, nil
	}
}

// logRequest logs an outgoing request without its body.
func (c *Client) logRequest(req *http.Request, requestID string, messageLen int) {
	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("request_id", requestID).
		Int("message_len", messageLen).
		Msg("exchange request")
}

// logResponse logs the response status and duration.
func (c *Client) logResponse(resp *http.Response, requestID string, duration time.Duration) {
	c.logger.Debug().
		Int("status", resp.StatusCode).
		Str("request_id", requestID).
		Dur("duration", duration).
		Msg("exchange response")
}
