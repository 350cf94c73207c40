// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jeranaias/fitchat/internal/config"
	"github.com/jeranaias/fitchat/internal/util"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// HealthMessage is reported by GET /.
	HealthMessage = "Personal Trainer backend running"

	// ErrNoMessage is returned for a blank chat message.
	ErrNoMessage = "No message provided"

	// ErrUpstreamFailed is returned when the reply could not be produced.
	ErrUpstreamFailed = "OpenAI request failed"

	// logPreviewLen is how much of a reply goes into the log.
	logPreviewLen = 200
)

// Replier produces an assistant reply for one message. An empty systemPrompt
// selects the default persona. *assistant.Client implements it.
type Replier interface {
	Reply(ctx context.Context, message, systemPrompt string) (string, error)
}

// ============================================================================
// WIRE TYPES
// ============================================================================

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message      string `json:"message"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// ChatResponse is the success body of POST /chat.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// HealthResponse is the body of GET /.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// errorResponse is the body of every error.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ============================================================================
// SERVER STATS
// ============================================================================

// Stats tracks backend usage.
type Stats struct {
	requests  atomic.Int64
	replies   atomic.Int64
	failures  atomic.Int64
	rejected  atomic.Int64
	startTime time.Time
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	ChatRequests  int64 `json:"chat_requests"`
	Replies       int64 `json:"replies"`
	Failures      int64 `json:"failures"`
	Rejected      int64 `json:"rejected"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// NewStats creates a Stats starting now.
func NewStats() *Stats {
	return &Stats{startTime: time.Now()}
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsResponse {
	return StatsResponse{
		ChatRequests:  s.requests.Load(),
		Replies:       s.replies.Load(),
		Failures:      s.failures.Load(),
		Rejected:      s.rejected.Load(),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the fitness assistant backend.
type Server struct {
	cfg     config.ServerConfig
	replier Replier
	logger  zerolog.Logger
	stats   *Stats
	limiter *RateLimiter
	router  chi.Router

	mu     sync.Mutex
	server *http.Server
}

// New creates a server answering chat requests with replier.
func New(cfg config.ServerConfig, replier Replier, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		replier: replier,
		logger:  logger,
		stats:   NewStats(),
	}
	if cfg.RateLimitPerMinute > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimitPerMinute)
	}
	s.router = s.routes()
	return s
}

// routes builds the router and middleware stack.
func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	cors := DefaultCORSConfig()
	if len(s.cfg.AllowedOrigins) > 0 {
		cors.AllowedOrigins = s.cfg.AllowedOrigins
	}

	r.Use(chimiddleware.RequestID)
	r.Use(RecoveryMiddleware(s.logger))
	r.Use(LoggingMiddleware(s.logger))
	r.Use(CORSMiddleware(cors))
	if s.limiter != nil {
		r.Use(RateLimitMiddleware(s.limiter, s.logger))
	}
	if s.cfg.MaxBodyBytes > 0 {
		r.Use(BodyLimitMiddleware(s.cfg.MaxBodyBytes))
	}

	r.Get("/", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Post("/chat", s.handleChat)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
	})
	return r
}

// Handler returns the HTTP handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Stats returns the usage counters.
func (s *Server) Stats() *Stats {
	return s.stats
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// ============================================================================
// HANDLERS
// ============================================================================

// handleHealth handles GET /.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Message: HealthMessage})
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

// handleChat handles POST /chat. The body is parsed as JSON whatever the
// Content-Type.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.stats.requests.Add(1)
	logger := s.logger.With().Str("request_id", chimiddleware.GetReqID(r.Context())).Logger()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			s.stats.rejected.Add(1)
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Request body too large"})
			return
		}
		s.fail(w, logger, errors.Wrap(err, "failed to read request body"))
		return
	}

	var req *ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.fail(w, logger, errors.Wrap(err, "invalid JSON body"))
		return
	}
	if req == nil {
		s.fail(w, logger, errors.New("request body is not a JSON object"))
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		s.stats.rejected.Add(1)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ErrNoMessage})
		return
	}

	reply, err := s.replier.Reply(r.Context(), message, req.SystemPrompt)
	if err != nil {
		s.fail(w, logger, err)
		return
	}

	logger.Info().Msgf("User: %s", message)
	logger.Info().Msgf("Bot: %s", util.TruncateRunesNoEllipsis(reply, logPreviewLen))

	s.stats.replies.Add(1)
	writeJSON(w, http.StatusOK, ChatResponse{Reply: reply})
}

// fail logs err and answers 500 with the error text as details.
func (s *Server) fail(w http.ResponseWriter, logger zerolog.Logger, err error) {
	s.stats.failures.Add(1)
	logger.Error().Err(err).Msg("error in /chat")
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:   ErrUpstreamFailed,
		Details: err.Error(),
	})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe listens on the configured address and serves until ctx is
// canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.Addr())
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("server starting")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.stopLimiter()
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
	}

	timeout := time.Duration(s.cfg.ShutdownTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := s.Shutdown(shutdownCtx)
	<-errCh
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	s.stopLimiter()
	if srv == nil {
		return nil
	}

	stats := s.stats.Snapshot()
	s.logger.Info().
		Int64("chat_requests", stats.ChatRequests).
		Int64("failures", stats.Failures).
		Msg("server shutting down")

	if err := srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "graceful shutdown failed")
	}
	return nil
}

func (s *Server) stopLimiter() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

// ============================================================================
// HELPERS
// ============================================================================

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
