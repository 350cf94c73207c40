// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jeranaias/fitchat/internal/exchange"
	"github.com/jeranaias/fitchat/internal/model"
)

// Assistant placeholders appended when a turn produces no usable reply.
const (
	// NoReplyText is shown for a successful exchange without a reply.
	NoReplyText = "No reply."

	// ErrorReplyText is shown for any failed exchange.
	ErrorReplyText = "Error connecting to server."
)

// ErrClosed is returned by WaitIdle when the controller is closed first.
var ErrClosed = errors.New("conversation closed")

// Exchanger performs one network turn. *exchange.Client implements it.
type Exchanger interface {
	Exchange(ctx context.Context, message string) (exchange.Result, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger for exchange diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithContext sets the parent context of every exchange. Canceling it has the
// same effect on in-flight requests as Close.
func WithContext(ctx context.Context) Option {
	return func(c *Controller) {
		c.parent = ctx
	}
}

// Controller owns the state of one conversation.
type Controller struct {
	exchanger Exchanger
	logger    zerolog.Logger
	parent    context.Context

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	history       model.History
	pendingInput  string
	awaitingReply bool
	version       uint64
	closed        bool

	subs    map[int]chan Snapshot
	nextSub int
}

// New creates a controller with an empty history.
func New(exchanger Exchanger, opts ...Option) *Controller {
	c := &Controller{
		exchanger: exchanger,
		logger:    zerolog.Nop(),
		parent:    context.Background(),
		subs:      make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(c.parent)
	return c
}

// UpdatePendingInput replaces the unsent input text. It is allowed while a
// reply is outstanding.
func (c *Controller) UpdatePendingInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.pendingInput == text {
		return
	}
	c.pendingInput = text
	c.changedLocked()
}

// SubmitPendingInput starts a turn with the trimmed pending input.
//
// Blank input and submits made while a reply is outstanding are ignored.
// Otherwise the user message is appended, the pending input cleared and the
// awaiting flag set before this returns; the exchange runs in the background.
func (c *Controller) SubmitPendingInput() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.awaitingReply {
		return
	}
	text := strings.TrimSpace(c.pendingInput)
	if text == "" {
		return
	}

	if err := c.history.Append(model.NewUserMessage(text)); err != nil {
		c.logger.Error().Err(err).Msg("failed to append user message")
		return
	}
	c.pendingInput = ""
	c.awaitingReply = true
	c.changedLocked()

	go c.runExchange(text)
}

// runExchange performs the network call and always resolves the turn, even if
// the exchanger panics.
func (c *Controller) runExchange(text string) {
	var (
		res      exchange.Result
		err      error
		finished bool
	)
	defer func() {
		if !finished {
			if r := recover(); r != nil {
				err = fmt.Errorf("exchange panicked: %v", r)
			} else {
				err = errors.New("exchange exited without a result")
			}
		}
		c.resolveExchange(res, err)
	}()

	res, err = c.exchanger.Exchange(c.ctx, text)
	finished = true
}

// resolveExchange appends the assistant message for a settled turn and clears
// the awaiting flag. Resolutions that arrive after Close are discarded.
func (c *Controller) resolveExchange(res exchange.Result, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.logger.Debug().
			Str("request_id", res.RequestID).
			Msg("discarding exchange result for closed conversation")
		return
	}

	content := c.replyContent(res, err)
	if appendErr := c.history.Append(model.NewAssistantMessage(content)); appendErr != nil {
		c.logger.Error().Err(appendErr).Msg("failed to append assistant message")
	}
	c.awaitingReply = false
	c.changedLocked()
}

// replyContent maps an exchange outcome to the assistant text. Failure detail
// goes to the log only.
func (c *Controller) replyContent(res exchange.Result, err error) string {
	if err != nil {
		event := c.logger.Warn().
			Err(err).
			Str("request_id", res.RequestID).
			Dur("duration", res.Duration)
		var se *exchange.StatusError
		if errors.As(err, &se) {
			event = event.Int("status", se.StatusCode).Str("body", se.Body)
		}
		event.Msg("exchange failed")
		return ErrorReplyText
	}
	if !res.HasReply {
		c.logger.Info().
			Str("request_id", res.RequestID).
			Int("status", res.StatusCode).
			Msg("exchange returned no reply")
		return NoReplyText
	}
	return res.Reply
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Messages:      c.history.Messages(),
		PendingInput:  c.pendingInput,
		AwaitingReply: c.awaitingReply,
		Version:       c.version,
	}
}

// Subscribe returns a channel that receives the current snapshot immediately
// and the newest snapshot after every change. A slow reader only misses
// intermediate snapshots, never the latest one. The channel is closed by the
// returned cancel function or by Close.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if c.closed {
		ch <- c.snapshotLocked()
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// changedLocked bumps the version and delivers the new snapshot.
func (c *Controller) changedLocked() {
	c.version++
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		// Latest wins: drop an unread snapshot before sending.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// WaitIdle blocks until no reply is outstanding and returns that snapshot.
func (c *Controller) WaitIdle(ctx context.Context) (Snapshot, error) {
	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return c.Snapshot(), ErrClosed
			}
			if !snap.AwaitingReply {
				return snap, nil
			}
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		}
	}
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close ends the session. The in-flight request is canceled, its result is
// discarded and subscriber channels are closed. Later calls are no-ops.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
}
