// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jeranaias/fitchat/internal/conversation"
	"github.com/jeranaias/fitchat/internal/logging"
	"github.com/jeranaias/fitchat/internal/model"
)

var (
	// ErrBlankMessage is returned when ask is given only whitespace.
	ErrBlankMessage = errors.New("message is blank")

	// ErrTurnFailed is returned by ask --strict when the exchange failed.
	ErrTurnFailed = errors.New("exchange with the backend failed")
)

func newAskCommand(opts *rootOptions) *cobra.Command {
	var (
		strict bool
		raw    bool
	)

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one message and print the reply",
		Long: `Send one message to the backend and print the assistant reply.

The turn runs through the same conversation logic as the chat screen: a failed
exchange prints the error placeholder and still exits 0 unless --strict is set.`,
		Example: `  fitchat ask "3 exercises for lower back pain?"
  echo "$(fitchat ask --raw 'protein per kg?')" > answer.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			logger, closer, err := logging.Setup(logging.Options{
				Level:   cfg.Log.Level,
				Format:  cfg.Log.Format,
				File:    cfg.Log.File,
				Console: true,
				Stderr:  cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			defer closer.Close()

			client := newExchangeClient(cfg, logger)
			reply, err := askOnce(cmd.Context(), client, logger, strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := reply.Content
			if !raw && cfg.UI.Markdown && cmd.OutOrStdout() == os.Stdout && ColorEnabled() {
				out = renderMarkdown(out, GetTerminalWidth())
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(out, "\n"))

			if strict && reply.Content == conversation.ErrorReplyText {
				return ErrTurnFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "exit with status 1 when the exchange fails")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the reply without markdown rendering")
	return cmd
}

// askOnce runs a single turn through a fresh controller and returns the
// assistant message it produced.
func askOnce(ctx context.Context, ex conversation.Exchanger, logger zerolog.Logger, message string) (model.Message, error) {
	ctrl := conversation.New(ex,
		conversation.WithLogger(logger),
		conversation.WithContext(ctx),
	)
	defer ctrl.Close()

	ctrl.UpdatePendingInput(message)
	ctrl.SubmitPendingInput()
	// An accepted turn appends the user message before the exchange starts,
	// so history tells acceptance apart even when the reply is already in.
	if ctrl.Snapshot().Len() == 0 {
		return model.Message{}, ErrBlankMessage
	}

	snap, err := ctrl.WaitIdle(ctx)
	if err != nil {
		return model.Message{}, errors.Wrap(err, "waiting for reply")
	}
	reply, ok := snap.LastReply()
	if !ok {
		return model.Message{}, errors.New("no assistant message recorded")
	}
	return reply, nil
}

// renderMarkdown renders content for terminal display, returning it unchanged
// when rendering fails.
func renderMarkdown(content string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return rendered
}
