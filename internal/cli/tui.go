// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/fitchat/internal/config"
	"github.com/jeranaias/fitchat/internal/conversation"
	"github.com/jeranaias/fitchat/internal/logging"
	"github.com/jeranaias/fitchat/internal/ui/chat"
)

// ErrNotInteractive is returned when the TUI is started without a terminal.
var ErrNotInteractive = errors.New(`the chat screen needs an interactive terminal; use "fitchat ask <message>" in scripts`)

// runTUI opens the chat screen. Logs go to a file so they never draw over it.
func runTUI(cmd *cobra.Command, opts *rootOptions) error {
	if !isInteractive() {
		return ErrNotInteractive
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	logFile := cfg.Log.File
	if logFile == "" {
		if logFile, err = config.DefaultLogFile(); err != nil {
			return err
		}
	}
	logger, closer, err := logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   logFile,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	client := newExchangeClient(cfg, logger)
	ctrl := conversation.New(client,
		conversation.WithLogger(logger),
		conversation.WithContext(cmd.Context()),
	)
	defer ctrl.Close()

	logger.Info().Str("backend", client.Endpoint()).Msg("chat session started")

	screen := chat.New(ctrl, chat.Options{
		Theme:          cfg.UI.Theme,
		ShowTimestamps: cfg.UI.ShowTimestamps,
		Markdown:       cfg.UI.Markdown,
		Subtitle:       client.BaseURL(),
	})
	p := tea.NewProgram(screen,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		return errors.Wrap(err, "chat screen failed")
	}

	snap := ctrl.Snapshot()
	logger.Info().Int("messages", snap.Len()).Msg("chat session ended")
	return nil
}
