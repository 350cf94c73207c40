// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/fitchat/internal/assistant"
	"github.com/jeranaias/fitchat/internal/logging"
	"github.com/jeranaias/fitchat/internal/server"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		envFile string
		host    string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat backend",
		Long: `Run the HTTP backend the chat client talks to.

POST /chat forwards the message to the configured OpenAI-compatible model and
returns {"reply": "..."}. OPENAI_API_KEY must be set, either in the
environment, in a .env file or in the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// .env values never replace variables that are already set. Only
			// the default file may be missing.
			if err := godotenv.Load(envFile); err != nil {
				if cmd.Flags().Changed("env-file") || !errors.Is(err, fs.ErrNotExist) {
					return errors.Wrapf(err, "failed to load %s", envFile)
				}
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.RequireAPIKey(); err != nil {
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

			replier := assistant.NewClientFromConfig(cfg.Assistant).WithLogger(logger)
			srv := server.New(cfg.Server, replier, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info().
				Str("addr", srv.Addr()).
				Str("model", replier.Model()).
				Msg("fitchat backend starting")
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.Flags().StringVar(&host, "host", "", "listen host (default from config)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides PORT)")
	return cmd
}
