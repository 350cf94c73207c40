// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jeranaias/fitchat/internal/config"
	"github.com/jeranaias/fitchat/internal/exchange"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	backendURL string
	logLevel   string
}

// NewRootCommand builds the fitchat command tree. Running it without a
// subcommand starts the chat TUI.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "fitchat",
		Short: "Chat with your fitness assistant from the terminal",
		Long: `fitchat is a terminal chat client for a fitness assistant.

Run it without arguments to open the chat screen, use "fitchat ask" for a
single question from scripts, and "fitchat serve" to run the backend.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.fitchat/config.toml)")
	flags.StringVar(&opts.backendURL, "backend-url", "", "backend base URL (overrides FITCHAT_BACKEND_URL)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newServeCommand(opts),
		newAskCommand(opts),
		newConfigCommand(opts),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// loadConfig reads the config file, applies environment overrides and then
// the command-line flags, which take precedence over both.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFromPath(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if o.backendURL != "" {
		cfg.Client.BackendURL = o.backendURL
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid flags")
	}

	config.SetGlobal(cfg)
	return cfg, nil
}

// userAgent identifies this build to the backend.
func userAgent() string {
	return "fitchat/" + Version
}

// newExchangeClient builds the backend client from config.
func newExchangeClient(cfg *config.Config, logger zerolog.Logger) *exchange.Client {
	client := exchange.NewClient(cfg.Client.BackendURL).
		WithUserAgent(userAgent()).
		WithLogger(logger)
	if cfg.Client.RequestTimeoutSecs > 0 {
		client = client.WithTimeout(time.Duration(cfg.Client.RequestTimeoutSecs) * time.Second)
	}
	return client
}
