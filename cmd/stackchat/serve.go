package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harunnryd/stackchat/internal/conversation"
	"github.com/harunnryd/stackchat/internal/web"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web chat server",
	Long:  `Serves the chat page and JSON API until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		opts, err := conversation.OptionsFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("failed to build backend: %w", err)
		}

		signals := NewSignalHandler(cmd.Context())
		signals.Start()
		defer signals.Stop()

		server := web.NewServer(cfg, conversation.NewRegistry(opts))
		if err := server.Init(signals.Context()); err != nil {
			return fmt.Errorf("failed to init server: %w", err)
		}
		if err := server.Start(signals.Context()); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}

		slog.Info("stackchat ready", "mode", opts.Mode, "backend", opts.BaseURL, "port", cfg.Server.Port)

		var serveErr error
		select {
		case <-signals.Context().Done():
		case serveErr = <-server.Done():
		}

		if err := server.Stop(context.Background()); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
		return serveErr
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
