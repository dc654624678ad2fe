package main

import (
	"fmt"

	"github.com/harunnryd/stackchat/internal/conversation"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models offered by the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		opts, err := conversation.OptionsFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("failed to build backend: %w", err)
		}

		models := opts.Catalog.Models(cmd.Context())
		fmt.Fprintln(cmd.OutOrStdout(), NewTableFormatter().FormatModels(models, ""))
		return nil
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the backend is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		opts, err := conversation.OptionsFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("failed to build backend: %w", err)
		}

		if !opts.Catalog.TestConnection(cmd.Context()) {
			return fmt.Errorf("❌ %s backend at %s is not reachable", opts.Mode, opts.BaseURL)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✅ Connected to %s backend at %s\n", opts.Mode, opts.BaseURL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(pingCmd)
}
