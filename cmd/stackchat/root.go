package main

import (
	"fmt"
	"os"

	"github.com/harunnryd/stackchat/internal/config"
	"github.com/harunnryd/stackchat/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "stackchat",
	Short: "Chat with a local model backend",
	Long:  `stackchat is a chat client for a Llama Stack agents service or an OpenAI-compatible inference server.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd)
		if err != nil {
			return err
		}

		logger.Setup(cfg.Server.LogLevel)
		return nil
	},
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.stackchat/config.yaml)")
	rootCmd.PersistentFlags().String("server.log_level", config.DefaultServerLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Int("server.port", config.DefaultServerPort, "server port")
	rootCmd.PersistentFlags().String("backend.mode", config.DefaultBackendMode, "backend mode (agent, inference)")
	rootCmd.PersistentFlags().String("backend.agent_base_url", config.DefaultAgentBaseURL, "Llama Stack base URL")
	rootCmd.PersistentFlags().String("backend.inference_base_url", config.DefaultInferenceBaseURL, "OpenAI-compatible inference base URL")
}
