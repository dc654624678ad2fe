package main

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harunnryd/stackchat/internal/config"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

//go:embed templates/config.yaml
var embeddedDefaultConfig []byte

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage the stackchat configuration file.`,
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Dump fully resolved configuration",
	Long:  `Display current configuration with all defaults applied and environment variables resolved.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		loadedCfg, err := loadConfigForCommand(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(configView(redactConfigSecrets(loadedCfg))); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return enc.Close()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration",
	Long:  `Create a default configuration file at $HOME/.stackchat/config.yaml if it doesn't exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := config.DefaultPath()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		configDir := filepath.Dir(configPath)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
		}

		out := cmd.OutOrStdout()
		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(out, "Config already exists at %s\n", configPath)
			fmt.Fprintln(out, "Use 'stackchat config view' to see current configuration.")
			return nil
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to check config file: %w", err)
		}

		defaultConfig := strings.TrimSpace(string(embeddedDefaultConfig)) + "\n"
		if err := atomic.WriteFile(configPath, bytes.NewReader([]byte(defaultConfig))); err != nil {
			return fmt.Errorf("failed to write config to %s: %w", configPath, err)
		}

		fmt.Fprintf(out, "✓ Initialized config at %s\n", configPath)
		fmt.Fprintln(out, "\nNext steps:")
		fmt.Fprintln(out, "1. Set TAVILY_SEARCH_API_KEY for the web search tool (agent mode)")
		fmt.Fprintln(out, "2. Point backend.agent_base_url or backend.inference_base_url at your server")
		fmt.Fprintln(out, "3. Run 'stackchat ping' to verify the connection")
		return nil
	},
}

func loadConfigForCommand(cmd *cobra.Command) (*config.Config, error) {
	if cfg != nil {
		return cfg, nil
	}
	return config.Load(cmd)
}

func redactConfigSecrets(in *config.Config) *config.Config {
	if in == nil {
		return nil
	}

	out := *in
	out.Agent.Tools = append([]string(nil), in.Agent.Tools...)
	out.Backend.APIKey = maskSecret(out.Backend.APIKey)
	out.Agent.SearchAPIKey = maskSecret(out.Agent.SearchAPIKey)

	return &out
}

func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
}

// configView mirrors config.Config with yaml keys matching the file layout.
func configView(c *config.Config) map[string]any {
	return map[string]any{
		"server": map[string]any{
			"port":             c.Server.Port,
			"log_level":        c.Server.LogLevel,
			"read_timeout":     c.Server.ReadTimeout,
			"write_timeout":    c.Server.WriteTimeout,
			"idle_timeout":     c.Server.IdleTimeout,
			"shutdown_timeout": c.Server.ShutdownTimeout,
		},
		"backend": map[string]any{
			"mode":               c.Backend.Mode,
			"agent_base_url":     c.Backend.AgentBaseURL,
			"inference_base_url": c.Backend.InferenceBaseURL,
			"api_key":            c.Backend.APIKey,
			"request_timeout":    c.Backend.RequestTimeout,
		},
		"agent": map[string]any{
			"tools":          c.Agent.Tools,
			"instructions":   c.Agent.Instructions,
			"session_name":   c.Agent.SessionName,
			"search_api_key": c.Agent.SearchAPIKey,
		},
		"chat": map[string]any{
			"temperature":       c.Chat.Temperature,
			"show_turn_details": c.Chat.ShowTurnDetails,
			"model_list_ttl":    c.Chat.ModelListTTL,
		},
	}
}

func init() {
	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
