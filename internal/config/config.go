package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Backend BackendConfig `koanf:"backend"`
	Agent   AgentConfig   `koanf:"agent"`
	Chat    ChatConfig    `koanf:"chat"`
}

type ServerConfig struct {
	Port            int    `koanf:"port"`
	LogLevel        string `koanf:"log_level"`
	ReadTimeout     string `koanf:"read_timeout"`
	WriteTimeout    string `koanf:"write_timeout"`
	IdleTimeout     string `koanf:"idle_timeout"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

type BackendConfig struct {
	Mode             string `koanf:"mode"`
	AgentBaseURL     string `koanf:"agent_base_url"`
	InferenceBaseURL string `koanf:"inference_base_url"`
	APIKey           string `koanf:"api_key"`
	RequestTimeout   string `koanf:"request_timeout"`
}

// BaseURL returns the base URL that matches the configured mode.
func (b BackendConfig) BaseURL() string {
	if b.Mode == ModeInference {
		return b.InferenceBaseURL
	}
	return b.AgentBaseURL
}

type AgentConfig struct {
	Tools        []string `koanf:"tools"`
	Instructions string   `koanf:"instructions"`
	SessionName  string   `koanf:"session_name"`
	SearchAPIKey string   `koanf:"search_api_key"`
}

type ChatConfig struct {
	Temperature     float64 `koanf:"temperature"`
	ShowTurnDetails bool    `koanf:"show_turn_details"`
	ModelListTTL    string  `koanf:"model_list_ttl"`
}

const (
	ModeAgent     = "agent"
	ModeInference = "inference"
)

const (
	DefaultServerPort            = 8501
	DefaultServerLogLevel        = "info"
	DefaultServerReadTimeout     = "10s"
	DefaultServerWriteTimeout    = "180s"
	DefaultServerIdleTimeout     = "60s"
	DefaultServerShutdownTimeout = "5s"
	DefaultBackendMode           = ModeAgent
	DefaultAgentBaseURL          = "http://localhost:8321"
	DefaultInferenceBaseURL      = "http://localhost:11434/v1"
	DefaultInferenceAPIKey       = "ollama"
	DefaultBackendRequestTimeout = "120s"
	DefaultAgentTool             = "builtin::websearch"
	DefaultAgentInstructions     = "You are a web search assistant. Always use the provided web search tool to find the answer for the user prompt."
	DefaultAgentSessionName      = "streamlit_chat"
	DefaultChatTemperature       = 0.7
	DefaultChatShowTurnDetails   = false
	DefaultChatModelListTTL      = "30s"
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	// Hardcoded Defaults
	defaults := map[string]interface{}{
		"server.port":                DefaultServerPort,
		"server.log_level":           DefaultServerLogLevel,
		"server.read_timeout":        DefaultServerReadTimeout,
		"server.write_timeout":       DefaultServerWriteTimeout,
		"server.idle_timeout":        DefaultServerIdleTimeout,
		"server.shutdown_timeout":    DefaultServerShutdownTimeout,
		"backend.mode":               DefaultBackendMode,
		"backend.agent_base_url":     DefaultAgentBaseURL,
		"backend.inference_base_url": DefaultInferenceBaseURL,
		"backend.api_key":            DefaultInferenceAPIKey,
		"backend.request_timeout":    DefaultBackendRequestTimeout,
		"agent.tools":                []string{DefaultAgentTool},
		"agent.instructions":         DefaultAgentInstructions,
		"agent.session_name":         DefaultAgentSessionName,
		"agent.search_api_key":       "",
		"chat.temperature":           DefaultChatTemperature,
		"chat.show_turn_details":     DefaultChatShowTurnDetails,
		"chat.model_list_ttl":        DefaultChatModelListTTL,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// Config file loading
	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		expanded, err := ExpandPath(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(expanded), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		globalPath, err := DefaultPath()
		if err == nil {
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	// Environment Variables: STACKCHAT_BACKEND_AGENT_BASE_URL -> backend.agent_base_url
	k.Load(env.Provider("STACKCHAT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "STACKCHAT_")), "_", ".", 1)
	}), nil)

	// CLI Flags
	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Backend.Mode = strings.ToLower(strings.TrimSpace(cfg.Backend.Mode))
	cfg.Backend.AgentBaseURL = strings.TrimSuffix(strings.TrimSpace(cfg.Backend.AgentBaseURL), "/")
	cfg.Backend.InferenceBaseURL = strings.TrimSuffix(strings.TrimSpace(cfg.Backend.InferenceBaseURL), "/")

	// Post-Process: Inject standard Env Vars if missing
	if key := os.Getenv("TAVILY_SEARCH_API_KEY"); key != "" && cfg.Agent.SearchAPIKey == "" {
		cfg.Agent.SearchAPIKey = key
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DefaultPath returns $HOME/.stackchat/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".stackchat", "config.yaml"), nil
}
