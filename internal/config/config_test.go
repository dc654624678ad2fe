package config

import (
	"os"
	"path/filepath"
	"testing"

	chatErrors "github.com/harunnryd/stackchat/internal/errors"

	"github.com/spf13/cobra"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TAVILY_SEARCH_API_KEY", "")
	for _, key := range []string{
		"STACKCHAT_BACKEND_MODE",
		"STACKCHAT_BACKEND_AGENT_BASE_URL",
		"STACKCHAT_CHAT_TEMPERATURE",
		"STACKCHAT_SERVER_PORT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	// We pass nil for cmd to skip flags
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != DefaultServerPort {
		t.Errorf("Expected default port %d, got %d", DefaultServerPort, cfg.Server.Port)
	}
	if cfg.Backend.Mode != ModeAgent {
		t.Errorf("Expected default mode %s, got %s", ModeAgent, cfg.Backend.Mode)
	}
	if cfg.Backend.BaseURL() != DefaultAgentBaseURL {
		t.Errorf("Expected agent base url %s, got %s", DefaultAgentBaseURL, cfg.Backend.BaseURL())
	}
	if cfg.Backend.APIKey != DefaultInferenceAPIKey {
		t.Errorf("Expected default api key %s, got %s", DefaultInferenceAPIKey, cfg.Backend.APIKey)
	}
	if len(cfg.Agent.Tools) != 1 || cfg.Agent.Tools[0] != DefaultAgentTool {
		t.Errorf("Expected default tools [%s], got %v", DefaultAgentTool, cfg.Agent.Tools)
	}
	if cfg.Agent.SessionName != DefaultAgentSessionName {
		t.Errorf("Expected default session name %s, got %s", DefaultAgentSessionName, cfg.Agent.SessionName)
	}
	if cfg.Chat.Temperature != DefaultChatTemperature {
		t.Errorf("Expected default temperature %.1f, got %.1f", DefaultChatTemperature, cfg.Chat.Temperature)
	}
	if cfg.Chat.ModelListTTL != DefaultChatModelListTTL {
		t.Errorf("Expected default model list ttl %s, got %s", DefaultChatModelListTTL, cfg.Chat.ModelListTTL)
	}
	if cfg.Chat.ShowTurnDetails {
		t.Errorf("Expected turn details hidden by default")
	}
}

func TestLoadWithConfigFlag(t *testing.T) {
	clearEnv(t)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
backend:
  mode: inference
  inference_base_url: http://127.0.0.1:9999/v1/
chat:
  temperature: 0.2
  show_turn_details: true
`)
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "config file path")
	if err := cmd.Flags().Set("config", configPath); err != nil {
		t.Fatalf("Failed to set flag: %v", err)
	}

	cfg, err := Load(cmd)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Backend.Mode != ModeInference {
		t.Errorf("Expected mode %s, got %s", ModeInference, cfg.Backend.Mode)
	}
	if cfg.Backend.BaseURL() != "http://127.0.0.1:9999/v1" {
		t.Errorf("Expected trimmed inference url, got %s", cfg.Backend.BaseURL())
	}
	if cfg.Chat.Temperature != 0.2 {
		t.Errorf("Expected temperature 0.2, got %.2f", cfg.Chat.Temperature)
	}
	if !cfg.Chat.ShowTurnDetails {
		t.Errorf("Expected show_turn_details true")
	}
}

func TestLoadWithMissingConfigFlagReturnsError(t *testing.T) {
	clearEnv(t)

	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "config file path")
	if err := cmd.Flags().Set("config", filepath.Join(t.TempDir(), "missing.yaml")); err != nil {
		t.Fatalf("Failed to set flag: %v", err)
	}

	if _, err := Load(cmd); err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("STACKCHAT_BACKEND_AGENT_BASE_URL", "http://stack.internal:8321")
	t.Setenv("STACKCHAT_SERVER_PORT", "9000")
	t.Setenv("TAVILY_SEARCH_API_KEY", "tvly-test")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Backend.AgentBaseURL != "http://stack.internal:8321" {
		t.Errorf("Expected env base url, got %s", cfg.Backend.AgentBaseURL)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Expected env port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Agent.SearchAPIKey != "tvly-test" {
		t.Errorf("Expected injected search key, got %q", cfg.Agent.SearchAPIKey)
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("STACKCHAT_BACKEND_MODE", "agent")

	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "config file path")
	cmd.Flags().String("backend.mode", DefaultBackendMode, "backend mode")
	if err := cmd.Flags().Set("backend.mode", "inference"); err != nil {
		t.Fatalf("Failed to set flag: %v", err)
	}

	cfg, err := Load(cmd)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Backend.Mode != ModeInference {
		t.Errorf("Expected flag mode %s, got %s", ModeInference, cfg.Backend.Mode)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "temperature above range", env: map[string]string{"STACKCHAT_CHAT_TEMPERATURE": "1.5"}},
		{name: "unknown mode", env: map[string]string{"STACKCHAT_BACKEND_MODE": "magic"}},
		{name: "bad port", env: map[string]string{"STACKCHAT_SERVER_PORT": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(nil)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !chatErrors.IsCategory(err, chatErrors.ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestDurationOrDefault(t *testing.T) {
	d, err := DurationOrDefault("", "30s")
	if err != nil || d.Seconds() != 30 {
		t.Errorf("Expected 30s fallback, got %v (%v)", d, err)
	}

	d, err = DurationOrDefault(" 2m ", "30s")
	if err != nil || d.Minutes() != 2 {
		t.Errorf("Expected 2m, got %v (%v)", d, err)
	}

	if _, err := DurationOrDefault("soon", "30s"); err == nil {
		t.Error("Expected parse error")
	}
	if _, err := DurationOrDefault("", ""); err == nil {
		t.Error("Expected empty error")
	}
}

func TestValidateTemperature(t *testing.T) {
	for _, v := range []float64{0, 0.7, 1} {
		if err := ValidateTemperature(v); err != nil {
			t.Errorf("Expected %.1f to be valid: %v", v, err)
		}
	}
	for _, v := range []float64{-0.1, 1.01} {
		if err := ValidateTemperature(v); err == nil {
			t.Errorf("Expected %.2f to be rejected", v)
		}
	}
}
