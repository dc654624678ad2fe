package config

import (
	"fmt"
	"strings"
	"time"

	chatErrors "github.com/harunnryd/stackchat/internal/errors"
)

// DurationOrDefault parses value, falling back to defaultValue when value is blank.
func DurationOrDefault(value string, defaultValue string) (time.Duration, error) {
	candidate := strings.TrimSpace(value)
	if candidate == "" {
		candidate = strings.TrimSpace(defaultValue)
	}
	if candidate == "" {
		return 0, fmt.Errorf("duration value is empty")
	}

	d, err := time.ParseDuration(candidate)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", candidate, err)
	}
	return d, nil
}

// ValidateTemperature reports whether t is inside the supported 0.0-1.0 range.
func ValidateTemperature(t float64) error {
	if t < 0 || t > 1 {
		return chatErrors.InvalidInput(fmt.Sprintf("temperature %.2f outside 0.0-1.0", t))
	}
	return nil
}

func Validate(cfg *Config) error {
	switch cfg.Backend.Mode {
	case ModeAgent, ModeInference:
	default:
		return chatErrors.InvalidInput(fmt.Sprintf("unknown backend mode %q (want %q or %q)", cfg.Backend.Mode, ModeAgent, ModeInference))
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return chatErrors.InvalidInput(fmt.Sprintf("invalid server port %d", cfg.Server.Port))
	}

	if err := ValidateTemperature(cfg.Chat.Temperature); err != nil {
		return err
	}

	if strings.TrimSpace(cfg.Backend.BaseURL()) == "" {
		return chatErrors.InvalidInput(fmt.Sprintf("base url for %s backend is empty", cfg.Backend.Mode))
	}

	for _, d := range []struct{ name, value, def string }{
		{"server.read_timeout", cfg.Server.ReadTimeout, DefaultServerReadTimeout},
		{"server.write_timeout", cfg.Server.WriteTimeout, DefaultServerWriteTimeout},
		{"server.idle_timeout", cfg.Server.IdleTimeout, DefaultServerIdleTimeout},
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeout, DefaultServerShutdownTimeout},
		{"backend.request_timeout", cfg.Backend.RequestTimeout, DefaultBackendRequestTimeout},
		{"chat.model_list_ttl", cfg.Chat.ModelListTTL, DefaultChatModelListTTL},
	} {
		if _, err := DurationOrDefault(d.value, d.def); err != nil {
			return chatErrors.InvalidInput(fmt.Sprintf("%s: %v", d.name, err))
		}
	}

	return nil
}
