package backend

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	llamastackProvider "github.com/harunnryd/stackchat/internal/backend/providers/llamastack"
	openaiProvider "github.com/harunnryd/stackchat/internal/backend/providers/openai"
	"github.com/harunnryd/stackchat/internal/config"
	chatErrors "github.com/harunnryd/stackchat/internal/errors"
)

// Options carries the connection settings shared by both backends.
type Options struct {
	APIKey         string
	SearchAPIKey   string
	RequestTimeout time.Duration
}

func OptionsFromConfig(cfg *config.Config) (Options, error) {
	timeout, err := config.DurationOrDefault(cfg.Backend.RequestTimeout, config.DefaultBackendRequestTimeout)
	if err != nil {
		return Options{}, chatErrors.InvalidInput(fmt.Sprintf("backend.request_timeout: %v", err))
	}

	apiKey := cfg.Backend.APIKey
	if apiKey == "" {
		apiKey = config.DefaultInferenceAPIKey
	}

	return Options{
		APIKey:         apiKey,
		SearchAPIKey:   cfg.Agent.SearchAPIKey,
		RequestTimeout: timeout,
	}, nil
}

// NewGenerator creates the OpenAI-compatible inference client.
func NewGenerator(baseURL string, opts Options) (Generator, error) {
	normalized, err := validateBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return openaiProvider.New(opts.APIKey, normalized, opts.RequestTimeout), nil
}

// NewAgentClient creates the Llama Stack agents client.
func NewAgentClient(baseURL string, opts Options) (AgentClient, error) {
	normalized, err := validateBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return llamastackProvider.New(normalized, opts.SearchAPIKey, opts.RequestTimeout), nil
}

// AgentFactory binds opts into an AgentClientFactory.
func AgentFactory(opts Options) AgentClientFactory {
	return func(baseURL string) (AgentClient, error) {
		return NewAgentClient(baseURL, opts)
	}
}

// NewLister returns the model lister that matches mode.
func NewLister(mode, baseURL string, opts Options) (ModelLister, error) {
	switch mode {
	case config.ModeInference:
		return NewGenerator(baseURL, opts)
	case config.ModeAgent:
		return NewAgentClient(baseURL, opts)
	default:
		return nil, chatErrors.InvalidInput(fmt.Sprintf("unknown backend mode %q", mode))
	}
}

func validateBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return "", chatErrors.Connection("backend url is empty")
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", chatErrors.WrapWithCategory(err, "invalid backend url", chatErrors.ErrConnection)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", chatErrors.Connection(fmt.Sprintf("backend url %q must use http or https", raw))
	}
	if u.Host == "" {
		return "", chatErrors.Connection(fmt.Sprintf("backend url %q has no host", raw))
	}

	return trimmed, nil
}
