package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	chatErrors "github.com/harunnryd/stackchat/internal/errors"
	"github.com/harunnryd/stackchat/internal/logger"

	"github.com/sashabaranov/go-openai"
)

// Provider talks to an OpenAI-compatible server such as Ollama's /v1 endpoint.
type Provider struct {
	client  *openai.Client
	baseURL string
}

func New(apiKey, baseURL string, timeout time.Duration) *Provider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		baseURL = strings.TrimSuffix(baseURL, "/")
		cfg.BaseURL = baseURL
	}
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}

	return &Provider{client: openai.NewClientWithConfig(cfg), baseURL: baseURL}
}

func (p *Provider) Name() string {
	return "openai"
}

func (p *Provider) BaseURL() string {
	return p.baseURL
}

func (p *Provider) ListModels(ctx context.Context) []string {
	resp, err := p.client.ListModels(ctx)
	if err != nil {
		slog.Error("Failed to list models", "base_url", p.baseURL, "error", mapError(err))
		return []string{}
	}

	models := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		if m.ID != "" {
			models = append(models, m.ID)
		}
	}
	return models
}

func (p *Provider) TestConnection(ctx context.Context) bool {
	if _, err := p.client.ListModels(ctx); err != nil {
		slog.Warn("Connection test failed", "base_url", p.baseURL, "error", mapError(err))
		return false
	}
	return true
}

func (p *Provider) Generate(ctx context.Context, prompt, model string, temperature float64) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", chatErrors.InvalidInput("prompt is empty")
	}
	if model == "" {
		return "", chatErrors.InvalidInput("no model selected")
	}
	if temperature < 0 || temperature > 1 {
		return "", chatErrors.InvalidInput(fmt.Sprintf("temperature %.2f outside 0.0-1.0", temperature))
	}

	slog.Info("Sending prompt",
		"model", model,
		"prompt", logger.Preview(prompt),
		"conversation_id", logger.GetConversationID(ctx),
		"trace_id", logger.GetTraceID(ctx),
	)

	// Temperature is omitempty in go-openai; a tiny non-zero value keeps 0 on the wire.
	temp := float32(temperature)
	if temp == 0 {
		temp = math.SmallestNonzeroFloat32
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: temp,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", mapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", chatErrors.Extraction("no choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

// mapError converts go-openai failures into the stackchat error taxonomy.
func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return chatErrors.NewHTTPError(apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		body := ""
		if reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return chatErrors.NewHTTPError(reqErr.HTTPStatusCode, body)
	}

	return chatErrors.Classify(err)
}
