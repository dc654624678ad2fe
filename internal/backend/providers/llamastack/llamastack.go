package llamastack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harunnryd/stackchat/internal/backend/contract"
	chatErrors "github.com/harunnryd/stackchat/internal/errors"
	"github.com/harunnryd/stackchat/internal/logger"
	"github.com/harunnryd/stackchat/internal/turn"

	"github.com/tidwall/gjson"
)

const providerDataHeader = "X-LlamaStack-Provider-Data"

var maxResponseBytes = 8 << 20

// Provider speaks the Llama Stack agents REST API.
type Provider struct {
	baseURL      string
	httpClient   *http.Client
	providerData string
}

func New(baseURL, searchAPIKey string, timeout time.Duration) *Provider {
	p := &Provider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}

	if searchAPIKey != "" {
		data, _ := json.Marshal(map[string]string{"tavily_search_api_key": searchAPIKey})
		p.providerData = string(data)
	}

	return p
}

func (p *Provider) Name() string {
	return "llamastack"
}

func (p *Provider) BaseURL() string {
	return p.baseURL
}

func (p *Provider) ListModels(ctx context.Context) []string {
	slog.Debug("Listing models", "base_url", p.baseURL)

	body, err := p.do(ctx, http.MethodGet, "/v1/models", nil)
	if err != nil {
		slog.Error("Failed to list models", "base_url", p.baseURL, "error", err)
		return []string{}
	}

	return parseModels(body)
}

func (p *Provider) TestConnection(ctx context.Context) bool {
	if _, err := p.do(ctx, http.MethodGet, "/v1/models", nil); err != nil {
		slog.Warn("Connection test failed", "base_url", p.baseURL, "error", err)
		return false
	}
	return true
}

func (p *Provider) CreateAgent(ctx context.Context, cfg contract.AgentConfig) (*contract.AgentHandle, error) {
	if cfg.Model == "" {
		return nil, chatErrors.WrapWithCategory(chatErrors.InvalidInput("no model selected"), "create agent", chatErrors.ErrAgentCreation)
	}

	tools := cfg.Tools
	if tools == nil {
		tools = []string{}
	}

	payload := map[string]any{
		"agent_config": map[string]any{
			"model":                      cfg.Model,
			"instructions":               cfg.Instructions,
			"toolgroups":                 tools,
			"enable_session_persistence": false,
		},
	}

	body, err := p.do(ctx, http.MethodPost, "/v1/agents", payload)
	if err != nil {
		return nil, chatErrors.WrapWithCategory(err, "create agent", chatErrors.ErrAgentCreation)
	}

	id, ok := turn.Probe(gjson.ParseBytes(body), "agent_id", "id")
	if !ok {
		return nil, chatErrors.WrapWithCategory(chatErrors.Extraction("response has no agent_id"), "create agent", chatErrors.ErrAgentCreation)
	}

	slog.Info("Agent created", "agent_id", id, "model", cfg.Model, "tools", tools)

	return &contract.AgentHandle{
		ID:           id,
		Model:        cfg.Model,
		Tools:        append([]string(nil), tools...),
		Instructions: cfg.Instructions,
		CreatedAt:    time.Now(),
	}, nil
}

func (p *Provider) CreateSession(ctx context.Context, agent *contract.AgentHandle, name string) (string, error) {
	if agent == nil || agent.ID == "" {
		return "", chatErrors.WrapWithCategory(chatErrors.InvalidInput("agent handle is empty"), "create session", chatErrors.ErrSessionCreation)
	}

	path := fmt.Sprintf("/v1/agents/%s/session", url.PathEscape(agent.ID))
	body, err := p.do(ctx, http.MethodPost, path, map[string]any{"session_name": name})
	if err != nil {
		return "", chatErrors.WrapWithCategory(err, "create session", chatErrors.ErrSessionCreation)
	}

	id, ok := turn.Probe(gjson.ParseBytes(body), "session_id", "id")
	if !ok {
		return "", chatErrors.WrapWithCategory(chatErrors.Extraction("response has no session_id"), "create session", chatErrors.ErrSessionCreation)
	}

	slog.Info("Session created", "agent_id", agent.ID, "session_id", id, "session_name", name)
	return id, nil
}

func (p *Provider) CreateTurn(ctx context.Context, agent *contract.AgentHandle, sessionID, message string) (*turn.RawTurn, error) {
	if agent == nil || agent.ID == "" || sessionID == "" {
		return nil, chatErrors.InvalidInput("agent and session are required to create a turn")
	}

	slog.Info("Sending message to agent",
		"agent_id", agent.ID,
		"model", agent.Model,
		"prompt", logger.Preview(message),
		"conversation_id", logger.GetConversationID(ctx),
		"trace_id", logger.GetTraceID(ctx),
	)

	path := fmt.Sprintf("/v1/agents/%s/session/%s/turn", url.PathEscape(agent.ID), url.PathEscape(sessionID))
	payload := map[string]any{
		"messages": []map[string]string{{"role": "user", "content": message}},
		"stream":   false,
	}

	body, err := p.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, chatErrors.Wrap(err, "create turn")
	}

	return turn.NewRawTurn(body), nil
}

func (p *Provider) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, chatErrors.InvalidInput(fmt.Sprintf("encode request: %v", err))
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return nil, chatErrors.WrapWithCategory(err, "build request", chatErrors.ErrConnection)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.providerData != "" {
		req.Header.Set(providerDataHeader, p.providerData)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, chatErrors.Classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxResponseBytes)+1))
	if err != nil {
		return nil, chatErrors.Classify(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, chatErrors.NewHTTPError(resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if len(body) > maxResponseBytes {
		return nil, chatErrors.Extraction(fmt.Sprintf("%s %s: response exceeds %d bytes", method, path, maxResponseBytes))
	}

	return body, nil
}

// parseModels keeps LLM entries and names each one by the first usable field.
func parseModels(body []byte) []string {
	doc := gjson.ParseBytes(body)
	entries := doc.Get("data")
	if !entries.IsArray() {
		entries = doc
	}
	if !entries.IsArray() {
		slog.Warn("Unexpected models response", "body", logger.Preview(string(body)))
		return []string{}
	}

	models := []string{}
	entries.ForEach(func(_, entry gjson.Result) bool {
		if entry.Type == gjson.String {
			if entry.Str != "" {
				models = append(models, entry.Str)
			}
			return true
		}

		if modelType := entry.Get("model_type"); modelType.Exists() && modelType.String() != "" &&
			!strings.EqualFold(modelType.String(), "llm") {
			slog.Debug("Skipping non-LLM model", "model", entry.Get("identifier").String(), "model_type", modelType.String())
			return true
		}

		if name, ok := turn.Probe(entry, "identifier", "id", "name"); ok {
			models = append(models, name)
			return true
		}

		models = append(models, entry.Raw)
		return true
	})

	return models
}
