package llamastack

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harunnryd/stackchat/internal/backend/contract"
	chatErrors "github.com/harunnryd/stackchat/internal/errors"
	"github.com/harunnryd/stackchat/internal/logger"
	"github.com/harunnryd/stackchat/internal/turn"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStack struct {
	t        *testing.T
	agents   atomic.Int32
	sessions atomic.Int32
	header   atomic.Value
}

func (f *fakeStack) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.header.Store(r.Header.Get(providerDataHeader))
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/v1/models":
		io.WriteString(w, `{"data":[
			{"identifier":"llama3.2:3b","model_type":"llm","provider_id":"ollama"},
			{"identifier":"all-MiniLM-L6-v2","model_type":"embedding"},
			{"id":"granite3.3:8b"},
			{"name":"phi4","model_type":"LLM"}
		]}`)

	case r.Method == http.MethodPost && r.URL.Path == "/v1/agents":
		var req map[string]map[string]any
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		cfg := req["agent_config"]
		assert.Equal(f.t, "llama3.2:3b", cfg["model"])
		assert.Equal(f.t, []any{"builtin::websearch"}, cfg["toolgroups"])
		f.agents.Add(1)
		io.WriteString(w, `{"agent_id":"agent-1"}`)

	case r.Method == http.MethodPost && r.URL.Path == "/v1/agents/agent-1/session":
		var req map[string]string
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(f.t, "streamlit_chat", req["session_name"])
		f.sessions.Add(1)
		io.WriteString(w, `{"session_id":"sess-1"}`)

	case r.Method == http.MethodPost && r.URL.Path == "/v1/agents/agent-1/session/sess-1/turn":
		var req struct {
			Messages []map[string]string `json:"messages"`
			Stream   bool                `json:"stream"`
		}
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(f.t, req.Stream)
		if !assert.Len(f.t, req.Messages, 1) {
			return
		}
		assert.Equal(f.t, "user", req.Messages[0]["role"])
		io.WriteString(w, `{"turn_id":"turn-1","status":"completed","steps":[
			{"step_id":"s1","step_type":"inference","model_response":{"content":"`+req.Messages[0]["content"]+` back","stop_reason":"end_of_turn","tool_calls":[]}}
		]}`)

	default:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail":"not found"}`)
	}
}

func newFake(t *testing.T, searchKey string) (*Provider, *fakeStack) {
	t.Helper()
	fake := &fakeStack{t: t}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", searchKey, 2*time.Second), fake
}

func TestProvider_ListModelsFiltersLLM(t *testing.T) {
	p, _ := newFake(t, "")

	assert.Equal(t, []string{"llama3.2:3b", "granite3.3:8b", "phi4"}, p.ListModels(context.Background()))
	assert.True(t, p.TestConnection(context.Background()))
}

func TestParseModels(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseModels([]byte(`["a","b"]`)))
	assert.Equal(t, []string{`{"provider_id":"x"}`}, parseModels([]byte(`[{"provider_id":"x"}]`)))
	assert.Equal(t, []string{}, parseModels([]byte(`{"detail":"oops"}`)))
	assert.Equal(t, []string{}, parseModels([]byte(`not json`)))
}

func TestProvider_ListModelsFailsSoft(t *testing.T) {
	p := New("http://127.0.0.1:1", "", time.Second)

	models := p.ListModels(context.Background())
	assert.NotNil(t, models)
	assert.Empty(t, models)
	assert.False(t, p.TestConnection(context.Background()))
}

func TestProvider_AgentSessionTurn(t *testing.T) {
	p, fake := newFake(t, "tvly-secret")
	ctx := context.Background()

	agent, err := p.CreateAgent(ctx, contract.AgentConfig{
		Model:        "llama3.2:3b",
		Tools:        []string{"builtin::websearch"},
		Instructions: "search first",
	})
	require.NoError(t, err)
	assert.Equal(t, "agent-1", agent.ID)
	assert.Equal(t, "llama3.2:3b", agent.Model)
	assert.JSONEq(t, `{"tavily_search_api_key":"tvly-secret"}`, fake.header.Load().(string))

	sessionID, err := p.CreateSession(ctx, agent, "streamlit_chat")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", sessionID)

	raw, err := p.CreateTurn(ctx, agent, sessionID, "ping")
	require.NoError(t, err)

	nt := turn.Normalize(raw)
	assert.True(t, nt.Success)
	assert.Equal(t, "turn-1", nt.TurnID)
	assert.Equal(t, "ping back", nt.FinalResponse)
	assert.EqualValues(t, 1, fake.agents.Load())
	assert.EqualValues(t, 1, fake.sessions.Load())
}

func TestProvider_NoProviderDataWithoutKey(t *testing.T) {
	p, fake := newFake(t, "")
	p.ListModels(context.Background())
	assert.Equal(t, "", fake.header.Load().(string))
}

func TestProvider_TypedErrors(t *testing.T) {
	p, _ := newFake(t, "")
	ctx := context.Background()

	_, err := p.CreateAgent(ctx, contract.AgentConfig{})
	assert.ErrorIs(t, err, chatErrors.ErrAgentCreation)

	_, err = p.CreateSession(ctx, &contract.AgentHandle{ID: "missing"}, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, chatErrors.ErrSessionCreation)
	var httpErr *chatErrors.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)

	_, err = p.CreateTurn(ctx, &contract.AgentHandle{ID: "agent-1"}, "nope", "hi")
	assert.ErrorIs(t, err, chatErrors.ErrHTTP)

	unreachable := New("http://127.0.0.1:1", "", time.Second)
	_, err = unreachable.CreateAgent(ctx, contract.AgentConfig{Model: "m"})
	assert.ErrorIs(t, err, chatErrors.ErrAgentCreation)
	assert.ErrorIs(t, err, chatErrors.ErrConnection)
}

func TestProvider_RejectsOversizedResponse(t *testing.T) {
	saved := maxResponseBytes
	maxResponseBytes = 64
	t.Cleanup(func() { maxResponseBytes = saved })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"turn_id":"t1","steps":[{"step_id":"s1","step_type":"inference","model_response":{"content":"a long answer that does not fit"}}]}`)
	}))
	t.Cleanup(srv.Close)

	p := New(srv.URL, "", time.Second)
	raw, err := p.CreateTurn(context.Background(), &contract.AgentHandle{ID: "agent-1"}, "sess-1", "hi")
	assert.Nil(t, raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, chatErrors.ErrExtraction)
	assert.Contains(t, err.Error(), "exceeds 64 bytes")
}

func TestProvider_NonJSONTurnIsExtractionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, `<html>502 bad gateway</html>`)
	}))
	t.Cleanup(srv.Close)

	p := New(srv.URL, "", time.Second)
	raw, err := p.CreateTurn(context.Background(), &contract.AgentHandle{ID: "agent-1"}, "sess-1", "hi")
	require.NoError(t, err)

	nt := turn.Normalize(raw)
	assert.False(t, nt.Success)
	assert.Contains(t, nt.Error, "not valid JSON")
}

func TestProvider_CreateTurnLogsConversation(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))

	p, _ := newFake(t, "")
	ctx := logger.WithTraceID(logger.WithConversationID(context.Background(), "conv-7"), "trace-1")
	_, err := p.CreateTurn(ctx, &contract.AgentHandle{ID: "agent-1", Model: "llama3.2:3b"}, "sess-1", "ping")
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "conversation_id=conv-7")
	assert.Contains(t, buf.String(), "trace_id=trace-1")
}
