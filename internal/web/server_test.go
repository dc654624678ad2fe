package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/harunnryd/stackchat/internal/config"
	"github.com/harunnryd/stackchat/internal/conversation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeLlamaStack(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/v1/models":
			io.WriteString(w, `{"data":[{"identifier":"llama3.2:3b","model_type":"llm"},{"identifier":"embed","model_type":"embedding"}]}`)
		case r.URL.Path == "/v1/agents":
			io.WriteString(w, `{"agent_id":"agent-1"}`)
		case strings.HasSuffix(r.URL.Path, "/session"):
			io.WriteString(w, `{"session_id":"sess-1"}`)
		case strings.HasSuffix(r.URL.Path, "/turn"):
			io.WriteString(w, `{"turn_id":"turn-1","status":"completed","steps":[
				{"step_id":"s1","step_type":"inference","model_response":{"stop_reason":"end_of_message","tool_calls":[{"tool_name":"websearch","arguments":{"q":"capital of France"},"call_id":"c1"}]}},
				{"step_id":"s2","step_type":"tool_execution","tool_responses":[{"call_id":"c1","tool_name":"websearch","content":"{\"answer\":\"Paris\"}"}]},
				{"step_id":"s3","step_type":"inference","model_response":{"content":"The capital of France is **Paris**.","stop_reason":"end_of_turn"}}
			]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(backendURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 0},
		Backend: config.BackendConfig{
			Mode:           config.ModeAgent,
			AgentBaseURL:   backendURL,
			RequestTimeout: "5s",
		},
		Agent: config.AgentConfig{
			Tools:        []string{config.DefaultAgentTool},
			Instructions: config.DefaultAgentInstructions,
			SessionName:  config.DefaultAgentSessionName,
		},
		Chat: config.ChatConfig{Temperature: config.DefaultChatTemperature, ModelListTTL: "30s"},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *http.Client, *Server) {
	t.Helper()
	cfg := testConfig(fakeLlamaStack(t).URL)

	opts, err := conversation.OptionsFromConfig(cfg)
	require.NoError(t, err)

	s := NewServer(cfg, conversation.NewRegistry(opts))
	require.NoError(t, s.Init(context.Background()))

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return ts, &http.Client{Jar: jar}, s
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestServer_ChatFlow(t *testing.T) {
	ts, client, _ := newTestServer(t)

	resp, err := client.Get(ts.URL + "/api/models")
	require.NoError(t, err)
	assert.Equal(t, []any{"llama3.2:3b"}, decode(t, resp)["models"])

	resp, err = client.Post(ts.URL+"/api/messages", "application/json",
		strings.NewReader(`{"prompt":"What is the capital of France?","model":"llama3.2:3b"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	msg := body["message"].(map[string]any)
	assert.Equal(t, "assistant", msg["role"])
	assert.Equal(t, "The capital of France is **Paris**.", msg["content"])
	details := msg["turn_details"].(map[string]any)
	assert.Equal(t, "turn-1", details["turn_id"])
	assert.Len(t, details["tool_usage"], 1)

	resp, err = client.Get(ts.URL + "/api/messages")
	require.NoError(t, err)
	assert.Len(t, decode(t, resp)["messages"], 2)

	resp, err = client.Get(ts.URL + "/")
	require.NoError(t, err)
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	html := string(page)
	assert.Contains(t, html, "<strong>Paris</strong>")
	assert.Contains(t, html, `&#34;answer&#34;: &#34;Paris&#34;`)
	assert.Contains(t, html, "✅ Connected")
	assert.Contains(t, html, `<option value="llama3.2:3b" selected>`)

	resp, err = client.Post(ts.URL+"/api/reset", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, "reset", decode(t, resp)["status"])

	resp, err = client.Get(ts.URL + "/api/messages")
	require.NoError(t, err)
	assert.Empty(t, decode(t, resp)["messages"])
}

func TestServer_ConversationsAreIsolatedByCookie(t *testing.T) {
	ts, alice, s := newTestServer(t)
	bob := &http.Client{}

	resp, err := alice.Post(ts.URL+"/api/messages", "application/json",
		strings.NewReader(`{"prompt":"hi","model":"llama3.2:3b","temperature":0.3}`))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = bob.Get(ts.URL + "/api/messages")
	require.NoError(t, err)
	assert.Empty(t, decode(t, resp)["messages"])
	assert.Equal(t, 1, s.registry.Len())
}

func TestServer_OnlyPageAndSendsRegisterConversations(t *testing.T) {
	ts, client, s := newTestServer(t)

	for _, path := range []string{"/api/models", "/api/connection", "/api/messages"} {
		resp, err := client.Get(ts.URL + path)
		require.NoError(t, err)
		assert.Empty(t, resp.Cookies(), path)
		resp.Body.Close()
	}
	resp, err := client.Post(ts.URL+"/api/clear", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 0, s.registry.Len())

	resp, err = client.Get(ts.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 1, s.registry.Len())

	resp, err = client.Get(ts.URL + "/api/messages")
	require.NoError(t, err)
	assert.Empty(t, resp.Cookies())
	resp.Body.Close()
	assert.Equal(t, 1, s.registry.Len())
}

func TestServer_UnknownCookieGetsServerIssuedID(t *testing.T) {
	ts, _, s := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/messages",
		strings.NewReader(`{"prompt":"hi","model":"llama3.2:3b"}`))
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: cookieName, Value: "chosen-by-client"})

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body := decode(t, resp)

	id := body["conversation_id"].(string)
	assert.NotEqual(t, "chosen-by-client", id)
	_, ok := s.registry.Get("chosen-by-client")
	assert.False(t, ok)

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, id, cookies[0].Value)
}

func TestServer_RejectsInvalidSend(t *testing.T) {
	ts, client, _ := newTestServer(t)

	for _, body := range []string{
		`not json`,
		`{"prompt":"","model":"llama3.2:3b"}`,
		`{"prompt":"hi","model":""}`,
		`{"prompt":"hi","model":"llama3.2:3b","temperature":3}`,
	} {
		resp, err := client.Post(ts.URL+"/api/messages", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Equal(t, "ErrInvalidInput", decode(t, resp)["category"])
	}
}

func TestServer_FormActions(t *testing.T) {
	ts, client, _ := newTestServer(t)
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	resp, err := client.PostForm(ts.URL+"/", url.Values{
		"action":      {"send"},
		"prompt":      {"hello"},
		"model":       {"llama3.2:3b"},
		"temperature": {"0.4"},
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "model=llama3.2%3A3b")

	resp, err = client.Get(ts.URL + "/api/messages")
	require.NoError(t, err)
	assert.Len(t, decode(t, resp)["messages"], 2)

	resp, err = client.PostForm(ts.URL+"/", url.Values{"action": {"clear"}})
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = client.Get(ts.URL + "/api/messages")
	require.NoError(t, err)
	assert.Empty(t, decode(t, resp)["messages"])

	resp, err = client.PostForm(ts.URL+"/", url.Values{"action": {"send"}, "prompt": {"x"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Location"), "notice=")
}

func TestServer_HealthAndConnection(t *testing.T) {
	ts, client, s := newTestServer(t)

	resp, err := client.Get(ts.URL + "/health")
	require.NoError(t, err)
	body := decode(t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "agent", body["mode"])
	assert.False(t, s.Health(context.Background()).Healthy)

	resp, err = client.Get(ts.URL + "/api/connection")
	require.NoError(t, err)
	assert.Equal(t, true, decode(t, resp)["connected"])

	resp, err = client.Post(ts.URL+"/api/models/refresh", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"llama3.2:3b"}, decode(t, resp)["models"])
}

func TestServer_Lifecycle(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	opts, err := conversation.OptionsFromConfig(cfg)
	require.NoError(t, err)
	s := NewServer(cfg, conversation.NewRegistry(opts))

	assert.Error(t, s.Start(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))

	require.NoError(t, s.Init(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Health(context.Background()).Healthy)

	require.NoError(t, s.Stop(context.Background()))
	assert.NoError(t, <-s.Done())
	assert.False(t, s.Health(context.Background()).Healthy)
}

func TestPrettyText(t *testing.T) {
	assert.Equal(t, "plain text", prettyText("plain text"))
	assert.Equal(t, "42", prettyText("42"))
	assert.Equal(t, "{\n  \"a\": 1\n}", prettyText(`{"a":1}`))
	assert.Equal(t, "{}", prettyArgs(nil))
	assert.Equal(t, "{\n  \"q\": \"x\"\n}", prettyArgs(map[string]any{"q": "x"}))
}
