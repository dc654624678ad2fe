package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harunnryd/stackchat/internal/backend"
	"github.com/harunnryd/stackchat/internal/catalog"
	"github.com/harunnryd/stackchat/internal/concurrency"
	"github.com/harunnryd/stackchat/internal/config"
	chatErrors "github.com/harunnryd/stackchat/internal/errors"
	"github.com/harunnryd/stackchat/internal/logger"
	"github.com/harunnryd/stackchat/internal/session"
	"github.com/harunnryd/stackchat/internal/turn"

	"github.com/oklog/ulid/v2"
)

// Options wires a conversation to its backend.
type Options struct {
	Mode      string
	BaseURL   string
	Agents    backend.AgentClientFactory
	Generator backend.Generator
	Settings  session.Settings
	Catalog   *catalog.Catalog
}

// Conversation is one chat: a transcript plus the backend state behind it.
type Conversation struct {
	id         string
	mode       string
	cache      *session.Cache
	generator  backend.Generator
	catalog    *catalog.Catalog
	transcript *Transcript
	locks      *concurrency.KeyedLocks
}

func New(id string, opts Options) *Conversation {
	return newConversation(id, opts, concurrency.NewKeyedLocks())
}

func newConversation(id string, opts Options, locks *concurrency.KeyedLocks) *Conversation {
	if id == "" {
		id = ulid.Make().String()
	}

	c := &Conversation{
		id:         id,
		mode:       opts.Mode,
		generator:  opts.Generator,
		catalog:    opts.Catalog,
		transcript: &Transcript{},
		locks:      locks,
	}
	if c.mode == "" {
		c.mode = config.ModeAgent
	}
	if c.mode == config.ModeAgent {
		c.cache = session.New(opts.BaseURL, opts.Agents, opts.Settings)
	}
	return c
}

func (c *Conversation) ID() string {
	return c.id
}

func (c *Conversation) Mode() string {
	return c.mode
}

// Busy reports whether a Send is in flight.
func (c *Conversation) Busy() bool {
	return c.locks.Held(c.id)
}

func (c *Conversation) Messages() []Message {
	return c.transcript.Messages()
}

// Send appends the prompt and the assistant reply to the transcript and
// returns the reply. Backend failures become an error reply; the returned
// error is reserved for rejected input and overlapping sends.
func (c *Conversation) Send(ctx context.Context, prompt, model string, temperature float64) (*Message, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, chatErrors.InvalidInput("prompt is empty")
	}
	if model == "" {
		return nil, chatErrors.InvalidInput("no model selected")
	}
	if err := config.ValidateTemperature(temperature); err != nil {
		return nil, err
	}

	if !c.locks.TryLock(c.id) {
		return nil, chatErrors.Busy(fmt.Sprintf("conversation %s", c.id))
	}
	defer c.locks.Unlock(c.id)

	ctx = logger.WithConversationID(ctx, c.id)
	if logger.GetTraceID(ctx) == "" {
		ctx = logger.WithTraceID(ctx, ulid.Make().String())
	}

	slog.Info("Sending message",
		"conversation_id", c.id,
		"mode", c.mode,
		"model", model,
		"prompt", logger.Preview(prompt),
		"trace_id", logger.GetTraceID(ctx),
	)

	c.transcript.Append(NewMessage(RoleUser, prompt, nil))

	var reply Message
	if c.mode == config.ModeInference {
		reply = c.generate(ctx, prompt, model, temperature)
	} else {
		reply = c.agentTurn(ctx, prompt, model)
	}

	c.transcript.Append(reply)
	return &reply, nil
}

func (c *Conversation) generate(ctx context.Context, prompt, model string, temperature float64) Message {
	if c.generator == nil {
		return NewMessage(RoleAssistant, chatErrors.UserMessage(chatErrors.Connection("no inference backend configured")), nil)
	}
	text, err := c.generator.Generate(ctx, prompt, model, temperature)
	if err != nil {
		slog.Error("Generation failed", "conversation_id", c.id, "category", chatErrors.Category(err), "error", err)
		return NewMessage(RoleAssistant, chatErrors.UserMessage(err), nil)
	}
	return NewMessage(RoleAssistant, text, nil)
}

func (c *Conversation) agentTurn(ctx context.Context, prompt, model string) Message {
	raw, err := c.createTurn(ctx, prompt, model)
	if err != nil {
		slog.Error("Agent turn failed", "conversation_id", c.id, "category", chatErrors.Category(err), "error", err)
		content := "❌ Error: " + err.Error()
		return NewMessage(RoleAssistant, content, &turn.NormalizedTurn{
			Success:        false,
			FinalResponse:  content,
			ReasoningSteps: []turn.ReasoningStep{},
			ToolUsage:      []turn.ToolUsage{},
			TurnID:         "error",
			Status:         "error",
			Error:          err.Error(),
		})
	}

	details := turn.Normalize(raw)
	if !details.Success {
		slog.Warn("Turn details incomplete", "conversation_id", c.id, "turn_id", details.TurnID, "error", details.Error)
		return NewMessage(RoleAssistant, "❌ Error: "+details.Error, &details)
	}

	slog.Info("Turn normalized",
		"conversation_id", c.id,
		"turn_id", details.TurnID,
		"reasoning_steps", len(details.ReasoningSteps),
		"tool_usage", len(details.ToolUsage),
	)
	return NewMessage(RoleAssistant, details.FinalResponse, &details)
}

func (c *Conversation) createTurn(ctx context.Context, prompt, model string) (*turn.RawTurn, error) {
	sessionID, err := c.cache.Session(ctx, model)
	if err != nil {
		return nil, err
	}
	agent, err := c.cache.Agent(ctx, model)
	if err != nil {
		return nil, err
	}
	client, err := c.cache.Client(c.cache.BaseURL())
	if err != nil {
		return nil, err
	}
	return client.CreateTurn(ctx, agent, sessionID, prompt)
}

// Clear empties the transcript. It fails with ErrBusy while a Send is in flight.
func (c *Conversation) Clear() error {
	if !c.locks.TryLock(c.id) {
		return chatErrors.Busy(fmt.Sprintf("conversation %s", c.id))
	}
	defer c.locks.Unlock(c.id)

	c.clear()
	return nil
}

// ResetAgent starts a fresh backend session and clears the transcript.
// It fails with ErrBusy while a Send is in flight.
func (c *Conversation) ResetAgent() error {
	if !c.locks.TryLock(c.id) {
		return chatErrors.Busy(fmt.Sprintf("conversation %s", c.id))
	}
	defer c.locks.Unlock(c.id)

	if c.cache != nil {
		c.cache.Reset()
	}
	c.clear()
	return nil
}

func (c *Conversation) clear() {
	slog.Info("Clearing chat history", "conversation_id", c.id)
	c.transcript.Clear()
}

// RefreshModels drops the cached model list and all cached backend state.
func (c *Conversation) RefreshModels() {
	if c.catalog != nil {
		c.catalog.Refresh()
	}
	if c.cache != nil {
		c.cache.Invalidate()
	}
}

func (c *Conversation) Models(ctx context.Context) []string {
	if c.catalog == nil {
		return []string{}
	}
	return c.catalog.Models(ctx)
}

func (c *Conversation) TestConnection(ctx context.Context) bool {
	if c.catalog == nil {
		return false
	}
	return c.catalog.TestConnection(ctx)
}
