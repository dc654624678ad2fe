package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/harunnryd/stackchat/internal/backend"
	"github.com/harunnryd/stackchat/internal/backend/contract"
	chatErrors "github.com/harunnryd/stackchat/internal/errors"

	"golang.org/x/sync/singleflight"
)

// Settings is the fixed agent configuration applied to every agent the cache creates.
type Settings struct {
	Tools        []string
	Instructions string
	SessionName  string
}

// Cache lazily creates and holds one backend client per base URL, one agent
// and one session. Each conversation owns its own Cache.
//
// The agent is bound to the model of the first Agent call. Later calls with a
// different model return the existing agent.
type Cache struct {
	baseURL  string
	factory  backend.AgentClientFactory
	settings Settings

	mu         sync.RWMutex
	clients    map[string]backend.AgentClient
	agent      *contract.AgentHandle
	sessionID  string
	agentGen   uint64
	sessionGen uint64

	group singleflight.Group
}

func New(baseURL string, factory backend.AgentClientFactory, settings Settings) *Cache {
	return &Cache{
		baseURL:  baseURL,
		factory:  factory,
		settings: settings,
		clients:  make(map[string]backend.AgentClient),
	}
}

func (c *Cache) BaseURL() string {
	return c.baseURL
}

// Client returns the cached client for baseURL, creating it on first use.
// Construction failures are returned as connection errors and not cached.
func (c *Cache) Client(baseURL string) (backend.AgentClient, error) {
	c.mu.RLock()
	client, ok := c.clients[baseURL]
	c.mu.RUnlock()
	if ok {
		return client, nil
	}

	res, err, _ := c.group.Do("client:"+baseURL, func() (any, error) {
		// Recheck inside singleflight to avoid a second construction
		c.mu.RLock()
		existing, ok := c.clients[baseURL]
		c.mu.RUnlock()
		if ok {
			return existing, nil
		}

		created, err := c.factory(baseURL)
		if err != nil {
			slog.Error("Failed to create backend client", "base_url", baseURL, "error", err)
			if !chatErrors.IsCategory(err, chatErrors.ErrConnection) {
				err = chatErrors.WrapWithCategory(err, "create backend client", chatErrors.ErrConnection)
			}
			return nil, err
		}

		c.mu.Lock()
		c.clients[baseURL] = created
		c.mu.Unlock()
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(backend.AgentClient), nil
}

// Agent returns the cached agent, creating it bound to model on first use.
func (c *Cache) Agent(ctx context.Context, model string) (*contract.AgentHandle, error) {
	if agent, ok := c.cachedAgent(model); ok {
		return agent, nil
	}

	res, err, _ := c.group.Do("agent", func() (any, error) {
		if agent, ok := c.cachedAgent(model); ok {
			return agent, nil
		}

		c.mu.RLock()
		gen := c.agentGen
		c.mu.RUnlock()

		client, err := c.Client(c.baseURL)
		if err != nil {
			return nil, chatErrors.WrapWithCategory(err, "create agent", chatErrors.ErrAgentCreation)
		}

		slog.Info("Creating agent", "model", model, "base_url", c.baseURL)
		agent, err := client.CreateAgent(ctx, contract.AgentConfig{
			Model:        model,
			Tools:        c.settings.Tools,
			Instructions: c.settings.Instructions,
		})
		if err != nil {
			slog.Error("Failed to create agent", "model", model, "error", err)
			if !chatErrors.IsCategory(err, chatErrors.ErrAgentCreation) {
				err = chatErrors.WrapWithCategory(err, "create agent", chatErrors.ErrAgentCreation)
			}
			return nil, err
		}

		c.mu.Lock()
		if c.agentGen == gen {
			c.agent = agent
		}
		c.mu.Unlock()
		return agent, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*contract.AgentHandle), nil
}

// Session returns the cached session id, creating the agent and session as needed.
func (c *Cache) Session(ctx context.Context, model string) (string, error) {
	c.mu.RLock()
	sessionID := c.sessionID
	c.mu.RUnlock()
	if sessionID != "" {
		return sessionID, nil
	}

	res, err, _ := c.group.Do("session", func() (any, error) {
		c.mu.RLock()
		existing, gen := c.sessionID, c.sessionGen
		c.mu.RUnlock()
		if existing != "" {
			return existing, nil
		}

		agent, err := c.Agent(ctx, model)
		if err != nil {
			return "", err
		}

		client, err := c.Client(c.baseURL)
		if err != nil {
			return "", chatErrors.WrapWithCategory(err, "create session", chatErrors.ErrSessionCreation)
		}

		id, err := client.CreateSession(ctx, agent, c.settings.SessionName)
		if err != nil {
			slog.Error("Failed to create session", "agent_id", agent.ID, "error", err)
			if !chatErrors.IsCategory(err, chatErrors.ErrSessionCreation) {
				err = chatErrors.WrapWithCategory(err, "create session", chatErrors.ErrSessionCreation)
			}
			return "", err
		}

		c.mu.Lock()
		if c.sessionGen == gen {
			c.sessionID = id
		}
		c.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// Reset drops the session id. The agent and clients stay cached.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	slog.Info("Resetting agent session", "session_id", c.sessionID)
	c.sessionID = ""
	c.sessionGen++
}

// Invalidate drops clients, agent and session together.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	slog.Info("Invalidating backend cache", "base_url", c.baseURL)
	c.clients = make(map[string]backend.AgentClient)
	c.agent = nil
	c.sessionID = ""
	c.agentGen++
	c.sessionGen++
}

func (c *Cache) cachedAgent(model string) (*contract.AgentHandle, bool) {
	c.mu.RLock()
	agent := c.agent
	c.mu.RUnlock()
	if agent == nil {
		return nil, false
	}

	if model != "" && agent.Model != model {
		slog.Warn("Agent is bound to a different model, keeping existing agent",
			"agent_id", agent.ID,
			"agent_model", agent.Model,
			"requested_model", model,
		)
	}
	return agent, true
}
