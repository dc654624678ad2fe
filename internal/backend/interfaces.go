package backend

import (
	"context"

	"github.com/harunnryd/stackchat/internal/backend/contract"
	"github.com/harunnryd/stackchat/internal/turn"
)

// ModelLister discovers models. ListModels never fails; errors yield an empty list.
type ModelLister interface {
	ListModels(ctx context.Context) []string
	TestConnection(ctx context.Context) bool
}

// Generator is the direct, non-agentic inference path.
type Generator interface {
	ModelLister
	Generate(ctx context.Context, prompt, model string, temperature float64) (string, error)
}

// AgentClient is the agentic path: agents, sessions and turns.
type AgentClient interface {
	ModelLister
	CreateAgent(ctx context.Context, cfg contract.AgentConfig) (*contract.AgentHandle, error)
	CreateSession(ctx context.Context, agent *contract.AgentHandle, name string) (string, error)
	CreateTurn(ctx context.Context, agent *contract.AgentHandle, sessionID, message string) (*turn.RawTurn, error)
	BaseURL() string
}

// AgentClientFactory builds an AgentClient for a base URL.
type AgentClientFactory func(baseURL string) (AgentClient, error)
