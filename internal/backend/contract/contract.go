package contract

import "time"

type AgentConfig struct {
	Model        string   `json:"model"`
	Tools        []string `json:"tools"`
	Instructions string   `json:"instructions"`
}

// AgentHandle identifies an agent created on the backend.
type AgentHandle struct {
	ID           string    `json:"agent_id"`
	Model        string    `json:"model"`
	Tools        []string  `json:"tools"`
	Instructions string    `json:"instructions"`
	CreatedAt    time.Time `json:"created_at"`
}
