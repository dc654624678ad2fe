package conversation

import (
	"sync"
	"time"

	"github.com/harunnryd/stackchat/internal/turn"

	"github.com/oklog/ulid/v2"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry. It is never modified after Append.
type Message struct {
	ID          string               `json:"id"`
	Role        Role                 `json:"role"`
	Content     string               `json:"content"`
	TurnDetails *turn.NormalizedTurn `json:"turn_details,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

func NewMessage(role Role, content string, details *turn.NormalizedTurn) Message {
	return Message{
		ID:          ulid.Make().String(),
		Role:        role,
		Content:     content,
		TurnDetails: details,
		CreatedAt:   time.Now(),
	}
}

// Transcript is an ordered, append-only message log.
type Transcript struct {
	mu       sync.RWMutex
	messages []Message
}

func (t *Transcript) Append(m Message) {
	t.mu.Lock()
	t.messages = append(t.messages, m)
	t.mu.Unlock()
}

// Messages returns a copy of the transcript in chronological order.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

func (t *Transcript) Clear() {
	t.mu.Lock()
	t.messages = nil
	t.mu.Unlock()
}
