package conversation

import (
	"log/slog"
	"sync"

	"github.com/harunnryd/stackchat/internal/concurrency"

	"github.com/oklog/ulid/v2"
)

// Registry keeps one isolated Conversation per id.
type Registry struct {
	opts  Options
	locks *concurrency.KeyedLocks

	mu    sync.RWMutex
	convs map[string]*Conversation
}

func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:  opts,
		locks: concurrency.NewKeyedLocks(),
		convs: make(map[string]*Conversation),
	}
}

func (r *Registry) Get(id string) (*Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.convs[id]
	return conv, ok
}

// GetOrCreate returns the conversation for id, creating it when unknown.
// An empty id always creates a conversation with a fresh id.
func (r *Registry) GetOrCreate(id string) *Conversation {
	if id != "" {
		if conv, ok := r.Get(id); ok {
			return conv
		}
	} else {
		id = ulid.Make().String()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if conv, ok := r.convs[id]; ok {
		return conv
	}

	conv := newConversation(id, r.opts, r.locks)
	r.convs[id] = conv
	slog.Debug("Conversation created", "conversation_id", id, "mode", conv.Mode())
	return conv
}

func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.convs, id)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.convs)
}

// Options returns the options every new conversation is built from.
func (r *Registry) Options() Options {
	return r.opts
}
