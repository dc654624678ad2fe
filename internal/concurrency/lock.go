package concurrency

import "sync"

// KeyedLocks tracks which keys have an operation in flight.
type KeyedLocks struct {
	held map[string]struct{}
	mu   sync.Mutex
}

func NewKeyedLocks() *KeyedLocks {
	return &KeyedLocks{
		held: make(map[string]struct{}),
	}
}

// TryLock marks key as busy. It reports false if key is already held.
func (m *KeyedLocks) TryLock(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.held[key]; busy {
		return false
	}
	m.held[key] = struct{}{}
	return true
}

func (m *KeyedLocks) Unlock(key string) {
	m.mu.Lock()
	delete(m.held, key)
	m.mu.Unlock()
}

func (m *KeyedLocks) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, busy := m.held[key]
	return busy
}
