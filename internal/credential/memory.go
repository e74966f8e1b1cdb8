package credential

import (
	"context"
	"sync"

	"github.com/ashureev/leadintel/internal/domain"
)

// MemoryAdapter keeps credentials in process memory.
type MemoryAdapter struct {
	mu     sync.RWMutex
	tokens map[string]string
	saves  int
}

// NewMemoryAdapter creates an empty in-memory adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{tokens: make(map[string]string)}
}

func memoryKey(owner string, provider domain.Provider) string {
	return owner + "\x00" + string(provider)
}

// Load implements Adapter.
func (m *MemoryAdapter) Load(_ context.Context, owner string, provider domain.Provider) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens[memoryKey(owner, provider)], nil
}

// Save implements Adapter.
func (m *MemoryAdapter) Save(_ context.Context, owner string, provider domain.Provider, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[memoryKey(owner, provider)] = token
	m.saves++
	return nil
}

// Saves returns how many times Save was called.
func (m *MemoryAdapter) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
