// Package credential persists one bearer token per provider for a device.
package credential

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ashureev/leadintel/internal/domain"
)

// Adapter is the persistence backend behind a Store.
type Adapter interface {
	// Load returns the stored token, or "" when none was ever saved.
	Load(ctx context.Context, owner string, provider domain.Provider) (string, error)
	// Save overwrites the stored token.
	Save(ctx context.Context, owner string, provider domain.Provider, token string) error
}

// Store holds the credentials of one owner (device). Writes go through to
// the adapter and are cached, so a Set is visible to the next Get in this
// process even if persistence failed.
type Store struct {
	owner   string
	adapter Adapter
	logger  *slog.Logger

	mu     sync.RWMutex
	cached map[domain.Provider]string
}

// NewStore creates a store for owner backed by adapter. Log lines carry
// the owner.
func NewStore(owner string, adapter Adapter, logger *slog.Logger) *Store {
	if adapter == nil {
		adapter = NewMemoryAdapter()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		owner:   owner,
		adapter: adapter,
		logger:  logger.With("owner", owner),
		cached:  make(map[domain.Provider]string),
	}
}

// Get returns the last-written token for provider, or "" if never set.
// Load failures are logged and read as an empty credential.
func (s *Store) Get(ctx context.Context, provider domain.Provider) string {
	s.mu.RLock()
	token, ok := s.cached[provider]
	s.mu.RUnlock()
	if ok {
		return token
	}

	token, err := s.adapter.Load(ctx, s.owner, provider)
	if err != nil {
		s.logger.Warn("credential load failed", "provider", provider, "error", err)
		return ""
	}

	s.mu.Lock()
	// A concurrent Set wins over what we just loaded.
	if current, ok := s.cached[provider]; ok {
		token = current
	} else {
		s.cached[provider] = token
	}
	s.mu.Unlock()
	return token
}

// Set stores token for provider. The token is never validated.
func (s *Store) Set(ctx context.Context, provider domain.Provider, token string) error {
	s.mu.Lock()
	s.cached[provider] = token
	s.mu.Unlock()

	if err := s.adapter.Save(ctx, s.owner, provider, token); err != nil {
		s.logger.Warn("credential persist failed", "provider", provider, "error", err)
		return fmt.Errorf("persist %s credential: %w", provider, err)
	}
	return nil
}

// Configured reports whether a non-empty token exists for provider.
func (s *Store) Configured(ctx context.Context, provider domain.Provider) bool {
	return s.Get(ctx, provider) != ""
}

// Vault hands out one Store per owner over a shared adapter.
type Vault struct {
	adapter Adapter
	logger  *slog.Logger

	mu     sync.Mutex
	stores map[string]*Store
}

// NewVault creates a vault over adapter. Every store logs through logger.
func NewVault(adapter Adapter, logger *slog.Logger) *Vault {
	if adapter == nil {
		adapter = NewMemoryAdapter()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Vault{
		adapter: adapter,
		logger:  logger,
		stores:  make(map[string]*Store),
	}
}

// For returns the store for owner, creating it on first use.
func (v *Vault) For(owner string) *Store {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.stores[owner]; ok {
		return s
	}
	s := NewStore(owner, v.adapter, v.logger)
	v.stores[owner] = s
	return s
}
