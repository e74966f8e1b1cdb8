package chat

import (
	"log/slog"

	"github.com/ashureev/leadintel/internal/credential"
	"github.com/ashureev/leadintel/internal/session"
)

// Registry keeps one conversation per device tab.
type Registry = session.Registry[*Orchestrator]

// NewRegistry creates conversations on demand, each reading credentials of
// its own device from vault.
func NewRegistry(cfg Config, completer Completer, vault *credential.Vault, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return session.NewRegistry(func(key session.Key) *Orchestrator {
		o := New(cfg, completer, vault.For(key.Device), logger.With("device", key.Device, "tab", key.Tab))
		logger.Debug("conversation started", "device", key.Device, "tab", key.Tab, "conversation_id", o.ID())
		return o
	})
}
