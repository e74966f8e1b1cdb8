package inference

import (
	"log/slog"

	"github.com/ashureev/leadintel/internal/credential"
	"github.com/ashureev/leadintel/internal/session"
)

// Registry keeps one orchestrator, and so one result slot, per device tab.
type Registry = session.Registry[*Orchestrator]

// NewRegistry creates orchestrators on demand, each reading credentials of
// its own device from vault.
func NewRegistry(runner Runner, vault *credential.Vault, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return session.NewRegistry(func(key session.Key) *Orchestrator {
		return New(runner, vault.For(key.Device), logger.With("device", key.Device, "tab", key.Tab))
	})
}
