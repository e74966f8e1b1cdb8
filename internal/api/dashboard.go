package api

import (
	"net/http"

	"github.com/ashureev/leadintel/internal/domain"
	"github.com/ashureev/leadintel/internal/identity"
	"github.com/ashureev/leadintel/internal/inference"
	"github.com/ashureev/leadintel/internal/views"
)

// GetMe returns the current device's information.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	device, err := h.repo.GetDevice(r.Context(), userID)
	if err != nil || device == nil {
		Error(w, http.StatusUnauthorized, "device not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":    device.UserID,
		"username":   device.Username,
		"session_id": identity.SessionIDFromContext(r.Context()),
		"created_at": device.CreatedAt,
		"live":       h.hub.Connected(identity.KeyFromContext(r.Context())),
	})
}

type providerStatus struct {
	Provider   domain.Provider `json:"provider"`
	Configured bool            `json:"configured"`
}

// GetConfig returns the server configuration for the frontend.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"chat_model":    h.cfg.Chat.Model,
		"history_limit": h.cfg.Chat.HistoryLimit,
		"providers":     h.providersFor(r.Context(), identity.UserIDFromContext(r.Context())),
		"tasks":         inference.Tasks(),
		"default_task":  inference.DefaultTask,
		"views":         views.Sidebar(),
		"default_view":  views.Default,
	})
}
