package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/leadintel/internal/domain"
	"github.com/ashureev/leadintel/internal/identity"
)

type credentialRequest struct {
	Token string `json:"token"`
}

// GetCredential returns the stored token for a provider, empty if never set.
func (h *Handler) GetCredential(w http.ResponseWriter, r *http.Request) {
	provider := domain.Provider(chi.URLParam(r, "provider"))
	token := h.vault.For(identity.UserIDFromContext(r.Context())).Get(r.Context(), provider)

	JSON(w, http.StatusOK, map[string]interface{}{
		"provider":   provider,
		"token":      token,
		"configured": token != "",
	})
}

// PutCredential overwrites the token for a provider. The token is not
// validated. A persistence failure is reported with 500, but the new token
// is already in effect for this process.
func (h *Handler) PutCredential(w http.ResponseWriter, r *http.Request) {
	provider := domain.Provider(chi.URLParam(r, "provider"))

	var req credentialRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	userID := identity.UserIDFromContext(r.Context())
	if !provider.Known() {
		slog.Debug("Storing credential for unknown provider", "user_id", userID, "provider", provider)
	}

	if err := h.vault.For(userID).Set(r.Context(), provider, req.Token); err != nil {
		Error(w, http.StatusInternalServerError, "failed to persist credential")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"provider":   provider,
		"configured": req.Token != "",
	})
}
