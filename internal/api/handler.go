// Package api provides HTTP handlers for the dashboard API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ashureev/leadintel/internal/chat"
	"github.com/ashureev/leadintel/internal/config"
	"github.com/ashureev/leadintel/internal/credential"
	"github.com/ashureev/leadintel/internal/domain"
	"github.com/ashureev/leadintel/internal/inference"
	"github.com/ashureev/leadintel/internal/live"
	"github.com/ashureev/leadintel/internal/session"
	"github.com/ashureev/leadintel/internal/store"
	"github.com/ashureev/leadintel/internal/views"
)

const maxBodyBytes = 1 << 20

// Handler provides common handler utilities and the dashboard's shared state.
type Handler struct {
	repo       store.Repository
	vault      *credential.Vault
	chats      *chat.Registry
	inferences *inference.Registry
	navigator  *views.Navigator
	hub        *live.Hub
	cfg        *config.Config
}

// Deps groups what NewHandler wires together.
type Deps struct {
	Repo       store.Repository
	Vault      *credential.Vault
	Chats      *chat.Registry
	Inferences *inference.Registry
	Hub        *live.Hub
	Config     *config.Config
}

// NewHandler creates a Handler and connects orchestrator changes to the
// live hub. The view navigator is built here because its renderers read
// the orchestrators.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		repo:       d.Repo,
		vault:      d.Vault,
		chats:      d.Chats,
		inferences: d.Inferences,
		hub:        d.Hub,
		cfg:        d.Config,
	}
	h.navigator = views.NewNavigator(h.renderers())

	h.chats.OnCreate(func(key session.Key, o *chat.Orchestrator) {
		o.Subscribe(func(s chat.Snapshot) {
			h.hub.Publish(key, live.KindChat, chatView{ConversationID: o.ID(), Snapshot: s})
		})
	})
	h.inferences.OnCreate(func(key session.Key, o *inference.Orchestrator) {
		o.Subscribe(func(s inference.Snapshot) {
			h.hub.Publish(key, live.KindInference, s)
		})
	})
	h.navigator.OnEvict(func(key session.Key, _ *views.Container) {
		h.hub.CloseTab(key)
	})
	return h
}

// Navigator exposes the per-tab view containers.
func (h *Handler) Navigator() *views.Navigator {
	return h.navigator
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// statusFor maps an orchestrator error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case domain.IsTransport(err), errors.Is(err, domain.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respond writes body with the status for err, adding an "error" field
// when err is set. Orchestrator state is always returned so the dashboard
// can render the transcript or result slot either way.
func respond(w http.ResponseWriter, err error, body map[string]interface{}) {
	if err != nil {
		body["error"] = err.Error()
	}
	JSON(w, statusFor(err), body)
}
