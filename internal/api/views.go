package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ashureev/leadintel/internal/domain"
	"github.com/ashureev/leadintel/internal/identity"
	"github.com/ashureev/leadintel/internal/inference"
	"github.com/ashureev/leadintel/internal/live"
	"github.com/ashureev/leadintel/internal/session"
	"github.com/ashureev/leadintel/internal/views"
)

type setViewRequest struct {
	ID views.ID `json:"id"`
}

// renderers builds the views the backend knows how to render. Leads,
// analytics and scoring are pure presentation and render an empty panel.
func (h *Handler) renderers() map[views.ID]views.Renderer {
	return map[views.ID]views.Renderer{
		views.Dashboard: views.RenderFunc(func(ctx context.Context, key session.Key) (any, error) {
			c := h.chats.Get(key)
			return map[string]interface{}{
				"providers":      h.providersFor(ctx, key.Device),
				"chat_turns":     len(c.Transcript()),
				"inference_busy": h.inferences.Get(key).Busy(),
			}, nil
		}),
		views.AIModels: views.RenderFunc(func(_ context.Context, key session.Key) (any, error) {
			return map[string]interface{}{
				"tasks":     inference.Tasks(),
				"inference": h.inferences.Get(key).Snapshot(),
			}, nil
		}),
		views.MistralChat: views.RenderFunc(func(_ context.Context, key session.Key) (any, error) {
			o := h.chats.Get(key)
			return chatView{ConversationID: o.ID(), Snapshot: o.Snapshot()}, nil
		}),
		views.Config: views.RenderFunc(func(ctx context.Context, key session.Key) (any, error) {
			return map[string]interface{}{
				"providers":     h.providersFor(ctx, key.Device),
				"chat_model":    h.cfg.Chat.Model,
				"temperature":   h.cfg.Chat.Temperature,
				"max_tokens":    h.cfg.Chat.MaxTokens,
				"history_limit": h.cfg.Chat.HistoryLimit,
			}, nil
		}),
	}
}

func (h *Handler) providersFor(ctx context.Context, device string) []providerStatus {
	store := h.vault.For(device)
	out := make([]providerStatus, 0, len(domain.Providers()))
	for _, p := range domain.Providers() {
		out = append(out, providerStatus{Provider: p, Configured: store.Configured(ctx, p)})
	}
	return out
}

func (h *Handler) container(r *http.Request) (*views.Container, session.Key) {
	key := identity.KeyFromContext(r.Context())
	return h.navigator.Get(key), key
}

// ListViews returns the sidebar and the active view.
func (h *Handler) ListViews(w http.ResponseWriter, r *http.Request) {
	c, _ := h.container(r)
	JSON(w, http.StatusOK, map[string]interface{}{
		"views":  views.Sidebar(),
		"active": c.Active(),
	})
}

// GetActiveView returns the active view id of the current tab.
func (h *Handler) GetActiveView(w http.ResponseWriter, r *http.Request) {
	c, _ := h.container(r)
	JSON(w, http.StatusOK, map[string]interface{}{"active": c.Active()})
}

// SetActiveView switches the current tab's view. Any id is accepted.
func (h *Handler) SetActiveView(w http.ResponseWriter, r *http.Request) {
	var req setViewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	c, key := h.container(r)
	c.SetActive(req.ID)
	h.hub.Publish(key, live.KindView, map[string]interface{}{"active": req.ID})
	JSON(w, http.StatusOK, map[string]interface{}{"active": c.Active()})
}

// RenderView renders only the active view of the current tab.
func (h *Handler) RenderView(w http.ResponseWriter, r *http.Request) {
	c, key := h.container(r)
	panel, err := c.Render(r.Context())
	if err != nil {
		slog.Error("Failed to render view", "user_id", key.Device, "view", panel.ID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to render view")
		return
	}
	JSON(w, http.StatusOK, panel)
}

// InitialFrames returns what a freshly connected tab needs to draw itself.
func (h *Handler) InitialFrames(_ context.Context, key session.Key) []live.Frame {
	frames := []live.Frame{
		{Kind: live.KindView, Data: map[string]interface{}{"active": h.navigator.Get(key).Active()}},
	}
	if o, ok := h.chats.Peek(key); ok {
		frames = append(frames, live.Frame{Kind: live.KindChat, Data: chatView{ConversationID: o.ID(), Snapshot: o.Snapshot()}})
	}
	if o, ok := h.inferences.Peek(key); ok {
		frames = append(frames, live.Frame{Kind: live.KindInference, Data: o.Snapshot()})
	}
	return frames
}

// Touch marks every piece of tab state as recently used.
func (h *Handler) Touch(key session.Key) {
	h.navigator.Touch(key)
	h.chats.Touch(key)
	h.inferences.Touch(key)
}
