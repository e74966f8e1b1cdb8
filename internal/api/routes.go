package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/leadintel/internal/identity"
	"github.com/ashureev/leadintel/internal/middleware"
)

// RegisterRoutes registers the dashboard API. Routes that call an AI
// provider go through limiter, keyed by device.
func (h *Handler) RegisterRoutes(r chi.Router, limiter *middleware.RateLimiter) {
	limited := middleware.RateLimit(limiter, func(r *http.Request) string {
		return identity.UserIDFromContext(r.Context())
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Get("/config", h.GetConfig)

		r.Get("/credentials/{provider}", h.GetCredential)
		r.Put("/credentials/{provider}", h.PutCredential)

		r.Get("/chat", h.GetChat)
		r.With(limited).Post("/chat/messages", h.SendChatMessage)
		r.Delete("/chat", h.ClearChat)

		r.Get("/inference/tasks", h.ListTasks)
		r.Get("/inference", h.GetInference)
		r.Put("/inference/selected", h.SelectTask)
		r.With(limited).Post("/inference", h.SubmitInference)

		r.Get("/views", h.ListViews)
		r.Get("/views/active", h.GetActiveView)
		r.Put("/views/active", h.SetActiveView)
		r.Get("/views/render", h.RenderView)
	})
}
