package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/ashureev/leadintel/internal/identity"
	"github.com/ashureev/leadintel/internal/session"
)

// InitialFrames returns the frames a tab receives right after connecting.
type InitialFrames func(ctx context.Context, key session.Key) []Frame

// WebSocketHandler upgrades /ws/events requests and attaches them to the hub.
type WebSocketHandler struct {
	hub           *Hub
	initial       InitialFrames
	onActivity    func(session.Key)
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler. initial and
// onActivity may be nil.
func NewWebSocketHandler(hub *Hub, initial InitialFrames, onActivity func(session.Key), allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hub,
		initial:       initial,
		onActivity:    onActivity,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// clientMessage is what a tab may send.
type clientMessage struct {
	Type string `json:"type"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := identity.KeyFromContext(r.Context())
	slog.Info("Live connection request", "user_id", key.Device, "session_id", key.Tab, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", key.Device)
		return
	}

	c := newClient(ws)
	h.hub.register(key, c)
	defer func() {
		h.hub.unregister(key, c)
		c.stop(websocket.StatusNormalClosure, "session ended")
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if h.initial != nil {
		for _, f := range h.initial(ctx, key) {
			h.hub.Publish(key, f.Kind, f.Data)
		}
	}

	go func() {
		defer cancel()
		c.writeLoop(ctx)
	}()

	h.readLoop(ctx, ws, c, key)
	slog.Info("Live session ended", "user_id", key.Device, "session_id", key.Tab)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, c *client, key session.Key) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", key.Device)
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "user_id", key.Device)
			}
			return
		}

		if h.onActivity != nil {
			h.onActivity(key)
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			c.enqueue([]byte(`{"kind":"pong"}`))
		}
	}
}
