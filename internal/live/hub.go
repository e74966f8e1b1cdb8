// Package live pushes orchestrator and view changes to dashboard tabs over
// WebSocket connections.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/leadintel/internal/session"
	"github.com/ashureev/leadintel/internal/telemetry"
)

// Kind tags a frame with the component it describes.
type Kind string

const (
	KindChat      Kind = "chat"
	KindInference Kind = "inference"
	KindView      Kind = "view"
)

// Frame is one message sent to a tab.
type Frame struct {
	Kind Kind `json:"kind"`
	Data any  `json:"data"`
}

const (
	sendQueueSize = 32
	writeTimeout  = 10 * time.Second
)

// conn is the part of *websocket.Conn the hub writes through.
type conn interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// client owns the send queue of one connection. A slow client drops its
// oldest queued frame rather than blocking publishers.
type client struct {
	conn conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(c conn) *client {
	return &client{
		conn: c,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
}

func (c *client) enqueue(data []byte) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- data:
		return
	default:
	}

	// Queue full: drop the oldest frame to make room.
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- data:
	default:
		slog.Debug("Live frame dropped", "queue_len", len(c.send))
	}
}

func (c *client) stop(code websocket.StatusCode, reason string) {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close(code, reason)
	})
}

// writeLoop drains the queue until the client stops or a write fails.
func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case data := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				slog.Debug("Live write error", "error", err)
				return
			}
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Hub tracks one connection per device tab.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[string]*client
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		active: make(map[string]map[string]*client),
	}
}

// register adds a connection for key, replacing any previous one. The
// replaced connection is closed after the hub lock is released.
func (h *Hub) register(key session.Key, c *client) {
	h.mu.Lock()
	if _, exists := h.active[key.Device]; !exists {
		h.active[key.Device] = make(map[string]*client)
	}

	existing, exists := h.active[key.Device][key.Tab]
	replaced := exists && existing != c
	if replaced {
		telemetry.LiveConnections.Dec()
	}
	h.active[key.Device][key.Tab] = c
	telemetry.LiveConnections.Inc()
	h.mu.Unlock()

	if replaced {
		existing.stop(websocket.StatusNormalClosure, "session replaced")
	}
	slog.Info("Live session registered", "user_id", key.Device, "session_id", key.Tab)
}

// unregister removes c if it is still the connection for key.
func (h *Hub) unregister(key session.Key, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if tabs, ok := h.active[key.Device]; ok {
		if current, exists := tabs[key.Tab]; exists && current == c {
			delete(tabs, key.Tab)
			if len(tabs) == 0 {
				delete(h.active, key.Device)
			}
			telemetry.LiveConnections.Dec()
			slog.Info("Live session unregistered", "user_id", key.Device, "session_id", key.Tab)
		}
	}
}

// Connected reports whether key has a live connection.
func (h *Hub) Connected(key session.Key) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.active[key.Device][key.Tab]
	return ok
}

// Publish sends a frame to the tab identified by key, if connected.
func (h *Hub) Publish(key session.Key, kind Kind, data any) {
	h.mu.RLock()
	c, ok := h.active[key.Device][key.Tab]
	h.mu.RUnlock()
	if !ok {
		return
	}

	payload, err := json.Marshal(Frame{Kind: kind, Data: data})
	if err != nil {
		slog.Error("Failed to encode live frame", "kind", kind, "error", err)
		return
	}
	c.enqueue(payload)
}

// CloseTab terminates the connection of one tab.
func (h *Hub) CloseTab(key session.Key) {
	h.mu.Lock()
	var c *client
	if tabs, ok := h.active[key.Device]; ok {
		if c, ok = tabs[key.Tab]; ok {
			delete(tabs, key.Tab)
			telemetry.LiveConnections.Dec()
		}
		if len(tabs) == 0 {
			delete(h.active, key.Device)
		}
	}
	h.mu.Unlock()

	if c != nil {
		c.stop(websocket.StatusNormalClosure, "session closed")
	}
}

// CloseAll terminates every connection, e.g. on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	active := h.active
	h.active = make(map[string]map[string]*client)
	h.mu.Unlock()

	for device, tabs := range active {
		for tab, c := range tabs {
			telemetry.LiveConnections.Dec()
			c.stop(websocket.StatusGoingAway, "server shutting down")
			slog.Info("Live session closed", "user_id", device, "session_id", tab)
		}
	}
}
