package api

import (
	"context"
	"net/http"

	"github.com/ashureev/leadintel/internal/chat"
	"github.com/ashureev/leadintel/internal/identity"
)

// chatView is the wire form of one conversation.
type chatView struct {
	ConversationID string        `json:"conversation_id"`
	Snapshot       chat.Snapshot `json:"chat"`
}

type chatMessageRequest struct {
	Text string `json:"text"`
}

func (h *Handler) conversation(r *http.Request) *chat.Orchestrator {
	return h.chats.Get(identity.KeyFromContext(r.Context()))
}

func chatBody(o *chat.Orchestrator, s chat.Snapshot) map[string]interface{} {
	return map[string]interface{}{
		"conversation_id": o.ID(),
		"chat":            s,
	}
}

// GetChat returns the transcript of the current tab's conversation.
func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	o := h.conversation(r)
	JSON(w, http.StatusOK, chatBody(o, o.Snapshot()))
}

// SendChatMessage sends one user message and waits for the assistant turn.
// The provider call is not tied to the client connection: once sent, its
// reply is appended even if the caller goes away.
func (h *Handler) SendChatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	o := h.conversation(r)
	snap, err := o.SendMessage(context.WithoutCancel(r.Context()), req.Text)
	respond(w, err, chatBody(o, snap))
}

// ClearChat empties the current tab's transcript.
func (h *Handler) ClearChat(w http.ResponseWriter, r *http.Request) {
	o := h.conversation(r)
	JSON(w, http.StatusOK, chatBody(o, o.ClearChat()))
}
