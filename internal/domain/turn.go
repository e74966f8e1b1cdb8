package domain

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is the wire form of one conversation entry sent to the chat provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Turn is one message in a chat transcript.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Message converts the turn into its provider wire form.
func (t Turn) Message() Message {
	return Message{Role: t.Role, Content: t.Content}
}
