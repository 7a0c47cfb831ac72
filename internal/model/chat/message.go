package chat

import (
	"fmt"
	"time"
)

// Role identifies the author of a message. The set is closed; the store
// rejects anything outside it.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ParseRole validates a raw role string against the closed set.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleUser, RoleAssistant, RoleSystem:
		return Role(raw), nil
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

// Message persists a single turn fragment of a conversation. Seq is a
// per-conversation counter assigned at insert; it defines chronological
// order even when two inserts land on the same wall-clock instant.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Seq            int64     `json:"seq"`
	CreatedAt      time.Time `json:"createdAt"`
}
