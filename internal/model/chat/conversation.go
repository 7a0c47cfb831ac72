package chat

import "time"

// Conversation is a named thread of messages bound to one model. The
// model is fixed at creation; UpdatedAt moves on every message insert
// and drives display ordering.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
