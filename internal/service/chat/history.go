package chat

import (
	"github.com/taloschat/talos/internal/model/chat"
	"github.com/taloschat/talos/internal/ollama"
)

// Project reduces stored messages to the ordered role/content pairs a
// completion request carries, dropping every other field. Order is
// preserved and an empty history projects to an empty slice; a model
// call with zero history is legal.
func Project(messages []chat.Message) []ollama.ChatMessage {
	history := make([]ollama.ChatMessage, 0, len(messages))
	for _, msg := range messages {
		history = append(history, ollama.ChatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return history
}
