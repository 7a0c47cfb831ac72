package chat

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/taloschat/talos/internal/model/chat"
	"github.com/taloschat/talos/internal/ollama"
)

var (
	ErrConversationRequired = errors.New("conversation id is required")
	ErrMessageRequired      = errors.New("message id is required")
	ErrContentRequired      = errors.New("content is required")
	ErrTitleRequired        = errors.New("title is required")
	ErrModelRequired        = errors.New("model is required")
	ErrConversationNotFound = errors.New("conversation not found")
)

// Store is the durable source of truth for conversations and messages.
type Store interface {
	CreateConversation(ctx context.Context, title, model string) (chat.Conversation, error)
	ListConversations(ctx context.Context) ([]chat.Conversation, error)
	GetConversation(ctx context.Context, id string) (chat.Conversation, bool, error)
	AddMessage(ctx context.Context, conversationID string, role chat.Role, content string) (chat.Message, error)
	GetMessages(ctx context.Context, conversationID string) ([]chat.Message, error)
	DeleteConversation(ctx context.Context, id string) error
	RenameConversation(ctx context.Context, id, title string) error
	UpdateMessageContent(ctx context.Context, id, content string) error
	DeleteMessagesAfter(ctx context.Context, conversationID, afterMessageID string) error
}

// Completer is the remote generation boundary used for chat turns.
type Completer interface {
	Chat(ctx context.Context, model string, history []ollama.ChatMessage) (string, error)
}

// Service drives conversation persistence and chat turns. It holds no
// conversation state of its own; every step re-reads from the store.
type Service struct {
	store     Store
	completer Completer
}

// NewService wires the orchestrator to its store and completion client.
func NewService(store Store, completer Completer) *Service {
	return &Service{store: store, completer: completer}
}

// CreateConversation provisions a conversation bound to a model.
func (s *Service) CreateConversation(ctx context.Context, title, model string) (chat.Conversation, error) {
	if title == "" {
		return chat.Conversation{}, ErrTitleRequired
	}
	if model == "" {
		return chat.Conversation{}, ErrModelRequired
	}
	return s.store.CreateConversation(ctx, title, model)
}

// ListConversations returns all conversations, most recently active
// first.
func (s *Service) ListConversations(ctx context.Context) ([]chat.Conversation, error) {
	return s.store.ListConversations(ctx)
}

// GetMessages returns a conversation's messages in chronological order.
func (s *Service) GetMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	if conversationID == "" {
		return nil, ErrConversationRequired
	}
	return s.store.GetMessages(ctx, conversationID)
}

// AddMessage appends a message without triggering a model call. Used by
// editing flows that manage turns themselves.
func (s *Service) AddMessage(ctx context.Context, conversationID string, role chat.Role, content string) (chat.Message, error) {
	if conversationID == "" {
		return chat.Message{}, ErrConversationRequired
	}
	if content == "" {
		return chat.Message{}, ErrContentRequired
	}
	return s.store.AddMessage(ctx, conversationID, role, content)
}

// DeleteConversation removes a conversation and all of its messages.
func (s *Service) DeleteConversation(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrConversationRequired
	}
	return s.store.DeleteConversation(ctx, conversationID)
}

// RenameConversation updates a conversation title.
func (s *Service) RenameConversation(ctx context.Context, conversationID, title string) error {
	if conversationID == "" {
		return ErrConversationRequired
	}
	if title == "" {
		return ErrTitleRequired
	}
	return s.store.RenameConversation(ctx, conversationID, title)
}

// UpdateMessageContent edits a stored message in place.
func (s *Service) UpdateMessageContent(ctx context.Context, messageID, content string) error {
	if messageID == "" {
		return ErrMessageRequired
	}
	return s.store.UpdateMessageContent(ctx, messageID, content)
}

// TruncateAfter discards every message after the given one, used to
// abandon a branch before regenerating. Pure pass-through beyond id
// validation.
func (s *Service) TruncateAfter(ctx context.Context, conversationID, afterMessageID string) error {
	if conversationID == "" {
		return ErrConversationRequired
	}
	if afterMessageID == "" {
		return ErrMessageRequired
	}
	return s.store.DeleteMessagesAfter(ctx, conversationID, afterMessageID)
}

// SendTurn commits the user message, replays the full stored history to
// the model, and commits the assistant reply. If the remote call fails
// the user message stays persisted: the conversation shows an
// unanswered turn rather than silently losing input. An empty model
// falls back to the conversation's bound model.
func (s *Service) SendTurn(ctx context.Context, conversationID, content, model string) (string, error) {
	if conversationID == "" {
		return "", ErrConversationRequired
	}
	if content == "" {
		return "", ErrContentRequired
	}

	model, err := s.resolveModel(ctx, conversationID, model)
	if err != nil {
		return "", err
	}

	if _, err := s.store.AddMessage(ctx, conversationID, chat.RoleUser, content); err != nil {
		return "", err
	}

	return s.generate(ctx, conversationID, model)
}

// RegenerateTurn derives a fresh reply from the existing history and
// appends it as a new assistant message. It never removes a prior
// reply; callers truncate first when they want replacement semantics.
func (s *Service) RegenerateTurn(ctx context.Context, conversationID, model string) (string, error) {
	if conversationID == "" {
		return "", ErrConversationRequired
	}

	model, err := s.resolveModel(ctx, conversationID, model)
	if err != nil {
		return "", err
	}

	return s.generate(ctx, conversationID, model)
}

func (s *Service) resolveModel(ctx context.Context, conversationID, model string) (string, error) {
	conv, ok, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrConversationNotFound
	}
	if model == "" {
		return conv.Model, nil
	}
	return model, nil
}

// generate is the shared tail of both turn operations: re-read history,
// call the model, commit the reply.
func (s *Service) generate(ctx context.Context, conversationID, model string) (string, error) {
	history, err := s.store.GetMessages(ctx, conversationID)
	if err != nil {
		return "", err
	}

	reply, err := s.completer.Chat(ctx, model, Project(history))
	if err != nil {
		return "", err
	}

	if _, err := s.store.AddMessage(ctx, conversationID, chat.RoleAssistant, reply); err != nil {
		return "", err
	}

	log.Debug().
		Str("conversation", conversationID).
		Str("model", model).
		Int("history", len(history)).
		Int("reply_chars", len(reply)).
		Msg("turn completed")

	return reply, nil
}
