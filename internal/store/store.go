package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/taloschat/talos/internal/model/chat"
)

// StorageError marks any persistence failure: I/O, constraint violation,
// connection loss. Op names the store operation that failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// Store owns the SQLite database holding conversations and messages.
// It is the single source of truth; callers never cache its state.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database file at path, ensuring that the
// parent directory exists. Foreign keys are enforced so deleting a
// conversation cascades to its messages.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, storageErr("open", fmt.Errorf("create db directory %s: %w", dir, err))
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=1")
	if err != nil {
		return nil, storageErr("open", err)
	}
	// SQLite allows one writer at a time; a single pooled connection
	// serializes concurrent transactions instead of surfacing
	// SQLITE_BUSY to callers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, storageErr("open", fmt.Errorf("ping db at %s: %w", path, err))
	}

	return &Store{db: db}, nil
}

// Init creates the schema. Safe to run on every startup.
func (s *Store) Init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			model TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			seq INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			UNIQUE (conversation_id, seq)
		);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation_seq ON messages(conversation_id, seq);
	`)
	if err != nil {
		return storageErr("init", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateConversation inserts a conversation with a fresh id and returns
// the committed row.
func (s *Store) CreateConversation(ctx context.Context, title, model string) (chat.Conversation, error) {
	conv := chat.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		Model:     model,
		CreatedAt: time.Now().UTC(),
	}
	conv.UpdatedAt = conv.CreatedAt

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, model, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		conv.ID, conv.Title, conv.Model, conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return chat.Conversation{}, storageErr("create conversation", err)
	}
	return conv, nil
}

// ListConversations returns every conversation, most recently active
// first.
func (s *Store) ListConversations(ctx context.Context) ([]chat.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, model, created_at, updated_at FROM conversations ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, storageErr("list conversations", err)
	}
	defer rows.Close()

	conversations := make([]chat.Conversation, 0)
	for rows.Next() {
		var conv chat.Conversation
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.Model, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, storageErr("list conversations", err)
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list conversations", err)
	}
	return conversations, nil
}

// GetConversation fetches a single conversation. The second return
// value reports whether it exists.
func (s *Store) GetConversation(ctx context.Context, id string) (chat.Conversation, bool, error) {
	var conv chat.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, model, created_at, updated_at FROM conversations WHERE id = ?`, id,
	).Scan(&conv.ID, &conv.Title, &conv.Model, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return chat.Conversation{}, false, nil
	}
	if err != nil {
		return chat.Conversation{}, false, storageErr("get conversation", err)
	}
	return conv, true, nil
}

// AddMessage inserts a message and bumps the parent conversation's
// activity time in one transaction, so readers never observe one
// without the other. The sequence number is computed inside the same
// transaction, which keeps per-conversation order exact even when two
// inserts share a wall-clock timestamp. The returned Message is the
// committed row, not an echo of the input.
func (s *Store) AddMessage(ctx context.Context, conversationID string, role chat.Role, content string) (chat.Message, error) {
	if _, err := chat.ParseRole(string(role)); err != nil {
		return chat.Message{}, storageErr("add message", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return chat.Message{}, storageErr("add message", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = ?`, conversationID,
	).Scan(&seq)
	if err != nil {
		return chat.Message{}, storageErr("add message", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, seq, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, conversationID, string(role), content, seq, now,
	)
	if err != nil {
		return chat.Message{}, storageErr("add message", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, now, conversationID,
	)
	if err != nil {
		return chat.Message{}, storageErr("add message", err)
	}

	msg, err := scanMessage(tx.QueryRowContext(ctx,
		`SELECT id, conversation_id, role, content, seq, created_at FROM messages WHERE id = ?`, id,
	))
	if err != nil {
		return chat.Message{}, storageErr("add message", err)
	}

	if err := tx.Commit(); err != nil {
		return chat.Message{}, storageErr("add message", err)
	}
	return msg, nil
}

// GetMessages returns a conversation's messages in chronological order.
// An unknown conversation yields an empty slice, not an error.
func (s *Store) GetMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, seq, created_at FROM messages WHERE conversation_id = ? ORDER BY seq ASC`,
		conversationID,
	)
	if err != nil {
		return nil, storageErr("get messages", err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, storageErr("get messages", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("get messages", err)
	}
	return messages, nil
}

// DeleteConversation removes a conversation and, via cascade, all of
// its messages. Deleting an unknown id is not an error.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return storageErr("delete conversation", err)
	}
	return nil
}

// RenameConversation updates a conversation's title in place. An
// unknown id is a no-op success; callers cannot tell the two apart.
func (s *Store) RenameConversation(ctx context.Context, id, title string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE conversations SET title = ? WHERE id = ?`, title, id); err != nil {
		return storageErr("rename conversation", err)
	}
	return nil
}

// UpdateMessageContent replaces a message's content in place. Same
// no-op contract as RenameConversation.
func (s *Store) UpdateMessageContent(ctx context.Context, id, content string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE messages SET content = ? WHERE id = ?`, content, id); err != nil {
		return storageErr("update message", err)
	}
	return nil
}

// DeleteMessagesAfter removes every message in the conversation that
// was inserted after the boundary message. The comparison uses the
// per-conversation sequence, so the boundary is exact regardless of
// clock resolution. A boundary message that does not exist in the
// conversation is a constraint failure.
func (s *Store) DeleteMessagesAfter(ctx context.Context, conversationID, afterMessageID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("truncate", err)
	}
	defer tx.Rollback()

	var boundary int64
	err = tx.QueryRowContext(ctx,
		`SELECT seq FROM messages WHERE id = ? AND conversation_id = ?`, afterMessageID, conversationID,
	).Scan(&boundary)
	if err == sql.ErrNoRows {
		return storageErr("truncate", fmt.Errorf("message %s not found in conversation %s", afterMessageID, conversationID))
	}
	if err != nil {
		return storageErr("truncate", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id = ? AND seq > ?`, conversationID, boundary,
	)
	if err != nil {
		return storageErr("truncate", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("truncate", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (chat.Message, error) {
	var msg chat.Message
	var role string
	if err := row.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &msg.Seq, &msg.CreatedAt); err != nil {
		return chat.Message{}, err
	}
	msg.Role = chat.Role(role)
	return msg, nil
}
