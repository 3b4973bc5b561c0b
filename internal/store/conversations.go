package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrConversationNotFound = errors.New("conversation not found")

type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ThreadID  string    `json:"thread_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EnsureConversation returns the conversation for threadID, creating it on
// first use. Title and user are set only at creation time.
func (s *Store) EnsureConversation(ctx context.Context, userID, threadID, title string) (Conversation, error) {
	conv, err := s.LookupConversation(ctx, threadID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, ErrConversationNotFound) {
		return Conversation{}, err
	}

	now := time.Now().UTC()
	conv = Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		ThreadID:  threadID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, user_id, thread_id, title, created_at_unix, updated_at_unix)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(thread_id) DO NOTHING`,
		conv.ID, conv.UserID, conv.ThreadID, conv.Title, now.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}
	// Re-read in case a concurrent caller won the insert.
	return s.LookupConversation(ctx, threadID)
}

func (s *Store) LookupConversation(ctx context.Context, threadID string) (Conversation, error) {
	var (
		conv             Conversation
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(user_id, ''), thread_id, title, created_at_unix, updated_at_unix
		FROM conversations WHERE thread_id = ?`, threadID,
	).Scan(&conv.ID, &conv.UserID, &conv.ThreadID, &conv.Title, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, ErrConversationNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("lookup conversation: %w", err)
	}
	conv.CreatedAt = time.Unix(0, created).UTC()
	conv.UpdatedAt = time.Unix(0, updated).UTC()
	return conv, nil
}

// ListConversations returns the caller's conversations, most recently
// touched first.
func (s *Store) ListConversations(ctx context.Context, userID string, limit int) ([]Conversation, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(user_id, ''), thread_id, title, created_at_unix, updated_at_unix
		FROM conversations WHERE user_id = ?
		ORDER BY updated_at_unix DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []Conversation{}
	for rows.Next() {
		var (
			conv             Conversation
			created, updated int64
		)
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.ThreadID, &conv.Title, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conv.CreatedAt = time.Unix(0, created).UTC()
		conv.UpdatedAt = time.Unix(0, updated).UTC()
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// AppendTurn persists one turn on the conversation identified by threadID,
// creating the conversation record lazily on first use.
func (s *Store) AppendTurn(ctx context.Context, threadID, role, content, metadata string) (Message, error) {
	conv, err := s.EnsureConversation(ctx, "", threadID, "")
	if err != nil {
		return Message{}, err
	}

	now := time.Now().UTC()
	msg := Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: now,
	}
	var meta any
	if metadata != "" {
		meta = metadata
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, metadata, created_at_unix)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, conv.ID, msg.Role, msg.Content, meta, now.UnixNano(),
	); err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at_unix = ? WHERE id = ?`, now.UnixNano(), conv.ID,
	); err != nil {
		return Message{}, fmt.Errorf("touch conversation: %w", err)
	}
	return msg, nil
}

// LoadHistory returns the conversation's turns oldest first. An unknown
// thread yields an empty history, not an error.
func (s *Store) LoadHistory(ctx context.Context, threadID string) ([]Message, error) {
	conv, err := s.LookupConversation(ctx, threadID)
	if errors.Is(err, ErrConversationNotFound) {
		return []Message{}, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, COALESCE(metadata, ''), created_at_unix
		FROM messages WHERE conversation_id = ?
		ORDER BY created_at_unix ASC, rowid ASC`, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var (
			msg     Message
			created int64
		)
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.Metadata, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.CreatedAt = time.Unix(0, created).UTC()
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
