package conversation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// MessageStore is the append-only message log in Postgres. The Redis
// transcript keeps only a recent window; this table is the durable record.
type MessageStore struct {
	db DB
}

// NewMessageStore creates a message store.
func NewMessageStore(db DB) *MessageStore {
	if db == nil {
		panic("conversation: db required")
	}
	return &MessageStore{db: db}
}

// Append writes one message. Messages are never updated or deleted.
func (s *MessageStore) Append(ctx context.Context, msg Message) (Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO conversation_messages (id, conversation_id, direction, author, body, kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at`,
		msg.ID, msg.ConversationID, msg.Direction, msg.Author, msg.Body, msg.Kind,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("conversation: append message: %w", err)
	}
	return msg, nil
}

// ListByConversation returns the full log in chronological order.
func (s *MessageStore) ListByConversation(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, conversation_id, direction, author, body, kind, created_at
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("conversation: list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Direction, &m.Author, &m.Body, &m.Kind, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
