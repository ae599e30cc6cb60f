package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message mirrors the `messages` table (§3). Content is stored as opaque
// JSON text and round-tripped verbatim.
type Message struct {
	MessageID      string `db:"message_id"`
	ConversationID string `db:"conversation_id"`
	SenderID       string `db:"sender_id"`
	Content        string `db:"content"` // raw JSON object text
	Timestamp      int64  `db:"timestamp"`
}

// InsertMessage writes an immutable message row and returns it with its
// generated id and timestamp (§4.3).
func (s *Store) InsertMessage(conversationID, senderID, contentJSON string) (Message, error) {
	m := Message{
		MessageID:      uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        contentJSON,
		Timestamp:      time.Now().Unix(),
	}
	_, err := s.db.Exec(
		`INSERT INTO messages (message_id, conversation_id, sender_id, content, timestamp) VALUES (?, ?, ?, ?, ?)`,
		m.MessageID, m.ConversationID, m.SenderID, m.Content, m.Timestamp,
	)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}
