package store

import (
	"fmt"
	"time"
)

// OfflineEntry mirrors the `offline_queue` table (§3). Event is the
// serialized (JSON) event that would have been pushed live.
type OfflineEntry struct {
	ID        int64  `db:"id"`
	UserID    string `db:"user_id"`
	Event     string `db:"event"`
	CreatedAt int64  `db:"created_at"`
}

// EnqueueOfflineMessage appends one event to a user's FIFO queue.
func (s *Store) EnqueueOfflineMessage(userID, eventJSON string) error {
	_, err := s.db.Exec(
		`INSERT INTO offline_queue (user_id, event, created_at) VALUES (?, ?, ?)`,
		userID, eventJSON, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("enqueue offline message: %w", err)
	}
	return nil
}

// ConsumeOfflineMessages returns a user's queued events in insertion order
// and deletes them in the same transaction — partial drain cannot occur
// (§4.3): either every entry existing at call time is returned and removed,
// or none are (on error, the transaction rolls back).
func (s *Store) ConsumeOfflineMessages(userID string) ([]OfflineEntry, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("begin consume offline: %w", err)
	}
	defer tx.Rollback()

	var entries []OfflineEntry
	if err := tx.Select(&entries,
		`SELECT id, user_id, event, created_at FROM offline_queue WHERE user_id = ? ORDER BY id`, userID,
	); err != nil {
		return nil, fmt.Errorf("select offline queue: %w", err)
	}

	if len(entries) > 0 {
		if _, err := tx.Exec(`DELETE FROM offline_queue WHERE user_id = ?`, userID); err != nil {
			return nil, fmt.Errorf("delete offline queue: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit consume offline: %w", err)
	}
	return entries, nil
}
