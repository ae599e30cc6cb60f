package store

import (
	"fmt"
	"sort"
	"time"
)

const (
	StateOnline  = "online"
	StateOffline = "offline"
)

// UpdatePresence unconditionally upserts a user's presence state (§4.3).
func (s *Store) UpdatePresence(userID, state string) error {
	now := time.Now().Unix()
	_, err := s.db.Exec(
		`INSERT INTO presence (user_id, state, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET state=excluded.state, updated_at=excluded.updated_at`,
		userID, state, now,
	)
	if err != nil {
		return fmt.Errorf("update presence: %w", err)
	}
	return nil
}

// ListOnlineUsers returns every user_id whose presence state is online,
// sorted ascending (§4.3).
func (s *Store) ListOnlineUsers() ([]string, error) {
	var ids []string
	if err := s.db.Select(&ids, `SELECT user_id FROM presence WHERE state = ?`, StateOnline); err != nil {
		return nil, fmt.Errorf("list online users: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}
