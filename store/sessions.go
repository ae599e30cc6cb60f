package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Session mirrors the `sessions` table (§3).
type Session struct {
	Token     string `db:"token"`
	UserID    string `db:"user_id"`
	CreatedAt int64  `db:"created_at"`
	ExpiresAt int64  `db:"expires_at"`
}

// DefaultSessionTTL is the TTL applied when UpsertSession is called without
// an explicit one (§4.3).
const DefaultSessionTTL = 3600 * time.Second

// UpsertSession inserts or replaces a session row for token. Idempotent:
// calling it twice with the same token just extends expires_at.
func (s *Store) UpsertSession(token, userID string, ttl time.Duration) (Session, error) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := time.Now()
	sess := Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
	_, err := s.db.Exec(
		`INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(token) DO UPDATE SET user_id=excluded.user_id, expires_at=excluded.expires_at`,
		sess.Token, sess.UserID, sess.CreatedAt, sess.ExpiresAt,
	)
	if err != nil {
		return Session{}, fmt.Errorf("upsert session: %w", err)
	}
	return sess, nil
}

// DeleteSession removes a session row (logout, or superseded by refresh).
func (s *Store) DeleteSession(token string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// GetSession looks up a session by token. Returns ErrNotFound if absent or
// expired.
func (s *Store) GetSession(token string) (Session, error) {
	var sess Session
	err := s.db.Get(&sess, `SELECT token, user_id, created_at, expires_at FROM sessions WHERE token = ?`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session: %w", ErrNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	if sess.ExpiresAt < time.Now().Unix() {
		return Session{}, fmt.Errorf("session expired: %w", ErrNotFound)
	}
	return sess, nil
}
