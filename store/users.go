package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// User mirrors the `users` table (§3).
type User struct {
	UserID       string `db:"user_id"`
	DisplayName  string `db:"display_name"`
	PasswordHash string `db:"password_hash"`
	CreatedAt    int64  `db:"created_at"`
}

// CreateUser inserts a new user row. Returns ErrConflict if user_id already
// exists (§4.3, §4.6).
func (s *Store) CreateUser(userID, displayName, passwordHash string) (User, error) {
	if displayName == "" {
		displayName = userID
	}
	u := User{
		UserID:       userID,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().Unix(),
	}
	_, err := s.db.Exec(
		`INSERT INTO users (user_id, display_name, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.UserID, u.DisplayName, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, fmt.Errorf("user %q: %w", userID, ErrConflict)
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUser fetches a user by id. Returns ErrNotFound if absent.
func (s *Store) GetUser(userID string) (User, error) {
	var u User
	err := s.db.Get(&u, `SELECT user_id, display_name, password_hash, created_at FROM users WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %q: %w", userID, ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// SetPasswordHash overwrites a user's stored password hash (§4.17
// resetpassword).
func (s *Store) SetPasswordHash(userID, passwordHash string) error {
	res, err := s.db.Exec(`UPDATE users SET password_hash = ? WHERE user_id = ?`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %q: %w", userID, ErrNotFound)
	}
	return nil
}

// ListUsers returns every registered user, ordered by creation time
// (§4.17 listusers).
func (s *Store) ListUsers() ([]User, error) {
	var users []User
	if err := s.db.Select(&users, `SELECT user_id, display_name, password_hash, created_at FROM users ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// isUniqueViolation reports whether err came from a SQLite UNIQUE/PRIMARY
// KEY constraint failure. modernc.org/sqlite surfaces this as a plain
// string-formatted error rather than a typed sentinel, so we match on text
// the way the teacher's store layer does for the same driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed")
}
