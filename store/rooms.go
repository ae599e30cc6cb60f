package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Room mirrors the `rooms` table (§3).
type Room struct {
	RoomID       string `db:"room_id"`
	Owner        string `db:"owner"`
	Encrypted    bool   `db:"encrypted"`
	PasswordHash string `db:"password_hash"`
	Metadata     string `db:"metadata"` // opaque JSON text
	CreatedAt    int64  `db:"created_at"`
}

// RoomMember mirrors the `room_members` table (§3).
type RoomMember struct {
	RoomID   string `db:"room_id"`
	UserID   string `db:"user_id"`
	JoinedAt int64  `db:"joined_at"`
}

// CreateRoom inserts a room and its owner's membership row in a single
// transaction (§4.3). Returns ErrConflict if room_id already exists.
func (s *Store) CreateRoom(roomID, owner string, encrypted bool, passwordHash, metadata string) (Room, error) {
	if metadata == "" {
		metadata = "{}"
	}
	now := time.Now().Unix()
	room := Room{
		RoomID:       roomID,
		Owner:        owner,
		Encrypted:    encrypted,
		PasswordHash: passwordHash,
		Metadata:     metadata,
		CreatedAt:    now,
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return Room{}, fmt.Errorf("begin create room: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO rooms (room_id, owner, encrypted, password_hash, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		room.RoomID, room.Owner, room.Encrypted, room.PasswordHash, room.Metadata, room.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Room{}, fmt.Errorf("room %q: %w", roomID, ErrConflict)
		}
		return Room{}, fmt.Errorf("insert room: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO room_members (room_id, user_id, joined_at) VALUES (?, ?, ?)`,
		roomID, owner, now,
	); err != nil {
		return Room{}, fmt.Errorf("insert owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Room{}, fmt.Errorf("commit create room: %w", err)
	}
	return room, nil
}

// GetRoom fetches room metadata. Returns ErrNotFound if absent.
func (s *Store) GetRoom(roomID string) (Room, error) {
	var r Room
	err := s.db.Get(&r, `SELECT room_id, owner, encrypted, password_hash, metadata, created_at FROM rooms WHERE room_id = ?`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return Room{}, fmt.Errorf("room %q: %w", roomID, ErrNotFound)
	}
	if err != nil {
		return Room{}, fmt.Errorf("get room: %w", err)
	}
	return r, nil
}

// AddMember idempotently adds a user to a room.
func (s *Store) AddMember(roomID, userID string) error {
	_, err := s.db.Exec(
		`INSERT INTO room_members (room_id, user_id, joined_at) VALUES (?, ?, ?)
		 ON CONFLICT(room_id, user_id) DO NOTHING`,
		roomID, userID, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// RemoveMember removes a user from a room (no-op if absent).
func (s *Store) RemoveMember(roomID, userID string) error {
	if _, err := s.db.Exec(`DELETE FROM room_members WHERE room_id = ? AND user_id = ?`, roomID, userID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

// IsMember reports whether userID belongs to roomID.
func (s *Store) IsMember(roomID, userID string) (bool, error) {
	var n int
	err := s.db.Get(&n, `SELECT COUNT(*) FROM room_members WHERE room_id = ? AND user_id = ?`, roomID, userID)
	if err != nil {
		return false, fmt.Errorf("is member: %w", err)
	}
	return n > 0, nil
}

// ListRoomMembers returns every member's user_id for a room.
func (s *Store) ListRoomMembers(roomID string) ([]string, error) {
	var ids []string
	if err := s.db.Select(&ids, `SELECT user_id FROM room_members WHERE room_id = ? ORDER BY joined_at`, roomID); err != nil {
		return nil, fmt.Errorf("list room members: %w", err)
	}
	return ids, nil
}

// ListRoomsForUser returns every room_id a user belongs to.
func (s *Store) ListRoomsForUser(userID string) ([]string, error) {
	var ids []string
	if err := s.db.Select(&ids, `SELECT room_id FROM room_members WHERE user_id = ? ORDER BY joined_at`, userID); err != nil {
		return nil, fmt.Errorf("list rooms for user: %w", err)
	}
	return ids, nil
}

// DeleteRoom removes a room and cascades membership rows, in one
// transaction (§3: "deletion cascades to membership").
func (s *Store) DeleteRoom(roomID string) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin delete room: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM room_members WHERE room_id = ?`, roomID); err != nil {
		return fmt.Errorf("delete room members: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM rooms WHERE room_id = ?`, roomID)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("room %q: %w", roomID, ErrNotFound)
	}
	return tx.Commit()
}
