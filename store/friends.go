package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	FriendRequestPending  = "pending"
	FriendRequestAccepted = "accepted"
	FriendRequestRejected = "rejected"
)

// FriendRequest mirrors the `friend_requests` table (§3).
type FriendRequest struct {
	ID        int64  `db:"id"`
	FromUser  string `db:"from_user"`
	ToUser    string `db:"to_user"`
	Message   string `db:"message"`
	Status    string `db:"status"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

// canonicalPair orders two user ids so u1 < u2, matching the `friends`
// table's CHECK constraint (§3).
func canonicalPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

// SendFriendRequest creates a new request, or — if a row already exists for
// the ordered (from,to) pair in any status — re-opens it to pending with
// the new message (§4.3). The request row id is stable across re-opens.
func (s *Store) SendFriendRequest(from, to, message string) (FriendRequest, error) {
	now := time.Now().Unix()

	var existing FriendRequest
	err := s.db.Get(&existing,
		`SELECT id, from_user, to_user, message, status, created_at, updated_at FROM friend_requests WHERE from_user = ? AND to_user = ?`,
		from, to,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		fr := FriendRequest{FromUser: from, ToUser: to, Message: message, Status: FriendRequestPending, CreatedAt: now, UpdatedAt: now}
		res, insErr := s.db.Exec(
			`INSERT INTO friend_requests (from_user, to_user, message, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			fr.FromUser, fr.ToUser, fr.Message, fr.Status, fr.CreatedAt, fr.UpdatedAt,
		)
		if insErr != nil {
			return FriendRequest{}, fmt.Errorf("insert friend request: %w", insErr)
		}
		fr.ID, _ = res.LastInsertId()
		return fr, nil
	case err != nil:
		return FriendRequest{}, fmt.Errorf("lookup friend request: %w", err)
	default:
		_, updErr := s.db.Exec(
			`UPDATE friend_requests SET message = ?, status = ?, updated_at = ? WHERE id = ?`,
			message, FriendRequestPending, now, existing.ID,
		)
		if updErr != nil {
			return FriendRequest{}, fmt.Errorf("reopen friend request: %w", updErr)
		}
		existing.Message, existing.Status, existing.UpdatedAt = message, FriendRequestPending, now
		return existing, nil
	}
}

// GetFriendRequest fetches a request by id.
func (s *Store) GetFriendRequest(id int64) (FriendRequest, error) {
	var fr FriendRequest
	err := s.db.Get(&fr,
		`SELECT id, from_user, to_user, message, status, created_at, updated_at FROM friend_requests WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return FriendRequest{}, fmt.Errorf("friend request %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return FriendRequest{}, fmt.Errorf("get friend request: %w", err)
	}
	return fr, nil
}

// AcceptFriendRequest atomically inserts the canonical friendship row and
// flips the request's status to accepted (§4.3). Idempotent: accepting an
// already-accepted request is a no-op success.
func (s *Store) AcceptFriendRequest(id int64) (FriendRequest, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return FriendRequest{}, fmt.Errorf("begin accept: %w", err)
	}
	defer tx.Rollback()

	var fr FriendRequest
	if err := tx.Get(&fr,
		`SELECT id, from_user, to_user, message, status, created_at, updated_at FROM friend_requests WHERE id = ?`, id,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FriendRequest{}, fmt.Errorf("friend request %d: %w", id, ErrNotFound)
		}
		return FriendRequest{}, fmt.Errorf("get friend request: %w", err)
	}

	if fr.Status == FriendRequestAccepted {
		return fr, tx.Commit()
	}

	now := time.Now().Unix()
	u1, u2 := canonicalPair(fr.FromUser, fr.ToUser)
	if _, err := tx.Exec(
		`INSERT INTO friends (u1, u2, created_at) VALUES (?, ?, ?) ON CONFLICT(u1, u2) DO NOTHING`,
		u1, u2, now,
	); err != nil {
		return FriendRequest{}, fmt.Errorf("insert friendship: %w", err)
	}
	if _, err := tx.Exec(`UPDATE friend_requests SET status = ?, updated_at = ? WHERE id = ?`, FriendRequestAccepted, now, id); err != nil {
		return FriendRequest{}, fmt.Errorf("update friend request status: %w", err)
	}
	fr.Status, fr.UpdatedAt = FriendRequestAccepted, now

	if err := tx.Commit(); err != nil {
		return FriendRequest{}, fmt.Errorf("commit accept: %w", err)
	}
	return fr, nil
}

// RejectFriendRequest flips a request's status to rejected.
func (s *Store) RejectFriendRequest(id int64) (FriendRequest, error) {
	fr, err := s.GetFriendRequest(id)
	if err != nil {
		return FriendRequest{}, err
	}
	now := time.Now().Unix()
	if _, err := s.db.Exec(`UPDATE friend_requests SET status = ?, updated_at = ? WHERE id = ?`, FriendRequestRejected, now, id); err != nil {
		return FriendRequest{}, fmt.Errorf("reject friend request: %w", err)
	}
	fr.Status, fr.UpdatedAt = FriendRequestRejected, now
	return fr, nil
}

// DeleteFriend removes the friendship row between a and b (order
// independent).
func (s *Store) DeleteFriend(a, b string) error {
	u1, u2 := canonicalPair(a, b)
	if _, err := s.db.Exec(`DELETE FROM friends WHERE u1 = ? AND u2 = ?`, u1, u2); err != nil {
		return fmt.Errorf("delete friend: %w", err)
	}
	return nil
}

// AreFriends reports whether a and b are friends.
func (s *Store) AreFriends(a, b string) (bool, error) {
	u1, u2 := canonicalPair(a, b)
	var n int
	if err := s.db.Get(&n, `SELECT COUNT(*) FROM friends WHERE u1 = ? AND u2 = ?`, u1, u2); err != nil {
		return false, fmt.Errorf("are friends: %w", err)
	}
	return n > 0, nil
}

// ListFriends returns every user_id friended with userID.
func (s *Store) ListFriends(userID string) ([]string, error) {
	var friends []string
	if err := s.db.Select(&friends,
		`SELECT CASE WHEN u1 = ? THEN u2 ELSE u1 END FROM friends WHERE u1 = ? OR u2 = ?`,
		userID, userID, userID,
	); err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return friends, nil
}

// ListPendingRequestsTo returns requests addressed to userID awaiting a
// decision.
func (s *Store) ListPendingRequestsTo(userID string) ([]FriendRequest, error) {
	var reqs []FriendRequest
	if err := s.db.Select(&reqs,
		`SELECT id, from_user, to_user, message, status, created_at, updated_at FROM friend_requests WHERE to_user = ? AND status = ?`,
		userID, FriendRequestPending,
	); err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return reqs, nil
}

// ListSentRequestsFrom returns requests userID has sent that are still
// pending.
func (s *Store) ListSentRequestsFrom(userID string) ([]FriendRequest, error) {
	var reqs []FriendRequest
	if err := s.db.Select(&reqs,
		`SELECT id, from_user, to_user, message, status, created_at, updated_at FROM friend_requests WHERE from_user = ? AND status = ?`,
		userID, FriendRequestPending,
	); err != nil {
		return nil, fmt.Errorf("list sent requests: %w", err)
	}
	return reqs, nil
}
