package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	FileStatusPending     = "pending"
	FileStatusAccepted    = "accepted"
	FileStatusRejected    = "rejected"
	FileStatusUnreachable = "unreachable"
	FileStatusCompleted   = "completed"
	FileStatusError       = "error"
)

// FileSession mirrors the `files` table (§3).
type FileSession struct {
	SessionID  string `db:"session_id"`
	FileName   string `db:"file_name"`
	FileSize   int64  `db:"file_size"`
	Checksum   string `db:"checksum"`
	SenderID   string `db:"sender_id"`
	TargetType string `db:"target_type"`
	TargetID   string `db:"target_id"`
	Status     string `db:"status"`
	CreatedAt  int64  `db:"created_at"`
	UpdatedAt  int64  `db:"updated_at"`
}

// CreateFileSession inserts a new file-transfer session row (§4.3, §4.11).
func (s *Store) CreateFileSession(fileName string, fileSize int64, checksum, senderID, targetType, targetID, status string) (FileSession, error) {
	now := time.Now().Unix()
	fs := FileSession{
		SessionID:  uuid.NewString(),
		FileName:   fileName,
		FileSize:   fileSize,
		Checksum:   checksum,
		SenderID:   senderID,
		TargetType: targetType,
		TargetID:   targetID,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := s.db.Exec(
		`INSERT INTO files (session_id, file_name, file_size, checksum, sender_id, target_type, target_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fs.SessionID, fs.FileName, fs.FileSize, fs.Checksum, fs.SenderID, fs.TargetType, fs.TargetID, fs.Status, fs.CreatedAt, fs.UpdatedAt,
	)
	if err != nil {
		return FileSession{}, fmt.Errorf("create file session: %w", err)
	}
	return fs, nil
}

// UpdateFileSessionStatus transitions a file session's status.
func (s *Store) UpdateFileSessionStatus(sessionID, status string) error {
	res, err := s.db.Exec(`UPDATE files SET status = ?, updated_at = ? WHERE session_id = ?`, status, time.Now().Unix(), sessionID)
	if err != nil {
		return fmt.Errorf("update file session status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("file session %q: %w", sessionID, ErrNotFound)
	}
	return nil
}

// GetFileSession fetches a file session by id. Returns ErrNotFound if
// absent.
func (s *Store) GetFileSession(sessionID string) (FileSession, error) {
	var fs FileSession
	err := s.db.Get(&fs,
		`SELECT session_id, file_name, file_size, checksum, sender_id, target_type, target_id, status, created_at, updated_at
		 FROM files WHERE session_id = ?`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return FileSession{}, fmt.Errorf("file session %q: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return FileSession{}, fmt.Errorf("get file session: %w", err)
	}
	return fs, nil
}
