// Package store provides persistent server state backed by an embedded
// SQLite database. It owns the database lifecycle and exposes the typed
// operations the rest of the server calls.
//
// Migration design: SQL statements are kept in the [migrations] slice as
// ordered strings. Each is applied exactly once; the applied version is
// tracked in the schema_migrations table. To add a migration, append a new
// string — never edit or reorder existing entries.
package store

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// migrations holds the ordered list of DDL/DML statements that bring the
// schema up to date. Index i corresponds to version i+1.
var migrations = []string{
	// v1 — users
	`CREATE TABLE IF NOT EXISTS users (
		user_id       TEXT PRIMARY KEY,
		display_name  TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		created_at    INTEGER NOT NULL
	)`,
	// v2–v3 — sessions, keyed by token (a user may hold several rows;
	// refresh deletes the token it replaces), plus a user index
	`CREATE TABLE IF NOT EXISTS sessions (
		token      TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id)`,
	// v4 — presence
	`CREATE TABLE IF NOT EXISTS presence (
		user_id    TEXT PRIMARY KEY,
		state      TEXT NOT NULL DEFAULT 'offline',
		updated_at INTEGER NOT NULL
	)`,
	// v5–v6 — messages (immutable), plus a conversation index
	`CREATE TABLE IF NOT EXISTS messages (
		message_id      TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		sender_id       TEXT NOT NULL,
		content         TEXT NOT NULL,
		timestamp       INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conv ON messages(conversation_id)`,
	// v7 — rooms
	`CREATE TABLE IF NOT EXISTS rooms (
		room_id       TEXT PRIMARY KEY,
		owner         TEXT NOT NULL,
		encrypted     INTEGER NOT NULL DEFAULT 0,
		password_hash TEXT NOT NULL DEFAULT '',
		metadata      TEXT NOT NULL DEFAULT '{}',
		created_at    INTEGER NOT NULL
	)`,
	// v8–v9 — room members, plus a user index
	`CREATE TABLE IF NOT EXISTS room_members (
		room_id   TEXT NOT NULL,
		user_id   TEXT NOT NULL,
		joined_at INTEGER NOT NULL,
		PRIMARY KEY (room_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_room_members_user ON room_members(user_id)`,
	// v10–v11 — offline queue (monotonic id preserves FIFO order), plus index
	`CREATE TABLE IF NOT EXISTS offline_queue (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    TEXT NOT NULL,
		event      TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_offline_queue_user ON offline_queue(user_id, id)`,
	// v12 — file sessions
	`CREATE TABLE IF NOT EXISTS files (
		session_id  TEXT PRIMARY KEY,
		file_name   TEXT NOT NULL,
		file_size   INTEGER NOT NULL,
		checksum    TEXT NOT NULL DEFAULT '',
		sender_id   TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id   TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'pending',
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL
	)`,
	// v13 — friend requests
	`CREATE TABLE IF NOT EXISTS friend_requests (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		from_user  TEXT NOT NULL,
		to_user    TEXT NOT NULL,
		message    TEXT NOT NULL DEFAULT '',
		status     TEXT NOT NULL DEFAULT 'pending',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(from_user, to_user)
	)`,
	// v14 — friendships (canonical u1 < u2)
	`CREATE TABLE IF NOT EXISTS friends (
		u1         TEXT NOT NULL,
		u2         TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (u1, u2),
		CHECK (u1 < u2)
	)`,
	// v15 — enable WAL mode for concurrent readers
	`PRAGMA journal_mode=WAL`,
}

// Store wraps a SQLite database (via sqlx) and exposes server-state
// operations. All multi-row invariants documented on individual methods are
// enforced inside a single SQL transaction.
type Store struct {
	db *sqlx.DB
}

// New opens (or creates) the SQLite database at path and applies any
// pending migrations. Use ":memory:" for ephemeral in-process storage
// (tests).
func New(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Single-writer semantics: SQLite serializes writers regardless, and a
	// small pool avoids SQLITE_BUSY churn under the pack's usual pattern.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	if path == ":memory:" {
		// Each connection to ":memory:" opens its own empty database, so the
		// pool is pinned to one connection to keep a single shared schema.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		slog.Warn("store: busy_timeout pragma failed (non-fatal)", "err", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the underlying connection is alive, used by the
// operational health endpoint.
func (s *Store) Ping() error {
	return s.db.Ping()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied int
	if err := s.db.Get(&applied, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := applied; i < len(migrations); i++ {
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("apply migration v%d: %w", i+1, err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("record migration v%d: %w", i+1, err)
		}
	}
	if applied < len(migrations) {
		slog.Info("store: migrations applied", "from", applied, "to", len(migrations))
	}
	return nil
}
