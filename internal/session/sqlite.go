// ABOUTME: SQLite implementation of the session Store using modernc.org/sqlite.
// ABOUTME: Persists session records with ISO-8601 timestamps and JSON-encoded history.

package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore creates a session store at the given path. The schema is
// created if it doesn't exist, and parent directories are created if needed.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "session-store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		now:    time.Now,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("session store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			start_time TEXT NOT NULL,
			last_activity TEXT NOT NULL,
			history TEXT NOT NULL DEFAULT '[]',
			PRIMARY KEY (session_id, user_id)
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// GetRecord loads the record for a (sessionID, userID) pair.
func (s *SQLiteStore) GetRecord(ctx context.Context, sessionID, userID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT start_time, last_activity, history
		FROM sessions WHERE session_id = ? AND user_id = ?`,
		sessionID, userID)

	var historyJSON string
	rec := &Record{SessionID: sessionID, UserID: userID}
	err := row.Scan(&rec.StartTime, &rec.LastActivity, &historyJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	if err := json.Unmarshal([]byte(historyJSON), &rec.History); err != nil {
		return nil, fmt.Errorf("decoding session history: %w", err)
	}
	return rec, nil
}

// AppendExchange appends one human/assistant pair, creating the record on
// first write. The whole read-modify-write runs in a transaction so history
// order is preserved.
func (s *SQLiteStore) AppendExchange(ctx context.Context, sessionID, userID string, human, assistant Message) error {
	nowISO := s.now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var historyJSON string
	err = tx.QueryRowContext(ctx,
		`SELECT history FROM sessions WHERE session_id = ? AND user_id = ?`,
		sessionID, userID).Scan(&historyJSON)

	var history []Message
	switch {
	case err == sql.ErrNoRows:
		history = nil
	case err != nil:
		return fmt.Errorf("loading history: %w", err)
	default:
		if err := json.Unmarshal([]byte(historyJSON), &history); err != nil {
			return fmt.Errorf("decoding history: %w", err)
		}
	}

	history = append(history, human, assistant)
	updated, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (session_id, user_id, start_time, last_activity, history)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (session_id, user_id) DO UPDATE SET
			last_activity = excluded.last_activity,
			history = excluded.history`,
		sessionID, userID, nowISO, nowISO, string(updated))
	if err != nil {
		return fmt.Errorf("writing session: %w", err)
	}

	return tx.Commit()
}

// TouchActivity overwrites LastActivity with the current time.
func (s *SQLiteStore) TouchActivity(ctx context.Context, sessionID, userID string) error {
	nowISO := s.now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_activity = ? WHERE session_id = ? AND user_id = ?`,
		nowISO, sessionID, userID)
	if err != nil {
		return fmt.Errorf("touching session activity: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
