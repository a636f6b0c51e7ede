// ABOUTME: Store interface and data types for session persistence.
// ABOUTME: Defines Record, Message and the keyed-store contract the pipeline depends on.

package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no record exists for a (sessionID, userID) pair.
var ErrNotFound = errors.New("session not found")

// Message roles. History alternates human/assistant, one pair per exchange.
const (
	RoleHuman     = "human"
	RoleAssistant = "assistant"
)

// Message is a single entry in a session's conversation history.
// Attachment references ride along under the "files" metadata key.
type Message struct {
	Role     string         `json:"role"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Record is the stored state for one session, keyed by (SessionID, UserID).
// Timestamps are ISO-8601 strings exactly as the store holds them; parsing
// and freshness arithmetic belong to the Lifecycle, not the store.
type Record struct {
	SessionID    string
	UserID       string
	StartTime    string
	LastActivity string
	History      []Message
}

// Store is the keyed session store the core reads and writes. Every call is
// independently fallible; callers decide whether a failure is fatal.
type Store interface {
	// GetRecord loads the record for a session. Returns ErrNotFound when the
	// session has never been written.
	GetRecord(ctx context.Context, sessionID, userID string) (*Record, error)

	// AppendExchange appends one human/assistant message pair to the session
	// history, creating the record (and its StartTime) on first write.
	// LastActivity is set to the write time.
	AppendExchange(ctx context.Context, sessionID, userID string, human, assistant Message) error

	// TouchActivity overwrites LastActivity with the current time. A no-op
	// when the record does not exist yet.
	TouchActivity(ctx context.Context, sessionID, userID string) error

	// Close releases store resources.
	Close() error
}
