// ABOUTME: Session freshness state machine and the unified context read path.
// ABOUTME: Classifies sessions as New/Active/Expired and loads history in one call.

package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// State classifies session freshness on each run.
type State int

const (
	// StateNew means no record exists for the session yet.
	StateNew State = iota
	// StateActive means the session is within both the age and idle limits.
	StateActive
	// StateExpired means the age or idle limit was exceeded, or the record
	// could not be read. Expiry is a signal to the runtime, not a gate: the
	// caller still forwards whatever history was loaded.
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateActive:
		return "active"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Context is the result of one session read: freshness state plus the full
// conversation history, loaded together so the two can never disagree.
type Context struct {
	State   State
	History []Message
}

// Lifecycle decides session freshness against configured age and idle limits.
// Reads fail open: any store or parse failure classifies the session as
// expired with empty history rather than blocking the user.
type Lifecycle struct {
	store   Store
	maxAge  time.Duration
	maxIdle time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewLifecycle creates a Lifecycle over the given store.
func NewLifecycle(store Store, maxAge, maxIdle time.Duration, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{
		store:   store,
		maxAge:  maxAge,
		maxIdle: maxIdle,
		logger:  logger.With("component", "session-lifecycle"),
		now:     time.Now,
	}
}

// LoadContext loads the session record once and returns both the freshness
// state and the conversation history. A missing record is New; unreadable
// records are Expired with no history. Malformed timestamps expire the
// session but do not suppress history that was already read.
func (l *Lifecycle) LoadContext(ctx context.Context, sessionID, userID string) Context {
	rec, err := l.store.GetRecord(ctx, sessionID, userID)
	if errors.Is(err, ErrNotFound) {
		return Context{State: StateNew}
	}
	if err != nil {
		l.logger.Error("failed to read session state, treating as expired",
			"session_id", sessionID,
			"error", err)
		return Context{State: StateExpired}
	}

	return Context{
		State:   l.classify(rec, sessionID),
		History: rec.History,
	}
}

// classify computes the freshness state from the record's timestamps.
func (l *Lifecycle) classify(rec *Record, sessionID string) State {
	if rec.StartTime == "" {
		l.logger.Warn("session record has no start time, treating as expired",
			"session_id", sessionID)
		return StateExpired
	}

	start, err := parseTimestamp(rec.StartTime)
	if err != nil {
		l.logger.Error("unparseable session start time, treating as expired",
			"session_id", sessionID,
			"start_time", rec.StartTime,
			"error", err)
		return StateExpired
	}

	// A record without activity falls back to its start time.
	last := start
	if rec.LastActivity != "" {
		if t, err := parseTimestamp(rec.LastActivity); err == nil {
			last = t
		} else {
			l.logger.Warn("unparseable last activity, falling back to start time",
				"session_id", sessionID,
				"last_activity", rec.LastActivity)
		}
	}

	now := l.now()
	age := now.Sub(start)
	inactivity := now.Sub(last)

	if age > l.maxAge || inactivity > l.maxIdle {
		return StateExpired
	}
	return StateActive
}

// Touch overwrites the session's LastActivity with now. Failures are logged
// and swallowed: a persistence outage must never fail a reply that has
// already been computed.
func (l *Lifecycle) Touch(ctx context.Context, sessionID, userID string) {
	if err := l.store.TouchActivity(ctx, sessionID, userID); err != nil {
		l.logger.Error("failed to update session activity",
			"session_id", sessionID,
			"error", err)
	}
}

// timestampLayouts covers offset-qualified ISO-8601 plus the naive forms
// older records carry. Naive timestamps are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// parseTimestamp accepts ISO-8601 with a trailing "Z" UTC marker, an explicit
// offset, or no offset at all, and normalizes to a fixed offset before any
// arithmetic.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}

	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
