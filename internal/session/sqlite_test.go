// ABOUTME: Tests for the SQLite session store.
// ABOUTME: Covers record creation, exchange appends, history ordering, and activity touch.

package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	store, err := NewSQLiteStore(dbPath, nil)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	return store
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "deeper", "sessions.db")

	store, err := NewSQLiteStore(dbPath, nil)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestGetRecord_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	_, err := store.GetRecord(context.Background(), "missing", "user-1")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendExchange_CreatesRecord(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	ctx := context.Background()
	human := Message{Role: RoleHuman, Content: "hello"}
	assistant := Message{Role: RoleAssistant, Content: "hi there"}

	if err := store.AppendExchange(ctx, "sess-1", "user-1", human, assistant); err != nil {
		t.Fatalf("AppendExchange failed: %v", err)
	}

	rec, err := store.GetRecord(ctx, "sess-1", "user-1")
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}

	if rec.StartTime != fixed.Format(time.RFC3339) {
		t.Errorf("start_time = %q, want %q", rec.StartTime, fixed.Format(time.RFC3339))
	}
	if len(rec.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(rec.History))
	}
	if rec.History[0].Role != RoleHuman || rec.History[0].Content != "hello" {
		t.Errorf("unexpected first message: %+v", rec.History[0])
	}
	if rec.History[1].Role != RoleAssistant || rec.History[1].Content != "hi there" {
		t.Errorf("unexpected second message: %+v", rec.History[1])
	}
}

func TestAppendExchange_PreservesOrderAcrossWrites(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	for i, text := range []string{"first", "second", "third"} {
		human := Message{Role: RoleHuman, Content: text}
		assistant := Message{Role: RoleAssistant, Content: "reply"}
		if err := store.AppendExchange(ctx, "sess-1", "user-1", human, assistant); err != nil {
			t.Fatalf("AppendExchange %d failed: %v", i, err)
		}
	}

	rec, err := store.GetRecord(ctx, "sess-1", "user-1")
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if len(rec.History) != 6 {
		t.Fatalf("history length = %d, want 6", len(rec.History))
	}
	for i, want := range []string{"first", "second", "third"} {
		if got := rec.History[i*2].Content; got != want {
			t.Errorf("history[%d].Content = %q, want %q", i*2, got, want)
		}
	}
}

func TestAppendExchange_MetadataRoundTrips(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	human := Message{
		Role:    RoleHuman,
		Content: "look at this",
		Metadata: map[string]any{
			"agentId": "agent-1",
			"files":   []any{map[string]any{"key": "photo.jpg", "type": "image"}},
		},
	}
	assistant := Message{Role: RoleAssistant, Content: "nice photo"}

	if err := store.AppendExchange(ctx, "sess-1", "user-1", human, assistant); err != nil {
		t.Fatalf("AppendExchange failed: %v", err)
	}

	rec, err := store.GetRecord(ctx, "sess-1", "user-1")
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}

	meta := rec.History[0].Metadata
	if meta["agentId"] != "agent-1" {
		t.Errorf("agentId = %v, want agent-1", meta["agentId"])
	}
	files, ok := meta["files"].([]any)
	if !ok || len(files) != 1 {
		t.Fatalf("files metadata did not round-trip: %v", meta["files"])
	}
}

func TestAppendExchange_KeepsStartTimeOnUpdate(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(30 * time.Minute)

	store.now = func() time.Time { return first }
	if err := store.AppendExchange(ctx, "sess-1", "user-1",
		Message{Role: RoleHuman, Content: "a"}, Message{Role: RoleAssistant, Content: "b"}); err != nil {
		t.Fatalf("AppendExchange failed: %v", err)
	}

	store.now = func() time.Time { return second }
	if err := store.AppendExchange(ctx, "sess-1", "user-1",
		Message{Role: RoleHuman, Content: "c"}, Message{Role: RoleAssistant, Content: "d"}); err != nil {
		t.Fatalf("AppendExchange failed: %v", err)
	}

	rec, err := store.GetRecord(ctx, "sess-1", "user-1")
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if rec.StartTime != first.Format(time.RFC3339) {
		t.Errorf("start_time = %q, want original %q", rec.StartTime, first.Format(time.RFC3339))
	}
	if rec.LastActivity != second.Format(time.RFC3339) {
		t.Errorf("last_activity = %q, want %q", rec.LastActivity, second.Format(time.RFC3339))
	}
}

func TestTouchActivity(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := first.Add(10 * time.Minute)

	store.now = func() time.Time { return first }
	if err := store.AppendExchange(ctx, "sess-1", "user-1",
		Message{Role: RoleHuman, Content: "a"}, Message{Role: RoleAssistant, Content: "b"}); err != nil {
		t.Fatalf("AppendExchange failed: %v", err)
	}

	store.now = func() time.Time { return later }
	if err := store.TouchActivity(ctx, "sess-1", "user-1"); err != nil {
		t.Fatalf("TouchActivity failed: %v", err)
	}

	rec, err := store.GetRecord(ctx, "sess-1", "user-1")
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if rec.LastActivity != later.Format(time.RFC3339) {
		t.Errorf("last_activity = %q, want %q", rec.LastActivity, later.Format(time.RFC3339))
	}
}

func TestTouchActivity_NoRecordIsNoop(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	if err := store.TouchActivity(context.Background(), "missing", "user-1"); err != nil {
		t.Errorf("TouchActivity on missing record should not fail: %v", err)
	}
}

func TestRecordsAreKeyedByUser(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if err := store.AppendExchange(ctx, "sess-1", "user-a",
		Message{Role: RoleHuman, Content: "mine"}, Message{Role: RoleAssistant, Content: "ok"}); err != nil {
		t.Fatalf("AppendExchange failed: %v", err)
	}

	if _, err := store.GetRecord(ctx, "sess-1", "user-b"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for other user, got %v", err)
	}
}
