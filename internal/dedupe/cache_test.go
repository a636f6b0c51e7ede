// ABOUTME: Tests for the redelivery dedupe cache.
// ABOUTME: Covers duplicate detection, TTL expiry, and capacity eviction.

package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeenAndMark(t *testing.T) {
	c := New(time.Minute, 100)
	defer c.Close()

	assert.False(t, c.Seen("msg-1"), "unmarked id is not a duplicate")

	c.Mark("msg-1")
	assert.True(t, c.Seen("msg-1"), "marked id is a duplicate")
	assert.False(t, c.Seen("msg-2"), "other ids are independent")
}

func TestSeen_DoesNotMark(t *testing.T) {
	c := New(time.Minute, 100)
	defer c.Close()

	// Checking must leave no trace; only an explicit Mark records the id.
	assert.False(t, c.Seen("msg-1"))
	assert.False(t, c.Seen("msg-1"))
}

func TestSeen_ExpiredEntryIsNotDuplicate(t *testing.T) {
	c := New(10*time.Millisecond, 100)
	defer c.Close()

	c.Mark("msg-1")
	time.Sleep(20 * time.Millisecond)
	assert.False(t, c.Seen("msg-1"), "entry past its TTL is treated as new")
}

func TestCapacityEviction(t *testing.T) {
	c := New(time.Minute, 2)
	defer c.Close()

	c.Mark("a")
	c.Mark("b")
	c.Mark("c") // evicts "a"

	assert.True(t, c.Seen("c"), "newest entry retained")
	assert.True(t, c.Seen("b"))
	assert.False(t, c.Seen("a"), "oldest entry was evicted")
}

func TestMark_RefreshesExistingEntry(t *testing.T) {
	c := New(time.Minute, 2)
	defer c.Close()

	c.Mark("a")
	c.Mark("b")
	c.Mark("a") // moves "a" to the back of the eviction order
	c.Mark("c") // evicts "b"

	assert.True(t, c.Seen("a"))
	assert.False(t, c.Seen("b"))
	assert.True(t, c.Seen("c"))
}

func TestCloseIsIdempotent(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	c.Close()
}
