// ABOUTME: TTL cache of transport message ids already processed.
// ABOUTME: Guards the dispatcher against at-least-once redelivery from the upstream broker.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Cache is a thread-safe, TTL-based, size-bounded record of message ids the
// dispatcher has already handled. The upstream transport delivers at least
// once; a redelivered id inside the TTL window is dropped instead of being
// run through the pipeline again. Insertion order is kept in a linked list
// for O(1) eviction at capacity.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // message ids, oldest at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a dedupe cache. A background goroutine sweeps expired entries.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Seen reports whether the message id was marked inside the TTL window.
func (c *Cache) Seen(messageID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.seen[messageID]
	return ok && time.Since(e.seenAt) < c.ttl
}

// Mark records the message id as handled. Callers mark only after the message
// has been fully processed; marking earlier would make a failed message look
// like a duplicate when the transport redelivers it.
func (c *Cache) Mark(messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mark(messageID)
}

// mark records the id, evicting the oldest entry at capacity. mu must be held.
func (c *Cache) mark(messageID string) {
	now := time.Now()

	if e, ok := c.seen[messageID]; ok {
		e.seenAt = now
		c.order.MoveToBack(e.element)
		return
	}

	if len(c.seen) >= c.maxSize {
		if front := c.order.Front(); front != nil {
			key, _ := front.Value.(string)
			c.order.Remove(front)
			delete(c.seen, key)
		}
	}

	c.seen[messageID] = &entry{
		seenAt:  now,
		element: c.order.PushBack(messageID),
	}
}

// sweep periodically removes expired entries.
func (c *Cache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for id, e := range c.seen {
				if now.Sub(e.seenAt) > c.ttl {
					c.order.Remove(e.element)
					delete(c.seen, id)
				}
			}
			c.mu.Unlock()
		case <-c.done:
			return
		}
	}
}

// Close stops the sweeper. Safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
