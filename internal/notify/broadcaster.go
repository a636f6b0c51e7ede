// ABOUTME: In-memory fan-out broadcaster for outbound events.
// ABOUTME: Serves embedded deployments and tests where no external channel exists.

package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/chatcore/internal/event"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Broadcaster is an in-process Notifier that fans events out to subscribers
// keyed by user id. Delivery is best effort: events are dropped for
// subscribers whose channels are full, and Publish never fails.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan *event.OutboundEvent // userID -> subID -> ch
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan *event.OutboundEvent),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber for one user's events. Returns the event
// channel and a subscription id. The subscription is cleaned up when ctx is
// cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, userID string) (<-chan *event.OutboundEvent, string) {
	subID := uuid.New().String()
	ch := make(chan *event.OutboundEvent, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[userID]; !ok {
		b.subscribers[userID] = make(map[string]chan *event.OutboundEvent)
	}
	b.subscribers[userID][subID] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.Unsubscribe(userID, subID)
	}()

	return ch, subID
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(userID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[userID]
	if !ok {
		return
	}
	if ch, ok := subs[subID]; ok {
		close(ch)
		delete(subs, subID)
	}
	if len(subs) == 0 {
		delete(b.subscribers, userID)
	}
}

// Publish delivers the event to every subscriber of its user.
func (b *Broadcaster) Publish(ctx context.Context, ev *event.OutboundEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for subID, ch := range b.subscribers[ev.UserID] {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("subscriber channel full, dropping event",
				"user_id", ev.UserID,
				"sub_id", subID,
				"action", ev.Action)
		}
	}
	return nil
}
