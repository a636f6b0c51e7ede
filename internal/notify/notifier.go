// ABOUTME: Notifier contract and the routing notifier that splits token traffic.
// ABOUTME: Token events go to the low-latency direct channel when configured, everything else to the topic.

package notify

import (
	"context"
	"log/slog"

	"github.com/2389/chatcore/internal/event"
)

// Notifier publishes one outbound event to the client-facing channel.
// Publish failures are fatal to the message being processed; the caller
// accounts for them.
type Notifier interface {
	Publish(ctx context.Context, ev *event.OutboundEvent) error
}

// Router wraps a topic notifier with an optional direct channel. When a
// direct channel is configured, streamed token events bypass the topic for
// latency; all other events, and all events when no direct channel exists,
// go to the topic. The client-visible direction is defaulted to OUT here so
// no publisher ever emits an undirected event.
type Router struct {
	topic  Notifier
	direct Notifier
	logger *slog.Logger
}

// NewRouter creates a routing notifier. direct may be nil.
func NewRouter(topic, direct Notifier, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		topic:  topic,
		direct: direct,
		logger: logger.With("component", "notifier"),
	}
}

// Publish routes the event to the appropriate channel.
func (r *Router) Publish(ctx context.Context, ev *event.OutboundEvent) error {
	if ev.Direction == "" {
		ev.Direction = event.DirectionOut
	}

	if r.direct != nil && ev.Action == event.ActionLLMNewToken {
		return r.direct.Publish(ctx, ev)
	}
	return r.topic.Publish(ctx, ev)
}
