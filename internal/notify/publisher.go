// ABOUTME: HTTP topic publisher for outbound events.
// ABOUTME: Posts each event as JSON to the configured topic endpoint.

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/2389/chatcore/internal/event"
)

// HTTPPublisher posts outbound events to a topic endpoint. No retry is
// performed here: redelivery is owned by the upstream transport, triggered by
// reporting the message as failed.
type HTTPPublisher struct {
	client   *resty.Client
	endpoint string
	logger   *slog.Logger
}

// NewHTTPPublisher creates a publisher for the given topic endpoint.
func NewHTTPPublisher(endpoint string, timeout time.Duration, logger *slog.Logger) *HTTPPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0)
	return &HTTPPublisher{
		client:   client,
		endpoint: endpoint,
		logger:   logger.With("component", "topic-publisher"),
	}
}

// Publish posts the event. Any non-2xx response is an error.
func (p *HTTPPublisher) Publish(ctx context.Context, ev *event.OutboundEvent) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(ev).
		Post(p.endpoint)
	if err != nil {
		return fmt.Errorf("publishing outbound event: %w", err)
	}
	if resp.IsError() {
		p.logger.Error("topic endpoint rejected event",
			"status", resp.StatusCode(),
			"action", ev.Action,
			"session_id", ev.Data.SessionID)
		return fmt.Errorf("publishing outbound event: status %d", resp.StatusCode())
	}
	return nil
}
