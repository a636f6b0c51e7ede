// ABOUTME: Websocket direct sender for low-latency token delivery.
// ABOUTME: Maintains one client connection and serializes writes over it.

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/2389/chatcore/internal/event"
)

// DirectSender pushes events over a persistent websocket connection to the
// client push API. Writes are serialized; the websocket protocol allows only
// one concurrent writer.
type DirectSender struct {
	url    string
	logger *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewDirectSender creates a sender for the given websocket URL. The
// connection is established lazily on first publish and re-dialed after
// failures.
func NewDirectSender(url string, logger *slog.Logger) *DirectSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectSender{
		url:    url,
		logger: logger.With("component", "direct-sender"),
	}
}

// Publish writes the event as a JSON text frame.
func (d *DirectSender) Publish(ctx context.Context, ev *event.OutboundEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, d.url, nil)
		if err != nil {
			return fmt.Errorf("dialing direct channel: %w", err)
		}
		d.conn = conn
		d.logger.Info("direct channel connected", "url", d.url)
	}

	if err := d.conn.WriteJSON(ev); err != nil {
		// Drop the connection so the next publish re-dials.
		d.conn.Close()
		d.conn = nil
		return fmt.Errorf("writing to direct channel: %w", err)
	}
	return nil
}

// Close shuts the connection down if open.
func (d *DirectSender) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}
