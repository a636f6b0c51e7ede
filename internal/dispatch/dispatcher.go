// ABOUTME: Batch dispatcher with per-item failure isolation over a bounded worker pool.
// ABOUTME: Reports partial failures so the transport redelivers only the failed subset.

package dispatch

import (
	"context"
	"log/slog"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/2389/chatcore/internal/dedupe"
	"github.com/2389/chatcore/internal/event"
)

// Handler processes one decoded inbound event.
type Handler interface {
	Handle(ctx context.Context, ev *event.InboundEvent) error
}

// Result is the aggregate outcome of one batch. FailedIDs preserves batch
// order and carries exactly the identity the transport needs to redeliver
// the failed subset.
type Result struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	FailedIDs []string `json:"failedIds,omitempty"`
}

// Dispatcher consumes batches of transport envelopes and drives the pipeline
// per message. Items run on a bounded worker pool; a failure (or panic) in
// one item never aborts the others. No application-level retry happens here:
// redelivery belongs to the transport.
type Dispatcher struct {
	handler Handler
	dedupe  *dedupe.Cache
	workers int
	logger  *slog.Logger
}

// New creates a dispatcher. dedupe may be nil to disable redelivery
// deduplication; workers < 1 falls back to sequential processing.
func New(handler Handler, dedupe *dedupe.Cache, workers int, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		handler: handler,
		dedupe:  dedupe,
		workers: workers,
		logger:  logger.With("component", "dispatcher"),
	}
}

// ProcessBatch runs every envelope in the batch and reports the aggregate.
// Only failures outside per-item handling (none exist on this path once the
// batch structure has decoded) fail the batch as a whole, so the error
// return is reserved for context cancellation.
func (d *Dispatcher) ProcessBatch(ctx context.Context, batch []event.Envelope) (*Result, error) {
	failed := make([]bool, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for i := range batch {
		i := i
		g.Go(func() error {
			failed[i] = !d.processItem(gctx, &batch[i])
			return nil
		})
	}
	// Workers only report per-item state; Wait cannot fail.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{}
	for i, env := range batch {
		if failed[i] {
			result.Failed++
			result.FailedIDs = append(result.FailedIDs, env.MessageID)
		} else {
			result.Succeeded++
		}
	}

	d.logger.Info("batch processed",
		"total", len(batch),
		"succeeded", result.Succeeded,
		"failed", result.Failed)
	return result, nil
}

// processItem handles one envelope, returning false on failure. Panics are
// contained here so a defective message cannot take down its batch.
func (d *Dispatcher) processItem(ctx context.Context, env *event.Envelope) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic while processing message",
				"message_id", env.MessageID,
				"panic", r,
				"stack", string(debug.Stack()))
			ok = false
		}
	}()

	ev, err := env.Decode()
	if err != nil {
		d.logger.Error("dropping undecodable message",
			"message_id", env.MessageID,
			"error", err)
		return false
	}

	// Heartbeats are idempotent and never deduplicated.
	dedupe := d.dedupe != nil && env.MessageID != "" && ev.Action == event.ActionRun
	if dedupe && d.dedupe.Seen(env.MessageID) {
		d.logger.Info("dropping redelivered message",
			"message_id", env.MessageID,
			"user_id", ev.UserID)
		return true
	}

	if err := d.handler.Handle(ctx, ev); err != nil {
		d.logger.Error("message handling failed",
			"message_id", env.MessageID,
			"action", ev.Action,
			"user_id", ev.UserID,
			"error", err)
		return false
	}

	// Mark only after success: a failed message is reported for redelivery
	// and the redelivered copy must not look like a duplicate.
	if dedupe {
		d.dedupe.Mark(env.MessageID)
	}
	return true
}
