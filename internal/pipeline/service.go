// ABOUTME: Per-message orchestration: session context, adapter dispatch, demux, publish, persist.
// ABOUTME: Owns the error taxonomy mapping internal failures to generic client messages.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/2389/chatcore/internal/event"
	"github.com/2389/chatcore/internal/notify"
	"github.com/2389/chatcore/internal/provider"
	"github.com/2389/chatcore/internal/runtime"
	"github.com/2389/chatcore/internal/session"
	"github.com/2389/chatcore/internal/stream"
)

// Client-visible failure messages. Internal error detail never leaves the
// logs.
const (
	msgUnavailable = "Service temporarily unavailable. Please try again."
	msgBadResponse = "Unable to process response. Please try again."
	msgUnexpected  = "An unexpected error occurred. Please try again."
)

// Resolver resolves a model identifier to a provider adapter.
type Resolver interface {
	Resolve(modelID, mode string) (provider.Adapter, error)
}

// Service drives one inbound event through the conversation pipeline.
type Service struct {
	resolver  Resolver
	lifecycle *session.Lifecycle
	store     session.Store
	notifier  notify.Notifier
	demuxer   *stream.Demuxer
	logger    *slog.Logger
}

// New creates a pipeline service.
func New(resolver Resolver, lifecycle *session.Lifecycle, store session.Store, notifier notify.Notifier, demuxer *stream.Demuxer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		resolver:  resolver,
		lifecycle: lifecycle,
		store:     store,
		notifier:  notifier,
		demuxer:   demuxer,
		logger:    logger.With("component", "pipeline"),
	}
}

// Handle processes one inbound event. A returned error marks the message
// failed for transport-level redelivery; by then the client has already
// received a generic error event on a best-effort basis.
func (s *Service) Handle(ctx context.Context, ev *event.InboundEvent) error {
	switch ev.Action {
	case event.ActionRun:
		return s.handleRun(ctx, ev)
	case event.ActionHeartbeat:
		return s.handleHeartbeat(ctx, ev)
	default:
		s.logger.Warn("ignoring unknown action", "action", ev.Action, "user_id", ev.UserID)
		return nil
	}
}

// handleHeartbeat echoes liveness. No session read, no invocation.
func (s *Service) handleHeartbeat(ctx context.Context, ev *event.InboundEvent) error {
	return s.notifier.Publish(ctx, event.NewHeartbeat(ev.UserID, ev.Data.SessionID))
}

func (s *Service) handleRun(ctx context.Context, ev *event.InboundEvent) error {
	sessionID := ev.Data.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	modelRef := ev.ModelRef()
	adapter, err := s.resolver.Resolve(modelRef, ev.Data.Mode)
	if err != nil {
		s.logger.Error("no adapter for model",
			"model_ref", modelRef,
			"session_id", sessionID,
			"error", err)
		s.publishError(ctx, ev.UserID, sessionID, msgUnexpected)
		return err
	}

	sctx := s.lifecycle.LoadContext(ctx, sessionID, ev.UserID)
	s.logger.Info("session context loaded",
		"session_id", sessionID,
		"state", sctx.State.String(),
		"history_len", len(sctx.History))

	req, err := adapter.FormatPrompt(ctx, ev.Data.Text, sctx.History, ev.Data.Files, ev.UserID)
	if err != nil {
		s.logger.Error("prompt formatting failed",
			"provider", adapter.Name(),
			"session_id", sessionID,
			"error", err)
		s.publishError(ctx, ev.UserID, sessionID, msgUnexpected)
		return fmt.Errorf("formatting prompt: %w", err)
	}

	s.logger.Debug("invoking provider",
		"provider", adapter.Name(),
		"session_id", sessionID,
		"request", adapter.SanitizeForLogging(req))

	outcome, err := adapter.Invoke(ctx, req, sessionID, ev.Data.ModelParams)
	if err != nil {
		msg := msgUnexpected
		if errors.Is(err, runtime.ErrUnavailable) {
			msg = msgUnavailable
		}
		s.logger.Error("provider invocation failed",
			"provider", adapter.Name(),
			"model_ref", modelRef,
			"session_id", sessionID,
			"error", err)
		s.publishError(ctx, ev.UserID, sessionID, msg)
		return fmt.Errorf("invoking provider: %w", err)
	}

	// Success path only: the session saw activity.
	s.lifecycle.Touch(ctx, sessionID, ev.UserID)

	metadata := map[string]any{
		"agentId":   modelRef,
		"sessionId": sessionID,
	}

	var content string
	var resultFiles []event.Attachment

	if outcome.Final != nil {
		content = outcome.Final.Content
		resultFiles = outcome.Final.Files
	} else {
		inv := outcome.Raw
		if inv.RuntimeSessionID != "" {
			metadata["runtimeSessionId"] = inv.RuntimeSessionID
		}
		if inv.TraceID != "" {
			metadata["traceId"] = inv.TraceID
		}
		if inv.Metrics != nil {
			metadata["metrics"] = inv.Metrics
		}

		content, err = s.demuxer.Demux(inv, func(chunk stream.Chunk) error {
			return s.notifier.Publish(ctx, event.NewToken(ev.UserID, sessionID, chunk.Sequence, chunk.Content))
		})
		if err != nil {
			msg := msgUnexpected
			if errors.Is(err, stream.ErrDecode) {
				msg = msgBadResponse
			}
			s.logger.Error("response demultiplexing failed",
				"session_id", sessionID,
				"error", err)
			s.publishError(ctx, ev.UserID, sessionID, msg)
			return fmt.Errorf("demultiplexing response: %w", err)
		}
	}

	final := event.NewFinalResponse(ev.UserID, ev.UserGroups, sessionID, content, resultFiles, metadata)
	if err := s.notifier.Publish(ctx, final); err != nil {
		s.logger.Error("failed to publish final response",
			"session_id", sessionID,
			"error", err)
		return fmt.Errorf("publishing final response: %w", err)
	}

	s.persistExchange(ctx, ev, adapter.Name(), sessionID, content, resultFiles, metadata)
	return nil
}

// persistExchange appends the human/assistant pair and refreshes activity.
// The reply is already delivered, so every failure here is logged and
// swallowed: a persistence outage degrades continuity, not availability.
func (s *Service) persistExchange(ctx context.Context, ev *event.InboundEvent, providerName, sessionID, content string, resultFiles []event.Attachment, metadata map[string]any) {
	humanMeta := map[string]any{
		"agentId":   ev.ModelRef(),
		"sessionId": sessionID,
		"provider":  providerName,
	}
	if ev.Data.ModelName != "" {
		humanMeta["modelName"] = ev.Data.ModelName
	}
	if len(ev.Data.Files) > 0 {
		humanMeta["files"] = ev.Data.Files
	}

	assistantMeta := map[string]any{
		"agentId":   ev.ModelRef(),
		"sessionId": sessionID,
		"provider":  providerName,
	}
	for _, key := range []string{"runtimeSessionId", "traceId", "metrics"} {
		if v, ok := metadata[key]; ok {
			assistantMeta[key] = v
		}
	}
	if len(resultFiles) > 0 {
		assistantMeta["files"] = resultFiles
	}

	human := session.Message{Role: session.RoleHuman, Content: ev.Data.Text, Metadata: humanMeta}
	assistant := session.Message{Role: session.RoleAssistant, Content: content, Metadata: assistantMeta}

	if err := s.store.AppendExchange(ctx, sessionID, ev.UserID, human, assistant); err != nil {
		s.logger.Error("failed to persist exchange",
			"session_id", sessionID,
			"error", err)
		return
	}
	s.lifecycle.Touch(ctx, sessionID, ev.UserID)
}

// publishError emits the generic error event, best effort.
func (s *Service) publishError(ctx context.Context, userID, sessionID, message string) {
	if err := s.notifier.Publish(ctx, event.NewError(userID, sessionID, message)); err != nil {
		s.logger.Error("failed to publish error event",
			"session_id", sessionID,
			"error", err)
	}
}
