// ABOUTME: Tool-augmented agent runtime adapter.
// ABOUTME: Forwards the prompt with replayed conversation history and lets the runtime own generation.

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/2389/chatcore/internal/event"
	"github.com/2389/chatcore/internal/session"
)

type agentTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type agentData struct {
	Text                string             `json:"text"`
	ConversationHistory []agentTurn        `json:"conversation_history"`
	Files               []event.Attachment `json:"files,omitempty"`
}

// agentPayload is the enriched request the agent runtime receives: the
// caller's prompt plus the full session history so the runtime can decide
// continuity itself.
type agentPayload struct {
	UserID string    `json:"userId"`
	Data   agentData `json:"data"`
}

// AgentCore is the adapter for tool-augmented agent runtimes.
type AgentCore struct {
	deps    Deps
	modelID string
	logger  *slog.Logger
}

// NewAgentCore creates an AgentCore adapter. The mode flag is ignored.
func NewAgentCore(deps Deps, modelID, mode string) Adapter {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AgentCore{
		deps:    deps,
		modelID: modelID,
		logger:  logger.With("component", "agentcore-adapter", "runtime_ref", modelID),
	}
}

func (a *AgentCore) Name() string { return "agentcore" }

// FormatPrompt replays the conversation history into the payload. History is
// always included, populated or empty; the runtime decides what to do with
// it. Attachments are forwarded by reference, never inlined.
func (a *AgentCore) FormatPrompt(ctx context.Context, prompt string, history []session.Message, atts []event.Attachment, userID string) (*Request, error) {
	turns := make([]agentTurn, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case session.RoleHuman:
			turns = append(turns, agentTurn{Role: "user", Content: msg.Content})
		case session.RoleAssistant:
			turns = append(turns, agentTurn{Role: "assistant", Content: msg.Content})
		}
	}

	payload := &agentPayload{
		UserID: userID,
		Data: agentData{
			Text:                prompt,
			ConversationHistory: turns,
			Files:               atts,
		},
	}
	return &Request{Payload: payload, UserID: userID, Files: atts}, nil
}

// Invoke submits the payload. Generation parameters are not forwarded: the
// agent runtime owns its own model configuration.
func (a *AgentCore) Invoke(ctx context.Context, req *Request, sessionID string, params event.ModelParams) (*Outcome, error) {
	payload, ok := req.Payload.(*agentPayload)
	if !ok {
		return nil, fmt.Errorf("request was not formatted by the agentcore adapter")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding agent request: %w", err)
	}

	inv, err := a.deps.Invoker.Invoke(ctx, a.modelID, sessionID, body)
	if err != nil {
		return nil, err
	}
	return &Outcome{Raw: inv}, nil
}

// SanitizeForLogging renders the request as-is; agent payloads carry
// attachments by reference only, so there is nothing to strip.
func (a *AgentCore) SanitizeForLogging(req *Request) string {
	out, err := json.Marshal(req.Payload)
	if err != nil {
		return "<unserializable request>"
	}
	return string(out)
}
