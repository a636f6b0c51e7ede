// ABOUTME: Inbound and outbound event types for the conversation pipeline.
// ABOUTME: Defines transport envelopes, actions, and the client-facing wire shapes.

package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrBadEnvelope is returned when a transport envelope cannot be decoded.
var ErrBadEnvelope = errors.New("malformed transport envelope")

// Inbound actions recognized by the pipeline.
const (
	ActionRun       = "run"
	ActionHeartbeat = "heartbeat"
)

// Outbound actions emitted to the client channel.
const (
	ActionLLMNewToken   = "llm_new_token"
	ActionFinalResponse = "final_response"
	ActionError         = "error"
)

// DirectionOut marks client-visible outbound events.
const DirectionOut = "OUT"

// Attachment references a file held in the object store.
// Binary content is never carried inline on events.
type Attachment struct {
	Provider string `json:"provider,omitempty"`
	Key      string `json:"key"`
	Type     string `json:"type,omitempty"` // "image", "document", "video"
}

// ModelParams carries caller-supplied generation parameters. Unset fields are
// never forwarded to a provider, so provider defaults stay in effect.
type ModelParams struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"topP,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`
	Seed        *int64   `json:"seed,omitempty"`
}

// RunData is the payload of an inbound event.
type RunData struct {
	AgentID     string       `json:"agentId,omitempty"`
	ModelID     string       `json:"modelId,omitempty"`
	ModelName   string       `json:"modelName,omitempty"`
	SessionID   string       `json:"sessionId,omitempty"`
	Text        string       `json:"text,omitempty"`
	Mode        string       `json:"mode,omitempty"`
	Files       []Attachment `json:"files,omitempty"`
	ModelParams ModelParams  `json:"modelParams,omitempty"`
}

// InboundEvent is one request from the upstream transport. Immutable once
// decoded.
type InboundEvent struct {
	UserID     string   `json:"userId"`
	UserGroups []string `json:"userGroups,omitempty"`
	Action     string   `json:"action"`
	Data       RunData  `json:"data"`
}

// ModelRef returns the identifier used for adapter resolution: the explicit
// model id when present, otherwise the agent id.
func (e *InboundEvent) ModelRef() string {
	if e.Data.ModelID != "" {
		return e.Data.ModelID
	}
	return e.Data.AgentID
}

// Envelope is one transport record in a batch. The body is itself JSON whose
// Message field holds the JSON-encoded InboundEvent (double-encoded on the
// wire by the upstream broker).
type Envelope struct {
	MessageID string `json:"messageId"`
	Body      string `json:"body"`
}

// Decode unwraps the envelope body down to the InboundEvent.
func (env *Envelope) Decode() (*InboundEvent, error) {
	var wrapper struct {
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(env.Body), &wrapper); err != nil {
		return nil, fmt.Errorf("%w: body: %v", ErrBadEnvelope, err)
	}
	var ev InboundEvent
	if err := json.Unmarshal([]byte(wrapper.Message), &ev); err != nil {
		return nil, fmt.Errorf("%w: message: %v", ErrBadEnvelope, err)
	}
	return &ev, nil
}

// Token is one streamed fragment of an in-progress response.
type Token struct {
	RunID          string `json:"runId"`
	SequenceNumber int    `json:"sequenceNumber"`
	Value          string `json:"value"`
}

// OutboundData is the payload of a client-facing event.
type OutboundData struct {
	SessionID string         `json:"sessionId"`
	Type      string         `json:"type,omitempty"`
	Content   string         `json:"content,omitempty"`
	Token     *Token         `json:"token,omitempty"`
	Files     []Attachment   `json:"files,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// OutboundEvent is the flat JSON object published to the client channel.
type OutboundEvent struct {
	Type       string       `json:"type"`
	Action     string       `json:"action"`
	Timestamp  string       `json:"timestamp"`
	UserID     string       `json:"userId"`
	UserGroups []string     `json:"userGroups,omitempty"`
	Direction  string       `json:"direction,omitempty"`
	Data       OutboundData `json:"data"`
}

// now is swappable in tests.
var now = time.Now

// timestamp renders the wire timestamp: unix seconds as a string.
func timestamp() string {
	return strconv.FormatInt(now().Unix(), 10)
}

// NewHeartbeat builds the liveness echo for a heartbeat request.
func NewHeartbeat(userID, sessionID string) *OutboundEvent {
	return &OutboundEvent{
		Type:      "text",
		Action:    ActionHeartbeat,
		Timestamp: timestamp(),
		UserID:    userID,
		Data: OutboundData{
			SessionID: sessionID,
		},
	}
}

// NewToken builds one streamed token event.
func NewToken(userID, sessionID string, sequence int, value string) *OutboundEvent {
	return &OutboundEvent{
		Type:      "text",
		Action:    ActionLLMNewToken,
		Timestamp: timestamp(),
		UserID:    userID,
		Data: OutboundData{
			SessionID: sessionID,
			Token: &Token{
				RunID:          sessionID,
				SequenceNumber: sequence,
				Value:          value,
			},
		},
	}
}

// NewFinalResponse builds the single terminal event for a run.
func NewFinalResponse(userID string, userGroups []string, sessionID, content string, files []Attachment, metadata map[string]any) *OutboundEvent {
	return &OutboundEvent{
		Type:       "text",
		Action:     ActionFinalResponse,
		Timestamp:  timestamp(),
		UserID:     userID,
		UserGroups: userGroups,
		Direction:  DirectionOut,
		Data: OutboundData{
			SessionID: sessionID,
			Type:      "text",
			Content:   content,
			Files:     files,
			Metadata:  metadata,
		},
	}
}

// NewError builds the generic error event. The message must never carry
// internal error detail; that belongs in logs only.
func NewError(userID, sessionID, message string) *OutboundEvent {
	return &OutboundEvent{
		Type:      "text",
		Action:    ActionError,
		Timestamp: timestamp(),
		UserID:    userID,
		Direction: DirectionOut,
		Data: OutboundData{
			SessionID: sessionID,
			Type:      "text",
			Content:   message,
		},
	}
}
