// ABOUTME: Provider adapter capability interface shared by all model backends.
// ABOUTME: Defines Request/Outcome types and helpers common to the adapter implementations.

package provider

import (
	"context"
	"log/slog"

	"github.com/2389/chatcore/internal/event"
	"github.com/2389/chatcore/internal/files"
	"github.com/2389/chatcore/internal/runtime"
	"github.com/2389/chatcore/internal/session"
)

// Generation modes. Text is the default; image and video bypass prompt
// formatting and submit structured generation jobs instead.
const (
	ModeText  = ""
	ModeImage = "image"
	ModeVideo = "video"
)

// Request is a formatted provider invocation. Payload is the adapter-specific
// body; only the owning adapter interprets it.
type Request struct {
	Payload any
	UserID  string
	Files   []event.Attachment
}

// Final is an already-assembled result that needs no demultiplexing, produced
// by generation jobs whose output lands in the object store.
type Final struct {
	Content string
	Files   []event.Attachment
}

// Outcome is the result of one adapter invocation: either a raw invocation
// for the demultiplexer, or a final value. Exactly one field is set.
type Outcome struct {
	Raw   *runtime.Invocation
	Final *Final
}

// Adapter is the capability set every provider family implements. Adapters
// are created per message by the registry and are not reused.
type Adapter interface {
	// Name identifies the provider family, used in history metadata.
	Name() string

	// FormatPrompt shapes the prompt, history and attachments into a
	// provider request. Attachment bytes are read from the object store and
	// embedded per the provider's content-block rules.
	FormatPrompt(ctx context.Context, prompt string, history []session.Message, atts []event.Attachment, userID string) (*Request, error)

	// Invoke submits the request to the runtime. Caller-supplied parameters
	// are forwarded only when set; unset parameters never override provider
	// defaults.
	Invoke(ctx context.Context, req *Request, sessionID string, params event.ModelParams) (*Outcome, error)

	// SanitizeForLogging renders the request with all embedded binary
	// payloads stripped. The unsanitized request must never be logged.
	SanitizeForLogging(req *Request) string
}

// Deps are the collaborators adapters need, built once at startup and shared
// read-only.
type Deps struct {
	Invoker      runtime.Invoker
	Files        files.Store
	SystemPrompt string
	Logger       *slog.Logger
}

// attachmentsFromMetadata recovers attachment references stored under the
// "files" metadata key of a history message. History round-trips through
// JSON, so the entries arrive as loose maps.
func attachmentsFromMetadata(metadata map[string]any) []event.Attachment {
	raw, ok := metadata["files"].([]any)
	if !ok {
		return nil
	}
	var atts []event.Attachment
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		att := event.Attachment{}
		if v, ok := m["key"].(string); ok {
			att.Key = v
		}
		if v, ok := m["type"].(string); ok {
			att.Type = v
		}
		if v, ok := m["provider"].(string); ok {
			att.Provider = v
		}
		if att.Key != "" {
			atts = append(atts, att)
		}
	}
	return atts
}
