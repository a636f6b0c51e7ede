// ABOUTME: Claude provider adapter: anthropic-format content blocks over the runtime.
// ABOUTME: Interleaves image and document attachments into structured user messages.

package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/chatcore/internal/event"
	"github.com/2389/chatcore/internal/files"
	"github.com/2389/chatcore/internal/session"
)

const anthropicVersion = "bedrock-2023-05-31"

// Defaults applied by the adapter itself; caller params override them.
const (
	claudeDefaultMaxTokens   = 512
	claudeDefaultTemperature = 0.3
)

type claudeImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type claudeDocumentSource struct {
	Bytes string `json:"bytes"`
}

type claudeDocument struct {
	Format string               `json:"format"`
	Name   string               `json:"name"`
	Source claudeDocumentSource `json:"source"`
}

// claudeBlock is one content item in a user message. Exactly one of
// Text/Source/Document is populated depending on Type.
type claudeBlock struct {
	Type     string             `json:"type,omitempty"`
	Text     string             `json:"text,omitempty"`
	Source   *claudeImageSource `json:"source,omitempty"`
	Document *claudeDocument    `json:"document,omitempty"`
}

// claudeMessage holds either a block list (user turns) or a plain string
// (assistant turns), matching the provider wire format.
type claudeMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type claudePayload struct {
	AnthropicVersion string          `json:"anthropic_version"`
	System           string          `json:"system,omitempty"`
	MaxTokens        int             `json:"max_tokens"`
	Messages         []claudeMessage `json:"messages"`
	Temperature      float64         `json:"temperature"`
	TopP             *float64        `json:"top_p,omitempty"`
}

// Claude is the adapter for the Claude text-generation family.
type Claude struct {
	deps    Deps
	modelID string
	logger  *slog.Logger
}

// NewClaude creates a Claude adapter. The mode flag is ignored; this family
// is text-only.
func NewClaude(deps Deps, modelID, mode string) Adapter {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Claude{
		deps:    deps,
		modelID: modelID,
		logger:  logger.With("component", "claude-adapter", "model_id", modelID),
	}
}

func (c *Claude) Name() string { return "anthropic.claude" }

// FormatPrompt builds the anthropic-format message list: history turns first,
// then the current prompt, with attachments expanded into content blocks on
// their owning user turn.
func (c *Claude) FormatPrompt(ctx context.Context, prompt string, history []session.Message, atts []event.Attachment, userID string) (*Request, error) {
	var messages []claudeMessage

	for i, msg := range history {
		switch msg.Role {
		case session.RoleHuman:
			blocks := []claudeBlock{{Type: "text", Text: msg.Content}}
			for idx, att := range attachmentsFromMetadata(msg.Metadata) {
				block, err := c.attachmentBlock(ctx, att, userID, fmt.Sprintf("history_file_%d", idx))
				if err != nil {
					return nil, fmt.Errorf("embedding history attachment %d of message %d: %w", idx, i, err)
				}
				blocks = append(blocks, block)
			}
			messages = append(messages, claudeMessage{Role: "user", Content: blocks})
		case session.RoleAssistant:
			messages = append(messages, claudeMessage{Role: "assistant", Content: msg.Content})
		}
	}

	blocks := []claudeBlock{{Type: "text", Text: prompt}}
	for idx, att := range atts {
		block, err := c.attachmentBlock(ctx, att, userID, fmt.Sprintf("session_file_%d", idx))
		if err != nil {
			return nil, fmt.Errorf("embedding attachment %d: %w", idx, err)
		}
		blocks = append(blocks, block)
	}
	messages = append(messages, claudeMessage{Role: "user", Content: blocks})

	payload := &claudePayload{
		AnthropicVersion: anthropicVersion,
		System:           c.deps.SystemPrompt,
		MaxTokens:        claudeDefaultMaxTokens,
		Messages:         messages,
		Temperature:      claudeDefaultTemperature,
	}

	return &Request{Payload: payload, UserID: userID, Files: atts}, nil
}

// attachmentBlock reads an attachment from the object store and embeds it:
// PDFs become document blocks, everything else an image block.
func (c *Claude) attachmentBlock(ctx context.Context, att event.Attachment, userID, name string) (claudeBlock, error) {
	if att.Key == "" {
		return claudeBlock{}, fmt.Errorf("attachment has no object key")
	}

	data, err := c.deps.Files.Get(ctx, files.UserKey(userID, att.Key))
	if err != nil {
		return claudeBlock{}, err
	}

	if strings.HasSuffix(att.Key, ".pdf") {
		return claudeBlock{
			Document: &claudeDocument{
				Format: "pdf",
				Name:   name,
				Source: claudeDocumentSource{Bytes: base64.StdEncoding.EncodeToString(data)},
			},
		}, nil
	}

	return claudeBlock{
		Type: "image",
		Source: &claudeImageSource{
			Type:      "base64",
			MediaType: "image/jpeg",
			Data:      base64.StdEncoding.EncodeToString(data),
		},
	}, nil
}

// Invoke applies caller parameters over the adapter defaults and submits the
// request. The raw invocation is handed back for demultiplexing.
func (c *Claude) Invoke(ctx context.Context, req *Request, sessionID string, params event.ModelParams) (*Outcome, error) {
	payload, ok := req.Payload.(*claudePayload)
	if !ok {
		return nil, fmt.Errorf("request was not formatted by the claude adapter")
	}

	if params.Temperature != nil {
		payload.Temperature = *params.Temperature
	}
	if params.TopP != nil {
		payload.TopP = params.TopP
	}
	if params.MaxTokens != nil {
		payload.MaxTokens = *params.MaxTokens
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding claude request: %w", err)
	}

	inv, err := c.deps.Invoker.Invoke(ctx, c.modelID, sessionID, body)
	if err != nil {
		return nil, err
	}
	return &Outcome{Raw: inv}, nil
}

// SanitizeForLogging renders the request with image data and document bytes
// blanked. The original request is not modified.
func (c *Claude) SanitizeForLogging(req *Request) string {
	payload, ok := req.Payload.(*claudePayload)
	if !ok {
		return "<not a claude request>"
	}

	redacted := *payload
	redacted.Messages = make([]claudeMessage, len(payload.Messages))
	for i, msg := range payload.Messages {
		redacted.Messages[i] = msg
		blocks, ok := msg.Content.([]claudeBlock)
		if !ok {
			continue
		}
		clean := make([]claudeBlock, len(blocks))
		for j, block := range blocks {
			clean[j] = block
			if block.Source != nil {
				src := *block.Source
				src.Data = ""
				clean[j].Source = &src
			}
			if block.Document != nil {
				doc := *block.Document
				doc.Source.Bytes = ""
				clean[j].Document = &doc
			}
		}
		redacted.Messages[i].Content = clean
	}

	out, err := json.Marshal(&redacted)
	if err != nil {
		return "<unserializable request>"
	}
	return string(out)
}
