// ABOUTME: Nova multimodal provider adapter with text, image and video generation modes.
// ABOUTME: Generation modes submit structured jobs and reference results in the object store.

package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/google/uuid"

	"github.com/2389/chatcore/internal/event"
	"github.com/2389/chatcore/internal/files"
	"github.com/2389/chatcore/internal/session"
)

// Placeholder for empty assistant turns; the provider rejects empty content.
const novaEmptyContent = "<EMPTY>"

type novaMedia struct {
	Format string          `json:"format,omitempty"`
	Source novaMediaSource `json:"source"`
}

type novaMediaSource struct {
	Bytes string `json:"bytes"`
}

// novaBlock is one content item; exactly one field is populated.
type novaBlock struct {
	Text     string     `json:"text,omitempty"`
	Image    *novaMedia `json:"image,omitempty"`
	Document *novaMedia `json:"document,omitempty"`
}

type novaMessage struct {
	Role    string      `json:"role"`
	Content []novaBlock `json:"content"`
}

type novaInference struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"topP,omitempty"`
	MaxTokens   *int     `json:"maxTokens,omitempty"`
}

type novaPayload struct {
	Messages        []novaMessage  `json:"messages"`
	LastMessage     string         `json:"last_message"`
	InferenceConfig *novaInference `json:"inferenceConfig,omitempty"`
}

type novaImageJob struct {
	TaskType          string              `json:"taskType"`
	TextToImageParams novaTextToImage     `json:"textToImageParams"`
	ImageConfig       novaImageGeneration `json:"imageGenerationConfig"`
}

type novaTextToImage struct {
	Text string `json:"text"`
}

type novaImageGeneration struct {
	NumberOfImages int     `json:"numberOfImages"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	CfgScale       float64 `json:"cfgScale"`
	Seed           int64   `json:"seed"`
}

type novaVideoJob struct {
	TaskType          string              `json:"taskType"`
	TextToVideoParams novaTextToVideo     `json:"textToVideoParams"`
	VideoConfig       novaVideoGeneration `json:"videoGenerationConfig"`
}

type novaTextToVideo struct {
	Text   string      `json:"text"`
	Images []novaMedia `json:"images,omitempty"`
}

type novaVideoGeneration struct {
	DurationSeconds int    `json:"durationSeconds"`
	FPS             int    `json:"fps"`
	Dimension       string `json:"dimension"`
	Seed            int64  `json:"seed"`
}

// Nova is the adapter for the Nova multimodal family.
type Nova struct {
	deps    Deps
	modelID string
	mode    string
	logger  *slog.Logger
}

// NewNova creates a Nova adapter for the given generation mode.
func NewNova(deps Deps, modelID, mode string) Adapter {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Nova{
		deps:    deps,
		modelID: modelID,
		mode:    mode,
		logger:  logger.With("component", "nova-adapter", "model_id", modelID),
	}
}

func (n *Nova) Name() string { return "amazon.nova" }

// FormatPrompt builds the nova message list. File blocks precede the text
// block on each user turn; empty assistant turns get a placeholder.
func (n *Nova) FormatPrompt(ctx context.Context, prompt string, history []session.Message, atts []event.Attachment, userID string) (*Request, error) {
	var messages []novaMessage

	for i, msg := range history {
		switch msg.Role {
		case session.RoleHuman:
			var blocks []novaBlock
			for idx, att := range attachmentsFromMetadata(msg.Metadata) {
				block, err := n.attachmentBlock(ctx, att, userID)
				if err != nil {
					return nil, fmt.Errorf("embedding history attachment %d of message %d: %w", idx, i, err)
				}
				blocks = append(blocks, block)
			}
			blocks = append(blocks, novaBlock{Text: msg.Content})
			messages = append(messages, novaMessage{Role: "user", Content: blocks})
		case session.RoleAssistant:
			content := msg.Content
			if content == "" {
				content = novaEmptyContent
			}
			messages = append(messages, novaMessage{
				Role:    "assistant",
				Content: []novaBlock{{Text: content}},
			})
		}
	}

	var blocks []novaBlock
	for idx, att := range atts {
		block, err := n.attachmentBlock(ctx, att, userID)
		if err != nil {
			return nil, fmt.Errorf("embedding attachment %d: %w", idx, err)
		}
		blocks = append(blocks, block)
	}
	blocks = append(blocks, novaBlock{Text: prompt})
	messages = append(messages, novaMessage{Role: "user", Content: blocks})

	payload := &novaPayload{
		Messages:    messages,
		LastMessage: prompt,
	}
	return &Request{Payload: payload, UserID: userID, Files: atts}, nil
}

func (n *Nova) attachmentBlock(ctx context.Context, att event.Attachment, userID string) (novaBlock, error) {
	if att.Key == "" {
		return novaBlock{}, fmt.Errorf("attachment has no object key")
	}

	data, err := n.deps.Files.Get(ctx, files.UserKey(userID, att.Key))
	if err != nil {
		return novaBlock{}, err
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	if strings.HasSuffix(att.Key, ".pdf") {
		return novaBlock{Document: &novaMedia{Format: "pdf", Source: novaMediaSource{Bytes: encoded}}}, nil
	}
	return novaBlock{Image: &novaMedia{Format: "jpeg", Source: novaMediaSource{Bytes: encoded}}}, nil
}

// Invoke dispatches on the adapter mode: text goes through the normal prompt
// path, image and video submit generation jobs.
func (n *Nova) Invoke(ctx context.Context, req *Request, sessionID string, params event.ModelParams) (*Outcome, error) {
	payload, ok := req.Payload.(*novaPayload)
	if !ok {
		return nil, fmt.Errorf("request was not formatted by the nova adapter")
	}

	switch n.mode {
	case ModeImage:
		return n.generateImage(ctx, payload, req.UserID, sessionID, params)
	case ModeVideo:
		return n.generateVideo(ctx, payload, req, sessionID, params)
	}

	if params.Temperature != nil || params.TopP != nil || params.MaxTokens != nil {
		payload.InferenceConfig = &novaInference{
			Temperature: params.Temperature,
			TopP:        params.TopP,
			MaxTokens:   params.MaxTokens,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding nova request: %w", err)
	}

	inv, err := n.deps.Invoker.Invoke(ctx, n.modelID, sessionID, body)
	if err != nil {
		return nil, err
	}
	return &Outcome{Raw: inv}, nil
}

// generateImage submits a synchronous image job, stores the decoded result
// and returns a file reference with no text content.
func (n *Nova) generateImage(ctx context.Context, payload *novaPayload, userID, sessionID string, params event.ModelParams) (*Outcome, error) {
	job := novaImageJob{
		TaskType:          "TEXT_IMAGE",
		TextToImageParams: novaTextToImage{Text: payload.LastMessage},
		ImageConfig: novaImageGeneration{
			NumberOfImages: 1,
			Width:          1280,
			Height:         768,
			CfgScale:       7.0,
			Seed:           seedFrom(params),
		},
	}
	n.logger.Info("submitting image generation job", "seed", job.ImageConfig.Seed)

	body, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encoding image job: %w", err)
	}

	inv, err := n.deps.Invoker.Invoke(ctx, n.modelID, sessionID, body)
	if err != nil {
		return nil, err
	}
	defer inv.Body.Close()

	raw, err := io.ReadAll(inv.Body)
	if err != nil {
		return nil, fmt.Errorf("reading image job response: %w", err)
	}

	var result struct {
		Images []string `json:"images"`
		Error  string   `json:"error"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding image job response: %w", err)
	}
	if result.Error != "" {
		n.logger.Error("image generation reported an error", "error", result.Error)
	}
	if len(result.Images) == 0 {
		return nil, fmt.Errorf("image job produced no images")
	}

	data, err := base64.StdEncoding.DecodeString(result.Images[0])
	if err != nil {
		return nil, fmt.Errorf("decoding generated image: %w", err)
	}

	key := uuid.New().String() + ".png"
	if err := n.deps.Files.Put(ctx, files.UserKey(userID, key), data); err != nil {
		return nil, fmt.Errorf("storing generated image: %w", err)
	}

	return &Outcome{Final: &Final{
		Files: []event.Attachment{{Provider: "store", Key: key, Type: ModeImage}},
	}}, nil
}

// generateVideo starts an asynchronous video job. The runtime writes the
// result into the object store itself; we return the reference the job id
// implies.
func (n *Nova) generateVideo(ctx context.Context, payload *novaPayload, req *Request, sessionID string, params event.ModelParams) (*Outcome, error) {
	job := novaVideoJob{
		TaskType:          "TEXT_VIDEO",
		TextToVideoParams: novaTextToVideo{Text: payload.LastMessage},
		VideoConfig: novaVideoGeneration{
			DurationSeconds: 6,
			FPS:             24,
			Dimension:       "1280x720",
			Seed:            seedFrom(params),
		},
	}

	// Conditioning images ride along base64-encoded.
	for _, att := range req.Files {
		if att.Type != ModeImage {
			continue
		}
		data, err := n.deps.Files.Get(ctx, files.UserKey(req.UserID, att.Key))
		if err != nil {
			return nil, fmt.Errorf("reading conditioning image %s: %w", att.Key, err)
		}
		job.TextToVideoParams.Images = append(job.TextToVideoParams.Images, novaMedia{
			Format: "jpeg",
			Source: novaMediaSource{Bytes: base64.StdEncoding.EncodeToString(data)},
		})
	}

	body, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encoding video job: %w", err)
	}

	inv, err := n.deps.Invoker.Invoke(ctx, n.modelID, sessionID, body)
	if err != nil {
		return nil, err
	}
	defer inv.Body.Close()

	raw, err := io.ReadAll(inv.Body)
	if err != nil {
		return nil, fmt.Errorf("reading video job response: %w", err)
	}

	var result struct {
		InvocationARN string `json:"invocationArn"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding video job response: %w", err)
	}
	if result.InvocationARN == "" {
		return nil, fmt.Errorf("video job returned no invocation id")
	}

	parts := strings.Split(result.InvocationARN, "/")
	videoID := parts[len(parts)-1]
	n.logger.Info("video generation job started", "video_id", videoID)

	return &Outcome{Final: &Final{
		Files: []event.Attachment{{Provider: "store", Key: videoID + "/output.mp4", Type: ModeVideo}},
	}}, nil
}

// SanitizeForLogging blanks embedded image and document bytes.
func (n *Nova) SanitizeForLogging(req *Request) string {
	payload, ok := req.Payload.(*novaPayload)
	if !ok {
		return "<not a nova request>"
	}

	redacted := *payload
	redacted.Messages = make([]novaMessage, len(payload.Messages))
	for i, msg := range payload.Messages {
		redacted.Messages[i] = msg
		clean := make([]novaBlock, len(msg.Content))
		for j, block := range msg.Content {
			clean[j] = block
			if block.Image != nil {
				img := *block.Image
				img.Source.Bytes = ""
				clean[j].Image = &img
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

// seedFrom returns the caller's seed or a random one.
func seedFrom(params event.ModelParams) int64 {
	if params.Seed != nil {
		return *params.Seed
	}
	return rand.Int63n(2147483647)
}
