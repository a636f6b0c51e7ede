// ABOUTME: Response demultiplexer for runtime invocations.
// ABOUTME: Decodes synchronous JSON documents and live event-streams into token events plus one terminal value.

package stream

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/2389/chatcore/internal/runtime"
)

// ErrDecode indicates the response body could not be read. Malformed stream
// lines never produce this; they are skipped per the wire contract.
var ErrDecode = errors.New("unable to decode runtime response")

// streamMarker is the event-stream line prefix. Chunks arrive double-encoded:
// the line's payload is a JSON string which itself starts with the marker and
// wraps the actual chunk object. Both decode steps must succeed for a chunk
// to be emitted; anything else is skipped. This shape is the runtime's wire
// contract, odd as it looks.
const streamMarker = "data: "

// Chunk is one decoded fragment of a streamed response. Sequence numbers
// start at 1 and exist for client-side ordering only.
type Chunk struct {
	Sequence int
	Content  string
}

// EmitFunc receives each chunk as soon as it is decoded. Returning an error
// aborts the stream; the error propagates to the Demux caller.
type EmitFunc func(Chunk) error

// Demuxer turns raw invocations into zero or more chunks followed by exactly
// one terminal value.
type Demuxer struct {
	logger *slog.Logger
}

// NewDemuxer creates a Demuxer. Pass nil for the default logger.
func NewDemuxer(logger *slog.Logger) *Demuxer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Demuxer{logger: logger.With("component", "demux")}
}

// Demux consumes the invocation body and returns the terminal content.
// Event-stream responses emit chunks through emit as they decode; the
// terminal value is the concatenation of all emitted chunk contents.
// Synchronous responses emit nothing and return the extracted document text.
// The body is always closed.
func (d *Demuxer) Demux(inv *runtime.Invocation, emit EmitFunc) (string, error) {
	defer inv.Body.Close()

	if strings.Contains(inv.ContentType, "text/event-stream") {
		return d.demuxStream(inv, emit)
	}
	return d.demuxDocument(inv)
}

// demuxStream reads the body line by line, applying the double-decode:
// strip the marker, parse the remainder as a JSON string, and only if that
// string itself carries the marker, parse its remainder as the chunk object.
// Lines failing either decode are skipped, never fatal.
func (d *Demuxer) demuxStream(inv *runtime.Invocation, emit EmitFunc) (string, error) {
	var accumulated strings.Builder
	sequence := 0

	scanner := bufio.NewScanner(inv.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		line = strings.TrimPrefix(line, streamMarker)

		var outer string
		if err := json.Unmarshal([]byte(line), &outer); err != nil {
			continue
		}
		if !strings.HasPrefix(outer, streamMarker) {
			continue
		}
		inner := strings.TrimSpace(outer[len(streamMarker):])

		var chunk struct {
			Event string `json:"event"`
		}
		if err := json.Unmarshal([]byte(inner), &chunk); err != nil {
			continue
		}
		if chunk.Event == "" {
			continue
		}

		sequence++
		accumulated.WriteString(chunk.Event)
		if err := emit(Chunk{Sequence: sequence, Content: chunk.Event}); err != nil {
			return accumulated.String(), err
		}
	}

	if err := scanner.Err(); err != nil {
		d.logger.Error("stream read failed mid-response",
			"chunks_emitted", sequence,
			"error", err)
		return accumulated.String(), fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return accumulated.String(), nil
}

// demuxDocument extracts the terminal text from a synchronous response with a
// three-level fallback: the nested result structure, then the raw body, then
// a string rendering of the invocation itself. A terminal value is always
// produced.
func (d *Demuxer) demuxDocument(inv *runtime.Invocation) (string, error) {
	body, err := io.ReadAll(inv.Body)
	if err != nil {
		d.logger.Error("failed to read response body", "error", err)
		return inv.String(), nil
	}

	var doc struct {
		Result *struct {
			Content []map[string]any `json:"content"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		// A decodable body without the result structure (an array, a bare
		// string) still falls back to the raw body; only unparseable bodies
		// drop to the string rendering.
		if json.Valid(body) {
			return string(body), nil
		}
		d.logger.Warn("response body is not valid JSON, using string rendering",
			"error", err)
		return inv.String(), nil
	}

	if doc.Result == nil || doc.Result.Content == nil {
		return string(body), nil
	}

	var content strings.Builder
	for _, item := range doc.Result.Content {
		if text, ok := item["text"].(string); ok {
			content.WriteString(text)
		}
	}
	return content.String(), nil
}
