// ABOUTME: HTTP client for the remote agent runtime invocation API.
// ABOUTME: Qualifies runtime refs and returns raw responses for demultiplexing.

package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnavailable indicates the runtime could not be reached or refused the
// invocation. Callers surface a generic message; detail stays in logs.
var ErrUnavailable = errors.New("agent runtime unavailable")

// Invocation is the raw result of one runtime call. The body is consumed
// exactly once by the response demultiplexer (or by an adapter that owns the
// response format, e.g. generation jobs).
type Invocation struct {
	ContentType      string
	Body             io.ReadCloser
	RuntimeSessionID string
	TraceID          string
	Metrics          map[string]any
}

// String renders the invocation metadata without touching the body. Used as
// the last-resort terminal value when a response has no readable payload.
func (inv *Invocation) String() string {
	return fmt.Sprintf("invocation(contentType=%s, runtimeSessionId=%s, traceId=%s)",
		inv.ContentType, inv.RuntimeSessionID, inv.TraceID)
}

// Invoker is the runtime invocation contract shared by all provider adapters.
type Invoker interface {
	Invoke(ctx context.Context, ref, sessionID string, payload []byte) (*Invocation, error)
}

// RefResolver expands short runtime identifiers into fully-qualified
// references using a partition/region/account template. Already-qualified
// refs pass through unchanged.
type RefResolver struct {
	Partition string
	Region    string
	Account   string
}

// Qualify returns the fully-qualified runtime reference for id.
func (r RefResolver) Qualify(id string) string {
	if strings.HasPrefix(id, "arn:") {
		return id
	}
	return fmt.Sprintf("arn:%s:bedrock-agentcore:%s:%s:runtime/%s",
		r.Partition, r.Region, r.Account, id)
}

// HTTPClient invokes the runtime over HTTP. Responses may be a synchronous
// JSON document or a text/event-stream; the client does not interpret either,
// it only hands back the raw body and metadata headers.
type HTTPClient struct {
	endpoint string
	resolver RefResolver
	httpc    *http.Client
	logger   *slog.Logger
}

// NewHTTPClient creates a runtime client for the given endpoint. The timeout
// bounds the whole invocation including stream consumption; the upstream
// transport owns retry, so zero means no client-side limit.
func NewHTTPClient(endpoint string, resolver RefResolver, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		resolver: resolver,
		httpc:    &http.Client{Timeout: timeout},
		logger:   logger.With("component", "runtime-client"),
	}
}

// Invoke posts the payload to the runtime and returns the raw response.
// The caller owns closing the returned body.
func (c *HTTPClient) Invoke(ctx context.Context, ref, sessionID string, payload []byte) (*Invocation, error) {
	qualified := c.resolver.Qualify(ref)
	invokeURL := c.endpoint + "/runtimes/" + url.PathEscape(qualified) + "/invocations"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, invokeURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building invoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-ID", sessionID)

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.logger.Error("runtime invocation failed",
			"runtime_ref", qualified,
			"session_id", sessionID,
			"error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		c.logger.Error("runtime returned error status",
			"runtime_ref", qualified,
			"session_id", sessionID,
			"status", resp.StatusCode,
			"body", string(body))
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	inv := &Invocation{
		ContentType:      resp.Header.Get("Content-Type"),
		Body:             resp.Body,
		RuntimeSessionID: resp.Header.Get("X-Runtime-Session-ID"),
		TraceID:          resp.Header.Get("X-Trace-ID"),
	}

	if raw := resp.Header.Get("X-Invocation-Metrics"); raw != "" {
		var metrics map[string]any
		if err := json.Unmarshal([]byte(raw), &metrics); err == nil {
			inv.Metrics = metrics
		} else {
			c.logger.Warn("ignoring unparseable invocation metrics", "raw", raw)
		}
	}

	return inv, nil
}
