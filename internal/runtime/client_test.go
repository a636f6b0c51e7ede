// ABOUTME: Tests for the runtime HTTP client and reference qualification.
// ABOUTME: Covers the invocation URL shape, metadata headers, and error status mapping.

package runtime

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualify(t *testing.T) {
	r := RefResolver{Partition: "aws", Region: "us-east-1", Account: "123456789012"}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"short id gets templated",
			"my-agent",
			"arn:aws:bedrock-agentcore:us-east-1:123456789012:runtime/my-agent",
		},
		{
			"qualified ref passes through",
			"arn:aws:bedrock-agentcore:eu-west-1:999:runtime/other",
			"arn:aws:bedrock-agentcore:eu-west-1:999:runtime/other",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, r.Qualify(tc.in))
		})
	}
}

func TestInvoke(t *testing.T) {
	var gotPath, gotSession, gotBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotSession = r.Header.Get("X-Session-ID")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Runtime-Session-ID", "rt-sess-9")
		w.Header().Set("X-Trace-ID", "trace-42")
		w.Header().Set("X-Invocation-Metrics", `{"latencyMs": 120}`)
		w.Write([]byte(`{"result": "ok"}`))
	}))
	defer srv.Close()

	resolver := RefResolver{Partition: "aws", Region: "us-east-1", Account: "1"}
	client := NewHTTPClient(srv.URL, resolver, 5*time.Second, nil)

	inv, err := client.Invoke(context.Background(), "my-agent", "sess-1", []byte(`{"text":"hi"}`))
	require.NoError(t, err)
	defer inv.Body.Close()

	wantRef := url.PathEscape("arn:aws:bedrock-agentcore:us-east-1:1:runtime/my-agent")
	assert.Equal(t, "/runtimes/"+wantRef+"/invocations", gotPath)
	assert.Equal(t, "sess-1", gotSession)
	assert.Equal(t, `{"text":"hi"}`, gotBody)

	assert.Equal(t, "application/json", inv.ContentType)
	assert.Equal(t, "rt-sess-9", inv.RuntimeSessionID)
	assert.Equal(t, "trace-42", inv.TraceID)
	require.NotNil(t, inv.Metrics)
	assert.Equal(t, float64(120), inv.Metrics["latencyMs"])

	body, err := io.ReadAll(inv.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"result": "ok"}`, string(body))
}

func TestInvoke_ErrorStatusIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, RefResolver{}, 5*time.Second, nil)

	_, err := client.Invoke(context.Background(), "arn:aws:bedrock-agentcore:us-east-1:1:runtime/a", "sess-1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestInvoke_ConnectionRefusedIsUnavailable(t *testing.T) {
	// Grab a port that is no longer listening.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead := srv.URL
	srv.Close()

	client := NewHTTPClient(dead, RefResolver{}, time.Second, nil)

	_, err := client.Invoke(context.Background(), "arn:x:bedrock-agentcore:r:a:runtime/b", "sess-1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestInvoke_BadMetricsHeaderIgnored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Invocation-Metrics", "not json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, RefResolver{}, 5*time.Second, nil)

	inv, err := client.Invoke(context.Background(), "arn:x:bedrock-agentcore:r:a:runtime/b", "sess-1", nil)
	require.NoError(t, err)
	defer inv.Body.Close()
	assert.Nil(t, inv.Metrics)
}

func TestInvocationString(t *testing.T) {
	inv := &Invocation{ContentType: "application/json", RuntimeSessionID: "rt-1", TraceID: "tr-1"}
	s := inv.String()
	assert.Contains(t, s, "application/json")
	assert.Contains(t, s, "rt-1")
	assert.Contains(t, s, "tr-1")
}
