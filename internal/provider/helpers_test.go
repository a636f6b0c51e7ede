// ABOUTME: Shared test doubles for the provider adapter tests.
// ABOUTME: Provides an in-memory object store and a capturing runtime invoker.

package provider

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/2389/chatcore/internal/runtime"
)

// memFiles is an in-memory object store.
type memFiles struct {
	objects map[string][]byte
}

func newMemFiles() *memFiles {
	return &memFiles{objects: make(map[string][]byte)}
}

func (m *memFiles) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("no object %s", key)
	}
	return data, nil
}

func (m *memFiles) Put(ctx context.Context, key string, data []byte) error {
	m.objects[key] = data
	return nil
}

// captureInvoker records the last invocation and returns a canned response.
type captureInvoker struct {
	gotRef     string
	gotSession string
	gotPayload []byte

	response string
	err      error
}

func (c *captureInvoker) Invoke(ctx context.Context, ref, sessionID string, payload []byte) (*runtime.Invocation, error) {
	c.gotRef = ref
	c.gotSession = sessionID
	c.gotPayload = payload
	if c.err != nil {
		return nil, c.err
	}
	return &runtime.Invocation{
		ContentType: "application/json",
		Body:        io.NopCloser(strings.NewReader(c.response)),
	}, nil
}
