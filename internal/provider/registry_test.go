// ABOUTME: Tests for adapter registry resolution.
// ABOUTME: Covers first-match-wins ordering, anchored matching, and the unsupported-model error.

package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/chatcore/internal/event"
	"github.com/2389/chatcore/internal/session"
)

// stubAdapter records which factory produced it.
type stubAdapter struct {
	name string
}

func (s *stubAdapter) Name() string { return s.name }
func (s *stubAdapter) FormatPrompt(ctx context.Context, prompt string, history []session.Message, atts []event.Attachment, userID string) (*Request, error) {
	return &Request{}, nil
}
func (s *stubAdapter) Invoke(ctx context.Context, req *Request, sessionID string, params event.ModelParams) (*Outcome, error) {
	return &Outcome{}, nil
}
func (s *stubAdapter) SanitizeForLogging(req *Request) string { return "" }

func stubFactory(name string) Factory {
	return func(deps Deps, modelID, mode string) Adapter {
		return &stubAdapter{name: name}
	}
}

func TestResolve_FirstMatchWins(t *testing.T) {
	r := NewRegistry(Deps{})
	require.NoError(t, r.Register(`^bedrock\.anthropic\.claude-3.*`, stubFactory("specific")))
	require.NoError(t, r.Register(`^bedrock\..*\.anthropic\.claude-3.*`, stubFactory("general")))

	adapter, err := r.Resolve("bedrock.anthropic.claude-3-sonnet", ModeText)
	require.NoError(t, err)
	assert.Equal(t, "specific", adapter.Name())
}

func TestResolve_RegistrationOrderDecidesOverlap(t *testing.T) {
	r := NewRegistry(Deps{})
	require.NoError(t, r.Register(`bedrock\..*`, stubFactory("broad")))
	require.NoError(t, r.Register(`bedrock\.anthropic\..*`, stubFactory("narrow")))

	// The broad rule was registered first, so it wins even though the narrow
	// rule also matches.
	adapter, err := r.Resolve("bedrock.anthropic.claude-3-haiku", ModeText)
	require.NoError(t, err)
	assert.Equal(t, "broad", adapter.Name())
}

func TestResolve_AnchoredNotSubstring(t *testing.T) {
	r := NewRegistry(Deps{})
	require.NoError(t, r.Register(`bedrock\.anthropic\..*`, stubFactory("claude")))

	_, err := r.Resolve("wrapped-bedrock.anthropic.claude-3", ModeText)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestResolve_NoMatch(t *testing.T) {
	r := NewRegistry(Deps{})
	require.NoError(t, r.Register(`bedrock\.amazon\.nova.*`, stubFactory("nova")))

	_, err := r.Resolve("openai.gpt-4", ModeText)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedModel)
	assert.Contains(t, err.Error(), "openai.gpt-4")
}

func TestRegister_BadPattern(t *testing.T) {
	r := NewRegistry(Deps{})
	err := r.Register(`bedrock\.(unclosed`, stubFactory("x"))
	require.Error(t, err)
}

func TestRegisterDefaults(t *testing.T) {
	r := NewRegistry(Deps{})
	require.NoError(t, RegisterDefaults(r))

	tests := []struct {
		modelID string
		want    string
	}{
		{"bedrock.anthropic.claude-3-sonnet", "anthropic.claude"},
		{"bedrock.amazon.nova-lite", "amazon.nova"},
		{"bedrock.us.amazon.nova-pro", "amazon.nova"},
		{"arn:aws:bedrock-agentcore:us-east-1:1:runtime/my-agent", "agentcore"},
		{"agentcore.research-assistant", "agentcore"},
	}

	for _, tc := range tests {
		t.Run(tc.modelID, func(t *testing.T) {
			adapter, err := r.Resolve(tc.modelID, ModeText)
			require.NoError(t, err)
			assert.Equal(t, tc.want, adapter.Name())
		})
	}
}
