// ABOUTME: Tests for configuration loading.
// ABOUTME: Covers env var expansion, duration parsing, defaults, and validation.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chatcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const minimalConfig = `
server:
  http_addr: ":8080"
database:
  path: "data/sessions.db"
runtime:
  endpoint: "http://localhost:9000"
notifier:
  topic_url: "http://localhost:9001/events"
`

func TestLoad_Minimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "data/sessions.db", cfg.Database.Path)
	assert.Equal(t, "http://localhost:9000", cfg.Runtime.Endpoint)
	assert.Equal(t, "http://localhost:9001/events", cfg.Notifier.TopicURL)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 8*time.Hour, cfg.Session.MaxAge)
	assert.Equal(t, 15*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, 5*time.Second, cfg.Notifier.PublishTimeout)
	assert.Equal(t, 4, cfg.Dispatch.Workers)
	assert.Equal(t, 5*time.Minute, cfg.Dispatch.DedupeTTL)
	assert.Equal(t, 4096, cfg.Dispatch.DedupeMaxSize)
	assert.Equal(t, "data/files", cfg.Files.Root)
	assert.NotEmpty(t, cfg.Provider.SystemPrompt)
}

func TestLoad_ParsesDurations(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
session:
  max_age: "4h"
  idle_timeout: "30m"
dispatch:
  workers: 8
  dedupe_ttl: "10m"
`))
	require.NoError(t, err)

	assert.Equal(t, 4*time.Hour, cfg.Session.MaxAge)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, 8, cfg.Dispatch.Workers)
	assert.Equal(t, 10*time.Minute, cfg.Dispatch.DedupeTTL)
}

func TestLoad_BadDuration(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
session:
  max_age: "eight hours"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_age")
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("CHATCORE_TEST_ENDPOINT", "http://runtime.internal:9000")

	cfg, err := Load(writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "data/sessions.db"
runtime:
  endpoint: "${CHATCORE_TEST_ENDPOINT}"
notifier:
  topic_url: "http://localhost:9001/events"
`))
	require.NoError(t, err)
	assert.Equal(t, "http://runtime.internal:9000", cfg.Runtime.Endpoint)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"missing http_addr",
			`
database:
  path: "x.db"
runtime:
  endpoint: "http://x"
notifier:
  topic_url: "http://y"
`,
			"server.http_addr",
		},
		{
			"missing database path",
			`
server:
  http_addr: ":8080"
runtime:
  endpoint: "http://x"
notifier:
  topic_url: "http://y"
`,
			"database.path",
		},
		{
			"missing runtime endpoint",
			`
server:
  http_addr: ":8080"
database:
  path: "x.db"
notifier:
  topic_url: "http://y"
`,
			"runtime.endpoint",
		},
		{
			"missing topic url",
			`
server:
  http_addr: ":8080"
database:
  path: "x.db"
runtime:
  endpoint: "http://x"
`,
			"notifier.topic_url",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
