package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, "static", cfg.Assistant.Mode)
	assert.Equal(t, time.Second, cfg.Assistant.ThinkingDelay)
	assert.Equal(t, 10, cfg.Assistant.HistoryLimit)
	assert.Equal(t, 500, cfg.LLM.Generation.MaxTokens)
	assert.Equal(t, "paydash-interactions", cfg.Kafka.Topic)
	assert.True(t, cfg.Assistant.Archive)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
assistant:
  mode: remote
  thinking_delay: 250ms
llm:
  model: gpt-4o-mini
`), 0o600))
	t.Setenv("PAYDASH_LLM_API_KEY", "sk-test")
	t.Setenv("PAYDASH_ASSISTANT_HISTORY_LIMIT", "4")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "remote", cfg.Assistant.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.Assistant.ThinkingDelay)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 4, cfg.Assistant.HistoryLimit)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
