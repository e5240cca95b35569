package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_SetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llama3.1", cfg.LLM.Model)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.Host)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)

	assert.Equal(t, "nomic-embed-text", cfg.Embedder.Model)
	assert.Equal(t, "documents", cfg.Store.Collection)
	assert.Equal(t, "http://n8n:5678", cfg.Webhooks.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Webhooks.SearchTimeout)
	assert.Equal(t, 60*time.Second, cfg.Webhooks.IngestTimeout)

	assert.Equal(t, 5, cfg.Agent.TopK)
	assert.Equal(t, 0.5, cfg.Agent.SuitabilityThreshold)
	assert.Equal(t, 4, cfg.Agent.MaxWorkers)
	assert.True(t, cfg.Agent.IsLLMToolSelectionEnabled())
	assert.True(t, cfg.Agent.IsLLMIntentEnabled())
	assert.Equal(t, 0.3, cfg.Agent.MinCitationConfidence)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)

	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad llm provider", func(c *Config) { c.LLM.Provider = "openai" }},
		{"bad embedder provider", func(c *Config) { c.Embedder.Provider = "cohere" }},
		{"negative top_k", func(c *Config) { c.Agent.TopK = -1 }},
		{"threshold out of range", func(c *Config) { c.Agent.SuitabilityThreshold = 1.5 }},
		{"zero workers", func(c *Config) { c.Agent.MaxWorkers = -1 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.SetDefaults()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cortex.yaml")

	content := `
llm:
  model: mistral
  host: ${CORTEX_TEST_LLM_HOST:-http://fallback:11434}
agent:
  top_k: 8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mistral", cfg.LLM.Model)
	assert.Equal(t, "http://fallback:11434", cfg.LLM.Host)
	assert.Equal(t, 8, cfg.Agent.TopK)
	// Defaults still applied elsewhere.
	assert.Equal(t, "ollama", cfg.LLM.Provider)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("CORTEX_TEST_LLM_HOST", "http://gpu-box:11434")

	dir := t.TempDir()
	path := filepath.Join(dir, "cortex.yaml")
	content := "llm:\n  host: ${CORTEX_TEST_LLM_HOST}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-box:11434", cfg.LLM.Host)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
