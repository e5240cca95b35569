// Copyright 2025 The Cortex Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config defines the Cortex configuration model. Every config struct
// follows the SetDefaults/Validate pair convention.
package config

import (
	"fmt"
	"time"

	"github.com/cortexkb/cortex/pkg/observability"
)

// Config is the root configuration.
type Config struct {
	LLM           LLMConfig            `yaml:"llm,omitempty"`
	Embedder      EmbedderConfig       `yaml:"embedder,omitempty"`
	Store         StoreConfig          `yaml:"store,omitempty"`
	Webhooks      WebhookConfig        `yaml:"webhooks,omitempty"`
	Agent         AgentConfig          `yaml:"agent,omitempty"`
	Logging       LoggingConfig        `yaml:"logging,omitempty"`
	Observability observability.Config `yaml:"observability,omitempty"`
}

// LLMConfig configures the text generation provider.
type LLMConfig struct {
	// Provider selects the LLM backend. Only "ollama" is supported.
	Provider string `yaml:"provider,omitempty"`

	// Model is the model name passed to the provider.
	// Default: "llama3.1"
	Model string `yaml:"model,omitempty"`

	// Host is the provider base URL.
	// Default: "http://localhost:11434"
	Host string `yaml:"host,omitempty"`

	// Timeout for a single generation request.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// MaxRetries for transient HTTP failures.
	// Default: 3
	MaxRetries int `yaml:"max_retries,omitempty"`
}

// EmbedderConfig configures the embedding provider.
type EmbedderConfig struct {
	// Provider selects the embedder backend. Only "ollama" is supported.
	Provider string `yaml:"provider,omitempty"`

	// Model is the embedding model name.
	// Default: "nomic-embed-text"
	Model string `yaml:"model,omitempty"`

	// Host is the provider base URL.
	// Default: "http://localhost:11434"
	Host string `yaml:"host,omitempty"`

	// Timeout for a single embedding request.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// StoreConfig configures the embedded vector store and keyword index.
type StoreConfig struct {
	// PersistPath for file persistence. Empty means in-memory only.
	PersistPath string `yaml:"persist_path,omitempty"`

	// Compress enables gzip compression for persisted vectors.
	Compress bool `yaml:"compress,omitempty"`

	// Collection is the vector collection name.
	// Default: "documents"
	Collection string `yaml:"collection,omitempty"`
}

// WebhookConfig configures the external automation endpoints used by the
// web search and URL ingestion tools.
type WebhookConfig struct {
	// BaseURL of the automation service.
	// Default: "http://n8n:5678"
	BaseURL string `yaml:"base_url,omitempty"`

	// SearchTimeout bounds a web search call.
	// Default: 30s
	SearchTimeout time.Duration `yaml:"search_timeout,omitempty"`

	// IngestTimeout bounds a URL ingestion call.
	// Default: 60s
	IngestTimeout time.Duration `yaml:"ingest_timeout,omitempty"`
}

// AgentConfig configures the orchestration pipeline.
type AgentConfig struct {
	// TopK documents retrieved per search.
	// Default: 5
	TopK int `yaml:"top_k,omitempty"`

	// SuitabilityThreshold filters tools by can-handle score during
	// selection. Default: 0.3
	SuitabilityThreshold float64 `yaml:"suitability_threshold,omitempty"`

	// MaxWorkers bounds parallel tool execution.
	// Default: 3
	MaxWorkers int `yaml:"max_workers,omitempty"`

	// LLMToolSelection enables LLM refinement of ambiguous tool choices.
	// Default: true
	LLMToolSelection *bool `yaml:"llm_tool_selection,omitempty"`

	// LLMIntent enables LLM refinement of rule-based intent.
	// Default: true
	LLMIntent *bool `yaml:"llm_intent,omitempty"`

	// EnhanceCitations enables the citation enhancement pass.
	// Default: false
	EnhanceCitations bool `yaml:"enhance_citations,omitempty"`

	// MinCitationConfidence filters enhanced citations.
	// Default: 0.3
	MinCitationConfidence float64 `yaml:"min_citation_confidence,omitempty"`
}

// LoggingConfig configures the slog logger.
type LoggingConfig struct {
	// Level: debug, info, warn, error. Default: "info"
	Level string `yaml:"level,omitempty"`

	// Format: "text" or "json". Default: "text"
	Format string `yaml:"format,omitempty"`

	// File redirects logs to a file when set.
	File string `yaml:"file,omitempty"`
}

// SetDefaults applies default values to the whole tree.
func (c *Config) SetDefaults() {
	c.LLM.SetDefaults()
	c.Embedder.SetDefaults()
	c.Store.SetDefaults()
	c.Webhooks.SetDefaults()
	c.Agent.SetDefaults()
	c.Logging.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks the whole tree for errors.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Embedder.Validate(); err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}

func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "ollama"
	}
	if c.Model == "" {
		c.Model = "llama3.1"
	}
	if c.Host == "" {
		c.Host = "http://localhost:11434"
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

func (c *LLMConfig) Validate() error {
	if c.Provider != "ollama" {
		return fmt.Errorf("unsupported provider %q (valid: ollama)", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	return nil
}

func (c *EmbedderConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "ollama"
	}
	if c.Model == "" {
		c.Model = "nomic-embed-text"
	}
	if c.Host == "" {
		c.Host = "http://localhost:11434"
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

func (c *EmbedderConfig) Validate() error {
	if c.Provider != "ollama" {
		return fmt.Errorf("unsupported provider %q (valid: ollama)", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	return nil
}

func (c *StoreConfig) SetDefaults() {
	if c.Collection == "" {
		c.Collection = "documents"
	}
}

func (c *WebhookConfig) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://n8n:5678"
	}
	if c.SearchTimeout == 0 {
		c.SearchTimeout = 30 * time.Second
	}
	if c.IngestTimeout == 0 {
		c.IngestTimeout = 60 * time.Second
	}
}

func (c *AgentConfig) SetDefaults() {
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.SuitabilityThreshold == 0 {
		c.SuitabilityThreshold = 0.3
	}
	if c.MaxWorkers == 0 {
		c.MaxWorkers = 3
	}
	if c.LLMToolSelection == nil {
		enabled := true
		c.LLMToolSelection = &enabled
	}
	if c.LLMIntent == nil {
		enabled := true
		c.LLMIntent = &enabled
	}
	if c.MinCitationConfidence == 0 {
		c.MinCitationConfidence = 0.3
	}
}

func (c *AgentConfig) Validate() error {
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be positive, got %d", c.TopK)
	}
	if c.SuitabilityThreshold < 0 || c.SuitabilityThreshold > 1 {
		return fmt.Errorf("suitability_threshold must be between 0 and 1, got %f", c.SuitabilityThreshold)
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be positive, got %d", c.MaxWorkers)
	}
	if c.MinCitationConfidence < 0 || c.MinCitationConfidence > 1 {
		return fmt.Errorf("min_citation_confidence must be between 0 and 1, got %f", c.MinCitationConfidence)
	}
	return nil
}

// IsLLMToolSelectionEnabled reports whether the LLM selection layer runs.
func (c *AgentConfig) IsLLMToolSelectionEnabled() bool {
	if c.LLMToolSelection == nil {
		return true
	}
	return *c.LLMToolSelection
}

// IsLLMIntentEnabled reports whether LLM intent refinement runs.
func (c *AgentConfig) IsLLMIntentEnabled() bool {
	if c.LLMIntent == nil {
		return true
	}
	return *c.LLMIntent
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid level %q (valid: debug, info, warn, error)", c.Level)
	}
	switch c.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format %q (valid: text, json)", c.Format)
	}
	return nil
}
