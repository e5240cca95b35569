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

package embedders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cortexkb/cortex/pkg/config"
	"github.com/cortexkb/cortex/pkg/httpclient"
	"github.com/cortexkb/cortex/pkg/observability"
)

// OllamaEmbedder embeds text via the Ollama /api/embeddings endpoint.
type OllamaEmbedder struct {
	model      string
	baseURL    string
	httpClient *httpclient.Client
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// NewOllamaEmbedder builds an embedder from config.
func NewOllamaEmbedder(cfg config.EmbedderConfig) (*OllamaEmbedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	baseURL := cfg.Host
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &OllamaEmbedder{
		model:   cfg.Model,
		baseURL: baseURL,
		httpClient: httpclient.New(
			httpclient.WithTimeout(cfg.Timeout),
		),
	}, nil
}

func (e *OllamaEmbedder) Model() string {
	return e.model
}

// Embed returns the embedding vector for text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	tracer := observability.GetTracer("cortex.embedder")
	ctx, span := tracer.Start(ctx, observability.SpanEmbedding,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, e.model),
			attribute.Int("text.length", len(text)),
		),
	)
	defer span.End()

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response ollamaEmbedResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if response.Error != "" {
		apiErr := fmt.Errorf("Ollama API error: %s", response.Error)
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, response.Error)
		return nil, apiErr
	}

	if len(response.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}

	span.SetAttributes(attribute.Int("embedding.dimension", len(response.Embedding)))
	span.SetStatus(codes.Ok, "success")

	return response.Embedding, nil
}

var _ Embedder = (*OllamaEmbedder)(nil)
