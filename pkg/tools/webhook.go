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

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cortexkb/cortex/pkg/config"
	"github.com/cortexkb/cortex/pkg/httpclient"
)

// WebhookClient talks to the external automation service that backs the
// web search and URL ingestion tools.
type WebhookClient struct {
	baseURL string

	// search calls are idempotent and retried; ingestion is not.
	search *httpclient.Client
	ingest *httpclient.Client
	probe  *http.Client
}

func NewWebhookClient(cfg config.WebhookConfig) *WebhookClient {
	return &WebhookClient{
		baseURL: cfg.BaseURL,
		search: httpclient.New(
			httpclient.WithTimeout(cfg.SearchTimeout),
			httpclient.WithMaxRetries(2),
		),
		ingest: httpclient.New(
			httpclient.WithTimeout(cfg.IngestTimeout),
			httpclient.WithMaxRetries(0),
		),
		probe: &http.Client{Timeout: 2 * time.Second},
	}
}

// BaseURL returns the configured service base URL.
func (c *WebhookClient) BaseURL() string { return c.baseURL }

// Available probes the service base URL. Any HTTP response counts as up,
// including auth rejections.
func (c *WebhookClient) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return false
	}

	resp, err := c.probe.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return true
}

// WebSearchResult is one hit returned by the web search webhook.
type WebSearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Snippet     string `json:"snippet"`
	Description string `json:"description"`
}

// Text returns the snippet, falling back to the description.
func (r WebSearchResult) Text() string {
	if r.Snippet != "" {
		return r.Snippet
	}
	return r.Description
}

type webSearchResponse struct {
	Results       []WebSearchResult `json:"results"`
	SearchResults []WebSearchResult `json:"search_results"`
	HelpMessage   string            `json:"help_message"`
}

// Search posts a query to the web search webhook. The second return value
// is the service's optional help message for empty result sets.
func (c *WebhookClient) Search(ctx context.Context, query string, maxResults int) ([]WebSearchResult, string, error) {
	body, err := json.Marshal(map[string]any{
		"query":       query,
		"max_results": maxResults,
	})
	if err != nil {
		return nil, "", err
	}

	resp, err := c.post(ctx, c.search, c.baseURL+"/webhook/web-search", body)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("web search failed with status %d", resp.StatusCode)
	}

	var parsed webSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, "", fmt.Errorf("decoding web search response: %w", err)
	}

	results := parsed.Results
	if len(results) == 0 {
		results = parsed.SearchResults
	}
	return results, parsed.HelpMessage, nil
}

// IngestResponse is the URL ingestion webhook reply.
type IngestResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
	FileInfo struct {
		Chunks           int    `json:"chunks"`
		Size             int64  `json:"size"`
		ExtractionMethod string `json:"extraction_method"`
	} `json:"file_info"`
	Error string `json:"error"`
}

// IngestURL asks the service to fetch, parse, and index the document at url.
func (c *WebhookClient) IngestURL(ctx context.Context, url, filename string) (*IngestResponse, error) {
	payload := map[string]any{"url": url}
	if filename != "" {
		payload["filename"] = filename
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, c.ingest, c.baseURL+"/webhook/ingest-url", body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("ingestion failed with status %d: %s", resp.StatusCode, string(detail))
	}

	var parsed IngestResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding ingestion response: %w", err)
	}
	return &parsed, nil
}

func (c *WebhookClient) post(ctx context.Context, client *httpclient.Client, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return client.Do(req)
}
