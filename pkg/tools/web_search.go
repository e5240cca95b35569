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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/cortexkb/cortex/pkg/llms"
)

// WebSearchTool reaches external web sources through the automation
// webhook. It is the fallback when internal documents have low relevance.
type WebSearchTool struct {
	client *WebhookClient
	llm    llms.Provider

	maxResults int
}

func NewWebSearchTool(client *WebhookClient, llm llms.Provider) *WebSearchTool {
	return &WebSearchTool{client: client, llm: llm, maxResults: 5}
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Search external web sources for information not found in internal documents (e.g., current events, external facts, recent data)"
}

var (
	externalKeywords = []string{
		"current", "latest", "recent", "today", "now",
		"this year", "news", "update", "breaking",
		"what is the current", "as of",
	}
	externalEntities = []string{
		"weather", "stock price", "exchange rate",
		"population", "distance", "time zone",
		"wikipedia", "google", "website",
	}
)

func (t *WebSearchTool) CanHandle(query string, ec *ExecutionContext) float64 {
	lower := strings.ToLower(query)

	internalConfidence := 1.0
	internalResults := 1
	if ec != nil {
		if ec.InternalConfidence != nil {
			internalConfidence = *ec.InternalConfidence
		}
		if ec.InternalResultsCount != nil {
			internalResults = *ec.InternalResultsCount
		}
	}

	if internalResults == 0 {
		return 0.85
	}
	if internalConfidence < 0.5 {
		return 0.8
	}

	if containsAny(lower, externalKeywords) {
		return 0.75
	}
	if containsAny(lower, externalEntities) {
		return 0.7
	}

	if internalConfidence < 0.7 {
		return 0.5
	}

	// Internal results should be sufficient.
	return 0.3
}

func (t *WebSearchTool) Execute(ctx context.Context, query string, ec *ExecutionContext) ToolResult {
	start := time.Now()

	if !t.client.Available(ctx) {
		slog.Warn("Web search service unreachable", "url", t.client.BaseURL())
		result := failureResult(t.Name(),
			"web search service is not available, ensure the automation service is running", start)
		result.Metadata["webhook_url"] = t.client.BaseURL()
		return result
	}

	slog.Info("Calling web search webhook", "query", truncateString(query, 50))

	results, helpMessage, err := t.client.Search(ctx, query, t.maxResults)
	if err != nil {
		if isTimeout(err) {
			return failureResult(t.Name(), "web search timed out", start)
		}
		return failureResult(t.Name(), err.Error(), start)
	}

	if len(results) == 0 {
		slog.Warn("Web search returned no results")

		errMsg := helpMessage
		if errMsg == "" {
			errMsg = "No external search results found. The web search API works best for well-known topics. Try rephrasing your question to be more specific."
		}

		result := failureResult(t.Name(), errMsg, start)
		result.Metadata["message"] = errMsg
		result.Metadata["suggestion"] = "Try rephrasing with more specific terms"
		return result
	}

	citations := t.convertResults(results)
	answer := t.formatAnswer(ctx, query, results)

	slog.Info("Web search finished", "results", len(results))

	return ToolResult{
		Success: true,
		Data: map[string]any{
			"answer":         answer,
			"search_results": results,
			"query_type":     "web_search",
		},
		Metadata: map[string]any{
			"tool":        t.Name(),
			"query":       query,
			"num_results": len(results),
			"source":      "external_web",
		},
		Citations:     citations,
		ExecutionTime: time.Since(start),
	}
}

func (t *WebSearchTool) convertResults(results []WebSearchResult) []Citation {
	citations := make([]Citation, 0, len(results))
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = fmt.Sprintf("Web Result %d", i+1)
		}

		snippet := r.Text()
		citations = append(citations, Citation{
			Document:     title + " (External Source)",
			PageNumber:   0,
			Excerpt:      truncateString(snippet, 200),
			Content:      snippet,
			RankPosition: i + 1,
			Metadata: map[string]any{
				"source": "external_web",
				"url":    r.URL,
				"title":  title,
			},
		})
	}
	return citations
}

// formatAnswer synthesizes an answer from the search results with the LLM
// when one is configured, falling back to a formatted result list.
func (t *WebSearchTool) formatAnswer(ctx context.Context, query string, results []WebSearchResult) string {
	if t.llm != nil {
		if answer, err := t.synthesizeAnswer(ctx, query, results); err == nil {
			return answer
		} else {
			slog.Warn("LLM synthesis failed, falling back to list format", "error", err)
		}
	}
	return formatResultList(results)
}

const webSynthesisPrompt = `Based on the following external web search results, provide a comprehensive and accurate answer to the question. Synthesize information from multiple sources when relevant.

Question: %s

Web Search Results:
%s

Instructions:
- Provide a clear, direct answer to the question
- Synthesize information from the search results
- Be factual and objective
- If multiple sources provide conflicting information, mention this
- Keep the answer concise (2-4 paragraphs maximum)
- Do not add information not present in the search results

Answer:`

func (t *WebSearchTool) synthesizeAnswer(ctx context.Context, query string, results []WebSearchResult) (string, error) {
	top := results
	if len(top) > 5 {
		top = top[:5]
	}

	var parts []string
	for i, r := range top {
		if snippet := r.Text(); snippet != "" {
			parts = append(parts, fmt.Sprintf("Source %d - %s:\n%s\nURL: %s\n", i+1, r.Title, snippet, r.URL))
		}
	}

	prompt := fmt.Sprintf(webSynthesisPrompt, query, strings.Join(parts, "\n"))

	answer, err := t.llm.Generate(ctx, prompt, llms.GenerateOptions{
		Temperature: 0.3,
		MaxTokens:   400,
	})
	if err != nil {
		return "", err
	}

	return answer + "\n\n---\n*Source: External web search. Information synthesized from multiple sources.*", nil
}

func formatResultList(results []WebSearchResult) string {
	top := results
	if len(top) > 3 {
		top = top[:3]
	}

	var parts []string
	for i, r := range top {
		if snippet := r.Text(); snippet != "" {
			parts = append(parts, fmt.Sprintf("**%d. %s**", i+1, r.Title), snippet, "")
		}
	}
	parts = append(parts, "---", "*Source: External web search. Please verify for accuracy.*")
	return strings.Join(parts, "\n")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

var _ Tool = (*WebSearchTool)(nil)
