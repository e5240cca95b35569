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
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/cortexkb/cortex/pkg/qa"
	"github.com/cortexkb/cortex/pkg/rag"
)

// ComparisonTool extracts the entities a comparison query names, retrieves
// documents for each, and generates a structured comparison through the
// answer chain.
type ComparisonTool struct {
	retriever rag.Retriever
	chain     qa.Chain
}

func NewComparisonTool(retriever rag.Retriever, chain qa.Chain) *ComparisonTool {
	return &ComparisonTool{retriever: retriever, chain: chain}
}

func (t *ComparisonTool) Name() string { return "comparison" }

func (t *ComparisonTool) Description() string {
	return "Compare two or more documents, sections, or concepts side-by-side (e.g., 'Compare Policy A and Policy B', 'Differences between X and Y')"
}

var (
	comparisonHighKeywords = []string{
		"compare", "comparison", "versus", " vs ", " vs.",
		"difference between", "differences between",
		"contrast", "contrasting",
	}
	comparisonMediumKeywords = []string{
		"differ", "similar", "similarities",
		"against", "relative to", "compared to",
		"better than", "worse than",
	}

	compareEntityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)compare\s+(.+?)\s+and\s+([^,.]+)`),
		regexp.MustCompile(`(?i)(.+?)\s+(?:versus|vs\.?)\s+([^,.]+)`),
		regexp.MustCompile(`(?i)differences?\s+between\s+(.+?)\s+and\s+([^,.]+)`),
		regexp.MustCompile(`([A-Z][a-zA-Z0-9 ]+?)\s+and\s+([A-Z][a-zA-Z0-9 ]+)`),
	}
)

func (t *ComparisonTool) CanHandle(query string, _ *ExecutionContext) float64 {
	lower := strings.ToLower(query)

	if containsAny(lower, comparisonHighKeywords) {
		return 0.95
	}
	if containsAny(lower, comparisonMediumKeywords) {
		return 0.75
	}

	// "A and B" with enough surrounding words is likely a comparison.
	if strings.Contains(lower, " and ") && len(strings.Fields(lower)) > 3 {
		return 0.6
	}
	return 0.2
}

func (t *ComparisonTool) Execute(ctx context.Context, query string, ec *ExecutionContext) ToolResult {
	start := time.Now()

	retriever := t.retriever
	if retriever == nil && ec != nil {
		retriever = ec.Retriever
	}
	chain := t.chain
	if chain == nil && ec != nil {
		chain = ec.Chain
	}

	if retriever == nil {
		return failureResult(t.Name(), "retriever not available", start)
	}
	if chain == nil {
		return failureResult(t.Name(), "qa chain required for comparison", start)
	}

	entities := extractComparisonEntities(query)
	slog.Info("Extracted comparison entities", "entities", entities)

	var docs []rag.Document
	if len(entities) > 0 {
		for _, entity := range entities {
			found, err := retriever.SemanticSearch(ctx, entity, 3)
			if err != nil {
				return failureResult(t.Name(), err.Error(), start)
			}
			docs = append(docs, found...)
		}
	} else {
		found, err := retriever.Retrieve(ctx, query, 5)
		if err != nil {
			return failureResult(t.Name(), err.Error(), start)
		}
		docs = found
	}

	if len(docs) == 0 {
		result := failureResult(t.Name(), "no documents found for comparison", start)
		result.Metadata["entities"] = entities
		return result
	}

	slog.Info("Generating comparison", "documents", len(docs))

	var answer string
	var err error
	if len(entities) == 2 {
		answer, err = chain.Compare(ctx, query, entities[0], entities[1], docs)
	} else {
		answer, err = chain.Answer(ctx, query, docs)
	}
	if err != nil {
		return failureResult(t.Name(), err.Error(), start)
	}
	if answer == "" {
		return failureResult(t.Name(), "comparison generated empty response", start)
	}

	citations := citationsFromDocuments(docs)

	slog.Info("Comparison finished", "citations", len(citations))

	return ToolResult{
		Success: true,
		Data: map[string]any{
			"answer":     answer,
			"query_type": "comparison",
			"entities":   entities,
		},
		Metadata: map[string]any{
			"tool":              t.Name(),
			"query":             query,
			"num_documents":     len(docs),
			"entities_compared": entities,
		},
		Citations:     citations,
		ExecutionTime: time.Since(start),
	}
}

// extractComparisonEntities pulls the two compared subjects out of the
// query. Returns nil when no pattern matches; the caller falls back to a
// whole-query search.
func extractComparisonEntities(query string) []string {
	for _, pattern := range compareEntityPatterns {
		if m := pattern.FindStringSubmatch(query); m != nil {
			a := strings.TrimSpace(m[1])
			b := strings.TrimSpace(m[2])
			if a != "" && b != "" {
				return []string{a, b}
			}
		}
	}
	return nil
}

var _ Tool = (*ComparisonTool)(nil)
