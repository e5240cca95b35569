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
	"strings"
	"time"

	"github.com/cortexkb/cortex/pkg/rag"
)

// SemanticSearchTool retrieves knowledge base chunks by embedding
// similarity. It is the baseline retrieval method for most queries.
type SemanticSearchTool struct {
	retriever rag.Retriever
}

func NewSemanticSearchTool(retriever rag.Retriever) *SemanticSearchTool {
	return &SemanticSearchTool{retriever: retriever}
}

func (t *SemanticSearchTool) Name() string { return "semantic_search" }

func (t *SemanticSearchTool) Description() string {
	return "Search documents using semantic similarity for conceptual questions (e.g., 'What are the benefits of X?', 'Explain Y')"
}

var (
	semanticHighKeywords = []string{
		"what is", "what are", "explain", "describe",
		"tell me about", "information about", "details about",
		"how does", "why", "benefits", "advantages",
		"disadvantages", "pros", "cons", "issues",
	}
	semanticMediumKeywords = []string{
		"what", "how", "understand", "learn", "know",
		"concept", "idea", "meaning", "definition",
	}
)

func (t *SemanticSearchTool) CanHandle(query string, _ *ExecutionContext) float64 {
	lower := strings.ToLower(query)

	if containsAny(lower, semanticHighKeywords) {
		return 0.9
	}
	if containsAny(lower, semanticMediumKeywords) {
		return 0.7
	}

	// Useful as a baseline for most queries.
	return 0.6
}

func (t *SemanticSearchTool) Execute(ctx context.Context, query string, ec *ExecutionContext) ToolResult {
	start := time.Now()

	retriever := t.retriever
	if retriever == nil && ec != nil {
		retriever = ec.Retriever
	}
	if retriever == nil {
		return failureResult(t.Name(), "retriever not available", start)
	}

	slog.Info("Executing semantic search", "query", truncateString(query, 50))

	docs, err := retriever.Retrieve(ctx, query, topKOrDefault(ec))
	if err != nil {
		return failureResult(t.Name(), err.Error(), start)
	}

	if len(docs) == 0 {
		return ToolResult{
			Success:       true,
			Metadata:      map[string]any{"tool": t.Name(), "message": "No documents found"},
			ExecutionTime: time.Since(start),
		}
	}

	citations := citationsFromDocuments(docs)
	confidence := retrievalConfidence(citations)

	slog.Info("Semantic search finished",
		"results", len(citations), "confidence", confidence)

	return ToolResult{
		Success: true,
		Data:    docs,
		Metadata: map[string]any{
			"tool":        t.Name(),
			"method":      "semantic",
			"query":       query,
			"num_results": len(docs),
			"confidence":  confidence,
		},
		Citations:     citations,
		ExecutionTime: time.Since(start),
	}
}

// retrievalConfidence averages the top three cross-encoder scores, the most
// reliable relevance signal, falling back to similarity scores when no
// reranker ran.
func retrievalConfidence(citations []Citation) float64 {
	top := citations
	if len(top) > 3 {
		top = top[:3]
	}

	var crossSum float64
	var crossCount int
	for _, c := range top {
		if c.CrossEncoderScore > 0 {
			crossSum += c.CrossEncoderScore
			crossCount++
		}
	}
	if crossCount > 0 {
		return crossSum / float64(crossCount)
	}

	var simSum float64
	for _, c := range top {
		simSum += c.SimilarityScore
	}
	if len(top) == 0 {
		return 0
	}
	return simSum / float64(len(top))
}

var _ Tool = (*SemanticSearchTool)(nil)
