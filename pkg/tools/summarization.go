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

	"github.com/cortexkb/cortex/pkg/qa"
)

// SummarizationTool condenses previously retrieved documents through the
// answer chain. It runs after a retrieval tool in a sequential plan.
type SummarizationTool struct {
	chain qa.Chain
}

func NewSummarizationTool(chain qa.Chain) *SummarizationTool {
	return &SummarizationTool{chain: chain}
}

func (t *SummarizationTool) Name() string { return "summarization" }

func (t *SummarizationTool) Description() string {
	return "Summarize documents or extract key points (e.g., 'Summarize the main findings', 'Give me an overview')"
}

var (
	summaryHighKeywords = []string{
		"summarize", "summary", "overview", "sum up",
		"key points", "main points", "highlights",
		"brief", "in short", "tldr", "tl;dr",
	}
	summaryMediumKeywords = []string{
		"main", "important", "significant", "notable",
		"essential", "critical", "primary", "core",
		"gist", "essence", "outline",
	}
)

func (t *SummarizationTool) CanHandle(query string, _ *ExecutionContext) float64 {
	lower := strings.ToLower(query)

	if containsAny(lower, summaryHighKeywords) {
		return 0.95
	}
	if containsAny(lower, summaryMediumKeywords) {
		return 0.7
	}
	return 0.2
}

func (t *SummarizationTool) Execute(ctx context.Context, query string, ec *ExecutionContext) ToolResult {
	start := time.Now()

	chain := t.chain
	if chain == nil && ec != nil {
		chain = ec.Chain
	}
	if chain == nil {
		return failureResult(t.Name(), "qa chain not available", start)
	}

	docs := contextDocuments(ec)
	if len(docs) == 0 {
		return failureResult(t.Name(), "no documents provided for summarization", start)
	}

	slog.Info("Executing summarization",
		"query", truncateString(query, 50), "documents", len(docs))

	answer, err := chain.Summarize(ctx, query, docs)
	if err != nil {
		return failureResult(t.Name(), err.Error(), start)
	}
	if answer == "" {
		return failureResult(t.Name(), "summarization generated empty response", start)
	}

	citations := citationsFromDocuments(docs)

	slog.Info("Summarization finished", "citations", len(citations))

	return ToolResult{
		Success: true,
		Data: map[string]any{
			"answer":     answer,
			"query_type": "summarization",
		},
		Metadata: map[string]any{
			"tool":          t.Name(),
			"query":         query,
			"num_documents": len(docs),
		},
		Citations:     citations,
		ExecutionTime: time.Since(start),
	}
}

var _ Tool = (*SummarizationTool)(nil)
