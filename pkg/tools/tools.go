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

// Package tools defines the tool contract of the agentic pipeline and the
// built-in tools: semantic search, keyword search, calculator, summarization,
// comparison, web search, and URL ingestion.
package tools

import (
	"context"
	"math"
	"time"
)

// Citation is one evidence fragment pointing at a source chunk.
type Citation struct {
	// Document is the human-readable source name.
	Document string `json:"document"`

	// PageNumber is 1-based; 0 means no page information.
	PageNumber int `json:"page_number"`

	// Excerpt is a short relevance-weighted slice of Content, at most
	// 200 characters.
	Excerpt string `json:"excerpt"`

	// ConfidenceScore is the composite confidence in [0, 1], assigned by
	// the citation enhancer.
	ConfidenceScore float64 `json:"confidence_score"`

	// SimilarityScore is the vector similarity against the query.
	SimilarityScore float64 `json:"similarity_score"`

	// CrossEncoderScore is the reranker score, 0 when no reranker ran.
	CrossEncoderScore float64 `json:"cross_encoder_score"`

	// RankPosition is the 1-indexed position in the originating result set.
	RankPosition int `json:"rank_position"`

	// Content is the full source chunk. Omitted from serialized form.
	Content string `json:"-"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// ToMap renders the citation for API responses. Scores are rounded to three
// decimals and the full content is omitted.
func (c Citation) ToMap() map[string]any {
	return map[string]any{
		"document":            c.Document,
		"page_number":         c.PageNumber,
		"excerpt":             c.Excerpt,
		"confidence_score":    round3(c.ConfidenceScore),
		"similarity_score":    round3(c.SimilarityScore),
		"cross_encoder_score": round3(c.CrossEncoderScore),
		"rank_position":       c.RankPosition,
		"metadata":            c.Metadata,
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// ToolResult is the uniform tool output envelope.
type ToolResult struct {
	Success bool `json:"success"`

	// Data is the tool payload, typically a map[string]any or a document
	// list. Maps with an "answer" key feed answer extraction directly.
	Data any `json:"data,omitempty"`

	// Error is set when Success is false, or when a soft error occurred.
	Error string `json:"error,omitempty"`

	// Metadata carries execution details. Conventional keys: "tool",
	// "confidence", "message".
	Metadata map[string]any `json:"metadata,omitempty"`

	Citations []Citation `json:"citations,omitempty"`

	ExecutionTime time.Duration `json:"execution_time,omitempty"`
}

// ToolName returns the reporting tool's name from metadata, or "".
func (r ToolResult) ToolName() string {
	name, _ := r.Metadata["tool"].(string)
	return name
}

// Confidence returns the tool-reported confidence from metadata, or def
// when absent or non-numeric.
func (r ToolResult) Confidence(def float64) float64 {
	v, ok := r.Metadata["confidence"]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	}
	return def
}

// Tool is the uniform contract every tool satisfies.
//
// CanHandle must be a pure suitability score: no side effects beyond
// read-only inspection of the execution context. Execute may perform I/O
// but must never panic through the boundary; internal failures become a
// failed ToolResult.
type Tool interface {
	Name() string
	Description() string
	CanHandle(query string, ec *ExecutionContext) float64
	Execute(ctx context.Context, query string, ec *ExecutionContext) ToolResult
}

// ScoredTool pairs a tool with a selection confidence.
type ScoredTool struct {
	Tool       Tool
	Confidence float64
}
