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
	"strings"
	"time"

	"github.com/cortexkb/cortex/pkg/rag"
)

const defaultTopK = 5

// failureResult builds the standard failed envelope with the tool name
// recorded in metadata.
func failureResult(toolName, errMsg string, start time.Time) ToolResult {
	return ToolResult{
		Success:       false,
		Error:         errMsg,
		Metadata:      map[string]any{"tool": toolName},
		ExecutionTime: time.Since(start),
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func topKOrDefault(ec *ExecutionContext) int {
	if ec != nil && ec.TopK > 0 {
		return ec.TopK
	}
	return defaultTopK
}

// citationsFromDocuments converts retrieved chunks to citations, ranked in
// retrieval order.
func citationsFromDocuments(docs []rag.Document) []Citation {
	citations := make([]Citation, 0, len(docs))
	for i, doc := range docs {
		citations = append(citations, Citation{
			Document:          doc.Name(),
			PageNumber:        doc.Page(),
			Content:           doc.Content,
			SimilarityScore:   doc.SimilarityScore,
			CrossEncoderScore: doc.CrossEncoderScore,
			RankPosition:      i + 1,
			Metadata:          doc.Metadata,
		})
	}
	return citations
}

// contextDocuments recovers documents from the propagated previous result,
// falling back to previous citations.
func contextDocuments(ec *ExecutionContext) []rag.Document {
	if ec == nil {
		return nil
	}

	if docs, ok := ec.PreviousResult.([]rag.Document); ok {
		return docs
	}

	var docs []rag.Document
	for _, c := range ec.PreviousCitations {
		if c.Content == "" {
			continue
		}
		docs = append(docs, rag.Document{
			ID:              c.Document,
			Content:         c.Content,
			Metadata:        c.Metadata,
			SimilarityScore: c.SimilarityScore,
		})
	}
	return docs
}

func truncateString(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
