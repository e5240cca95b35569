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

// Package rag provides the document model, retrieval, chunking, and
// ingestion layers of the knowledge base.
package rag

import (
	"context"
	"fmt"
)

// Document is a retrieved knowledge base chunk with relevance scores.
type Document struct {
	ID      string
	Content string

	// Metadata carries document attributes: title, original_filename,
	// display_name, page.
	Metadata map[string]any

	// SimilarityScore is the vector similarity against the query, 0..1.
	SimilarityScore float64

	// CrossEncoderScore is an optional reranker score. Zero when no
	// reranker ran.
	CrossEncoderScore float64
}

// Name resolves the human-readable document name: title, then
// original_filename, then display_name, then the chunk ID.
func (d Document) Name() string {
	for _, key := range []string{"title", "original_filename", "display_name"} {
		if v, ok := d.Metadata[key]; ok {
			if s := fmt.Sprint(v); s != "" {
				return s
			}
		}
	}
	if d.ID != "" {
		return d.ID
	}
	return "Unknown"
}

// Page returns the page number from metadata, or 0 when absent.
func (d Document) Page() int {
	v, ok := d.Metadata["page"]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		var page int
		if _, err := fmt.Sscanf(n, "%d", &page); err == nil {
			return page
		}
	}
	return 0
}

// Retriever finds documents relevant to a query.
type Retriever interface {
	// Retrieve embeds the query and returns the topK most similar chunks.
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)

	// SemanticSearch is Retrieve for a raw text fragment, used when a
	// caller searches per-entity rather than per-query.
	SemanticSearch(ctx context.Context, text string, topK int) ([]Document, error)
}
