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

// Package qa generates grounded answers, summaries, and comparisons over
// retrieved documents.
package qa

import (
	"context"

	"github.com/cortexkb/cortex/pkg/rag"
)

// Chain answers questions over a set of context documents.
type Chain interface {
	// Answer responds to the query using only the documents.
	Answer(ctx context.Context, query string, docs []rag.Document) (string, error)

	// Summarize produces a summary of the documents guided by the query.
	Summarize(ctx context.Context, query string, docs []rag.Document) (string, error)

	// Compare contrasts two entities using the documents.
	Compare(ctx context.Context, query, entityA, entityB string, docs []rag.Document) (string, error)
}
