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
	"unicode"

	"github.com/cortexkb/cortex/pkg/rag"
)

// KeywordSearchTool matches exact terms against the keyword index. Best for
// proper nouns, dates, quoted phrases, and technical terms.
type KeywordSearchTool struct {
	index *rag.KeywordIndex
}

func NewKeywordSearchTool(index *rag.KeywordIndex) *KeywordSearchTool {
	return &KeywordSearchTool{index: index}
}

func (t *KeywordSearchTool) Name() string { return "keyword_search" }

func (t *KeywordSearchTool) Description() string {
	return "Search documents using exact keyword matching for names, dates, technical terms, and quoted text"
}

var (
	findCommands = []string{"find", "search for", "locate", "look for", "show me"}

	keywordIndicators = []string{
		"named", "called", "titled", "specifically", "exactly",
		"term", "word", "phrase", "mentions", "references",
	}

	datePattern = regexp.MustCompile(`(?i)\b\d{4}\b|\b\d{1,2}/\d{1,2}/\d{2,4}\b|\b(January|February|March|April|May|June|July|August|September|October|November|December)\b`)
)

func (t *KeywordSearchTool) CanHandle(query string, _ *ExecutionContext) float64 {
	lower := strings.ToLower(query)

	// Quoted text means an exact-match lookup.
	if strings.ContainsAny(query, `"'`) {
		return 0.95
	}

	for _, command := range findCommands {
		if strings.HasPrefix(lower, command) {
			return 0.9
		}
	}

	if countProperNouns(query) > 0 {
		return 0.85
	}

	if datePattern.MatchString(query) {
		return 0.8
	}

	if containsAny(lower, keywordIndicators) {
		return 0.75
	}

	// Moderately useful as a backup for most queries.
	return 0.5
}

// countProperNouns counts capitalized words past the first position,
// excluding the pronouns "I" and "A".
func countProperNouns(query string) int {
	words := strings.Fields(query)
	if len(words) < 2 {
		return 0
	}

	count := 0
	for _, word := range words[1:] {
		if word == "I" || word == "A" {
			continue
		}
		runes := []rune(word)
		if len(runes) > 0 && unicode.IsUpper(runes[0]) {
			count++
		}
	}
	return count
}

func (t *KeywordSearchTool) Execute(ctx context.Context, query string, ec *ExecutionContext) ToolResult {
	start := time.Now()

	index := t.index
	if index == nil && ec != nil {
		index = ec.KeywordIndex
	}
	if index == nil {
		return failureResult(t.Name(), "keyword search index not available", start)
	}

	if err := ctx.Err(); err != nil {
		return failureResult(t.Name(), err.Error(), start)
	}

	slog.Info("Executing keyword search", "query", truncateString(query, 50))

	docs := index.Search(query, topKOrDefault(ec))
	if len(docs) == 0 {
		return ToolResult{
			Success:       true,
			Metadata:      map[string]any{"tool": t.Name(), "message": "No matching keywords found"},
			ExecutionTime: time.Since(start),
		}
	}

	citations := citationsFromDocuments(docs)

	slog.Info("Keyword search finished", "results", len(citations))

	return ToolResult{
		Success: true,
		Data:    docs,
		Metadata: map[string]any{
			"tool":        t.Name(),
			"method":      "keyword",
			"query":       query,
			"num_results": len(docs),
		},
		Citations:     citations,
		ExecutionTime: time.Since(start),
	}
}

var _ Tool = (*KeywordSearchTool)(nil)
