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

// Package citations enriches tool citations with relevance-weighted
// excerpts and composite confidence scores.
package citations

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/cortexkb/cortex/pkg/embedders"
	"github.com/cortexkb/cortex/pkg/tools"
	"github.com/cortexkb/cortex/pkg/utils"
)

const (
	maxExcerptLen = 200
	minExcerptLen = 50

	// minSentenceLen filters fragments out of excerpt candidates.
	minSentenceLen = 10
)

// Enhancer computes excerpts and composite confidence for citations
// gathered from tool results. The embedder is optional; without one,
// excerpts fall back to leading-sentence truncation and deduplication to
// exact content matches.
type Enhancer struct {
	embedder embedders.Embedder

	// MinConfidence is the FilterByConfidence default threshold.
	MinConfidence float64

	// DedupThreshold is the cosine similarity above which two citation
	// contents count as duplicates.
	DedupThreshold float64
}

func NewEnhancer(embedder embedders.Embedder) *Enhancer {
	return &Enhancer{
		embedder:       embedder,
		MinConfidence:  0.3,
		DedupThreshold: 0.9,
	}
}

// Enhance extracts excerpts and fuses confidence for every citation of
// every successful result, then re-ranks the combined list by confidence.
func (e *Enhancer) Enhance(ctx context.Context, results []tools.ToolResult, query string) []tools.Citation {
	slog.Info("Enhancing citations", "results", len(results))

	var enhanced []tools.Citation

	for _, result := range results {
		if !result.Success || len(result.Citations) == 0 {
			continue
		}

		for _, citation := range result.Citations {
			citation.Excerpt = e.extractExcerpt(ctx, citation, query)
			citation.ConfidenceScore = fuseConfidence(citation, result)
			enhanced = append(enhanced, citation)
		}
	}

	sort.SliceStable(enhanced, func(i, j int) bool {
		return enhanced[i].ConfidenceScore > enhanced[j].ConfidenceScore
	})
	for i := range enhanced {
		enhanced[i].RankPosition = i + 1
	}

	slog.Info("Enhanced citations", "count", len(enhanced))
	return enhanced
}

// fuseConfidence combines similarity, reranker, rank, and tool-reported
// scores into one [0, 1] confidence. The reranker path is used whenever a
// cross-encoder score is present.
func fuseConfidence(c tools.Citation, result tools.ToolResult) float64 {
	rank := c.RankPosition
	if rank == 0 {
		rank = 10
	}
	rankConfidence := 1.0 - float64(rank-1)*0.1
	if rankConfidence < 0.1 {
		rankConfidence = 0.1
	}

	toolConfidence := result.Confidence(1.0)

	var confidence float64
	if c.CrossEncoderScore > 0 {
		confidence = c.SimilarityScore*0.3 + c.CrossEncoderScore*0.4 +
			rankConfidence*0.2 + toolConfidence*0.1
	} else {
		confidence = c.SimilarityScore*0.5 + rankConfidence*0.3 + toolConfidence*0.2
	}

	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// extractExcerpt picks the content sentence closest to the query. Short
// content, missing query, or embedding failure fall back to leading-text
// truncation at a sentence boundary.
func (e *Enhancer) extractExcerpt(ctx context.Context, c tools.Citation, query string) string {
	content := c.Content
	if len(content) < minExcerptLen {
		return content
	}

	if query == "" || e.embedder == nil {
		return truncateToSentence(content)
	}

	sentences := splitSentences(content)
	if len(sentences) == 0 {
		return truncateToSentence(content)
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		slog.Warn("Excerpt extraction failed", "error", err)
		return truncateToSentence(content)
	}

	bestIdx := -1
	bestSim := -2.0
	for i, sentence := range sentences {
		vec, err := e.embedder.Embed(ctx, sentence)
		if err != nil {
			slog.Warn("Excerpt extraction failed", "error", err)
			return truncateToSentence(content)
		}
		if sim := utils.CosineSimilarity(queryVec, vec); sim > bestSim {
			bestSim = sim
			bestIdx = i
		}
	}

	best := sentences[bestIdx]
	if len(best) > maxExcerptLen {
		return truncateToSentence(best)
	}
	if len(best) < minExcerptLen && bestIdx+1 < len(sentences) {
		return truncateToSentence(best + " " + sentences[bestIdx+1])
	}
	return best
}

var sentenceBoundary = regexp.MustCompile(`([.!?])\s+`)

// splitSentences breaks text on terminal punctuation, keeping the
// punctuation and dropping short fragments.
func splitSentences(text string) []string {
	marked := sentenceBoundary.ReplaceAllString(text, "$1\x00")

	var sentences []string
	for _, part := range strings.Split(marked, "\x00") {
		part = strings.TrimSpace(part)
		if len(part) > minSentenceLen {
			sentences = append(sentences, part)
		}
	}
	return sentences
}

// truncateToSentence caps text at 200 characters, preferring a sentence
// boundary, then a word boundary with an ellipsis.
func truncateToSentence(text string) string {
	if len(text) <= maxExcerptLen {
		return text
	}
	head := text[:maxExcerptLen]

	for _, delimiter := range []string{". ", "! ", "? "} {
		if idx := strings.LastIndex(head, delimiter); idx > minExcerptLen {
			return strings.TrimSpace(head[:idx+1])
		}
	}

	words := strings.Fields(head)
	if len(words) > 1 {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ") + "..."
}

// FilterByConfidence drops citations below the threshold. A negative
// threshold uses the enhancer default.
func (e *Enhancer) FilterByConfidence(citations []tools.Citation, minConfidence float64) []tools.Citation {
	if minConfidence < 0 {
		minConfidence = e.MinConfidence
	}

	filtered := make([]tools.Citation, 0, len(citations))
	for _, c := range citations {
		if c.ConfidenceScore >= minConfidence {
			filtered = append(filtered, c)
		}
	}

	slog.Info("Filtered citations by confidence",
		"threshold", minConfidence, "before", len(citations), "after", len(filtered))
	return filtered
}

// Deduplicate removes citations whose content is near-identical to an
// already accepted one, by embedding cosine similarity. Without an
// embedder only exact content matches are dropped.
func (e *Enhancer) Deduplicate(ctx context.Context, citations []tools.Citation) []tools.Citation {
	if len(citations) == 0 {
		return nil
	}

	var unique []tools.Citation
	var seenContent []string
	var seenVectors [][]float32

	for _, citation := range citations {
		duplicate := false

		if citation.Content != "" {
			if e.embedder == nil {
				for _, seen := range seenContent {
					if seen == citation.Content {
						duplicate = true
						break
					}
				}
			} else if vec, err := e.embedder.Embed(ctx, citation.Content); err != nil {
				slog.Warn("Deduplication comparison failed", "error", err)
			} else {
				for _, seen := range seenVectors {
					if utils.CosineSimilarity(vec, seen) > e.DedupThreshold {
						duplicate = true
						break
					}
				}
				if !duplicate {
					seenVectors = append(seenVectors, vec)
				}
			}
		}

		if !duplicate {
			unique = append(unique, citation)
			if citation.Content != "" {
				seenContent = append(seenContent, citation.Content)
			}
		}
	}

	slog.Info("Deduplicated citations", "before", len(citations), "after", len(unique))
	return unique
}

// GroupByDocument buckets citations by document name, each bucket sorted
// by page number then rank.
func (e *Enhancer) GroupByDocument(citations []tools.Citation) map[string][]tools.Citation {
	groups := make(map[string][]tools.Citation)
	for _, c := range citations {
		groups[c.Document] = append(groups[c.Document], c)
	}

	for name := range groups {
		group := groups[name]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].PageNumber != group[j].PageNumber {
				return group[i].PageNumber < group[j].PageNumber
			}
			return group[i].RankPosition < group[j].RankPosition
		})
	}

	slog.Info("Grouped citations", "citations", len(citations), "documents", len(groups))
	return groups
}
