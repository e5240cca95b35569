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

package rag

import (
	"context"
	"regexp"
	"strings"

	"github.com/cortexkb/cortex/pkg/embedders"
	"github.com/cortexkb/cortex/pkg/utils"
)

// Chunk is a piece of a source document ready for indexing.
type Chunk struct {
	Content string
	Page    int
}

// PageContent is one page of extracted document text.
type PageContent struct {
	Number int
	Text   string
}

// Chunker splits document text into chunks.
type Chunker interface {
	Chunk(ctx context.Context, text string) ([]Chunk, error)
	ChunkPages(ctx context.Context, pages []PageContent) ([]Chunk, error)
}

const minSentenceLength = 20

var sentenceBoundary = regexp.MustCompile(`(?:\.|\!|\?)\s+`)

// SemanticChunker groups adjacent sentences whose embeddings stay close to
// the running chunk centroid. Falls back to word-window chunking when no
// embedder is available or the text has too few sentences.
type SemanticChunker struct {
	embedder embedders.Embedder

	// SimilarityThreshold is the minimum cosine similarity a sentence
	// needs against the chunk centroid to join the chunk.
	SimilarityThreshold float64

	// MaxChunkSize caps chunk length in characters.
	MaxChunkSize int

	// OverlapSize in characters; carried between chunks as roughly
	// OverlapSize/10 words.
	OverlapSize int
}

// NewSemanticChunker builds a chunker with the standard thresholds.
// A nil embedder is allowed and degrades to word-window chunking.
func NewSemanticChunker(embedder embedders.Embedder) *SemanticChunker {
	return &SemanticChunker{
		embedder:            embedder,
		SimilarityThreshold: 0.5,
		MaxChunkSize:        1000,
		OverlapSize:         100,
	}
}

// Chunk splits plain text without page information.
func (c *SemanticChunker) Chunk(ctx context.Context, text string) ([]Chunk, error) {
	return c.ChunkPages(ctx, []PageContent{{Number: 0, Text: text}})
}

// ChunkPages splits paged text, tracking which page each chunk starts on.
// Chunks may span page boundaries; they keep the starting page number.
func (c *SemanticChunker) ChunkPages(ctx context.Context, pages []PageContent) ([]Chunk, error) {
	type sentence struct {
		text string
		page int
	}

	var sentences []sentence
	for _, page := range pages {
		for _, s := range splitSentences(page.Text) {
			sentences = append(sentences, sentence{text: s, page: page.Number})
		}
	}

	if len(sentences) == 0 {
		return nil, nil
	}

	if c.embedder == nil || len(sentences) < 2 {
		return c.wordChunkPages(pages), nil
	}

	vectors := make([][]float32, len(sentences))
	for i, s := range sentences {
		vector, err := c.embedder.Embed(ctx, s.text)
		if err != nil {
			// Embedding failure degrades to word chunking rather than
			// losing the document.
			return c.wordChunkPages(pages), nil
		}
		vectors[i] = vector
	}

	var chunks []Chunk
	var current []int
	currentLen := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		parts := make([]string, len(current))
		for i, idx := range current {
			parts[i] = sentences[idx].text
		}
		chunks = append(chunks, Chunk{
			Content: strings.Join(parts, " "),
			Page:    sentences[current[0]].page,
		})
	}

	for i := range sentences {
		if len(current) == 0 {
			current = []int{i}
			currentLen = len(sentences[i].text)
			continue
		}

		centroid := make([][]float32, len(current))
		for j, idx := range current {
			centroid[j] = vectors[idx]
		}
		similarity := utils.CosineSimilarity(vectors[i], utils.MeanVector(centroid))

		if similarity >= c.SimilarityThreshold && currentLen+len(sentences[i].text) <= c.MaxChunkSize {
			current = append(current, i)
			currentLen += len(sentences[i].text)
			continue
		}

		flush()

		// Seed the next chunk with trailing overlap from this one.
		current = []int{i}
		currentLen = len(sentences[i].text)
	}
	flush()

	return c.applyOverlap(chunks), nil
}

// applyOverlap prefixes each chunk with the last few words of its
// predecessor to preserve context across boundaries.
func (c *SemanticChunker) applyOverlap(chunks []Chunk) []Chunk {
	overlapWords := c.OverlapSize / 10
	if overlapWords == 0 || len(chunks) < 2 {
		return chunks
	}

	result := make([]Chunk, len(chunks))
	result[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		words := strings.Fields(chunks[i-1].Content)
		if len(words) > overlapWords {
			words = words[len(words)-overlapWords:]
		}
		result[i] = Chunk{
			Content: strings.Join(words, " ") + " " + chunks[i].Content,
			Page:    chunks[i].Page,
		}
	}
	return result
}

// wordChunkPages is the fallback: fixed-size word windows per page.
func (c *SemanticChunker) wordChunkPages(pages []PageContent) []Chunk {
	overlapWords := c.OverlapSize / 10
	var chunks []Chunk

	for _, page := range pages {
		words := strings.Fields(page.Text)
		if len(words) == 0 {
			continue
		}

		var current []string
		currentLen := 0
		for _, word := range words {
			if currentLen+len(word)+1 > c.MaxChunkSize && len(current) > 0 {
				chunks = append(chunks, Chunk{
					Content: strings.Join(current, " "),
					Page:    page.Number,
				})
				if overlapWords > 0 && len(current) > overlapWords {
					current = append([]string{}, current[len(current)-overlapWords:]...)
				} else {
					current = nil
				}
				currentLen = len(strings.Join(current, " "))
			}
			current = append(current, word)
			currentLen += len(word) + 1
		}
		if len(current) > 0 {
			chunks = append(chunks, Chunk{
				Content: strings.Join(current, " "),
				Page:    page.Number,
			})
		}
	}

	return chunks
}

// splitSentences breaks text on sentence punctuation, dropping fragments
// shorter than minSentenceLength.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	last := 0
	for _, loc := range sentenceBoundary.FindAllStringIndex(text, -1) {
		// Keep the terminating punctuation with the sentence.
		s := strings.TrimSpace(text[last : loc[0]+1])
		if len(s) >= minSentenceLength {
			sentences = append(sentences, s)
		}
		last = loc[1]
	}
	if s := strings.TrimSpace(text[last:]); len(s) >= minSentenceLength {
		sentences = append(sentences, s)
	}

	return sentences
}

var _ Chunker = (*SemanticChunker)(nil)
