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
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var (
	tokenPattern  = regexp.MustCompile(`[a-z0-9]+`)
	quotedPattern = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "the": true, "to": true,
	"was": true, "were": true, "with": true,
}

// KeywordIndex is an in-memory inverted index with term-frequency scoring
// and an exact-phrase boost for quoted queries. It backs the keyword search
// tool for exact-match lookups the vector store is weak at.
type KeywordIndex struct {
	mu       sync.RWMutex
	docs     map[string]Document
	lengths  map[string]int
	postings map[string]map[string]int
}

func NewKeywordIndex() *KeywordIndex {
	return &KeywordIndex{
		docs:     make(map[string]Document),
		lengths:  make(map[string]int),
		postings: make(map[string]map[string]int),
	}
}

// Add indexes documents, replacing any existing entries with the same ID.
func (i *KeywordIndex) Add(docs ...Document) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, doc := range docs {
		if doc.ID == "" {
			continue
		}
		i.removeLocked(doc.ID)

		terms := tokenize(doc.Content)
		i.docs[doc.ID] = doc
		i.lengths[doc.ID] = len(terms)
		for _, term := range terms {
			if i.postings[term] == nil {
				i.postings[term] = make(map[string]int)
			}
			i.postings[term][doc.ID]++
		}
	}
}

func (i *KeywordIndex) removeLocked(id string) {
	if _, ok := i.docs[id]; !ok {
		return
	}
	for term, posting := range i.postings {
		delete(posting, id)
		if len(posting) == 0 {
			delete(i.postings, term)
		}
	}
	delete(i.docs, id)
	delete(i.lengths, id)
}

// Count returns the number of indexed documents.
func (i *KeywordIndex) Count() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.docs)
}

// Search scores documents against the query terms. Quoted phrases must
// appear verbatim to score and double the match weight. Results carry the
// normalized score in SimilarityScore, best first.
func (i *KeywordIndex) Search(query string, topK int) []Document {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if len(i.docs) == 0 || topK <= 0 {
		return nil
	}

	terms := tokenize(query)
	phrases := extractPhrases(query)
	if len(terms) == 0 && len(phrases) == 0 {
		return nil
	}

	totalDocs := float64(len(i.docs))
	scores := make(map[string]float64)

	for _, term := range terms {
		posting, ok := i.postings[term]
		if !ok {
			continue
		}
		// tf-idf without the fancy parts: frequency damped by log,
		// weighted by rarity, normalized by document length.
		idf := math.Log(1 + totalDocs/float64(len(posting)))
		for id, freq := range posting {
			length := float64(i.lengths[id])
			if length == 0 {
				continue
			}
			scores[id] += (1 + math.Log(float64(freq))) * idf / math.Sqrt(length)
		}
	}

	for _, phrase := range phrases {
		needle := strings.ToLower(phrase)
		for id, doc := range i.docs {
			if strings.Contains(strings.ToLower(doc.Content), needle) {
				scores[id] += 2.0
			}
		}
	}

	if len(scores) == 0 {
		return nil
	}

	type scored struct {
		id    string
		score float64
	}
	ranked := make([]scored, 0, len(scores))
	var maxScore float64
	for id, score := range scores {
		ranked = append(ranked, scored{id, score})
		if score > maxScore {
			maxScore = score
		}
	}
	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].score != ranked[b].score {
			return ranked[a].score > ranked[b].score
		}
		return ranked[a].id < ranked[b].id
	})

	if topK > len(ranked) {
		topK = len(ranked)
	}

	results := make([]Document, 0, topK)
	for _, entry := range ranked[:topK] {
		doc := i.docs[entry.id]
		doc.SimilarityScore = entry.score / maxScore
		results = append(results, doc)
	}
	return results
}

func tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	terms := make([]string, 0, len(raw))
	for _, term := range raw {
		if stopwords[term] {
			continue
		}
		terms = append(terms, term)
	}
	return terms
}

func extractPhrases(query string) []string {
	matches := quotedPattern.FindAllStringSubmatch(query, -1)
	phrases := make([]string, 0, len(matches))
	for _, match := range matches {
		phrase := match[1]
		if phrase == "" {
			phrase = match[2]
		}
		if strings.TrimSpace(phrase) != "" {
			phrases = append(phrases, phrase)
		}
	}
	return phrases
}
