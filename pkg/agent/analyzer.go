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

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/cortexkb/cortex/pkg/llms"
)

// Complexity levels.
const (
	ComplexitySimple   = "simple"
	ComplexityModerate = "moderate"
	ComplexityComplex  = "complex"
)

// Intent classes.
const (
	IntentConversational = "conversational"
	IntentFactual        = "factual"
	IntentExternal       = "external"
	IntentComparison     = "comparison"
	IntentSummarization  = "summarization"
	IntentCalculation    = "calculation"
)

var validIntents = []string{
	IntentConversational, IntentFactual, IntentExternal,
	IntentComparison, IntentSummarization, IntentCalculation,
}

// Analysis is the query analyzer's output, consumed by tool selection and
// plan construction.
type Analysis struct {
	Complexity            string              `json:"complexity"`
	Intent                string              `json:"intent"`
	Entities              []string            `json:"entities"`
	RequiresMultipleTools bool                `json:"requires_multiple_tools"`
	Keywords              map[string][]string `json:"keywords"`
	QueryLength           int                 `json:"query_length"`
	WordCount             int                 `json:"word_count"`
}

// Analyzer classifies queries by complexity, intent, and entities. Intent
// uses the LLM when available, with a deterministic rule fallback.
type Analyzer struct {
	llm llms.Provider
}

// NewAnalyzer builds an analyzer. A nil provider disables LLM intent
// classification.
func NewAnalyzer(llm llms.Provider) *Analyzer {
	return &Analyzer{llm: llm}
}

// Analyze classifies the query.
func (a *Analyzer) Analyze(ctx context.Context, query string) Analysis {
	slog.Info("Analyzing query", "query", truncateQuery(query))

	analysis := Analysis{
		Complexity:  assessComplexity(query),
		Intent:      a.classifyIntent(ctx, query),
		Entities:    extractEntities(query),
		Keywords:    extractKeywords(query),
		QueryLength: len(query),
		WordCount:   len(strings.Fields(query)),
	}
	analysis.RequiresMultipleTools = requiresMultipleTools(query, analysis.Complexity, analysis.Intent)

	slog.Info("Query analysis complete",
		"complexity", analysis.Complexity,
		"intent", analysis.Intent,
		"multiple_tools", analysis.RequiresMultipleTools)
	return analysis
}

var (
	sentenceSplit = regexp.MustCompile(`[.!?]+`)
	conjunctions  = regexp.MustCompile(`(?i)\b(and|or)\b`)
)

var multiStepKeywords = []string{"then", "after", "first", "next", "finally", "also"}

// assessComplexity scores structural signals and buckets the total.
func assessComplexity(query string) string {
	wordCount := len(strings.Fields(query))
	sentenceCount := len(sentenceSplit.Split(strings.TrimSpace(query), -1))
	questionMarks := strings.Count(query, "?")
	conjunctionCount := len(conjunctions.FindAllString(query, -1))
	commaCount := strings.Count(query, ",")

	score := 0

	switch {
	case wordCount > 20:
		score += 2
	case wordCount > 10:
		score++
	}

	switch {
	case sentenceCount > 2:
		score += 2
	case sentenceCount > 1:
		score++
	}

	if questionMarks > 1 {
		score += 2
	}

	switch {
	case conjunctionCount > 2:
		score += 2
	case conjunctionCount > 0:
		score++
	}

	if commaCount > 2 {
		score++
	}

	if containsAnyFold(query, multiStepKeywords) {
		score += 3
	}

	switch {
	case score >= 5:
		return ComplexityComplex
	case score >= 2:
		return ComplexityModerate
	default:
		return ComplexitySimple
	}
}

func (a *Analyzer) classifyIntent(ctx context.Context, query string) string {
	if a.llm != nil {
		if intent := a.llmClassifyIntent(ctx, query); intent != "" {
			return intent
		}
	}
	return ruleClassifyIntent(query)
}

const intentPrompt = `Classify this query's intent. Choose EXACTLY ONE option:

- conversational: Greetings (hi, hello, hey), gratitude (thanks, thank you), acknowledgments (ok, got it, sure), farewells (bye, goodbye), or simple pleasantries
- factual: Questions about uploaded documents, files, PDFs, or content that the user has provided. Includes queries with "the document", "the file", "this document", "uploaded", or asking about specific documents/policies/reports.
- external: General knowledge, current events, real-time data, famous people, geography, history, scientific facts, definitions, or information from the internet/Wikipedia that is NOT in user's uploaded documents.
- comparison: Comparing two or more things (only if explicitly asking to compare)
- summarization: Asking for a summary or overview (only if explicitly asking to summarize)
- calculation: Math operations or numerical calculations

PRIORITY RULES:
1. Single words like "hi", "hello", "thanks", "ok", "bye" -> ALWAYS conversational
2. Short greetings (2-3 words) without questions -> conversational
3. If query asks about "the document", "the file", "uploaded" -> factual (NOT external)
4. If query asks about general concepts, famous people, current events -> external
5. When unsure between factual/external -> choose factual (try internal documents first)

Examples:
- "hi" -> conversational
- "thanks" -> conversational
- "What is our remote work policy?" -> factual (internal document)
- "What is the document about?" -> factual (asking about uploaded document)
- "Summarize the uploaded file" -> summarization (uploaded document)
- "What is the capital of France?" -> external (general knowledge, geography)
- "What is machine learning?" -> external (general knowledge, definition)
- "Compare Policy A and Policy B" -> comparison
- "Calculate 15%% of the budget" -> calculation

Query: "%s"

Respond with ONLY ONE WORD (conversational/factual/external/comparison/summarization/calculation):`

// llmClassifyIntent asks the model for an intent label. Returns "" when the
// call fails or the reply cannot be parsed, so the rule fallback runs.
func (a *Analyzer) llmClassifyIntent(ctx context.Context, query string) string {
	response, err := a.llm.Generate(ctx, fmt.Sprintf(intentPrompt, query), llms.GenerateOptions{
		Temperature: 0.1,
		MaxTokens:   10,
	})
	if err != nil {
		slog.Warn("LLM intent classification failed, falling back to rules", "error", err)
		return ""
	}

	reply := strings.ToLower(strings.TrimSpace(response))

	if slices.Contains(validIntents, reply) {
		return reply
	}

	lines := strings.Split(reply, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); slices.Contains(validIntents, line) {
			return line
		}
	}

	for _, intent := range validIntents {
		if strings.Contains(reply, intent) {
			return intent
		}
	}

	slog.Warn("LLM returned unparseable intent", "response", truncateQuery(response))
	return ""
}

var conversationalTokens = []string{
	"hi", "hello", "hey", "thanks", "thank you", "bye", "goodbye",
	"ok", "okay", "got it", "understood", "sure", "great", "good",
	"cool", "nice", "awesome", "perfect",
}

var (
	comparisonIntentKeywords = []string{
		"compare", "versus", " vs ", " vs.", "difference", "contrast",
		"similarities", "differ",
	}
	summarizationIntentKeywords = []string{
		"summarize", "summary", "overview", "key points", "main points",
		"highlights", "brief",
	}
	calculationIntentKeywords = []string{
		"calculate", "compute", " sum ", "total", "average", "%", "percentage",
	}
	externalIntentKeywords = []string{
		"current", "latest", "recent", "today", "now", "news",
		"weather", "stock price", "exchange rate",
	}
)

var digits = regexp.MustCompile(`\d+`)

// ruleClassifyIntent is the deterministic fallback. Summarization is checked
// before calculation so "sum" inside "summarize" does not misfire.
func ruleClassifyIntent(query string) string {
	lower := strings.ToLower(strings.TrimSpace(query))
	words := strings.Fields(lower)

	if len(words) == 1 && slices.Contains(conversationalTokens, words[0]) {
		return IntentConversational
	}
	if len(words) <= 3 && !strings.Contains(query, "?") {
		for _, word := range words {
			if slices.Contains(conversationalTokens, word) {
				return IntentConversational
			}
		}
	}

	if containsAny(lower, comparisonIntentKeywords) {
		return IntentComparison
	}
	if containsAny(lower, summarizationIntentKeywords) {
		return IntentSummarization
	}

	hasArithmetic := digits.MatchString(query) && strings.ContainsAny(query, "+-*/")
	if containsAny(lower, calculationIntentKeywords) || hasArithmetic {
		return IntentCalculation
	}

	if containsAny(lower, externalIntentKeywords) {
		return IntentExternal
	}

	return IntentFactual
}

var (
	quotedText     = regexp.MustCompile(`"([^"]+)"`)
	datePattern    = regexp.MustCompile(`\b\d{4}\b|\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
	multiWordNouns = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b`)
)

var entityStopwords = []string{"I", "A", "The", "In", "On", "At"}

// extractEntities collects proper nouns, quoted text, dates, and multi-word
// capitalized phrases, deduplicated case-insensitively in first-seen order.
func extractEntities(query string) []string {
	var entities []string

	words := strings.Fields(query)
	for i, word := range words {
		if slices.Contains(entityStopwords, word) {
			continue
		}
		// First words are skipped: sentence-start capitals are not names.
		if i > 0 && len(word) > 1 && startsUpper(word) {
			entities = append(entities, word)
		}
	}

	for _, match := range quotedText.FindAllStringSubmatch(query, -1) {
		entities = append(entities, match[1])
	}
	entities = append(entities, datePattern.FindAllString(query, -1)...)
	entities = append(entities, multiWordNouns.FindAllString(query, -1)...)

	seen := make(map[string]bool, len(entities))
	unique := entities[:0]
	for _, entity := range entities {
		key := strings.ToLower(entity)
		if !seen[key] {
			seen[key] = true
			unique = append(unique, entity)
		}
	}
	return unique
}

var multiToolKeywords = []string{"then", "after that", "also", "and then", "followed by"}

var intentSignals = map[string][]string{
	IntentComparison:    {"compare", "difference"},
	IntentCalculation:   {"calculate", "compute"},
	IntentSummarization: {"summarize", "overview"},
	IntentFactual:       {"what", "how", "why"},
}

func requiresMultipleTools(query, complexity, intent string) bool {
	if complexity == ComplexityComplex {
		return true
	}

	lower := strings.ToLower(query)
	if containsAny(lower, multiToolKeywords) {
		return true
	}

	if strings.Count(query, "?") > 1 {
		return true
	}

	matched := 0
	for _, keywords := range intentSignals {
		if containsAny(lower, keywords) {
			matched++
		}
	}
	if matched >= 2 {
		return true
	}

	return complexity == ComplexityModerate &&
		(intent == IntentComparison || intent == IntentCalculation)
}

var keywordCategories = map[string][]string{
	"comparison":    {"compare", "versus", "vs", "difference", "contrast", "similar"},
	"calculation":   {"calculate", "compute", "sum", "total", "average", "percentage"},
	"summarization": {"summarize", "summary", "overview", "key points", "highlights"},
	"external":      {"current", "latest", "recent", "today", "now", "news"},
	"temporal":      {"when", "date", "time", "year", "month", "day", "yesterday", "tomorrow"},
	"quantitative":  {"how many", "how much", "count", "number", "amount", "quantity"},
}

func extractKeywords(query string) map[string][]string {
	lower := strings.ToLower(query)

	keywords := make(map[string][]string, len(keywordCategories))
	for category, candidates := range keywordCategories {
		matched := []string{}
		for _, kw := range candidates {
			if strings.Contains(lower, kw) {
				matched = append(matched, kw)
			}
		}
		keywords[category] = matched
	}
	return keywords
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func containsAnyFold(s string, keywords []string) bool {
	return containsAny(strings.ToLower(s), keywords)
}

func startsUpper(word string) bool {
	for _, r := range word {
		return unicode.IsUpper(r)
	}
	return false
}

func truncateQuery(s string) string {
	if len(s) > 50 {
		return s[:50] + "..."
	}
	return s
}
