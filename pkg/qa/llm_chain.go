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

package qa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cortexkb/cortex/pkg/llms"
	"github.com/cortexkb/cortex/pkg/rag"
	"github.com/cortexkb/cortex/pkg/utils"
)

const (
	// defaultContextBudget bounds how many tokens of document context go
	// into a prompt, leaving headroom for instructions and the answer.
	defaultContextBudget = 3000

	answerPrompt = `Answer the question using ONLY the context below. If the context does not contain the answer, say so.

Context:
%s

Question: %s

Answer:`

	summaryPrompt = `Summarize the documents below. Focus on the key points relevant to the request.

Documents:
%s

Request: %s

Summary:`

	comparePrompt = `Compare %s and %s using ONLY the context below. Cover similarities and differences, and note anything the context does not say.

Context:
%s

Question: %s

Comparison:`
)

// LLMChain is a Chain backed by a text generation provider. Document
// context is budgeted with a token counter so prompts fit the model window.
type LLMChain struct {
	llm     llms.Provider
	counter *utils.TokenCounter

	// ContextBudget in tokens for the document context portion.
	ContextBudget int
}

// NewLLMChain builds a chain for the provider. Token counting falls back to
// a character estimate if no encoding is available for the model.
func NewLLMChain(llm llms.Provider) (*LLMChain, error) {
	if llm == nil {
		return nil, fmt.Errorf("llm provider is required")
	}

	counter, err := utils.NewTokenCounter(llm.Model())
	if err != nil {
		slog.Warn("Token counter unavailable, using estimates", "model", llm.Model(), "error", err)
		counter = nil
	}

	return &LLMChain{
		llm:           llm,
		counter:       counter,
		ContextBudget: defaultContextBudget,
	}, nil
}

func (c *LLMChain) Answer(ctx context.Context, query string, docs []rag.Document) (string, error) {
	if len(docs) == 0 {
		return "", fmt.Errorf("no context documents provided")
	}

	prompt := fmt.Sprintf(answerPrompt, c.buildContext(docs), query)
	return c.generate(ctx, prompt, llms.GenerateOptions{Temperature: 0.2, MaxTokens: 500})
}

func (c *LLMChain) Summarize(ctx context.Context, query string, docs []rag.Document) (string, error) {
	if len(docs) == 0 {
		return "", fmt.Errorf("no context documents provided")
	}

	prompt := fmt.Sprintf(summaryPrompt, c.buildContext(docs), query)
	return c.generate(ctx, prompt, llms.GenerateOptions{Temperature: 0.3, MaxTokens: 400})
}

func (c *LLMChain) Compare(ctx context.Context, query, entityA, entityB string, docs []rag.Document) (string, error) {
	if len(docs) == 0 {
		return "", fmt.Errorf("no context documents provided")
	}

	prompt := fmt.Sprintf(comparePrompt, entityA, entityB, c.buildContext(docs), query)
	return c.generate(ctx, prompt, llms.GenerateOptions{Temperature: 0.3, MaxTokens: 500})
}

func (c *LLMChain) generate(ctx context.Context, prompt string, opts llms.GenerateOptions) (string, error) {
	response, err := c.llm.Generate(ctx, prompt, opts)
	if err != nil {
		return "", err
	}
	response = strings.TrimSpace(response)
	if response == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return response, nil
}

// buildContext renders documents as labeled sections, truncated to fit the
// token budget. Earlier (higher ranked) documents get priority.
func (c *LLMChain) buildContext(docs []rag.Document) string {
	budget := c.ContextBudget
	if budget <= 0 {
		budget = defaultContextBudget
	}

	var sections []string
	remaining := budget

	for _, doc := range docs {
		if remaining <= 0 {
			break
		}

		header := fmt.Sprintf("[Source: %s", doc.Name())
		if page := doc.Page(); page > 0 {
			header += fmt.Sprintf(", page %d", page)
		}
		header += "]"

		content := doc.Content
		tokens := c.countTokens(content)
		if tokens > remaining {
			content = c.truncate(content, remaining)
			tokens = remaining
		}
		remaining -= tokens

		sections = append(sections, header+"\n"+content)
	}

	return strings.Join(sections, "\n\n")
}

func (c *LLMChain) countTokens(text string) int {
	if c.counter != nil {
		return c.counter.Count(text)
	}
	return utils.EstimateTokens(text)
}

func (c *LLMChain) truncate(text string, maxTokens int) string {
	if c.counter != nil {
		return c.counter.TruncateToTokens(text, maxTokens)
	}
	limit := maxTokens * 4
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}

var _ Chain = (*LLMChain)(nil)
