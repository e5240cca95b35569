package tools

import (
	"context"
	"fmt"

	"github.com/cortexkb/cortex/pkg/llms"
	"github.com/cortexkb/cortex/pkg/rag"
)

// fakeRetriever returns canned documents for every search.
type fakeRetriever struct {
	docs []rag.Document
	err  error

	retrieveCalls []string
	semanticCalls []string
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, topK int) ([]rag.Document, error) {
	f.retrieveCalls = append(f.retrieveCalls, query)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.docs) > topK {
		return f.docs[:topK], nil
	}
	return f.docs, nil
}

func (f *fakeRetriever) SemanticSearch(_ context.Context, text string, topK int) ([]rag.Document, error) {
	f.semanticCalls = append(f.semanticCalls, text)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.docs) > topK {
		return f.docs[:topK], nil
	}
	return f.docs, nil
}

// fakeChain records calls and returns canned answers.
type fakeChain struct {
	answer  string
	summary string
	compare string
	err     error

	compareEntities []string
}

func (f *fakeChain) Answer(_ context.Context, _ string, _ []rag.Document) (string, error) {
	return f.answer, f.err
}

func (f *fakeChain) Summarize(_ context.Context, _ string, _ []rag.Document) (string, error) {
	return f.summary, f.err
}

func (f *fakeChain) Compare(_ context.Context, _, entityA, entityB string, _ []rag.Document) (string, error) {
	f.compareEntities = []string{entityA, entityB}
	return f.compare, f.err
}

// fakeProvider is a canned llms.Provider.
type fakeProvider struct {
	response string
	err      error
	prompts  []string
	opts     []llms.GenerateOptions
}

func (f *fakeProvider) Generate(_ context.Context, prompt string, opts llms.GenerateOptions) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeProvider) Model() string { return "test-model" }

func sampleDocs(n int) []rag.Document {
	docs := make([]rag.Document, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, rag.Document{
			ID:      fmt.Sprintf("chunk-%d", i),
			Content: fmt.Sprintf("Chunk %d content about the policy.", i),
			Metadata: map[string]any{
				"title": fmt.Sprintf("Doc %d", i),
				"page":  i + 1,
			},
			SimilarityScore: 0.9 - float64(i)*0.1,
		})
	}
	return docs
}

// stubTool is a configurable Tool for registry and engine tests.
type stubTool struct {
	name       string
	confidence float64
	result     ToolResult
	panics     bool

	executions int
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub tool " + s.name }

func (s *stubTool) CanHandle(string, *ExecutionContext) float64 {
	if s.panics {
		panic("boom")
	}
	return s.confidence
}

func (s *stubTool) Execute(context.Context, string, *ExecutionContext) ToolResult {
	s.executions++
	return s.result
}
