package agent

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cortexkb/cortex/pkg/llms"
	"github.com/cortexkb/cortex/pkg/rag"
	"github.com/cortexkb/cortex/pkg/tools"
)

// stubTool is a scriptable tool for engine and orchestrator tests.
type stubTool struct {
	name   string
	result tools.ToolResult
	panics bool
	delay  time.Duration

	executions   atomic.Int32
	lastPrevious any

	// Concurrency probes for parallel execution tests.
	inFlight      *atomic.Int32
	maxInFlight   *atomic.Int32
	observedExtra map[string]any
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub tool " + s.name }

func (s *stubTool) CanHandle(string, *tools.ExecutionContext) float64 { return 0.5 }

func (s *stubTool) Execute(_ context.Context, _ string, ec *tools.ExecutionContext) tools.ToolResult {
	s.executions.Add(1)
	if ec != nil {
		s.lastPrevious = ec.PreviousResult
		s.observedExtra = ec.Extra
	}

	if s.inFlight != nil {
		current := s.inFlight.Add(1)
		for {
			max := s.maxInFlight.Load()
			if current <= max || s.maxInFlight.CompareAndSwap(max, current) {
				break
			}
		}
		defer s.inFlight.Add(-1)
	}

	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.panics {
		panic("stub tool exploded")
	}
	return s.result
}

func successStub(name string, confidence float64, citations ...tools.Citation) *stubTool {
	return &stubTool{
		name: name,
		result: tools.ToolResult{
			Success:   true,
			Data:      map[string]any{"answer": name + " answer"},
			Metadata:  map[string]any{"tool": name, "confidence": confidence},
			Citations: citations,
		},
	}
}

func failingStub(name, errMsg string) *stubTool {
	return &stubTool{
		name: name,
		result: tools.ToolResult{
			Success:  false,
			Error:    errMsg,
			Metadata: map[string]any{"tool": name},
		},
	}
}

func scored(list ...tools.Tool) []tools.ScoredTool {
	return scoredWithConfidence(0.8, list...)
}

func scoredWithConfidence(confidence float64, list ...tools.Tool) []tools.ScoredTool {
	result := make([]tools.ScoredTool, len(list))
	for i, t := range list {
		result[i] = tools.ScoredTool{Tool: t, Confidence: confidence}
	}
	return result
}

// fakeRetriever serves a fixed document list.
type fakeRetriever struct {
	docs []rag.Document
	err  error
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, topK int) ([]rag.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	if topK > 0 && topK < len(f.docs) {
		return f.docs[:topK], nil
	}
	return f.docs, nil
}

func (f *fakeRetriever) SemanticSearch(ctx context.Context, text string, topK int) ([]rag.Document, error) {
	return f.Retrieve(ctx, text, topK)
}

// fakeChain returns canned answers and records comparison entities.
type fakeChain struct {
	answer  string
	summary string
	compare string

	compareEntities []string
}

func (f *fakeChain) Answer(_ context.Context, _ string, _ []rag.Document) (string, error) {
	return f.answer, nil
}

func (f *fakeChain) Summarize(_ context.Context, _ string, _ []rag.Document) (string, error) {
	return f.summary, nil
}

func (f *fakeChain) Compare(_ context.Context, _ string, entityA, entityB string, _ []rag.Document) (string, error) {
	f.compareEntities = []string{entityA, entityB}
	return f.compare, nil
}

// fakeLLM replays a fixed response or error and captures prompts.
type fakeLLM struct {
	response string
	err      error

	prompts []string
	opts    []llms.GenerateOptions
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, opts llms.GenerateOptions) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeLLM) Model() string { return "fake-llm" }

func sampleDocs(n int) []rag.Document {
	docs := make([]rag.Document, n)
	for i := range docs {
		docs[i] = rag.Document{
			ID:      fmt.Sprintf("chunk-%d", i),
			Content: fmt.Sprintf("Content of document %d about workplace policy.", i),
			Metadata: map[string]any{
				"title": fmt.Sprintf("Doc %d", i),
				"page":  i + 1,
			},
			SimilarityScore: 0.9 - 0.1*float64(i),
		}
	}
	return docs
}
