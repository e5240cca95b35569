package agent

import (
	"context"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cortexkb/cortex/pkg/tools"
)

func traceSteps(trace []TraceEntry) []string {
	steps := make([]string, len(trace))
	for i, entry := range trace {
		steps[i] = entry.Step
	}
	return steps
}

func findTrace(trace []TraceEntry, step string) (TraceEntry, bool) {
	for _, entry := range trace {
		if entry.Step == step {
			return entry, true
		}
	}
	return TraceEntry{}, false
}

func TestEngine_SequentialPropagatesResults(t *testing.T) {
	first := successStub("semantic_search", 0.9, tools.Citation{Document: "Doc", PageNumber: 1})
	second := successStub("summarization", 0.8)

	engine := NewEngine(3)
	results := engine.Execute(context.Background(),
		Plan{Strategy: StrategySequential, Tools: scored(first, second)},
		"query", &tools.ExecutionContext{})

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if !reflect.DeepEqual(second.lastPrevious, first.result.Data) {
		t.Errorf("second tool saw previous_result %v, want first tool's data", second.lastPrevious)
	}

	steps := traceSteps(engine.ExecutionTrace())
	want := []string{StepExecuteTool, StepToolSuccess, StepExecuteTool, StepToolSuccess}
	if !reflect.DeepEqual(steps, want) {
		t.Errorf("trace steps = %v, want %v", steps, want)
	}

	success, _ := findTrace(engine.ExecutionTrace(), StepToolSuccess)
	if success.CitationsCount == nil || *success.CitationsCount != 1 {
		t.Errorf("citations_count = %v, want 1", success.CitationsCount)
	}
}

func TestEngine_SequentialContinuesAfterFailure(t *testing.T) {
	failing := failingStub("calculator", "no numbers found")
	next := successStub("semantic_search", 0.7)

	engine := NewEngine(3)
	results := engine.Execute(context.Background(),
		Plan{Strategy: StrategySequential, Tools: scored(failing, next)},
		"query", &tools.ExecutionContext{})

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 (best effort)", len(results))
	}
	if next.executions.Load() != 1 {
		t.Error("later tool must still run after a failure")
	}

	failure, ok := findTrace(engine.ExecutionTrace(), StepToolFailure)
	if !ok || failure.Error != "no numbers found" {
		t.Errorf("tool_failure entry = %+v", failure)
	}
}

func TestEngine_PanicBecomesFailedResult(t *testing.T) {
	exploding := &stubTool{name: "web_search", panics: true}
	next := successStub("semantic_search", 0.7)

	engine := NewEngine(3)
	results := engine.Execute(context.Background(),
		Plan{Strategy: StrategySequential, Tools: scored(exploding, next)},
		"query", &tools.ExecutionContext{})

	if results[0].Success {
		t.Fatal("panicking tool must yield a failed result")
	}
	if results[0].Metadata["tool"] != "web_search" {
		t.Errorf("metadata.tool = %v", results[0].Metadata["tool"])
	}
	if results[0].Error != "stub tool exploded" {
		t.Errorf("error = %q", results[0].Error)
	}

	if _, ok := findTrace(engine.ExecutionTrace(), StepToolError); !ok {
		t.Error("trace missing tool_error entry")
	}
	if next.executions.Load() != 1 {
		t.Error("query must complete after a panic")
	}
}

func TestEngine_ParallelCollectsAllResults(t *testing.T) {
	a := successStub("semantic_search", 0.8)
	b := successStub("keyword_search", 0.6)
	c := failingStub("web_search", "service down")

	engine := NewEngine(3)
	results := engine.Execute(context.Background(),
		Plan{Strategy: StrategyParallel, Tools: scored(a, b, c)},
		"query", &tools.ExecutionContext{})

	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}

	trace := engine.ExecutionTrace()
	submits := 0
	for _, entry := range trace {
		if entry.Step == StepSubmitTool {
			submits++
		}
	}
	if submits != 3 {
		t.Errorf("submit_tool entries = %d, want 3", submits)
	}
	if _, ok := findTrace(trace, StepToolComplete); !ok {
		t.Error("trace missing tool_complete entries")
	}
	if failure, ok := findTrace(trace, StepToolFailure); !ok || failure.Tool != "web_search" {
		t.Errorf("tool_failure entry = %+v", failure)
	}
}

func TestEngine_ParallelHonorsWorkerBound(t *testing.T) {
	var inFlight, maxSeen atomic.Int32

	var pool []tools.Tool
	for _, name := range []string{"a", "b", "c", "d"} {
		stub := successStub(name, 0.5)
		stub.delay = 20 * time.Millisecond
		stub.inFlight = &inFlight
		stub.maxInFlight = &maxSeen
		pool = append(pool, stub)
	}

	engine := NewEngine(2)
	results := engine.Execute(context.Background(),
		Plan{Strategy: StrategyParallel, Tools: scored(pool...)},
		"query", &tools.ExecutionContext{})

	if len(results) != 4 {
		t.Fatalf("results = %d, want 4", len(results))
	}
	if got := maxSeen.Load(); got > 2 {
		t.Errorf("max concurrent executions = %d, want <= 2", got)
	}
}

func TestEngine_ParallelUsesInitialContextSnapshot(t *testing.T) {
	a := successStub("semantic_search", 0.8)
	b := successStub("keyword_search", 0.6)

	engine := NewEngine(3)
	engine.Execute(context.Background(),
		Plan{Strategy: StrategyParallel, Tools: scored(a, b)},
		"query", &tools.ExecutionContext{})

	if a.lastPrevious != nil || b.lastPrevious != nil {
		t.Error("parallel tools must not observe each other's results")
	}
}

func TestEngine_ConditionalSkipsOnHighConfidence(t *testing.T) {
	kb := successStub("semantic_search", 0.8)
	web := successStub("web_search", 0.7)

	plan := Plan{
		Strategy: StrategyConditional,
		Tools:    scored(kb, web),
		Conditions: map[string]Condition{
			"web_search": {MaxConfidence: floatPtr(0.5)},
		},
	}

	engine := NewEngine(3)
	results := engine.Execute(context.Background(), plan, "query", &tools.ExecutionContext{})

	if len(results) != 1 {
		t.Fatalf("results = %d, want 1 (web search skipped)", len(results))
	}
	if web.executions.Load() != 0 {
		t.Error("skipped tool must not execute")
	}

	skip, ok := findTrace(engine.ExecutionTrace(), StepSkipTool)
	if !ok {
		t.Fatal("trace missing skip_tool entry")
	}
	if skip.Tool != "web_search" || skip.Reason != "confidence 0.800 >= 0.5" {
		t.Errorf("skip entry = %+v", skip)
	}
}

func TestEngine_ConditionalRunsOnLowConfidence(t *testing.T) {
	kb := successStub("semantic_search", 0.2)
	web := successStub("web_search", 0.7)

	plan := Plan{
		Strategy: StrategyConditional,
		Tools:    scored(kb, web),
		Conditions: map[string]Condition{
			"web_search": {MaxConfidence: floatPtr(0.5)},
		},
	}

	engine := NewEngine(3)
	results := engine.Execute(context.Background(), plan, "query", &tools.ExecutionContext{})

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if web.executions.Load() != 1 {
		t.Error("web search must run when internal confidence is low")
	}
	// The fallback still sees the primary's output.
	if !reflect.DeepEqual(web.lastPrevious, kb.result.Data) {
		t.Error("conditional execution must propagate context")
	}
}

func TestEngine_ConditionalRequires(t *testing.T) {
	failing := failingStub("semantic_search", "store offline")
	dependent := successStub("summarization", 0.8)

	plan := Plan{
		Strategy: StrategyConditional,
		Tools:    scored(failing, dependent),
		Conditions: map[string]Condition{
			"summarization": {Requires: "semantic_search"},
		},
	}

	engine := NewEngine(3)
	engine.Execute(context.Background(), plan, "query", &tools.ExecutionContext{})

	if dependent.executions.Load() != 0 {
		t.Error("tool must be skipped when its requirement failed")
	}
	skip, ok := findTrace(engine.ExecutionTrace(), StepSkipTool)
	if !ok || skip.Reason != "condition_not_met" {
		t.Errorf("skip entry = %+v", skip)
	}
}

func TestEngine_ConditionalMaxCitations(t *testing.T) {
	citations := []tools.Citation{
		{Document: "A", PageNumber: 1},
		{Document: "B", PageNumber: 2},
		{Document: "C", PageNumber: 3},
	}
	kb := successStub("semantic_search", 0.2, citations...)
	fallback := successStub("keyword_search", 0.5)

	plan := Plan{
		Strategy: StrategyConditional,
		Tools:    scored(kb, fallback),
		Conditions: map[string]Condition{
			"keyword_search": {MinConfidence: floatPtr(0.0), MaxCitations: intPtr(3)},
		},
	}

	engine := NewEngine(3)
	engine.Execute(context.Background(), plan, "query", &tools.ExecutionContext{})

	if fallback.executions.Load() != 0 {
		t.Error("fallback must be skipped when enough citations exist")
	}
	skip, _ := findTrace(engine.ExecutionTrace(), StepSkipTool)
	if skip.Reason != "citations 3 >= 3" {
		t.Errorf("skip reason = %q", skip.Reason)
	}
}

func TestEngine_ConditionalContextKey(t *testing.T) {
	gated := successStub("keyword_search", 0.5)

	plan := Plan{
		Strategy: StrategyConditional,
		Tools:    scored(gated),
		Conditions: map[string]Condition{
			"keyword_search": {ContextKey: "chat_history"},
		},
	}

	engine := NewEngine(3)
	engine.Execute(context.Background(), plan, "query", &tools.ExecutionContext{})
	if gated.executions.Load() != 0 {
		t.Error("tool must be skipped without the context key")
	}

	ec := &tools.ExecutionContext{Extra: map[string]any{"chat_history": []string{"hi"}}}
	engine.Execute(context.Background(), plan, "query", ec)
	if gated.executions.Load() != 1 {
		t.Error("tool must run when the context key is present")
	}
}

func TestEngine_MergeResults(t *testing.T) {
	engine := NewEngine(3)

	merged := engine.MergeResults(nil)
	if merged.Success || merged.Error != "No results to merge" {
		t.Errorf("empty merge = %+v", merged)
	}

	failed := tools.ToolResult{Success: false, Error: "boom", Metadata: map[string]any{"tool": "a"}}
	merged = engine.MergeResults([]tools.ToolResult{failed})
	if merged.Success || merged.Error != "boom" {
		t.Error("all-failed merge must return the first input unchanged")
	}
}

func TestEngine_MergeResultsCombinesData(t *testing.T) {
	first := tools.ToolResult{
		Success:  true,
		Data:     map[string]any{"answer": "from kb", "query_type": "search"},
		Metadata: map[string]any{"tool": "semantic_search"},
		Citations: []tools.Citation{
			{Document: "Doc", PageNumber: 1, ConfidenceScore: 0.4},
		},
	}
	second := tools.ToolResult{
		Success:  true,
		Data:     map[string]any{"answer": "from web", "query_type": "web_search"},
		Metadata: map[string]any{"tool": "web_search"},
		Citations: []tools.Citation{
			{Document: "Doc", PageNumber: 1, ConfidenceScore: 0.9}, // duplicate, dropped
			{Document: "Site", PageNumber: 0, ConfidenceScore: 0.8},
		},
	}

	engine := NewEngine(3)
	merged := engine.MergeResults([]tools.ToolResult{first, second})

	if !merged.Success {
		t.Fatal("merge of successes must succeed")
	}

	data := merged.Data.(map[string]any)
	if !reflect.DeepEqual(data["answers"], []any{"from kb", "from web"}) {
		t.Errorf("answers = %v", data["answers"])
	}
	if !reflect.DeepEqual(data["query_type"], []any{"search", "web_search"}) {
		t.Errorf("duplicate keys must coerce to a list, got %v", data["query_type"])
	}

	if !reflect.DeepEqual(merged.Metadata["tools_used"], []string{"semantic_search", "web_search"}) {
		t.Errorf("tools_used = %v", merged.Metadata["tools_used"])
	}
	if merged.Metadata["merge_count"] != 2 {
		t.Errorf("merge_count = %v", merged.Metadata["merge_count"])
	}

	if len(merged.Citations) != 2 {
		t.Fatalf("citations = %d, want 2 after dedup", len(merged.Citations))
	}
	// First occurrence wins the dedup; order is by confidence descending.
	if merged.Citations[0].Document != "Site" || merged.Citations[1].ConfidenceScore != 0.4 {
		t.Errorf("citations = %+v", merged.Citations)
	}
}

func TestEngine_MergeIgnoresNonMapDataButKeepsCitations(t *testing.T) {
	search := tools.ToolResult{
		Success:  true,
		Data:     []string{"raw", "documents"},
		Metadata: map[string]any{"tool": "semantic_search"},
		Citations: []tools.Citation{
			{Document: "Doc", PageNumber: 2, ConfidenceScore: 0.7},
		},
	}

	engine := NewEngine(3)
	merged := engine.MergeResults([]tools.ToolResult{search})

	data := merged.Data.(map[string]any)
	if len(data) != 0 {
		t.Errorf("non-map payload must not merge, got %v", data)
	}
	if len(merged.Citations) != 1 {
		t.Errorf("citations = %d, want 1", len(merged.Citations))
	}
}
