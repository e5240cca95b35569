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
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/cortexkb/cortex/pkg/observability"
	"github.com/cortexkb/cortex/pkg/tools"
)

// Engine executes a plan under one of the three strategies and keeps the
// per-execution trace. The trace is per-call mutable state: use one engine
// per query, not across concurrent queries.
type Engine struct {
	maxWorkers int
	trace      []TraceEntry
}

// NewEngine builds an engine with the given parallel worker bound. Values
// below one fall back to 3.
func NewEngine(maxWorkers int) *Engine {
	if maxWorkers < 1 {
		maxWorkers = 3
	}
	return &Engine{maxWorkers: maxWorkers}
}

// Execute runs the plan's tools and returns every result, failed included.
// The trace from any previous call is discarded.
func (e *Engine) Execute(ctx context.Context, plan Plan, query string, ec *tools.ExecutionContext) []tools.ToolResult {
	slog.Info("Executing plan", "strategy", plan.Strategy, "tools", len(plan.Tools))

	e.trace = nil

	switch plan.Strategy {
	case StrategyParallel:
		return e.executeParallel(ctx, plan, query, ec)
	case StrategyConditional:
		return e.executeConditional(ctx, plan, query, ec)
	default:
		return e.executeSequential(ctx, plan, query, ec)
	}
}

// ExecutionTrace returns a copy of the trace from the last Execute call.
func (e *Engine) ExecutionTrace() []TraceEntry {
	return append([]TraceEntry(nil), e.trace...)
}

func (e *Engine) addTrace(entry TraceEntry) {
	e.trace = append(e.trace, entry)
}

func (e *Engine) executeSequential(ctx context.Context, plan Plan, query string, ec *tools.ExecutionContext) []tools.ToolResult {
	current := ec.Clone()
	results := make([]tools.ToolResult, 0, len(plan.Tools))

	for _, scored := range plan.Tools {
		results = append(results, e.runStep(ctx, plan, scored, query, current))
	}
	return results
}

// runStep executes one tool within a sequential or conditional plan,
// propagating a successful result into the shared context.
func (e *Engine) runStep(ctx context.Context, plan Plan, scored tools.ScoredTool, query string, current *tools.ExecutionContext) tools.ToolResult {
	tool := scored.Tool
	slog.Info("Executing tool", "tool", tool.Name(), "confidence", scored.Confidence)

	entry := newTraceEntry(StepExecuteTool)
	entry.Tool = tool.Name()
	entry.Confidence = scored.Confidence
	entry.Strategy = string(plan.Strategy)
	e.addTrace(entry)

	result, panicked := e.runTool(ctx, tool, query, current)

	switch {
	case panicked:
		failure := newTraceEntry(StepToolError)
		failure.Tool = tool.Name()
		failure.Error = result.Error
		e.addTrace(failure)

	case result.Success:
		current.PreviousResult = result.Data
		current.PreviousCitations = result.Citations
		propagateSearchSignals(current, result)

		success := newTraceEntry(StepToolSuccess)
		success.Tool = tool.Name()
		success.CitationsCount = intPtr(len(result.Citations))
		e.addTrace(success)

	default:
		slog.Warn("Tool failed", "tool", tool.Name(), "error", result.Error)
		failure := newTraceEntry(StepToolFailure)
		failure.Tool = tool.Name()
		failure.Error = result.Error
		e.addTrace(failure)
	}
	return result
}

// propagateSearchSignals exposes internal search quality to downstream
// suitability checks.
func propagateSearchSignals(ec *tools.ExecutionContext, result tools.ToolResult) {
	switch result.ToolName() {
	case "semantic_search", "keyword_search":
		confidence := result.Confidence(0)
		count := len(result.Citations)
		ec.InternalConfidence = &confidence
		ec.InternalResultsCount = &count
	}
}

func (e *Engine) executeParallel(ctx context.Context, plan Plan, query string, ec *tools.ExecutionContext) []tools.ToolResult {
	slog.Info("Executing tools in parallel", "tools", len(plan.Tools), "workers", e.maxWorkers)

	type outcome struct {
		tool     tools.Tool
		result   tools.ToolResult
		panicked bool
	}
	outcomes := make(chan outcome, len(plan.Tools))

	var group errgroup.Group
	group.SetLimit(e.maxWorkers)

	for _, scored := range plan.Tools {
		entry := newTraceEntry(StepSubmitTool)
		entry.Tool = scored.Tool.Name()
		entry.Confidence = scored.Confidence
		entry.Strategy = string(plan.Strategy)
		e.addTrace(entry)

		tool := scored.Tool
		group.Go(func() error {
			// Each tool observes a private snapshot of the initial context.
			result, panicked := e.runTool(ctx, tool, query, ec.Clone())
			outcomes <- outcome{tool: tool, result: result, panicked: panicked}
			return nil
		})
	}

	go func() {
		_ = group.Wait()
		close(outcomes)
	}()

	// Collect in completion order.
	results := make([]tools.ToolResult, 0, len(plan.Tools))
	for oc := range outcomes {
		results = append(results, oc.result)

		switch {
		case oc.panicked:
			failure := newTraceEntry(StepToolError)
			failure.Tool = oc.tool.Name()
			failure.Error = oc.result.Error
			e.addTrace(failure)
		case oc.result.Success:
			complete := newTraceEntry(StepToolComplete)
			complete.Tool = oc.tool.Name()
			complete.CitationsCount = intPtr(len(oc.result.Citations))
			e.addTrace(complete)
		default:
			slog.Warn("Tool failed", "tool", oc.tool.Name(), "error", oc.result.Error)
			failure := newTraceEntry(StepToolFailure)
			failure.Tool = oc.tool.Name()
			failure.Error = oc.result.Error
			e.addTrace(failure)
		}
	}
	return results
}

func (e *Engine) executeConditional(ctx context.Context, plan Plan, query string, ec *tools.ExecutionContext) []tools.ToolResult {
	current := ec.Clone()
	results := make([]tools.ToolResult, 0, len(plan.Tools))

	for _, scored := range plan.Tools {
		if !checkCondition(scored.Tool, plan.Conditions, results, current) {
			reason := current.SkipReason
			if reason == "" {
				reason = "condition_not_met"
			}
			slog.Info("Skipping tool", "tool", scored.Tool.Name(), "reason", reason)

			skip := newTraceEntry(StepSkipTool)
			skip.Tool = scored.Tool.Name()
			skip.Reason = reason
			e.addTrace(skip)
			continue
		}

		results = append(results, e.runStep(ctx, plan, scored, query, current))
	}
	return results
}

// checkCondition evaluates the tool's gating clauses, all AND-ed. Confidence
// and citation clauses read the most recent prior result; Requires searches
// all of them. Skipped tools leave no result, so they never feed later
// predicates.
func checkCondition(tool tools.Tool, conditions map[string]Condition, prior []tools.ToolResult, ec *tools.ExecutionContext) bool {
	cond, ok := conditions[tool.Name()]
	if !ok {
		return true
	}

	if cond.Requires != "" {
		satisfied := false
		for _, result := range prior {
			if result.ToolName() == cond.Requires && result.Success {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false
		}
	}

	if len(prior) > 0 {
		last := prior[len(prior)-1]
		confidence := last.Confidence(1.0)

		if cond.MinConfidence != nil && confidence < *cond.MinConfidence {
			return false
		}

		if cond.MaxConfidence != nil && confidence >= *cond.MaxConfidence {
			ec.SkipReason = fmt.Sprintf("confidence %.3f >= %v", confidence, *cond.MaxConfidence)
			return false
		}

		if cond.MaxCitations != nil && len(last.Citations) >= *cond.MaxCitations {
			ec.SkipReason = fmt.Sprintf("citations %d >= %d", len(last.Citations), *cond.MaxCitations)
			return false
		}
	}

	if cond.ContextKey != "" && !ec.Has(cond.ContextKey) {
		return false
	}

	return true
}

// runTool executes one tool inside a span with panic recovery. A panic is
// rewritten into a failed result so the query still completes; the second
// return value reports that it happened.
func (e *Engine) runTool(ctx context.Context, tool tools.Tool, query string, ec *tools.ExecutionContext) (result tools.ToolResult, panicked bool) {
	tracer := observability.GetTracer("cortex.agent")
	ctx, span := tracer.Start(ctx, observability.SpanToolExecution)
	span.SetAttributes(attribute.String(observability.AttrToolName, tool.Name()))

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tool execution panicked", "tool", tool.Name(), "panic", r)
			panicked = true
			result = tools.ToolResult{
				Success:  false,
				Error:    fmt.Sprintf("%v", r),
				Metadata: map[string]any{"tool": tool.Name()},
			}
		}

		var err error
		if !result.Success {
			err = errors.New(result.Error)
			span.SetStatus(codes.Error, result.Error)
		}
		if m := observability.GetGlobalMetrics(); m != nil {
			m.RecordToolExecution(ctx, tool.Name(), time.Since(start), err)
		}
		span.End()
	}()

	return tool.Execute(ctx, query, ec), false
}

// MergeResults folds an ordered result list into one. Map payloads merge
// key-by-key: "answer" values accumulate under "answers", other duplicate
// keys coerce to a list. Citations from every successful result are
// deduplicated by (document, page) with the first occurrence winning, then
// sorted by confidence descending.
func (e *Engine) MergeResults(results []tools.ToolResult) tools.ToolResult {
	if len(results) == 0 {
		return tools.ToolResult{Success: false, Error: "No results to merge"}
	}

	var successful []tools.ToolResult
	for _, r := range results {
		if r.Success {
			successful = append(successful, r)
		}
	}
	if len(successful) == 0 {
		return results[0]
	}

	mergedData := make(map[string]any)
	var allCitations []tools.Citation
	var toolsUsed []string

	for _, result := range successful {
		if data, ok := result.Data.(map[string]any); ok {
			for key, value := range data {
				switch {
				case key == "answer":
					answers, _ := mergedData["answers"].([]any)
					mergedData["answers"] = append(answers, value)
				case mergedData[key] != nil:
					existing, ok := mergedData[key].([]any)
					if !ok {
						existing = []any{mergedData[key]}
					}
					mergedData[key] = append(existing, value)
				default:
					mergedData[key] = value
				}
			}
		}

		allCitations = append(allCitations, result.Citations...)

		name := result.ToolName()
		if name == "" {
			name = "unknown"
		}
		toolsUsed = append(toolsUsed, name)
	}

	type citationKey struct {
		document string
		page     int
	}
	seen := make(map[citationKey]bool, len(allCitations))
	unique := make([]tools.Citation, 0, len(allCitations))
	for _, c := range allCitations {
		key := citationKey{document: c.Document, page: c.PageNumber}
		if !seen[key] {
			seen[key] = true
			unique = append(unique, c)
		}
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].ConfidenceScore > unique[j].ConfidenceScore
	})

	return tools.ToolResult{
		Success: true,
		Data:    mergedData,
		Metadata: map[string]any{
			"tools_used":  toolsUsed,
			"merge_count": len(successful),
		},
		Citations: unique,
	}
}
