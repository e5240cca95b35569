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

// Package agent implements the agentic orchestration pipeline: query
// analysis, hybrid tool selection, execution planning, the three-strategy
// execution engine, and response synthesis with a reasoning trace.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/cortexkb/cortex/pkg/citations"
	"github.com/cortexkb/cortex/pkg/config"
	"github.com/cortexkb/cortex/pkg/llms"
	"github.com/cortexkb/cortex/pkg/observability"
	"github.com/cortexkb/cortex/pkg/qa"
	"github.com/cortexkb/cortex/pkg/rag"
	"github.com/cortexkb/cortex/pkg/tools"
)

// Collaborators are the external dependencies the orchestrator injects into
// tools. Any of them may be nil; tools that need a missing collaborator are
// simply not registered.
type Collaborators struct {
	Retriever    rag.Retriever
	KeywordIndex *rag.KeywordIndex
	Chain        qa.Chain
	LLM          llms.Provider
	Webhooks     *tools.WebhookClient
	Enhancer     *citations.Enhancer
}

// Orchestrator is the top-level query controller. It owns the tool registry
// and analyzer; an engine is created per query so traces stay isolated.
type Orchestrator struct {
	cfg      config.AgentConfig
	registry *tools.ToolRegistry
	analyzer *Analyzer
	deps     Collaborators
}

// NewOrchestrator builds an orchestrator and registers every tool whose
// collaborators are available.
func NewOrchestrator(cfg config.AgentConfig, deps Collaborators) *Orchestrator {
	cfg.SetDefaults()

	intentLLM := deps.LLM
	if !cfg.IsLLMIntentEnabled() {
		intentLLM = nil
	}

	o := &Orchestrator{
		cfg:      cfg,
		registry: tools.NewToolRegistry(),
		analyzer: NewAnalyzer(intentLLM),
		deps:     deps,
	}
	o.registerTools()
	return o
}

// Registry exposes the tool registry, mainly for startup-time additions.
func (o *Orchestrator) Registry() *tools.ToolRegistry { return o.registry }

func (o *Orchestrator) registerTools() {
	if o.deps.Retriever != nil {
		o.registry.RegisterTool(tools.NewSemanticSearchTool(o.deps.Retriever))
	}
	if o.deps.KeywordIndex != nil {
		o.registry.RegisterTool(tools.NewKeywordSearchTool(o.deps.KeywordIndex))
	}
	if o.deps.Chain != nil {
		o.registry.RegisterTool(tools.NewSummarizationTool(o.deps.Chain))
	}
	if o.deps.Retriever != nil && o.deps.Chain != nil {
		o.registry.RegisterTool(tools.NewComparisonTool(o.deps.Retriever, o.deps.Chain))
	}

	o.registry.RegisterTool(tools.NewCalculatorTool(o.deps.Retriever))

	if o.deps.Webhooks != nil {
		o.registry.RegisterTool(tools.NewWebSearchTool(o.deps.Webhooks, o.deps.LLM))
		o.registry.RegisterTool(tools.NewURLIngestionTool(o.deps.Webhooks))
	}

	slog.Info("Tool registry initialized", "tools", o.registry.Count())
}

// ProcessQuery runs the full pipeline for one query. The session map carries
// open-ended state (chat history, preferences) into tool contexts.
func (o *Orchestrator) ProcessQuery(ctx context.Context, query string, session map[string]any) Response {
	slog.Info("Processing query", "query", truncateQuery(query))

	tracer := observability.GetTracer("cortex.agent")
	ctx, span := tracer.Start(ctx, observability.SpanQuery)
	defer span.End()

	start := time.Now()
	response := o.processQuery(ctx, query, session)

	intent, _ := response.Metadata["intent"].(string)
	span.SetAttributes(attribute.String(observability.AttrQueryIntent, intent))
	if m := observability.GetGlobalMetrics(); m != nil {
		m.RecordQuery(ctx, intent, time.Since(start), nil)
	}
	return response
}

func (o *Orchestrator) processQuery(ctx context.Context, query string, session map[string]any) (response Response) {
	var trace []TraceEntry

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Query processing panicked", "panic", r)
			response = o.errorResponse(fmt.Sprintf("%v", r))
			response.ReasoningTrace = trace
		}
	}()

	analysis := o.analyzer.Analyze(ctx, query)

	entry := newTraceEntry(StepQueryAnalysis)
	entry.Complexity = analysis.Complexity
	entry.Intent = analysis.Intent
	entry.RequiresMultipleTools = analysis.RequiresMultipleTools
	trace = append(trace, entry)

	if analysis.Intent == IntentConversational {
		return o.handleConversational(query, trace)
	}

	ec := o.buildExecutionContext(query, analysis, session)

	selected, llmEntry := o.selectTools(ctx, query, analysis, ec)
	if llmEntry != nil {
		trace = append(trace, *llmEntry)
	}
	if len(selected) == 0 {
		response := o.fallbackResponse("No suitable tools found for this query")
		response.ReasoningTrace = trace
		return response
	}

	selection := newTraceEntry(StepToolSelection)
	selection.SelectionMethod = "hybrid"
	for _, scored := range selected {
		selection.Tools = append(selection.Tools, TracedTool{
			Name:       scored.Tool.Name(),
			Confidence: scored.Confidence,
		})
	}
	trace = append(trace, selection)

	plan := o.buildPlan(selected, analysis)

	planned := newTraceEntry(StepExecutionPlan)
	planned.Strategy = string(plan.Strategy)
	planned.ToolCount = len(plan.Tools)
	trace = append(trace, planned)

	engine := NewEngine(o.cfg.MaxWorkers)
	results := engine.Execute(ctx, plan, query, ec)
	trace = append(trace, engine.ExecutionTrace()...)

	response = o.synthesizeResponse(ctx, engine, query, results, analysis)
	response.ReasoningTrace = trace

	slog.Info("Query processed", "results", len(results), "strategy", plan.Strategy)
	return response
}

var (
	urlInQuery        = regexp.MustCompile(`https?://[^\s]+`)
	ingestionVerbs    = []string{"ingest", "add", "load", "upload", "import", "fetch", "download", "index", "process"}
	defaultConfidence = 0.8
)

// selectTools is the hybrid selection ladder: deterministic rules first,
// then registry suitability scoring, then an advisory LLM pass, and finally
// semantic search. Steps that resolve no registered tools fall through.
func (o *Orchestrator) selectTools(ctx context.Context, query string, analysis Analysis, ec *tools.ExecutionContext) ([]tools.ScoredTool, *TraceEntry) {
	lower := strings.ToLower(query)

	if urlInQuery.MatchString(query) && containsAny(lower, ingestionVerbs) {
		if selected := o.byName("url_ingestion"); len(selected) > 0 {
			slog.Info("URL ingestion query detected")
			return selected, nil
		}
	}

	if analysis.Intent == IntentComparison ||
		containsAny(lower, []string{"compare", "versus", " vs ", "difference"}) {
		if selected := o.byName("comparison", "semantic_search"); len(selected) > 0 {
			return selected, nil
		}
	}

	if analysis.Intent == IntentCalculation ||
		containsAny(lower, []string{"calculate", "compute", "%"}) {
		if selected := o.byName("calculator", "semantic_search"); len(selected) > 0 {
			return selected, nil
		}
	}

	// Retrieval first, summarization second: the summarizer reads the
	// documents the search step leaves in the context.
	if analysis.Intent == IntentSummarization ||
		containsAny(lower, []string{"summarize", "summary", "overview"}) {
		if selected := o.byName("semantic_search", "summarization"); len(selected) > 0 {
			return selected, nil
		}
	}

	if analysis.Intent == IntentExternal ||
		containsAny(lower, []string{"current", "latest", "today"}) {
		if selected := o.byName("semantic_search", "web_search"); len(selected) > 0 {
			return selected, nil
		}
	}

	if analysis.Complexity == ComplexitySimple {
		if selected := o.byName("semantic_search"); len(selected) > 0 {
			return selected, nil
		}
	}

	if analysis.Complexity == ComplexityComplex || analysis.RequiresMultipleTools {
		if selected := o.byName("semantic_search", "keyword_search"); len(selected) > 0 {
			return selected, nil
		}
	}

	if analysis.Complexity == ComplexityModerate {
		if selected := o.byName("semantic_search", "keyword_search"); len(selected) > 0 {
			return selected, nil
		}
	}

	if selected := o.registry.SuitableTools(query, ec, o.cfg.SuitabilityThreshold); len(selected) > 0 {
		return selected, nil
	}

	if o.cfg.IsLLMToolSelectionEnabled() && o.deps.LLM != nil {
		if selected, entry := o.llmSelectTools(ctx, query, analysis); len(selected) > 0 {
			return selected, entry
		}
	}

	return o.byName("semantic_search"), nil
}

func (o *Orchestrator) byName(names ...string) []tools.ScoredTool {
	return o.registry.ToolsByName(names, defaultConfidence)
}

const toolSelectionPrompt = `Given this query and available tools, select the most appropriate tools to use.

Query: "%s"

Query Analysis:
- Complexity: %s
- Intent: %s

Available Tools:
%s

Return a JSON list of tool names in order of preference. Example: ["semantic_search", "calculator"]

Selected tools (JSON only):`

// llmSelectTools asks the model to pick tools for an ambiguous query. Purely
// advisory: any failure returns nothing and the caller falls through.
func (o *Orchestrator) llmSelectTools(ctx context.Context, query string, analysis Analysis) ([]tools.ScoredTool, *TraceEntry) {
	var roster []string
	for _, tool := range o.registry.List() {
		roster = append(roster, fmt.Sprintf("- %s: %s", tool.Name(), tool.Description()))
	}

	prompt := fmt.Sprintf(toolSelectionPrompt,
		query, analysis.Complexity, analysis.Intent, strings.Join(roster, "\n"))

	response, err := o.deps.LLM.Generate(ctx, prompt, llms.GenerateOptions{
		Temperature: 0.1,
		MaxTokens:   100,
	})
	if err != nil {
		slog.Warn("LLM tool selection failed", "error", err)
		return nil, nil
	}

	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start < 0 || end <= start {
		slog.Warn("LLM tool selection returned no list", "response", truncateQuery(response))
		return nil, nil
	}

	var names []string
	if err := json.Unmarshal([]byte(response[start:end+1]), &names); err != nil {
		slog.Warn("LLM tool selection returned invalid JSON", "error", err)
		return nil, nil
	}

	selected := o.registry.ToolsByName(names, defaultConfidence)
	if len(selected) == 0 {
		return nil, nil
	}

	slog.Info("LLM selected tools", "tools", names)
	entry := newTraceEntry(StepLLMToolSelection)
	entry.SelectedTools = names
	return selected, &entry
}

// buildPlan picks the execution strategy for the selected tools.
func (o *Orchestrator) buildPlan(selected []tools.ScoredTool, analysis Analysis) Plan {
	if analysis.Complexity == ComplexityComplex &&
		(analysis.Intent == IntentComparison || analysis.Intent == IntentCalculation) {
		return Plan{Strategy: StrategySequential, Tools: selected}
	}

	// Summarization must run after retrieval has populated the context.
	hasSummarization := false
	for _, scored := range selected {
		if scored.Tool.Name() == "summarization" {
			hasSummarization = true
			break
		}
	}
	if analysis.Intent == IntentSummarization || hasSummarization {
		return Plan{Strategy: StrategySequential, Tools: selected}
	}

	if len(selected) > 1 && analysis.Intent == IntentFactual {
		return Plan{Strategy: StrategyParallel, Tools: selected}
	}

	if analysis.Intent == IntentExternal {
		conditions := map[string]Condition{}
		if len(selected) > 1 && selected[1].Tool.Name() == "web_search" {
			// Gate the web fallback on weak internal relevance only. No
			// confidence floor: negative similarity scores must pass.
			conditions["web_search"] = Condition{MaxConfidence: floatPtr(0.5)}
		}
		return Plan{Strategy: StrategyConditional, Tools: selected, Conditions: conditions}
	}

	if analysis.RequiresMultipleTools {
		conditions := map[string]Condition{}
		if len(selected) > 1 {
			conditions[selected[1].Tool.Name()] = Condition{
				MinConfidence: floatPtr(0.0),
				MaxCitations:  intPtr(3),
			}
		}
		return Plan{Strategy: StrategyConditional, Tools: selected, Conditions: conditions}
	}

	return Plan{Strategy: StrategySequential, Tools: selected}
}

func (o *Orchestrator) buildExecutionContext(query string, analysis Analysis, session map[string]any) *tools.ExecutionContext {
	ec := &tools.ExecutionContext{
		Query:      query,
		Complexity: analysis.Complexity,
		Intent:     analysis.Intent,
		Entities:   analysis.Entities,
		Keywords:   analysis.Keywords,

		Retriever:    o.deps.Retriever,
		KeywordIndex: o.deps.KeywordIndex,
		Chain:        o.deps.Chain,
		LLM:          o.deps.LLM,
		TopK:         o.cfg.TopK,
	}

	if len(session) > 0 {
		ec.Extra = make(map[string]any, len(session))
		for k, v := range session {
			ec.Extra[k] = v
		}
	}
	return ec
}

// Answer headers by contributing source mix.
const (
	headerMixedSources  = "Answer synthesized from internal documents and external sources:\n\n"
	headerWebWithWeakKB = "Answer from external sources (internal documents had low relevance):\n\n"
	headerWebOnly       = "Answer from external sources:\n\n"
)

func (o *Orchestrator) synthesizeResponse(ctx context.Context, engine *Engine, query string, results []tools.ToolResult, analysis Analysis) Response {
	var attempted, failedNames []string
	var successful, failed []tools.ToolResult

	for _, r := range results {
		name := r.ToolName()
		if name == "" {
			name = "unknown"
		}
		attempted = append(attempted, name)

		if r.Success {
			successful = append(successful, r)
		} else {
			failed = append(failed, r)
			failedNames = append(failedNames, name)
		}
	}

	if len(successful) == 0 {
		var errs []string
		for _, r := range results {
			if r.Error != "" {
				errs = append(errs, r.Error)
			}
		}
		return Response{
			Answer:   "I couldn't find an answer to your query. Errors: " + strings.Join(errs, "; "),
			Sources:  []tools.Citation{},
			Metadata: map[string]any{"all_tools_failed": true, "attempted_tools": attempted},
			Mode:     ModeAgentic,
		}
	}

	merged := engine.MergeResults(successful)

	kbConfidence := 0.0
	for _, r := range successful {
		if name := r.ToolName(); name == "semantic_search" || name == "keyword_search" {
			kbConfidence = r.Confidence(0)
			break
		}
	}
	if kbConfidence != 0 {
		merged.Metadata["kb_confidence"] = kbConfidence
	}

	answer := o.extractAnswer(ctx, merged, query)

	sources := merged.Citations
	if o.cfg.EnhanceCitations && o.deps.Enhancer != nil {
		enhanced := o.deps.Enhancer.Enhance(ctx, successful, query)
		sources = o.deps.Enhancer.FilterByConfidence(enhanced, o.cfg.MinCitationConfidence)
	}

	metadata := map[string]any{
		"tools_used":      merged.Metadata["tools_used"],
		"attempted_tools": attempted,
		"failed_tools":    failedNames,
		"result_count":    len(successful),
		"complexity":      analysis.Complexity,
		"intent":          analysis.Intent,
	}
	if kbConfidence != 0 {
		metadata["kb_confidence"] = kbConfidence
	}

	return Response{
		Answer:   answer,
		Sources:  sources,
		Metadata: metadata,
		Mode:     ModeAgentic,
	}
}

// extractAnswer pulls the final answer out of the merged result: a direct
// answer, a headed join of multiple answers, a chain-generated answer over
// the remaining documents, or a no-answer message.
func (o *Orchestrator) extractAnswer(ctx context.Context, merged tools.ToolResult, query string) string {
	if data, ok := merged.Data.(map[string]any); ok {
		if answer, ok := data["answer"].(string); ok {
			return answer
		}

		if raw, ok := data["answers"].([]any); ok {
			answers := make([]string, 0, len(raw))
			for _, a := range raw {
				answers = append(answers, fmt.Sprint(a))
			}

			toolsUsed, _ := merged.Metadata["tools_used"].([]string)
			hasKB := false
			hasWeb := false
			for _, name := range toolsUsed {
				switch name {
				case "semantic_search", "keyword_search":
					hasKB = true
				case "web_search":
					hasWeb = true
				}
			}

			joined := strings.Join(answers, "\n\n")
			switch {
			case hasKB && hasWeb:
				kbConfidence, _ := merged.Metadata["kb_confidence"].(float64)
				if kbConfidence > 0.3 {
					return headerMixedSources + joined
				}
				return headerWebWithWeakKB + joined
			case hasWeb:
				return headerWebOnly + joined
			default:
				return joined
			}
		}
	}

	hasData := merged.Data != nil
	if m, ok := merged.Data.(map[string]any); ok {
		hasData = len(m) > 0
	}

	if (hasData || len(merged.Citations) > 0) && o.deps.Chain != nil {
		docs := answerDocuments(merged)
		if len(docs) > 0 {
			answer, err := o.deps.Chain.Answer(ctx, query, docs)
			if err != nil {
				slog.Warn("Failed to generate answer from documents", "error", err)
			} else if answer != "" {
				return answer
			}
		}
	}

	if !hasData && len(merged.Citations) == 0 {
		return "No answer available."
	}
	if hasData {
		return fmt.Sprint(merged.Data)
	}
	return "No answer available."
}

// answerDocuments recovers context documents from the merged payload, or
// from citation contents when the payload has none.
func answerDocuments(merged tools.ToolResult) []rag.Document {
	switch data := merged.Data.(type) {
	case []rag.Document:
		return data
	case rag.Document:
		return []rag.Document{data}
	}

	var docs []rag.Document
	for _, c := range merged.Citations {
		if c.Content == "" {
			continue
		}
		docs = append(docs, rag.Document{Content: c.Content, Metadata: c.Metadata})
	}
	return docs
}

func (o *Orchestrator) handleConversational(query string, trace []TraceEntry) Response {
	lower := strings.ToLower(strings.TrimSpace(query))

	var answer string
	switch {
	case containsAny(lower, []string{"hi", "hello", "hey"}):
		answer = "Hello! I'm Cortex. How can I help you today? You can ask me questions about your documents."
	case containsAny(lower, []string{"thanks", "thank you"}):
		answer = "You're welcome! Feel free to ask if you need anything else."
	case containsAny(lower, []string{"bye", "goodbye"}):
		answer = "Goodbye! Come back anytime you need help with your documents."
	case containsAny(lower, []string{"ok", "okay", "got it", "understood", "sure"}):
		answer = "Great! Let me know if you have any questions."
	default:
		answer = "I'm here to help! You can ask me about your documents or tell me your preferences."
	}

	entry := newTraceEntry(StepConversationalResponse)
	entry.Reason = "greeting/acknowledgment"
	trace = append(trace, entry)

	return Response{
		Answer:         answer,
		Sources:        []tools.Citation{},
		ReasoningTrace: trace,
		Metadata:       map[string]any{"intent": IntentConversational},
		Mode:           ModeAgentic,
	}
}

func (o *Orchestrator) fallbackResponse(reason string) Response {
	return Response{
		Answer:   "I apologize, but I cannot process this query. Reason: " + reason,
		Sources:  []tools.Citation{},
		Metadata: map[string]any{"fallback": true, "reason": reason},
		Mode:     ModeAgentic,
	}
}

func (o *Orchestrator) errorResponse(message string) Response {
	return Response{
		Answer:   "An error occurred while processing your query: " + message,
		Sources:  []tools.Citation{},
		Metadata: map[string]any{"error": true, "error_message": message},
		Mode:     ModeAgentic,
	}
}
