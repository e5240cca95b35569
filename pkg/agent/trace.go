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

import "time"

// Trace step kinds, in rough pipeline order.
const (
	StepQueryAnalysis          = "query_analysis"
	StepToolSelection          = "tool_selection"
	StepLLMToolSelection       = "llm_tool_selection"
	StepExecutionPlan          = "execution_plan"
	StepSubmitTool             = "submit_tool"
	StepExecuteTool            = "execute_tool"
	StepToolSuccess            = "tool_success"
	StepToolFailure            = "tool_failure"
	StepToolError              = "tool_error"
	StepSkipTool               = "skip_tool"
	StepToolComplete           = "tool_complete"
	StepConversationalResponse = "conversational_response"
)

// TraceEntry is one record of the reasoning trace. Step discriminates which
// of the optional fields are meaningful.
type TraceEntry struct {
	Step      string    `json:"step"`
	Timestamp time.Time `json:"timestamp"`

	// Tool execution fields.
	Tool           string  `json:"tool,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
	Strategy       string  `json:"strategy,omitempty"`
	CitationsCount *int    `json:"citations_count,omitempty"`
	Error          string  `json:"error,omitempty"`
	Reason         string  `json:"reason,omitempty"`

	// Analysis and planning fields.
	Complexity            string       `json:"complexity,omitempty"`
	Intent                string       `json:"intent,omitempty"`
	RequiresMultipleTools bool         `json:"requires_multiple_tools,omitempty"`
	Tools                 []TracedTool `json:"tools,omitempty"`
	SelectedTools         []string     `json:"selected_tools,omitempty"`
	SelectionMethod       string       `json:"selection_method,omitempty"`
	ToolCount             int          `json:"tool_count,omitempty"`
}

// TracedTool names a selected tool and its selection confidence.
type TracedTool struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

func newTraceEntry(step string) TraceEntry {
	return TraceEntry{Step: step, Timestamp: time.Now()}
}

func intPtr(v int) *int { return &v }
