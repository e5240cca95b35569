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

package tools

import (
	"log/slog"
	"sort"

	"github.com/cortexkb/cortex/pkg/registry"
)

// ToolRegistry holds the process-lived tool set. Registration happens at
// startup; lookups during query processing are read-only.
type ToolRegistry struct {
	*registry.BaseRegistry[Tool]
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		BaseRegistry: registry.NewBaseRegistry[Tool](),
	}
}

// RegisterTool adds a tool, overwriting a previous registration under the
// same name with a warning.
func (r *ToolRegistry) RegisterTool(tool Tool) {
	if replaced := r.Put(tool.Name(), tool); replaced {
		slog.Warn("Tool already registered, overwriting", "tool", tool.Name())
	}
	slog.Debug("Registered tool", "tool", tool.Name())
}

// SuitableTools scores every registered tool against the query and returns
// those at or above minConfidence, sorted by confidence descending. Ties
// keep registration order. A panicking CanHandle scores zero.
func (r *ToolRegistry) SuitableTools(query string, ec *ExecutionContext, minConfidence float64) []ScoredTool {
	var suitable []ScoredTool

	for _, tool := range r.List() {
		confidence := scoreTool(tool, query, ec)
		if confidence >= minConfidence {
			suitable = append(suitable, ScoredTool{Tool: tool, Confidence: confidence})
		}
	}

	sort.SliceStable(suitable, func(i, j int) bool {
		return suitable[i].Confidence > suitable[j].Confidence
	})
	return suitable
}

// ToolsByName resolves names to tools in input order, assigning each the
// default confidence. Unregistered names are skipped with a warning.
func (r *ToolRegistry) ToolsByName(names []string, defaultConfidence float64) []ScoredTool {
	var resolved []ScoredTool

	for _, name := range names {
		tool, ok := r.Get(name)
		if !ok {
			slog.Warn("Tool not found in registry", "tool", name)
			continue
		}
		resolved = append(resolved, ScoredTool{Tool: tool, Confidence: defaultConfidence})
	}
	return resolved
}

func scoreTool(tool Tool, query string, ec *ExecutionContext) (confidence float64) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tool suitability check panicked", "tool", tool.Name(), "panic", r)
			confidence = 0
		}
	}()
	return tool.CanHandle(query, ec)
}
