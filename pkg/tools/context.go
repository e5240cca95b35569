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
	"github.com/cortexkb/cortex/pkg/llms"
	"github.com/cortexkb/cortex/pkg/qa"
	"github.com/cortexkb/cortex/pkg/rag"
)

// ExecutionContext carries the per-query state tools read and the engine
// mutates. Typed fields cover the known keys; Extra holds session-supplied
// values. Tools treat unset fields as absent.
type ExecutionContext struct {
	Query      string
	Complexity string
	Intent     string
	Entities   []string
	Keywords   map[string][]string

	// Collaborators injected by the orchestrator.
	Retriever    rag.Retriever
	KeywordIndex *rag.KeywordIndex
	Chain        qa.Chain
	LLM          llms.Provider

	// TopK documents per retrieval. Zero means the tool default.
	TopK int

	// PreviousResult is the data payload of the most recent successful
	// tool in a sequential or conditional run.
	PreviousResult any

	// PreviousCitations are the citations of that result.
	PreviousCitations []Citation

	// SkipReason records why the engine skipped the preceding tool.
	SkipReason string

	// InternalConfidence and InternalResultsCount describe prior internal
	// search quality for the web search tool. Nil means unknown.
	InternalConfidence   *float64
	InternalResultsCount *int

	// Extra holds open-ended session state (chat history, preferences).
	Extra map[string]any
}

// Clone returns a shallow copy with its own Extra map, Entities, and
// PreviousCitations slices. Collaborator references are shared.
func (ec *ExecutionContext) Clone() *ExecutionContext {
	if ec == nil {
		return &ExecutionContext{}
	}

	clone := *ec
	if ec.Entities != nil {
		clone.Entities = append([]string(nil), ec.Entities...)
	}
	if ec.PreviousCitations != nil {
		clone.PreviousCitations = append([]Citation(nil), ec.PreviousCitations...)
	}
	if ec.Extra != nil {
		clone.Extra = make(map[string]any, len(ec.Extra))
		for k, v := range ec.Extra {
			clone.Extra[k] = v
		}
	}
	return &clone
}

// Has reports whether the named context key is present. Known keys map to
// the typed fields; anything else is looked up in Extra.
func (ec *ExecutionContext) Has(key string) bool {
	if ec == nil {
		return false
	}

	switch key {
	case "query":
		return ec.Query != ""
	case "complexity":
		return ec.Complexity != ""
	case "intent":
		return ec.Intent != ""
	case "entities":
		return len(ec.Entities) > 0
	case "keywords":
		return len(ec.Keywords) > 0
	case "retriever":
		return ec.Retriever != nil
	case "qa_chain":
		return ec.Chain != nil
	case "llm_handler":
		return ec.LLM != nil
	case "previous_result":
		return ec.PreviousResult != nil
	case "previous_citations":
		return len(ec.PreviousCitations) > 0
	case "skip_reason":
		return ec.SkipReason != ""
	case "internal_confidence":
		return ec.InternalConfidence != nil
	case "internal_results_count":
		return ec.InternalResultsCount != nil
	}

	_, ok := ec.Extra[key]
	return ok
}
