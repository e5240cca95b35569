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

import "github.com/cortexkb/cortex/pkg/tools"

// ModeAgentic marks responses produced by the orchestrated pipeline.
const ModeAgentic = "agentic"

// Response is the orchestrator's answer to one query.
type Response struct {
	Answer         string           `json:"answer"`
	Sources        []tools.Citation `json:"sources"`
	ReasoningTrace []TraceEntry     `json:"reasoning_trace"`
	Metadata       map[string]any   `json:"metadata"`
	Mode           string           `json:"mode"`
}

// ToMap renders the response for API and CLI output. Citations go through
// Citation.ToMap so scores are rounded and raw content stays out.
func (r Response) ToMap() map[string]any {
	sources := make([]map[string]any, len(r.Sources))
	for i, c := range r.Sources {
		sources[i] = c.ToMap()
	}

	return map[string]any{
		"answer":          r.Answer,
		"sources":         sources,
		"reasoning_trace": r.ReasoningTrace,
		"metadata":        r.Metadata,
		"mode":            r.Mode,
	}
}
