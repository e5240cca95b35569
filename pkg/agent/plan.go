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

// Strategy selects how the engine runs a plan's tools.
type Strategy string

const (
	// StrategySequential runs tools in order, feeding each successful
	// result into the next tool's context.
	StrategySequential Strategy = "sequential"

	// StrategyParallel fans tools out onto a bounded worker pool, each
	// with a snapshot of the initial context.
	StrategyParallel Strategy = "parallel"

	// StrategyConditional runs tools in order, gating each on its
	// Condition against prior results.
	StrategyConditional Strategy = "conditional"
)

// Condition gates a tool in a conditional plan. All set clauses must hold
// for the tool to run. MinConfidence, MaxConfidence, and MaxCitations are
// evaluated against the most recent prior result; Requires searches every
// prior result. Nil pointer fields are unset.
type Condition struct {
	// Requires names a tool that must have run successfully.
	Requires string

	// MinConfidence skips the tool when the last result's confidence is
	// below it.
	MinConfidence *float64

	// MaxConfidence skips the tool when the last result's confidence is
	// at or above it. Used to gate fallbacks behind weak primaries.
	MaxConfidence *float64

	// MaxCitations skips the tool when the last result already carries at
	// least this many citations.
	MaxCitations *int

	// ContextKey skips the tool when the execution context lacks the key.
	ContextKey string
}

// Plan pairs an ordered tool list with a strategy and, for conditional
// plans, per-tool gating conditions keyed by tool name.
type Plan struct {
	Strategy   Strategy
	Tools      []tools.ScoredTool
	Conditions map[string]Condition
}

func floatPtr(v float64) *float64 { return &v }
