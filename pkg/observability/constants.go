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

package observability

const (
	AttrToolName    = "tool.name"
	AttrLLMModel    = "llm.model"
	AttrQueryIntent = "query.intent"
	AttrStrategy    = "plan.strategy"
	AttrErrorType   = "error.type"

	SpanQuery         = "agent.query"
	SpanToolExecution = "agent.tool_execution"
	SpanLLMRequest    = "agent.llm_request"
	SpanEmbedding     = "agent.embedding"

	DefaultServiceName  = "cortex"
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultMetricsAddr  = ":9464"
	DefaultMetricsPath  = "/metrics"
	DefaultSamplingRate = 1.0
)
