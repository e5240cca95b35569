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

package main

import (
	"fmt"

	"github.com/cortexkb/cortex/pkg/config"
	"github.com/cortexkb/cortex/pkg/embedders"
	"github.com/cortexkb/cortex/pkg/llms"
)

func llmFromConfig(cfg *config.Config) (llms.Provider, error) {
	switch cfg.LLM.Provider {
	case "", "ollama":
		return llms.NewOllamaProvider(cfg.LLM)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
	}
}

func embeddersFromConfig(cfg *config.Config) (embedders.Embedder, error) {
	switch cfg.Embedder.Provider {
	case "", "ollama":
		return embedders.NewOllamaEmbedder(cfg.Embedder)
	default:
		return nil, fmt.Errorf("unsupported embedder provider: %s", cfg.Embedder.Provider)
	}
}
