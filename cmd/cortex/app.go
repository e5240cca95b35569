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
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cortexkb/cortex/pkg/agent"
	"github.com/cortexkb/cortex/pkg/citations"
	"github.com/cortexkb/cortex/pkg/config"
	"github.com/cortexkb/cortex/pkg/logger"
	"github.com/cortexkb/cortex/pkg/observability"
	"github.com/cortexkb/cortex/pkg/qa"
	"github.com/cortexkb/cortex/pkg/rag"
	"github.com/cortexkb/cortex/pkg/tools"
)

// app holds the wired component graph for one CLI invocation.
type app struct {
	cfg          *config.Config
	orchestrator *agent.Orchestrator
	ingestor     *rag.Ingestor
	retriever    *rag.ChromemRetriever
}

// buildApp loads config, installs logging and observability, and wires the
// pipeline. The returned cleanup flushes spans and closes the store.
func buildApp(ctx context.Context, cli *CLI) (*app, func(), error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, nil, err
	}

	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Logging.Format = cli.LogFormat
	}
	if err := initLogging(cfg.Logging); err != nil {
		return nil, nil, err
	}

	obs := observability.NewManager(cfg.Observability)
	if err := obs.Initialize(ctx); err != nil {
		return nil, nil, fmt.Errorf("observability: %w", err)
	}

	embedder, err := embeddersFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	llm, err := llmFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	retriever, err := rag.NewChromemRetriever(cfg.Store, embedder)
	if err != nil {
		return nil, nil, fmt.Errorf("vector store: %w", err)
	}
	keywords := rag.NewKeywordIndex()

	chain, err := qa.NewLLMChain(llm)
	if err != nil {
		return nil, nil, fmt.Errorf("qa chain: %w", err)
	}

	orchestrator := agent.NewOrchestrator(cfg.Agent, agent.Collaborators{
		Retriever:    retriever,
		KeywordIndex: keywords,
		Chain:        chain,
		LLM:          llm,
		Webhooks:     tools.NewWebhookClient(cfg.Webhooks),
		Enhancer:     citations.NewEnhancer(embedder),
	})

	ingestor := rag.NewIngestor(rag.NewSemanticChunker(embedder), retriever, keywords)

	cleanup := func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			slog.Warn("Observability shutdown failed", "error", err)
		}
		if err := retriever.Close(); err != nil {
			slog.Warn("Store close failed", "error", err)
		}
	}

	return &app{
		cfg:          cfg,
		orchestrator: orchestrator,
		ingestor:     ingestor,
		retriever:    retriever,
	}, cleanup, nil
}

func initLogging(cfg config.LoggingConfig) error {
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	output := os.Stderr
	if cfg.File != "" {
		file, _, err := logger.OpenLogFile(cfg.File)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		output = file
	}

	logger.Init(level, output, cfg.Format)
	return nil
}
