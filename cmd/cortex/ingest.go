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
	"os/signal"
	"syscall"
)

// IngestCmd parses, chunks, embeds, and indexes documents. Directories are
// walked recursively; unsupported files inside them are skipped.
type IngestCmd struct {
	Paths []string `arg:"" type:"path" help:"Files or directories to ingest."`
}

func (c *IngestCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := buildApp(ctx, cli)
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := a.ingestor.IngestPaths(ctx, c.Paths)
	for _, s := range stats {
		fmt.Printf("%s: %d chunks (%s)\n", s.Path, s.Chunks, s.Title)
	}
	if err != nil {
		return err
	}

	total := 0
	for _, s := range stats {
		total += s.Chunks
	}
	fmt.Printf("Ingested %d file(s), %d chunks. Store now holds %d chunks.\n",
		len(stats), total, a.retriever.Count())
	return nil
}
