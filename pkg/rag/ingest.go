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

package rag

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// IngestStats summarizes one ingested file.
type IngestStats struct {
	Path   string
	Title  string
	Chunks int
}

// Ingestor runs the parse -> chunk -> embed -> index pipeline.
type Ingestor struct {
	parsers   *ParserRegistry
	chunker   Chunker
	retriever *ChromemRetriever
	keywords  *KeywordIndex
}

func NewIngestor(chunker Chunker, retriever *ChromemRetriever, keywords *KeywordIndex) *Ingestor {
	return &Ingestor{
		parsers:   NewParserRegistry(),
		chunker:   chunker,
		retriever: retriever,
		keywords:  keywords,
	}
}

// IngestFile parses, chunks, and indexes a single document.
func (ing *Ingestor) IngestFile(ctx context.Context, path string) (IngestStats, error) {
	result, err := ing.parsers.ParseDocument(ctx, path)
	if err != nil {
		return IngestStats{}, fmt.Errorf("parse %s: %w", path, err)
	}

	chunks, err := ing.chunker.ChunkPages(ctx, result.Pages)
	if err != nil {
		return IngestStats{}, fmt.Errorf("chunk %s: %w", path, err)
	}
	if len(chunks) == 0 {
		return IngestStats{Path: path, Title: result.Title}, nil
	}

	docs := make([]Document, 0, len(chunks))
	for _, chunk := range chunks {
		metadata := map[string]any{
			"title":             result.Title,
			"original_filename": filepath.Base(path),
			"page":              chunk.Page,
		}
		for k, v := range result.Metadata {
			metadata[k] = v
		}
		docs = append(docs, Document{
			ID:       uuid.NewString(),
			Content:  chunk.Content,
			Metadata: metadata,
		})
	}

	if err := ing.retriever.Add(ctx, docs); err != nil {
		return IngestStats{}, fmt.Errorf("index %s: %w", path, err)
	}
	if ing.keywords != nil {
		ing.keywords.Add(docs...)
	}

	slog.Info("Ingested document",
		"path", path,
		"title", result.Title,
		"chunks", len(docs))

	return IngestStats{Path: path, Title: result.Title, Chunks: len(docs)}, nil
}

// IngestPaths ingests files and directories (recursively). Unsupported
// files inside directories are skipped; explicitly named files error.
func (ing *Ingestor) IngestPaths(ctx context.Context, paths []string) ([]IngestStats, error) {
	supported := make(map[string]bool)
	for _, ext := range ing.parsers.SupportedExtensions() {
		supported[ext] = true
	}

	var stats []IngestStats
	for _, path := range paths {
		walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if p != path && !supported[strings.ToLower(filepath.Ext(p))] {
				return nil
			}
			s, err := ing.IngestFile(ctx, p)
			if err != nil {
				return err
			}
			stats = append(stats, s)
			return nil
		})
		if walkErr != nil {
			return stats, walkErr
		}
	}
	return stats, nil
}
