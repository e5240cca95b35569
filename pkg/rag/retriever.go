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
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/cortexkb/cortex/pkg/config"
	"github.com/cortexkb/cortex/pkg/embedders"
)

// ChromemRetriever is a Retriever over an embedded chromem-go vector store.
// Vectors are computed by the configured embedder and stored pre-computed;
// optional file persistence keeps the store across restarts.
//
// Single-process and memory-bound. Fine for a local knowledge base.
type ChromemRetriever struct {
	db         *chromem.DB
	collection string
	embedder   embedders.Embedder

	persistPath string
	compress    bool

	mu  sync.RWMutex
	col *chromem.Collection
}

// NewChromemRetriever opens (or creates) the vector store.
func NewChromemRetriever(cfg config.StoreConfig, embedder embedders.Embedder) (*ChromemRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	var db *chromem.DB

	if cfg.PersistPath != "" {
		if err := os.MkdirAll(cfg.PersistPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create persist directory: %w", err)
		}

		dbPath := vectorFilePath(cfg.PersistPath, cfg.Compress)
		if _, statErr := os.Stat(dbPath); statErr == nil {
			loaded, err := chromem.NewPersistentDB(dbPath, cfg.Compress)
			if err != nil {
				slog.Warn("Failed to load existing vector database, creating new",
					"path", dbPath,
					"error", err)
				db = chromem.NewDB()
			} else {
				slog.Info("Loaded vector database from file", "path", dbPath)
				db = loaded
			}
		} else {
			db = chromem.NewDB()
			slog.Info("Created new vector database", "path", dbPath)
		}
	} else {
		db = chromem.NewDB()
		slog.Info("Created in-memory vector database (no persistence)")
	}

	return &ChromemRetriever{
		db:          db,
		collection:  cfg.Collection,
		embedder:    embedder,
		persistPath: cfg.PersistPath,
		compress:    cfg.Compress,
	}, nil
}

func vectorFilePath(dir string, compress bool) string {
	path := dir + "/vectors.gob"
	if compress {
		path += ".gz"
	}
	return path
}

func (r *ChromemRetriever) getCollection() (*chromem.Collection, error) {
	r.mu.RLock()
	if r.col != nil {
		defer r.mu.RUnlock()
		return r.col, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.col != nil {
		return r.col, nil
	}

	// Vectors are pre-computed; chromem's embedding func must never run.
	identityEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("embedding function called but vectors should be pre-computed")
	}

	col, err := r.db.GetOrCreateCollection(r.collection, nil, identityEmbed)
	if err != nil {
		return nil, fmt.Errorf("failed to get/create collection %q: %w", r.collection, err)
	}
	r.col = col
	return col, nil
}

// Add embeds and upserts documents into the store.
func (r *ChromemRetriever) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	col, err := r.getCollection()
	if err != nil {
		return err
	}

	chromemDocs := make([]chromem.Document, 0, len(docs))
	for _, doc := range docs {
		vector, err := r.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return fmt.Errorf("failed to embed document %q: %w", doc.ID, err)
		}

		metadata := make(map[string]string, len(doc.Metadata))
		for k, v := range doc.Metadata {
			metadata[k] = fmt.Sprint(v)
		}

		chromemDocs = append(chromemDocs, chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  metadata,
			Embedding: vector,
		})
	}

	if err := col.AddDocuments(ctx, chromemDocs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to upsert documents: %w", err)
	}

	if err := r.persist(); err != nil {
		slog.Warn("Failed to persist after add", "error", err)
	}

	return nil
}

// Retrieve embeds the query and returns the topK most similar chunks,
// ordered by similarity.
func (r *ChromemRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	return r.SemanticSearch(ctx, query, topK)
}

// SemanticSearch runs a similarity search for a raw text fragment.
func (r *ChromemRetriever) SemanticSearch(ctx context.Context, text string, topK int) ([]Document, error) {
	col, err := r.getCollection()
	if err != nil {
		return nil, err
	}

	if count := col.Count(); count == 0 {
		return nil, nil
	} else if topK > count {
		topK = count
	}

	vector, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := col.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	docs := make([]Document, 0, len(results))
	for _, result := range results {
		metadata := make(map[string]any, len(result.Metadata))
		for k, v := range result.Metadata {
			metadata[k] = v
		}
		docs = append(docs, Document{
			ID:              result.ID,
			Content:         result.Content,
			Metadata:        metadata,
			SimilarityScore: float64(result.Similarity),
		})
	}

	return docs, nil
}

// Count returns the number of stored chunks.
func (r *ChromemRetriever) Count() int {
	col, err := r.getCollection()
	if err != nil {
		return 0
	}
	return col.Count()
}

// Close persists the store if persistence is enabled.
func (r *ChromemRetriever) Close() error {
	return r.persist()
}

func (r *ChromemRetriever) persist() error {
	if r.persistPath == "" {
		return nil
	}

	dbPath := vectorFilePath(r.persistPath, r.compress)

	//nolint:staticcheck // Using deprecated function for compatibility
	if err := r.db.Export(dbPath, r.compress, ""); err != nil {
		return fmt.Errorf("failed to persist database: %w", err)
	}
	return nil
}

var _ Retriever = (*ChromemRetriever)(nil)
