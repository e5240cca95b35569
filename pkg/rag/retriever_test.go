package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/cortexkb/cortex/pkg/config"
)

// axisEmbedder maps known topic words onto distinct axes so similarity
// ordering is deterministic.
type axisEmbedder struct{}

func (axisEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	vec := []float32{0.01, 0.01, 0.01}
	if strings.Contains(lower, "revenue") {
		vec[0] = 1
	}
	if strings.Contains(lower, "kubernetes") {
		vec[1] = 1
	}
	if strings.Contains(lower, "vacation") {
		vec[2] = 1
	}
	return vec, nil
}

func (axisEmbedder) Model() string { return "axis-test" }

func newTestRetriever(t *testing.T) *ChromemRetriever {
	t.Helper()
	retriever, err := NewChromemRetriever(config.StoreConfig{Collection: "test"}, axisEmbedder{})
	if err != nil {
		t.Fatalf("NewChromemRetriever: %v", err)
	}
	return retriever
}

func TestChromemRetriever_AddAndRetrieve(t *testing.T) {
	retriever := newTestRetriever(t)
	ctx := context.Background()

	docs := []Document{
		{ID: "c1", Content: "Quarterly revenue grew by twelve percent.",
			Metadata: map[string]any{"title": "Q3 Report", "page": 4}},
		{ID: "c2", Content: "Kubernetes upgrade runbook for the platform team.",
			Metadata: map[string]any{"title": "Runbook", "page": 1}},
		{ID: "c3", Content: "Vacation policy allows twenty days per year.",
			Metadata: map[string]any{"title": "HR Handbook", "page": 9}},
	}
	if err := retriever.Add(ctx, docs); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if retriever.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", retriever.Count())
	}

	results, err := retriever.Retrieve(ctx, "what was the revenue growth", 2)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].ID != "c1" {
		t.Errorf("top result = %s, want c1", results[0].ID)
	}
	if results[0].SimilarityScore <= results[1].SimilarityScore {
		t.Errorf("results not ordered by similarity: %v >= %v",
			results[0].SimilarityScore, results[1].SimilarityScore)
	}
	if results[0].Name() != "Q3 Report" {
		t.Errorf("Name() = %q, want Q3 Report", results[0].Name())
	}
	if results[0].Page() != 4 {
		t.Errorf("Page() = %d, want 4", results[0].Page())
	}
}

func TestChromemRetriever_EmptyStore(t *testing.T) {
	retriever := newTestRetriever(t)

	results, err := retriever.Retrieve(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
}

func TestChromemRetriever_TopKClampedToCount(t *testing.T) {
	retriever := newTestRetriever(t)
	ctx := context.Background()

	if err := retriever.Add(ctx, []Document{{ID: "only", Content: "revenue numbers"}}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	results, err := retriever.Retrieve(ctx, "revenue", 10)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 1 {
		t.Errorf("len(results) = %d, want 1", len(results))
	}
}

func TestChromemRetriever_RequiresEmbedder(t *testing.T) {
	if _, err := NewChromemRetriever(config.StoreConfig{Collection: "x"}, nil); err == nil {
		t.Fatal("expected error for nil embedder")
	}
}

func TestIngestor_TextFile(t *testing.T) {
	retriever := newTestRetriever(t)
	keywords := NewKeywordIndex()
	chunker := NewSemanticChunker(nil)
	chunker.MaxChunkSize = 120
	chunker.OverlapSize = 0

	ing := NewIngestor(chunker, retriever, keywords)

	dir := t.TempDir()
	path := dir + "/notes.txt"
	content := "Quarterly revenue grew by twelve percent across cloud services. " +
		"Kubernetes upgrades were completed without downtime this quarter."
	if err := writeFile(path, content); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	stats, err := ing.IngestFile(context.Background(), path)
	if err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}
	if stats.Chunks == 0 {
		t.Fatal("no chunks ingested")
	}
	if stats.Title != "notes.txt" {
		t.Errorf("Title = %q, want notes.txt", stats.Title)
	}
	if retriever.Count() != stats.Chunks {
		t.Errorf("retriever count = %d, want %d", retriever.Count(), stats.Chunks)
	}
	if keywords.Count() != stats.Chunks {
		t.Errorf("keyword count = %d, want %d", keywords.Count(), stats.Chunks)
	}

	results := keywords.Search("kubernetes", 5)
	if len(results) == 0 {
		t.Fatal("ingested content not keyword searchable")
	}
	if results[0].Name() != "notes.txt" {
		t.Errorf("Name() = %q, want notes.txt", results[0].Name())
	}
}
