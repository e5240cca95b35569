package rag

import (
	"context"
	"strings"
	"testing"
)

// topicEmbedder returns one of two orthogonal vectors depending on which
// topic word the text mentions.
type topicEmbedder struct{}

func (topicEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if strings.Contains(strings.ToLower(text), "container") {
		return []float32{0, 1, 0}, nil
	}
	return []float32{1, 0, 0}, nil
}

func (topicEmbedder) Model() string { return "topic-test" }

func TestSemanticChunker_GroupsByTopic(t *testing.T) {
	chunker := NewSemanticChunker(topicEmbedder{})
	chunker.OverlapSize = 0

	text := "Cats are wonderful companion animals for apartments. " +
		"Cats need regular grooming and quality nutrition every day. " +
		"Container images are built from layered filesystems today. " +
		"Container orchestration handles scheduling and scaling workloads."

	chunks, err := chunker.Chunk(context.Background(), text)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2 (one per topic)", len(chunks))
	}
	if !strings.Contains(chunks[0].Content, "Cats") || strings.Contains(chunks[0].Content, "Container") {
		t.Errorf("first chunk mixed topics: %q", chunks[0].Content)
	}
	if !strings.Contains(chunks[1].Content, "Container") {
		t.Errorf("second chunk = %q, want container topic", chunks[1].Content)
	}
}

func TestSemanticChunker_PageTracking(t *testing.T) {
	chunker := NewSemanticChunker(topicEmbedder{})
	chunker.OverlapSize = 0

	pages := []PageContent{
		{Number: 1, Text: "Cats are wonderful companion animals for apartments. Cats need regular grooming and quality nutrition."},
		{Number: 2, Text: "Container images are built from layered filesystems. Container orchestration handles scheduling workloads."},
	}

	chunks, err := chunker.ChunkPages(context.Background(), pages)
	if err != nil {
		t.Fatalf("ChunkPages() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	if chunks[0].Page != 1 || chunks[1].Page != 2 {
		t.Errorf("pages = %d, %d; want 1, 2", chunks[0].Page, chunks[1].Page)
	}
}

func TestSemanticChunker_Overlap(t *testing.T) {
	chunker := NewSemanticChunker(topicEmbedder{})
	chunker.OverlapSize = 30 // 3 words of overlap

	text := "Cats are wonderful companion animals for apartments everywhere. " +
		"Container images are built from layered filesystems today."

	chunks, err := chunker.Chunk(context.Background(), text)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	if !strings.HasPrefix(chunks[1].Content, "for apartments everywhere.") {
		t.Errorf("second chunk missing overlap prefix: %q", chunks[1].Content)
	}
}

func TestSemanticChunker_FallbackWithoutEmbedder(t *testing.T) {
	chunker := NewSemanticChunker(nil)
	chunker.MaxChunkSize = 40
	chunker.OverlapSize = 0

	text := strings.Repeat("word ", 30)
	chunks, err := chunker.Chunk(context.Background(), text)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("len(chunks) = %d, want word-window split", len(chunks))
	}
	for _, chunk := range chunks {
		if len(chunk.Content) > 45 {
			t.Errorf("chunk exceeds max size: %d chars", len(chunk.Content))
		}
	}
}

func TestSemanticChunker_EmptyInput(t *testing.T) {
	chunker := NewSemanticChunker(topicEmbedder{})

	chunks, err := chunker.Chunk(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("len(chunks) = %d, want 0", len(chunks))
	}
}

func TestSplitSentences(t *testing.T) {
	text := "This is the first full sentence. Short. And here is another full sentence! Is this a question sentence?"
	sentences := splitSentences(text)

	if len(sentences) != 3 {
		t.Fatalf("len(sentences) = %d, want 3 (short fragment dropped): %v", len(sentences), sentences)
	}
	if sentences[0] != "This is the first full sentence." {
		t.Errorf("first sentence = %q", sentences[0])
	}
}
