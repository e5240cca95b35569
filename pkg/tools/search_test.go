package tools

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/cortexkb/cortex/pkg/rag"
)

func TestSemanticSearchTool_CanHandle(t *testing.T) {
	tool := NewSemanticSearchTool(nil)

	tests := []struct {
		query string
		want  float64
	}{
		{"What are the benefits of remote work?", 0.9},
		{"explain the deployment process", 0.9},
		{"how to configure the cluster", 0.7},
		{"vacation policy", 0.6},
	}

	for _, tt := range tests {
		if got := tool.CanHandle(tt.query, nil); got != tt.want {
			t.Errorf("CanHandle(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestSemanticSearchTool_Execute(t *testing.T) {
	retriever := &fakeRetriever{docs: sampleDocs(3)}
	tool := NewSemanticSearchTool(retriever)

	result := tool.Execute(context.Background(), "what is the policy", nil)

	if !result.Success {
		t.Fatalf("Execute failed: %s", result.Error)
	}
	if len(result.Citations) != 3 {
		t.Fatalf("citations = %d, want 3", len(result.Citations))
	}
	if result.Citations[0].RankPosition != 1 || result.Citations[2].RankPosition != 3 {
		t.Error("citations not ranked in retrieval order")
	}
	if result.Metadata["method"] != "semantic" {
		t.Errorf("method = %v", result.Metadata["method"])
	}

	// Mean of top three similarity scores: (0.9 + 0.8 + 0.7) / 3.
	confidence := result.Metadata["confidence"].(float64)
	if math.Abs(confidence-0.8) > 1e-9 {
		t.Errorf("confidence = %v, want 0.8", confidence)
	}
}

func TestSemanticSearchTool_ConfidencePrefersCrossEncoder(t *testing.T) {
	docs := sampleDocs(3)
	docs[0].CrossEncoderScore = 0.6
	docs[1].CrossEncoderScore = 0.4
	tool := NewSemanticSearchTool(&fakeRetriever{docs: docs})

	result := tool.Execute(context.Background(), "query", nil)

	confidence := result.Metadata["confidence"].(float64)
	if math.Abs(confidence-0.5) > 1e-9 {
		t.Errorf("confidence = %v, want 0.5 (mean of cross-encoder scores)", confidence)
	}
}

func TestSemanticSearchTool_EmptyResults(t *testing.T) {
	tool := NewSemanticSearchTool(&fakeRetriever{})

	result := tool.Execute(context.Background(), "anything", nil)

	if !result.Success {
		t.Fatal("empty retrieval is not an error")
	}
	if len(result.Citations) != 0 {
		t.Error("expected no citations")
	}
	if result.Metadata["message"] != "No documents found" {
		t.Errorf("message = %v", result.Metadata["message"])
	}
}

func TestSemanticSearchTool_Errors(t *testing.T) {
	tool := NewSemanticSearchTool(nil)
	result := tool.Execute(context.Background(), "q", nil)
	if result.Success || result.Error != "retriever not available" {
		t.Errorf("error = %q", result.Error)
	}

	tool = NewSemanticSearchTool(&fakeRetriever{err: errors.New("store offline")})
	result = tool.Execute(context.Background(), "q", nil)
	if result.Success || result.Error != "store offline" {
		t.Errorf("error = %q", result.Error)
	}
	if result.Metadata["tool"] != "semantic_search" {
		t.Error("failure must record tool name")
	}
}

func TestSemanticSearchTool_RetrieverFromContext(t *testing.T) {
	tool := NewSemanticSearchTool(nil)
	ec := &ExecutionContext{Retriever: &fakeRetriever{docs: sampleDocs(1)}, TopK: 1}

	result := tool.Execute(context.Background(), "q", ec)

	if !result.Success {
		t.Fatalf("Execute failed: %s", result.Error)
	}
	if len(result.Citations) != 1 {
		t.Errorf("citations = %d, want 1", len(result.Citations))
	}
}

func TestKeywordSearchTool_CanHandle(t *testing.T) {
	tool := NewKeywordSearchTool(nil)

	tests := []struct {
		query string
		want  float64
	}{
		{`find the "remote work" section`, 0.95},
		{"find all mentions of kubernetes", 0.9},
		{"when did Alice join the team", 0.85},
		{"reports from 2024", 0.8},
		{"the section named overview", 0.75},
		{"general question about things", 0.5},
	}

	for _, tt := range tests {
		if got := tool.CanHandle(tt.query, nil); got != tt.want {
			t.Errorf("CanHandle(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestKeywordSearchTool_Execute(t *testing.T) {
	index := rag.NewKeywordIndex()
	index.Add(rag.Document{
		ID:       "c1",
		Content:  "Kubernetes upgrade runbook for the platform team.",
		Metadata: map[string]any{"title": "Runbook"},
	})
	tool := NewKeywordSearchTool(index)

	result := tool.Execute(context.Background(), "kubernetes runbook", nil)

	if !result.Success {
		t.Fatalf("Execute failed: %s", result.Error)
	}
	if len(result.Citations) != 1 {
		t.Fatalf("citations = %d, want 1", len(result.Citations))
	}
	if result.Citations[0].Document != "Runbook" {
		t.Errorf("document = %q", result.Citations[0].Document)
	}
	if result.Metadata["method"] != "keyword" {
		t.Errorf("method = %v", result.Metadata["method"])
	}
	// Keyword results intentionally report no confidence; downstream
	// predicates use their own defaults.
	if _, ok := result.Metadata["confidence"]; ok {
		t.Error("keyword search must not report confidence")
	}
}

func TestKeywordSearchTool_IndexUnavailable(t *testing.T) {
	tool := NewKeywordSearchTool(nil)

	result := tool.Execute(context.Background(), "q", nil)

	if result.Success || result.Error != "keyword search index not available" {
		t.Errorf("error = %q", result.Error)
	}
}

func TestKeywordSearchTool_NoMatches(t *testing.T) {
	tool := NewKeywordSearchTool(rag.NewKeywordIndex())

	result := tool.Execute(context.Background(), "zebra", nil)

	if !result.Success {
		t.Fatal("no matches is not an error")
	}
	if result.Metadata["message"] != "No matching keywords found" {
		t.Errorf("message = %v", result.Metadata["message"])
	}
}
