package tools

import (
	"context"
	"reflect"
	"testing"
)

func TestExtractComparisonEntities(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"Compare Policy A and Policy B", []string{"Policy A", "Policy B"}},
		{"Kubernetes versus Nomad", []string{"Kubernetes", "Nomad"}},
		{"docker vs podman", []string{"docker", "podman"}},
		{"What is the difference between Plan X and Plan Y", []string{"Plan X", "Plan Y"}},
		{"Alpha Report and Beta Report", []string{"Alpha Report", "Beta Report"}},
		{"tell me about the vacation policy", nil},
	}

	for _, tt := range tests {
		got := extractComparisonEntities(tt.query)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("extractComparisonEntities(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestComparisonTool_CanHandle(t *testing.T) {
	tool := NewComparisonTool(nil, nil)

	if got := tool.CanHandle("Compare Policy A and Policy B", nil); got != 0.95 {
		t.Errorf("compare query = %v, want 0.95", got)
	}
	if got := tool.CanHandle("how do the plans differ", nil); got != 0.75 {
		t.Errorf("differ query = %v, want 0.75", got)
	}
	if got := tool.CanHandle("the report and the handbook", nil); got != 0.6 {
		t.Errorf("and query = %v, want 0.6", got)
	}
	if got := tool.CanHandle("what is the policy", nil); got != 0.2 {
		t.Errorf("plain query = %v, want 0.2", got)
	}
}

func TestComparisonTool_Execute(t *testing.T) {
	retriever := &fakeRetriever{docs: sampleDocs(2)}
	chain := &fakeChain{compare: "A differs from B."}
	tool := NewComparisonTool(retriever, chain)

	result := tool.Execute(context.Background(), "Compare Policy A and Policy B", nil)

	if !result.Success {
		t.Fatalf("Execute failed: %s", result.Error)
	}

	data := result.Data.(map[string]any)
	if data["answer"] != "A differs from B." {
		t.Errorf("answer = %v", data["answer"])
	}
	wantEntities := []string{"Policy A", "Policy B"}
	if !reflect.DeepEqual(data["entities"], wantEntities) {
		t.Errorf("entities = %v, want %v", data["entities"], wantEntities)
	}
	if !reflect.DeepEqual(chain.compareEntities, wantEntities) {
		t.Errorf("chain received entities %v", chain.compareEntities)
	}

	// Per-entity retrieval, one search for each side.
	if len(retriever.semanticCalls) != 2 {
		t.Errorf("semantic searches = %d, want 2", len(retriever.semanticCalls))
	}
	if len(result.Citations) == 0 {
		t.Error("comparison result carries no citations")
	}
}

func TestComparisonTool_NoEntitiesFallsBackToQuerySearch(t *testing.T) {
	retriever := &fakeRetriever{docs: sampleDocs(2)}
	chain := &fakeChain{answer: "They are similar."}
	tool := NewComparisonTool(retriever, chain)

	result := tool.Execute(context.Background(), "how do they contrast", nil)

	if !result.Success {
		t.Fatalf("Execute failed: %s", result.Error)
	}
	if len(retriever.retrieveCalls) != 1 {
		t.Errorf("retrieve calls = %d, want 1", len(retriever.retrieveCalls))
	}
}

func TestComparisonTool_MissingCollaborators(t *testing.T) {
	tool := NewComparisonTool(nil, nil)

	result := tool.Execute(context.Background(), "Compare A and B", &ExecutionContext{})
	if result.Success {
		t.Fatal("expected failure without retriever")
	}

	result = tool.Execute(context.Background(), "Compare A and B",
		&ExecutionContext{Retriever: &fakeRetriever{}})
	if result.Success || result.Error != "qa chain required for comparison" {
		t.Errorf("error = %q", result.Error)
	}
}
