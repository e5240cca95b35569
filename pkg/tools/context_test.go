package tools

import "testing"

func TestExecutionContext_Has(t *testing.T) {
	conf := 0.4
	ec := &ExecutionContext{
		Query:              "what is the policy",
		Intent:             "factual",
		PreviousResult:     map[string]any{"answer": "x"},
		InternalConfidence: &conf,
		Extra:              map[string]any{"session_id": "abc"},
	}

	tests := []struct {
		key  string
		want bool
	}{
		{"query", true},
		{"intent", true},
		{"complexity", false},
		{"previous_result", true},
		{"previous_citations", false},
		{"internal_confidence", true},
		{"internal_results_count", false},
		{"retriever", false},
		{"session_id", true},
		{"unknown", false},
	}

	for _, tt := range tests {
		if got := ec.Has(tt.key); got != tt.want {
			t.Errorf("Has(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestExecutionContext_HasNil(t *testing.T) {
	var ec *ExecutionContext
	if ec.Has("query") {
		t.Error("nil context should have no keys")
	}
}

func TestExecutionContext_CloneIsolatesMutableState(t *testing.T) {
	ec := &ExecutionContext{
		Query:             "q",
		Entities:          []string{"Policy A"},
		PreviousCitations: []Citation{{Document: "doc"}},
		Extra:             map[string]any{"k": "v"},
	}

	clone := ec.Clone()
	clone.Entities[0] = "changed"
	clone.PreviousCitations[0].Document = "changed"
	clone.Extra["k"] = "changed"

	if ec.Entities[0] != "Policy A" {
		t.Error("clone shares entities slice")
	}
	if ec.PreviousCitations[0].Document != "doc" {
		t.Error("clone shares citations slice")
	}
	if ec.Extra["k"] != "v" {
		t.Error("clone shares extra map")
	}
}

func TestCitation_ToMap(t *testing.T) {
	c := Citation{
		Document:        "Handbook",
		PageNumber:      3,
		Excerpt:         "vacation days",
		ConfidenceScore: 0.87654,
		SimilarityScore: 0.91239,
		RankPosition:    1,
		Content:         "full chunk text that must not leak",
	}

	m := c.ToMap()

	if m["confidence_score"] != 0.877 {
		t.Errorf("confidence_score = %v, want 0.877", m["confidence_score"])
	}
	if m["similarity_score"] != 0.912 {
		t.Errorf("similarity_score = %v, want 0.912", m["similarity_score"])
	}
	if _, ok := m["content"]; ok {
		t.Error("content must be omitted from serialized citations")
	}
}

func TestToolResult_Confidence(t *testing.T) {
	withConf := ToolResult{Metadata: map[string]any{"confidence": 0.42}}
	if got := withConf.Confidence(1.0); got != 0.42 {
		t.Errorf("Confidence = %v, want 0.42", got)
	}

	missing := ToolResult{Metadata: map[string]any{"tool": "x"}}
	if got := missing.Confidence(1.0); got != 1.0 {
		t.Errorf("Confidence default = %v, want 1.0", got)
	}

	nonNumeric := ToolResult{Metadata: map[string]any{"confidence": "medium"}}
	if got := nonNumeric.Confidence(0.5); got != 0.5 {
		t.Errorf("Confidence non-numeric = %v, want 0.5", got)
	}
}
