package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cortexkb/cortex/pkg/config"
)

func newWebhookServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *WebhookClient) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.WebhookConfig{BaseURL: server.URL}
	cfg.SetDefaults()
	return server, NewWebhookClient(cfg)
}

func TestWebSearchTool_Execute(t *testing.T) {
	var received map[string]any
	_, client := newWebhookServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/webhook/web-search" {
			w.WriteHeader(http.StatusOK)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"title": "Tokyo Weather", "url": "https://example.com/w", "snippet": "Sunny, 28C."},
				{"title": "Forecast", "url": "https://example.com/f", "description": "Clear skies."},
			},
		})
	})

	tool := NewWebSearchTool(client, nil)
	result := tool.Execute(context.Background(), "current weather in Tokyo", nil)

	if !result.Success {
		t.Fatalf("Execute failed: %s", result.Error)
	}
	if received["query"] != "current weather in Tokyo" {
		t.Errorf("webhook query = %v", received["query"])
	}
	if received["max_results"] != 5.0 {
		t.Errorf("max_results = %v, want 5", received["max_results"])
	}

	if len(result.Citations) != 2 {
		t.Fatalf("citations = %d, want 2", len(result.Citations))
	}
	if !strings.HasSuffix(result.Citations[0].Document, "(External Source)") {
		t.Errorf("document = %q", result.Citations[0].Document)
	}
	// Second result has no snippet; the description must be used.
	if result.Citations[1].Content != "Clear skies." {
		t.Errorf("content = %q", result.Citations[1].Content)
	}
	if result.Metadata["source"] != "external_web" {
		t.Errorf("source = %v", result.Metadata["source"])
	}

	answer := result.Data.(map[string]any)["answer"].(string)
	if !strings.Contains(answer, "Tokyo Weather") {
		t.Errorf("list-format answer missing titles:\n%s", answer)
	}
}

func TestWebSearchTool_LLMSynthesis(t *testing.T) {
	_, client := newWebhookServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/webhook/web-search" {
			w.WriteHeader(http.StatusOK)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"title": "Tokyo Weather", "url": "https://example.com", "snippet": "Sunny, 28C."},
			},
		})
	})

	llm := &fakeProvider{response: "It is sunny in Tokyo at 28C."}
	tool := NewWebSearchTool(client, llm)

	result := tool.Execute(context.Background(), "weather in Tokyo", nil)

	if !result.Success {
		t.Fatalf("Execute failed: %s", result.Error)
	}
	answer := result.Data.(map[string]any)["answer"].(string)
	if !strings.HasPrefix(answer, "It is sunny in Tokyo at 28C.") {
		t.Errorf("answer = %q", answer)
	}
	if !strings.Contains(answer, "External web search") {
		t.Error("answer missing source attribution")
	}
	if llm.opts[0].Temperature != 0.3 || llm.opts[0].MaxTokens != 400 {
		t.Errorf("synthesis opts = %+v", llm.opts[0])
	}
	if !strings.Contains(llm.prompts[0], "Sunny, 28C.") {
		t.Error("synthesis prompt missing search snippets")
	}
}

func TestWebSearchTool_NoResults(t *testing.T) {
	_, client := newWebhookServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/webhook/web-search" {
			w.WriteHeader(http.StatusOK)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results":      []map[string]any{},
			"help_message": "Try a more specific query.",
		})
	})

	tool := NewWebSearchTool(client, nil)
	result := tool.Execute(context.Background(), "obscure topic", nil)

	if result.Success {
		t.Fatal("no results should surface as failure")
	}
	if result.Error != "Try a more specific query." {
		t.Errorf("error = %q, want the service help message", result.Error)
	}
	if result.Metadata["suggestion"] == nil {
		t.Error("metadata.suggestion missing")
	}
}

func TestWebSearchTool_ServiceUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // probe must fail

	cfg := config.WebhookConfig{BaseURL: server.URL}
	cfg.SetDefaults()
	tool := NewWebSearchTool(NewWebhookClient(cfg), nil)

	result := tool.Execute(context.Background(), "anything", nil)

	if result.Success {
		t.Fatal("expected failure when service is down")
	}
	if !strings.Contains(result.Error, "not available") {
		t.Errorf("error = %q", result.Error)
	}
	if result.Metadata["webhook_url"] == nil {
		t.Error("metadata.webhook_url missing")
	}
}

func TestWebSearchTool_CanHandle(t *testing.T) {
	tool := NewWebSearchTool(nil, nil)

	lowConf := 0.2
	ec := &ExecutionContext{InternalConfidence: &lowConf}
	if got := tool.CanHandle("what is the policy", ec); got != 0.8 {
		t.Errorf("low internal confidence = %v, want 0.8", got)
	}

	zero := 0
	ec = &ExecutionContext{InternalResultsCount: &zero}
	if got := tool.CanHandle("anything", ec); got != 0.85 {
		t.Errorf("no internal results = %v, want 0.85", got)
	}

	if got := tool.CanHandle("what is the latest news", nil); got != 0.75 {
		t.Errorf("external keywords = %v, want 0.75", got)
	}
	if got := tool.CanHandle("weather in Tokyo", nil); got != 0.7 {
		t.Errorf("external entity = %v, want 0.7", got)
	}
	if got := tool.CanHandle("internal handbook question", nil); got != 0.3 {
		t.Errorf("default = %v, want 0.3", got)
	}
}

func TestURLIngestionTool_CanHandle(t *testing.T) {
	tool := NewURLIngestionTool(nil)

	tests := []struct {
		query string
		want  float64
	}{
		{"please ingest https://example.com/paper.pdf", 0.95},
		{"https://example.com/x.pdf is a report", 0.85},
		{"put https://example.com/x into the knowledge base", 0.8},
		{"can you look at https://example.com/page", 0.6},
		{"https://example.com/page", 0.3},
		{"ingest the quarterly report", 0.0},
	}

	for _, tt := range tests {
		if got := tool.CanHandle(tt.query, nil); got != tt.want {
			t.Errorf("CanHandle(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestURLIngestionTool_Execute(t *testing.T) {
	var received map[string]any
	_, client := newWebhookServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/webhook/ingest-url" {
			w.WriteHeader(http.StatusOK)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":  true,
			"filename": "paper.pdf",
			"file_info": map[string]any{
				"chunks":            12,
				"size":              204800,
				"extraction_method": "native",
			},
		})
	})

	tool := NewURLIngestionTool(client)
	result := tool.Execute(context.Background(),
		"please ingest https://example.com/paper.pdf into the kb", nil)

	if !result.Success {
		t.Fatalf("Execute failed: %s", result.Error)
	}
	if received["url"] != "https://example.com/paper.pdf" {
		t.Errorf("webhook url = %v", received["url"])
	}

	data := result.Data.(map[string]any)
	if data["chunks"] != 12 {
		t.Errorf("chunks = %v, want 12", data["chunks"])
	}
	if data["size_kb"] != 200.0 {
		t.Errorf("size_kb = %v, want 200", data["size_kb"])
	}
	answer := data["answer"].(string)
	if !strings.Contains(answer, "paper.pdf") || !strings.Contains(answer, "12 chunks") {
		t.Errorf("answer = %q", answer)
	}
	if result.Metadata["ingestion_source"] != "url" {
		t.Errorf("ingestion_source = %v", result.Metadata["ingestion_source"])
	}
}

func TestURLIngestionTool_ServiceError(t *testing.T) {
	_, client := newWebhookServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/webhook/ingest-url" {
			w.WriteHeader(http.StatusOK)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "unsupported content type",
		})
	})

	tool := NewURLIngestionTool(client)
	result := tool.Execute(context.Background(), "add https://example.com/x.pdf", nil)

	if result.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.Error, "unsupported content type") {
		t.Errorf("error = %q", result.Error)
	}
}

func TestExtractURL(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"ingest https://example.com/a.pdf please", "https://example.com/a.pdf"},
		{"see http://example.com/doc.", "http://example.com/doc"},
		{"no url here", ""},
	}

	for _, tt := range tests {
		if got := extractURL(tt.query); got != tt.want {
			t.Errorf("extractURL(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestExtractFilename(t *testing.T) {
	if got := extractFilename("save it as report-2024.pdf", "https://x.com/y"); got != "report-2024.pdf" {
		t.Errorf("explicit filename = %q", got)
	}
	if got := extractFilename("ingest this", "https://x.com/paper.pdf?v=2"); got != "paper.pdf" {
		t.Errorf("url filename = %q", got)
	}
	if got := extractFilename("ingest this", "https://x.com/page"); got != "" {
		t.Errorf("no filename = %q", got)
	}
}
