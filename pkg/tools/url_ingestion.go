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

package tools

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// URLIngestionTool forwards a document URL to the automation webhook for
// fetching, parsing, and indexing into the knowledge base.
type URLIngestionTool struct {
	client *WebhookClient
}

func NewURLIngestionTool(client *WebhookClient) *URLIngestionTool {
	return &URLIngestionTool{client: client}
}

func (t *URLIngestionTool) Name() string { return "url_ingestion" }

func (t *URLIngestionTool) Description() string {
	return "Ingest PDF documents from URLs into the knowledge base when user provides a URL and asks to add/ingest/load it"
}

var (
	urlPattern = regexp.MustCompile(`(?i)https?://[^\s<>"')]+`)

	ingestionKeywords = []string{
		"ingest", "add", "load", "upload", "import", "fetch",
		"download", "get", "retrieve", "index", "process",
		"include", "incorporate", "bring in",
	}
	documentKeywords = []string{
		"document", "pdf", "file", "paper", "article",
		"report", "manual", "guide", "book",
	}
	knowledgeBaseKeywords = []string{
		"knowledge base", "database", "collection",
		"system", "library", "repository",
	}

	filenamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:as|name(?:\s+it)?|call(?:\s+it)?)\s+["']?([a-zA-Z0-9_-]+\.pdf)["']?`),
		regexp.MustCompile(`(?i)filename[:\s]+["']?([a-zA-Z0-9_-]+\.pdf)["']?`),
	}
)

func (t *URLIngestionTool) CanHandle(query string, _ *ExecutionContext) float64 {
	if !urlPattern.MatchString(query) {
		return 0.0
	}

	lower := strings.ToLower(query)

	if containsAny(lower, ingestionKeywords) {
		return 0.95
	}
	if containsAny(lower, documentKeywords) {
		return 0.85
	}
	if containsAny(lower, knowledgeBaseKeywords) {
		return 0.8
	}

	// A URL with question phrasing suggests ingestion intent.
	if strings.Contains(query, "?") ||
		strings.HasPrefix(lower, "can you") ||
		strings.HasPrefix(lower, "could you") ||
		strings.HasPrefix(lower, "please") {
		return 0.6
	}

	// URL present but intent unclear.
	return 0.3
}

func (t *URLIngestionTool) Execute(ctx context.Context, query string, _ *ExecutionContext) ToolResult {
	start := time.Now()

	url := extractURL(query)
	if url == "" {
		return failureResult(t.Name(),
			"could not find a valid URL in the request, provide a URL starting with http:// or https://", start)
	}

	filename := extractFilename(query, url)

	slog.Info("Ingesting document from URL", "url", url)

	if !t.client.Available(ctx) {
		result := failureResult(t.Name(),
			"document ingestion service is not available, ensure the automation service is running", start)
		result.Metadata["url"] = url
		return result
	}

	reply, err := t.client.IngestURL(ctx, url, filename)
	if err != nil {
		if isTimeout(err) {
			return failureResult(t.Name(),
				"document ingestion timed out, the document may be too large or the service is busy", start)
		}
		result := failureResult(t.Name(), err.Error(), start)
		result.Metadata["url"] = url
		return result
	}

	if !reply.Success {
		errMsg := reply.Error
		if errMsg == "" {
			errMsg = "unknown error during ingestion"
		}
		result := failureResult(t.Name(), fmt.Sprintf("document ingestion failed: %s", errMsg), start)
		result.Metadata["url"] = url
		return result
	}

	if reply.Filename != "" {
		filename = reply.Filename
	}
	if filename == "" {
		filename = "document.pdf"
	}

	chunks := reply.FileInfo.Chunks
	sizeKB := float64(reply.FileInfo.Size) / 1024
	answer := formatIngestionMessage(filename, url, chunks, sizeKB, reply.FileInfo.ExtractionMethod)

	slog.Info("Document ingested", "filename", filename, "chunks", chunks)

	return ToolResult{
		Success: true,
		Data: map[string]any{
			"answer":   answer,
			"filename": filename,
			"url":      url,
			"chunks":   chunks,
			"size_kb":  sizeKB,
		},
		Metadata: map[string]any{
			"tool":             t.Name(),
			"url":              url,
			"filename":         filename,
			"chunks":           chunks,
			"ingestion_source": "url",
		},
		ExecutionTime: time.Since(start),
	}
}

func extractURL(query string) string {
	match := urlPattern.FindString(query)
	return strings.TrimRight(match, ".,;!?")
}

// extractFilename looks for an explicit name in the query ("name it x.pdf"),
// falling back to the URL path.
func extractFilename(query, url string) string {
	for _, pattern := range filenamePatterns {
		if m := pattern.FindStringSubmatch(query); m != nil {
			return m[1]
		}
	}

	parts := strings.Split(url, "/")
	if len(parts) > 0 {
		candidate, _, _ := strings.Cut(parts[len(parts)-1], "?")
		if strings.HasSuffix(strings.ToLower(candidate), ".pdf") {
			return candidate
		}
	}
	return ""
}

func formatIngestionMessage(filename, url string, chunks int, sizeKB float64, extractionMethod string) string {
	if extractionMethod == "" {
		extractionMethod = "default"
	}

	return fmt.Sprintf(`Document successfully ingested.

File: %s
Source: %s
Size: %.1f KB
Chunks: %d chunks created
Extraction: %s

The document has been processed and added to the knowledge base. You can now ask questions about its contents.`,
		filename, url, sizeKB, chunks, extractionMethod)
}

var _ Tool = (*URLIngestionTool)(nil)
