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
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// ParseResult is extracted document content, page-structured where the
// format supports pages.
type ParseResult struct {
	Pages    []PageContent
	Title    string
	Metadata map[string]string
}

// Parser extracts text from one family of document formats.
type Parser interface {
	CanParse(path string) bool
	Parse(ctx context.Context, path string) (*ParseResult, error)
	Extensions() []string
}

// ParserRegistry dispatches files to the right parser.
type ParserRegistry struct {
	parsers []Parser
}

// NewParserRegistry builds a registry with the built-in parsers:
// PDF, DOCX, XLSX, and plain text/markdown.
func NewParserRegistry() *ParserRegistry {
	return &ParserRegistry{
		parsers: []Parser{
			&pdfParser{},
			&officeParser{},
			&textParser{},
		},
	}
}

// ParseDocument extracts content from the file at path.
func (r *ParserRegistry) ParseDocument(ctx context.Context, path string) (*ParseResult, error) {
	for _, parser := range r.parsers {
		if parser.CanParse(path) {
			return parser.Parse(ctx, path)
		}
	}
	return nil, fmt.Errorf("no parser available for %q", filepath.Ext(path))
}

// SupportedExtensions returns all file extensions the registry handles.
func (r *ParserRegistry) SupportedExtensions() []string {
	var extensions []string
	for _, parser := range r.parsers {
		extensions = append(extensions, parser.Extensions()...)
	}
	return extensions
}

// pdfParser extracts page-aware text from PDF files.
type pdfParser struct{}

func (p *pdfParser) CanParse(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

func (p *pdfParser) Extensions() []string {
	return []string{".pdf"}
}

func (p *pdfParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF file: %w", err)
	}

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF: %w", err)
	}

	var pages []PageContent
	totalPages := reader.NumPage()

	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, PageContent{Number: pageNum, Text: text})
		}
	}

	return &ParseResult{
		Pages: pages,
		Title: filepath.Base(path),
		Metadata: map[string]string{
			"type":  "PDF Document",
			"pages": fmt.Sprintf("%d", totalPages),
		},
	}, nil
}

// officeParser extracts text from Word and Excel documents.
type officeParser struct{}

func (p *officeParser) CanParse(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".docx" || ext == ".xlsx"
}

func (p *officeParser) Extensions() []string {
	return []string{".docx", ".xlsx"}
}

func (p *officeParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		return p.parseWord(path)
	case ".xlsx":
		return p.parseExcel(ctx, path)
	}
	return nil, fmt.Errorf("unsupported Office format: %s", filepath.Ext(path))
}

func (p *officeParser) parseWord(path string) (*ParseResult, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Word document: %w", err)
	}
	defer doc.Close()

	content := doc.Editable().GetContent()

	return &ParseResult{
		Pages: []PageContent{{Number: 0, Text: content}},
		Title: filepath.Base(path),
		Metadata: map[string]string{
			"type":       "Word Document",
			"paragraphs": fmt.Sprintf("%d", len(strings.Split(content, "\n\n"))),
		},
	}, nil
}

const maxCellsPerSheet = 1000

func (p *officeParser) parseExcel(ctx context.Context, path string) (*ParseResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Excel document: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	var parts []string

	for _, sheetName := range sheets {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var sheetText strings.Builder
		sheetText.WriteString(fmt.Sprintf("--- Sheet: %s ---\n", sheetName))

		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}

		cellCount := 0
		for rowIndex, row := range rows {
			if cellCount >= maxCellsPerSheet {
				sheetText.WriteString("... (truncated)\n")
				break
			}
			for colIndex, cell := range row {
				if cellCount >= maxCellsPerSheet {
					break
				}
				if text := strings.TrimSpace(cell); text != "" {
					sheetText.WriteString(fmt.Sprintf("%s%d: %s\n", columnLetter(colIndex), rowIndex+1, text))
					cellCount++
				}
			}
		}

		parts = append(parts, sheetText.String())
	}

	return &ParseResult{
		Pages: []PageContent{{Number: 0, Text: strings.Join(parts, "\n\n")}},
		Title: filepath.Base(path),
		Metadata: map[string]string{
			"type":   "Excel Spreadsheet",
			"sheets": fmt.Sprintf("%d", len(sheets)),
		},
	}, nil
}

// columnLetter converts a 0-based column index to an Excel column letter
// (A, B, ..., Z, AA, AB, ...).
func columnLetter(index int) string {
	result := ""
	for {
		result = string(rune('A'+index%26)) + result
		index = index/26 - 1
		if index < 0 {
			break
		}
	}
	return result
}

// textParser handles plain text and markdown.
type textParser struct{}

func (p *textParser) CanParse(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".txt" || ext == ".md" || ext == ".markdown"
}

func (p *textParser) Extensions() []string {
	return []string{".txt", ".md", ".markdown"}
}

func (p *textParser) Parse(_ context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return &ParseResult{
		Pages: []PageContent{{Number: 0, Text: string(data)}},
		Title: filepath.Base(path),
		Metadata: map[string]string{
			"type": "Text Document",
		},
	}, nil
}
