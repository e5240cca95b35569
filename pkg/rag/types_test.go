package rag

import "testing"

func TestDocument_Name(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want string
	}{
		{
			name: "title wins",
			doc: Document{ID: "c1", Metadata: map[string]any{
				"title": "Handbook", "original_filename": "hb.pdf", "display_name": "HB",
			}},
			want: "Handbook",
		},
		{
			name: "original_filename next",
			doc: Document{ID: "c1", Metadata: map[string]any{
				"original_filename": "hb.pdf", "display_name": "HB",
			}},
			want: "hb.pdf",
		},
		{
			name: "display_name next",
			doc:  Document{ID: "c1", Metadata: map[string]any{"display_name": "HB"}},
			want: "HB",
		},
		{
			name: "falls back to id",
			doc:  Document{ID: "c1"},
			want: "c1",
		},
		{
			name: "empty title skipped",
			doc:  Document{ID: "c1", Metadata: map[string]any{"title": "", "display_name": "HB"}},
			want: "HB",
		},
		{
			name: "unknown when nothing set",
			doc:  Document{},
			want: "Unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.doc.Name(); got != tt.want {
				t.Errorf("Name() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDocument_Page(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want int
	}{
		{name: "int", doc: Document{Metadata: map[string]any{"page": 3}}, want: 3},
		{name: "float64", doc: Document{Metadata: map[string]any{"page": 7.0}}, want: 7},
		{name: "string", doc: Document{Metadata: map[string]any{"page": "12"}}, want: 12},
		{name: "missing", doc: Document{}, want: 0},
		{name: "garbage string", doc: Document{Metadata: map[string]any{"page": "n/a"}}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.doc.Page(); got != tt.want {
				t.Errorf("Page() = %d, want %d", got, tt.want)
			}
		})
	}
}
