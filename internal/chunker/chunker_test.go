package chunker

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dgallion1/ragest/internal/document"
)

func TestSplit_EndToEndExample(t *testing.T) {
	pages := []document.Page{{Text: "AA BB CC DD"}}
	cfg := Config{ChunkSize: 5, ChunkOverlap: 2, Separators: []string{" ", ""}}

	chunks, err := Split(pages, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"AA BB", "BB CC", "CC DD"}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %v", len(want), len(chunks), chunks)
	}
	for i, w := range want {
		if chunks[i].Text != w {
			t.Errorf("chunk %d: expected %q, got %q", i, w, chunks[i].Text)
		}
	}
}

func TestSplit_ChunkSizeBound(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 120) +
		strings.Repeat("x", 2500) + " tail words here"

	configs := []Config{
		{ChunkSize: 1000, ChunkOverlap: 100},
		{ChunkSize: 50, ChunkOverlap: 10},
		{ChunkSize: 7, ChunkOverlap: 3},
		{ChunkSize: 200, ChunkOverlap: 0, Separators: []string{" "}},
	}

	for _, cfg := range configs {
		chunks, err := Split([]document.Page{{Text: text}}, cfg)
		if err != nil {
			t.Fatalf("size=%d: unexpected error: %v", cfg.ChunkSize, err)
		}
		if len(chunks) < 2 {
			t.Fatalf("size=%d: expected multiple chunks, got %d", cfg.ChunkSize, len(chunks))
		}
		for i, c := range chunks {
			if n := utf8.RuneCountInString(c.Text); n > cfg.ChunkSize {
				t.Errorf("size=%d chunk %d: length %d exceeds bound", cfg.ChunkSize, i, n)
			}
			if c.Text == "" {
				t.Errorf("size=%d chunk %d: empty chunk", cfg.ChunkSize, i)
			}
		}
	}
}

func TestSplit_ChunksAreDrawnFromSource(t *testing.T) {
	raw := "Mr. and Mrs. Dursley, of number four,\n\nPrivet Drive, were proud to say\tthat they were perfectly normal, thank you very much."
	normalized := Normalize(raw)

	chunks, err := Split([]document.Page{{Text: raw}}, Config{ChunkSize: 30, ChunkOverlap: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, c := range chunks {
		if !strings.Contains(normalized, c.Text) {
			t.Errorf("chunk %d %q is not a substring of the normalized page", i, c.Text)
		}
	}
}

func TestSplit_AdjacentChunksOverlap(t *testing.T) {
	text := "one two three four five six seven eight nine ten"
	chunks, err := Split([]document.Page{{Text: text}}, Config{ChunkSize: 15, ChunkOverlap: 6})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	for i := 0; i+1 < len(chunks); i++ {
		first := strings.Fields(chunks[i+1].Text)[0]
		if !strings.HasSuffix(chunks[i].Text, first) {
			t.Errorf("chunk %d %q does not end with %q, the start of chunk %d", i, chunks[i].Text, first, i+1)
		}
	}
}

func TestSplit_NoOverlap(t *testing.T) {
	chunks, err := Split([]document.Page{{Text: "AA BB CC DD"}}, Config{ChunkSize: 5, ChunkOverlap: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"AA BB", "CC DD"}
	got := texts(chunks)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSplit_HardCutFallback(t *testing.T) {
	tests := []struct {
		name string
		seps []string
	}{
		{"no empty separator", []string{" "}},
		{"default separators", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Split([]document.Page{{Text: "abcdefghij"}}, Config{ChunkSize: 4, ChunkOverlap: 1, Separators: tt.seps})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := []string{"abcd", "defg", "ghij"}
			if got := texts(chunks); !reflect.DeepEqual(got, want) {
				t.Errorf("expected %v, got %v", want, got)
			}
		})
	}
}

func TestSplit_MetadataAndOrder(t *testing.T) {
	pages := []document.Page{
		{Text: "first page text", Metadata: document.Metadata{Page: 0, Source: "book.pdf", Title: "Book", Author: "Jo"}},
		{Text: "   \n\t ", Metadata: document.Metadata{Page: 1, Source: "book.pdf"}},
		{Text: "second page", Metadata: document.Metadata{Page: 2, Source: "book.pdf"}},
	}
	chunks, err := Split(pages, Config{ChunkSize: 100, ChunkOverlap: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks (blank page yields none), got %d", len(chunks))
	}
	if chunks[0].Metadata != pages[0].Metadata {
		t.Errorf("chunk 0: expected metadata %+v, got %+v", pages[0].Metadata, chunks[0].Metadata)
	}
	if chunks[1].Metadata.Page != 2 {
		t.Errorf("chunk 1: expected page 2, got %d", chunks[1].Metadata.Page)
	}
	if chunks[1].Metadata.Author != "" {
		t.Errorf("chunk 1: expected empty author, got %q", chunks[1].Metadata.Author)
	}
}

func TestSplit_EmptyDocument(t *testing.T) {
	chunks, err := Split(nil, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected 0 chunks, got %d", len(chunks))
	}
}

func TestSplit_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero size", Config{ChunkSize: 0}},
		{"negative overlap", Config{ChunkSize: 10, ChunkOverlap: -1}},
		{"overlap equals size", Config{ChunkSize: 10, ChunkOverlap: 10}},
		{"overlap exceeds size", Config{ChunkSize: 10, ChunkOverlap: 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Split([]document.Page{{Text: "text"}}, tt.cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestSplit_CountsCharactersNotBytes(t *testing.T) {
	chunks, err := Split([]document.Page{{Text: "ééééé"}}, Config{ChunkSize: 5, ChunkOverlap: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "ééééé" {
		t.Errorf("expected a single 5-rune chunk, got %v", texts(chunks))
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"   ", ""},
		{"a\n\nb", "a b"},
		{"  lead and trail  ", "lead and trail"},
		{"tabs\tand\r\nnewlines", "tabs and newlines"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 100 {
		t.Errorf("expected 1000/100, got %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
}

func texts(chunks []document.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
