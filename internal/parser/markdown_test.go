package parser

import (
	"strings"
	"testing"
)

func TestMarkdownParser_HeadingSections(t *testing.T) {
	input := `# Title

Intro text.

## Section A

Section A content.

### Subsection A1

Subsection A1 content.

## Section B

Section B content.
`
	p := &MarkdownParser{}
	pages, err := p.Parse(strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pages) != 4 {
		t.Fatalf("expected 4 sections, got %d", len(pages))
	}

	want := []string{
		"Title\n\nIntro text.",
		"Section A\n\nSection A content.",
		"Subsection A1\n\nSubsection A1 content.",
		"Section B\n\nSection B content.",
	}
	for i, w := range want {
		if pages[i].Text != w {
			t.Errorf("page %d: expected %q, got %q", i, w, pages[i].Text)
		}
		if pages[i].Metadata.Page != i {
			t.Errorf("page %d: expected page number %d, got %d", i, i, pages[i].Metadata.Page)
		}
		if pages[i].Metadata.Title != "Title" {
			t.Errorf("page %d: expected document title %q, got %q", i, "Title", pages[i].Metadata.Title)
		}
	}
}

func TestMarkdownParser_NoHeadings(t *testing.T) {
	input := `Just some plain text.

Another paragraph here.`

	p := &MarkdownParser{}
	pages, err := p.Parse(strings.NewReader(input), "plain.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pages) != 1 {
		t.Fatalf("expected 1 page for headingless markdown, got %d", len(pages))
	}
	text := pages[0].Text
	if !strings.Contains(text, "Just some plain text.") || !strings.Contains(text, "Another paragraph here.") {
		t.Errorf("expected both paragraphs, got %q", text)
	}
	if pages[0].Metadata.Title != "plain" {
		t.Errorf("expected title from filename, got %q", pages[0].Metadata.Title)
	}
}

func TestMarkdownParser_CodeBlocks(t *testing.T) {
	input := "# API Reference\n\nSome intro.\n\n## Endpoints\n\nList of endpoints:\n\n```\nGET /api/users\nPOST /api/users\n```\n\nMore text after code.\n"

	p := &MarkdownParser{}
	pages, err := p.Parse(strings.NewReader(input), "api.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(pages))
	}
	endpoints := pages[1].Text
	if !strings.HasPrefix(endpoints, "Endpoints") {
		t.Errorf("expected section to start with its heading, got %q", endpoints)
	}
	if !strings.Contains(endpoints, "GET /api/users") {
		t.Errorf("expected code block content in text, got %q", endpoints)
	}
	if !strings.Contains(endpoints, "More text after code.") {
		t.Errorf("expected post-code text, got %q", endpoints)
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	p := &MarkdownParser{}
	pages, err := p.Parse(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 0 {
		t.Errorf("expected 0 pages for empty input, got %d", len(pages))
	}
}

func TestMarkdownParser_TitleStripping(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"readme.md", "readme"},
		{"notes.markdown", "notes"},
		{"dir/plain.md", "plain"},
	}
	p := &MarkdownParser{}
	for _, tt := range tests {
		pages, err := p.Parse(strings.NewReader("text"), tt.filename)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", tt.filename, err)
		}
		if len(pages) != 1 {
			t.Fatalf("filename=%q: expected 1 page, got %d", tt.filename, len(pages))
		}
		if pages[0].Metadata.Title != tt.want {
			t.Errorf("filename=%q: expected title %q, got %q", tt.filename, tt.want, pages[0].Metadata.Title)
		}
	}
}
