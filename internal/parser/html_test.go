package parser

import (
	"strings"
	"testing"
)

func TestHTMLParser_SectionsAndMetadata(t *testing.T) {
	input := `<html><head><title>The Book</title><meta name="author" content="J. K."></head>
<body>
<nav>skip me</nav>
<p>Preface text.</p>
<h1>Chapter One</h1>
<p>The boy who lived.</p>
<script>var x = 1;</script>
<h2>Part Two</h2>
<ul><li>first</li><li>second</li></ul>
</body></html>`

	p := &HTMLParser{}
	pages, err := p.Parse(strings.NewReader(input), "book.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"Preface text.",
		"Chapter One\n\nThe boy who lived.",
		"Part Two\n\nfirst\n\nsecond",
	}
	if len(pages) != len(want) {
		t.Fatalf("expected %d pages, got %d", len(want), len(pages))
	}
	for i, w := range want {
		if pages[i].Text != w {
			t.Errorf("page %d: expected %q, got %q", i, w, pages[i].Text)
		}
		if pages[i].Metadata.Title != "The Book" {
			t.Errorf("page %d: expected title %q, got %q", i, "The Book", pages[i].Metadata.Title)
		}
		if pages[i].Metadata.Author != "J. K." {
			t.Errorf("page %d: expected author %q, got %q", i, "J. K.", pages[i].Metadata.Author)
		}
	}
}

func TestHTMLParser_TitleFallsBackToHeadingThenFilename(t *testing.T) {
	p := &HTMLParser{}

	pages, err := p.Parse(strings.NewReader("<body><h1>Heading</h1><p>x</p></body>"), "page.htm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pages[0].Metadata.Title != "Heading" {
		t.Errorf("expected heading title, got %q", pages[0].Metadata.Title)
	}

	pages, err = p.Parse(strings.NewReader("<body><p>x</p></body>"), "page.htm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pages[0].Metadata.Title != "page" {
		t.Errorf("expected filename title, got %q", pages[0].Metadata.Title)
	}
}

func TestHeadingLevel(t *testing.T) {
	tests := map[string]int{"h1": 1, "h6": 6, "h7": 0, "hr": 0, "p": 0, "h10": 0}
	for tag, want := range tests {
		if got := headingLevel(tag); got != want {
			t.Errorf("headingLevel(%q): expected %d, got %d", tag, want, got)
		}
	}
}
