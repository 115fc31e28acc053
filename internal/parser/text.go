package parser

import (
	"io"
	"strings"

	"github.com/dgallion1/ragest/internal/document"
)

// TextParser handles plain text files. Form feeds separate pages.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) ([]document.Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}

	md := document.Metadata{Title: stem(filename)}
	var pages []document.Page
	for i, text := range strings.Split(string(data), "\f") {
		m := md
		m.Page = i
		pages = append(pages, document.Page{Text: text, Metadata: m})
	}
	return pages, nil
}
