package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/ragest/internal/document"
)

// ErrNotFound is returned by Loader when the document reference does not exist.
var ErrNotFound = errors.New("document not found")

// Parser converts raw document bytes into an ordered sequence of pages.
type Parser interface {
	Parse(r io.Reader, filename string) ([]document.Page, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %q", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Loader reads documents from the local filesystem.
type Loader struct {
	FallbackPdftotext bool
}

// Load opens ref, parses it by extension and stamps every page with
// ref as its source.
func (l *Loader) Load(ctx context.Context, ref string) ([]document.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := ForFile(ref)
	if err != nil {
		return nil, err
	}
	if pdf, ok := p.(*PDFParser); ok {
		pdf.FallbackPdftotext = l.FallbackPdftotext
	}

	f, err := os.Open(ref)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	pages, err := p.Parse(f, filepath.Base(ref))
	if err != nil {
		return nil, err
	}
	for i := range pages {
		pages[i].Metadata.Source = ref
	}
	return pages, nil
}

// stem strips the directory and extension from a filename.
func stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
