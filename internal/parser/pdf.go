package parser

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/ragest/internal/document"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files, one page per PDF page. It tries the Go
// library first, then falls back to pdftotext if enabled.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) ([]document.Page, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "ragest-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	md := document.Metadata{Title: stem(filename)}
	texts, info, err := extractPDFPages(tmpPath)
	if err != nil && p.FallbackPdftotext {
		var out string
		out, err = extractPdftotext(tmpPath)
		texts = strings.Split(strings.TrimSuffix(out, "\f"), "\f")
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}
	if info.title != "" {
		md.Title = info.title
	}
	md.Author = info.author

	pages := make([]document.Page, 0, len(texts))
	for i, text := range texts {
		m := md
		m.Page = i
		pages = append(pages, document.Page{Text: text, Metadata: m})
	}
	return pages, nil
}

type pdfInfo struct {
	title  string
	author string
}

// extractPDFPages returns the plain text of every page, 0-indexed. Pages
// whose content cannot be decoded come back empty so numbering stays aligned.
func extractPDFPages(path string) (pages []string, info pdfInfo, err error) {
	// The library panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("corrupt pdf: %v", rec)
		}
	}()

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, pdfInfo{}, err
	}
	defer f.Close()

	if infoDict := reader.Trailer().Key("Info"); !infoDict.IsNull() {
		info.title = strings.TrimSpace(infoDict.Key("Title").Text())
		info.author = strings.TrimSpace(infoDict.Key("Author").Text())
	}

	numPages := reader.NumPage()
	pages = make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, info, nil
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}
