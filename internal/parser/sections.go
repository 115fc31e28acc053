package parser

import (
	"strings"

	"github.com/dgallion1/ragest/internal/document"
)

// sections collects heading-delimited runs of text. Each section becomes
// one page, numbered in document order.
type sections struct {
	title   string // first heading seen, used as document title
	heading string
	body    strings.Builder
	texts   []string
}

func (s *sections) startSection(heading string) {
	s.flush()
	if s.title == "" {
		s.title = heading
	}
	s.heading = heading
}

func (s *sections) addText(t string) {
	t = strings.TrimSpace(t)
	if t == "" {
		return
	}
	if s.body.Len() > 0 {
		s.body.WriteString("\n\n")
	}
	s.body.WriteString(t)
}

func (s *sections) flush() {
	var text string
	switch body := s.body.String(); {
	case s.heading != "" && body != "":
		text = s.heading + "\n\n" + body
	case s.heading != "":
		text = s.heading
	default:
		text = body
	}
	if text != "" {
		s.texts = append(s.texts, text)
	}
	s.heading = ""
	s.body.Reset()
}

// pages flushes any pending text and returns the sections as pages
// sharing md, with Page set to the section ordinal.
func (s *sections) pages(md document.Metadata) []document.Page {
	s.flush()
	out := make([]document.Page, 0, len(s.texts))
	for i, t := range s.texts {
		m := md
		m.Page = i
		out = append(out, document.Page{Text: t, Metadata: m})
	}
	return out
}
