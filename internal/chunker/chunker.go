package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/ragest/internal/document"
)

// ErrInvalidConfig is returned when chunk size and overlap are inconsistent.
var ErrInvalidConfig = errors.New("chunker: invalid config")

// DefaultSeparators are tried in order, most preferred break point first.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Config controls chunking behavior. Sizes are in characters.
type Config struct {
	ChunkSize    int      // Maximum chunk length.
	ChunkOverlap int      // Characters shared by consecutive chunks.
	Separators   []string // Break points, most preferred first. Nil means DefaultSeparators.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    1000,
		ChunkOverlap: 100,
		Separators:   DefaultSeparators,
	}
}

// Validate checks chunk_size > chunk_overlap >= 0.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", ErrInvalidConfig, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", ErrInvalidConfig, c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// Split normalizes every page and cuts it into overlapping chunks. Chunks
// come out in page order, then left to right, and carry their page's metadata.
func Split(pages []document.Page, cfg Config) ([]document.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var chunks []document.Chunk
	for _, page := range pages {
		for _, text := range SplitText(Normalize(page.Text), cfg) {
			chunks = append(chunks, document.Chunk{
				Text:     text,
				Metadata: page.Metadata,
			})
		}
	}
	return chunks, nil
}

// Normalize collapses every run of whitespace into one space and trims.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// SplitText splits a single string. cfg is assumed valid.
func SplitText(text string, cfg Config) []string {
	seps := cfg.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	s := splitter{size: cfg.ChunkSize, overlap: cfg.ChunkOverlap}
	return s.split(text, seps)
}

type splitter struct {
	size    int
	overlap int
}

// split picks the first separator present in text, breaks on it, and
// recurses with the remaining separators into pieces that are still too long.
func (s splitter) split(text string, seps []string) []string {
	sep := seps[len(seps)-1]
	var rest []string
	for i, candidate := range seps {
		if candidate == "" {
			sep = ""
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = seps[i+1:]
			break
		}
	}

	var out []string
	var good []string
	for _, piece := range splitOn(text, sep) {
		if length(piece) <= s.size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(good, sep)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, s.hardCut(piece)...)
		} else {
			out = append(out, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		out = append(out, s.merge(good, sep)...)
	}
	return out
}

// merge packs pieces into windows of at most size characters joined by sep,
// carrying up to overlap characters of trailing pieces into the next window.
func (s splitter) merge(pieces []string, sep string) []string {
	sepLen := length(sep)
	var docs []string
	var current []string
	total := 0

	joinLen := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}

	for _, p := range pieces {
		n := length(p)
		if total+n+joinLen() > s.size && len(current) > 0 {
			if doc := join(current, sep); doc != "" {
				docs = append(docs, doc)
			}
			for total > s.overlap || (total+n+joinLen() > s.size && total > 0) {
				drop := length(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
		if len(current) > 1 {
			total += sepLen
		}
	}
	if doc := join(current, sep); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// hardCut slices text with no usable separator into fixed windows.
func (s splitter) hardCut(text string) []string {
	runes := []rune(text)
	step := s.size - s.overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := min(start+s.size, len(runes))
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

func splitOn(text, sep string) []string {
	var parts []string
	if sep == "" {
		parts = make([]string, 0, len(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
	} else {
		parts = strings.Split(text, sep)
	}
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func join(parts []string, sep string) string {
	return strings.TrimSpace(strings.Join(parts, sep))
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}
