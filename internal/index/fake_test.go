package index

import (
	"context"
	"errors"
	"sync"

	"github.com/dgallion1/ragest/internal/document"
)

// countingEmbedder returns a fixed vector per known text, a length-derived
// one otherwise, and counts calls.
type countingEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
	vecs  map[string][]float32
}

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vecs[text]; ok {
		return v, nil
	}
	return []float32{float32(len(text)), 1}, nil
}

func (e *countingEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

var errEmbedDown = errors.New("embedder down")

func rec(content string, vec ...float32) Record {
	return Record{
		Content:   content,
		Metadata:  document.Metadata{Page: 1, Source: "book.pdf", Title: "Book"},
		Embedding: vec,
	}
}
