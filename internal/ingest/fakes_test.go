package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/dgallion1/ragest/internal/document"
	"github.com/dgallion1/ragest/internal/embed"
	"github.com/dgallion1/ragest/internal/index"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeModel fails on call number failOn (1-based) when set.
type fakeModel struct {
	mu     sync.Mutex
	calls  int
	failOn int
	texts  []string
}

var errModelDown = errors.New("model unavailable")

func (m *fakeModel) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failOn > 0 && m.calls == m.failOn {
		return nil, errModelDown
	}
	m.texts = append(m.texts, text)
	return []float32{float32(len(text)), 1}, nil
}

func (m *fakeModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// fakeIndex returns an exact content match as the nearest record, otherwise
// the first record, and never embeds.
type fakeIndex struct {
	records    []index.Record
	nearestErr error
	addErr     error
	persistErr error
	persists   int
	locks      int
	unlocks    int
	closed     bool
}

func (f *fakeIndex) Nearest(_ context.Context, text string, k int) ([]index.Record, error) {
	if f.nearestErr != nil {
		return nil, f.nearestErr
	}
	for _, r := range f.records {
		if r.Content == text {
			return []index.Record{r}, nil
		}
	}
	if len(f.records) > 0 && k > 0 {
		return f.records[:1], nil
	}
	return nil, nil
}

func (f *fakeIndex) Add(_ context.Context, rec index.Record) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeIndex) RetrieveTopK(_ context.Context, _ string, k int) ([]index.Record, error) {
	return f.records[:min(k, len(f.records))], nil
}

func (f *fakeIndex) Persist(context.Context) error {
	f.persists++
	return f.persistErr
}

func (f *fakeIndex) Count(context.Context) (int, error) { return len(f.records), nil }

func (f *fakeIndex) Close() error {
	f.closed = true
	return nil
}

// lockingIndex adds index.Locker to fakeIndex.
type lockingIndex struct {
	*fakeIndex
	lockErr error
}

func (l *lockingIndex) Lock(context.Context) (func(), error) {
	if l.lockErr != nil {
		return nil, l.lockErr
	}
	l.locks++
	return func() { l.unlocks++ }, nil
}

type fakeOpener struct {
	store index.Store
	err   error
	opens int
	query embed.Embedder
}

func (o *fakeOpener) Open(_ context.Context, query embed.Embedder) (index.Store, error) {
	o.opens++
	o.query = query
	if o.err != nil {
		return nil, o.err
	}
	return o.store, nil
}

// persistCountingOpener opens a real store and counts Persist calls on it.
type persistCountingOpener struct {
	inner    Opener
	persists int
}

func (o *persistCountingOpener) Open(ctx context.Context, query embed.Embedder) (index.Store, error) {
	store, err := o.inner.Open(ctx, query)
	if err != nil {
		return nil, err
	}
	return &persistCountingStore{Store: store, count: &o.persists}, nil
}

type persistCountingStore struct {
	index.Store
	count *int
}

func (s *persistCountingStore) Persist(ctx context.Context) error {
	*s.count++
	return s.Store.Persist(ctx)
}

type fakeLoader struct {
	pages []document.Page
	err   error
}

func (l *fakeLoader) Load(context.Context, string) ([]document.Page, error) {
	return l.pages, l.err
}

func pagesOf(texts ...string) []document.Page {
	pages := make([]document.Page, len(texts))
	for i, t := range texts {
		pages[i] = document.Page{Text: t, Metadata: document.Metadata{Page: i, Source: "book.pdf"}}
	}
	return pages
}

func chunksOf(texts ...string) []document.Chunk {
	chunks := make([]document.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = document.Chunk{Text: t, Metadata: document.Metadata{Page: i, Source: "book.pdf"}}
	}
	return chunks
}
