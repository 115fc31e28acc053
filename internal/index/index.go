// Package index holds the vector index stores. Every store supports
// exact-content lookup, nearest-neighbour search and explicit persistence.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dgallion1/ragest/internal/document"
	"github.com/dgallion1/ragest/internal/embed"
	"github.com/google/uuid"
)

var (
	// ErrUnknownBackend is returned by Open for an unrecognized backend name.
	ErrUnknownBackend = errors.New("unknown index backend")
	// ErrEmptyEmbedding is returned by Add for a record with no vector.
	ErrEmptyEmbedding = errors.New("record has no embedding")
)

// QueryEmbedError reports that the query text could not be embedded.
// The store itself was reachable.
type QueryEmbedError struct {
	Err error
}

func (e *QueryEmbedError) Error() string {
	return fmt.Sprintf("embed query: %v", e.Err)
}

func (e *QueryEmbedError) Unwrap() error { return e.Err }

// Backend names accepted by Open.
const (
	BackendLocal    = "local"
	BackendSQLite   = "sqlite"
	BackendPGVector = "pgvector"
	BackendQdrant   = "qdrant"
)

// Record is one committed entry. Score is set on search results only.
type Record struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Metadata  document.Metadata `json:"metadata"`
	Embedding []float32         `json:"embedding,omitempty"`
	Score     float32           `json:"score,omitempty"`
}

// Store is a persistent vector index.
type Store interface {
	// Nearest returns up to k records closest to text. A record whose
	// content equals text exactly is always ranked first.
	Nearest(ctx context.Context, text string, k int) ([]Record, error)
	// Add commits a record with its precomputed embedding.
	Add(ctx context.Context, rec Record) error
	// RetrieveTopK ranks records by vector similarity to query.
	RetrieveTopK(ctx context.Context, query string, k int) ([]Record, error)
	// Persist flushes committed records to durable storage.
	Persist(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// Locker is implemented by stores that can serialize writers across
// processes.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// Options selects and locates a store.
type Options struct {
	Backend     string
	PersistPath string
	Collection  string
	PostgresDSN string
	QdrantAddr  string
}

// Open connects to the configured backend. query embeds search text.
func Open(ctx context.Context, opts Options, query embed.Embedder) (Store, error) {
	switch opts.Backend {
	case "", BackendLocal:
		return OpenLocal(opts.PersistPath, opts.Collection, query)
	case BackendSQLite:
		return OpenSQLite(ctx, opts.PersistPath, opts.Collection, query)
	case BackendPGVector:
		return OpenPG(ctx, opts.PostgresDSN, opts.Collection, query)
	case BackendQdrant:
		return OpenQdrant(ctx, opts.QdrantAddr, opts.Collection, query)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

// Opener defers Open until the first caller needs the index.
type Opener struct {
	Options Options
}

func (o *Opener) Open(ctx context.Context, query embed.Embedder) (Store, error) {
	return Open(ctx, o.Options, query)
}

// ContentHash keys exact-content lookups.
func ContentHash(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

// prepare validates a record before insert and assigns an ID if missing.
func prepare(rec Record) (Record, error) {
	if len(rec.Embedding) == 0 {
		return rec, ErrEmptyEmbedding
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Score = 0
	return rec, nil
}

// searcher is the per-backend half of Nearest and RetrieveTopK.
type searcher interface {
	empty(ctx context.Context) (bool, error)
	findExact(ctx context.Context, content string) (*Record, error)
	search(ctx context.Context, vec []float32, k int) ([]Record, error)
}

// nearest checks for an exact content match before embedding the query.
// An exact match has distance zero, so it is the nearest neighbour and
// wins any tie. An empty index answers without an embedding call.
func nearest(ctx context.Context, s searcher, query embed.Embedder, text string, k int) ([]Record, error) {
	if k <= 0 {
		return nil, nil
	}
	empty, err := s.empty(ctx)
	if err != nil {
		return nil, err
	}
	if empty {
		return nil, nil
	}

	exact, err := s.findExact(ctx, text)
	if err != nil {
		return nil, err
	}
	if exact != nil {
		exact.Score = 1
		if k == 1 {
			return []Record{*exact}, nil
		}
	}

	results, err := retrieve(ctx, s, query, text, k)
	if err != nil {
		return nil, err
	}
	if exact == nil {
		return results, nil
	}

	out := make([]Record, 0, k)
	out = append(out, *exact)
	for _, r := range results {
		if r.ID != exact.ID && len(out) < k {
			out = append(out, r)
		}
	}
	return out, nil
}

func retrieve(ctx context.Context, s searcher, query embed.Embedder, text string, k int) ([]Record, error) {
	if k <= 0 {
		return nil, nil
	}
	empty, err := s.empty(ctx)
	if err != nil {
		return nil, err
	}
	if empty {
		return nil, nil
	}
	vec, err := query.Embed(ctx, text)
	if err != nil {
		return nil, &QueryEmbedError{Err: err}
	}
	return s.search(ctx, vec, k)
}
