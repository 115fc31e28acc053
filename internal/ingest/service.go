// Package ingest turns a document into deduplicated index records: load,
// chunk, skip chunks whose exact text is already indexed, embed and add the
// rest, then persist.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dgallion1/ragest/internal/chunker"
	"github.com/dgallion1/ragest/internal/document"
	"github.com/dgallion1/ragest/internal/embed"
	"github.com/dgallion1/ragest/internal/index"
)

// Stage names the step an ingestion run is in.
type Stage string

const (
	StageLoading    Stage = "loading"
	StageChunking   Stage = "chunking"
	StageEmbedding  Stage = "embedding"
	StagePersisting Stage = "persisting"
)

// Loader produces the pages of a document.
type Loader interface {
	Load(ctx context.Context, ref string) ([]document.Page, error)
}

// Opener opens the index store. query is the embedder the store uses for
// nearest-neighbour lookups.
type Opener interface {
	Open(ctx context.Context, query embed.Embedder) (index.Store, error)
}

// Options tunes one run. Zero sizes fall back to chunker.DefaultConfig.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
	// Progress, when set, is called on every stage change and after every
	// chunk.
	Progress func(Stage, Run)
}

func (o Options) chunkerConfig() chunker.Config {
	cfg := chunker.DefaultConfig()
	if o.ChunkSize > 0 {
		cfg.ChunkSize = o.ChunkSize
		cfg.ChunkOverlap = o.ChunkOverlap
	}
	if len(o.Separators) > 0 {
		cfg.Separators = o.Separators
	}
	return cfg
}

// Service owns the index handle and the embedding model for its lifetime.
// Ingest runs are serialized; the store's Locker, when it has one, extends
// that across processes.
type Service struct {
	loader Loader
	opener Opener
	model  embed.Embedder
	log    *slog.Logger

	run sync.Mutex

	openMu sync.Mutex
	store  index.Store
}

func NewService(loader Loader, opener Opener, model embed.Embedder, log *slog.Logger) *Service {
	return &Service{
		loader: loader,
		opener: opener,
		model:  embed.NewMemo(model),
		log:    log,
	}
}

// Ingest loads ref, chunks it and commits the new chunks. On failure the
// returned Run holds the counts reached so far and the error is one of
// *DocumentLoadError, *IndexUnavailableError, *EmbeddingError or
// *PersistError, or a chunker.ErrInvalidConfig / context error.
func (s *Service) Ingest(ctx context.Context, ref string, opts Options) (Run, error) {
	log := s.log.With("document", ref)
	progress := func(stage Stage, run Run) {
		if opts.Progress != nil {
			opts.Progress(stage, run)
		}
	}

	cfg := opts.chunkerConfig()
	if err := cfg.Validate(); err != nil {
		return Run{}, err
	}

	progress(StageLoading, Run{})
	pages, err := s.loader.Load(ctx, ref)
	if err != nil {
		return Run{}, &DocumentLoadError{Ref: ref, Err: err}
	}

	progress(StageChunking, Run{})
	chunks, err := chunker.Split(pages, cfg)
	if err != nil {
		return Run{}, err
	}
	log.Info("document chunked", "pages", len(pages), "chunks", len(chunks))
	if len(chunks) == 0 {
		return Run{}, nil
	}

	s.run.Lock()
	defer s.run.Unlock()

	store, err := s.openIndex(ctx)
	if err != nil {
		return Run{TotalChunks: len(chunks)}, err
	}
	if l, ok := store.(index.Locker); ok {
		unlock, err := l.Lock(ctx)
		if err != nil {
			return Run{TotalChunks: len(chunks)}, &IndexUnavailableError{Op: OpLock, Err: err}
		}
		defer unlock()
	}

	progress(StageEmbedding, Run{TotalChunks: len(chunks)})
	dedup := &DedupEmbedder{
		log:      log,
		progress: func(r Run) { progress(StageEmbedding, r) },
	}
	run, err := dedup.EmbedAndStore(ctx, chunks, store, s.model)
	if err != nil {
		log.Error("ingestion aborted", "error", err, "inserted", run.Inserted, "skipped", run.Skipped)
		return run, err
	}

	progress(StagePersisting, run)
	if err := store.Persist(ctx); err != nil {
		return run, &PersistError{Err: err}
	}

	log.Info("ingestion complete", "total", run.TotalChunks, "inserted", run.Inserted, "skipped", run.Skipped)
	return run, nil
}

// Retrieve returns the k records closest to query.
func (s *Service) Retrieve(ctx context.Context, query string, k int) ([]index.Record, error) {
	store, err := s.openIndex(ctx)
	if err != nil {
		return nil, err
	}
	return store.RetrieveTopK(ctx, query, k)
}

// Persist flushes the index again, for callers recovering from a
// *PersistError. It is a no-op when the index was never opened.
func (s *Service) Persist(ctx context.Context) error {
	s.openMu.Lock()
	store := s.store
	s.openMu.Unlock()
	if store == nil {
		return nil
	}
	if err := store.Persist(ctx); err != nil {
		return &PersistError{Err: err}
	}
	return nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	store, err := s.openIndex(ctx)
	if err != nil {
		return 0, err
	}
	return store.Count(ctx)
}

// Close releases the index handle, if one was opened.
func (s *Service) Close() error {
	s.openMu.Lock()
	defer s.openMu.Unlock()
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	return err
}

// openIndex opens the store on first use. A failed open is retried on the
// next call.
func (s *Service) openIndex(ctx context.Context) (index.Store, error) {
	s.openMu.Lock()
	defer s.openMu.Unlock()
	if s.store != nil {
		return s.store, nil
	}
	store, err := s.opener.Open(ctx, s.model)
	if err != nil {
		return nil, &IndexUnavailableError{Op: OpOpen, Err: err}
	}
	if store == nil {
		return nil, &IndexUnavailableError{Op: OpOpen, Err: errors.New("opener returned no store")}
	}
	s.store = store
	return store, nil
}
