package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/ragest/internal/document"
	"github.com/dgallion1/ragest/internal/embed"
	"github.com/dgallion1/ragest/internal/index"
)

// Index is the part of an index store the dedup pass needs.
type Index interface {
	Nearest(ctx context.Context, text string, k int) ([]index.Record, error)
	Add(ctx context.Context, rec index.Record) error
}

// Run reports one ingestion pass.
type Run struct {
	TotalChunks int `json:"total_chunks"`
	Inserted    int `json:"inserted"`
	Skipped     int `json:"skipped"`
}

// DedupEmbedder commits chunks whose exact text is not already indexed.
type DedupEmbedder struct {
	log      *slog.Logger
	progress func(Run)
}

func NewDedupEmbedder(log *slog.Logger) *DedupEmbedder {
	return &DedupEmbedder{log: log}
}

// EmbedAndStore processes chunks in order. A chunk is a duplicate only when
// the nearest stored record has exactly the same content; duplicates cost
// no embedding call. The first failure stops the pass and the counts so far
// are returned with it.
func (d *DedupEmbedder) EmbedAndStore(ctx context.Context, chunks []document.Chunk, idx Index, model embed.Embedder) (Run, error) {
	run := Run{TotalChunks: len(chunks)}
	total := len(chunks)
	d.log.Info("starting to process chunks", "total", total)

	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return run, fmt.Errorf("ingestion stopped before chunk %d of %d: %w", i+1, total, err)
		}

		nearest, err := idx.Nearest(ctx, c.Text, 1)
		if err != nil {
			var qerr *index.QueryEmbedError
			if errors.As(err, &qerr) {
				return run, &EmbeddingError{Chunk: i + 1, Total: total, Err: qerr.Err}
			}
			return run, &IndexUnavailableError{Op: OpNearest, Err: err}
		}
		if len(nearest) > 0 && nearest[0].Content == c.Text {
			d.log.Info("skipping chunk", "chunk", i+1, "total", total)
			run.Skipped++
			d.report(run)
			continue
		}

		d.log.Info("processing new chunk", "chunk", i+1, "total", total)
		vec, err := model.Embed(ctx, c.Text)
		if err != nil {
			return run, &EmbeddingError{Chunk: i + 1, Total: total, Err: err}
		}
		rec := index.Record{Content: c.Text, Metadata: c.Metadata, Embedding: vec}
		if err := idx.Add(ctx, rec); err != nil {
			return run, &IndexUnavailableError{Op: OpAdd, Err: err}
		}
		run.Inserted++
		d.report(run)
	}
	return run, nil
}

func (d *DedupEmbedder) report(run Run) {
	if d.progress != nil {
		d.progress(run)
	}
}
