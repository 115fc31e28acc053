package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/dgallion1/ragest/internal/ingest"
)

// IngestAction ingests each FILE argument in order and stops at the first
// failure. Documents already ingested stay committed.
func IngestAction(ctx context.Context, cmd *cli.Command) error {
	refs := cmd.Args().Slice()
	if len(refs) == 0 {
		return cli.Exit("ingest: at least one FILE is required", 2)
	}

	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	opts := appCtx.ChunkOptions()
	if cmd.IsSet("chunk-size") {
		opts.ChunkSize = cmd.Int("chunk-size")
	}
	if cmd.IsSet("chunk-overlap") {
		opts.ChunkOverlap = cmd.Int("chunk-overlap")
	}

	out := cmd.Root().Writer
	var total ingest.Run
	for _, ref := range refs {
		run, err := appCtx.Service.Ingest(ctx, ref, opts)
		total = addRuns(total, run)
		if err != nil {
			printRun(out, ref, run)
			return cli.Exit(describeFailure(ref, err), 1)
		}
		printRun(out, ref, run)
	}
	if len(refs) > 1 {
		printRun(out, "total", total)
	}
	return nil
}

func addRuns(a, b ingest.Run) ingest.Run {
	return ingest.Run{
		TotalChunks: a.TotalChunks + b.TotalChunks,
		Inserted:    a.Inserted + b.Inserted,
		Skipped:     a.Skipped + b.Skipped,
	}
}

func printRun(w io.Writer, ref string, run ingest.Run) {
	fmt.Fprintf(w, "%s: %d chunks, %d inserted, %d skipped\n", ref, run.TotalChunks, run.Inserted, run.Skipped)
}

// describeFailure names the stage that failed so the operator knows
// whether a retry can help.
func describeFailure(ref string, err error) string {
	var (
		loadErr    *ingest.DocumentLoadError
		indexErr   *ingest.IndexUnavailableError
		embedErr   *ingest.EmbeddingError
		persistErr *ingest.PersistError
	)
	switch {
	case errors.As(err, &loadErr):
		return fmt.Sprintf("%s: could not load document: %v", ref, loadErr.Err)
	case errors.As(err, &indexErr):
		return fmt.Sprintf("%s: index unavailable (%s): %v", ref, indexErr.Op, indexErr.Err)
	case errors.As(err, &embedErr):
		return fmt.Sprintf("%s: embedding failed at chunk %d of %d, earlier chunks are stored: %v",
			ref, embedErr.Chunk, embedErr.Total, embedErr.Err)
	case errors.As(err, &persistErr):
		return fmt.Sprintf("%s: chunks stored but the index was not flushed: %v", ref, persistErr.Err)
	default:
		return fmt.Sprintf("%s: %v", ref, err)
	}
}
