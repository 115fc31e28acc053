package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dgallion1/ragest/internal/chunker"
	"github.com/dgallion1/ragest/internal/ingest"
)

// Worker processes a single document job.
type Worker struct {
	ingester Ingester
	chunking ingest.Options
	log      *slog.Logger
}

func NewWorker(ingester Ingester, chunking ingest.Options, log *slog.Logger) *Worker {
	return &Worker{ingester: ingester, chunking: chunking, log: log}
}

var stageStatus = map[ingest.Stage]JobStatus{
	ingest.StageLoading:    StatusLoading,
	ingest.StageChunking:   StatusChunking,
	ingest.StageEmbedding:  StatusEmbedding,
	ingest.StagePersisting: StatusPersisting,
}

// Process runs the ingestion for a job and records the outcome on it.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	opts := w.chunking
	opts.Progress = func(stage ingest.Stage, run ingest.Run) {
		if status, ok := stageStatus[stage]; ok {
			job.SetStatus(status, string(stage))
		}
		job.SetRun(run)
	}

	run, err := w.ingester.Ingest(ctx, job.Path, opts)
	job.SetRun(run)
	if err != nil {
		log.Error("ingestion failed", "error", err, "inserted", run.Inserted, "skipped", run.Skipped)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, failedPhase(err))
		return
	}

	log.Info("job complete", "total_chunks", run.TotalChunks, "inserted", run.Inserted, "skipped", run.Skipped)
	job.SetStatus(StatusCompleted, "done")
}

// failedPhase names the stage an ingestion error came from.
func failedPhase(err error) string {
	var (
		loadErr    *ingest.DocumentLoadError
		indexErr   *ingest.IndexUnavailableError
		embedErr   *ingest.EmbeddingError
		persistErr *ingest.PersistError
	)
	switch {
	case errors.As(err, &loadErr):
		return string(ingest.StageLoading)
	case errors.As(err, &indexErr):
		if indexErr.Op == ingest.OpOpen || indexErr.Op == ingest.OpLock {
			return "opening_index"
		}
		return string(ingest.StageEmbedding)
	case errors.As(err, &embedErr):
		return string(ingest.StageEmbedding)
	case errors.As(err, &persistErr):
		return string(ingest.StagePersisting)
	case errors.Is(err, chunker.ErrInvalidConfig):
		return string(ingest.StageChunking)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "unknown"
}
