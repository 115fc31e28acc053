package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dgallion1/ragest/internal/api"
	"github.com/dgallion1/ragest/internal/pipeline"
)

// ServeAction runs the HTTP API until the context is cancelled.
func ServeAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd)
	if err != nil {
		return err
	}
	defer appCtx.Close()
	cfg := appCtx.Config
	log := appCtx.Logger

	if err := appCtx.Model.Ping(ctx); err != nil {
		log.Warn("embedding backend not reachable yet", "model", appCtx.Model.Model(), "error", err)
	}

	orch := pipeline.NewOrchestrator(appCtx.Service, pipeline.Options{
		Workers:   cfg.WorkerCount,
		QueueSize: cfg.MaxQueueSize,
		JobTTL:    cfg.JobTTL,
		Chunking:  appCtx.ChunkOptions(),
	}, log)
	orch.Start(ctx)

	var sayer api.Sayer
	pool := appCtx.NewSpeechPool(ctx)
	if pool != nil {
		sayer = pool
	}

	srv := api.NewServer(orch, appCtx.Service, appCtx.Model, sayer, log, cfg)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting ragest", "port", cfg.Port, "backend", backendName(cfg.IndexBackend))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		orch.Stop()
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	orch.Stop()
	if pool != nil {
		pool.Stop()
	}
	if err := appCtx.Service.Persist(shutdownCtx); err != nil {
		log.Error("final persist failed", "error", err)
	}
	return nil
}
