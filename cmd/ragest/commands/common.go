// Package commands holds the ragest CLI actions.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/dgallion1/ragest/internal/config"
	"github.com/dgallion1/ragest/internal/embed"
	"github.com/dgallion1/ragest/internal/index"
	"github.com/dgallion1/ragest/internal/ingest"
	"github.com/dgallion1/ragest/internal/logger"
	"github.com/dgallion1/ragest/internal/parser"
	"github.com/dgallion1/ragest/internal/speech"
)

// AppContext is the wiring every command shares.
type AppContext struct {
	Config  config.Config
	Logger  *slog.Logger
	Model   *embed.Client
	Service *ingest.Service
}

// NewAppContext loads configuration from the root --config and --env flags
// and builds the ingestion service. The index is opened lazily.
func NewAppContext(ctx context.Context, cmd *cli.Command) (*AppContext, error) {
	cfg, err := config.Load(cmd.String("config"), cmd.String("env"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{Level: level, Format: cfg.LogFormat, Output: os.Stderr})

	model, err := embed.New(cfg.EmbedConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("init embedding model: %w", err)
	}

	svc := ingest.NewService(
		&parser.Loader{FallbackPdftotext: cfg.PDFFallbackPdftotext},
		&index.Opener{Options: cfg.IndexOptions()},
		model,
		log,
	)

	return &AppContext{
		Config:  cfg,
		Logger:  log,
		Model:   model,
		Service: svc,
	}, nil
}

// Close releases the index handle.
func (ac *AppContext) Close() {
	if err := ac.Service.Close(); err != nil {
		ac.Logger.Warn("close index", "error", err)
	}
}

// ChunkOptions returns the configured chunking parameters.
func (ac *AppContext) ChunkOptions() ingest.Options {
	return ingest.Options{
		ChunkSize:    ac.Config.ChunkSize,
		ChunkOverlap: ac.Config.ChunkOverlap,
		Separators:   ac.Config.Separators,
	}
}

// NewSpeechPool returns a started pool, or nil when speech is disabled.
func (ac *AppContext) NewSpeechPool(ctx context.Context) *speech.Pool {
	if !ac.Config.SpeechEnabled {
		return nil
	}
	pool := speech.NewPool(
		&speech.CommandSpeaker{Command: ac.Config.SpeechCommand, Args: ac.Config.SpeechArgs},
		ac.Config.SpeechWorkers,
		0,
		ac.Logger,
	)
	pool.Start(ctx)
	return pool
}
