// Package embed provides the embedding model handle used for both
// ingestion and query-time nearest-neighbour lookups.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrUnknownProvider is returned by New for an unrecognized provider name.
var ErrUnknownProvider = errors.New("unknown embedding provider")

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Pinger is implemented by backends that can check reachability without
// running inference.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Provider names accepted by New.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config selects and tunes an embedding backend.
type Config struct {
	Provider   string
	Model      string
	BaseURL    string
	APIKey     string
	Dimensions int
	Timeout    time.Duration
	RateLimit  float64 // Requests per second; 0 disables limiting.
	MaxRetries int     // Attempts per text, including the first.
}

// New builds the configured backend wrapped in a Client.
func New(cfg Config, log *slog.Logger) (*Client, error) {
	var backend Embedder
	switch cfg.Provider {
	case "", ProviderOllama:
		backend = NewOllamaBackend(OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
	case ProviderOpenAI:
		opts := []OpenAIOption{WithDimensions(cfg.Dimensions), WithRequestTimeout(cfg.Timeout)}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		b, err := NewOpenAIBackend(cfg.APIKey, cfg.Model, opts...)
		if err != nil {
			return nil, err
		}
		backend = b
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}

	opts := []ClientOption{WithMaxRetries(cfg.MaxRetries)}
	if cfg.RateLimit > 0 {
		opts = append(opts, WithRateLimit(cfg.RateLimit))
	}
	c := NewClient(backend, log, opts...)
	c.model = cfg.Model
	return c, nil
}
