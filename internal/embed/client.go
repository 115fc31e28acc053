package embed

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Client wraps a backend with rate limiting, retry of transient failures
// and latency tracking. It is safe for concurrent use.
type Client struct {
	backend    Embedder
	limiter    *rate.Limiter
	stats      *Stats
	log        *slog.Logger
	maxRetries int
	backoff    func(attempt int) time.Duration
	model      string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRateLimit caps calls per second, with a burst of one.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithMaxRetries sets the attempts per text. Values below 1 keep the default.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithStats shares a Stats window with the caller.
func WithStats(s *Stats) ClientOption {
	return func(c *Client) {
		c.stats = s
	}
}

func NewClient(backend Embedder, log *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		backend:    backend,
		stats:      NewStats(time.Hour),
		log:        log,
		maxRetries: MaxRetries,
		backoff:    Backoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embed calls the backend, retrying RetryableError with backoff.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := range c.maxRetries {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		vec, err := c.backend.Embed(ctx, text)
		c.stats.Record(time.Since(start).Milliseconds(), err != nil)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == c.maxRetries-1 {
			break
		}

		c.log.Warn("retryable embedding error", "attempt", attempt, "error", err)
		select {
		case <-time.After(c.backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// Ping checks the backend when it supports it.
func (c *Client) Ping(ctx context.Context) error {
	if p, ok := c.backend.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Stats returns the rolling latency window.
func (c *Client) Stats() *Stats {
	return c.stats
}

// Model returns the configured model name, if known.
func (c *Client) Model() string {
	return c.model
}
