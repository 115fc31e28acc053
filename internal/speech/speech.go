// Package speech reads answers aloud in the background. Playback failures
// are logged and never reach the caller.
package speech

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// Speaker renders text as audio.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// CommandSpeaker pipes text to an external TTS program on stdin,
// e.g. espeak or say.
type CommandSpeaker struct {
	Command string
	Args    []string
}

func (s *CommandSpeaker) Speak(ctx context.Context, text string) error {
	cmd := exec.CommandContext(ctx, s.Command, s.Args...)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", s.Command, err, msg)
		}
		return fmt.Errorf("%s: %w", s.Command, err)
	}
	return nil
}

// Pool plays queued text on a fixed number of workers.
type Pool struct {
	speaker Speaker
	queue   chan string
	workers int
	log     *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func NewPool(speaker Speaker, workers, queueSize int, log *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 8
	}
	return &Pool{
		speaker: speaker,
		queue:   make(chan string, queueSize),
		workers: workers,
		log:     log,
	}
}

// Start launches the workers. They exit when ctx is cancelled or Stop is
// called.
func (p *Pool) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	for range p.workers {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case text, ok := <-p.queue:
					if !ok {
						return
					}
					if err := p.speaker.Speak(workerCtx, text); err != nil {
						p.log.Warn("speech failed", "error", err)
					}
				}
			}
		}()
	}
}

// Say queues text and returns immediately. Text is dropped when the queue
// is full or the pool is stopped.
func (p *Pool) Say(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.log.Warn("speech pool stopped, dropping text")
		return
	}
	select {
	case p.queue <- text:
	default:
		p.log.Warn("speech queue full, dropping text", "queued", len(p.queue))
	}
}

// Stop abandons queued text and waits for the workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}
