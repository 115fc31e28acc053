package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/ragest/internal/config"
	"github.com/dgallion1/ragest/internal/embed"
	"github.com/dgallion1/ragest/internal/index"
	"github.com/dgallion1/ragest/internal/pipeline"
)

// Jobs queues and tracks ingestion jobs. *pipeline.Orchestrator implements it.
type Jobs interface {
	Submit(job *pipeline.Job) error
	GetJob(id string) *pipeline.Job
	QueueDepth() int
}

// Index answers retrieval and size queries. *ingest.Service implements it.
type Index interface {
	Retrieve(ctx context.Context, query string, k int) ([]index.Record, error)
	Count(ctx context.Context) (int, error)
}

// Model exposes embedding latency. *embed.Client implements it.
type Model interface {
	Model() string
	Stats() *embed.Stats
}

// Sayer speaks text in the background. *speech.Pool implements it.
type Sayer interface {
	Say(text string)
}

// Server is the HTTP API server for ragest.
type Server struct {
	router chi.Router
	jobs   Jobs
	index  Index
	model  Model
	speech Sayer
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server. speech may be nil.
func NewServer(jobs Jobs, idx Index, model Model, speech Sayer, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		jobs:   jobs,
		index:  idx,
		model:  model,
		speech: speech,
		log:    log,
		cfg:    cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/ingest", s.handleIngest)
		r.Post("/api/ingest/batch", s.handleBatchIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
		r.Get("/api/retrieve", s.handleRetrieve)
		r.Get("/api/stats", s.handleStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
