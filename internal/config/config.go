// Package config loads ragest settings from an optional YAML file, a .env
// file and RAGEST_* environment variables, in that order of precedence
// (environment wins).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dgallion1/ragest/internal/embed"
	"github.com/dgallion1/ragest/internal/index"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	// Core pipeline
	ChunkSize           int      `yaml:"chunk_size"`
	ChunkOverlap        int      `yaml:"chunk_overlap"`
	Separators          []string `yaml:"separators"`
	EmbeddingModelName  string   `yaml:"embedding_model_name"`
	IndexPersistPath    string   `yaml:"index_persist_path"`
	IndexCollectionName string   `yaml:"index_collection_name"`
	RetrievalK          int      `yaml:"retrieval_k"`

	// Embedding backend
	EmbeddingProvider   string        `yaml:"embedding_provider"`
	EmbeddingBaseURL    string        `yaml:"embedding_base_url"`
	EmbeddingDimensions int           `yaml:"embedding_dimensions"`
	EmbeddingTimeout    time.Duration `yaml:"embedding_timeout"`
	EmbeddingRateLimit  float64       `yaml:"embedding_rate_limit"`
	EmbeddingMaxRetries int           `yaml:"embedding_max_retries"`
	EmbeddingAPIKey     string        `yaml:"-"`

	// Index backend
	IndexBackend string `yaml:"index_backend"`
	PostgresDSN  string `yaml:"postgres_dsn"`
	QdrantAddr   string `yaml:"qdrant_addr"`

	// Speech
	SpeechEnabled bool     `yaml:"speech_enabled"`
	SpeechCommand string   `yaml:"speech_command"`
	SpeechArgs    []string `yaml:"speech_args"`
	SpeechWorkers int      `yaml:"speech_workers"`

	// Server
	Port           string        `yaml:"port"`
	APIKey         string        `yaml:"-"`
	WorkerCount    int           `yaml:"worker_count"`
	MaxQueueSize   int           `yaml:"max_queue_size"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	UploadDir      string        `yaml:"upload_dir"`
	JobTTL         time.Duration `yaml:"job_ttl"`

	// PDF
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func Default() Config {
	return Config{
		ChunkSize:           1000,
		ChunkOverlap:        100,
		EmbeddingModelName:  "nomic-embed-text",
		IndexPersistPath:    "./chroma_db",
		IndexCollectionName: "harry_potter",
		RetrievalK:          4,

		EmbeddingProvider:   embed.ProviderOllama,
		EmbeddingTimeout:    30 * time.Second,
		EmbeddingMaxRetries: embed.MaxRetries,

		IndexBackend: index.BackendLocal,

		SpeechCommand: "espeak",
		SpeechWorkers: 1,

		Port:           "8090",
		WorkerCount:    2,
		MaxQueueSize:   100,
		MaxUploadBytes: 52428800, // 50MB
		UploadDir:      "./uploads",
		JobTTL:         1 * time.Hour,

		PDFFallbackPdftotext: true,

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), the .env file at envFile (skipped when missing) and the
// process environment. The result is validated.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("load .env file: %w", err)
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

// applyEnv overrides cfg from RAGEST_* variables. A set but malformed
// value is an error.
func applyEnv(cfg *Config) error {
	e := &envReader{}

	cfg.ChunkSize = e.envInt("RAGEST_CHUNK_SIZE", cfg.ChunkSize)
	cfg.ChunkOverlap = e.envInt("RAGEST_CHUNK_OVERLAP", cfg.ChunkOverlap)
	cfg.EmbeddingModelName = envOr("RAGEST_EMBEDDING_MODEL_NAME", cfg.EmbeddingModelName)
	cfg.IndexPersistPath = envOr("RAGEST_INDEX_PERSIST_PATH", cfg.IndexPersistPath)
	cfg.IndexCollectionName = envOr("RAGEST_INDEX_COLLECTION_NAME", cfg.IndexCollectionName)
	cfg.RetrievalK = e.envInt("RAGEST_RETRIEVAL_K", cfg.RetrievalK)

	cfg.EmbeddingProvider = envOr("RAGEST_EMBEDDING_PROVIDER", cfg.EmbeddingProvider)
	cfg.EmbeddingBaseURL = envOr("RAGEST_EMBEDDING_BASE_URL", cfg.EmbeddingBaseURL)
	cfg.EmbeddingDimensions = e.envInt("RAGEST_EMBEDDING_DIMENSIONS", cfg.EmbeddingDimensions)
	cfg.EmbeddingTimeout = e.envDuration("RAGEST_EMBEDDING_TIMEOUT", cfg.EmbeddingTimeout)
	cfg.EmbeddingRateLimit = e.envFloat("RAGEST_EMBEDDING_RATE_LIMIT", cfg.EmbeddingRateLimit)
	cfg.EmbeddingMaxRetries = e.envInt("RAGEST_EMBEDDING_MAX_RETRIES", cfg.EmbeddingMaxRetries)
	cfg.EmbeddingAPIKey = envOr("RAGEST_EMBEDDING_API_KEY", os.Getenv("OPENAI_API_KEY"))

	cfg.IndexBackend = envOr("RAGEST_INDEX_BACKEND", cfg.IndexBackend)
	cfg.PostgresDSN = envOr("RAGEST_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.QdrantAddr = envOr("RAGEST_QDRANT_ADDR", cfg.QdrantAddr)

	cfg.SpeechEnabled = e.envBool("RAGEST_SPEECH_ENABLED", cfg.SpeechEnabled)
	cfg.SpeechCommand = envOr("RAGEST_SPEECH_COMMAND", cfg.SpeechCommand)
	if v := os.Getenv("RAGEST_SPEECH_ARGS"); v != "" {
		cfg.SpeechArgs = strings.Fields(v)
	}
	cfg.SpeechWorkers = e.envInt("RAGEST_SPEECH_WORKERS", cfg.SpeechWorkers)

	cfg.Port = envOr("RAGEST_PORT", envOr("PORT", cfg.Port))
	cfg.APIKey = envOr("RAGEST_API_KEY", cfg.APIKey)
	cfg.WorkerCount = e.envInt("RAGEST_WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = e.envInt("RAGEST_MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.MaxUploadBytes = e.envInt64("RAGEST_MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.UploadDir = envOr("RAGEST_UPLOAD_DIR", cfg.UploadDir)
	cfg.JobTTL = e.envDuration("RAGEST_JOB_TTL", cfg.JobTTL)

	cfg.PDFFallbackPdftotext = e.envBool("RAGEST_PDF_FALLBACK_PDFTOTEXT", cfg.PDFFallbackPdftotext)

	cfg.LogLevel = envOr("RAGEST_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("RAGEST_LOG_FORMAT", cfg.LogFormat)

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.SpeechWorkers <= 0 {
		cfg.SpeechWorkers = 1
	}

	if err := errors.Join(e.errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive", ErrInvalid)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk_overlap must not be negative", ErrInvalid)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_size (%d)", ErrInvalid, c.ChunkOverlap, c.ChunkSize)
	}
	if c.RetrievalK < 1 {
		return fmt.Errorf("%w: retrieval_k must be at least 1", ErrInvalid)
	}
	if c.EmbeddingModelName == "" {
		return fmt.Errorf("%w: embedding_model_name is required", ErrInvalid)
	}
	if c.IndexCollectionName == "" {
		return fmt.Errorf("%w: index_collection_name is required", ErrInvalid)
	}

	switch c.EmbeddingProvider {
	case embed.ProviderOllama:
	case embed.ProviderOpenAI:
		if c.EmbeddingAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY or RAGEST_EMBEDDING_API_KEY is required for the openai provider", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: %w: %q", ErrInvalid, embed.ErrUnknownProvider, c.EmbeddingProvider)
	}

	switch c.IndexBackend {
	case index.BackendLocal, index.BackendSQLite:
		if c.IndexPersistPath == "" {
			return fmt.Errorf("%w: index_persist_path is required for the %s backend", ErrInvalid, c.IndexBackend)
		}
	case index.BackendPGVector:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres_dsn is required for the pgvector backend", ErrInvalid)
		}
	case index.BackendQdrant:
		if c.QdrantAddr == "" {
			return fmt.Errorf("%w: qdrant_addr is required for the qdrant backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: %w: %q", ErrInvalid, index.ErrUnknownBackend, c.IndexBackend)
	}

	if c.SpeechEnabled && c.SpeechCommand == "" {
		return fmt.Errorf("%w: speech_command is required when speech is enabled", ErrInvalid)
	}
	return nil
}

// EmbedConfig maps the embedding keys onto an embed.Config.
func (c Config) EmbedConfig() embed.Config {
	return embed.Config{
		Provider:   c.EmbeddingProvider,
		Model:      c.EmbeddingModelName,
		BaseURL:    c.EmbeddingBaseURL,
		APIKey:     c.EmbeddingAPIKey,
		Dimensions: c.EmbeddingDimensions,
		Timeout:    c.EmbeddingTimeout,
		RateLimit:  c.EmbeddingRateLimit,
		MaxRetries: c.EmbeddingMaxRetries,
	}
}

// IndexOptions maps the index keys onto index.Options.
func (c Config) IndexOptions() index.Options {
	return index.Options{
		Backend:     c.IndexBackend,
		PersistPath: c.IndexPersistPath,
		Collection:  c.IndexCollectionName,
		PostgresDSN: c.PostgresDSN,
		QdrantAddr:  c.QdrantAddr,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envReader parses typed variables and collects the ones that do not parse.
type envReader struct {
	errs []error
}

func (e *envReader) bad(key, v string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", key, v, err))
}

func (e *envReader) envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.bad(key, v, err)
		return fallback
	}
	return n
}

func (e *envReader) envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.bad(key, v, err)
		return fallback
	}
	return n
}

func (e *envReader) envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.bad(key, v, err)
		return fallback
	}
	return f
}

func (e *envReader) envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.bad(key, v, err)
		return fallback
	}
	return b
}

func (e *envReader) envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.bad(key, v, err)
		return fallback
	}
	return d
}
