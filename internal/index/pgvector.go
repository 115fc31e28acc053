package index

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/dgallion1/ragest/internal/embed"
)

const pgSchema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS ragest_records (
	id           UUID PRIMARY KEY,
	collection   TEXT NOT NULL,
	content      TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	page         INTEGER NOT NULL DEFAULT 0,
	source       TEXT NOT NULL DEFAULT '',
	title        TEXT NOT NULL DEFAULT '',
	author       TEXT NOT NULL DEFAULT '',
	embedding    vector NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_ragest_records_hash ON ragest_records (collection, content_hash);
`

const pgColumns = `id::text, content, page, source, title, author, embedding`

// PGStore keeps records in PostgreSQL with the pgvector extension. The
// server owns durability, so Persist is a no-op.
type PGStore struct {
	pool       *pgxpool.Pool
	collection string
	query      embed.Embedder
}

// OpenPG connects to dsn, verifies the connection and ensures the schema.
func OpenPG(ctx context.Context, dsn, collection string, query embed.Embedder) (*PGStore, error) {
	if dsn == "" {
		return nil, errors.New("pgvector index: postgres DSN is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return &PGStore{pool: pool, collection: collection, query: query}, nil
}

func (s *PGStore) Nearest(ctx context.Context, text string, k int) ([]Record, error) {
	return nearest(ctx, s, s.query, text, k)
}

func (s *PGStore) RetrieveTopK(ctx context.Context, query string, k int) ([]Record, error) {
	return retrieve(ctx, s, s.query, query, k)
}

func (s *PGStore) Add(ctx context.Context, rec Record) error {
	rec, err := prepare(rec)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO ragest_records (id, collection, content, content_hash, page, source, title, author, embedding)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, s.collection, rec.Content, ContentHash(rec.Content),
		rec.Metadata.Page, rec.Metadata.Source, rec.Metadata.Title, rec.Metadata.Author,
		pgvector.NewVector(rec.Embedding),
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

func (s *PGStore) Persist(context.Context) error { return nil }

func (s *PGStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ragest_records WHERE collection = $1`, s.collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

// Lock takes a session-level advisory lock keyed on the collection, held on
// a dedicated connection until unlock is called.
func (s *PGStore) Lock(ctx context.Context) (func(), error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	id := lockID("ragest", s.collection)
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", id); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	return func() {
		conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", id)
		conn.Release()
	}, nil
}

// lockID folds the first eight bytes of a sha256 over parts into an int64.
func lockID(parts ...string) int64 {
	h := sha256.New()
	for _, part := range parts {
		h.Write([]byte(part))
	}
	sum := h.Sum(nil)
	var id int64
	for i := range 8 {
		id = (id << 8) | int64(sum[i])
	}
	return id
}

func (s *PGStore) empty(ctx context.Context) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ragest_records WHERE collection = $1)`, s.collection).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check records: %w", err)
	}
	return !exists, nil
}

func (s *PGStore) findExact(ctx context.Context, content string) (*Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgColumns+`, 1::real FROM ragest_records
		 WHERE collection = $1 AND content_hash = $2 AND content = $3
		 ORDER BY created_at LIMIT 1`,
		s.collection, ContentHash(content), content)
	rec, err := scanPGRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query by hash: %w", err)
	}
	return &rec, nil
}

func (s *PGStore) search(ctx context.Context, vec []float32, k int) ([]Record, error) {
	q := pgvector.NewVector(vec)
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgColumns+`, (1 - (embedding <=> $2))::real FROM ragest_records
		 WHERE collection = $1
		 ORDER BY embedding <=> $2, created_at
		 LIMIT $3`,
		s.collection, q, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanPGRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanPGRecord(row pgx.Row) (Record, error) {
	var (
		rec Record
		vec pgvector.Vector
	)
	err := row.Scan(&rec.ID, &rec.Content, &rec.Metadata.Page, &rec.Metadata.Source,
		&rec.Metadata.Title, &rec.Metadata.Author, &vec, &rec.Score)
	if err != nil {
		return Record{}, err
	}
	rec.Embedding = vec.Slice()
	return rec, nil
}
