package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/dgallion1/ragest/internal/document"
	"github.com/dgallion1/ragest/internal/embed"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	id           TEXT PRIMARY KEY,
	collection   TEXT NOT NULL,
	content      TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	page         INTEGER NOT NULL DEFAULT 0,
	source       TEXT NOT NULL DEFAULT '',
	title        TEXT NOT NULL DEFAULT '',
	author       TEXT NOT NULL DEFAULT '',
	embedding    BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_hash ON records(collection, content_hash);
`

// SQLiteStore keeps records in a single SQLite file. Vector search is a
// full scan with cosine scoring.
type SQLiteStore struct {
	db         *sql.DB
	path       string
	collection string
	query      embed.Embedder
}

// OpenSQLite opens or creates <dir>/index.db.
func OpenSQLite(ctx context.Context, dir, collection string, query embed.Embedder) (*SQLiteStore, error) {
	if dir == "" || collection == "" {
		return nil, errors.New("sqlite index: persist path and collection are required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating persist directory: %w", err)
	}

	dbPath := filepath.Join(dir, "index.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db, path: dbPath, collection: collection, query: query}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Nearest(ctx context.Context, text string, k int) ([]Record, error) {
	return nearest(ctx, s, s.query, text, k)
}

func (s *SQLiteStore) RetrieveTopK(ctx context.Context, query string, k int) ([]Record, error) {
	return retrieve(ctx, s, s.query, query, k)
}

func (s *SQLiteStore) Add(ctx context.Context, rec Record) error {
	rec, err := prepare(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (id, collection, content, content_hash, page, source, title, author, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, s.collection, rec.Content, ContentHash(rec.Content),
		rec.Metadata.Page, rec.Metadata.Source, rec.Metadata.Title, rec.Metadata.Author,
		float32SliceToBytes(rec.Embedding),
	)
	if err != nil {
		return fmt.Errorf("inserting record: %w", err)
	}
	return nil
}

// Persist checkpoints the WAL into the main database file.
func (s *SQLiteStore) Persist(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpointing database: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE collection = ?`, s.collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) empty(ctx context.Context) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM records WHERE collection = ? LIMIT 1`, s.collection).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking records: %w", err)
	}
	return false, nil
}

func (s *SQLiteStore) findExact(ctx context.Context, content string) (*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, page, source, title, author, embedding FROM records
		 WHERE collection = ? AND content_hash = ? ORDER BY rowid`,
		s.collection, ContentHash(content))
	if err != nil {
		return nil, fmt.Errorf("querying by hash: %w", err)
	}
	defer rows.Close()

	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		if r.Content == content {
			return &r, nil
		}
	}
	return nil, nil
}

func (s *SQLiteStore) search(ctx context.Context, vec []float32, k int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, page, source, title, author, embedding FROM records
		 WHERE collection = ? ORDER BY rowid`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	return topK(recs, vec, k), nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var (
			r    Record
			md   document.Metadata
			blob []byte
		)
		if err := rows.Scan(&r.ID, &r.Content, &md.Page, &md.Source, &md.Title, &md.Author, &blob); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		r.Metadata = md
		r.Embedding = bytesToFloat32Slice(blob)
		out = append(out, r)
	}
	return out, rows.Err()
}
