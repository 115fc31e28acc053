package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dgallion1/ragest/internal/embed"
)

// LocalStore keeps records in memory and snapshots them to a JSON file
// under the persist directory on Persist.
type LocalStore struct {
	mu         sync.RWMutex
	path       string
	collection string
	query      embed.Embedder
	records    []Record
	byHash     map[string]int
}

type snapshot struct {
	Collection string   `json:"collection"`
	Records    []Record `json:"records"`
}

// OpenLocal loads <dir>/<collection>.json if it exists.
func OpenLocal(dir, collection string, query embed.Embedder) (*LocalStore, error) {
	if dir == "" || collection == "" {
		return nil, errors.New("local index: persist path and collection are required")
	}
	s := &LocalStore{
		path:       filepath.Join(dir, collection+".json"),
		collection: collection,
		query:      query,
		byHash:     make(map[string]int),
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode index snapshot %s: %w", s.path, err)
	}
	for _, rec := range snap.Records {
		s.insert(rec)
	}
	return s, nil
}

func (s *LocalStore) insert(rec Record) {
	h := ContentHash(rec.Content)
	if _, ok := s.byHash[h]; !ok {
		s.byHash[h] = len(s.records)
	}
	s.records = append(s.records, rec)
}

func (s *LocalStore) Nearest(ctx context.Context, text string, k int) ([]Record, error) {
	return nearest(ctx, s, s.query, text, k)
}

func (s *LocalStore) RetrieveTopK(ctx context.Context, query string, k int) ([]Record, error) {
	return retrieve(ctx, s, s.query, query, k)
}

func (s *LocalStore) Add(_ context.Context, rec Record) error {
	rec, err := prepare(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.insert(rec)
	s.mu.Unlock()
	return nil
}

// Persist writes the snapshot atomically via a temp file and rename.
func (s *LocalStore) Persist(_ context.Context) error {
	s.mu.RLock()
	snap := snapshot{
		Collection: s.collection,
		Records:    s.records,
	}
	data, err := json.Marshal(snap)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode index snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create persist dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write index snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace index snapshot: %w", err)
	}
	return nil
}

func (s *LocalStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *LocalStore) Close() error { return nil }

func (s *LocalStore) empty(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records) == 0, nil
}

func (s *LocalStore) findExact(_ context.Context, content string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byHash[ContentHash(content)]
	if !ok || s.records[i].Content != content {
		return nil, nil
	}
	rec := s.records[i]
	return &rec, nil
}

func (s *LocalStore) search(_ context.Context, vec []float32, k int) ([]Record, error) {
	s.mu.RLock()
	candidates := make([]Record, len(s.records))
	copy(candidates, s.records)
	s.mu.RUnlock()
	return topK(candidates, vec, k), nil
}
