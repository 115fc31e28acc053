//go:build integration

package index

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dockerPool(t *testing.T) *dockertest.Pool {
	t.Helper()
	pool, err := dockertest.NewPool("")
	require.NoError(t, err, "connect docker")
	require.NoError(t, pool.Client.Ping(), "ping docker")
	pool.MaxWait = 90 * time.Second
	return pool
}

func startPG(t *testing.T) string {
	t.Helper()
	pool := dockerPool(t)
	res, err := pool.Run("pgvector/pgvector", "pg16", []string{
		"POSTGRES_USER=ragest",
		"POSTGRES_PASSWORD=ragest",
		"POSTGRES_DB=ragest",
	})
	require.NoError(t, err, "start pgvector")
	t.Cleanup(func() { pool.Purge(res) })

	dsn := fmt.Sprintf("postgres://ragest:ragest@%s/ragest?sslmode=disable", res.GetHostPort("5432/tcp"))
	require.NoError(t, pool.Retry(func() error {
		s, err := OpenPG(context.Background(), dsn, "probe", nil)
		if err != nil {
			return err
		}
		return s.Close()
	}))
	return dsn
}

func startQdrant(t *testing.T) string {
	t.Helper()
	pool := dockerPool(t)
	res, err := pool.Run("qdrant/qdrant", "latest", nil)
	require.NoError(t, err, "start qdrant")
	t.Cleanup(func() { pool.Purge(res) })

	addr := res.GetHostPort("6334/tcp")
	require.NoError(t, pool.Retry(func() error {
		s, err := OpenQdrant(context.Background(), addr, "probe", nil)
		if err != nil {
			return err
		}
		return s.Close()
	}))
	return addr
}

func TestIntegration_ServerBackends(t *testing.T) {
	backends := map[string]func(t *testing.T, q *countingEmbedder) Store{
		BackendPGVector: func(t *testing.T, q *countingEmbedder) Store {
			s, err := OpenPG(context.Background(), startPG(t), "it", q)
			require.NoError(t, err)
			return s
		},
		BackendQdrant: func(t *testing.T, q *countingEmbedder) Store {
			s, err := OpenQdrant(context.Background(), startQdrant(t), "it", q)
			require.NoError(t, err)
			return s
		},
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			q := &countingEmbedder{vecs: map[string][]float32{"query": {0, 1, 0}}}
			s := open(t, q)
			defer s.Close()

			got, err := s.Nearest(ctx, "anything", 1)
			require.NoError(t, err)
			assert.Empty(t, got)
			assert.Zero(t, q.Calls())

			require.NoError(t, s.Add(ctx, rec("east", 1, 0, 0)))
			require.NoError(t, s.Add(ctx, rec("north", 0, 1, 0)))
			require.NoError(t, s.Persist(ctx))

			got, err = s.Nearest(ctx, "east", 1)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "east", got[0].Content)
			assert.Equal(t, "book.pdf", got[0].Metadata.Source)
			assert.Zero(t, q.Calls())

			got, err = s.RetrieveTopK(ctx, "query", 2)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "north", got[0].Content)
			assert.Greater(t, got[0].Score, got[1].Score)

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)
		})
	}
}

func TestIntegration_PGAdvisoryLock(t *testing.T) {
	ctx := context.Background()
	s, err := OpenPG(ctx, startPG(t), "lock", nil)
	require.NoError(t, err)
	defer s.Close()

	unlock, err := s.Lock(ctx)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = s.Lock(waitCtx)
	assert.Error(t, err, "second lock should block until the deadline")

	unlock()
	unlock2, err := s.Lock(ctx)
	require.NoError(t, err)
	unlock2()
}
