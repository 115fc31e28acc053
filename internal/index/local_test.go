package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_UnpersistedAddsAreLost(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenLocal(dir, "c", &countingEmbedder{})
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, rec("kept", 1)))
	require.NoError(t, s.Persist(ctx))
	require.NoError(t, s.Add(ctx, rec("dropped", 1)))

	s, err = OpenLocal(dir, "c", &countingEmbedder{})
	require.NoError(t, err)
	n, _ := s.Count(ctx)
	assert.Equal(t, 1, n)
}

func TestLocal_CorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.json"), []byte("{not json"), 0o644))
	_, err := OpenLocal(dir, "c", &countingEmbedder{})
	assert.ErrorContains(t, err, "decode index snapshot")
}

func TestLocal_CollectionsAreSeparateFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a, err := OpenLocal(dir, "a", &countingEmbedder{})
	require.NoError(t, err)
	require.NoError(t, a.Add(ctx, rec("x", 1)))
	require.NoError(t, a.Persist(ctx))

	b, err := OpenLocal(dir, "b", &countingEmbedder{})
	require.NoError(t, err)
	n, _ := b.Count(ctx)
	assert.Zero(t, n)
	assert.FileExists(t, filepath.Join(dir, "a.json"))
	assert.NoFileExists(t, filepath.Join(dir, "a.json.tmp"))
}

func TestLocal_RequiresPathAndCollection(t *testing.T) {
	_, err := OpenLocal("", "c", nil)
	assert.Error(t, err)
	_, err = OpenLocal(t.TempDir(), "", nil)
	assert.Error(t, err)
}
