package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/ragest/internal/index"
)

func TestEmbedAndStore_ExactDuplicateSkipped(t *testing.T) {
	idx := &fakeIndex{records: []index.Record{{Content: "The castle loomed.", Embedding: []float32{1}}}}
	model := &fakeModel{}
	d := NewDedupEmbedder(discardLogger())

	run, err := d.EmbedAndStore(context.Background(), chunksOf("The castle loomed."), idx, model)
	require.NoError(t, err)
	assert.Equal(t, Run{TotalChunks: 1, Skipped: 1}, run)
	assert.Zero(t, model.Calls())
	assert.Len(t, idx.records, 1)
}

func TestEmbedAndStore_OneCharacterDifferenceInserted(t *testing.T) {
	idx := &fakeIndex{records: []index.Record{{Content: "The castle loomed.", Embedding: []float32{1}}}}
	model := &fakeModel{}
	d := NewDedupEmbedder(discardLogger())

	run, err := d.EmbedAndStore(context.Background(), chunksOf("The castle loomed!"), idx, model)
	require.NoError(t, err)
	assert.Equal(t, Run{TotalChunks: 1, Inserted: 1}, run)
	assert.Equal(t, 1, model.Calls())
	require.Len(t, idx.records, 2)
	assert.Equal(t, "The castle loomed!", idx.records[1].Content)
	assert.Equal(t, "book.pdf", idx.records[1].Metadata.Source)
	assert.NotEmpty(t, idx.records[1].Embedding)
}

func TestEmbedAndStore_EmbedFailureKeepsEarlierCommits(t *testing.T) {
	idx := &fakeIndex{}
	model := &fakeModel{failOn: 3}
	d := NewDedupEmbedder(discardLogger())

	run, err := d.EmbedAndStore(context.Background(), chunksOf("one", "two", "three", "four", "five"), idx, model)
	var embErr *EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, 3, embErr.Chunk)
	assert.Equal(t, 5, embErr.Total)
	assert.ErrorIs(t, err, errModelDown)

	assert.Equal(t, Run{TotalChunks: 5, Inserted: 2}, run)
	require.Len(t, idx.records, 2)
	assert.Equal(t, "one", idx.records[0].Content)
	assert.Equal(t, "two", idx.records[1].Content)
}

func TestEmbedAndStore_WithinRunDuplicateCaughtByLiveIndex(t *testing.T) {
	idx := &fakeIndex{}
	model := &fakeModel{}
	d := NewDedupEmbedder(discardLogger())

	run, err := d.EmbedAndStore(context.Background(), chunksOf("same", "other", "same"), idx, model)
	require.NoError(t, err)
	assert.Equal(t, Run{TotalChunks: 3, Inserted: 2, Skipped: 1}, run)
	assert.Equal(t, 2, model.Calls())
}

func TestEmbedAndStore_IndexFailures(t *testing.T) {
	boom := errors.New("connection refused")
	tests := []struct {
		name string
		idx  *fakeIndex
		op   string
	}{
		{"nearest", &fakeIndex{nearestErr: boom}, OpNearest},
		{"add", &fakeIndex{addErr: boom}, OpAdd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDedupEmbedder(discardLogger())
			_, err := d.EmbedAndStore(context.Background(), chunksOf("a"), tt.idx, &fakeModel{})
			var idxErr *IndexUnavailableError
			require.ErrorAs(t, err, &idxErr)
			assert.Equal(t, tt.op, idxErr.Op)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestEmbedAndStore_QueryEmbedFailureIsEmbeddingError(t *testing.T) {
	idx := &fakeIndex{nearestErr: &index.QueryEmbedError{Err: errModelDown}}
	run, err := NewDedupEmbedder(discardLogger()).EmbedAndStore(context.Background(), chunksOf("a", "b"), idx, &fakeModel{})

	var embErr *EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, 1, embErr.Chunk)
	assert.Equal(t, 2, embErr.Total)
	assert.ErrorIs(t, err, errModelDown)
	var idxErr *IndexUnavailableError
	assert.False(t, errors.As(err, &idxErr))
	assert.Equal(t, Run{TotalChunks: 2}, run)
}

func TestEmbedAndStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	model := &fakeModel{}
	run, err := NewDedupEmbedder(discardLogger()).EmbedAndStore(ctx, chunksOf("a", "b"), &fakeIndex{}, model)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Run{TotalChunks: 2}, run)
	assert.Zero(t, model.Calls())
}

func TestEmbedAndStore_Empty(t *testing.T) {
	run, err := NewDedupEmbedder(discardLogger()).EmbedAndStore(context.Background(), nil, &fakeIndex{}, &fakeModel{})
	require.NoError(t, err)
	assert.Equal(t, Run{}, run)
}
