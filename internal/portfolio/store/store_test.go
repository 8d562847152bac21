package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/model"
)

func record(id string, values ...float32) model.VectorRecord {
	c := model.Chunk{ID: id, Text: "text of " + id, Metadata: model.Metadata{Source: model.SourceDatabase}}
	return model.NewVectorRecord(c, values)
}

func TestEnsureIndexIsIdempotent(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	spec := IndexSpec{Name: "portfolio-rag", Dimension: 3}

	created, err := EnsureIndex(ctx, idx, spec)
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, idx.Upsert(ctx, spec.Name, []model.VectorRecord{record("a", 1, 0, 0)}))

	created, err = EnsureIndex(ctx, idx, spec)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, idx.Len(spec.Name), "existing index must be kept")

	_, err = EnsureIndex(ctx, idx, IndexSpec{Name: "x", Dimension: 3, Metric: "euclid"})
	assert.Error(t, err)
}

func TestMemoryIndexUpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	require.NoError(t, idx.CreateIndex(ctx, IndexSpec{Name: "i", Dimension: 2}))

	require.NoError(t, idx.Upsert(ctx, "i", []model.VectorRecord{record("a", 1, 0), record("b", 0, 1)}))
	require.NoError(t, idx.Upsert(ctx, "i", []model.VectorRecord{record("a", 1, 0), record("b", 0, 1)}))

	assert.Equal(t, 2, idx.Len("i"))
}

func TestMemoryIndexQueryOrder(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	require.NoError(t, idx.CreateIndex(ctx, IndexSpec{Name: "i", Dimension: 2}))
	require.NoError(t, idx.Upsert(ctx, "i", []model.VectorRecord{
		record("far", -1, 0),
		record("near", 1, 0.1),
		record("mid", 1, 1),
	}))

	matches, err := idx.Query(ctx, "i", []float32{1, 0}, 2)

	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "near", matches[0].ID)
	assert.Equal(t, "mid", matches[1].ID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
	assert.Equal(t, "text of near", matches[0].Text())
}

func TestMemoryIndexErrors(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	_, err := idx.Query(ctx, "missing", []float32{1}, 1)
	assert.True(t, errors.Is(err, ErrIndexNotFound))

	require.NoError(t, idx.CreateIndex(ctx, IndexSpec{Name: "i", Dimension: 2}))
	err = idx.Upsert(ctx, "i", []model.VectorRecord{record("a", 1, 2, 3)})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
	assert.Equal(t, 0, idx.Len("i"))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 0}))
}

// repairingIndex counts CreateIndex calls, standing in for a backend that
// finishes an incomplete setup on every create.
type repairingIndex struct {
	*MemoryIndex
	creates int
}

func (r *repairingIndex) CreateIndex(ctx context.Context, spec IndexSpec) error {
	r.creates++
	return r.MemoryIndex.CreateIndex(ctx, spec)
}

func TestEnsureIndexRecreatesListedIndex(t *testing.T) {
	ctx := context.Background()
	idx := &repairingIndex{MemoryIndex: NewMemoryIndex()}
	spec := IndexSpec{Name: "portfolio-rag", Dimension: 2}

	created, err := EnsureIndex(ctx, idx, spec)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = EnsureIndex(ctx, idx, spec)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 2, idx.creates, "a listed index must still be handed to the backend")
}
