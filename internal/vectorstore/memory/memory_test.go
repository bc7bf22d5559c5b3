package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docquery/internal/domain"
	"docquery/internal/vectorstore"
)

func record(id, docID string, vec []float32) domain.VectorRecord {
	return domain.VectorRecord{
		ID:     id,
		Vector: vec,
		Metadata: map[string]any{
			domain.MetaDocumentID: docID,
			domain.MetaContent:    "content of " + id,
		},
	}
}

func newStore(t *testing.T, dim int) *Storage {
	t.Helper()
	s := NewStorage(dim)
	require.NoError(t, s.Init(context.Background()))
	require.True(t, s.IsAvailable())
	return s
}

func TestUpsertDimensionMismatch(t *testing.T) {
	s := newStore(t, 4)
	err := s.Upsert(context.Background(), record("a:0", "a", []float32{1, 2}))
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)

	info, err := s.CollectionInfo(context.Background())
	require.NoError(t, err)
	assert.Zero(t, info.PointCount, "failed upsert must not corrupt the collection")
}

func TestUpsertBatchCountsFailures(t *testing.T) {
	s := newStore(t, 2)
	res, err := s.UpsertBatch(context.Background(), []domain.VectorRecord{
		record("a:0", "a", []float32{1, 0}),
		record("a:1", "a", []float32{1}),
		record("a:2", "a", []float32{0, 1}),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Stored)
}

func TestSearchOrdersByScore(t *testing.T) {
	s := newStore(t, 2)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, record("a:0", "a", []float32{1, 0})))
	require.NoError(t, s.Upsert(ctx, record("a:1", "a", []float32{0.9, 0.1})))
	require.NoError(t, s.Upsert(ctx, record("a:2", "a", []float32{0, 1})))

	results, err := s.Search(ctx, []float32{1, 0}, 10, -1, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "a:0", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	assert.GreaterOrEqual(t, results[1].Score, results[2].Score)
}

func TestSearchThresholdMonotonicity(t *testing.T) {
	s := newStore(t, 2)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, record("a:0", "a", []float32{1, 0})))
	require.NoError(t, s.Upsert(ctx, record("a:1", "a", []float32{0.7, 0.7})))
	require.NoError(t, s.Upsert(ctx, record("a:2", "a", []float32{0, 1})))

	query := []float32{1, 0}
	prev := -1
	for _, threshold := range []float64{0.0, 0.5, 0.8, 0.99, 1.01} {
		results, err := s.Search(ctx, query, 10, threshold, nil)
		require.NoError(t, err)
		if prev >= 0 {
			assert.LessOrEqual(t, len(results), prev,
				"raising the threshold must never increase result count")
		}
		prev = len(results)
	}
}

func TestSearchFilterConjunction(t *testing.T) {
	s := newStore(t, 2)
	ctx := context.Background()
	recA := record("a:0", "a", []float32{1, 0})
	recA.Metadata[domain.MetaUserID] = "u1"
	recB := record("b:0", "b", []float32{1, 0})
	recB.Metadata[domain.MetaUserID] = "u2"
	require.NoError(t, s.Upsert(ctx, recA))
	require.NoError(t, s.Upsert(ctx, recB))

	results, err := s.Search(ctx, []float32{1, 0}, 10, 0,
		vectorstore.Filter{domain.MetaDocumentID: "a", domain.MetaUserID: "u1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a:0", results[0].ID)

	results, err = s.Search(ctx, []float32{1, 0}, 10, 0,
		vectorstore.Filter{domain.MetaDocumentID: "a", domain.MetaUserID: "u2"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDeleteByFilterCompleteness(t *testing.T) {
	s := newStore(t, 2)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, record("a:0", "a", []float32{1, 0})))
	require.NoError(t, s.Upsert(ctx, record("a:1", "a", []float32{0, 1})))
	require.NoError(t, s.Upsert(ctx, record("b:0", "b", []float32{1, 0})))

	require.NoError(t, s.DeleteByFilter(ctx, vectorstore.Filter{domain.MetaDocumentID: "a"}))

	results, err := s.Search(ctx, []float32{1, 0}, 10, -1, vectorstore.Filter{domain.MetaDocumentID: "a"})
	require.NoError(t, err)
	assert.Empty(t, results)

	info, err := s.CollectionInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.PointCount)
}

func TestDeleteByID(t *testing.T) {
	s := newStore(t, 2)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, record("a:0", "a", []float32{1, 0})))
	require.NoError(t, s.DeleteByID(ctx, "a:0"))
	results, err := s.Search(ctx, []float32{1, 0}, 10, -1, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
