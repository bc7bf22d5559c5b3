package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docquery/internal/domain"
	"docquery/internal/vectorstore"
)

type fakeQdrant struct {
	collectionExists bool
	created          bool
	createBody       map[string]any
	searchBody       map[string]any
	deleteBody       map[string]any
	searchResult     []map[string]any
	failures         int
}

func (f *fakeQdrant) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/collections/legal", func(w http.ResponseWriter, r *http.Request) {
		if f.failures > 0 {
			f.failures--
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		switch r.Method {
		case http.MethodGet:
			if !f.collectionExists {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{"points_count": 7},
			})
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&f.createBody))
			f.created = true
			f.collectionExists = true
			w.WriteHeader(http.StatusOK)
		}
	})
	mux.HandleFunc("/collections/legal/points", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"result":{}}`))
	})
	mux.HandleFunc("/collections/legal/points/search", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.searchBody))
		_ = json.NewEncoder(w).Encode(map[string]any{"result": f.searchResult})
	})
	mux.HandleFunc("/collections/legal/points/delete", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.deleteBody))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"result":{}}`))
	})
	return mux
}

func newTestStorage(t *testing.T, f *fakeQdrant) (*Storage, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	s := NewStorage(Config{
		URL:          srv.URL,
		Collection:   "legal",
		Dimension:    4,
		InitInterval: 10 * time.Millisecond,
	})
	return s, srv
}

func TestInitCreatesMissingCollection(t *testing.T) {
	f := &fakeQdrant{}
	s, _ := newTestStorage(t, f)

	require.NoError(t, s.Init(context.Background()))
	assert.True(t, s.IsAvailable())
	assert.True(t, f.created)

	vectors := f.createBody["vectors"].(map[string]any)
	assert.Equal(t, float64(4), vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])
}

func TestInitRecoversWithinRetryBudget(t *testing.T) {
	f := &fakeQdrant{collectionExists: true, failures: 2}
	s, _ := newTestStorage(t, f)

	require.NoError(t, s.Init(context.Background()))
	assert.True(t, s.IsAvailable())
}

func TestInitExhaustionDegradesToUnavailable(t *testing.T) {
	f := &fakeQdrant{failures: 100}
	s, _ := newTestStorage(t, f)

	err := s.Init(context.Background())
	assert.ErrorIs(t, err, vectorstore.ErrUnavailable)
	assert.False(t, s.IsAvailable())

	// Operations on an unavailable store fail fast, they do not panic.
	upErr := s.Upsert(context.Background(), domain.VectorRecord{ID: "x", Vector: []float32{1, 2, 3, 4}})
	assert.ErrorIs(t, upErr, vectorstore.ErrUnavailable)
}

func TestUpsertRejectsDimensionMismatch(t *testing.T) {
	f := &fakeQdrant{collectionExists: true}
	s, _ := newTestStorage(t, f)
	require.NoError(t, s.Init(context.Background()))

	err := s.Upsert(context.Background(), domain.VectorRecord{ID: "doc:0", Vector: []float32{1, 2}})
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
}

func TestSearchRequestShape(t *testing.T) {
	f := &fakeQdrant{
		collectionExists: true,
		searchResult: []map[string]any{
			{"score": 0.91, "payload": map[string]any{
				"record_id": "doc:2", "document_id": "doc", "content": "clause text",
			}},
		},
	}
	s, _ := newTestStorage(t, f)
	require.NoError(t, s.Init(context.Background()))

	results, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, 5, 0.7,
		vectorstore.Filter{domain.MetaDocumentID: "doc"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc:2", results[0].ID)
	assert.InDelta(t, 0.91, results[0].Score, 1e-9)

	assert.Equal(t, true, f.searchBody["with_payload"])
	assert.Equal(t, float64(0.7), f.searchBody["score_threshold"])
	must := f.searchBody["filter"].(map[string]any)["must"].([]any)
	require.Len(t, must, 1)
	clause := must[0].(map[string]any)
	assert.Equal(t, domain.MetaDocumentID, clause["key"])
}

func TestDeleteByFilterTranslates(t *testing.T) {
	f := &fakeQdrant{collectionExists: true}
	s, _ := newTestStorage(t, f)
	require.NoError(t, s.Init(context.Background()))

	require.NoError(t, s.DeleteByFilter(context.Background(), vectorstore.Filter{domain.MetaDocumentID: "doc-9"}))
	must := f.deleteBody["filter"].(map[string]any)["must"].([]any)
	require.Len(t, must, 1)

	assert.Error(t, s.DeleteByFilter(context.Background(), nil))
}

func TestDeleteByIDUsesNumericPoint(t *testing.T) {
	f := &fakeQdrant{collectionExists: true}
	s, _ := newTestStorage(t, f)
	require.NoError(t, s.Init(context.Background()))

	require.NoError(t, s.DeleteByID(context.Background(), "doc:3"))
	points := f.deleteBody["points"].([]any)
	require.Len(t, points, 1)
	assert.Equal(t, float64(vectorstore.PointID("doc:3")), points[0])
}

func TestCollectionInfo(t *testing.T) {
	f := &fakeQdrant{collectionExists: true}
	s, _ := newTestStorage(t, f)
	require.NoError(t, s.Init(context.Background()))

	info, err := s.CollectionInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), info.PointCount)
	assert.Equal(t, "legal", info.Name)
}
