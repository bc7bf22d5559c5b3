package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"docquery/internal/domain"
	"docquery/internal/vectorstore"
)

// Storage is an in-memory vector store using brute-force cosine similarity.
// It backs tests and offline runs; the remote backends share its contract.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]domain.VectorRecord
	state     vectorstore.State
}

func NewStorage(dimension int) *Storage {
	return &Storage{
		dimension: dimension,
		records:   make(map[string]domain.VectorRecord),
		state:     vectorstore.StateUninitialized,
	}
}

func (s *Storage) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension <= 0 {
		s.state = vectorstore.StateUnavailable
		return fmt.Errorf("invalid dimension %d", s.dimension)
	}
	s.state = vectorstore.StateAvailable
	return nil
}

func (s *Storage) IsAvailable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == vectorstore.StateAvailable
}

func (s *Storage) Upsert(_ context.Context, rec domain.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(rec.Vector) != s.dimension {
		return fmt.Errorf("%w: got %d, want %d", vectorstore.ErrDimensionMismatch, len(rec.Vector), s.dimension)
	}
	s.records[rec.ID] = rec
	return nil
}

func (s *Storage) UpsertBatch(ctx context.Context, recs []domain.VectorRecord) (vectorstore.BatchResult, error) {
	res := vectorstore.BatchResult{Total: len(recs)}
	for _, rec := range recs {
		if err := s.Upsert(ctx, rec); err != nil {
			continue
		}
		res.Stored++
	}
	return res, nil
}

func (s *Storage) Search(_ context.Context, vector []float32, topK int, scoreThreshold float64, filter vectorstore.Filter) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	results := make([]domain.SearchResult, 0)
	for _, rec := range s.records {
		if !matches(rec.Metadata, filter) {
			continue
		}
		score := cosine(rec.Vector, vector)
		if score < scoreThreshold {
			continue
		}
		results = append(results, domain.SearchResult{ID: rec.ID, Score: score, Metadata: rec.Metadata})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *Storage) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *Storage) DeleteByFilter(_ context.Context, filter vectorstore.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.records {
		if matches(rec.Metadata, filter) {
			delete(s.records, id)
		}
	}
	return nil
}

func (s *Storage) CollectionInfo(_ context.Context) (vectorstore.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return vectorstore.CollectionInfo{
		Name:       "memory",
		Dimension:  s.dimension,
		PointCount: int64(len(s.records)),
	}, nil
}

func matches(metadata map[string]any, filter vectorstore.Filter) bool {
	for k, want := range filter {
		if metadata[k] != want {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
