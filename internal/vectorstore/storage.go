package vectorstore

import (
	"context"
	"errors"

	"docquery/internal/domain"
)

// ErrDimensionMismatch marks an upsert whose vector length differs from the
// store's configured dimension. The single upsert fails; the collection is
// never corrupted by a silently truncated vector.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// ErrUnavailable marks an operation against a store whose initialization
// retries were exhausted.
var ErrUnavailable = errors.New("vector store unavailable")

// State is the store's lifecycle position. Only initialization-time
// connection exhaustion parks a store in StateUnavailable for the process
// lifetime; everything later degrades per-call.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateConnecting    State = "connecting"
	StateAvailable     State = "available"
	StateUnavailable   State = "unavailable"
)

// Filter is a conjunction of exact-match key/value constraints on record
// metadata, translated into each backend's native filter syntax.
type Filter map[string]any

// BatchResult reports how many records of a batch were stored.
type BatchResult struct {
	Stored int
	Total  int
}

// CollectionInfo summarizes the backing collection.
type CollectionInfo struct {
	Name       string
	Dimension  int
	PointCount int64
}

// Storage persists vector records and answers similarity queries.
// Implementations enforce a single dimension per collection and request
// payloads with every search.
type Storage interface {
	// Init drives the uninitialized -> connecting -> available|unavailable
	// transition with a bounded retry budget. It is idempotent.
	Init(ctx context.Context) error
	IsAvailable() bool
	Upsert(ctx context.Context, rec domain.VectorRecord) error
	UpsertBatch(ctx context.Context, recs []domain.VectorRecord) (BatchResult, error)
	// Search returns matches with score >= scoreThreshold, best first.
	Search(ctx context.Context, vector []float32, topK int, scoreThreshold float64, filter Filter) ([]domain.SearchResult, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByFilter(ctx context.Context, filter Filter) error
	CollectionInfo(ctx context.Context) (CollectionInfo, error)
}

// PointID derives a stable non-negative numeric identifier from a logical
// string id, for backends that require numeric point ids. Polynomial hash
// masked to 32 bits, absolute value, so the same logical id always maps to
// the same point.
func PointID(id string) uint64 {
	var h int64
	for _, c := range id {
		h = (h*31 + int64(c)) & 0xFFFFFFFF
	}
	v := int64(int32(h))
	if v < 0 {
		v = -v
	}
	return uint64(v)
}
