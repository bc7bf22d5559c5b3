package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"docquery/internal/domain"
	"docquery/internal/vectorstore"
)

// Config configures the Pinecone-backed store. IndexHost is the data-plane
// host of an index that must already exist; the store never creates it.
type Config struct {
	IndexHost    string
	APIKeyEnv    string
	Namespace    string
	Dimension    int
	Timeout      time.Duration
	InitRetries  uint64
	InitInterval time.Duration
	Logger       *slog.Logger
}

// Storage is a minimal REST client to a managed Pinecone index. Dimension
// mismatches are rejected client-side before any network call, rather than
// relying on the remote to reject them.
type Storage struct {
	cfg    Config
	apiKey string
	client *http.Client
	logger *slog.Logger

	mu    sync.RWMutex
	state vectorstore.State
}

func NewStorage(cfg Config) (*Storage, error) {
	if cfg.IndexHost == "" {
		return nil, errors.New("pinecone index host is required")
	}
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "PINECONE_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitRetries == 0 {
		cfg.InitRetries = 3
	}
	if cfg.InitInterval == 0 {
		cfg.InitInterval = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Storage{
		cfg:    cfg,
		apiKey: key,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: cfg.Logger,
		state:  vectorstore.StateUninitialized,
	}, nil
}

// Init verifies the index is reachable and its dimension matches the
// configured one. The index is managed; it is never created here.
func (s *Storage) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.state == vectorstore.StateAvailable {
		s.mu.Unlock()
		return nil
	}
	s.state = vectorstore.StateConnecting
	s.mu.Unlock()

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.cfg.InitInterval), s.cfg.InitRetries),
		ctx,
	)
	err := backoff.Retry(func() error { return s.checkIndex(ctx) }, policy)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = vectorstore.StateUnavailable
		s.logger.Error("pinecone initialization failed, store unavailable", "error", err)
		return fmt.Errorf("%w: %v", vectorstore.ErrUnavailable, err)
	}
	s.state = vectorstore.StateAvailable
	return nil
}

func (s *Storage) IsAvailable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == vectorstore.StateAvailable
}

func (s *Storage) checkIndex(ctx context.Context) error {
	var stats struct {
		Dimension int `json:"dimension"`
	}
	status, body, err := s.do(ctx, "/describe_index_stats", map[string]any{})
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("describe index: status %d", status)
	}
	if err := json.Unmarshal(body, &stats); err != nil {
		return err
	}
	if stats.Dimension != 0 && stats.Dimension != s.cfg.Dimension {
		// Permanent config error, pointless to retry.
		return backoff.Permanent(fmt.Errorf("%w: index has %d, configured %d",
			vectorstore.ErrDimensionMismatch, stats.Dimension, s.cfg.Dimension))
	}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, rec domain.VectorRecord) error {
	res, err := s.UpsertBatch(ctx, []domain.VectorRecord{rec})
	if err != nil {
		return err
	}
	if res.Stored != 1 {
		return errors.New("pinecone upsert: record not stored")
	}
	return nil
}

func (s *Storage) UpsertBatch(ctx context.Context, recs []domain.VectorRecord) (vectorstore.BatchResult, error) {
	res := vectorstore.BatchResult{Total: len(recs)}
	if len(recs) == 0 {
		return res, nil
	}
	if !s.IsAvailable() {
		return res, vectorstore.ErrUnavailable
	}
	for _, rec := range recs {
		if len(rec.Vector) != s.cfg.Dimension {
			return res, fmt.Errorf("%w: got %d, want %d",
				vectorstore.ErrDimensionMismatch, len(rec.Vector), s.cfg.Dimension)
		}
	}
	vectors := make([]map[string]any, len(recs))
	for i, rec := range recs {
		vectors[i] = map[string]any{
			"id":       rec.ID,
			"values":   rec.Vector,
			"metadata": rec.Metadata,
		}
	}
	body := map[string]any{"vectors": vectors}
	if s.cfg.Namespace != "" {
		body["namespace"] = s.cfg.Namespace
	}
	status, _, err := s.do(ctx, "/vectors/upsert", body)
	if err != nil {
		if isTimeout(err) {
			s.logger.Warn("pinecone upsert timed out", "vectors", len(recs))
			return res, fmt.Errorf("upsert timeout: %w", err)
		}
		return res, err
	}
	if status >= 300 {
		return res, fmt.Errorf("pinecone upsert: status %d", status)
	}
	res.Stored = len(recs)
	return res, nil
}

// Search requests metadata with every match. Pinecone has no server-side
// score floor, so the threshold is applied client-side.
func (s *Storage) Search(ctx context.Context, vector []float32, topK int, scoreThreshold float64, filter vectorstore.Filter) ([]domain.SearchResult, error) {
	if !s.IsAvailable() {
		return nil, vectorstore.ErrUnavailable
	}
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": true,
	}
	if s.cfg.Namespace != "" {
		req["namespace"] = s.cfg.Namespace
	}
	if f := translateFilter(filter); f != nil {
		req["filter"] = f
	}
	var resp struct {
		Matches []struct {
			ID       string         `json:"id"`
			Score    float64        `json:"score"`
			Metadata map[string]any `json:"metadata"`
		} `json:"matches"`
	}
	status, body, err := s.do(ctx, "/query", req)
	if err != nil {
		if isTimeout(err) {
			s.logger.Warn("pinecone query timed out, returning no results")
			return nil, nil
		}
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("pinecone query: status %d", status)
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("pinecone query decode: %w", err)
	}
	results := make([]domain.SearchResult, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m.Score < scoreThreshold {
			continue
		}
		results = append(results, domain.SearchResult{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return results, nil
}

func (s *Storage) DeleteByID(ctx context.Context, id string) error {
	if !s.IsAvailable() {
		return vectorstore.ErrUnavailable
	}
	body := map[string]any{"ids": []string{id}}
	if s.cfg.Namespace != "" {
		body["namespace"] = s.cfg.Namespace
	}
	status, _, err := s.do(ctx, "/vectors/delete", body)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("pinecone delete: status %d", status)
	}
	return nil
}

func (s *Storage) DeleteByFilter(ctx context.Context, filter vectorstore.Filter) error {
	if !s.IsAvailable() {
		return vectorstore.ErrUnavailable
	}
	f := translateFilter(filter)
	if f == nil {
		return errors.New("refusing filter delete with empty filter")
	}
	body := map[string]any{"filter": f}
	if s.cfg.Namespace != "" {
		body["namespace"] = s.cfg.Namespace
	}
	status, _, err := s.do(ctx, "/vectors/delete", body)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("pinecone delete by filter: status %d", status)
	}
	return nil
}

func (s *Storage) CollectionInfo(ctx context.Context) (vectorstore.CollectionInfo, error) {
	info := vectorstore.CollectionInfo{Name: s.cfg.Namespace, Dimension: s.cfg.Dimension}
	if !s.IsAvailable() {
		return info, vectorstore.ErrUnavailable
	}
	var resp struct {
		TotalVectorCount int64 `json:"totalVectorCount"`
	}
	status, body, err := s.do(ctx, "/describe_index_stats", map[string]any{})
	if err != nil {
		return info, err
	}
	if status >= 300 {
		return info, fmt.Errorf("pinecone describe: status %d", status)
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return info, err
	}
	info.PointCount = resp.TotalVectorCount
	return info, nil
}

// translateFilter maps the exact-match conjunction into Pinecone's
// $eq metadata filter syntax.
func translateFilter(filter vectorstore.Filter) map[string]any {
	if len(filter) == 0 {
		return nil
	}
	out := make(map[string]any, len(filter))
	for k, v := range filter {
		out[k] = map[string]any{"$eq": v}
	}
	return out
}

func (s *Storage) do(ctx context.Context, path string, body any) (int, []byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.IndexHost+path, bytes.NewReader(data))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", s.apiKey)
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, buf.Bytes(), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
