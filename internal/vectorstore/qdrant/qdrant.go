package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"docquery/internal/domain"
	"docquery/internal/vectorstore"
)

// payloadRecordID carries the logical string id inside the point payload,
// since Qdrant points are addressed by the derived numeric id.
const payloadRecordID = "record_id"

// Config configures the Qdrant-backed store.
type Config struct {
	URL          string
	APIKey       string
	Collection   string
	Dimension    int
	Timeout      time.Duration
	InitRetries  uint64
	InitInterval time.Duration
	Logger       *slog.Logger
}

// Storage is a minimal REST client to a self-hosted Qdrant instance. The
// collection is created lazily on first use with cosine distance and the
// configured dimension.
type Storage struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger

	mu    sync.RWMutex
	state vectorstore.State
}

func NewStorage(cfg Config) *Storage {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
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
		client: &http.Client{Timeout: cfg.Timeout},
		logger: cfg.Logger,
		state:  vectorstore.StateUninitialized,
	}
}

// Init ensures the collection exists, retrying with a fixed delay. Retry
// exhaustion parks the store in the unavailable state instead of crashing
// the process; callers check IsAvailable before depending on it.
func (s *Storage) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.state == vectorstore.StateAvailable {
		s.mu.Unlock()
		return nil
	}
	if s.cfg.Dimension <= 0 {
		s.state = vectorstore.StateUnavailable
		s.mu.Unlock()
		return fmt.Errorf("invalid dimension %d", s.cfg.Dimension)
	}
	s.state = vectorstore.StateConnecting
	s.mu.Unlock()

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.cfg.InitInterval), s.cfg.InitRetries),
		ctx,
	)
	err := backoff.Retry(func() error { return s.ensureCollection(ctx) }, policy)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = vectorstore.StateUnavailable
		s.logger.Error("qdrant initialization failed, store unavailable", "error", err)
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

func (s *Storage) ensureCollection(ctx context.Context) error {
	status, _, err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil)
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		return nil
	}
	if status != http.StatusNotFound {
		return fmt.Errorf("collection check: status %d", status)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.cfg.Dimension,
			"distance": "Cosine",
		},
	}
	status, _, err = s.do(ctx, http.MethodPut, s.collectionURL(""), body)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("create collection: status %d", status)
	}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, rec domain.VectorRecord) error {
	_, err := s.upsertPoints(ctx, []domain.VectorRecord{rec})
	return err
}

func (s *Storage) UpsertBatch(ctx context.Context, recs []domain.VectorRecord) (vectorstore.BatchResult, error) {
	res := vectorstore.BatchResult{Total: len(recs)}
	if len(recs) == 0 {
		return res, nil
	}
	stored, err := s.upsertPoints(ctx, recs)
	res.Stored = stored
	return res, err
}

func (s *Storage) upsertPoints(ctx context.Context, recs []domain.VectorRecord) (int, error) {
	if !s.IsAvailable() {
		return 0, vectorstore.ErrUnavailable
	}
	for _, rec := range recs {
		if len(rec.Vector) != s.cfg.Dimension {
			return 0, fmt.Errorf("%w: got %d, want %d",
				vectorstore.ErrDimensionMismatch, len(rec.Vector), s.cfg.Dimension)
		}
	}
	points := make([]map[string]any, len(recs))
	for i, rec := range recs {
		payload := make(map[string]any, len(rec.Metadata)+1)
		for k, v := range rec.Metadata {
			payload[k] = v
		}
		payload[payloadRecordID] = rec.ID
		points[i] = map[string]any{
			"id":      vectorstore.PointID(rec.ID),
			"vector":  rec.Vector,
			"payload": payload,
		}
	}
	status, _, err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), map[string]any{"points": points})
	if err != nil {
		if isTimeout(err) {
			s.logger.Warn("qdrant upsert timed out", "points", len(recs))
			return 0, fmt.Errorf("upsert timeout: %w", err)
		}
		return 0, err
	}
	if status >= 300 {
		return 0, fmt.Errorf("qdrant upsert: status %d", status)
	}
	return len(recs), nil
}

// Search always requests payloads and applies the score threshold
// server-side. A timeout degrades to an empty result set so one slow call
// cannot stall the query pipeline.
func (s *Storage) Search(ctx context.Context, vector []float32, topK int, scoreThreshold float64, filter vectorstore.Filter) ([]domain.SearchResult, error) {
	if !s.IsAvailable() {
		return nil, vectorstore.ErrUnavailable
	}
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if scoreThreshold > 0 {
		req["score_threshold"] = scoreThreshold
	}
	if f := translateFilter(filter); f != nil {
		req["filter"] = f
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	status, body, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req)
	if err != nil {
		if isTimeout(err) {
			s.logger.Warn("qdrant search timed out, returning no results")
			return nil, nil
		}
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("qdrant search: status %d", status)
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("qdrant search decode: %w", err)
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		id, _ := r.Payload[payloadRecordID].(string)
		results = append(results, domain.SearchResult{ID: id, Score: r.Score, Metadata: r.Payload})
	}
	return results, nil
}

func (s *Storage) DeleteByID(ctx context.Context, id string) error {
	if !s.IsAvailable() {
		return vectorstore.ErrUnavailable
	}
	body := map[string]any{"points": []uint64{vectorstore.PointID(id)}}
	status, _, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/delete?wait=true"), body)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("qdrant delete: status %d", status)
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
	status, _, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/delete?wait=true"), map[string]any{"filter": f})
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("qdrant delete by filter: status %d", status)
	}
	return nil
}

func (s *Storage) CollectionInfo(ctx context.Context) (vectorstore.CollectionInfo, error) {
	info := vectorstore.CollectionInfo{Name: s.cfg.Collection, Dimension: s.cfg.Dimension}
	if !s.IsAvailable() {
		return info, vectorstore.ErrUnavailable
	}
	var resp struct {
		Result struct {
			PointsCount int64 `json:"points_count"`
		} `json:"result"`
	}
	status, body, err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil)
	if err != nil {
		return info, err
	}
	if status >= 300 {
		return info, fmt.Errorf("qdrant collection info: status %d", status)
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return info, err
	}
	info.PointCount = resp.Result.PointsCount
	return info, nil
}

// translateFilter maps the exact-match conjunction into Qdrant's must/match
// syntax.
func translateFilter(filter vectorstore.Filter) map[string]any {
	if len(filter) == 0 {
		return nil
	}
	must := make([]map[string]any, 0, len(filter))
	for k, v := range filter {
		must = append(must, map[string]any{
			"key":   k,
			"match": map[string]any{"value": v},
		})
	}
	return map[string]any{"must": must}
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.cfg.URL, s.cfg.Collection, suffix)
}

func (s *Storage) do(ctx context.Context, method, url string, body any) (int, []byte, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}
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
