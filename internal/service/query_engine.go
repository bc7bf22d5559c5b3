package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"docquery/internal/domain"
	"docquery/internal/vectorstore"
)

// Confidence levels of the fallback chain, best outcome first.
const (
	fallbackConfidence = 0.6
	genericConfidence  = 0.3
	failureConfidence  = 0.1
)

const (
	// sourceContentLimit truncates source excerpts returned to callers.
	sourceContentLimit = 200

	apologyText = "I apologize, but I'm having trouble answering that right now. Please try again."
)

// Config tunes the engine. Zero values fall back to the documented defaults.
type Config struct {
	ChunkSize        int
	ChunkOverlap     int
	MaxResults       int
	MinSimilarity    float64
	SummarySentences int
}

func (c *Config) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1000
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = 200
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 5
	}
	if c.MinSimilarity <= 0 {
		c.MinSimilarity = 0.7
	}
	if c.SummarySentences <= 0 {
		c.SummarySentences = 3
	}
}

// Engine composes the chunker, embedder and vector store at ingest time and
// answers queries with generation grounded in retrieved context. Query
// answering never returns an error to its caller: every failure degrades to
// a lower-confidence answer.
type Engine struct {
	chunker    domain.Chunker
	embedder   domain.Embedder
	store      vectorstore.Storage
	generator  domain.Generator
	documents  domain.DocumentLookup
	summarizer domain.Summarizer
	cfg        Config
	logger     *slog.Logger
}

func NewEngine(
	chunker domain.Chunker,
	embedder domain.Embedder,
	store vectorstore.Storage,
	generator domain.Generator,
	documents domain.DocumentLookup,
	summarizer domain.Summarizer,
	cfg Config,
	logger *slog.Logger,
) *Engine {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		chunker:    chunker,
		embedder:   embedder,
		store:      store,
		generator:  generator,
		documents:  documents,
		summarizer: summarizer,
		cfg:        cfg,
		logger:     logger,
	}
}

// ProcessDocument chunks content, embeds each chunk and upserts the result
// tagged with the document id. Individual chunk failures are counted and
// skipped; they never abort the rest of the document.
func (e *Engine) ProcessDocument(ctx context.Context, documentID, content string, metadata map[string]any) (domain.IngestResult, error) {
	result := domain.IngestResult{DocumentID: documentID}

	chunks, err := e.chunker.Chunk(content, e.cfg.ChunkSize, e.cfg.ChunkOverlap)
	if err != nil {
		return result, fmt.Errorf("chunk document %s: %w", documentID, err)
	}
	result.TotalChunks = len(chunks)
	if len(chunks) == 0 {
		e.logger.Info("document produced no chunks", "document_id", documentID, "chars", len(content))
		return result, nil
	}
	if !e.store.IsAvailable() {
		return result, fmt.Errorf("process document %s: %w", documentID, vectorstore.ErrUnavailable)
	}

	createdAt := time.Now().UTC().Format(time.RFC3339)
	for _, chunk := range chunks {
		emb, err := e.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			e.logger.Warn("chunk embedding failed, skipping",
				"document_id", documentID, "chunk_index", chunk.SequenceIndex, "error", err)
			result.Failed++
			continue
		}
		rec := domain.VectorRecord{
			ID:       recordID(documentID, chunk.SequenceIndex),
			Vector:   emb.Values,
			Metadata: recordMetadata(documentID, chunk, metadata, createdAt),
		}
		if err := e.store.Upsert(ctx, rec); err != nil {
			e.logger.Warn("chunk upsert failed, skipping",
				"document_id", documentID, "chunk_index", chunk.SequenceIndex, "error", err)
			result.Failed++
			continue
		}
		result.ProcessedChunks++
	}

	if e.summarizer != nil {
		if summary, err := e.summarizer.Summarize(content, e.cfg.SummarySentences); err == nil {
			result.Summary = summary
		}
	}
	e.logger.Info("document processed",
		"document_id", documentID,
		"total", result.TotalChunks,
		"stored", result.ProcessedChunks,
		"failed", result.Failed)
	return result, nil
}

// QueryDocuments answers a query with the best available strategy:
// retrieval-grounded generation, full-document fallback, generic fallback,
// and finally a static low-confidence apology.
func (e *Engine) QueryDocuments(ctx context.Context, query string, opts domain.QueryOptions) domain.QueryAnswer {
	start := time.Now()
	if opts.MaxResults <= 0 {
		opts.MaxResults = e.cfg.MaxResults
	}
	if opts.MinSimilarity <= 0 {
		opts.MinSimilarity = e.cfg.MinSimilarity
	}

	if results := e.retrieve(ctx, query, opts); len(results) > 0 {
		return e.answerFromChunks(ctx, start, query, results)
	}
	if opts.DocumentID != "" {
		if answer, ok := e.answerFromDocument(ctx, start, query, opts.DocumentID); ok {
			return answer
		}
	}
	return e.answerGeneric(ctx, start, query)
}

// DeleteDocumentVectors removes every vector tagged with the document id.
func (e *Engine) DeleteDocumentVectors(ctx context.Context, documentID string) bool {
	if !e.store.IsAvailable() {
		return false
	}
	if err := e.store.DeleteByFilter(ctx, vectorstore.Filter{domain.MetaDocumentID: documentID}); err != nil {
		e.logger.Warn("vector deletion failed", "document_id", documentID, "error", err)
		return false
	}
	e.logger.Info("document vectors deleted", "document_id", documentID)
	return true
}

func (e *Engine) retrieve(ctx context.Context, query string, opts domain.QueryOptions) []domain.SearchResult {
	if !e.store.IsAvailable() {
		e.logger.Warn("vector store unavailable, skipping retrieval")
		return nil
	}
	emb, err := e.embedder.Embed(ctx, query)
	if err != nil {
		e.logger.Warn("query embedding failed, skipping retrieval", "error", err)
		return nil
	}
	filter := vectorstore.Filter{}
	if opts.DocumentID != "" {
		filter[domain.MetaDocumentID] = opts.DocumentID
	}
	if opts.UserID != "" {
		filter[domain.MetaUserID] = opts.UserID
	}
	results, err := e.store.Search(ctx, emb.Values, opts.MaxResults, opts.MinSimilarity, filter)
	if err != nil {
		e.logger.Warn("vector search failed, falling back", "error", err)
		return nil
	}
	// Context is assembled best-evidence-first regardless of chunk order.
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	kept := results[:0]
	for _, r := range results {
		if r.Score >= opts.MinSimilarity {
			kept = append(kept, r)
		}
	}
	return kept
}

func (e *Engine) answerFromChunks(ctx context.Context, start time.Time, query string, results []domain.SearchResult) domain.QueryAnswer {
	var ctxParts []string
	sources := make([]domain.Source, 0, len(results))
	var sum, max float64
	for _, r := range results {
		content, _ := r.Metadata[domain.MetaContent].(string)
		ctxParts = append(ctxParts, content)
		docID, _ := r.Metadata[domain.MetaDocumentID].(string)
		sources = append(sources, domain.Source{
			ID:         r.ID,
			DocumentID: docID,
			ChunkIndex: metaInt(r.Metadata[domain.MetaChunkIndex]),
			Content:    truncate(content, sourceContentLimit),
			Score:      round2(r.Score),
		})
		sum += r.Score
		if r.Score > max {
			max = r.Score
		}
	}
	mean := sum / float64(len(results))
	confidence := round2(0.7*mean + 0.3*max)

	prompt := groundedPrompt(query, strings.Join(ctxParts, "\n\n---\n\n"))
	response, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return e.apologize(start, err)
	}
	return domain.QueryAnswer{
		Response:         response,
		Sources:          sources,
		Confidence:       confidence,
		ProcessingTimeMs: elapsedMs(start),
	}
}

func (e *Engine) answerFromDocument(ctx context.Context, start time.Time, query, documentID string) (domain.QueryAnswer, bool) {
	if e.documents == nil {
		return domain.QueryAnswer{}, false
	}
	doc, err := e.documents.GetDocumentByID(ctx, documentID)
	if err != nil || doc == nil || strings.TrimSpace(doc.ExtractedText) == "" {
		return domain.QueryAnswer{}, false
	}
	e.logger.Info("retrieval empty, using full document text", "document_id", documentID)

	response, err := e.generator.Generate(ctx, groundedPrompt(query, doc.ExtractedText))
	if err != nil {
		return e.apologize(start, err), true
	}
	source := domain.Source{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Content:    truncate(doc.ExtractedText, sourceContentLimit),
		Fallback:   true,
	}
	return domain.QueryAnswer{
		Response:         response,
		Sources:          []domain.Source{source},
		Confidence:       fallbackConfidence,
		ProcessingTimeMs: elapsedMs(start),
	}, true
}

func (e *Engine) answerGeneric(ctx context.Context, start time.Time, query string) domain.QueryAnswer {
	response, err := e.generator.Generate(ctx, genericPrompt(query))
	if err != nil {
		return e.apologize(start, err)
	}
	return domain.QueryAnswer{
		Response:         response,
		Confidence:       genericConfidence,
		ProcessingTimeMs: elapsedMs(start),
	}
}

func (e *Engine) apologize(start time.Time, err error) domain.QueryAnswer {
	e.logger.Error("generation failed, returning static answer", "error", err)
	return domain.QueryAnswer{
		Response:         apologyText,
		Confidence:       failureConfidence,
		ProcessingTimeMs: elapsedMs(start),
	}
}

func groundedPrompt(query, context string) string {
	return "You are a document assistant. Answer the question using only the " +
		"context below. Do not invent facts that are not in the context; if the " +
		"context does not contain the answer, say so.\n\nContext:\n" + context +
		"\n\nQuestion: " + query
}

func genericPrompt(query string) string {
	return "You are a helpful document assistant. No document context is " +
		"available for this question, so answer from general knowledge and say " +
		"that no document was consulted.\n\nQuestion: " + query
}

func recordID(documentID string, chunkIndex int) string {
	return documentID + ":" + strconv.Itoa(chunkIndex)
}

func recordMetadata(documentID string, chunk domain.Chunk, caller map[string]any, createdAt string) map[string]any {
	md := make(map[string]any, len(caller)+4)
	for k, v := range caller {
		md[k] = v
	}
	md[domain.MetaDocumentID] = documentID
	md[domain.MetaChunkIndex] = chunk.SequenceIndex
	md[domain.MetaContent] = chunk.Text
	md[domain.MetaCreatedAt] = createdAt
	return md
}

func metaInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
