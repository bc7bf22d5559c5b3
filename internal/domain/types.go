package domain

import "time"

// Chunk is a bounded contiguous segment of a document's text. Offsets are
// byte positions into the original text; consecutive chunks of one document
// overlap to preserve context across boundaries.
type Chunk struct {
	Text          string
	SequenceIndex int
	StartOffset   int
	EndOffset     int
}

// Embedding is a fixed-length vector representation of a piece of text.
type Embedding struct {
	Values     []float32
	Dimensions int
	Provider   string
	Model      string
}

// VectorRecord is the unit persisted in a vector store: a chunk's vector
// plus the payload needed to reconstruct context at query time.
type VectorRecord struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

// Well-known metadata keys carried on every ingested record.
const (
	MetaDocumentID = "document_id"
	MetaChunkIndex = "chunk_index"
	MetaContent    = "content"
	MetaCreatedAt  = "created_at"
	MetaUserID     = "user_id"
)

// SearchResult is a single similarity match. Score is cosine similarity
// in [-1, 1].
type SearchResult struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// Source describes one piece of evidence behind a generated answer.
// Fallback marks a synthetic source produced when retrieval found nothing
// and the full document text was used instead.
type Source struct {
	ID         string
	DocumentID string
	ChunkIndex int
	Content    string
	Score      float64
	Fallback   bool
}

// QueryAnswer is the result of answering one query. It is always populated,
// even when every retrieval strategy failed.
type QueryAnswer struct {
	Response         string
	Sources          []Source
	Confidence       float64
	ProcessingTimeMs int64
}

// QueryOptions narrow and tune a single query.
type QueryOptions struct {
	DocumentID    string
	UserID        string
	MaxResults    int
	MinSimilarity float64
}

// IngestResult reports what happened to one document during ingestion.
type IngestResult struct {
	DocumentID      string
	TotalChunks     int
	ProcessedChunks int
	Failed          int
	Summary         string
}

// Document is the metadata-store view of an ingested document, used by the
// full-document fallback path.
type Document struct {
	ID            string
	Name          string
	ExtractedText string
	CreatedAt     time.Time
}
