package domain

import "context"

// Chunker splits document text into bounded, overlapping chunks.
type Chunker interface {
	Chunk(text string, size, overlap int) ([]Chunk, error)
}

// Embedder converts free text into fixed-dimension vectors. EmbedBatch
// returns a slice aligned with its input; a nil element marks a per-item
// failure that did not abort its siblings.
type Embedder interface {
	Embed(ctx context.Context, text string) (*Embedding, error)
	EmbedBatch(ctx context.Context, texts []string) []*Embedding
	Dimension() int
}

// Generator is the external text-generation capability.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DocumentLookup is the external document-metadata capability consumed by
// the full-document fallback path.
type DocumentLookup interface {
	GetDocumentByID(ctx context.Context, id string) (*Document, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// QueryEngine defines the operations exposed by the application core.
type QueryEngine interface {
	ProcessDocument(ctx context.Context, documentID, content string, metadata map[string]any) (IngestResult, error)
	QueryDocuments(ctx context.Context, query string, opts QueryOptions) QueryAnswer
	DeleteDocumentVectors(ctx context.Context, documentID string) bool
}
