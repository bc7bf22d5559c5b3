package chunker

import (
	"fmt"
	"log/slog"
	"strings"

	"docquery/internal/domain"
	"docquery/internal/tokenizer"
)

const (
	// DefaultMinChars is the minimum trimmed length below which text
	// produces no chunks at all.
	DefaultMinChars = 50
	// DefaultMaxChunks caps how many chunks a single document may produce.
	DefaultMaxChunks = 500

	// CharsPerToken converts a token budget to character bounds when the
	// char splitter stands in for the token splitter.
	CharsPerToken = 4
	// snapFraction is how far into a char window sentence snapping starts.
	snapFraction = 0.7
)

// Options tune chunk filtering shared by both chunker implementations.
type Options struct {
	MinChars  int
	MaxChunks int
	Logger    *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.MinChars <= 0 {
		o.MinChars = DefaultMinChars
	}
	if o.MaxChunks <= 0 {
		o.MaxChunks = DefaultMaxChunks
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

func validate(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("overlap must be in [0, size), got %d with size %d", overlap, size)
	}
	return nil
}

// span is a half-open byte range into the source text.
type span struct {
	start, end int
}

// finish filters degenerate spans, caps the total count and assigns
// contiguous sequence indexes. Capping is a deliberate information-loss
// policy for pathologically large documents, so it is logged.
func finish(text string, spans []span, opts Options) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(spans))
	for _, sp := range spans {
		piece := text[sp.start:sp.end]
		if len(strings.TrimSpace(piece)) < opts.MinChars {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			Text:          piece,
			SequenceIndex: len(chunks),
			StartOffset:   sp.start,
			EndOffset:     sp.end,
		})
	}
	if len(chunks) > opts.MaxChunks {
		opts.Logger.Warn("chunk count exceeds maximum, truncating tail",
			"total", len(chunks), "max", opts.MaxChunks)
		chunks = chunks[:opts.MaxChunks]
	}
	return chunks
}

// TokenChunker slides a fixed-size token window over the text, advancing by
// size-overlap tokens each step. Decoded windows keep the original bytes, so
// offsets are exact.
type TokenChunker struct {
	tok  *tokenizer.Tokenizer
	opts Options
}

func NewTokenChunker(opts Options) *TokenChunker {
	opts.applyDefaults()
	return &TokenChunker{tok: tokenizer.New(), opts: opts}
}

func (c *TokenChunker) Chunk(text string, size, overlap int) ([]domain.Chunk, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(text)) < c.opts.MinChars {
		return nil, nil
	}
	tokens := c.tok.Encode(text)
	if len(tokens) == 0 {
		return nil, nil
	}
	step := size - overlap
	var spans []span
	for i := 0; ; i += step {
		end := i + size
		if end > len(tokens) {
			end = len(tokens)
		}
		spans = append(spans, span{start: tokens[i].Start, end: tokens[end-1].End})
		if end == len(tokens) {
			break
		}
	}
	return finish(text, spans, c.opts), nil
}

// CharChunker is the tokenizer-free fallback. Size and overlap are
// character counts (callers converting from a token budget multiply by
// CharsPerToken). Each boundary snaps backward to the nearest sentence
// terminator or newline found after 70% of the target length, to avoid
// splitting mid-sentence.
type CharChunker struct {
	opts Options
}

func NewCharChunker(opts Options) *CharChunker {
	opts.applyDefaults()
	return &CharChunker{opts: opts}
}

func (c *CharChunker) Chunk(text string, size, overlap int) ([]domain.Chunk, error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(text)) < c.opts.MinChars {
		return nil, nil
	}
	charSize := size
	charOverlap := overlap
	var spans []span
	for start := 0; start < len(text); {
		end := start + charSize
		if end >= len(text) {
			spans = append(spans, span{start: start, end: len(text)})
			break
		}
		if snapped := snapBoundary(text, start, end); snapped > start {
			end = snapped
		}
		spans = append(spans, span{start: start, end: end})
		next := end - charOverlap
		if next <= start {
			next = end
		}
		start = next
	}
	return finish(text, spans, c.opts), nil
}

// snapBoundary returns the position just past the last sentence terminator
// in text[start+70%..end), or end when none is found.
func snapBoundary(text string, start, end int) int {
	floor := start + int(snapFraction*float64(end-start))
	for i := end - 1; i >= floor; i-- {
		switch text[i] {
		case '.', '!', '?', '\n':
			return i + 1
		}
	}
	return end
}
