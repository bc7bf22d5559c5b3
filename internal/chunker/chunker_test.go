package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sentence is padded to exactly 50 characters so boundary positions in the
// scenario test are easy to reason about.
var sentence = "The lease term begins on the first of January." +
	strings.Repeat(" ", 4)

func repeatSentences(n int) string {
	return strings.Repeat(sentence, n)
}

func TestTokenChunkerValidation(t *testing.T) {
	c := NewTokenChunker(Options{})
	_, err := c.Chunk("whatever", 0, 0)
	assert.Error(t, err)
	_, err = c.Chunk("whatever", 100, 100)
	assert.Error(t, err)
	_, err = c.Chunk("whatever", 100, -1)
	assert.Error(t, err)
}

func TestTokenChunkerShortTextYieldsNothing(t *testing.T) {
	c := NewTokenChunker(Options{})
	chunks, err := c.Chunk("too short to matter", 100, 10)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestTokenChunkerCoverageAndOverlap(t *testing.T) {
	c := NewTokenChunker(Options{MinChars: 10})
	text := repeatSentences(60)
	chunks, err := c.Chunk(text, 100, 20)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.SequenceIndex)
		assert.Less(t, ch.StartOffset, ch.EndOffset)
		assert.LessOrEqual(t, ch.EndOffset, len(text))
		assert.Equal(t, text[ch.StartOffset:ch.EndOffset], ch.Text)
		if i > 0 {
			// No gap: each chunk starts at or before the previous end.
			assert.LessOrEqual(t, ch.StartOffset, chunks[i-1].EndOffset)
		}
	}
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, len(text), chunks[len(chunks)-1].EndOffset)
}

func TestTokenChunkerSingleWindow(t *testing.T) {
	c := NewTokenChunker(Options{})
	text := repeatSentences(3)
	chunks, err := c.Chunk(text, 1000, 200)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, strings.TrimRight(text, " "), chunks[0].Text)
}

func TestTokenChunkerMaxChunksCap(t *testing.T) {
	c := NewTokenChunker(Options{MinChars: 10, MaxChunks: 4})
	chunks, err := c.Chunk(repeatSentences(200), 40, 10)
	require.NoError(t, err)
	assert.Len(t, chunks, 4)
}

func TestCharChunkerScenario(t *testing.T) {
	// 2,500-character document, size=1000, overlap=200: three chunks with
	// overlapping boundaries.
	c := NewCharChunker(Options{})
	text := repeatSentences(50)
	require.Len(t, text, 2500)

	chunks, err := c.Chunk(text, 1000, 200)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, 2500, chunks[2].EndOffset)
	for i := 1; i < len(chunks); i++ {
		assert.Less(t, chunks[i].StartOffset, chunks[i-1].EndOffset,
			"consecutive chunks must overlap")
	}
	// Boundaries land on sentence ends, so overlap is exactly 200 here.
	assert.Equal(t, chunks[0].EndOffset-chunks[1].StartOffset, 200)
}

func TestCharChunkerSnapsToSentenceBoundary(t *testing.T) {
	c := NewCharChunker(Options{MinChars: 10})
	// One terminator placed inside the snap region (after 70% of 400).
	text := strings.Repeat("a", 350) + ". " + strings.Repeat("b", 600)
	chunks, err := c.Chunk(text, 400, 50)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, 351, chunks[0].EndOffset)
	assert.Equal(t, byte('.'), text[chunks[0].EndOffset-1])
}

func TestCharChunkerNoTerminatorKeepsTarget(t *testing.T) {
	c := NewCharChunker(Options{MinChars: 10})
	text := strings.Repeat("x", 900)
	chunks, err := c.Chunk(text, 400, 100)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, 400, chunks[0].EndOffset)
}

func TestCharChunkerDiscardsDegenerateTail(t *testing.T) {
	c := NewCharChunker(Options{MinChars: 50})
	// The tail window trims to a handful of characters and is discarded.
	text := strings.Repeat("y", 400) + strings.Repeat(" ", 30) + "end."
	chunks, err := c.Chunk(text, 400, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, 400, chunks[0].EndOffset)
}
