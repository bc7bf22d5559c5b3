package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeOffsets(t *testing.T) {
	tok := New()
	text := "The quick  brown fox."
	tokens := tok.Encode(text)
	require.Len(t, tokens, 4)
	for _, tk := range tokens {
		assert.Equal(t, tk.Text, text[tk.Start:tk.End])
		assert.Less(t, tk.Start, tk.End)
	}
	assert.Equal(t, "fox.", tokens[3].Text)
	assert.Equal(t, len(text), tokens[3].End)
}

func TestEncodeEmptyAndWhitespace(t *testing.T) {
	tok := New()
	assert.Empty(t, tok.Encode(""))
	assert.Empty(t, tok.Encode("   \n\t  "))
}

func TestDecodeRoundTrip(t *testing.T) {
	tok := New()
	text := "alpha beta\ngamma  delta"
	tokens := tok.Encode(text)
	require.Len(t, tokens, 4)

	// A middle window keeps the original separators.
	assert.Equal(t, "beta\ngamma", tok.Decode(text, tokens, 1, 3))
	// Full window reproduces the trimmed text.
	assert.Equal(t, text, tok.Decode(text, tokens, 0, 4))
}

func TestDecodeBounds(t *testing.T) {
	tok := New()
	text := "one two"
	tokens := tok.Encode(text)
	assert.Equal(t, "", tok.Decode(text, tokens, -1, 1))
	assert.Equal(t, "", tok.Decode(text, tokens, 1, 1))
	assert.Equal(t, "", tok.Decode(text, tokens, 0, 3))
}

func TestCount(t *testing.T) {
	tok := New()
	assert.Equal(t, 0, tok.Count(""))
	assert.Equal(t, 5, tok.Count("a b c d e"))
}
