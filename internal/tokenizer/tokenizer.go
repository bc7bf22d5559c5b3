package tokenizer

import "unicode"

// Token is a single unit of text with its byte offsets into the original
// string, so a run of tokens can be mapped back to the exact source span.
type Token struct {
	Text  string
	Start int
	End   int
}

// Tokenizer splits text into whitespace-delimited tokens while preserving
// byte offsets. It approximates model tokenization closely enough for
// window-based chunking without any remote calls.
type Tokenizer struct{}

func New() *Tokenizer { return &Tokenizer{} }

// Encode returns the tokens of text in order. Punctuation stays attached to
// its word; offsets always satisfy Start < End and are monotonically
// increasing across the slice.
func (t *Tokenizer) Encode(text string) []Token {
	var tokens []Token
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, Token{Text: text[start:i], Start: start, End: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{Text: text[start:], Start: start, End: len(text)})
	}
	return tokens
}

// Count returns the number of tokens in text.
func (t *Tokenizer) Count(text string) int {
	return len(t.Encode(text))
}

// Decode reconstructs the source span covered by tokens[from:to], including
// the original whitespace between them.
func (t *Tokenizer) Decode(text string, tokens []Token, from, to int) string {
	if from < 0 || to <= from || to > len(tokens) {
		return ""
	}
	return text[tokens[from].Start:tokens[to-1].End]
}
