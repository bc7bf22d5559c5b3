package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var (
	sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
	wordRe     = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// Frequency is an extractive summarizer: it ranks sentences by normalized
// word frequency (stopwords excluded) and returns the top ones in their
// original order. Good enough to give an ingested document a header line;
// no model call involved.
type Frequency struct {
	stopwords map[string]struct{}
}

func NewFrequency() *Frequency {
	return &Frequency{stopwords: stopwordSet()}
}

// Summarize returns up to maxSentences sentences of text, best first by
// frequency score but kept in document order.
func (f *Frequency) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		return strings.TrimSpace(text), nil
	}

	freq := f.wordFrequencies(sentences)

	type ranked struct {
		idx   int
		score float64
	}
	scores := make([]ranked, len(sentences))
	for i, sent := range sentences {
		words := f.words(sent)
		var score float64
		for _, w := range words {
			score += freq[w]
		}
		// Dampen the long-sentence advantage.
		if n := float64(len(words)); n > 0 {
			score /= math.Sqrt(n)
		}
		scores[i] = ranked{i, score}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if maxSentences > len(scores) {
		maxSentences = len(scores)
	}
	keep := make([]int, maxSentences)
	for i := range keep {
		keep[i] = scores[i].idx
	}
	sort.Ints(keep)

	parts := make([]string, 0, len(keep))
	for _, idx := range keep {
		parts = append(parts, strings.TrimSpace(sentences[idx]))
	}
	return strings.Join(parts, " "), nil
}

// wordFrequencies counts non-stopword occurrences across all sentences,
// normalized so the most frequent word scores 1.
func (f *Frequency) wordFrequencies(sentences []string) map[string]float64 {
	freq := make(map[string]float64)
	for _, sent := range sentences {
		for _, w := range f.words(sent) {
			freq[w]++
		}
	}
	var top float64
	for _, v := range freq {
		if v > top {
			top = v
		}
	}
	if top > 0 {
		for k := range freq {
			freq[k] /= top
		}
	}
	return freq
}

func (f *Frequency) words(sent string) []string {
	all := wordRe.FindAllString(strings.ToLower(sent), -1)
	kept := all[:0]
	for _, w := range all {
		if _, skip := f.stopwords[w]; skip {
			continue
		}
		kept = append(kept, w)
	}
	return kept
}

func stopwordSet() map[string]struct{} {
	words := strings.Fields(
		"a an the and or but if then else for to of in on at by with as " +
			"is are was were be been being it this that these those from " +
			"shall hereby herein thereof such will may not no any all")
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
