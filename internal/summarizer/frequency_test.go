package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizePicksFrequentTopics(t *testing.T) {
	s := NewFrequency()
	text := "The tenant pays rent monthly. The tenant maintains the premises. " +
		"Weather was nice yesterday. The tenant vacates on notice."
	out, err := s.Summarize(text, 2)
	require.NoError(t, err)
	assert.Contains(t, out, "tenant")
	assert.LessOrEqual(t, len(strings.Split(out, ". ")), 3)
}

func TestSummarizeKeepsDocumentOrder(t *testing.T) {
	s := NewFrequency()
	text := "Contract begins here. Filler sentence about nothing relevant. Contract ends here."
	out, err := s.Summarize(text, 2)
	require.NoError(t, err)
	begin := strings.Index(out, "begins")
	end := strings.Index(out, "ends")
	if begin >= 0 && end >= 0 {
		assert.Less(t, begin, end)
	}
}

func TestSummarizeNoSentenceTerminators(t *testing.T) {
	s := NewFrequency()
	out, err := s.Summarize("  just a fragment without punctuation  ", 3)
	require.NoError(t, err)
	assert.Equal(t, "just a fragment without punctuation", out)
}
