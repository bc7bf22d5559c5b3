package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointIDStable(t *testing.T) {
	a := PointID("doc-42:7")
	b := PointID("doc-42:7")
	assert.Equal(t, a, b)
}

func TestPointIDDistinguishesIDs(t *testing.T) {
	assert.NotEqual(t, PointID("doc-1:0"), PointID("doc-1:1"))
	assert.NotEqual(t, PointID("doc-1:0"), PointID("doc-2:0"))
}

func TestPointIDNonNegativeAnd32Bit(t *testing.T) {
	for _, id := range []string{"", "a", "zzzzzzzzzzzzzzzzzzzz", "contract:499", "ünïcode-id"} {
		v := PointID(id)
		assert.LessOrEqual(t, v, uint64(1)<<31)
	}
}
