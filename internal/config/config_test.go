package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "char", cfg.Chunking.Strategy)
	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, "memory", cfg.VectorStore.Type)
	assert.Equal(t, 0.7, cfg.Query.MinSimilarity)
}

func TestLoadFillsPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"chunking:\n  strategy: token\n  size: 512\nvector_store:\n  type: qdrant\n  qdrant:\n    url: http://localhost:6333\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "token", cfg.Chunking.Strategy)
	assert.Equal(t, 512, cfg.Chunking.Size)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, "docquery", cfg.VectorStore.Qdrant.Collection)
	assert.Equal(t, 1024, cfg.Embedding.TargetDimension)
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()

	bad := []string{
		"chunking:\n  strategy: sentence\n",
		"chunking:\n  size: 100\n  overlap: 100\n",
		"vector_store:\n  type: qdrant\n",
		"vector_store:\n  type: weaviate\n",
	}
	for i, body := range bad {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		_, err := Load(path)
		assert.Error(t, err, "case %d", i)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.VectorStore = VectorStoreConfig{
		Type:     "pinecone",
		Pinecone: &PineconeConfig{IndexHost: "https://idx.example.io", Namespace: "prod"},
	}
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "pinecone", loaded.VectorStore.Type)
	assert.Equal(t, "prod", loaded.VectorStore.Pinecone.Namespace)
}
