package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ChunkingConfig configures how documents are split before embedding.
// Size and overlap are in tokens for the token strategy and in characters
// for the char strategy.
type ChunkingConfig struct {
	Strategy  string `yaml:"strategy"` // token | char
	Size      int    `yaml:"size"`
	Overlap   int    `yaml:"overlap"`
	MinChars  int    `yaml:"min_chars"`
	MaxChunks int    `yaml:"max_chunks"`
}

// OpenAIProviderConfig holds settings shared by the OpenAI embedder and
// generator. The API key itself always comes from the environment.
type OpenAIProviderConfig struct {
	BaseURL   string `yaml:"base_url,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	Model     string `yaml:"model,omitempty"`
	MaxChars  int    `yaml:"max_chars,omitempty"`
}

// OllamaProviderConfig holds settings for an Ollama endpoint, local or cloud.
type OllamaProviderConfig struct {
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model,omitempty"`
	TokenEnv    string `yaml:"token_env,omitempty"`
	Dimension   int    `yaml:"dimension,omitempty"`
	MaxChars    int    `yaml:"max_chars,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs,omitempty"`
}

// EmbeddingProviderConfig selects one embedding backend. Providers are tried
// in list order; the first whose client initializes wins.
type EmbeddingProviderConfig struct {
	Type   string                `yaml:"type"` // openai | ollama
	OpenAI *OpenAIProviderConfig `yaml:"openai,omitempty"`
	Ollama *OllamaProviderConfig `yaml:"ollama,omitempty"`
}

// EmbeddingConfig configures the embedding generator and its provider chain.
type EmbeddingConfig struct {
	TargetDimension int                       `yaml:"target_dimension"`
	BatchSize       int                       `yaml:"batch_size"`
	BatchDelayMs    int                       `yaml:"batch_delay_ms"`
	CacheSize       int                       `yaml:"cache_size"`
	Providers       []EmbeddingProviderConfig `yaml:"providers"`
}

// QdrantConfig contains connection details for a self-hosted Qdrant.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs,omitempty"`
}

// PineconeConfig contains connection details for a managed Pinecone index.
// The index must already exist with the configured dimension.
type PineconeConfig struct {
	IndexHost   string `yaml:"index_host"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	Namespace   string `yaml:"namespace,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type     string          `yaml:"type"` // qdrant | pinecone | memory
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	Pinecone *PineconeConfig `yaml:"pinecone,omitempty"`
}

// GenerationConfig selects and configures the answer generator.
type GenerationConfig struct {
	Type   string                `yaml:"type"` // openai | ollama
	OpenAI *OpenAIProviderConfig `yaml:"openai,omitempty"`
	Ollama *OllamaProviderConfig `yaml:"ollama,omitempty"`
}

// QueryConfig sets retrieval defaults applied when a query does not
// specify its own.
type QueryConfig struct {
	MaxResults    int     `yaml:"max_results"`
	MinSimilarity float64 `yaml:"min_similarity"`
}

// SummaryConfig configures the ingest-time extractive summary.
type SummaryConfig struct {
	Sentences int `yaml:"sentences"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Generation  GenerationConfig  `yaml:"generation"`
	Query       QueryConfig       `yaml:"query"`
	Summary     SummaryConfig     `yaml:"summary"`
}

// Load reads a config from a specified path. If the file does not exist,
// returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docquery/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docquery", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Chunking: ChunkingConfig{Strategy: "char", Size: 1000, Overlap: 200, MinChars: 50, MaxChunks: 500},
		Embedding: EmbeddingConfig{
			TargetDimension: 1024,
			BatchSize:       16,
			CacheSize:       1000,
			Providers: []EmbeddingProviderConfig{
				{Type: "openai", OpenAI: &OpenAIProviderConfig{}},
				{Type: "ollama", Ollama: &OllamaProviderConfig{BaseURL: "http://localhost:11434"}},
			},
		},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Generation:  GenerationConfig{Type: "openai", OpenAI: &OpenAIProviderConfig{}},
		Query:       QueryConfig{MaxResults: 5, MinSimilarity: 0.7},
		Summary:     SummaryConfig{Sentences: 3},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Chunking.Strategy == "" {
		cfg.Chunking.Strategy = "char"
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 1000
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 200
	}
	if cfg.Chunking.MinChars == 0 {
		cfg.Chunking.MinChars = 50
	}
	if cfg.Chunking.MaxChunks == 0 {
		cfg.Chunking.MaxChunks = 500
	}
	if cfg.Embedding.TargetDimension == 0 {
		cfg.Embedding.TargetDimension = 1024
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 16
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.Qdrant != nil && cfg.VectorStore.Qdrant.Collection == "" {
		cfg.VectorStore.Qdrant.Collection = "docquery"
	}
	if cfg.Generation.Type == "" {
		cfg.Generation.Type = "openai"
	}
	if cfg.Query.MaxResults == 0 {
		cfg.Query.MaxResults = 5
	}
	if cfg.Query.MinSimilarity == 0 {
		cfg.Query.MinSimilarity = 0.7
	}
	if cfg.Summary.Sentences == 0 {
		cfg.Summary.Sentences = 3
	}
}

func validate(cfg *AppConfig) error {
	switch cfg.Chunking.Strategy {
	case "token", "char":
	default:
		return fmt.Errorf("unknown chunking strategy %q", cfg.Chunking.Strategy)
	}
	if cfg.Chunking.Overlap >= cfg.Chunking.Size {
		return fmt.Errorf("chunk overlap %d must be smaller than size %d", cfg.Chunking.Overlap, cfg.Chunking.Size)
	}
	switch cfg.VectorStore.Type {
	case "memory":
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil || cfg.VectorStore.Qdrant.URL == "" {
			return errors.New("vector_store.qdrant.url is required for the qdrant store")
		}
	case "pinecone":
		if cfg.VectorStore.Pinecone == nil || cfg.VectorStore.Pinecone.IndexHost == "" {
			return errors.New("vector_store.pinecone.index_host is required for the pinecone store")
		}
	default:
		return fmt.Errorf("unknown vector store type %q", cfg.VectorStore.Type)
	}
	switch cfg.Generation.Type {
	case "openai", "ollama":
	default:
		return fmt.Errorf("unknown generation type %q", cfg.Generation.Type)
	}
	return nil
}
