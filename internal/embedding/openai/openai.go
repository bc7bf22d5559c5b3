package openai

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultMaxChars caps input length before the API call; longer texts are
// truncated upstream, silently and deterministically.
const DefaultMaxChars = 2048

// Config configures the OpenAI embedding provider.
type Config struct {
	APIKeyEnv string
	BaseURL   string
	Model     string
	MaxChars  int
}

// Provider generates embeddings through the OpenAI embeddings API.
type Provider struct {
	client   *openai.Client
	model    string
	dim      int
	maxChars int
}

// New creates the provider. A missing API key is an initialization failure:
// the caller substitutes the next configured provider instead of aborting.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	clientCfg := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	dim := 1536
	if cfg.Model == string(openai.LargeEmbedding3) {
		dim = 3072
	}
	return &Provider{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		dim:      dim,
		maxChars: cfg.MaxChars,
	}, nil
}

func (p *Provider) Name() string   { return "openai" }
func (p *Provider) Model() string  { return p.model }
func (p *Provider) Dimension() int { return p.dim }
func (p *Provider) MaxChars() int  { return p.maxChars }

// Generate returns the native-dimension embedding for text.
func (p *Provider) Generate(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding data returned")
	}
	values := make([]float32, len(resp.Data[0].Embedding))
	copy(values, resp.Data[0].Embedding)
	return values, nil
}
