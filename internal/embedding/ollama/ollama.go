package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config configures the Ollama embedding provider.
type Config struct {
	BaseURL   string // e.g. http://localhost:11434
	Model     string // e.g. nomic-embed-text, bge-m3
	Token     string // Bearer token for Ollama Cloud (empty = no auth)
	Dimension int
	MaxChars  int
	Timeout   time.Duration
}

// Provider generates embeddings through the Ollama REST API.
type Provider struct {
	baseURL  string
	model    string
	token    string
	dim      int
	maxChars int
	client   *http.Client
}

func New(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ollama base URL is required")
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 768
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 8192
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Provider{
		baseURL:  cfg.BaseURL,
		model:    cfg.Model,
		token:    cfg.Token,
		dim:      cfg.Dimension,
		maxChars: cfg.MaxChars,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

func (p *Provider) Name() string   { return "ollama" }
func (p *Provider) Model() string  { return p.model }
func (p *Provider) Dimension() int { return p.dim }
func (p *Provider) MaxChars() int  { return p.maxChars }

// Generate returns the native-dimension embedding for text.
func (p *Provider) Generate(ctx context.Context, text string) ([]float32, error) {
	payload := map[string]any{
		"model": p.model,
		"input": text,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ollama embed read: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ollama embed: %s", resp.Status)
	}
	var out struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("ollama embed decode: %w", err)
	}
	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama embed: empty response")
	}
	return out.Embeddings[0], nil
}
