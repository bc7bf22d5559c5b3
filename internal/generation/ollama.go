package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaConfig configures the Ollama chat generator.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Token   string
	Timeout time.Duration
}

// OllamaGenerator answers prompts through the Ollama chat API.
type OllamaGenerator struct {
	baseURL string
	model   string
	token   string
	client  *http.Client
}

func NewOllamaGenerator(cfg OllamaConfig) (*OllamaGenerator, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ollama base URL is required")
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.1"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &OllamaGenerator{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model": g.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"stream": false,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ollama chat read: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("ollama chat: %s", resp.Status)
	}
	var out struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("ollama chat decode: %w", err)
	}
	if out.Message.Content == "" {
		return "", fmt.Errorf("ollama chat: empty response")
	}
	return out.Message.Content, nil
}
