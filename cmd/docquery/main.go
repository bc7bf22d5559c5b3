package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"docquery/internal/chunker"
	"docquery/internal/config"
	"docquery/internal/docstore"
	"docquery/internal/domain"
	"docquery/internal/embedding"
	embollama "docquery/internal/embedding/ollama"
	embopenai "docquery/internal/embedding/openai"
	"docquery/internal/generation"
	"docquery/internal/service"
	"docquery/internal/summarizer"
	"docquery/internal/tui"
	"docquery/internal/vectorstore"
	"docquery/internal/vectorstore/memory"
	"docquery/internal/vectorstore/pinecone"
	"docquery/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/docquery/config.yaml if not provided)")
	flag.Parse()
	inputs := flag.Args()
	if len(inputs) == 0 {
		fmt.Println("Usage: docquery [--config=config.yaml] file1.txt [file2.txt ...]")
		os.Exit(1)
	}

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Assemble components
	var ch domain.Chunker
	chunkOpts := chunker.Options{
		MinChars:  cfg.Chunking.MinChars,
		MaxChunks: cfg.Chunking.MaxChunks,
		Logger:    logger,
	}
	switch cfg.Chunking.Strategy {
	case "token":
		ch = chunker.NewTokenChunker(chunkOpts)
	case "char", "":
		ch = chunker.NewCharChunker(chunkOpts)
	default:
		log.Fatalf("unknown chunking strategy: %s", cfg.Chunking.Strategy)
	}

	embedder := buildEmbedder(cfg, logger)
	st := buildStore(cfg, logger)
	gen := buildGenerator(cfg)

	ctx := context.Background()
	if err := st.Init(ctx); err != nil {
		// The engine degrades to lower-confidence answers without a store,
		// but a CLI session over fresh files has nothing to fall back to.
		log.Fatalf("vector store init failed: %v", err)
	}

	documents := docstore.NewMemoryStore()
	engine := service.NewEngine(ch, embedder, st, gen, documents, summarizer.NewFrequency(),
		service.Config{
			ChunkSize:        cfg.Chunking.Size,
			ChunkOverlap:     cfg.Chunking.Overlap,
			MaxResults:       cfg.Query.MaxResults,
			MinSimilarity:    cfg.Query.MinSimilarity,
			SummarySentences: cfg.Summary.Sentences,
		}, logger)

	summaries := make([]string, 0, len(inputs))
	for _, path := range inputs {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("read %s: %v", path, err)
		}
		docID := filepath.Base(path)
		documents.Put(domain.Document{ID: docID, Name: docID, ExtractedText: string(data)})
		result, err := engine.ProcessDocument(ctx, docID, string(data), nil)
		if err != nil {
			log.Fatalf("ingest %s: %v", path, err)
		}
		if result.Summary != "" {
			summaries = append(summaries, result.Summary)
		}
	}

	m := tui.New(engine, domain.QueryOptions{
		MaxResults:    cfg.Query.MaxResults,
		MinSimilarity: cfg.Query.MinSimilarity,
	}, strings.Join(summaries, " "))
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal(err)
	}
}

// buildEmbedder constructs the provider chain in configured order. A provider
// whose client fails to initialize is passed as nil and skipped at runtime;
// only a chain with no survivors is fatal at first use.
func buildEmbedder(cfg *config.AppConfig, logger *slog.Logger) domain.Embedder {
	providers := make([]embedding.Provider, 0, len(cfg.Embedding.Providers))
	for _, pc := range cfg.Embedding.Providers {
		switch pc.Type {
		case "openai":
			oc := pc.OpenAI
			if oc == nil {
				oc = &config.OpenAIProviderConfig{}
			}
			p, err := embopenai.New(embopenai.Config{
				APIKeyEnv: oc.APIKeyEnv,
				BaseURL:   oc.BaseURL,
				Model:     oc.Model,
				MaxChars:  oc.MaxChars,
			})
			if err != nil {
				logger.Warn("openai embedding provider unavailable", "error", err)
				providers = append(providers, nil)
				continue
			}
			providers = append(providers, p)
		case "ollama":
			oc := pc.Ollama
			if oc == nil {
				log.Fatalf("ollama embedding provider config missing")
			}
			p, err := embollama.New(embollama.Config{
				BaseURL:   oc.BaseURL,
				Model:     oc.Model,
				Token:     os.Getenv(oc.TokenEnv),
				Dimension: oc.Dimension,
				MaxChars:  oc.MaxChars,
				Timeout:   time.Duration(oc.TimeoutSecs) * time.Second,
			})
			if err != nil {
				logger.Warn("ollama embedding provider unavailable", "error", err)
				providers = append(providers, nil)
				continue
			}
			providers = append(providers, p)
		default:
			log.Fatalf("unknown embedding provider: %s", pc.Type)
		}
	}
	return embedding.NewGenerator(embedding.Config{
		TargetDimension: cfg.Embedding.TargetDimension,
		BatchSize:       cfg.Embedding.BatchSize,
		BatchDelay:      time.Duration(cfg.Embedding.BatchDelayMs) * time.Millisecond,
		CacheSize:       cfg.Embedding.CacheSize,
		Logger:          logger,
	}, providers...)
}

func buildStore(cfg *config.AppConfig, logger *slog.Logger) vectorstore.Storage {
	switch cfg.VectorStore.Type {
	case "memory", "":
		return memory.NewStorage(cfg.Embedding.TargetDimension)
	case "qdrant":
		qc := cfg.VectorStore.Qdrant
		return qdrant.NewStorage(qdrant.Config{
			URL:        qc.URL,
			APIKey:     os.Getenv(qc.APIKeyEnv),
			Collection: qc.Collection,
			Dimension:  cfg.Embedding.TargetDimension,
			Timeout:    time.Duration(qc.TimeoutSecs) * time.Second,
			Logger:     logger,
		})
	case "pinecone":
		pc := cfg.VectorStore.Pinecone
		st, err := pinecone.NewStorage(pinecone.Config{
			IndexHost: pc.IndexHost,
			APIKeyEnv: pc.APIKeyEnv,
			Namespace: pc.Namespace,
			Dimension: cfg.Embedding.TargetDimension,
			Timeout:   time.Duration(pc.TimeoutSecs) * time.Second,
			Logger:    logger,
		})
		if err != nil {
			log.Fatalf("pinecone store init failed: %v", err)
		}
		return st
	default:
		log.Fatalf("unknown vector store: %s", cfg.VectorStore.Type)
		return nil
	}
}

func buildGenerator(cfg *config.AppConfig) domain.Generator {
	switch cfg.Generation.Type {
	case "openai", "":
		oc := cfg.Generation.OpenAI
		if oc == nil {
			oc = &config.OpenAIProviderConfig{}
		}
		gen, err := generation.NewOpenAIGenerator(generation.OpenAIConfig{
			APIKeyEnv: oc.APIKeyEnv,
			BaseURL:   oc.BaseURL,
			Model:     oc.Model,
		})
		if err != nil {
			log.Fatalf("openai generator init failed: %v", err)
		}
		return gen
	case "ollama":
		oc := cfg.Generation.Ollama
		if oc == nil {
			log.Fatalf("ollama generation config missing")
		}
		gen, err := generation.NewOllamaGenerator(generation.OllamaConfig{
			BaseURL: oc.BaseURL,
			Model:   oc.Model,
			Token:   os.Getenv(oc.TokenEnv),
			Timeout: time.Duration(oc.TimeoutSecs) * time.Second,
		})
		if err != nil {
			log.Fatalf("ollama generator init failed: %v", err)
		}
		return gen
	default:
		log.Fatalf("unknown generation type: %s", cfg.Generation.Type)
		return nil
	}
}
