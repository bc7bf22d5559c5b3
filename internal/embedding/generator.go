package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"docquery/internal/domain"
)

// ErrNoProvider is returned when every configured embedding provider failed
// to initialize.
var ErrNoProvider = errors.New("no embedding provider available")

// Provider is a single embedding backend. Generate returns the provider's
// native-dimension vector; normalization to the store dimension happens in
// the Generator.
type Provider interface {
	Name() string
	Model() string
	Dimension() int
	MaxChars() int
	Generate(ctx context.Context, text string) ([]float32, error)
}

// Config tunes the Generator.
type Config struct {
	// TargetDimension is the vector store's configured dimension. Vectors
	// shorter than it are zero-padded, longer ones truncated. Zero disables
	// normalization.
	TargetDimension int
	BatchSize       int
	BatchDelay      time.Duration
	CacheSize       int
	Logger          *slog.Logger
}

// Generator converts text to embeddings through an ordered list of
// providers, caching results and normalizing dimensions.
type Generator struct {
	providers []Provider
	cfg       Config
	cache     *fifoCache
	logger    *slog.Logger
}

// NewGenerator builds a generator over the given providers in preference
// order. Providers whose clients failed to initialize are passed as nil and
// skipped; the substitution is logged once on first use.
func NewGenerator(cfg Config, providers ...Provider) *Generator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	available := make([]Provider, 0, len(providers))
	for i, p := range providers {
		if p == nil {
			continue
		}
		if len(available) == 0 && i > 0 {
			cfg.Logger.Warn("preferred embedding provider unavailable, substituting",
				"substitute", p.Name(), "skipped", i)
		}
		available = append(available, p)
	}
	return &Generator{
		providers: available,
		cfg:       cfg,
		cache:     newFIFOCache(cfg.CacheSize),
		logger:    cfg.Logger,
	}
}

// Available reports whether at least one provider initialized.
func (g *Generator) Available() bool { return len(g.providers) > 0 }

// Dimension returns the dimension of produced vectors: the target dimension
// when normalization is configured, else the active provider's native one.
func (g *Generator) Dimension() int {
	if g.cfg.TargetDimension > 0 {
		return g.cfg.TargetDimension
	}
	if len(g.providers) > 0 {
		return g.providers[0].Dimension()
	}
	return 0
}

func (g *Generator) active() (Provider, error) {
	if len(g.providers) == 0 {
		return nil, ErrNoProvider
	}
	return g.providers[0], nil
}

// Embed returns the embedding for text, serving repeated inputs from the
// cache. Texts beyond the provider's maximum are truncated silently.
func (g *Generator) Embed(ctx context.Context, text string) (*domain.Embedding, error) {
	p, err := g.active()
	if err != nil {
		return nil, err
	}
	key := cacheKey(text)
	if cached, ok := g.cache.get(key); ok {
		return cached, nil
	}
	input := text
	if max := p.MaxChars(); max > 0 && len(input) > max {
		input = input[:max]
	}
	values, err := p.Generate(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%s embedding: %w", p.Name(), err)
	}
	if g.cfg.TargetDimension > 0 {
		values = Normalize(values, g.cfg.TargetDimension)
	}
	e := &domain.Embedding{
		Values:     values,
		Dimensions: len(values),
		Provider:   p.Name(),
		Model:      p.Model(),
	}
	g.cache.put(key, e)
	return e, nil
}

// EmbedBatch embeds texts in fixed-size sub-batches. Sub-batches run
// strictly sequentially with a delay in between to respect provider rate
// limits; items within a sub-batch run concurrently. A failed item yields
// nil at its position and never aborts its siblings.
func (g *Generator) EmbedBatch(ctx context.Context, texts []string) []*domain.Embedding {
	results := make([]*domain.Embedding, len(texts))
	if len(texts) == 0 {
		return results
	}
	if _, err := g.active(); err != nil {
		g.logger.Warn("embed batch skipped", "error", err)
		return results
	}
	for start := 0; start < len(texts); start += g.cfg.BatchSize {
		end := start + g.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				e, err := g.Embed(ctx, texts[i])
				if err != nil {
					g.logger.Warn("batch item embedding failed", "index", i, "error", err)
					return
				}
				results[i] = e
			}(i)
		}
		wg.Wait()
		if end < len(texts) && g.cfg.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(g.cfg.BatchDelay):
			}
		}
	}
	return results
}

// Normalize fits values to dim: zero-padded when shorter, truncated when
// longer, returned as-is when equal. Padding never renormalizes the vector,
// so similarity against padded vectors skews low; downstream scoring
// depends on this exact behavior.
func Normalize(values []float32, dim int) []float32 {
	switch {
	case len(values) == dim:
		return values
	case len(values) > dim:
		return values[:dim]
	default:
		padded := make([]float32, dim)
		copy(padded, values)
		return padded
	}
}
