package embed

import (
	"context"
	"log/slog"
	"time"
)

// ProviderType identifies an embedding backend
type ProviderType string

const (
	// ProviderAuto picks Ollama when reachable, otherwise static
	ProviderAuto ProviderType = ""

	// ProviderOllama uses a local Ollama server
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses the offline hash-based embedder
	ProviderStatic ProviderType = "static"
)

// FactoryConfig configures embedder construction
type FactoryConfig struct {
	Provider   ProviderType
	Model      string
	Host       string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
	CacheSize  int
}

// NewEmbedder builds the configured embedder wrapped in an LRU cache.
// With ProviderAuto, an unreachable Ollama server degrades to the
// static embedder instead of failing.
func NewEmbedder(ctx context.Context, cfg FactoryConfig, logger *slog.Logger) (Embedder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var inner Embedder
	switch cfg.Provider {
	case ProviderStatic:
		inner = NewStaticEmbedder()

	case ProviderOllama:
		ollama, err := NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		inner = ollama

	case ProviderAuto:
		ollama, err := NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			logger.Warn("ollama unavailable, falling back to static embedder",
				slog.String("error", err.Error()))
			inner = NewStaticEmbedder()
		} else {
			inner = ollama
		}

	default:
		inner = NewStaticEmbedder()
	}

	logger.Info("embedder initialized",
		slog.String("model", inner.ModelName()),
		slog.Int("dimensions", inner.Dimensions()))

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}

// ParseProvider maps a config string to a ProviderType
func ParseProvider(s string) ProviderType {
	switch s {
	case "ollama":
		return ProviderOllama
	case "static":
		return ProviderStatic
	default:
		return ProviderAuto
	}
}
