// Package service wires the application's collaborators into one
// context struct built at process start. Nothing here is a package
// singleton; the CLI constructs a Services, passes it by reference,
// and tears it down on exit.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/codesift/codesift/internal/chunk"
	"github.com/codesift/codesift/internal/config"
	"github.com/codesift/codesift/internal/embed"
	"github.com/codesift/codesift/internal/intake"
	"github.com/codesift/codesift/internal/pipeline"
	"github.com/codesift/codesift/internal/store"
	"github.com/codesift/codesift/internal/summarize"
	"github.com/codesift/codesift/internal/vector"
)

// Services holds every shared collaborator for one process lifetime
type Services struct {
	Config     *config.Config
	Logger     *slog.Logger
	Store      store.MetadataStore
	Index      *vector.Index
	Embedder   embed.Embedder
	Summarizer summarize.Summarizer
	Chunker    *chunk.Chunker
	Intake     *intake.Intake
	Processor  *pipeline.Processor
	Searcher   *pipeline.Searcher
}

// New builds the service context from configuration. The vector index
// is loaded from disk when a previous run saved one.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}

	metaStore, err := store.NewSQLiteStore(cfg.Storage.MetadataPath)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	index := vector.NewIndex(cfg.Embeddings.Dimensions)
	if _, statErr := os.Stat(cfg.Storage.VectorPath); statErr == nil {
		if err := index.Load(cfg.Storage.VectorPath); err != nil {
			metaStore.Close()
			return nil, fmt.Errorf("load vector index: %w", err)
		}
		logger.Info("vector index loaded",
			slog.String("path", cfg.Storage.VectorPath),
			slog.Int("vectors", index.Count()))
	}

	embedder, err := embed.NewEmbedder(ctx, embed.FactoryConfig{
		Provider:   embed.ParseProvider(cfg.Embeddings.Provider),
		Model:      cfg.Embeddings.Model,
		Host:       cfg.Embeddings.OllamaHost,
		Dimensions: cfg.Embeddings.Dimensions,
		BatchSize:  cfg.Embeddings.BatchSize,
		CacheSize:  cfg.Embeddings.CacheSize,
	}, logger)
	if err != nil {
		index.Close()
		metaStore.Close()
		return nil, fmt.Errorf("build embedder: %w", err)
	}

	summarizer := summarize.NewOllamaSummarizer(summarize.OllamaConfig{
		Host:    cfg.Summarizer.OllamaHost,
		Model:   cfg.Summarizer.Model,
		Timeout: cfg.Summarizer.TimeoutDuration(),
	})

	chunker := chunk.NewChunker()
	projectIntake := intake.New(cfg.Workspace.Dir, metaStore, logger)

	processor := pipeline.NewProcessor(pipeline.ProcessorConfig{
		Store:      metaStore,
		Source:     projectIntake,
		Chunker:    chunker,
		Summarizer: summarizer,
		Embedder:   embedder,
		Index:      index,
		Logger:     logger,
		VectorPath: cfg.Storage.VectorPath,
		LockDir:    filepath.Join(cfg.Storage.DataDir, "locks"),
	})

	return &Services{
		Config:     cfg,
		Logger:     logger,
		Store:      metaStore,
		Index:      index,
		Embedder:   embedder,
		Summarizer: summarizer,
		Chunker:    chunker,
		Intake:     projectIntake,
		Processor:  processor,
		Searcher:   pipeline.NewSearcher(embedder, index, cfg.Search.MaxResults),
	}, nil
}

// Close tears the collaborators down in reverse construction order.
// The first error wins; later teardown still runs.
func (s *Services) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.Chunker.Close()
	record(s.Summarizer.Close())
	record(s.Embedder.Close())
	record(s.Index.Close())
	record(s.Store.Close())
	return firstErr
}
