package main

import (
	"fmt"

	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/embedding"
	"github.com/hyperjump/shiori/internal/extract"
	"github.com/hyperjump/shiori/internal/indexer"
	"github.com/hyperjump/shiori/internal/prompt"
	"github.com/hyperjump/shiori/internal/retrieval"
	"github.com/hyperjump/shiori/internal/vector"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Embedder  embedding.Embedder
	Builder   *indexer.Builder
	Retriever *retrieval.Retriever
	Assembler *prompt.Assembler

	indexPath string
	logger    *zap.Logger
}

// Close releases the loaded index and the embedder.
func (c *Components) Close() {
	if c.Retriever != nil {
		_ = c.Retriever.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

// LoadIndex loads the persisted index and swaps it into the retriever. The index must have been
// built with the configured embedding model and dimension.
func (c *Components) LoadIndex() error {
	idx, err := vector.Load(c.indexPath, vector.Expectation{
		Dimensions: c.Embedder.Dimensions(),
		Model:      c.Embedder.Model(),
	})
	if err != nil {
		return err
	}
	if prev := c.Retriever.Swap(idx); prev != nil {
		_ = prev.Close()
	}
	c.logger.Info("vector index loaded",
		zap.String("path", c.indexPath),
		zap.String("type", string(idx.Type())),
		zap.Int("size", idx.Size()))
	return nil
}

// initializeComponents wires loader, chunker, embedder, builder, retriever and assembler from cfg.
// When loadIndex is set the persisted index must load, otherwise the retriever starts empty.
func initializeComponents(cfg *config.Config, logger *zap.Logger, loadIndex bool, builderOpts ...indexer.BuilderOption) (*Components, error) {
	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("initialize embedder: %w", err)
	}

	loader := extract.NewLoader(
		extract.WithExtensions(cfg.Loader.Extensions),
		extract.WithParsePolicy(extract.ParsePolicy(cfg.Loader.OnParseError)),
		extract.WithLogger(logger),
	)
	chunker, err := indexer.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.Overlap())
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("initialize chunker: %w", err)
	}

	indexType := cfg.Vector.IndexType
	if indexType == string(vector.IndexTypeFAISS) && !vector.IsFAISSAvailable() {
		logger.Warn("FAISS not compiled in, falling back to flat index", zap.String("requested_type", indexType))
		indexType = string(vector.IndexTypeFlat)
	}
	opts := []indexer.BuilderOption{
		indexer.WithLogger(logger),
		indexer.WithBatchSize(cfg.Embedding.BatchSize),
		indexer.WithIndexType(indexType),
		indexer.WithCacheSize(cfg.Embedding.CacheSize),
	}
	builder := indexer.NewBuilder(loader, chunker, embedder, append(opts, builderOpts...)...)

	c := &Components{
		Embedder: embedder,
		Builder:  builder,
		Retriever: retrieval.NewRetriever(embedder, nil,
			retrieval.WithDefaultK(cfg.Retrieval.TopK),
			retrieval.WithLogger(logger)),
		Assembler: prompt.NewAssembler(cfg.Prompt.SystemDirective),
		indexPath: cfg.Storage.IndexPath,
		logger:    logger,
	}
	logger.Debug("components initialized",
		zap.String("embedding_model", embedder.Model()),
		zap.Int("dimensions", embedder.Dimensions()),
		zap.String("index_type", indexType),
		zap.Bool("faiss_available", vector.IsFAISSAvailable()))

	if loadIndex {
		if err := c.LoadIndex(); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}
