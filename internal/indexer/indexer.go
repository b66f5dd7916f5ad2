// Package indexer turns a directory of documents into a persisted vector index: load, chunk, embed, build, save.
package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/shiori/internal/embedding"
	"github.com/hyperjump/shiori/internal/extract"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/vector"
	"github.com/hyperjump/shiori/pkg/utils"
	"go.uber.org/zap"
)

const (
	defaultBatchSize = 32
	defaultCacheSize = 10000
)

// BuildStats summarises one index build.
type BuildStats struct {
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

// ProgressFunc is called after each embedding batch with the number of chunks embedded so far.
type ProgressFunc func(done, total int)

// Builder runs the indexing pipeline. A failure at any stage aborts the run and nothing is persisted.
type Builder struct {
	loader    *extract.Loader
	chunker   *Chunker
	embedder  embedding.Embedder
	indexType string
	batchSize int
	cacheSize int
	progress  ProgressFunc
	logger    *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets a logger for stage progress.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// WithBatchSize sets how many chunks are sent to the embedder per call. Values <= 0 keep the default.
func WithBatchSize(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithIndexType selects the vector index implementation ("flat" or "faiss").
func WithIndexType(t string) BuilderOption {
	return func(b *Builder) { b.indexType = t }
}

// WithCacheSize bounds the per-build cache of repeated chunk texts. Values <= 0 keep the default.
func WithCacheSize(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.cacheSize = n
		}
	}
}

// WithProgress sets a callback invoked after every embedding batch.
func WithProgress(fn ProgressFunc) BuilderOption {
	return func(b *Builder) { b.progress = fn }
}

// NewBuilder creates a pipeline over the given loader, chunker and embedder.
func NewBuilder(loader *extract.Loader, chunker *Chunker, embedder embedding.Embedder, opts ...BuilderOption) *Builder {
	b := &Builder{
		loader:    loader,
		chunker:   chunker,
		embedder:  embedder,
		indexType: string(vector.IndexTypeFlat),
		batchSize: defaultBatchSize,
		cacheSize: defaultCacheSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = utils.OrNop(b.logger)
	return b
}

// Build loads every supported file in dir and returns an in-memory index over its chunks.
func (b *Builder) Build(ctx context.Context, dir string) (vector.Index, BuildStats, error) {
	start := time.Now()
	var stats BuildStats

	docs, err := b.loader.LoadDirectory(ctx, dir)
	if err != nil {
		return nil, stats, fmt.Errorf("load documents: %w", err)
	}
	stats.Documents = len(docs)
	b.logger.Info("documents loaded", zap.String("dir", dir), zap.Int("documents", len(docs)))

	if err := ctx.Err(); err != nil {
		return nil, stats, fmt.Errorf("chunk documents: %w", err)
	}
	all := b.chunker.ChunkDocuments(docs)
	chunks := all[:0]
	for _, ch := range all {
		if IsBlank(ch.Content) {
			stats.Skipped++
			continue
		}
		chunks = append(chunks, ch)
	}
	stats.Chunks = len(chunks)
	b.logger.Info("chunks created", zap.Int("chunks", len(chunks)), zap.Int("size", b.chunker.Size()), zap.Int("overlap", b.chunker.Overlap()))
	if stats.Skipped > 0 {
		b.logger.Info("blank chunks skipped", zap.Int("skipped", stats.Skipped))
	}

	vectors, err := b.embed(ctx, chunks)
	if err != nil {
		return nil, stats, fmt.Errorf("embed chunks: %w", err)
	}
	b.logger.Info("embeddings computed", zap.Int("vectors", len(vectors)), zap.String("model", b.embedder.Model()))

	entries := make([]models.IndexEntry, len(chunks))
	for i := range chunks {
		entries[i] = models.IndexEntry{Vector: vectors[i], Payload: chunks[i]}
	}
	idx, err := vector.Build(b.indexType, b.embedder.Dimensions(), b.embedder.Model(), entries)
	if err != nil {
		return nil, stats, fmt.Errorf("build index: %w", err)
	}
	stats.Duration = time.Since(start)
	return idx, stats, nil
}

// BuildAndSave builds an index from dir and persists it to out. out is only replaced when every stage succeeded.
func (b *Builder) BuildAndSave(ctx context.Context, dir, out string) (vector.Index, BuildStats, error) {
	start := time.Now()
	idx, stats, err := b.Build(ctx, dir)
	if err != nil {
		return nil, stats, err
	}
	if err := idx.Save(out); err != nil {
		_ = idx.Close()
		return nil, stats, fmt.Errorf("save index: %w", err)
	}
	b.logger.Info("index saved", zap.String("path", out), zap.Int("entries", idx.Size()))
	stats.Duration = time.Since(start)
	return idx, stats, nil
}

// embed embeds chunks in batches through a cache that lives only for this build.
func (b *Builder) embed(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	cached := embedding.NewDedupEmbedder(b.embedder, b.cacheSize)
	out := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += b.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+b.batchSize, len(chunks))
		texts := make([]string, end-start)
		for i := range texts {
			texts[i] = chunks[start+i].Content
		}
		vecs, err := cached.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("chunks %d-%d of %s: %w", start, end-1, chunks[start].Metadata[models.MetaSource], err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
		}
		out = append(out, vecs...)
		b.logger.Debug("embedded batch", zap.Int("done", end), zap.Int("total", len(chunks)))
		if b.progress != nil {
			b.progress(end, len(chunks))
		}
	}
	return out, nil
}
