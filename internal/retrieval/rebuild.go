package retrieval

import (
	"context"
	"sync"

	"github.com/hyperjump/shiori/internal/indexer"
	"github.com/hyperjump/shiori/pkg/utils"
	"go.uber.org/zap"
)

// Rebuilder rebuilds the index from a source directory, persists it, and swaps it into a Retriever.
// Rebuilds are serialised; the previous index keeps serving queries until the swap.
type Rebuilder struct {
	builder   *indexer.Builder
	retriever *Retriever
	sourceDir string
	indexPath string
	mu        sync.Mutex
	logger    *zap.Logger
}

// NewRebuilder creates a rebuilder. logger may be nil.
func NewRebuilder(builder *indexer.Builder, retriever *Retriever, sourceDir, indexPath string, logger *zap.Logger) *Rebuilder {
	return &Rebuilder{
		builder:   builder,
		retriever: retriever,
		sourceDir: sourceDir,
		indexPath: indexPath,
		logger:    utils.OrNop(logger),
	}
}

// SourceDir returns the directory documents are loaded from.
func (r *Rebuilder) SourceDir() string { return r.sourceDir }

// Rebuild runs a full build. On failure the current index and the persisted copy are untouched.
func (r *Rebuilder) Rebuild(ctx context.Context) (indexer.BuildStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, stats, err := r.builder.BuildAndSave(ctx, r.sourceDir, r.indexPath)
	if err != nil {
		r.logger.Error("rebuild failed", zap.String("dir", r.sourceDir), zap.Error(err))
		return stats, err
	}
	if prev := r.retriever.Swap(idx); prev != nil {
		_ = prev.Close()
	}
	r.logger.Info("rebuild complete", zap.Int("documents", stats.Documents), zap.Int("chunks", stats.Chunks),
		zap.Duration("took", stats.Duration))
	return stats, nil
}
