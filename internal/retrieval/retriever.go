// Package retrieval answers queries against the current vector index.
package retrieval

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hyperjump/shiori/internal/embedding"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/vector"
	"github.com/hyperjump/shiori/pkg/utils"
	"go.uber.org/zap"
)

// ErrNoIndex is returned when no index has been loaded or built yet.
var ErrNoIndex = errors.New("no index loaded")

// Retriever embeds a query and searches the current index. The index can be replaced with Swap
// while queries are running; a Retrieve never observes a half-swapped index.
type Retriever struct {
	embedder embedding.Embedder
	index    vector.Index
	defaultK int
	mu       sync.RWMutex
	logger   *zap.Logger
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) RetrieverOption {
	return func(r *Retriever) { r.logger = l }
}

// WithDefaultK sets the k used when a request leaves it unset.
func WithDefaultK(k int) RetrieverOption {
	return func(r *Retriever) {
		if k > 0 {
			r.defaultK = k
		}
	}
}

// NewRetriever creates a retriever. index may be nil until the first Swap.
func NewRetriever(embedder embedding.Embedder, index vector.Index, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		embedder: embedder,
		index:    index,
		defaultK: 4,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = utils.OrNop(r.logger)
	return r
}

// Retrieve returns the k chunks nearest to query. Embedding and search errors are returned as is.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (models.RetrievalResult, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.index == nil {
		return nil, ErrNoIndex
	}
	return r.index.Search(ctx, vec, k)
}

// Do validates req, fills its default k and runs it.
func (r *Retriever) Do(ctx context.Context, req *models.RetrieveRequest) (*models.RetrieveResponse, error) {
	if err := req.Validate(r.defaultK); err != nil {
		return nil, err
	}
	start := time.Now()
	results, err := r.Retrieve(ctx, req.Query, req.K)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	r.logger.Debug("retrieve", zap.String("query", utils.Truncate(req.Query, 80)), zap.Int("k", req.K),
		zap.Int("hits", len(results)), zap.Duration("took", elapsed))
	return &models.RetrieveResponse{
		Query:     req.Query,
		K:         req.K,
		Results:   results,
		Total:     len(results),
		QueryTime: elapsed.Milliseconds(),
	}, nil
}

// Swap installs idx as the current index and returns the previous one for the caller to close.
// It waits for in-flight searches on the previous index to finish.
func (r *Retriever) Swap(idx vector.Index) vector.Index {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.index
	r.index = idx
	if idx != nil {
		r.logger.Info("index swapped", zap.Int("size", idx.Size()), zap.String("type", string(idx.Type())))
	}
	return prev
}

// Stats describes the current index.
func (r *Retriever) Stats() (vector.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.index == nil {
		return vector.Stats{}, ErrNoIndex
	}
	return vector.StatsOf(r.index), nil
}

// DefaultK returns the k used when a request does not set one.
func (r *Retriever) DefaultK() int { return r.defaultK }

// Close closes the current index.
func (r *Retriever) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index == nil {
		return nil
	}
	err := r.index.Close()
	r.index = nil
	return err
}
