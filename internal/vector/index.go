// Package vector stores embedding vectors with their chunk payloads and answers k-nearest-neighbour
// queries by Euclidean distance.
package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/shiori/internal/models"
)

// MetricL2 is the only distance metric: Euclidean distance on L2-normalised embeddings.
const MetricL2 = "l2"

// Index is a built, immutable vector index. Search is safe for concurrent use; Save and Close must
// not overlap a Search.
type Index interface {
	// Search returns the k entries closest to query, nearest first, ties by insertion position.
	// It returns every entry when the index holds fewer than k.
	Search(ctx context.Context, query []float32, k int) (models.RetrievalResult, error)
	// Save persists the index and its payloads to dir, replacing dir atomically.
	Save(dir string) error
	Size() int
	Dimensions() int
	// Model identifies the embedding model the vectors came from.
	Model() string
	Type() IndexType
	Close() error
}

// ErrIndexClosed is returned by operations on a closed index.
var ErrIndexClosed = errors.New("vector index is closed")

// DimensionMismatchError reports a vector whose length differs from the index dimensionality.
type DimensionMismatchError struct {
	Got  int
	Want int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: vector has %d dimensions, index has %d", e.Got, e.Want)
}

// IndexLoadError reports a persisted index that is missing, corrupt, or incompatible.
type IndexLoadError struct {
	Path string
	Err  error
}

func (e *IndexLoadError) Error() string {
	return fmt.Sprintf("load index %s: %v", e.Path, e.Err)
}

func (e *IndexLoadError) Unwrap() error { return e.Err }

// Stats describes an index for status output.
type Stats struct {
	Type       IndexType `json:"type"`
	Metric     string    `json:"metric"`
	Size       int       `json:"size"`
	Dimensions int       `json:"dimensions"`
	Model      string    `json:"model"`
}

// StatsOf returns the Stats of idx.
func StatsOf(idx Index) Stats {
	return Stats{
		Type:       idx.Type(),
		Metric:     MetricL2,
		Size:       idx.Size(),
		Dimensions: idx.Dimensions(),
		Model:      idx.Model(),
	}
}

func checkQuery(query []float32, k, dims int) error {
	if k < 1 {
		return fmt.Errorf("k must be >= 1, got %d", k)
	}
	if len(query) != dims {
		return &DimensionMismatchError{Got: len(query), Want: dims}
	}
	return nil
}

// hit builds a result entry with its own copy of the payload.
func hit(payload models.Chunk, position int, distance float64) models.ScoredChunk {
	return models.ScoredChunk{
		Chunk:    models.Chunk{Content: payload.Content, Metadata: models.CloneMetadata(payload.Metadata)},
		Distance: distance,
		Position: position,
	}
}
