package embedding

import (
	"context"
	"fmt"
)

// HashingModel is the model identifier reported by HashingEmbedder.
const HashingModel = "hashing-bow"

// HashingEmbedder is a deterministic bag-of-words embedder: each lower-cased word adds one to the
// bucket FNV-1a(word) mod dimensions. It needs no model files, so it serves offline runs and tests.
type HashingEmbedder struct {
	dimensions int
	model      string
}

// NewHashingEmbedder returns a hashing embedder with the given dimensions (384 when <= 0).
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashingEmbedder{dimensions: dimensions, model: fmt.Sprintf("%s-%d", HashingModel, dimensions)}
}

// Embed returns the normalised word-count vector of text.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, err := normalizeInput(e.model, text)
	if err != nil {
		return nil, err
	}
	return e.vector(t)
}

// EmbedBatch embeds each text in order.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	norm, err := normalizeInputs(e.model, texts)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(norm))
	for i, t := range norm {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := e.vector(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *HashingEmbedder) vector(text string) ([]float32, error) {
	v := make([]float32, e.dimensions)
	words := Words(text)
	if len(words) == 0 {
		// Punctuation or symbols only: one bucket keyed by the whole text.
		v[HashWord(text)%uint32(e.dimensions)] = 1
		return finishVector(e.model, e.dimensions, v)
	}
	for _, w := range words {
		v[HashWord(w)%uint32(e.dimensions)]++
	}
	return finishVector(e.model, e.dimensions, v)
}

// Dimensions returns the embedding dimension.
func (e *HashingEmbedder) Dimensions() int { return e.dimensions }

// Model returns "hashing-bow-<dimensions>".
func (e *HashingEmbedder) Model() string { return e.model }

// Close is a no-op.
func (e *HashingEmbedder) Close() error { return nil }
