// Package embedding maps text to fixed-dimension, L2-normalised vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/shiori/pkg/utils"
)

var (
	// ErrEmptyInput is wrapped when a text is empty after normalisation.
	ErrEmptyInput = errors.New("empty input text")
	// ErrModelUnavailable is wrapped when the model cannot be loaded or reached.
	ErrModelUnavailable = errors.New("model unavailable")
)

// Embedder produces vector embeddings for text. EmbedBatch preserves input order and returns one
// vector per input. Every vector an Embedder returns has length Dimensions().
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// Model identifies the model; it is recorded next to persisted indexes.
	Model() string
	Close() error
}

// EmbeddingError reports a failed embedding call or provider construction.
type EmbeddingError struct {
	Model string
	Err   error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding (%s): %v", e.Model, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

func embeddingErr(model string, err error) error {
	return &EmbeddingError{Model: model, Err: err}
}

// normalizeInput trims text and rejects what is left if it is empty.
func normalizeInput(model, text string) (string, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return "", embeddingErr(model, ErrEmptyInput)
	}
	return t, nil
}

// normalizeInputs applies normalizeInput to every text, naming the offending index on failure.
func normalizeInputs(model string, texts []string) ([]string, error) {
	out := make([]string, len(texts))
	for i, text := range texts {
		t := strings.TrimSpace(text)
		if t == "" {
			return nil, embeddingErr(model, fmt.Errorf("text %d: %w", i, ErrEmptyInput))
		}
		out[i] = t
	}
	return out, nil
}

// finishVector checks the vector length and normalises it in place.
func finishVector(model string, dims int, v []float32) ([]float32, error) {
	if len(v) != dims {
		return nil, embeddingErr(model, fmt.Errorf("provider returned %d dimensions, want %d", len(v), dims))
	}
	utils.NormalizeL2(v)
	return v, nil
}
