package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
)

// DefaultOllamaURL is used when no base URL is configured.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaEmbedder embeds text through a local Ollama server.
type OllamaEmbedder struct {
	llm        *ollama.LLM
	model      string
	dimensions int
}

// NewOllamaEmbedder creates an embedder for model served at baseURL.
func NewOllamaEmbedder(baseURL, model string, dimensions int) (*OllamaEmbedder, error) {
	if model == "" {
		return nil, embeddingErr(model, fmt.Errorf("%w: no model configured", ErrModelUnavailable))
	}
	if dimensions <= 0 {
		return nil, embeddingErr(model, fmt.Errorf("dimensions must be > 0, got %d", dimensions))
	}
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(baseURL))
	if err != nil {
		return nil, embeddingErr(model, fmt.Errorf("%w: %v", ErrModelUnavailable, err))
	}
	return &OllamaEmbedder{llm: llm, model: model, dimensions: dimensions}, nil
}

// Embed returns the embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in order.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	norm, err := normalizeInputs(e.model, texts)
	if err != nil {
		return nil, err
	}
	if len(norm) == 0 {
		return [][]float32{}, nil
	}
	vecs, err := e.llm.CreateEmbedding(ctx, norm)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, embeddingErr(e.model, fmt.Errorf("%w: %v", ErrModelUnavailable, err))
	}
	if len(vecs) != len(norm) {
		return nil, embeddingErr(e.model, fmt.Errorf("got %d embeddings for %d inputs", len(vecs), len(norm)))
	}
	for i := range vecs {
		if vecs[i], err = finishVector(e.model, e.dimensions, vecs[i]); err != nil {
			return nil, err
		}
	}
	return vecs, nil
}

// Dimensions returns the configured embedding dimension.
func (e *OllamaEmbedder) Dimensions() int { return e.dimensions }

// Model returns the Ollama model name.
func (e *OllamaEmbedder) Model() string { return e.model }

// Close is a no-op.
func (e *OllamaEmbedder) Close() error { return nil }
