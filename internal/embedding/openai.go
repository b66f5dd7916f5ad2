package embedding

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder calls an OpenAI-compatible /v1/embeddings endpoint.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder creates an embedder for model at baseURL (empty means api.openai.com).
// The API key may be empty for local servers that do not check it.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dimensions int) (*OpenAIEmbedder, error) {
	if model == "" {
		return nil, embeddingErr(model, fmt.Errorf("%w: no model configured", ErrModelUnavailable))
	}
	if dimensions <= 0 {
		return nil, embeddingErr(model, fmt.Errorf("dimensions must be > 0, got %d", dimensions))
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sends all texts in one request and orders the response by index.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	norm, err := normalizeInputs(e.model, texts)
	if err != nil {
		return nil, err
	}
	if len(norm) == 0 {
		return [][]float32{}, nil
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: norm,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, embeddingErr(e.model, fmt.Errorf("%w: %v", ErrModelUnavailable, err))
	}
	if len(resp.Data) != len(norm) {
		return nil, embeddingErr(e.model, fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(norm)))
	}

	out := make([][]float32, len(norm))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) || out[d.Index] != nil {
			return nil, embeddingErr(e.model, errors.New("response has invalid embedding indices"))
		}
		v := make([]float32, len(d.Embedding))
		for i := range d.Embedding {
			v[i] = float32(d.Embedding[i])
		}
		if out[d.Index], err = finishVector(e.model, e.dimensions, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

// Model returns the remote model name.
func (e *OpenAIEmbedder) Model() string { return e.model }

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (e *OpenAIEmbedder) Close() error { return nil }
