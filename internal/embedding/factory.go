package embedding

import (
	"fmt"

	"github.com/hyperjump/shiori/internal/config"
)

// New builds the provider named by cfg.Provider. There is no fallback: an unavailable provider is
// an error.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case "", "onnx":
		e, err = NewONNXEmbedder(cfg.ModelPath, cfg.Tokenizer(), cfg.Model, cfg.Dimensions, cfg.MaxTokens)
	case "openai":
		e, err = NewOpenAIEmbedder(cfg.BaseURL, cfg.APIKey(), cfg.Model, cfg.Dimensions)
	case "ollama":
		e, err = NewOllamaEmbedder(cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case "hashing":
		e = NewHashingEmbedder(cfg.Dimensions)
	default:
		err = embeddingErr(cfg.Model, fmt.Errorf("%w: unknown provider %q", ErrModelUnavailable, cfg.Provider))
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}
