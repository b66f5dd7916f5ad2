package embedding

import (
	"errors"
	"testing"

	"github.com/hyperjump/shiori/internal/config"
)

func TestNew(t *testing.T) {
	e, err := New(config.EmbeddingConfig{Provider: "hashing", Dimensions: 32})
	if err != nil {
		t.Fatal(err)
	}
	if e.Dimensions() != 32 {
		t.Errorf("Dimensions() = %d", e.Dimensions())
	}

	e, err = New(config.EmbeddingConfig{Provider: "openai", Model: "m", Dimensions: 8, BaseURL: "http://127.0.0.1:1/v1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*OpenAIEmbedder); !ok {
		t.Errorf("provider openai built %T", e)
	}
}

func TestNew_noFallback(t *testing.T) {
	tests := []config.EmbeddingConfig{
		{Provider: "word2vec", Model: "x", Dimensions: 8},
		{Provider: "onnx", Model: "x", ModelPath: "/nonexistent/model.onnx", Dimensions: 8, MaxTokens: 16},
		{Provider: "ollama", Dimensions: 8},
	}
	for _, cfg := range tests {
		e, err := New(cfg)
		if e != nil {
			t.Errorf("provider %s: expected nil embedder on failure", cfg.Provider)
		}
		if !errors.Is(err, ErrModelUnavailable) {
			t.Errorf("provider %s: error = %v, want ErrModelUnavailable", cfg.Provider, err)
		}
	}
}
