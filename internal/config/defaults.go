package config

import (
	"fmt"
	"slices"
)

// Defaults shared with callers that build components without a config file.
const (
	DefaultChunkSize       = 1000
	DefaultChunkOverlap    = 100
	DefaultTopK            = 4
	DefaultDimensions      = 384
	DefaultModel           = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultSystemDirective = "You are a helpful assistant. Answer the user's question using only the context below. " +
		"If the context does not contain the answer, say that you don't know."
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "/usr/local/var/shiori/data/index"
	}
	if cfg.Loader.Directory == "" {
		cfg.Loader.Directory = "./docs"
	}
	if cfg.Loader.Extensions == nil {
		cfg.Loader.Extensions = []string{".txt", ".pdf"}
	}
	if cfg.Loader.OnParseError == "" {
		cfg.Loader.OnParseError = "abort"
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = DefaultChunkSize
	}
	if cfg.Chunking.ChunkOverlap == nil {
		o := DefaultChunkOverlap
		cfg.Chunking.ChunkOverlap = &o
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = DefaultModel
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/shiori/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = DefaultDimensions
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Vector.IndexType == "" {
		cfg.Vector.IndexType = "flat"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = DefaultTopK
	}
	if cfg.Prompt.SystemDirective == "" {
		cfg.Prompt.SystemDirective = DefaultSystemDirective
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://router.huggingface.co/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "mistralai/Mistral-7B-Instruct-v0.3"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 500
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "HF_TOKEN"
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 400
	}
}

// Validate rejects settings that would otherwise be silently adjusted later.
func Validate(cfg *Config) error {
	if cfg.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunking.chunk_size must be > 0, got %d", ErrInvalidConfig, cfg.Chunking.ChunkSize)
	}
	overlap := cfg.Chunking.Overlap()
	if overlap < 0 {
		return fmt.Errorf("%w: chunking.chunk_overlap must be >= 0, got %d", ErrInvalidConfig, overlap)
	}
	if overlap >= cfg.Chunking.ChunkSize {
		return fmt.Errorf("%w: chunking.chunk_overlap (%d) must be less than chunk_size (%d)",
			ErrInvalidConfig, overlap, cfg.Chunking.ChunkSize)
	}
	if cfg.Embedding.Dimensions <= 0 {
		return fmt.Errorf("%w: embedding.dimensions must be > 0, got %d", ErrInvalidConfig, cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.BatchSize < 0 {
		return fmt.Errorf("%w: embedding.batch_size must be >= 0, got %d", ErrInvalidConfig, cfg.Embedding.BatchSize)
	}
	if cfg.Retrieval.TopK < 1 {
		return fmt.Errorf("%w: retrieval.top_k must be >= 1, got %d", ErrInvalidConfig, cfg.Retrieval.TopK)
	}
	if !slices.Contains([]string{"abort", "skip"}, cfg.Loader.OnParseError) {
		return fmt.Errorf("%w: loader.on_parse_error must be abort or skip, got %q", ErrInvalidConfig, cfg.Loader.OnParseError)
	}
	if !slices.Contains([]string{"flat", "faiss"}, cfg.Vector.IndexType) {
		return fmt.Errorf("%w: vector.index_type must be flat or faiss, got %q", ErrInvalidConfig, cfg.Vector.IndexType)
	}
	if !slices.Contains([]string{"onnx", "openai", "ollama", "hashing"}, cfg.Embedding.Provider) {
		return fmt.Errorf("%w: unknown embedding.provider %q", ErrInvalidConfig, cfg.Embedding.Provider)
	}
	return nil
}
