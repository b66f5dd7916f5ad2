//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXEmbedder runs a sentence-transformer exported to ONNX. Inputs come from the model's own
// tokenizer.json; the sentence vector is the attention-masked mean of "last_hidden_state"
// ([1, seq, dims]). It requires CGO and the onnxruntime shared library. Calls are serialised on the
// shared tensors.
type ONNXEmbedder struct {
	session    *ort.AdvancedSession
	model      string
	dimensions int
	maxTokens  int
	tokenizer  Tokenizer
	// Pre-allocated tensors for Run(); input data is overwritten per call.
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	outputTensor        *ort.Tensor[float32]
	mu                  sync.Mutex
}

// NewONNXEmbedder loads the model at modelPath and its tokenizer at tokenizerPath. model is the
// identifier recorded in index manifests. Any failure is an *EmbeddingError wrapping
// ErrModelUnavailable.
func NewONNXEmbedder(modelPath, tokenizerPath, model string, dimensions, maxTokens int) (*ONNXEmbedder, error) {
	unavailable := func(format string, err error) error {
		return embeddingErr(model, fmt.Errorf("%w: "+format+": %v", ErrModelUnavailable, err))
	}
	if maxTokens < 2 {
		maxTokens = defaultMaxTokens
	}
	tokenizer, err := NewWordPieceTokenizer(tokenizerPath)
	if err != nil {
		return nil, unavailable("tokenizer", err)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, unavailable("initialize ONNX runtime", err)
		}
	}

	seqLen := int64(maxTokens)
	inputIDs := make([]int64, seqLen)
	attentionMask := make([]int64, seqLen)
	tokenTypeIDs := make([]int64, seqLen)

	inputIDsTensor, err := ort.NewTensor(ort.NewShape(1, seqLen), inputIDs)
	if err != nil {
		return nil, unavailable("create input_ids tensor", err)
	}
	attentionMaskTensor, err := ort.NewTensor(ort.NewShape(1, seqLen), attentionMask)
	if err != nil {
		inputIDsTensor.Destroy()
		return nil, unavailable("create attention_mask tensor", err)
	}
	tokenTypeIDsTensor, err := ort.NewTensor(ort.NewShape(1, seqLen), tokenTypeIDs)
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		return nil, unavailable("create token_type_ids tensor", err)
	}
	outputTensor, err := ort.NewTensor(ort.NewShape(1, seqLen, int64(dimensions)), make([]float32, int(seqLen)*dimensions))
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		tokenTypeIDsTensor.Destroy()
		return nil, unavailable("create output tensor", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		[]ort.ArbitraryTensor{inputIDsTensor, attentionMaskTensor, tokenTypeIDsTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		inputIDsTensor.Destroy()
		attentionMaskTensor.Destroy()
		tokenTypeIDsTensor.Destroy()
		outputTensor.Destroy()
		return nil, unavailable("create ONNX session for "+modelPath, err)
	}

	return &ONNXEmbedder{
		session:             session,
		model:               model,
		dimensions:          dimensions,
		maxTokens:           int(seqLen),
		tokenizer:           tokenizer,
		inputIDsTensor:      inputIDsTensor,
		attentionMaskTensor: attentionMaskTensor,
		tokenTypeIDsTensor:  tokenTypeIDsTensor,
		outputTensor:        outputTensor,
	}, nil
}

// Embed runs one inference for text.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	t, err := normalizeInput(e.model, text)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.run(t)
}

func (e *ONNXEmbedder) run(text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, embeddingErr(e.model, fmt.Errorf("%w: embedder closed", ErrModelUnavailable))
	}

	inputIDs, attentionMask, tokenTypeIDs, err := e.tokenizer.Tokenize(text, e.maxTokens)
	if err != nil {
		return nil, embeddingErr(e.model, err)
	}
	copy(e.inputIDsTensor.GetData(), inputIDs)
	copy(e.attentionMaskTensor.GetData(), attentionMask)
	copy(e.tokenTypeIDsTensor.GetData(), tokenTypeIDs)

	if err := e.session.Run(); err != nil {
		return nil, embeddingErr(e.model, fmt.Errorf("inference failed: %w", err))
	}

	out, err := meanPool(e.outputTensor.GetData(), attentionMask, e.dimensions)
	if err != nil {
		return nil, embeddingErr(e.model, err)
	}
	return finishVector(e.model, e.dimensions, out)
}

// EmbedBatch runs Embed for each text in order.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	norm, err := normalizeInputs(e.model, texts)
	if err != nil {
		return nil, err
	}
	embeddings := make([][]float32, len(norm))
	for i, text := range norm {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := e.run(text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Model returns the configured model identifier.
func (e *ONNXEmbedder) Model() string {
	return e.model
}

// Close destroys the session and tensors.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.inputIDsTensor != nil {
		_ = e.inputIDsTensor.Destroy()
		e.inputIDsTensor = nil
	}
	if e.attentionMaskTensor != nil {
		_ = e.attentionMaskTensor.Destroy()
		e.attentionMaskTensor = nil
	}
	if e.tokenTypeIDsTensor != nil {
		_ = e.tokenTypeIDsTensor.Destroy()
		e.tokenTypeIDsTensor = nil
	}
	if e.outputTensor != nil {
		_ = e.outputTensor.Destroy()
		e.outputTensor = nil
	}
	return err
}
