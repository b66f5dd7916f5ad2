//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
	"fmt"
)

var errNoCGO = errors.New("ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ONNXEmbedder stub type when built without CGO (see onnx.go for real implementation).
type ONNXEmbedder struct {
	model      string
	dimensions int
}

// NewONNXEmbedder always fails without CGO.
func NewONNXEmbedder(_, _ string, model string, _, _ int) (*ONNXEmbedder, error) {
	return nil, embeddingErr(model, fmt.Errorf("%w: %v", ErrModelUnavailable, errNoCGO))
}

func (e *ONNXEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, embeddingErr(e.model, errNoCGO)
}

func (e *ONNXEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, embeddingErr(e.model, errNoCGO)
}

func (e *ONNXEmbedder) Dimensions() int { return e.dimensions }
func (e *ONNXEmbedder) Model() string   { return e.model }
func (e *ONNXEmbedder) Close() error    { return nil }
